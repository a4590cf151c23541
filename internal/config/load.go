package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/conn-castle/dextctl/internal/messages"
)

// ErrConfigValidation wraps config validation failures (as opposed to TOML syntax or
// filesystem errors). Callers can use errors.Is(err, ErrConfigValidation).
var ErrConfigValidation = errors.New("config validation failed")

var readFileFunc = os.ReadFile

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// Path is an explicit config path (from --config). Missing explicit files are an error.
	Path string
	// LookupEnv overrides os.LookupEnv for tests.
	LookupEnv func(key string) (string, bool)
}

// Load resolves the config path, reads and validates it, and applies env overrides.
// When no explicit path is given and the default file does not exist, defaults are used.
func Load(opts LoadOptions) (*Config, string, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	path := strings.TrimSpace(opts.Path)
	explicit := path != ""
	if !explicit {
		if env, ok := lookup(EnvConfigPath); ok && strings.TrimSpace(env) != "" {
			path = strings.TrimSpace(env)
			explicit = true
		}
	}
	if !explicit {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, "", err
		}
		path = defaultPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return nil, "", err
	}

	var cfg *Config
	data, err := readFileFunc(expanded)
	switch {
	case err == nil:
		cfg, err = ParseConfig(data, expanded)
		if err != nil {
			return nil, expanded, err
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		cfg = Default()
		expanded = ""
	default:
		return nil, expanded, fmt.Errorf(messages.ConfigMissingFileFmt, expanded, err)
	}

	applyEnv(cfg, lookup)
	if err := cfg.Resolve(); err != nil {
		return nil, expanded, err
	}
	if err := cfg.Validate(sourceName(expanded)); err != nil {
		return nil, expanded, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return cfg, expanded, nil
}

// ParseConfig decodes TOML data over the defaults and validates it.
// data is the TOML content; source is used in error messages.
func ParseConfig(data []byte, source string) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf(messages.ConfigInvalidConfigFmt, source, err)
	}
	if err := decodeStrict(data); err != nil {
		return nil, fmt.Errorf("%w: "+messages.ConfigUnrecognizedKeysFmt, ErrConfigValidation, source, err)
	}
	if err := cfg.Validate(source); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return cfg, nil
}

// decodeStrict re-decodes the TOML data with strict unknown-field rejection.
// toml.Unmarshal silently ignores misspelled keys.
func decodeStrict(data []byte) error {
	var cfg Config
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	return decoder.Decode(&cfg)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBundlePath); ok && strings.TrimSpace(v) != "" {
		cfg.Search.ManualPath = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvStateDir); ok && strings.TrimSpace(v) != "" {
		cfg.State.Dir = strings.TrimSpace(v)
	}
}

func sourceName(path string) string {
	if path == "" {
		return messages.ConfigBuiltinSource
	}
	return path
}
