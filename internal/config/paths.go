package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/conn-castle/dextctl/internal/messages"
)

// Environment variables read by the config layer.
const (
	EnvConfigPath = "DEXTCTL_CONFIG"
	EnvBundlePath = "DEXTCTL_BUNDLE_PATH"
	EnvStateDir   = "DEXTCTL_STATE_DIR"
)

const defaultConfigPath = "~/.config/dextctl/config.toml"

var userCacheDirFunc = os.UserCacheDir

// DefaultPath returns the expanded default config file location.
func DefaultPath() (string, error) {
	return expandPath(defaultConfigPath)
}

func expandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf(messages.ConfigExpandPathFmt, path, err)
	}
	return expanded, nil
}

// Resolve expands "~" and makes the project and state directories absolute.
func (c *Config) Resolve() error {
	var err error
	if c.Search.ProjectDir, err = absPath(c.Search.ProjectDir); err != nil {
		return err
	}
	if strings.TrimSpace(c.Search.ManualPath) != "" {
		if c.Search.ManualPath, err = absPath(c.Search.ManualPath); err != nil {
			return err
		}
	}
	for i, prefix := range c.Search.PackagePrefixes {
		if c.Search.PackagePrefixes[i], err = expandPath(prefix); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.State.Dir) == "" {
		cacheDir, err := userCacheDirFunc()
		if err != nil {
			return fmt.Errorf(messages.ConfigResolveStateDirFmt, err)
		}
		c.State.Dir = filepath.Join(cacheDir, "dextctl")
		return nil
	}
	c.State.Dir, err = absPath(c.State.Dir)
	return err
}

func absPath(path string) (string, error) {
	expanded, err := expandPath(strings.TrimSpace(path))
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf(messages.ConfigExpandPathFmt, path, err)
	}
	return abs, nil
}
