package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func stubCacheDir(t *testing.T, dir string) {
	t.Helper()
	orig := userCacheDirFunc
	userCacheDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { userCacheDirFunc = orig })
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate("defaults"))
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	stubCacheDir(t, filepath.Join(home, "cache"))

	cfg, path, err := Load(LoadOptions{LookupEnv: envMap(nil)})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "SoftUSB.app", cfg.Extension.BundleName)
	assert.Equal(t, filepath.Join(home, "cache", "dextctl"), cfg.State.Dir)
	assert.True(t, filepath.IsAbs(cfg.Search.ProjectDir))
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, _, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "nope.toml"), LookupEnv: envMap(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadFromEnvPathAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[extension]
bundle_identifier = "com.example.softusb"

[timeouts]
activation = "90s"

[state]
dir = "` + filepath.Join(dir, "state") + `"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, loaded, err := Load(LoadOptions{LookupEnv: envMap(map[string]string{
		EnvConfigPath: path,
		EnvBundlePath: filepath.Join(dir, "Manual.app"),
	})})
	require.NoError(t, err)
	assert.Equal(t, path, loaded)
	assert.Equal(t, "com.example.softusb", cfg.Extension.BundleIdentifier)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Activation.Duration)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Command.Duration, "unset keys keep defaults")
	assert.Equal(t, filepath.Join(dir, "Manual.app"), cfg.Search.ManualPath)
	assert.Equal(t, filepath.Join(dir, "state"), cfg.State.Dir)
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfig([]byte("[service]\nlabell = \"x\"\n"), "test.toml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigValidation))
	assert.Contains(t, err.Error(), "unrecognized keys")
}

func TestParseConfigRejectsBadSyntax(t *testing.T) {
	_, err := ParseConfig([]byte("[service\n"), "test.toml")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfigValidation))
}

func TestParseConfigRejectsBadDuration(t *testing.T) {
	_, err := ParseConfig([]byte("[timeouts]\nverify = \"soon\"\n"), "test.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "soon")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Extension.BundleIdentifier = "not an id"
	cfg.Extension.BundleName = "SoftUSB"
	cfg.Service.PlistPath = "relative.plist"
	cfg.Service.Domain = "nowhere"
	cfg.Timeouts.Verify = Duration{}
	cfg.Log.Format = "xml"

	err := cfg.Validate("cfg.toml")
	require.Error(t, err)
	for _, want := range []string{
		"bundle_identifier",
		"bundle_name",
		"service.plist_path",
		"service.domain",
		"timeouts.verify",
		"log.format",
	} {
		assert.True(t, strings.Contains(err.Error(), want), "missing %q in %v", want, err)
	}
}

func TestValidateRequiresSearchRoot(t *testing.T) {
	cfg := Default()
	cfg.Search.BuildDirs = nil
	cfg.Search.PackagePrefixes = nil
	require.Error(t, cfg.Validate("cfg.toml"))
	cfg.Search.ManualPath = "/Applications/SoftUSB.app"
	require.NoError(t, cfg.Validate("cfg.toml"))
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)
	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
