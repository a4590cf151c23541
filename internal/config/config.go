package config

import (
	"time"
)

// Config is the dextctl configuration file (TOML).
type Config struct {
	Extension ExtensionConfig `toml:"extension"`
	Search    SearchConfig    `toml:"search"`
	Service   ServiceConfig   `toml:"service"`
	Timeouts  TimeoutsConfig  `toml:"timeouts"`
	State     StateConfig     `toml:"state"`
	Log       LogConfig       `toml:"log"`
}

// ExtensionConfig identifies the host app bundle and its activation helper.
type ExtensionConfig struct {
	// BundleIdentifier is optional; when set the located bundle is expected to carry it.
	BundleIdentifier string   `toml:"bundle_identifier"`
	BundleName       string   `toml:"bundle_name"`
	ActivationArgs   []string `toml:"activation_args"`
	DeactivationArgs []string `toml:"deactivation_args"`
}

// SearchConfig lists the roots the bundle locator examines, in priority order.
type SearchConfig struct {
	ProjectDir      string   `toml:"project_dir"`
	BuildDirs       []string `toml:"build_dirs"`
	PackagePrefixes []string `toml:"package_prefixes"`
	ReceiptName     string   `toml:"receipt_name"`
	ManualPath      string   `toml:"manual_path"`
}

// ServiceConfig describes the companion daemon and its supervisor.
type ServiceConfig struct {
	Label             string `toml:"label"`
	DaemonName        string `toml:"daemon_name"`
	PlistPath         string `toml:"plist_path"`
	Domain            string `toml:"domain"`
	SupervisorFormula string `toml:"supervisor_formula"`
}

// TimeoutsConfig bounds the blocking stages.
type TimeoutsConfig struct {
	Activation Duration `toml:"activation"`
	Command    Duration `toml:"command"`
	Verify     Duration `toml:"verify"`
}

// StateConfig controls where run locks live. An empty Dir resolves to the user cache dir.
type StateConfig struct {
	Dir string `toml:"dir"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	return &Config{
		Extension: ExtensionConfig{
			BundleName:       "SoftUSB.app",
			ActivationArgs:   []string{"activate", "--events", "json"},
			DeactivationArgs: []string{"deactivate", "--events", "json"},
		},
		Search: SearchConfig{
			ProjectDir: ".",
			BuildDirs: []string{
				"build/Release",
				"build/Debug",
				"DerivedData/Build/Products/Release",
			},
			PackagePrefixes: []string{
				"/opt/homebrew/Cellar/softusb",
				"/usr/local/Cellar/softusb",
			},
			ReceiptName: "INSTALL_RECEIPT.json",
		},
		Service: ServiceConfig{
			Label:             "homebrew.mxcl.softusb",
			DaemonName:        "softusbd",
			PlistPath:         "/Library/LaunchDaemons/homebrew.mxcl.softusb.plist",
			Domain:            "system",
			SupervisorFormula: "softusb",
		},
		Timeouts: TimeoutsConfig{
			Activation: Duration{5 * time.Minute},
			Command:    Duration{5 * time.Second},
			Verify:     Duration{time.Second},
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}
