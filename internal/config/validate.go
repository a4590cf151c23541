package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conn-castle/dextctl/internal/bundle"
	"github.com/conn-castle/dextctl/internal/messages"
)

var validLogFormats = map[string]struct{}{
	"":     {},
	"text": {},
	"json": {},
}

var validDomains = map[string]struct{}{
	"system": {},
	"gui":    {},
	"user":   {},
}

// Validate ensures the config is complete and consistent.
// path names the config source in error messages.
func (c *Config) Validate(path string) error {
	var errs []error
	if id := strings.TrimSpace(c.Extension.BundleIdentifier); id != "" && !bundle.ValidIdentifier(id) {
		errs = append(errs, fmt.Errorf(messages.ConfigBundleIdentifierInvalidFmt, path, id))
	}
	if !strings.HasSuffix(strings.TrimSpace(c.Extension.BundleName), ".app") {
		errs = append(errs, fmt.Errorf(messages.ConfigBundleNameInvalidFmt, path, c.Extension.BundleName))
	}
	if len(c.Extension.ActivationArgs) == 0 {
		errs = append(errs, fmt.Errorf(messages.ConfigFieldRequiredFmt, path, "extension.activation_args"))
	}
	if len(c.Search.BuildDirs)+len(c.Search.PackagePrefixes) == 0 && strings.TrimSpace(c.Search.ManualPath) == "" {
		errs = append(errs, fmt.Errorf(messages.ConfigNoSearchRootsFmt, path))
	}
	if strings.TrimSpace(c.Search.ReceiptName) == "" || filepath.Base(c.Search.ReceiptName) != c.Search.ReceiptName {
		errs = append(errs, fmt.Errorf(messages.ConfigReceiptNameInvalidFmt, path, c.Search.ReceiptName))
	}
	for _, prefix := range c.Search.PackagePrefixes {
		if !filepath.IsAbs(prefix) && !strings.HasPrefix(prefix, "~") {
			errs = append(errs, fmt.Errorf(messages.ConfigPathNotAbsoluteFmt, path, "search.package_prefixes", prefix))
		}
	}
	if strings.TrimSpace(c.Service.Label) == "" {
		errs = append(errs, fmt.Errorf(messages.ConfigFieldRequiredFmt, path, "service.label"))
	}
	if strings.TrimSpace(c.Service.DaemonName) == "" {
		errs = append(errs, fmt.Errorf(messages.ConfigFieldRequiredFmt, path, "service.daemon_name"))
	}
	if !filepath.IsAbs(c.Service.PlistPath) {
		errs = append(errs, fmt.Errorf(messages.ConfigPathNotAbsoluteFmt, path, "service.plist_path", c.Service.PlistPath))
	}
	if _, ok := validDomains[c.Service.Domain]; !ok {
		errs = append(errs, fmt.Errorf(messages.ConfigDomainInvalidFmt, path, c.Service.Domain))
	}
	if strings.TrimSpace(c.Service.SupervisorFormula) == "" {
		errs = append(errs, fmt.Errorf(messages.ConfigFieldRequiredFmt, path, "service.supervisor_formula"))
	}
	for name, d := range map[string]Duration{
		"timeouts.activation": c.Timeouts.Activation,
		"timeouts.command":    c.Timeouts.Command,
		"timeouts.verify":     c.Timeouts.Verify,
	} {
		if d.Duration <= 0 {
			errs = append(errs, fmt.Errorf(messages.ConfigTimeoutInvalidFmt, path, name))
		}
	}
	if _, ok := validLogFormats[strings.ToLower(c.Log.Format)]; !ok {
		errs = append(errs, fmt.Errorf(messages.ConfigLogFormatInvalidFmt, path, c.Log.Format))
	}
	return errors.Join(errs...)
}
