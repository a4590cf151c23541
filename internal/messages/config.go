package messages

// Config messages for loading and validation.
const (
	ConfigBuiltinSource       = "built-in defaults"
	ConfigMissingFileFmt      = "read config %s: %w"
	ConfigInvalidConfigFmt    = "invalid config %s: %w"
	ConfigUnrecognizedKeysFmt = "config %s contains unrecognized keys: %v"
	ConfigInvalidDurationFmt  = "invalid duration %q: %w"
	ConfigExpandPathFmt       = "expand path %s: %w"
	ConfigResolveStateDirFmt  = "resolve state dir: %w"

	ConfigFieldRequiredFmt           = "%s: %s is required"
	ConfigBundleIdentifierInvalidFmt = "%s: extension.bundle_identifier %q is not a reverse-DNS identifier"
	ConfigBundleNameInvalidFmt       = "%s: extension.bundle_name %q must name an .app bundle"
	ConfigNoSearchRootsFmt           = "%s: at least one of search.build_dirs, search.package_prefixes, search.manual_path is required"
	ConfigReceiptNameInvalidFmt      = "%s: search.receipt_name %q must be a bare file name"
	ConfigPathNotAbsoluteFmt         = "%s: %s entry %q must be an absolute path"
	ConfigDomainInvalidFmt           = "%s: service.domain %q must be one of system, gui, user"
	ConfigTimeoutInvalidFmt          = "%s: %s must be a positive duration"
	ConfigLogFormatInvalidFmt        = "%s: log.format %q must be text or json"
)
