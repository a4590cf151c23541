package messages

// Bundle locator messages.
const (
	BundleManifestParseFmt  = "parse Info.plist: %v"
	BundleReceiptParseFmt   = "parse install receipt: %v"
	BundleReceiptInvalidFmt = "install receipt is incomplete: %s"

	BundleReasonMissing           = "bundle not found"
	BundleReasonNotDir            = "bundle path is not a directory"
	BundleReasonStatFmt           = "cannot stat bundle: %v"
	BundleReasonManifestMissing   = "Contents/Info.plist is missing"
	BundleReasonManifestFmt       = "manifest unreadable: %v"
	BundleReasonIdentifierMissing = "CFBundleIdentifier is missing"
	BundleReasonIdentifierFmt     = "CFBundleIdentifier %q is not a reverse-DNS identifier"
	BundleReasonExecutableFmt     = "main executable %s is missing"
	BundleReasonExecutableNotFile = "main executable %s is not a regular file"
	BundleReasonReceiptMissingFmt = "install receipt %s is missing"
	BundleReasonReceiptFmt        = "install receipt %s: %v"
	BundleReasonRootMissing       = "search root does not exist"
	BundleReasonRootUnreadableFmt = "search root unreadable: %v"
	BundleReasonNoVersions        = "no versioned installations under package root"
	BundleReasonAllCandidatesFmt  = "%d versioned installation(s) rejected"
	BundleCandidateFmt            = "%s: %s"

	BundleIssueBuildMissing        = "CFBundleVersion (build number) is missing"
	BundleIssueVersionMissing      = "CFBundleShortVersionString is missing"
	BundleIssueVersionNotSemverFmt = "version %q is not a semantic version"
	BundleIssueReceiptVersionFmt   = "install receipt version %s differs from installation directory %s"
	BundleIssueReceiptPrefixFmt    = "install receipt prefix %s does not contain %s"
	BundleIssueIdentifierFmt       = "identifier %s differs from configured %s"

	BundleNotFoundFmt = "no valid bundle found in %d search root(s)"
)
