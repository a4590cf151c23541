package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"

	"github.com/conn-castle/dextctl/internal/logging"
	"github.com/conn-castle/dextctl/internal/messages"
)

// Options configures a Locator. Relative build directories resolve against ProjectDir.
type Options struct {
	ProjectDir      string
	BuildDirs       []string
	PackagePrefixes []string
	ManualPath      string
	BundleName      string
	ReceiptName     string
	// ExpectedIdentifier, when set, is compared against the located identifier.
	ExpectedIdentifier string
	System             System
	Logger             logrus.FieldLogger
}

// Locator finds the host app bundle across deployment environments.
type Locator struct {
	opts Options
}

// NewLocator returns a Locator. A nil System uses the OS filesystem.
func NewLocator(opts Options) *Locator {
	if opts.System == nil {
		opts.System = RealSystem{}
	}
	opts.Logger = logging.Component(opts.Logger, logging.ComponentLocator)
	return &Locator{opts: opts}
}

// Locate searches development build directories, then package-manager roots, then the
// manual override. The first structurally valid bundle wins and later roots are not examined.
func (l *Locator) Locate() Descriptor {
	var desc Descriptor

	for _, dir := range l.opts.BuildDirs {
		root := dir
		if !filepath.IsAbs(root) {
			root = filepath.Join(l.opts.ProjectDir, root)
		}
		attempt, found, ok := l.tryDevelopment(root)
		desc.Searched = append(desc.Searched, attempt)
		if ok {
			return l.finish(desc, found)
		}
	}

	for _, prefix := range l.opts.PackagePrefixes {
		attempt, found, ok := l.tryPackage(prefix)
		desc.Searched = append(desc.Searched, attempt)
		if ok {
			return l.finish(desc, found)
		}
	}

	if strings.TrimSpace(l.opts.ManualPath) != "" {
		attempt, found, ok := l.tryManual(l.opts.ManualPath)
		desc.Searched = append(desc.Searched, attempt)
		if ok {
			return l.finish(desc, found)
		}
	}

	l.opts.Logger.WithField("roots", len(desc.Searched)).Debug(fmt.Sprintf(messages.BundleNotFoundFmt, len(desc.Searched)))
	return desc
}

// finish merges the winning candidate into desc and records non-fatal issues.
func (l *Locator) finish(desc Descriptor, found candidate) Descriptor {
	desc.Found = true
	desc.Path = found.path
	desc.Executable = found.executable
	desc.Identifier = found.manifest.Identifier
	desc.Version = found.manifest.ShortVersion
	desc.Build = found.manifest.Build
	desc.Environment = found.env
	desc.Provenance = found.provenance
	desc.Issues = l.issues(found)
	l.opts.Logger.WithFields(logrus.Fields{
		"path":        desc.Path,
		"identifier":  desc.Identifier,
		"version":     desc.Version,
		"environment": desc.Environment.String(),
	}).Info("bundle located")
	return desc
}

type candidate struct {
	path       string
	executable string
	manifest   manifest
	env        Environment
	provenance *Provenance
}

func (l *Locator) tryDevelopment(root string) (SearchAttempt, candidate, bool) {
	attempt := SearchAttempt{Root: root, Environment: EnvironmentDevelopment}
	if reason := l.checkRoot(root); reason != "" {
		attempt.Reason = reason
		return attempt, candidate{}, false
	}
	path := filepath.Join(root, l.opts.BundleName)
	found, reason := l.inspect(path)
	if reason != "" {
		attempt.Reason = reason
		return attempt, candidate{}, false
	}
	found.env = Environment{Kind: EnvironmentDevelopment, BuildPath: root}
	attempt.Matched = true
	return attempt, found, true
}

func (l *Locator) tryPackage(prefix string) (SearchAttempt, candidate, bool) {
	attempt := SearchAttempt{Root: prefix, Environment: EnvironmentPackageManaged}
	if reason := l.checkRoot(prefix); reason != "" {
		attempt.Reason = reason
		return attempt, candidate{}, false
	}
	versions, err := l.versionDirs(prefix)
	if err != nil {
		attempt.Reason = fmt.Sprintf(messages.BundleReasonRootUnreadableFmt, err)
		return attempt, candidate{}, false
	}
	if len(versions) == 0 {
		attempt.Reason = messages.BundleReasonNoVersions
		return attempt, candidate{}, false
	}
	for _, v := range versions {
		installRoot := filepath.Join(prefix, v.name)
		path := filepath.Join(installRoot, l.opts.BundleName)
		found, reason := l.inspect(path)
		if reason == "" {
			found.provenance, reason = l.readProvenance(installRoot)
		}
		if reason != "" {
			attempt.Candidates = append(attempt.Candidates, fmt.Sprintf(messages.BundleCandidateFmt, path, reason))
			continue
		}
		found.env = Environment{
			Kind:           EnvironmentPackageManaged,
			InstallRoot:    installRoot,
			PackageVersion: v.name,
		}
		attempt.Matched = true
		return attempt, found, true
	}
	attempt.Reason = fmt.Sprintf(messages.BundleReasonAllCandidatesFmt, len(versions))
	return attempt, candidate{}, false
}

func (l *Locator) tryManual(path string) (SearchAttempt, candidate, bool) {
	attempt := SearchAttempt{Root: path, Environment: EnvironmentManual}
	bundlePath := path
	if !strings.HasSuffix(strings.TrimRight(path, string(filepath.Separator)), bundleSuffix) {
		bundlePath = filepath.Join(path, l.opts.BundleName)
	}
	found, reason := l.inspect(bundlePath)
	if reason != "" {
		attempt.Reason = reason
		return attempt, candidate{}, false
	}
	found.env = Environment{Kind: EnvironmentManual, Path: path}
	attempt.Matched = true
	return attempt, found, true
}

func (l *Locator) checkRoot(root string) string {
	info, err := l.opts.System.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return messages.BundleReasonRootMissing
		}
		return fmt.Sprintf(messages.BundleReasonStatFmt, err)
	}
	if !info.IsDir() {
		return messages.BundleReasonNotDir
	}
	return ""
}

// versionDir is a versioned install directory. Homebrew appends a `_N` revision to rebuilt
// formulae; the revision orders installs of the same version.
type versionDir struct {
	name     string
	version  *semver.Version
	revision int
}

// parseVersionDir parses a directory name such as 1.2.0 or 1.2.0_1.
func parseVersionDir(name string) (versionDir, bool) {
	base, revision := splitRevision(name)
	v, err := semver.StrictNewVersion(base)
	if err != nil {
		return versionDir{}, false
	}
	return versionDir{name: name, version: v, revision: revision}, true
}

func splitRevision(name string) (string, int) {
	idx := strings.LastIndexByte(name, '_')
	if idx <= 0 || idx == len(name)-1 {
		return name, 0
	}
	revision, err := strconv.Atoi(name[idx+1:])
	if err != nil || revision < 0 {
		return name, 0
	}
	return name[:idx], revision
}

// versionDirs returns versioned subdirectories of prefix, newest first.
func (l *Locator) versionDirs(prefix string) ([]versionDir, error) {
	entries, err := l.opts.System.ReadDir(prefix)
	if err != nil {
		return nil, err
	}
	var versions []versionDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if v, ok := parseVersionDir(entry.Name()); ok {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		if c := versions[i].version.Compare(versions[j].version); c != 0 {
			return c > 0
		}
		return versions[i].revision > versions[j].revision
	})
	return versions, nil
}

// inspect checks the structural validity of a single bundle path. A non-empty reason rejects it.
func (l *Locator) inspect(path string) (candidate, string) {
	info, err := l.opts.System.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return candidate{}, messages.BundleReasonMissing
		}
		return candidate{}, fmt.Sprintf(messages.BundleReasonStatFmt, err)
	}
	if !info.IsDir() {
		return candidate{}, messages.BundleReasonNotDir
	}

	data, err := l.opts.System.ReadFile(filepath.Join(path, filepath.FromSlash(manifestRelPath)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return candidate{}, messages.BundleReasonManifestMissing
		}
		return candidate{}, fmt.Sprintf(messages.BundleReasonManifestFmt, err)
	}
	m, err := parseManifest(data)
	if err != nil {
		return candidate{}, fmt.Sprintf(messages.BundleReasonManifestFmt, err)
	}
	if m.Identifier == "" {
		return candidate{}, messages.BundleReasonIdentifierMissing
	}
	if !ValidIdentifier(m.Identifier) {
		return candidate{}, fmt.Sprintf(messages.BundleReasonIdentifierFmt, m.Identifier)
	}

	exe := filepath.Join(path, filepath.FromSlash(executableRelDir), m.executableName(path))
	exeInfo, err := l.opts.System.Stat(exe)
	if err != nil {
		return candidate{}, fmt.Sprintf(messages.BundleReasonExecutableFmt, exe)
	}
	if !exeInfo.Mode().IsRegular() {
		return candidate{}, fmt.Sprintf(messages.BundleReasonExecutableNotFile, exe)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return candidate{path: abs, executable: exe, manifest: m}, ""
}

func (l *Locator) readProvenance(installRoot string) (*Provenance, string) {
	receiptPath := filepath.Join(installRoot, l.opts.ReceiptName)
	data, err := l.opts.System.ReadFile(receiptPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Sprintf(messages.BundleReasonReceiptMissingFmt, l.opts.ReceiptName)
		}
		return nil, fmt.Sprintf(messages.BundleReasonReceiptFmt, l.opts.ReceiptName, err)
	}
	p, err := parseProvenance(data)
	if err != nil {
		return nil, fmt.Sprintf(messages.BundleReasonReceiptFmt, l.opts.ReceiptName, err)
	}
	return p, ""
}

func (l *Locator) issues(found candidate) []string {
	var issues []string
	m := found.manifest
	if m.Build == "" {
		issues = append(issues, messages.BundleIssueBuildMissing)
	}
	switch {
	case m.ShortVersion == "":
		issues = append(issues, messages.BundleIssueVersionMissing)
	default:
		if _, err := semver.NewVersion(m.ShortVersion); err != nil {
			issues = append(issues, fmt.Sprintf(messages.BundleIssueVersionNotSemverFmt, m.ShortVersion))
		}
	}
	if p := found.provenance; p != nil {
		if !sameVersion(p.InstallVersion, found.env.PackageVersion) {
			issues = append(issues, fmt.Sprintf(messages.BundleIssueReceiptVersionFmt, p.InstallVersion, found.env.PackageVersion))
		}
		if !strings.HasPrefix(found.env.InstallRoot, filepath.Clean(p.InstallPrefix)) {
			issues = append(issues, fmt.Sprintf(messages.BundleIssueReceiptPrefixFmt, p.InstallPrefix, found.env.InstallRoot))
		}
	}
	if want := strings.TrimSpace(l.opts.ExpectedIdentifier); want != "" && want != m.Identifier {
		issues = append(issues, fmt.Sprintf(messages.BundleIssueIdentifierFmt, m.Identifier, want))
	}
	return issues
}

// sameVersion compares versions, ignoring a Homebrew revision that only one side carries.
func sameVersion(a, b string) bool {
	baseA, revA := splitRevision(a)
	baseB, revB := splitRevision(b)
	if revA != 0 && revB != 0 && revA != revB {
		return false
	}
	va, errA := semver.NewVersion(baseA)
	vb, errB := semver.NewVersion(baseB)
	if errA != nil || errB != nil {
		return a == b
	}
	return va.Equal(vb)
}
