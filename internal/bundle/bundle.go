// Package bundle locates and structurally validates the host app bundle that
// carries the driver extension, across development, package-managed, and
// manually configured deployment layouts.
package bundle

import (
	"fmt"
	"regexp"
)

// EnvironmentKind tags where a bundle was found.
type EnvironmentKind string

// Deployment environments in search priority order.
const (
	EnvironmentDevelopment    EnvironmentKind = "development"
	EnvironmentPackageManaged EnvironmentKind = "package-managed"
	EnvironmentManual         EnvironmentKind = "manual"
)

// Environment is a tagged union describing the deployment layout of a bundle.
// Only the fields relevant to Kind are set.
type Environment struct {
	Kind EnvironmentKind
	// BuildPath is the build-output directory (development).
	BuildPath string
	// InstallRoot and PackageVersion identify the versioned install (package-managed).
	InstallRoot    string
	PackageVersion string
	// Path is the configured override (manual).
	Path string
}

func (e Environment) String() string {
	switch e.Kind {
	case EnvironmentDevelopment:
		return fmt.Sprintf("development{%s}", e.BuildPath)
	case EnvironmentPackageManaged:
		return fmt.Sprintf("package-managed{%s, %s}", e.InstallRoot, e.PackageVersion)
	case EnvironmentManual:
		return fmt.Sprintf("manual{%s}", e.Path)
	default:
		return "unknown"
	}
}

// Provenance is the install receipt written next to a package-managed bundle.
type Provenance struct {
	InstallVersion string `json:"install_version" validate:"required,semver"`
	InstallPrefix  string `json:"install_prefix" validate:"required,startswith=/"`
	InstalledAt    int64  `json:"installed_at" validate:"gte=0"`
	OnRequest      bool   `json:"installed_on_request"`
}

// SearchAttempt records one configured search root and why it produced no match.
type SearchAttempt struct {
	Root        string
	Environment EnvironmentKind
	// Candidates lists per-bundle rejection reasons inside the root, as "path: reason".
	Candidates []string
	Reason     string
	Matched    bool
}

// Descriptor identifies one discovered bundle. It is created fresh by every Locate call.
type Descriptor struct {
	Found       bool
	Path        string
	Executable  string
	Identifier  string
	Version     string
	Build       string
	Environment Environment
	Provenance  *Provenance
	// Issues are non-fatal structural findings on the matched bundle.
	Issues []string
	// Searched holds one entry per examined root, in search order.
	Searched []SearchAttempt
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*(\.[A-Za-z0-9][A-Za-z0-9-]*)+$`)

// ValidIdentifier reports whether id is a well-formed reverse-DNS bundle identifier.
func ValidIdentifier(id string) bool {
	return identifierPattern.MatchString(id)
}
