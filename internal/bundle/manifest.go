package bundle

import (
	"fmt"
	"path/filepath"
	"strings"

	"howett.net/plist"

	"github.com/conn-castle/dextctl/internal/messages"
)

const (
	manifestRelPath  = "Contents/Info.plist"
	executableRelDir = "Contents/MacOS"
	daemonsRelDir    = "Contents/Library/LaunchDaemons"
	bundleSuffix     = ".app"
)

type manifest struct {
	Identifier   string `plist:"CFBundleIdentifier"`
	Executable   string `plist:"CFBundleExecutable"`
	ShortVersion string `plist:"CFBundleShortVersionString"`
	Build        string `plist:"CFBundleVersion"`
	Name         string `plist:"CFBundleName"`
}

// parseManifest decodes an XML, binary, or OpenStep Info.plist.
func parseManifest(data []byte) (manifest, error) {
	var m manifest
	if _, err := plist.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf(messages.BundleManifestParseFmt, err)
	}
	m.Identifier = strings.TrimSpace(m.Identifier)
	m.Executable = strings.TrimSpace(m.Executable)
	m.ShortVersion = strings.TrimSpace(m.ShortVersion)
	m.Build = strings.TrimSpace(m.Build)
	return m, nil
}

// executableName falls back to the bundle directory name when CFBundleExecutable is absent.
func (m manifest) executableName(bundlePath string) string {
	if m.Executable != "" {
		return m.Executable
	}
	return strings.TrimSuffix(filepath.Base(bundlePath), bundleSuffix)
}

// DaemonPlistPath returns where a bundle ships the launchd plist for label.
func DaemonPlistPath(bundlePath string, label string) string {
	return filepath.Join(bundlePath, filepath.FromSlash(daemonsRelDir), label+".plist")
}
