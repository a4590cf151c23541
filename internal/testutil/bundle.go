package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// BundleFixture describes an on-disk .app bundle for locator and orchestration tests.
type BundleFixture struct {
	Identifier string
	Version    string
	Build      string
	Executable string
	// RawManifest, when set, replaces the generated Info.plist verbatim.
	RawManifest string
	// SkipExecutable omits Contents/MacOS/<Executable>.
	SkipExecutable bool
	// DaemonLabel, when set, writes Contents/Library/LaunchDaemons/<label>.plist.
	DaemonLabel string
}

const infoPlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleIdentifier</key>
	<string>%s</string>
	<key>CFBundleExecutable</key>
	<string>%s</string>
	<key>CFBundleShortVersionString</key>
	<string>%s</string>
	<key>CFBundleVersion</key>
	<string>%s</string>
</dict>
</plist>
`

// DaemonPlist returns the launchd plist content written for label.
func DaemonPlist(label string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>KeepAlive</key>
	<true/>
</dict>
</plist>
`, label)
}

// WriteBundle creates the bundle at path and returns path.
func WriteBundle(t *testing.T, path string, fx BundleFixture) string {
	t.Helper()
	if fx.Executable == "" {
		fx.Executable = "SoftUSB"
	}
	contents := filepath.Join(path, "Contents")
	if err := os.MkdirAll(filepath.Join(contents, "MacOS"), 0o755); err != nil {
		t.Fatalf("mkdir bundle: %v", err)
	}
	manifest := fx.RawManifest
	if manifest == "" {
		manifest = fmt.Sprintf(infoPlistTemplate, fx.Identifier, fx.Executable, fx.Version, fx.Build)
	}
	if err := os.WriteFile(filepath.Join(contents, "Info.plist"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if !fx.SkipExecutable {
		WriteStub(t, filepath.Join(contents, "MacOS"), fx.Executable)
	}
	if fx.DaemonLabel != "" {
		dir := filepath.Join(contents, "Library", "LaunchDaemons")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir daemons: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, fx.DaemonLabel+".plist"), []byte(DaemonPlist(fx.DaemonLabel)), 0o644); err != nil {
			t.Fatalf("write daemon plist: %v", err)
		}
	}
	return path
}

// WriteReceipt writes an install receipt JSON document into dir.
func WriteReceipt(t *testing.T, dir string, name string, receipt map[string]any) {
	t.Helper()
	data, err := json.Marshal(receipt)
	if err != nil {
		t.Fatalf("marshal receipt: %v", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir receipt dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write receipt: %v", err)
	}
}

// SnapshotTree returns relative path -> content for every regular file under root.
func SnapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("snapshot tree: %v", err)
	}
	return out
}
