package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

func TestParseManifest_BinaryPlist(t *testing.T) {
	data, err := plist.Marshal(map[string]string{
		"CFBundleIdentifier":         " com.example.softusb ",
		"CFBundleShortVersionString": "1.4.0",
		"CFBundleVersion":            "140",
	}, plist.BinaryFormat)
	require.NoError(t, err)

	m, err := parseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, "com.example.softusb", m.Identifier)
	assert.Equal(t, "1.4.0", m.ShortVersion)
	assert.Equal(t, "140", m.Build)
	assert.Equal(t, "SoftUSB", m.executableName("/Applications/SoftUSB.app"))
}

func TestParseManifest_Malformed(t *testing.T) {
	_, err := parseManifest([]byte("<plist><dict><key>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse Info.plist")
}

func TestDaemonPlistPath(t *testing.T) {
	assert.Equal(t,
		"/Applications/SoftUSB.app/Contents/Library/LaunchDaemons/homebrew.mxcl.softusb.plist",
		DaemonPlistPath("/Applications/SoftUSB.app", "homebrew.mxcl.softusb"))
}

func TestParseProvenance(t *testing.T) {
	p, err := parseProvenance([]byte(`{"install_version":"1.2.3","install_prefix":"/opt/homebrew/Cellar/softusb","installed_at":1,"installed_on_request":true}`))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", p.InstallVersion)
	assert.True(t, p.OnRequest)

	_, err = parseProvenance([]byte(`{"install_version":"1.2.3","install_prefix":"relative"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InstallPrefix failed startswith=/")

	_, err = parseProvenance([]byte(`{`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse install receipt")
}
