package fileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVersion(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "version")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestOutdatedMatchingVersion(t *testing.T) {
	assert.False(t, Outdated(writeVersion(t, "@Version=22\n"), "22"))
	assert.False(t, Outdated(writeVersion(t, "# fileset\n# @Version = 22  \n"), "22"))
	assert.False(t, Outdated(writeVersion(t, "@Version=22\n"), " 22 "))
}

func TestOutdatedDifferentVersion(t *testing.T) {
	assert.True(t, Outdated(writeVersion(t, "@Version=21\n"), "22"))
	assert.True(t, Outdated(writeVersion(t, "@Version=\n"), "22"))
	assert.True(t, Outdated(writeVersion(t, "@Version 22\n"), "22"))
}

func TestOutdatedMissingFile(t *testing.T) {
	assert.False(t, Outdated(filepath.Join(t.TempDir(), "version"), "22"))
}

func TestOutdatedMissingMarker(t *testing.T) {
	assert.True(t, Outdated(writeVersion(t, ""), "22"))
	assert.True(t, Outdated(writeVersion(t, "version 22\n"), "22"))
}

func TestOutdatedMarkerBeyondScanDepth(t *testing.T) {
	assert.False(t, Outdated(writeVersion(t, "1\n2\n3\n@Version=22\n"), "22"))
	assert.True(t, Outdated(writeVersion(t, "1\n2\n3\n4\n@Version=22\n"), "22"))
}

func TestOutdatedUnreadable(t *testing.T) {
	assert.True(t, Outdated(t.TempDir(), "22"))
}

func TestInstalledFirstMarkerWins(t *testing.T) {
	v, ok := Installed([]string{"@Version=3", "@Version=4"})
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}
