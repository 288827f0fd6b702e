package process

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProc(t *testing.T, root, pid, cmdLine string) {
	t.Helper()
	dir := filepath.Join(root, pid)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(cmdLine), 0644))
}

func TestProcFSListsNumericEntriesOnly(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, "1", "/sbin/init\x00")
	writeProc(t, root, "412", "dnsmasq\x00-C\x00/data/conf/dnsmasq.conf\x00")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "net"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "self"), 0755))

	src, err := NewProcFS(root)
	require.NoError(t, err)

	pids, err := src.PIDs()
	require.NoError(t, err)
	sort.Strings(pids)
	assert.Equal(t, []string{"1", "412"}, pids)

	cmdLine, err := src.CmdLine("412")
	require.NoError(t, err)
	assert.Equal(t, "dnsmasq -C /data/conf/dnsmasq.conf", cmdLine)
}

func TestProcFSEmptyCommandLine(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, "2", "")

	src, err := NewProcFS(root)
	require.NoError(t, err)

	cmdLine, err := src.CmdLine("2")
	require.NoError(t, err)
	assert.Equal(t, "", cmdLine)
}

func TestProcFSInvalidPid(t *testing.T) {
	src, err := NewProcFS(t.TempDir())
	require.NoError(t, err)

	_, err = src.CmdLine("self")
	assert.Error(t, err)
}

func TestCacheOverProcFS(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, "412", "hostapd\x00/data/conf/hostapd.conf\x00")

	src, err := NewProcFS(root)
	require.NoError(t, err)

	running, err := NewCache(src).IsRunning("hostapd")
	require.NoError(t, err)
	assert.True(t, running)
}
