package patch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dnsmasqConf = `# dnsmasq config
domain-needed
no-resolv
server=4.4.4.4
server=8.8.8.8

dhcp-range=192.168.2.100,192.168.2.105,12h
dhcp-leasefile=/sdcard/android.tether/var/dnsmasq.leases
pid-file=/sdcard/android.tether/var/dnsmasq.pid
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestExactKey(t *testing.T) {
	in := []string{"ssid=old", "psk=\"secret\"", "key_mgmt=WPA-PSK", "ssidx=keep", "  ssid=indented", "noequals"}
	out, changed := Apply(in, ExactKey{Values: map[string]string{"ssid": "new", "psk": "\"other\""}})

	assert.True(t, changed)
	assert.Equal(t, []string{"ssid=new", "psk=\"other\"", "key_mgmt=WPA-PSK", "ssidx=keep", "  ssid=indented", "noequals"}, out)
}

func TestExactKeySplitsOnFirstEquals(t *testing.T) {
	out, changed := Apply([]string{"wep_key0=a=b"}, ExactKey{Values: map[string]string{"wep_key0": "c=d"}})
	assert.True(t, changed)
	assert.Equal(t, []string{"wep_key0=c=d"}, out)
}

func TestPositionalDNS(t *testing.T) {
	in := []string{"no-resolv", "server=1.1.1.1", "", "server=2.2.2.2", "server=3.3.3.3"}
	out, changed := Apply(in, Positional{Marker: "server", Key: "server", Values: []string{"208.67.220.220", "208.67.222.222"}})

	assert.True(t, changed)
	assert.Equal(t, []string{
		"no-resolv",
		"server=208.67.220.220",
		"",
		"server=208.67.222.222",
		"server=3.3.3.3",
	}, out)
}

func TestPositionalIgnoresOriginalContent(t *testing.T) {
	// any line containing the marker counts, whatever it looked like
	in := []string{"# upstream server list", "server=9.9.9.9"}
	out, _ := Apply(in, Positional{Marker: "server", Key: "server", Values: []string{"a", "b"}})
	assert.Equal(t, []string{"server=a", "server=b"}, out)
}

func TestPositionalRestartsPerApplication(t *testing.T) {
	rule := Positional{Marker: "server", Key: "server", Values: []string{"a"}}
	out1, _ := Apply([]string{"server=x"}, rule)
	out2, _ := Apply([]string{"server=y"}, rule)
	assert.Equal(t, []string{"server=a"}, out1)
	assert.Equal(t, []string{"server=a"}, out2)
}

func TestPositionalNoValues(t *testing.T) {
	in := []string{"server=1.1.1.1"}
	out, changed := Apply(in, Positional{Marker: "server", Key: "server"})
	assert.False(t, changed)
	assert.Equal(t, in, out)
}

func TestSubstring(t *testing.T) {
	in := []string{"ssid=AndroidTether", "channel=6", "txpower=disabled", "# comment"}
	out, changed := Apply(in, Substring{Values: map[string]string{"ssid": "MyNet", "channel": "11"}})

	assert.True(t, changed)
	assert.Equal(t, []string{"ssid=MyNet", "channel=11", "txpower=disabled", "# comment"}, out)
}

func TestSubstringMatchesAnywhere(t *testing.T) {
	out, _ := Apply([]string{"#ssid is set below"}, Substring{Values: map[string]string{"ssid": "x"}})
	assert.Equal(t, []string{"ssid=x"}, out)
}

func TestSubstringOverlappingNamesLongestFirst(t *testing.T) {
	rule := Substring{Values: map[string]string{"ssid": "short", "broadcast_ssid": "long"}}
	out, _ := Apply([]string{"broadcast_ssid=0", "ssid=net"}, rule)
	assert.Equal(t, []string{"broadcast_ssid=long", "ssid=short"}, out)

	// deterministic regardless of map iteration order
	for i := 0; i < 20; i++ {
		again, _ := Apply([]string{"broadcast_ssid=0", "ssid=net"}, rule)
		assert.Equal(t, out, again)
	}
}

func TestSubstringValueContainingAnotherName(t *testing.T) {
	rule := Substring{Values: map[string]string{"ssid": "my_channel", "channel": "11"}}

	once, _ := Apply([]string{"ssid=old", "channel=6"}, rule)
	assert.Equal(t, []string{"ssid=my_channel", "channel=11"}, once)

	// the rewritten ssid line now mentions "channel", which is the longer name
	twice, changed := Apply(once, rule)
	assert.True(t, changed)
	assert.Equal(t, []string{"channel=11", "channel=11"}, twice)
}

func TestSubstringEmptyNameIgnored(t *testing.T) {
	in := []string{"a=1"}
	out, changed := Apply(in, Substring{Values: map[string]string{"": "x"}})
	assert.False(t, changed)
	assert.Equal(t, in, out)
}

func TestReplace(t *testing.T) {
	in := []string{"domain-needed", "dhcp-range=192.168.2.100,192.168.2.105,12h"}
	out, changed := Apply(in, Replace{Marker: "dhcp-range", Line: "dhcp-range=10.5.5.100,10.5.5.105,12h"})
	assert.True(t, changed)
	assert.Equal(t, []string{"domain-needed", "dhcp-range=10.5.5.100,10.5.5.105,12h"}, out)
}

func TestPathKeys(t *testing.T) {
	rule := PathKeys{
		Dir: "/data/data/android.tether",
		Values: map[string]string{
			"dhcp-leasefile": "/data/data/android.tether/var/dnsmasq.leases",
			"pid-file":       "/data/data/android.tether/var/dnsmasq.pid",
		},
	}
	in := []string{
		"dhcp-leasefile=/sdcard/var/dnsmasq.leases",
		"pid-file=/data/data/android.tether/var/dnsmasq.pid",
		"server=1.1.1.1",
	}
	out, changed := Apply(in, rule)
	assert.True(t, changed)
	assert.Equal(t, []string{
		"dhcp-leasefile=/data/data/android.tether/var/dnsmasq.leases",
		"pid-file=/data/data/android.tether/var/dnsmasq.pid",
		"server=1.1.1.1",
	}, out)
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	in := []string{"server=1.1.1.1"}
	_, _ = Apply(in, Positional{Marker: "server", Key: "server", Values: []string{"x"}})
	assert.Equal(t, []string{"server=1.1.1.1"}, in)
}

func TestRuleKinds(t *testing.T) {
	assert.Equal(t, "exact_key", ExactKey{}.Kind().String())
	assert.Equal(t, "positional", Positional{}.Kind().String())
	assert.Equal(t, "substring", Substring{}.Kind().String())
	assert.Equal(t, "replace", Replace{}.Kind().String())
	assert.Equal(t, "path_keys", PathKeys{}.Kind().String())
	assert.Equal(t, "token", Token{}.Kind().String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestFileNoMatchLeavesFileUntouched(t *testing.T) {
	path := writeFile(t, "dnsmasq.conf", dnsmasqConf)
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	changed, err := File(path, ExactKey{Values: map[string]string{"nonexistent": "x"}})
	require.NoError(t, err)
	assert.False(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, dnsmasqConf, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))
}

func TestFileIdempotent(t *testing.T) {
	path := writeFile(t, "dnsmasq.conf", dnsmasqConf)
	rule := Positional{Marker: "server", Key: "server", Values: []string{"208.67.220.220", "208.67.222.222"}}

	changed, err := File(path, rule)
	require.NoError(t, err)
	assert.True(t, changed)
	once, err := os.ReadFile(path)
	require.NoError(t, err)

	changed, err = File(path, rule)
	require.NoError(t, err)
	assert.False(t, changed)
	twice, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
	assert.Contains(t, string(once), "server=208.67.220.220\nserver=208.67.222.222\n")
	assert.Contains(t, string(once), "dhcp-range=192.168.2.100,192.168.2.105,12h\n")
}

func TestFileRewriteNormalizesLineEndings(t *testing.T) {
	suffix := "netmask 255.255.255.0 up >> $tetherlog 2>> $tetherlog"
	path := writeFile(t, "blue-up.sh",
		"#!/system/bin/sh\r\necho up  \r\nifconfig bnep0 192.168.2.254 "+suffix+"\r\nexit 0")

	changed, err := File(path, Token{Contains: "ifconfig bnep0", Suffix: suffix, After: "bnep0", Value: "10.0.0.254"})
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#!/system/bin/sh\necho up\nifconfig bnep0 10.0.0.254 "+suffix+"\nexit 0\n", string(data))
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing.conf"), Replace{Marker: "x", Line: "y"})
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	suffix := "netmask 255.255.255.0 up >> $tetherlog 2>> $tetherlog"
	rule := Token{Contains: "ifconfig bnep0", Suffix: suffix, After: "bnep0", Value: "10.5.5.254"}
	in := []string{
		"#!/system/bin/sh",
		"ifconfig bnep0 192.168.2.254 netmask 255.255.255.0 up >> $tetherlog 2>> $tetherlog",
		"ifconfig bnep0 down",
		"ifconfig wlan0 192.168.2.254 netmask 255.255.255.0 up >> $tetherlog 2>> $tetherlog",
	}
	out, changed := Apply(in, rule)

	assert.True(t, changed)
	assert.Equal(t, "ifconfig bnep0 10.5.5.254 netmask 255.255.255.0 up >> $tetherlog 2>> $tetherlog", out[1])
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[2], out[2])
	assert.Equal(t, in[3], out[3])
}

func TestTokenKeepsSpacing(t *testing.T) {
	rule := Token{Contains: "ifconfig", Suffix: "up", After: "bnep0", Value: "GW"}
	out, _ := Apply([]string{"  ifconfig  bnep0 1.2.3.4  up"}, rule)
	assert.Equal(t, []string{"  ifconfig  bnep0 GW  up"}, out)
}

func TestTokenAfterIsLastField(t *testing.T) {
	rule := Token{Contains: "bnep0", Suffix: "bnep0", After: "bnep0", Value: "GW"}
	in := []string{"ifconfig bnep0"}
	out, changed := Apply(in, rule)
	assert.False(t, changed)
	assert.Equal(t, in, out)
}
