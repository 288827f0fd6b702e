package tether

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"tetherd/internal/config"
	"tetherd/internal/fileset"
	"tetherd/internal/lan"
	"tetherd/internal/leases"
	"tetherd/internal/lines"
	"tetherd/internal/metrics"
	"tetherd/internal/patch"
	"tetherd/internal/process"
	"tetherd/internal/system"
	"tetherd/pkg/models"
)

// undefinedProp is what some builds report for an unset DNS property
const undefinedProp = "undefined"

// netfilterFeature marks a kernel built with NAT support
const netfilterFeature = "CONFIG_NETFILTER="

// Paths locates every file of the installed fileset
type Paths struct {
	Dnsmasq       string
	WpaSupplicant string
	Wifi          string
	LanNetwork    string
	Version       string
	Whitelist     string
	BlueUp        string
	Leases        string
	Pid           string
}

// PathsFor lays out the fileset under dataDir
func PathsFor(dataDir string) Paths {
	return Paths{
		Dnsmasq:       filepath.Join(dataDir, "conf", "dnsmasq.conf"),
		WpaSupplicant: filepath.Join(dataDir, "conf", "wpa_supplicant.conf"),
		Wifi:          filepath.Join(dataDir, "conf", "wifi.conf"),
		LanNetwork:    filepath.Join(dataDir, "conf", "lan_network.conf"),
		Version:       filepath.Join(dataDir, "conf", "version"),
		Whitelist:     filepath.Join(dataDir, "conf", "whitelist_mac.conf"),
		BlueUp:        filepath.Join(dataDir, "bin", "blue-up.sh"),
		Leases:        filepath.Join(dataDir, "var", "dnsmasq.leases"),
		Pid:           filepath.Join(dataDir, "var", "dnsmasq.pid"),
	}
}

// Core owns every mutation of the gateway configuration. Config writes are
// serialized by one mutex; the process cache has its own.
type Core struct {
	cfg     *config.Config
	paths   Paths
	sys     *system.System
	procs   *process.Cache
	lan     *lan.Reconfigurator
	metrics *metrics.Metrics

	mu sync.Mutex
}

// New composes a Core. m may be nil when metrics are disabled.
func New(cfg *config.Config, sys *system.System, procs *process.Cache, m *metrics.Metrics) *Core {
	paths := PathsFor(cfg.DataDir)
	c := &Core{
		cfg:   cfg,
		paths: paths,
		sys:   sys,
		procs: procs,
		lan: lan.NewReconfigurator(lan.Paths{
			NetworkFile: paths.LanNetwork,
			Script:      paths.BlueUp,
			Dnsmasq:     paths.Dnsmasq,
		}, cfg.Iface, cfg.IfaceSuffix),
		metrics: m,
	}

	if m != nil {
		procs.OnRead(func(n int) {
			m.ProcessScans.Inc()
			m.CmdLineReads.Add(float64(n))
		})
	}
	return c
}

// Paths returns the fileset layout
func (c *Core) Paths() Paths {
	return c.paths
}

// FilesetInstalled reports whether a fileset has been installed at all
func (c *Core) FilesetInstalled() bool {
	return lines.Exists(c.paths.Version)
}

// PrepareBinaries makes the fileset's helper binaries executable
func (c *Core) PrepareBinaries(ctx context.Context) error {
	return c.sys.ChmodBin(ctx, c.cfg.DataDir)
}

// RootCommand runs command as root
func (c *Core) RootCommand(ctx context.Context, command string) error {
	return c.sys.RootCommand(ctx, command)
}

// Leases returns the clients currently holding a DHCP lease
func (c *Core) Leases() (map[string]models.Client, error) {
	clients, err := leases.ParseFile(c.paths.Leases)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.Clients.Set(float64(len(clients)))
	}
	return clients, nil
}

// IsProcessRunning reports whether any command line contains name
func (c *Core) IsProcessRunning(name string) (bool, error) {
	return c.procs.IsRunning(name)
}

// FilesetOutdated reports whether the installed fileset must be reinstalled
func (c *Core) FilesetOutdated() bool {
	outdated := fileset.Outdated(c.paths.Version, c.cfg.FilesetVersion)
	if c.metrics != nil {
		c.metrics.FilesetOutdated.Set(boolFloat(outdated))
	}
	return outdated
}

// DNSServers returns the upstream DNS servers from the system properties,
// falling back to the configured defaults.
func (c *Core) DNSServers(ctx context.Context) []string {
	servers := []string{
		c.sys.GetProp(ctx, "net.dns1"),
		c.sys.GetProp(ctx, "net.dns2"),
	}
	defaults := []string{c.cfg.DNS1, c.cfg.DNS2}
	for i, server := range servers {
		if server == "" || server == undefinedProp {
			servers[i] = defaults[i]
		}
	}
	return servers
}

// UpdateDNS points dnsmasq's server= lines at the current DNS servers
func (c *Core) UpdateDNS(ctx context.Context) (bool, error) {
	servers := c.DNSServers(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	changed, err := c.patch(c.paths.Dnsmasq, patch.Positional{
		Marker: "server",
		Key:    "server",
		Values: servers,
	})
	logger := log.WithField("servers", strings.Join(servers, ","))
	if err == nil && changed {
		logger.Info("Writing new DNS-Servers")
	} else if err == nil {
		logger.Debug("No need to update DNS-Servers")
	}
	return changed, err
}

// UpdateDnsmasqPaths repoints dnsmasq's lease and pid files into the data directory
func (c *Core) UpdateDnsmasqPaths() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.patch(c.paths.Dnsmasq, patch.PathKeys{
		Dir: c.cfg.DataDir,
		Values: map[string]string{
			"dhcp-leasefile": c.paths.Leases,
			"pid-file":       c.paths.Pid,
		},
	})
}

// WpaSupplicantExists reports whether a wpa_supplicant config is installed
func (c *Core) WpaSupplicantExists() bool {
	return lines.Exists(c.paths.WpaSupplicant)
}

// RemoveWpaSupplicant deletes the wpa_supplicant config
func (c *Core) RemoveWpaSupplicant() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.Remove(c.paths.WpaSupplicant)
}

// WpaSupplicant returns the key/value pairs of the wpa_supplicant config
func (c *Core) WpaSupplicant() (map[string]string, error) {
	content, err := lines.Read(c.paths.WpaSupplicant)
	if err != nil {
		return nil, err
	}
	return readPairs(content), nil
}

// WriteWpaSupplicant replaces the values of keys already present in the
// wpa_supplicant config. Unknown keys are not added.
func (c *Core) WriteWpaSupplicant(values map[string]string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.patch(c.paths.WpaSupplicant, patch.ExactKey{Values: values})
}

// Wlan returns the access point settings from wifi.conf
func (c *Core) Wlan() map[string]string {
	return readPairs(lines.ReadTolerant(c.paths.Wifi))
}

// WriteWlan updates wifi.conf; a line mentioning a setting name anywhere
// is replaced by name=value.
func (c *Core) WriteWlan(values map[string]string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.patch(c.paths.Wifi, patch.Substring{Values: values})
}

// WriteWlanValue updates a single wifi.conf setting
func (c *Core) WriteWlanValue(name, value string) (bool, error) {
	return c.WriteWlan(map[string]string{name: value})
}

// LanNetwork returns the configured LAN in CIDR form
func (c *Core) LanNetwork() string {
	return lan.ReadNetwork(c.paths.LanNetwork)
}

// WriteLan moves the LAN to the given network prefix. See lan.Reconfigurator
// for the partial-failure behavior.
func (c *Core) WriteLan(prefix string) (lan.Subnet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subnet, err := c.lan.Reconfigure(prefix)
	if c.metrics != nil {
		step := "ok"
		var stepErr *lan.StepError
		if errors.As(err, &stepErr) {
			step = string(stepErr.Step)
		}
		c.metrics.Reconfigurations.WithLabelValues(step).Inc()
	}
	return subnet, err
}

// WhitelistExists reports whether MAC whitelisting is enabled
func (c *Core) WhitelistExists() bool {
	return lines.Exists(c.paths.Whitelist)
}

// RemoveWhitelist disables MAC whitelisting. Removing a missing whitelist
// is not an error.
func (c *Core) RemoveWhitelist() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.paths.Whitelist); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove whitelist: %w", err)
	}
	return nil
}

// TouchWhitelist enables MAC whitelisting, keeping existing entries
func (c *Core) TouchWhitelist() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.OpenFile(c.paths.Whitelist, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create whitelist: %w", err)
	}
	return file.Close()
}

// SaveWhitelist replaces the whitelist with macs
func (c *Core) SaveWhitelist(macs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lines.Write(c.paths.Whitelist, macs)
}

// Whitelist returns the whitelisted MAC addresses
func (c *Core) Whitelist() []string {
	macs := make([]string, 0)
	for _, line := range lines.ReadTolerant(c.paths.Whitelist) {
		if mac := strings.TrimSpace(line); mac != "" {
			macs = append(macs, mac)
		}
	}
	return macs
}

// Status collects the gateway state shown by the API and CLI
func (c *Core) Status() models.Status {
	status := models.Status{
		FilesetOutdated: c.FilesetOutdated(),
		NATEnabled:      c.sys.NATEnabled(),
		Rooted:          c.sys.HasRoot(),
		LanNetwork:      c.LanNetwork(),
	}

	if v, err := c.sys.KernelVersion(); err == nil {
		status.KernelVersion = v
	}
	if ok, err := c.sys.HasKernelFeature(netfilterFeature); err == nil {
		status.Netfilter = ok
	} else {
		log.WithError(err).Debug("Kernel config not available")
	}
	if modified, ok := system.ModifiedTime(c.paths.Dnsmasq); ok {
		status.ConfigModified = &modified
	}
	if running, err := c.procs.IsRunning("bin/dnsmasq"); err == nil {
		status.DnsmasqRunning = running
	} else {
		log.WithError(err).Warn("Failed to scan processes")
	}
	if clients, err := c.Leases(); err == nil {
		status.Clients = len(clients)
	}
	if c.cfg.TrafficIface != "" {
		if traffic, err := c.sys.DataTraffic(c.cfg.TrafficIface); err == nil {
			status.Traffic = &traffic
		}
	}
	return status
}

// patch applies rule to path and records the outcome. Callers hold c.mu.
func (c *Core) patch(path string, rule patch.Rule) (bool, error) {
	changed, err := patch.File(path, rule)
	if c.metrics != nil {
		file := filepath.Base(path)
		if err != nil {
			c.metrics.PatchErrors.WithLabelValues(file).Inc()
		} else {
			c.metrics.Patches.WithLabelValues(file, strconv.FormatBool(changed)).Inc()
		}
	}
	return changed, err
}

// readPairs collects trimmed key=value pairs, skipping lines with an empty side
func readPairs(content []string) map[string]string {
	pairs := make(map[string]string)
	for _, line := range content {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pairs[key] = value
	}
	return pairs
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
