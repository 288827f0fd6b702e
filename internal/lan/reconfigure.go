package lan

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"tetherd/internal/lines"
	"tetherd/internal/patch"
)

// DefaultNetwork is reported when no subnet file is installed
const DefaultNetwork = "192.168.2.0/24"

// Step names one stage of a reconfiguration
type Step string

const (
	StepDerive      Step = "derive"
	StepNetworkFile Step = "network-file"
	StepScript      Step = "bring-up-script"
	StepDnsmasq     Step = "dnsmasq-conf"
)

// StepError reports the failing step of a reconfiguration. Files in
// Committed were already rewritten and are not rolled back.
type StepError struct {
	Step      Step
	Committed []string
	Err       error
}

func (e *StepError) Error() string {
	if len(e.Committed) == 0 {
		return fmt.Sprintf("lan reconfiguration failed at %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("lan reconfiguration failed at %s (already written: %s): %v",
		e.Step, strings.Join(e.Committed, ", "), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Paths locates the three files kept consistent with the LAN subnet
type Paths struct {
	NetworkFile string
	Script      string
	Dnsmasq     string
}

// Reconfigurator rewrites the LAN subnet across the gateway's config files
type Reconfigurator struct {
	paths  Paths
	iface  string
	suffix string
}

// NewReconfigurator creates a reconfigurator. The bring-up script line that
// gets the new gateway contains "ifconfig <iface>" and ends with suffix.
func NewReconfigurator(paths Paths, iface, suffix string) *Reconfigurator {
	return &Reconfigurator{
		paths:  paths,
		iface:  iface,
		suffix: suffix,
	}
}

// Reconfigure moves the LAN to prefix. Files are written one by one:
// the subnet file, the bring-up script, then the dnsmasq config. A failure
// stops at that file and leaves the earlier ones written.
func (r *Reconfigurator) Reconfigure(prefix string) (Subnet, error) {
	subnet, err := Derive(prefix)
	if err != nil {
		return Subnet{}, &StepError{Step: StepDerive, Err: err}
	}

	logger := log.WithFields(log.Fields{
		"network": subnet.Network().String(),
		"gateway": subnet.Gateway.String(),
	})
	var committed []string

	content := []string{
		"network=" + subnet.Network().String(),
		"gateway=" + subnet.Gateway.String(),
	}
	if err := lines.Write(r.paths.NetworkFile, content); err != nil {
		logger.WithError(err).Error("Unable to update subnet file with new lan-configuration")
		return subnet, &StepError{Step: StepNetworkFile, Err: err}
	}
	committed = append(committed, r.paths.NetworkFile)

	script := patch.Token{
		Contains: "ifconfig " + r.iface,
		Suffix:   r.suffix,
		After:    r.iface,
		Value:    subnet.Gateway.String(),
	}
	if _, err := patch.File(r.paths.Script, script); err != nil {
		logger.WithError(err).Error("Unable to update bring-up script with new lan-configuration")
		return subnet, &StepError{Step: StepScript, Committed: committed, Err: err}
	}
	committed = append(committed, r.paths.Script)

	dhcpRange := patch.Replace{
		Marker: "dhcp-range",
		Line:   "dhcp-range=" + subnet.DHCPRange(),
	}
	if _, err := patch.File(r.paths.Dnsmasq, dhcpRange); err != nil {
		logger.WithError(err).Error("Unable to update dnsmasq config with new lan-configuration")
		return subnet, &StepError{Step: StepDnsmasq, Committed: committed, Err: err}
	}

	logger.Info("LAN reconfigured")
	return subnet, nil
}

// ReadNetwork returns the configured LAN as "<network>/24", or DefaultNetwork
// when the subnet file is missing or has no network key.
func ReadNetwork(path string) string {
	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		log.WithError(err).WithField("path", path).Debug("Skipping lan config file")
		return DefaultNetwork
	}

	network := cfg.Section("").Key("network").String()
	if network == "" {
		return DefaultNetwork
	}
	return network + "/24"
}
