package models

import (
	"time"
)

// UnknownClientName is the placeholder dnsmasq writes when a client sent no hostname
const UnknownClientName = "*"

// Client represents one active DHCP lease on the tethered LAN
type Client struct {
	ConnectedAt time.Time `json:"connectedAt" yaml:"connectedAt"`
	MAC         string    `json:"mac" yaml:"mac"`
	IP          string    `json:"ip" yaml:"ip"`
	Name        string    `json:"name" yaml:"name"`
	Connected   bool      `json:"connected" yaml:"connected"`
}

// HasName reports whether the client announced a hostname
func (c Client) HasName() bool {
	return c.Name != "" && c.Name != UnknownClientName
}

// Traffic holds byte counters summed over a set of interfaces
type Traffic struct {
	RxBytes uint64 `json:"rxBytes" yaml:"rxBytes"`
	TxBytes uint64 `json:"txBytes" yaml:"txBytes"`
}

// Status summarizes gateway state for the API and CLI
type Status struct {
	FilesetOutdated bool       `json:"filesetOutdated" yaml:"filesetOutdated"`
	NATEnabled      bool       `json:"natEnabled" yaml:"natEnabled"`
	Netfilter       bool       `json:"netfilter" yaml:"netfilter"`
	Rooted          bool       `json:"rooted" yaml:"rooted"`
	KernelVersion   string     `json:"kernelVersion" yaml:"kernelVersion"`
	LanNetwork      string     `json:"lanNetwork" yaml:"lanNetwork"`
	DnsmasqRunning  bool       `json:"dnsmasqRunning" yaml:"dnsmasqRunning"`
	ConfigModified  *time.Time `json:"configModified,omitempty" yaml:"configModified,omitempty"`
	Clients         int        `json:"clients" yaml:"clients"`
	Traffic         *Traffic   `json:"traffic,omitempty" yaml:"traffic,omitempty"`
}
