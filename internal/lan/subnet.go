package lan

import (
	"fmt"
	"strings"

	"inet.af/netaddr"
)

// LeaseTime is the dnsmasq lease duration written into dhcp-range
const LeaseTime = "12h"

const (
	gatewayHost   = 254
	poolStartHost = 100
	poolEndHost   = 105
)

// Subnet is the /24 LAN derived from a network prefix
type Subnet struct {
	Prefix  netaddr.IPPrefix
	Gateway netaddr.IP
	Pool    netaddr.IPRange
}

// Derive computes the LAN addresses for a prefix of three octets ("10.5.5").
// A full dotted quad is accepted too, its last octet is ignored.
func Derive(prefix string) (Subnet, error) {
	parts := strings.Split(strings.TrimSpace(prefix), ".")
	switch len(parts) {
	case 3:
		parts = append(parts, "0")
	case 4:
		parts[3] = "0"
	default:
		return Subnet{}, fmt.Errorf("invalid network prefix %q: want three octets", prefix)
	}

	ip, err := netaddr.ParseIP(strings.Join(parts, "."))
	if err != nil || !ip.Is4() {
		return Subnet{}, fmt.Errorf("invalid network prefix %q", prefix)
	}

	o := ip.As4()
	return Subnet{
		Prefix:  netaddr.IPPrefixFrom(ip, 24),
		Gateway: netaddr.IPv4(o[0], o[1], o[2], gatewayHost),
		Pool: netaddr.IPRangeFrom(
			netaddr.IPv4(o[0], o[1], o[2], poolStartHost),
			netaddr.IPv4(o[0], o[1], o[2], poolEndHost),
		),
	}, nil
}

// Network returns the network address, a.b.c.0
func (s Subnet) Network() netaddr.IP {
	return s.Prefix.IP()
}

// DHCPRange returns the value of dnsmasq's dhcp-range directive
func (s Subnet) DHCPRange() string {
	return fmt.Sprintf("%s,%s,%s", s.Pool.From(), s.Pool.To(), LeaseTime)
}

func (s Subnet) String() string {
	return s.Prefix.String()
}
