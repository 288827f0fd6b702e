package utils

import (
	"encoding/binary"
	"net"
	"strings"
)

// IPToInt converts an IPv4 address string to a 32-bit integer for sorting.
// Anything that is not IPv4 sorts first.
func IPToInt(s string) uint32 {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return 0
	}
	return binary.BigEndian.Uint32(ip)
}

// NormalizeMAC normalizes a MAC address string to lowercase with colons
func NormalizeMAC(mac string) string {
	if hwAddr, err := net.ParseMAC(mac); err == nil {
		return hwAddr.String()
	}
	return strings.ToLower(mac)
}
