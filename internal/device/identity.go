// Package device derives the node's identity from hardware.
package device

import (
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID returns the node identity: the lower three bytes of the first
// hardware address, in decimal, as ESP chip ids are rendered. Nodes
// without a hardware address get a random id that is stable for the
// lifetime of the process.
func ID() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return fallbackID()
	}
	if id, ok := FromInterfaces(ifaces); ok {
		return id
	}
	return fallbackID()
}

// FromInterfaces picks the first up, non-loopback interface with a
// 6-byte hardware address and renders its chip id.
func FromInterfaces(ifaces []net.Interface) (string, bool) {
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagLoopback != 0 || ifc.Flags&net.FlagUp == 0 {
			continue
		}
		if len(ifc.HardwareAddr) != 6 {
			continue
		}
		return ChipID(ifc.HardwareAddr), true
	}
	return "", false
}

// ChipID renders the lower three bytes of a MAC address as a decimal number.
func ChipID(mac net.HardwareAddr) string {
	n := len(mac)
	if n < 3 {
		return ""
	}
	v := uint32(mac[n-3])<<16 | uint32(mac[n-2])<<8 | uint32(mac[n-1])
	return strconv.FormatUint(uint64(v), 10)
}

func fallbackID() string {
	return "node-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
