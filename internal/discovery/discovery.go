// Package discovery implements link-local host announcement and
// discovery over connectionless UDP datagrams on the well-known port
// 42069. It is a simplified, instance-owned descendant of the
// publish/subscribe beacon pattern: one goroutine drives periodic sends
// (Announcer), another drives a receive loop that dedups by (ip, port)
// and calls back on first sight (Discoverer). Unlike a multicast beacon,
// LanForge has no notion of peer groups or subscription filters — every
// datagram on the port is a single fixed wire format — so there is no
// multicast group machinery here, only a plain subnet broadcast.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Port is the well-known UDP port both Announcer and Discoverer bind.
const Port = 42069

// header is the fixed first token of every LanForge discovery datagram.
const header = "LANFORGE_HOST"

// announceInterval is how often an active Announcer resends its datagram.
const announceInterval = 3 * time.Second

// HostInfo is the data carried by one discovery datagram, matching the
// wire payload `LANFORGE_HOST <roomId> <joinCode> <hostClientId> <port>`.
type HostInfo struct {
	RoomId       string
	JoinCode     string
	HostClientId string
	Port         int
}

func (h HostInfo) encode() string {
	return fmt.Sprintf("%s %s %s %s %d\n", header, h.RoomId, h.JoinCode, h.HostClientId, h.Port)
}

func (h HostInfo) valid() error {
	if h.RoomId == "" || h.JoinCode == "" || h.HostClientId == "" {
		return fmt.Errorf("discovery: announcer requires roomId, joinCode and hostClientId")
	}
	return nil
}

// decodeHost parses one datagram payload. It returns ok=false (no error)
// for any payload whose first token is not "LANFORGE_HOST" or whose field
// count or port field is not well-formed, per spec: the discoverer
// silently ignores these rather than surfacing a parse error.
func decodeHost(payload string) (HostInfo, bool) {
	fields := strings.Fields(payload)
	if len(fields) < 5 || fields[0] != header {
		return HostInfo{}, false
	}
	port, err := strconv.Atoi(fields[4])
	if err != nil {
		return HostInfo{}, false
	}
	return HostInfo{
		RoomId:       fields[1],
		JoinCode:     fields[2],
		HostClientId: fields[3],
		Port:         port,
	}, true
}

// DiscoveredHost is what a Discoverer reports to its callback: a HostInfo
// plus the sender's observed address and when it was last seen.
type DiscoveredHost struct {
	HostInfo
	IP       net.IP
	Port     int // UDP source port the datagram arrived from, not HostInfo.Port
	LastSeen time.Time
}

func broadcastAddr(port int) (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp4", fmt.Sprintf("255.255.255.255:%d", port))
}
