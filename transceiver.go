// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"net"

	"github.com/web0316/netconnector/internal/wire"
)

// InboundFunc is delivered every datagram a Transceiver receives, already
// parsed, along with its source address and the index of the interface
// it arrived on (spec §4.D).
type InboundFunc func(msg *wire.Message, src *net.UDPAddr, ifaceIndex int)

// Transceiver abstracts link-local multicast I/O away from the Engine
// (spec §4.D). The engine never touches a socket directly; it is
// out-of-scope plumbing the core binds to through this contract. The
// default implementation is udpTransceiver (udp_transceiver.go); tests
// substitute a loopback double (see engine_test.go).
type Transceiver interface {
	// EnableInterface marks a link-local interface for use. family is
	// "ip4" or "ip6"; an interface may be enabled for both.
	EnableInterface(name string, family string) error

	// Start joins the mDNS multicast groups on every enabled interface,
	// binds UDP 5353, and delivers every received datagram to inbound.
	// It returns false if no interface could be initialised.
	Start(hostFullName wire.Name, inbound InboundFunc) bool

	// SendMessage serialises and sends msg. ifaceIndex == 0 means "every
	// enabled interface"; a destination equal to V4Multicast is
	// internally substituted with V6Multicast on v6-only sockets.
	SendMessage(msg *wire.Message, dest *net.UDPAddr, ifaceIndex int) error

	// Stop leaves the multicast groups and releases all sockets.
	Stop()
}
