// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import "net"

// Port is the well-known mDNS UDP port (RFC 6762 §3).
const Port = 5353

// V4Multicast and V6Multicast are the mDNS multicast groups (RFC 6762
// §3). The scheduler always addresses V4Multicast; a transceiver with
// v6-capable sockets substitutes V6Multicast for those sockets, per
// spec §4.D.
var (
	V4Multicast = &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: Port}
	V6Multicast = &net.UDPAddr{IP: net.ParseIP("ff02::fb"), Port: Port}
)

// isV4MulticastGroup reports whether addr is the well-known v4 mDNS
// group, which is what lets a transceiver decide to substitute
// V6Multicast for its v6 sockets (spec §4.D).
func isV4MulticastGroup(addr *net.UDPAddr) bool {
	return addr != nil && addr.IP.Equal(V4Multicast.IP)
}
