// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"hash/fnv"
	"time"

	"github.com/web0316/netconnector/internal/wire"
)

// addressTieBreakMax is the upper bound of the random delay an
// AddressResponder adds before answering, per mDNS tie-break policy
// (spec §4.G).
const addressTieBreakMax = 120 * time.Millisecond

// addressResponder answers A/AAAA/ANY queries for the engine's own
// host name. It is pure-reactive: it never posts questions and has no
// Idle/Active/Ending lifecycle (spec §4.G "State & transitions").
type addressResponder struct {
	host agentHost
	seq  uint32
}

func newAddressResponder(host agentHost) *addressResponder {
	return &addressResponder{host: host}
}

func (r *addressResponder) Start()        {}
func (r *addressResponder) Quit()         {}
func (r *addressResponder) Wake()         {}
func (r *addressResponder) EndOfMessage() {}

func (r *addressResponder) ReceiveQuestion(q wire.Question) {
	if !q.Name.Equal(r.host.hostFullName()) {
		return
	}
	switch q.Type {
	case wire.TypeA, wire.TypeAAAA, wire.TypeANY:
	default:
		return
	}
	r.seq++
	when := r.host.now().Add(tieBreakDelay(r.seq))
	r.host.sendAddresses(SectionAnswer, when)
}

func (r *addressResponder) ReceiveResource(*wire.Resource, ResourceSection) {}

// tieBreakDelay derives a small deterministic delay from seq so that
// repeated questions in the same burst don't all answer at identical
// deadlines (mDNS tie-break policy), without pulling in math/rand.
func tieBreakDelay(seq uint32) time.Duration {
	h := fnv.New32a()
	_, _ = h.Write([]byte{byte(seq), byte(seq >> 8), byte(seq >> 16), byte(seq >> 24)})
	frac := float64(h.Sum32()%1000) / 1000.0
	return time.Duration(frac * float64(addressTieBreakMax))
}
