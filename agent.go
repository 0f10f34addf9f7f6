// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"time"

	"github.com/google/uuid"

	"github.com/web0316/netconnector/internal/wire"
)

// ResourceSection identifies which section of a message a resource
// arrived in or is destined for. Expired is never placed on the wire:
// it is the local-only channel the renewer uses to tell agents a
// record they relied on has died (spec §4.E "Local propagation").
type ResourceSection int

const (
	SectionAnswer ResourceSection = iota
	SectionAuthority
	SectionAdditional
	SectionExpired
)

func (s ResourceSection) String() string {
	switch s {
	case SectionAnswer:
		return "answer"
	case SectionAuthority:
		return "authority"
	case SectionAdditional:
		return "additional"
	case SectionExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Agent is a pluggable handler registered with the Engine under a
// unique key. All methods run exclusively on the Engine's single run
// loop goroutine: an Agent must never block and must do its work by
// calling back into its agentHost to post further timed work.
type Agent interface {
	// Start is called once, synchronously, when the agent is registered
	// with the engine, whether or not the engine has been started.
	Start()

	// ReceiveQuestion offers every question from an inbound message to
	// every agent except the renewer (spec §4.E step 2).
	ReceiveQuestion(q wire.Question)

	// ReceiveResource offers every resource from an inbound message, or
	// a local expiry notification, to every agent (spec §4.E steps 3, 5).
	ReceiveResource(r *wire.Resource, section ResourceSection)

	// EndOfMessage signals that every question/resource of the current
	// inbound message has been delivered, so the agent may flush
	// batched work (spec §4.E step 4).
	EndOfMessage()

	// Wake is called when a deadline the agent posted via wakeAt has
	// arrived.
	Wake()

	// Quit asks the agent to begin shutting down. The agent decides when
	// it is actually done (e.g. after a goodbye round) and then asks its
	// host to remove it.
	Quit()
}

// agentHost is the subset of the Engine's internal API an Agent needs.
// It exists so agents depend on a narrow interface rather than *Engine,
// the way the original C++ MdnsAgent depended only on a base-class
// pointer to Mdns.
type agentHost interface {
	sendQuestion(q wire.Question, when time.Time)
	sendResource(r *wire.Resource, section ResourceSection, when time.Time)
	sendAddresses(section ResourceSection, when time.Time)
	wakeAt(agentKey string, when time.Time)
	renew(r *wire.Resource)
	// expireResource delivers r synchronously to every agent with
	// section=Expired (spec §4.E "Local propagation"); unlike
	// sendResource it is never enqueued for transmission.
	expireResource(r *wire.Resource)
	removeAgent(key string)
	hostFullName() wire.Name
	now() time.Time
}

// agentState is the common lifecycle shared by every agent variant
// except the pure reactive AddressResponder (spec §4.G
// "State & transitions").
type agentState int

const (
	stateIdle agentState = iota
	stateActive
	stateEnding
	stateRemoved
)

// base is embedded by every stateful agent; it is not itself an Agent.
type base struct {
	host  agentHost
	key   string
	id    uuid.UUID
	state agentState
}

func newBase(host agentHost, key string) base {
	return base{host: host, key: key, id: uuid.New(), state: stateIdle}
}

func (b *base) removeSelf() {
	b.state = stateRemoved
	b.host.removeAgent(b.key)
}
