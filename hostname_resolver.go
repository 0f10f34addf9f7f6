// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"net"
	"time"

	"github.com/web0316/netconnector/internal/wire"
)

// hostNameResolver is created per ResolveHostName call and removes
// itself after delivering exactly one result (spec §4.G
// HostNameResolver).
type hostNameResolver struct {
	base

	target   wire.Name
	deadline time.Time
	cb       func(v4, v6 net.IP)

	v4, v6    net.IP
	collected bool
	done      bool
}

func newHostNameResolver(host agentHost, target wire.Name, deadline time.Time, cb func(v4, v6 net.IP)) *hostNameResolver {
	return &hostNameResolver{
		base:     newBase(host, "$resolve:"+target.String()),
		target:   target,
		deadline: deadline,
		cb:       cb,
	}
}

func (r *hostNameResolver) Start() {
	r.state = stateActive
	now := r.host.now()
	r.host.sendQuestion(wire.Question{Name: r.target, Type: wire.TypeA, Class: wire.ClassINET}, now)
	r.host.sendQuestion(wire.Question{Name: r.target, Type: wire.TypeAAAA, Class: wire.ClassINET}, now)
	r.host.wakeAt(r.key, r.deadline)
}

func (r *hostNameResolver) ReceiveQuestion(wire.Question) {}

func (r *hostNameResolver) ReceiveResource(res *wire.Resource, section ResourceSection) {
	if r.done || section == SectionExpired || !res.Name.Equal(r.target) {
		return
	}
	switch d := res.Data.(type) {
	case wire.DataA:
		r.v4 = d.Address
		r.collected = true
	case wire.DataAAAA:
		r.v6 = d.Address
		r.collected = true
	}
}

func (r *hostNameResolver) EndOfMessage() {
	if r.done || !r.collected {
		return
	}
	r.finish()
}

func (r *hostNameResolver) Wake() {
	if r.done {
		return
	}
	r.finish()
}

func (r *hostNameResolver) finish() {
	r.done = true
	r.cb(r.v4, r.v6)
	r.removeSelf()
}

func (r *hostNameResolver) Quit() {
	if !r.done {
		r.done = true
		r.cb(nil, nil)
	}
	r.removeSelf()
}
