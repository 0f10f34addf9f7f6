// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"time"

	"github.com/web0316/netconnector/internal/wire"
)

// publisherAnnounceDelays are the successive waits between announcement
// rounds after Start (spec §4.G InstancePublisher "1, 1, 2, 4 seconds
// after start").
var publisherAnnounceDelays = []time.Duration{
	1 * time.Second,
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
}

const (
	publisherSRVTTL uint32 = 120
	publisherPTRTTL uint32 = 4500
)

// instancePublisher advertises one DNS-SD service instance and answers
// queries for it by posting its records through the host with the
// current time as deadline (spec §4.G InstancePublisher).
type instancePublisher struct {
	base

	service, instance wire.Name
	port              uint16
	text              [][]byte

	ptr, srv, txt *wire.Resource
	announceIdx   int
	quitting      bool
}

func newInstancePublisher(host agentHost, service, instance wire.Name, port uint16, text [][]byte) *instancePublisher {
	return &instancePublisher{
		base:     newBase(host, publisherKey(instance)),
		service:  service,
		instance: instance,
		port:     port,
		text:     text,
	}
}

func (p *instancePublisher) Start() {
	p.state = stateActive
	p.ptr = wire.NewPTR(p.service, publisherPTRTTL, p.instance)
	p.srv = wire.NewSRV(p.instance, publisherSRVTTL, 0, 0, p.port, p.host.hostFullName())
	p.txt = wire.NewTXT(p.instance, publisherPTRTTL, p.text...)
	p.scheduleNextAnnounce()
}

func (p *instancePublisher) scheduleNextAnnounce() {
	if p.announceIdx >= len(publisherAnnounceDelays) {
		return
	}
	when := p.host.now().Add(publisherAnnounceDelays[p.announceIdx])
	p.host.wakeAt(p.key, when)
}

func (p *instancePublisher) Wake() {
	if p.quitting {
		return
	}
	p.announce()
	p.announceIdx++
	p.scheduleNextAnnounce()
}

func (p *instancePublisher) announce() {
	now := p.host.now()
	p.host.sendResource(p.ptr, SectionAnswer, now)
	p.host.sendResource(p.srv, SectionAnswer, now)
	p.host.sendResource(p.txt, SectionAnswer, now)
	p.host.sendAddresses(SectionAdditional, now)
}

// Quit withdraws every record this publisher ever announced with a
// TTL=0 goodbye, all at the current deadline so they coalesce into one
// outbound message (spec §8 invariant 8).
func (p *instancePublisher) Quit() {
	if p.quitting {
		return
	}
	p.quitting = true
	p.state = stateEnding
	now := p.host.now()
	p.host.sendResource(goodbyeCopy(p.ptr), SectionAnswer, now)
	p.host.sendResource(goodbyeCopy(p.srv), SectionAnswer, now)
	p.host.sendResource(goodbyeCopy(p.txt), SectionAnswer, now)
	p.removeSelf()
}

func goodbyeCopy(r *wire.Resource) *wire.Resource {
	g := *r
	g.TTL = 0
	return &g
}

func (p *instancePublisher) ReceiveQuestion(q wire.Question) {
	if p.quitting {
		return
	}
	now := p.host.now()
	switch {
	case q.Name.Equal(p.service) && (q.Type == wire.TypePTR || q.Type == wire.TypeANY):
		p.host.sendResource(p.ptr, SectionAnswer, now)
	case q.Name.Equal(p.instance) && (q.Type == wire.TypeSRV || q.Type == wire.TypeANY):
		p.host.sendResource(p.srv, SectionAnswer, now)
		p.host.sendAddresses(SectionAdditional, now)
	case q.Name.Equal(p.instance) && (q.Type == wire.TypeTXT || q.Type == wire.TypeANY):
		p.host.sendResource(p.txt, SectionAnswer, now)
	}
}

func (p *instancePublisher) ReceiveResource(*wire.Resource, ResourceSection) {}
func (p *instancePublisher) EndOfMessage()                                  {}
