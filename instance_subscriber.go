// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"net"
	"time"

	"github.com/web0316/netconnector/internal/wire"
)

// Instance is one snapshot entry delivered to a SubscribeToService
// callback (spec §4.G InstanceSubscriber).
type Instance struct {
	Service   string
	Instance  string
	Port      uint16
	Target    wire.Name
	Addresses []net.IP
	Text      [][]byte
}

const (
	subscriberInitialBackoff = 1 * time.Second
	subscriberMaxBackoff     = 60 * time.Second
)

type subscriberInstance struct {
	fullName wire.Name
	port     uint16
	target   wire.Name
	hasSRV   bool
	addrs    []net.IP
	text     [][]byte
}

// instanceSubscriber maintains a live snapshot of every instance of one
// DNS-SD service advertised on the link (spec §4.G InstanceSubscriber).
type instanceSubscriber struct {
	base

	service wire.Name
	cb      func(version uint64, instances []Instance)

	instances map[string]*subscriberInstance
	version   uint64
	backoff   time.Duration
	dirty     bool
}

func newInstanceSubscriber(host agentHost, service wire.Name, cb func(version uint64, instances []Instance)) *instanceSubscriber {
	return &instanceSubscriber{
		base:      newBase(host, subscriberKey(service)),
		service:   service,
		cb:        cb,
		instances: map[string]*subscriberInstance{},
		backoff:   subscriberInitialBackoff,
	}
}

func (s *instanceSubscriber) Start() {
	s.state = stateActive
	s.queryService()
	s.host.wakeAt(s.key, s.host.now().Add(s.backoff))
}

func (s *instanceSubscriber) queryService() {
	s.host.sendQuestion(wire.Question{Name: s.service, Type: wire.TypePTR, Class: wire.ClassINET}, s.host.now())
}

func (s *instanceSubscriber) Wake() {
	if s.state == stateRemoved {
		return
	}
	s.queryService()
	s.backoff *= 2
	if s.backoff > subscriberMaxBackoff {
		s.backoff = subscriberMaxBackoff
	}
	s.host.wakeAt(s.key, s.host.now().Add(s.backoff))
}

func (s *instanceSubscriber) Quit() {
	s.state = stateRemoved
	s.removeSelf()
}

func (s *instanceSubscriber) ReceiveQuestion(wire.Question) {}

func (s *instanceSubscriber) ReceiveResource(r *wire.Resource, section ResourceSection) {
	if section == SectionExpired {
		s.receiveExpired(r)
		return
	}
	if r.TTL == 0 {
		// An explicit goodbye. The renewer notices the ttl=0 record,
		// expires its tracked entry, and redelivers it with
		// SectionExpired (engine.go's processInbound calls the renewer
		// before this method); ignore the raw answer here so it can't
		// re-add what that expiry just removed.
		return
	}
	switch d := r.Data.(type) {
	case wire.DataPTR:
		if !r.Name.Equal(s.service) {
			return
		}
		key := d.Target.String()
		if _, ok := s.instances[key]; ok {
			return
		}
		inst := &subscriberInstance{fullName: d.Target}
		s.instances[key] = inst
		s.host.sendQuestion(wire.Question{Name: d.Target, Type: wire.TypeSRV, Class: wire.ClassINET}, s.host.now())
		s.host.sendQuestion(wire.Question{Name: d.Target, Type: wire.TypeTXT, Class: wire.ClassINET}, s.host.now())
		s.dirty = true

	case wire.DataSRV:
		inst, ok := s.instances[r.Name.String()]
		if !ok {
			return
		}
		inst.port = d.Port
		inst.target = d.Target
		inst.hasSRV = true
		s.host.sendQuestion(wire.Question{Name: d.Target, Type: wire.TypeA, Class: wire.ClassINET}, s.host.now())
		s.host.sendQuestion(wire.Question{Name: d.Target, Type: wire.TypeAAAA, Class: wire.ClassINET}, s.host.now())
		s.dirty = true

	case wire.DataTXT:
		inst, ok := s.instances[r.Name.String()]
		if !ok {
			return
		}
		inst.text = d.Strings
		s.dirty = true

	case wire.DataA:
		s.backfillAddress(r.Name, d.Address)
	case wire.DataAAAA:
		s.backfillAddress(r.Name, d.Address)
	}
}

func (s *instanceSubscriber) backfillAddress(host wire.Name, addr net.IP) {
	for _, inst := range s.instances {
		if !inst.hasSRV || !inst.target.Equal(host) {
			continue
		}
		inst.addrs = append(inst.addrs, addr)
		s.dirty = true
	}
}

func (s *instanceSubscriber) receiveExpired(r *wire.Resource) {
	switch d := r.Data.(type) {
	case wire.DataPTR:
		if delete1(s.instances, d.Target.String()) {
			s.dirty = true
		}
	case wire.DataSRV:
		if inst, ok := s.instances[r.Name.String()]; ok {
			inst.hasSRV = false
			inst.addrs = nil
			s.dirty = true
		}
	case wire.DataTXT:
		if inst, ok := s.instances[r.Name.String()]; ok {
			inst.text = nil
			s.dirty = true
		}
	case wire.DataA, wire.DataAAAA:
		// An expired host address just thins the addresses slice; the
		// instance itself survives until its PTR/SRV expires.
		var gone net.IP
		switch a := d.(type) {
		case wire.DataA:
			gone = a.Address
		case wire.DataAAAA:
			gone = a.Address
		}
		for _, inst := range s.instances {
			if inst.hasSRV && inst.target.Equal(r.Name) {
				kept := make([]net.IP, 0, len(inst.addrs))
				for _, a := range inst.addrs {
					if !a.Equal(gone) {
						kept = append(kept, a)
					}
				}
				inst.addrs = kept
				s.dirty = true
			}
		}
	}
}

func delete1(m map[string]*subscriberInstance, key string) bool {
	if _, ok := m[key]; !ok {
		return false
	}
	delete(m, key)
	return true
}

func (s *instanceSubscriber) EndOfMessage() {
	if !s.dirty {
		return
	}
	s.dirty = false
	s.version++
	out := make([]Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, Instance{
			Service:   s.service.String(),
			Instance:  inst.fullName.String(),
			Port:      inst.port,
			Target:    inst.target,
			Addresses: inst.addrs,
			Text:      inst.text,
		})
	}
	s.cb(s.version, out)
}
