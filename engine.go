// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"net"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/web0316/netconnector/internal/wire"
)

// aggregationWindow is the scheduler's fixed maximum lead time W (spec
// §4.E).
const aggregationWindow = 100 * time.Millisecond

// pathMTU is the assumed path MTU budget for one outbound datagram
// (1500-byte Ethernet frame less IPv4+UDP headers). Minimal conformance
// caps output sections and sets TC rather than splitting into multiple
// datagrams (spec §6 "Wire protocol").
const pathMTU = 1472

// probeWindow is how long Start waits for a doppelganger to answer
// before it returns (SPEC_FULL.md §3 "host-name collision detection").
const probeWindow = 300 * time.Millisecond

const probeWakeKey = "$probe"

// Engine is the mDNS scheduler: it owns the agent registry, the three
// deadline-ordered queues, the resource renewer, and the transceiver,
// and runs all of that state on a single goroutine (spec §5 "no locking
// of internal state").
type Engine struct {
	cmds chan func()
	quit chan struct{}

	clk clock.Clock
	log *logger

	transceiver Transceiver

	started      bool
	hostName     wire.Name
	placeholders []*wire.Resource

	agents  map[string]Agent
	renewer *resourceRenewer

	wakeQ     *wakeHeap
	questionQ *questionHeap
	resourceQ *resourceHeap

	wakeScheduled bool
	wakeAtTime    time.Time
	timer         *clock.Timer

	probing       bool
	probeOwnAddrs map[string]bool
	probeResult   chan<- error
	probeCollision bool
}

// EngineOption configures NewEngine.
type EngineOption func(*Engine)

// WithClock injects a clock, overriding the real clock.New() default.
// Tests use this to drive the aggregation window and renewal bands
// deterministically.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clk = c }
}

// NewEngine builds an Engine bound to transceiver. The engine does not
// start its run loop or touch the network until Start is called.
func NewEngine(transceiver Transceiver, opts ...EngineOption) *Engine {
	e := &Engine{
		cmds:        make(chan func()),
		quit:        make(chan struct{}),
		clk:         clock.New(),
		log:         newLogger(),
		transceiver: transceiver,
		agents:      map[string]Agent{},
		wakeQ:       newWakeHeap(),
		questionQ:   newQuestionHeap(),
		resourceQ:   newResourceHeap(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.renewer = newResourceRenewer(e)
	go e.run()
	return e
}

// EnableInterface marks a link-local interface for the transceiver to
// bind (spec §6). Safe to call before or after Start.
func (e *Engine) EnableInterface(name, family string) error {
	result := make(chan error, 1)
	e.cmds <- func() { result <- e.transceiver.EnableInterface(name, family) }
	return <-result
}

// SetVerbose toggles debug-level logging; at debug the engine logs each
// message it sends. Inbound messages are not logged (spec §6, §7).
func (e *Engine) SetVerbose(verbose bool) {
	e.log.setVerbose(verbose)
}

// Start forms "<hostName>.local.", binds the transceiver, and probes the
// link for probeWindow for a doppelganger already answering for that
// name. If one answers, the transceiver is stopped again and Start
// returns ErrHostNameInUse; otherwise the engine starts answering
// address queries for the name. It does not send unsolicited
// announcements of its own addresses (spec §6, SPEC_FULL.md §3).
func (e *Engine) Start(hostName string) error {
	hostFullName, err := LocalHostFullName(hostName)
	if err != nil {
		return err
	}
	result := make(chan error, 1)
	e.cmds <- func() { e.doStart(hostFullName, result) }
	return <-result
}

func (e *Engine) doStart(hostFullName wire.Name, result chan<- error) {
	if e.started {
		result <- nil
		return
	}
	addrs := localInterfaceAddresses()
	if !e.transceiver.Start(hostFullName, e.handleInbound) {
		result <- errors.WithStack(ErrTransceiverUnavailable)
		return
	}
	e.hostName = hostFullName
	e.placeholders = buildPlaceholders(hostFullName, addrs)
	e.started = true

	e.probing = true
	e.probeCollision = false
	e.probeOwnAddrs = map[string]bool{}
	for _, a := range addrs {
		e.probeOwnAddrs[a.String()] = true
	}
	e.probeResult = result

	now := e.now()
	e.sendQuestion(wire.Question{Name: hostFullName, Type: wire.TypeANY, Class: wire.ClassINET}, now)
	e.wakeAt(probeWakeKey, now.Add(probeWindow))
}

func (e *Engine) finishProbe() {
	e.probing = false
	if e.probeCollision {
		e.started = false
		e.transceiver.Stop()
		if e.probeResult != nil {
			e.probeResult <- errors.WithStack(ErrHostNameInUse)
		}
		e.probeResult = nil
		return
	}
	if e.probeResult != nil {
		e.probeResult <- nil
	}
	e.probeResult = nil
	e.agents["$address-responder"] = newAddressResponder(e)
	e.agents["$address-responder"].Start()
}

// Stop tears down every agent, stops the transceiver, and returns the
// engine to its unstarted state.
func (e *Engine) Stop() {
	done := make(chan struct{})
	e.cmds <- func() {
		for key := range e.agents {
			delete(e.agents, key)
		}
		if e.started {
			e.transceiver.Stop()
		}
		e.started = false
		close(done)
	}
	<-done
}

// ResolveHostName resolves an unqualified host label to its A/AAAA
// addresses, invoking cb exactly once (spec §6, §4.G HostNameResolver).
func (e *Engine) ResolveHostName(hostName string, deadline time.Time, cb func(v4, v6 net.IP)) error {
	target, err := LocalHostFullName(hostName)
	if err != nil {
		return err
	}
	e.cmds <- func() {
		key := "$resolve:" + target.String()
		r := newHostNameResolver(e, target, deadline, cb)
		e.addAgent(key, r)
	}
	return nil
}

// SubscribeToService registers a long-lived subscriber for a DNS-SD
// service (spec §6, §4.G InstanceSubscriber).
func (e *Engine) SubscribeToService(serviceName string, cb func(version uint64, instances []Instance)) error {
	if !IsValidServiceName(serviceName) {
		return errors.WithMessage(ErrInvalidServiceName, serviceName)
	}
	full, err := LocalServiceFullName(serviceName)
	if err != nil {
		return err
	}
	e.cmds <- func() {
		key := subscriberKey(full)
		sub := newInstanceSubscriber(e, full, cb)
		e.addAgent(key, sub)
	}
	return nil
}

// UnsubscribeToService stops a prior SubscribeToService (spec §6).
func (e *Engine) UnsubscribeToService(serviceName string) error {
	full, err := LocalServiceFullName(serviceName)
	if err != nil {
		return err
	}
	e.cmds <- func() { e.tellAgentToQuit(subscriberKey(full)) }
	return nil
}

// PublishServiceInstance announces a DNS-SD service instance (spec §6,
// §4.G InstancePublisher). Publishing the same instance twice replaces
// the prior publisher; the prior one is quit without a goodbye (spec
// §7 DuplicateAgentKey policy).
func (e *Engine) PublishServiceInstance(serviceName, instanceName string, port uint16, text [][]byte) error {
	if !IsValidServiceName(serviceName) {
		return errors.WithMessage(ErrInvalidServiceName, serviceName)
	}
	service, err := LocalServiceFullName(serviceName)
	if err != nil {
		return err
	}
	instance, err := LocalInstanceFullName(instanceName, serviceName)
	if err != nil {
		return err
	}
	e.cmds <- func() {
		key := publisherKey(instance)
		pub := newInstancePublisher(e, service, instance, port, text)
		e.addAgentNoGoodbye(key, pub)
	}
	return nil
}

// UnpublishServiceInstance withdraws a previously-published instance
// (spec §6).
func (e *Engine) UnpublishServiceInstance(serviceName, instanceName string) error {
	instance, err := LocalInstanceFullName(instanceName, serviceName)
	if err != nil {
		return err
	}
	e.cmds <- func() { e.tellAgentToQuit(publisherKey(instance)) }
	return nil
}

func subscriberKey(serviceFullName wire.Name) string { return "$subscribe:" + serviceFullName.String() }
func publisherKey(instanceFullName wire.Name) string { return "$publish:" + instanceFullName.String() }

// --- run loop ---

func (e *Engine) run() {
	e.timer = e.clk.Timer(24 * time.Hour)
	e.timer.Stop()
	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-e.timer.C:
			e.wakeScheduled = false
			e.onWake(e.now())
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) now() time.Time { return e.clk.Now() }

// addAgent registers a under key, quitting (with goodbye opportunity)
// any prior agent under the same key.
func (e *Engine) addAgent(key string, a Agent) {
	if prior, ok := e.agents[key]; ok {
		prior.Quit()
	}
	e.agents[key] = a
	a.Start()
}

// addAgentNoGoodbye registers a under key, dropping any prior agent
// under the same key without letting it run a goodbye round (spec §7
// DuplicateAgentKey: "latest wins; the prior agent is quit without
// goodbye").
func (e *Engine) addAgentNoGoodbye(key string, a Agent) {
	delete(e.agents, key)
	e.agents[key] = a
	a.Start()
}

func (e *Engine) tellAgentToQuit(key string) {
	if a, ok := e.agents[key]; ok {
		a.Quit()
	}
}

// --- agentHost implementation; only ever called from the run loop ---

func (e *Engine) sendQuestion(q wire.Question, when time.Time) {
	e.questionQ.push(when, q)
	e.postTask()
}

func (e *Engine) sendResource(r *wire.Resource, section ResourceSection, when time.Time) {
	e.resourceQ.push(when, r, section)
	e.postTask()
}

func (e *Engine) sendAddresses(section ResourceSection, when time.Time) {
	for _, r := range e.placeholders {
		e.resourceQ.push(when, r, section)
	}
	e.postTask()
}

func (e *Engine) wakeAt(agentKey string, when time.Time) {
	e.wakeQ.push(when, agentKey)
	e.postTask()
}

func (e *Engine) renew(r *wire.Resource) { e.renewer.renew(r) }

func (e *Engine) expireResource(r *wire.Resource) {
	for _, a := range e.agents {
		a.ReceiveResource(r, SectionExpired)
	}
}

func (e *Engine) removeAgent(key string) { delete(e.agents, key) }

// hostFullName satisfies agentHost.
func (e *Engine) hostFullName() wire.Name { return e.hostName }

// --- scheduling ---

// postTask recomputes the earliest pending deadline across all three
// queues and (re)arms the timer only if that deadline moved earlier
// than whatever is currently armed (spec §4.E "Reschedule").
func (e *Engine) postTask() {
	earliest, ok := e.earliestDeadline()
	if !ok {
		return
	}
	if e.wakeScheduled && !earliest.Before(e.wakeAtTime) {
		return
	}
	d := earliest.Sub(e.now())
	if d < 0 {
		d = 0
	}
	e.timer.Reset(d)
	e.wakeScheduled = true
	e.wakeAtTime = earliest
}

func (e *Engine) earliestDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	if w, ok := e.wakeQ.peek(); ok {
		best, found = w.deadline, true
	}
	if q, ok := e.questionQ.peek(); ok && (!found || q.deadline.Before(best)) {
		best, found = q.deadline, true
	}
	if r, ok := e.resourceQ.peek(); ok && (!found || r.deadline.Before(best)) {
		best, found = r.deadline, true
	}
	return best, found
}

// onWake is invoked when the armed timer fires (spec §4.E "On fire" /
// "send cycle"). processInbound runs sendCycle and postTask itself.
func (e *Engine) onWake(now time.Time) {
	for {
		w, ok := e.wakeQ.peek()
		if !ok || w.deadline.After(now) {
			break
		}
		entry := e.wakeQ.pop()
		e.dispatchWake(entry.agentKey, now)
	}
	e.sendCycle(now)
	e.postTask()
}

func (e *Engine) dispatchWake(key string, now time.Time) {
	switch {
	case key == probeWakeKey:
		e.finishProbe()
	case strings.HasPrefix(key, renewWakeKeyPrefix):
		e.renewer.onWake(strings.TrimPrefix(key, renewWakeKeyPrefix), now)
	default:
		if a, ok := e.agents[key]; ok {
			a.Wake()
		}
	}
}

// sendCycle drains every queue entry due within the aggregation window
// into one outbound message (spec §4.E "Send cycle").
func (e *Engine) sendCycle(now time.Time) {
	cutoff := now.Add(aggregationWindow)
	msg := &wire.Message{}
	seen := map[*wire.Resource]bool{}

	for {
		q, ok := e.questionQ.peek()
		if !ok || q.deadline.After(cutoff) {
			break
		}
		entry := e.questionQ.pop()
		msg.Questions = append(msg.Questions, entry.question)
	}

	goodbyes := make([]*wire.Resource, 0)
	for {
		r, ok := e.resourceQ.peek()
		if !ok || r.deadline.After(cutoff) {
			break
		}
		entry := e.resourceQ.pop()
		if entry.resource.TTL == wire.TTLCancelled {
			continue
		}
		if seen[entry.resource] {
			continue
		}
		seen[entry.resource] = true
		if entry.resource.TTL == 0 {
			goodbyes = append(goodbyes, entry.resource)
		}
		switch entry.section {
		case SectionAnswer:
			msg.Answers = append(msg.Answers, entry.resource)
		case SectionAuthority:
			msg.Authorities = append(msg.Authorities, entry.resource)
		case SectionAdditional:
			msg.Additionals = append(msg.Additionals, entry.resource)
		}
	}

	if len(msg.Questions) == 0 && len(msg.Answers) == 0 && len(msg.Authorities) == 0 && len(msg.Additionals) == 0 {
		return
	}
	if len(msg.Questions) == 0 {
		msg.Header.Response = true
		msg.Header.Authoritative = true
	}
	capToPathMTU(msg)

	if err := e.transceiver.SendMessage(msg, V4Multicast, 0); err != nil {
		e.log.warn("send failed", zap.Error(err))
		return
	}
	if e.log != nil {
		e.log.debug("sent message", zap.Int("questions", len(msg.Questions)), zap.Int("answers", len(msg.Answers)))
	}
	for _, r := range goodbyes {
		r.TTL = wire.TTLCancelled
	}
}

// capToPathMTU trims additionals, then authorities, then answers until
// msg's encoded size fits pathMTU, setting the TC bit if anything had
// to be dropped (spec §6: minimal conformance caps sections and sets TC
// instead of splitting into multiple datagrams).
func capToPathMTU(msg *wire.Message) {
	fits := func() bool {
		raw, err := wire.Encode(msg)
		return err == nil && len(raw) <= pathMTU
	}
	if fits() {
		return
	}
	for len(msg.Additionals) > 0 && !fits() {
		msg.Additionals = msg.Additionals[:len(msg.Additionals)-1]
	}
	for len(msg.Authorities) > 0 && !fits() {
		msg.Authorities = msg.Authorities[:len(msg.Authorities)-1]
	}
	for len(msg.Answers) > 0 && !fits() {
		msg.Answers = msg.Answers[:len(msg.Answers)-1]
	}
	msg.Header.Truncated = true
}

// --- inbound ---

func (e *Engine) handleInbound(msg *wire.Message, src *net.UDPAddr, ifaceIndex int) {
	e.cmds <- func() { e.processInbound(msg, src, ifaceIndex) }
}

func (e *Engine) processInbound(msg *wire.Message, src *net.UDPAddr, ifaceIndex int) {
	if e.probing {
		e.watchForDoppelganger(msg, src)
	}
	if !e.started {
		return
	}

	for _, q := range msg.Questions {
		for _, a := range e.agents {
			a.ReceiveQuestion(q)
		}
	}
	for _, sec := range []struct {
		rs   []*wire.Resource
		kind ResourceSection
	}{
		{msg.Answers, SectionAnswer},
		{msg.Authorities, SectionAuthority},
		{msg.Additionals, SectionAdditional},
	} {
		for _, r := range sec.rs {
			e.renewer.receiveResource(r, sec.kind)
			for _, a := range e.agents {
				a.ReceiveResource(r, sec.kind)
			}
		}
	}
	for _, a := range e.agents {
		a.EndOfMessage()
	}

	e.sendCycle(e.now())
	e.postTask()
}

// watchForDoppelganger flags a collision if an answer-section A/AAAA
// record for our own chosen host name arrives carrying an address that
// is not one of ours (SPEC_FULL.md §3). The header's authoritative flag
// is not checked.
func (e *Engine) watchForDoppelganger(msg *wire.Message, src *net.UDPAddr) {
	for _, r := range msg.Answers {
		if !r.Name.Equal(e.hostName) {
			continue
		}
		var ip net.IP
		switch d := r.Data.(type) {
		case wire.DataA:
			ip = d.Address
		case wire.DataAAAA:
			ip = d.Address
		default:
			continue
		}
		if ip == nil || !e.probeOwnAddrs[ip.String()] {
			e.probeCollision = true
		}
	}
}

// --- local addressing ---

func buildPlaceholders(host wire.Name, addrs []net.IP) []*wire.Resource {
	out := make([]*wire.Resource, 0, len(addrs))
	for _, ip := range addrs {
		if v4 := ip.To4(); v4 != nil {
			out = append(out, wire.NewA(host, 120, v4))
		} else {
			out = append(out, wire.NewAAAA(host, 120, ip))
		}
	}
	return out
}

// localInterfaceAddresses enumerates non-loopback unicast addresses on
// every interface. This is bare enumeration, not socket binding, so it
// stays in the engine rather than the transceiver (spec §4.D's
// transceiver boundary covers sockets, not net.Interfaces()).
func localInterfaceAddresses() []net.IP {
	var out []net.IP
	ifaces, err := net.Interfaces()
	if err != nil {
		return out
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalMulticast() {
				continue
			}
			out = append(out, ipNet.IP)
		}
	}
	return out
}
