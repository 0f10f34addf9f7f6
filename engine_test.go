// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/web0316/netconnector/internal/wire"
)

// fakeTransceiver is a Transceiver test double that either records every
// outbound message (for single-engine tests) or rebroadcasts it to any
// linked peers (for multi-engine end-to-end scenarios), without ever
// touching a real socket.
type fakeTransceiver struct {
	mu      sync.Mutex
	inbound InboundFunc
	sent    []*wire.Message
	peers   []*fakeTransceiver
}

func (f *fakeTransceiver) EnableInterface(string, string) error { return nil }

func (f *fakeTransceiver) Start(_ wire.Name, inbound InboundFunc) bool {
	f.mu.Lock()
	f.inbound = inbound
	f.mu.Unlock()
	return true
}

func (f *fakeTransceiver) SendMessage(msg *wire.Message, _ *net.UDPAddr, _ int) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	peers := append([]*fakeTransceiver(nil), f.peers...)
	f.mu.Unlock()
	for _, p := range peers {
		p.deliver(msg)
	}
	return nil
}

func (f *fakeTransceiver) deliver(msg *wire.Message) {
	f.mu.Lock()
	inbound := f.inbound
	f.mu.Unlock()
	if inbound != nil {
		inbound(msg, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: Port}, 0)
	}
}

func (f *fakeTransceiver) Stop() {}

func (f *fakeTransceiver) messages() []*wire.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*wire.Message(nil), f.sent...)
}

func link(a, b *fakeTransceiver) {
	a.peers = append(a.peers, b)
	b.peers = append(b.peers, a)
}

// newTestEngine builds an Engine over a fake transceiver and a mock
// clock, and drives it past the initial doppelganger probe window so
// callers land in the steady Active state.
func newTestEngine(t *testing.T, host string) (*Engine, *fakeTransceiver, *clock.Mock) {
	t.Helper()
	tr := &fakeTransceiver{}
	mock := clock.NewMock()
	e := NewEngine(tr, WithClock(mock))
	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(host) }()
	// Give the run loop a chance to process doStart and arm the probe
	// timer before we advance the mock clock past it.
	time.Sleep(10 * time.Millisecond)
	advance(mock, probeWindow+time.Millisecond)
	require.NoError(t, <-errCh)
	return e, tr, mock
}

// advance moves the mock clock forward and gives the engine's run loop
// goroutine a chance to drain the resulting timer fire before the
// caller asserts on shared state.
func advance(mock *clock.Mock, d time.Duration) {
	mock.Add(d)
	time.Sleep(10 * time.Millisecond)
}

func TestEngineStartFormsHostFullName(t *testing.T) {
	e, _, _ := newTestEngine(t, "alice")
	require.Equal(t, "alice.local.", e.hostFullName().String())
}

// TestCoalescing exercises S6: two posts within the aggregation window
// must produce exactly one outbound datagram carrying both entries.
func TestCoalescing(t *testing.T) {
	e, tr, mock := newTestEngine(t, "alice")

	done := make(chan struct{})
	e.cmds <- func() {
		now := e.now()
		e.sendQuestion(wire.Question{Name: e.hostFullName(), Type: wire.TypeA, Class: wire.ClassINET}, now.Add(5*time.Millisecond))
		e.sendResource(wire.NewA(e.hostFullName(), 120, net.IPv4(10, 0, 0, 1)), SectionAnswer, now.Add(30*time.Millisecond))
		close(done)
	}
	<-done

	before := len(tr.messages())
	advance(mock, aggregationWindow+10*time.Millisecond)
	after := tr.messages()

	require.Equal(t, before+1, len(after), "expected exactly one coalesced datagram")
	last := after[len(after)-1]
	require.Len(t, last.Questions, 1)
	require.Len(t, last.Answers, 1)
}

// TestSendCycleDropsCancelledTTL exercises spec §8 invariant 3: a
// resource queued with TTLCancelled must never reach the wire.
func TestSendCycleDropsCancelledTTL(t *testing.T) {
	e, tr, mock := newTestEngine(t, "alice")

	r := wire.NewA(e.hostFullName(), 120, net.IPv4(10, 0, 0, 2))
	r.TTL = wire.TTLCancelled

	done := make(chan struct{})
	e.cmds <- func() {
		e.sendResource(r, SectionAnswer, e.now())
		close(done)
	}
	<-done
	before := len(tr.messages())
	advance(mock, aggregationWindow+10*time.Millisecond)
	require.Equal(t, before, len(tr.messages()), "a TTL_CANCELLED resource must not be sent")
}

// TestSendCycleHeaderFlags exercises spec §8 invariant 5.
func TestSendCycleHeaderFlags(t *testing.T) {
	e, tr, mock := newTestEngine(t, "alice")

	done := make(chan struct{})
	e.cmds <- func() {
		e.sendResource(wire.NewA(e.hostFullName(), 120, net.IPv4(10, 0, 0, 3)), SectionAnswer, e.now())
		close(done)
	}
	<-done
	advance(mock, aggregationWindow+10*time.Millisecond)

	msgs := tr.messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Empty(t, last.Questions)
	require.True(t, last.Header.Response)
	require.True(t, last.Header.Authoritative)
}

// TestGoodbyeSentOnce exercises spec §8 invariant 8 at the engine
// level: once a TTL=0 record has been sent, it is rewritten to
// TTLCancelled and a second drain does not re-emit it.
func TestGoodbyeSentOnce(t *testing.T) {
	e, tr, mock := newTestEngine(t, "alice")

	r := wire.NewA(e.hostFullName(), 0, net.IPv4(10, 0, 0, 4))
	done := make(chan struct{})
	e.cmds <- func() {
		e.sendResource(r, SectionAnswer, e.now())
		close(done)
	}
	<-done
	advance(mock, aggregationWindow+10*time.Millisecond)

	require.Equal(t, wire.TTLCancelled, r.TTL)

	before := len(tr.messages())
	done2 := make(chan struct{})
	e.cmds <- func() {
		e.sendResource(r, SectionAnswer, e.now())
		close(done2)
	}
	<-done2
	advance(mock, aggregationWindow+10*time.Millisecond)
	require.Equal(t, before, len(tr.messages()), "a cancelled goodbye record must not be resent")
}

// TestDuplicateAgentKeyLatestWins exercises spec §7's DuplicateAgentKey
// policy for PublishServiceInstance.
func TestDuplicateAgentKeyLatestWins(t *testing.T) {
	e, _, _ := newTestEngine(t, "alice")
	require.NoError(t, e.PublishServiceInstance("_foo._tcp", "bar", 1111, nil))
	require.NoError(t, e.PublishServiceInstance("_foo._tcp", "bar", 2222, nil))

	done := make(chan struct{})
	var port uint16
	e.cmds <- func() {
		instance, _ := LocalInstanceFullName("bar", "_foo._tcp")
		pub := e.agents[publisherKey(instance)].(*instancePublisher)
		port = pub.port
		close(done)
	}
	<-done
	require.Equal(t, uint16(2222), port)
}
