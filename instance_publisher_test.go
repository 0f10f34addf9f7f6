// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/web0316/netconnector/internal/wire"
)

func TestInstancePublisherAnswersServiceQuestion(t *testing.T) {
	service, _ := LocalServiceFullName("_foo._tcp")
	instance, _ := LocalInstanceFullName("bar", "_foo._tcp")
	host, _ := LocalHostFullName("alice")
	fh := newFakeHost(host)

	pub := newInstancePublisher(fh, service, instance, 1234, [][]byte{[]byte("k=v")})
	pub.Start()

	wake, ok := fh.lastWake(pub.key)
	require.True(t, ok)
	require.Equal(t, fh.now().Add(publisherAnnounceDelays[0]), wake.when)

	pub.ReceiveQuestion(wire.Question{Name: service, Type: wire.TypePTR, Class: wire.ClassINET})
	require.Len(t, fh.resources, 1)
	require.True(t, pub.ptr.Equal(fh.resources[0].r))
}

func TestInstancePublisherAnnounceSchedule(t *testing.T) {
	service, _ := LocalServiceFullName("_foo._tcp")
	instance, _ := LocalInstanceFullName("bar", "_foo._tcp")
	host, _ := LocalHostFullName("alice")
	fh := newFakeHost(host)

	pub := newInstancePublisher(fh, service, instance, 1234, nil)
	pub.Start()

	for i := 0; i < len(publisherAnnounceDelays); i++ {
		pub.Wake()
	}
	// Three records (PTR, SRV, TXT) plus one placeholder-address send
	// per announcement round.
	require.Equal(t, len(publisherAnnounceDelays)*3, countSection(fh.resources, SectionAnswer))
	require.Equal(t, len(publisherAnnounceDelays), pub.announceIdx)
}

func TestInstancePublisherGoodbyeOnQuit(t *testing.T) {
	service, _ := LocalServiceFullName("_foo._tcp")
	instance, _ := LocalInstanceFullName("bar", "_foo._tcp")
	host, _ := LocalHostFullName("alice")
	fh := newFakeHost(host)

	pub := newInstancePublisher(fh, service, instance, 1234, nil)
	pub.Start()
	fh.resources = nil

	pub.Quit()

	require.Len(t, fh.resources, 3)
	for _, rc := range fh.resources {
		require.Equal(t, uint32(0), rc.r.TTL)
	}
	require.Contains(t, fh.removed, pub.key)

	// A second Quit must not re-emit the goodbye round.
	fh.resources = nil
	pub.Quit()
	require.Empty(t, fh.resources)
}

func countSection(calls []resourceCall, section ResourceSection) int {
	n := 0
	for _, c := range calls {
		if c.section == section {
			n++
		}
	}
	return n
}
