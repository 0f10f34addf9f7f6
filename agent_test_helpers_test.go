// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"time"

	"github.com/web0316/netconnector/internal/wire"
)

// questionCall and resourceCall record one agentHost.sendQuestion /
// sendResource invocation for assertions in agent-level unit tests.
type questionCall struct {
	q    wire.Question
	when time.Time
}

type resourceCall struct {
	r       *wire.Resource
	section ResourceSection
	when    time.Time
}

type wakeCall struct {
	key  string
	when time.Time
}

// fakeHost is a minimal, deterministic agentHost double used to unit
// test individual agents without spinning up a full Engine run loop.
type fakeHost struct {
	t0     time.Time
	host   wire.Name
	placeholders []*wire.Resource

	questions []questionCall
	resources []resourceCall
	wakes     []wakeCall
	expired   []*wire.Resource
	renewed   []*wire.Resource
	removed   []string
}

func newFakeHost(host wire.Name) *fakeHost {
	return &fakeHost{t0: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), host: host}
}

func (f *fakeHost) sendQuestion(q wire.Question, when time.Time) {
	f.questions = append(f.questions, questionCall{q, when})
}

func (f *fakeHost) sendResource(r *wire.Resource, section ResourceSection, when time.Time) {
	f.resources = append(f.resources, resourceCall{r, section, when})
}

func (f *fakeHost) sendAddresses(section ResourceSection, when time.Time) {
	for _, r := range f.placeholders {
		f.resources = append(f.resources, resourceCall{r, section, when})
	}
}

func (f *fakeHost) wakeAt(agentKey string, when time.Time) {
	f.wakes = append(f.wakes, wakeCall{agentKey, when})
}

func (f *fakeHost) renew(r *wire.Resource) { f.renewed = append(f.renewed, r) }

func (f *fakeHost) expireResource(r *wire.Resource) { f.expired = append(f.expired, r) }

func (f *fakeHost) removeAgent(key string) { f.removed = append(f.removed, key) }

func (f *fakeHost) hostFullName() wire.Name { return f.host }

func (f *fakeHost) now() time.Time { return f.t0 }

// lastWake returns the most recently recorded wakeAt call for key.
func (f *fakeHost) lastWake(key string) (wakeCall, bool) {
	for i := len(f.wakes) - 1; i >= 0; i-- {
		if f.wakes[i].key == key {
			return f.wakes[i], true
		}
	}
	return wakeCall{}, false
}
