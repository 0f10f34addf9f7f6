// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"container/heap"
	"time"

	"github.com/web0316/netconnector/internal/wire"
)

// Every queue entry carries a monotonically increasing sequence number
// so that heap.Interface's Less can tie-break same-deadline entries by
// insertion order, per spec §5 ("insertion-order-tie-broken").

type wakeEntry struct {
	deadline time.Time
	agentKey string
	seq      int64
}

type wakeHeap struct {
	entries []wakeEntry
	nextSeq int64
}

func (h *wakeHeap) Len() int { return len(h.entries) }
func (h *wakeHeap) Less(i, j int) bool {
	if h.entries[i].deadline.Equal(h.entries[j].deadline) {
		return h.entries[i].seq < h.entries[j].seq
	}
	return h.entries[i].deadline.Before(h.entries[j].deadline)
}
func (h *wakeHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }
func (h *wakeHeap) Push(x interface{}) {
	e := x.(wakeEntry)
	e.seq = h.nextSeq
	h.nextSeq++
	h.entries = append(h.entries, e)
}
func (h *wakeHeap) Pop() interface{} {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries = h.entries[:n-1]
	return e
}

func (h *wakeHeap) push(deadline time.Time, agentKey string) {
	heap.Push(h, wakeEntry{deadline: deadline, agentKey: agentKey})
}
func (h *wakeHeap) peek() (wakeEntry, bool) {
	if h.Len() == 0 {
		return wakeEntry{}, false
	}
	return h.entries[0], true
}
func (h *wakeHeap) pop() wakeEntry { return heap.Pop(h).(wakeEntry) }

type questionEntry struct {
	deadline time.Time
	question wire.Question
	seq      int64
}

type questionHeap struct {
	entries []questionEntry
	nextSeq int64
}

func (h *questionHeap) Len() int { return len(h.entries) }
func (h *questionHeap) Less(i, j int) bool {
	if h.entries[i].deadline.Equal(h.entries[j].deadline) {
		return h.entries[i].seq < h.entries[j].seq
	}
	return h.entries[i].deadline.Before(h.entries[j].deadline)
}
func (h *questionHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }
func (h *questionHeap) Push(x interface{}) {
	e := x.(questionEntry)
	e.seq = h.nextSeq
	h.nextSeq++
	h.entries = append(h.entries, e)
}
func (h *questionHeap) Pop() interface{} {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries = h.entries[:n-1]
	return e
}

func (h *questionHeap) push(deadline time.Time, q wire.Question) {
	heap.Push(h, questionEntry{deadline: deadline, question: q})
}
func (h *questionHeap) peek() (questionEntry, bool) {
	if h.Len() == 0 {
		return questionEntry{}, false
	}
	return h.entries[0], true
}
func (h *questionHeap) pop() questionEntry { return heap.Pop(h).(questionEntry) }

type resourceEntry struct {
	deadline time.Time
	resource *wire.Resource
	section  ResourceSection
	seq      int64
}

type resourceHeap struct {
	entries []resourceEntry
	nextSeq int64
}

func (h *resourceHeap) Len() int { return len(h.entries) }
func (h *resourceHeap) Less(i, j int) bool {
	if h.entries[i].deadline.Equal(h.entries[j].deadline) {
		return h.entries[i].seq < h.entries[j].seq
	}
	return h.entries[i].deadline.Before(h.entries[j].deadline)
}
func (h *resourceHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }
func (h *resourceHeap) Push(x interface{}) {
	e := x.(resourceEntry)
	e.seq = h.nextSeq
	h.nextSeq++
	h.entries = append(h.entries, e)
}
func (h *resourceHeap) Pop() interface{} {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries = h.entries[:n-1]
	return e
}

func (h *resourceHeap) push(deadline time.Time, r *wire.Resource, section ResourceSection) {
	heap.Push(h, resourceEntry{deadline: deadline, resource: r, section: section})
}
func (h *resourceHeap) peek() (resourceEntry, bool) {
	if h.Len() == 0 {
		return resourceEntry{}, false
	}
	return h.entries[0], true
}
func (h *resourceHeap) pop() resourceEntry { return heap.Pop(h).(resourceEntry) }

func newWakeHeap() *wakeHeap         { return &wakeHeap{} }
func newQuestionHeap() *questionHeap { return &questionHeap{} }
func newResourceHeap() *resourceHeap { return &resourceHeap{} }
