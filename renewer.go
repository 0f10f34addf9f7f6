// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"hash/fnv"
	"strconv"
	"time"

	"github.com/web0316/netconnector/internal/wire"
)

// renewWakeKeyPrefix namespaces renewer wake entries in the engine's
// wake heap so onWake can route them to the renewer instead of an Agent.
const renewWakeKeyPrefix = "renew:"

// renewalFractions are the RFC 6762 §5.2 renewal bands, expressed as a
// fraction of the record's TTL. A renewal question is sent at each one;
// if none refreshes the record, it expires at the full TTL (band index
// len(renewalFractions), handled as a terminal wake below).
var renewalFractions = [4]float64{0.80, 0.85, 0.90, 0.95}

// renewalJitterMax is the largest jitter fraction of TTL added to bands
// 2-4 ("+ small jitter" per spec §4.F / §8 invariant 9's [x%, x%+2%] bands).
const renewalJitterMax = 0.02

func recordKey(name wire.Name, typ wire.Type, class wire.Class) string {
	return name.String() + "|" + typ.String() + "|" + strconv.Itoa(int(class))
}

// renewEntry tracks one (name, type, class) tuple the renewer is
// keeping current (spec §4.F). band is the index of the next renewal
// wake still to fire; once it reaches len(renewalFractions) the only
// wake left pending is the terminal expiry at the full TTL.
type renewEntry struct {
	resource  *wire.Resource
	ttl       uint32
	firstSeen time.Time
	band      int
}

// resourceRenewer is the special agent that always sees inbound
// resources first (spec §4.E step 1): it registers every newly-seen
// record with a non-zero TTL for renewal tracking, so it can reissue
// refreshing questions and tell every agent when a record it was
// tracking has expired, whether by an explicit ttl=0 goodbye or by
// silently aging past its TTL.
type resourceRenewer struct {
	host    agentHost
	entries map[string]*renewEntry
}

func newResourceRenewer(host agentHost) *resourceRenewer {
	return &resourceRenewer{host: host, entries: map[string]*renewEntry{}}
}

// renew is the agentHost-facing entry point (spec §4.G agents asking
// the host to track a record they depend on). It shares receiveResource's
// register-or-reset logic, since both amount to "start or refresh
// tracking for this exact resource".
func (rn *resourceRenewer) renew(r *wire.Resource) {
	rn.receiveResource(r, SectionAnswer)
}

// receiveResource is offered every inbound resource (spec §4.E step 1
// "so it can register TTL expiries"): any record with ttl>0 is
// registered for renewal tracking (or has its schedule reset, if
// already tracked); ttl=0 expires an already-tracked record immediately.
func (rn *resourceRenewer) receiveResource(r *wire.Resource, section ResourceSection) {
	if section == SectionExpired || r.TTL == wire.TTLCancelled {
		return
	}
	key := recordKey(r.Name, r.Type, r.Class)
	if r.TTL == 0 {
		if entry, tracked := rn.entries[key]; tracked {
			delete(rn.entries, key)
			rn.host.expireResource(entry.resource)
		}
		return
	}
	entry, tracked := rn.entries[key]
	if !tracked {
		entry = &renewEntry{}
		rn.entries[key] = entry
	}
	entry.resource = r
	entry.ttl = r.TTL
	entry.firstSeen = rn.host.now()
	entry.band = 0
	rn.scheduleBand(key, entry, 0)
}

func (rn *resourceRenewer) scheduleBand(key string, entry *renewEntry, band int) {
	when := entry.firstSeen.Add(renewalDelay(entry.ttl, band, key))
	rn.host.wakeAt(renewWakeKeyPrefix+key, when)
}

// onWake fires at a renewal band deadline, or at the terminal wake once
// every band has already asked for a refresh (spec §8 invariant 9: a
// renewal question in every 80/85/90/95% band, then Expired "if no
// refresh arrives by T" — the full TTL, not the 95% band).
func (rn *resourceRenewer) onWake(key string, now time.Time) {
	entry, tracked := rn.entries[key]
	if !tracked {
		return
	}
	// A reset leaves the wakes of the old schedule in the engine's wake
	// heap; ignore any that fire before the current band's deadline.
	due := entry.firstSeen.Add(time.Duration(entry.ttl) * time.Second)
	if entry.band < len(renewalFractions) {
		due = entry.firstSeen.Add(renewalDelay(entry.ttl, entry.band, key))
	}
	if now.Before(due) {
		return
	}
	if entry.band >= len(renewalFractions) {
		delete(rn.entries, key)
		rn.host.expireResource(entry.resource)
		return
	}
	rn.host.sendQuestion(wire.Question{
		Name:  entry.resource.Name,
		Type:  entry.resource.Type,
		Class: entry.resource.Class,
	}, now)
	band := entry.band + 1
	entry.band = band
	if band >= len(renewalFractions) {
		rn.host.wakeAt(renewWakeKeyPrefix+key, entry.firstSeen.Add(time.Duration(entry.ttl)*time.Second))
		return
	}
	rn.scheduleBand(key, entry, band)
}

// renewalDelay returns the offset from first-seen at which band index
// should fire, including deterministic per-record jitter on bands 1-3
// (band 0, the initial 80% mark, is unjittered).
func renewalDelay(ttl uint32, band int, key string) time.Duration {
	frac := renewalFractions[band]
	if band > 0 {
		frac += renewalJitterMax * jitterFraction(key, band)
	}
	return time.Duration(frac * float64(ttl) * float64(time.Second))
}

// jitterFraction derives a stable pseudo-random value in [0,1) from key
// and band so tests see deterministic renewal timing without a shared
// PRNG source.
func jitterFraction(key string, band int) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	_, _ = h.Write([]byte{byte(band)})
	return float64(h.Sum32()%1000) / 1000.0
}
