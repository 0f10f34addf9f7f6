// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import "github.com/pkg/errors"

// Error kinds from spec §7. Callers should use errors.Is against these
// sentinels rather than comparing error strings.
var (
	// ErrTransceiverUnavailable is returned by Start when no interface
	// could be initialised; the engine remains stopped.
	ErrTransceiverUnavailable = errors.New("mdns: no usable interface available")

	// ErrMalformedMessage names the malformed-datagram error kind. No
	// code path returns or wraps it: the transceiver drops a datagram
	// that fails wire.Decode and logs the wire error at debug.
	ErrMalformedMessage = errors.New("mdns: malformed inbound message")

	// ErrInvalidName is returned by API calls given an unqualified host
	// label that fails basic DNS label validation.
	ErrInvalidName = errors.New("mdns: invalid host name")

	// ErrInvalidServiceName is returned by API calls given a service name
	// that isn't of the form "_service._proto".
	ErrInvalidServiceName = errors.New("mdns: invalid service name")

	// ErrTimeout names the resolver-timeout outcome. No code path
	// returns it: a resolver whose deadline passes without an answer
	// calls its callback with nil addresses.
	ErrTimeout = errors.New("mdns: resolve timed out")

	// ErrHostNameInUse is returned by Start when another host on the
	// link already answers for the chosen host name with an address
	// that is not one of ours
	// (see SPEC_FULL.md §3, grounded on go-mdns-sd's isDoppelGanger).
	ErrHostNameInUse = errors.New("mdns: host name already in use on this link")
)
