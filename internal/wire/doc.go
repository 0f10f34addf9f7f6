// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire implements the on-the-wire encoding for multicast DNS
// messages: domain names with pointer compression, the 12-byte header,
// questions, and the typed resource record variants used by RFC 6762 /
// RFC 6763 (A, AAAA, PTR, CNAME, NS, SRV, TXT, NSEC, and an opaque
// fallback for everything else).
//
// It is deliberately independent of the mdns package's scheduling and
// agent logic: nothing in here blocks or keeps state across messages.
package wire
