// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"net"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

func mustName(t *testing.T, s string) Name {
	n, err := NewName(s)
	require.NoError(t, err)
	return n
}

// buildS5Message constructs the S5 codec round-trip scenario from the
// spec's testable properties.
func buildS5Message(t *testing.T) *Message {
	return &Message{
		Header: Header{ID: 0x1234, Response: true, Authoritative: true},
		Answers: []*Resource{
			NewPTR(mustName(t, "_foo._tcp.local."), 4500, mustName(t, "bar._foo._tcp.local.")),
			NewSRV(mustName(t, "bar._foo._tcp.local."), 120, 0, 0, 1234, mustName(t, "alice.local.")),
			NewTXT(mustName(t, "bar._foo._tcp.local."), 4500, []byte("k=v")),
			NewA(mustName(t, "alice.local."), 120, net.ParseIP("192.0.2.7")),
		},
	}
}

func TestMessageRoundTripS5(t *testing.T) {
	msg := buildS5Message(t)
	encoded, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	require.Equal(t, msg.Header.ID, decoded.Header.ID)
	require.True(t, decoded.Header.Response)
	require.True(t, decoded.Header.Authoritative)
	require.Len(t, decoded.Answers, len(msg.Answers))
	for i, want := range msg.Answers {
		got := decoded.Answers[i]
		if !want.Equal(got) {
			t.Fatalf("answer %d mismatch:\nwant %s\ngot  %s", i, spew.Sdump(want), spew.Sdump(got))
		}
		require.Equal(t, want.TTL, got.TTL)
	}
}

func TestMessageCompressionShrinksWire(t *testing.T) {
	msg := buildS5Message(t)
	compressed, err := Encode(msg)
	require.NoError(t, err)

	var uncompressed []byte
	// Re-derive an upper bound by encoding every name without sharing a
	// compression table (simulates an encoder with compression disabled).
	for _, q := range msg.Questions {
		require.NoError(t, encodeQuestion(&uncompressed, q, nil))
	}
	for _, sec := range [][]*Resource{msg.Answers, msg.Authorities, msg.Additionals} {
		for _, r := range sec {
			require.NoError(t, encodeResource(&uncompressed, r, nil))
		}
	}
	require.Less(t, len(compressed)-12, len(uncompressed))
}

func TestHeaderCountsMatchSectionLengths(t *testing.T) {
	msg := buildS5Message(t)
	encoded, err := Encode(msg)
	require.NoError(t, err)
	require.EqualValues(t, len(msg.Answers), msg.Header.ANCount)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.EqualValues(t, decoded.Header.QDCount, len(decoded.Questions))
	require.EqualValues(t, decoded.Header.ANCount, len(decoded.Answers))
	require.EqualValues(t, decoded.Header.NSCount, len(decoded.Authorities))
	require.EqualValues(t, decoded.Header.ARCount, len(decoded.Additionals))
}

func TestDecodeRejectsTruncatedMessage(t *testing.T) {
	_, err := Decode([]byte{0, 1, 2})
	require.Error(t, err)
	require.True(t, IsMalformed(err))
}

func TestDecodeRejectsBadSectionCount(t *testing.T) {
	msg := &Message{
		Header:  Header{ANCount: 5}, // lies about answer count, no answers follow
	}
	buf := make([]byte, 12)
	buf[6], buf[7] = 0, 5
	_, err := Decode(buf)
	require.Error(t, err)
	_ = msg
}

func TestQueryVsResponseFlags(t *testing.T) {
	query := &Message{Questions: []Question{{Name: mustName(t, "alice.local."), Type: TypeA, Class: ClassINET}}}
	require.True(t, query.IsQuery())

	response := &Message{Answers: []*Resource{NewA(mustName(t, "alice.local."), 120, net.ParseIP("10.0.0.1"))}}
	require.False(t, response.IsQuery())
}

func TestUnknownTypeDecodesOpaque(t *testing.T) {
	name := mustName(t, "alice.local.")
	var buf []byte
	require.NoError(t, EncodeName(&buf, name, nil))
	buf = appendU16(buf, 999) // unknown type
	buf = appendU16(buf, uint16(ClassINET))
	buf = appendU32(buf, 60)
	buf = appendU16(buf, 3)
	buf = append(buf, 'x', 'y', 'z')

	r, off, err := decodeResource(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(buf), off)
	opaque, ok := r.Data.(DataOpaque)
	require.True(t, ok)
	require.Equal(t, []byte("xyz"), opaque.Raw)
}
