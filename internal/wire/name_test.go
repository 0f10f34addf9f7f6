// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameRoundTrip(t *testing.T) {
	for _, s := range []string{
		"alice.local.",
		"_foo._tcp.local.",
		"bar._foo._tcp.local.",
		"Bob.Local.",
		".",
	} {
		n, err := NewName(s)
		require.NoError(t, err)

		var buf []byte
		require.NoError(t, EncodeName(&buf, n, nil))

		got, off, err := DecodeName(buf, 0)
		require.NoError(t, err)
		require.Equal(t, len(buf), off)
		require.True(t, n.Equal(got), "round trip mismatch: %q != %q", n, got)
		require.Equal(t, n.String(), got.String(), "case must be preserved byte-for-byte")
	}
}

func TestNameCompressionShrinksMessage(t *testing.T) {
	n1, err := NewName("bar._foo._tcp.local.")
	require.NoError(t, err)
	n2, err := NewName("baz._foo._tcp.local.")
	require.NoError(t, err)

	var compressed []byte
	table := compressionTable{}
	require.NoError(t, EncodeName(&compressed, n1, table))
	require.NoError(t, EncodeName(&compressed, n2, table))

	var uncompressed []byte
	require.NoError(t, EncodeName(&uncompressed, n1, nil))
	require.NoError(t, EncodeName(&uncompressed, n2, nil))

	require.Less(t, len(compressed), len(uncompressed))

	got1, off1, err := DecodeName(compressed, 0)
	require.NoError(t, err)
	require.True(t, n1.Equal(got1))

	got2, off2, err := DecodeName(compressed, off1)
	require.NoError(t, err)
	require.True(t, n2.Equal(got2))
	require.Equal(t, len(compressed), off2)
}

func TestNameDecodeRejectsOversizeLabel(t *testing.T) {
	buf := []byte{64}
	buf = append(buf, make([]byte, 64)...)
	_, _, err := DecodeName(buf, 0)
	require.Error(t, err)
	require.True(t, IsMalformed(err))
}

func TestNameDecodeRejectsForwardPointer(t *testing.T) {
	// A pointer at offset 0 pointing forward to offset 5 must be rejected.
	buf := []byte{0xC0, 0x05, 0, 0, 0, 0, 0}
	_, _, err := DecodeName(buf, 0)
	require.Error(t, err)
}

func TestNameDecodeRejectsLongPointerChain(t *testing.T) {
	// Build a chain of 20 backward-pointing pointers, each pointing to the
	// previous pointer's offset, bottoming out at a root label. Backward-
	// only pointers can never loop, but a chain this long must still be
	// rejected by the hop-count limit.
	buf := []byte{0x00} // offset 0: root label
	prev := 0
	for i := 0; i < 20; i++ {
		off := len(buf)
		buf = append(buf, byte(0xC0|(prev>>8)), byte(prev))
		prev = off
	}
	_, _, err := DecodeName(buf, prev)
	require.Error(t, err)
}

func TestNewNameRejectsOverlongLabel(t *testing.T) {
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	_, err := NewName(string(long) + ".local.")
	require.Error(t, err)
}
