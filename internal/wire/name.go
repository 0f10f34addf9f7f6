// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	maxLabelLen = 63
	maxNameLen  = 255
	maxPointers = 16
	pointerTag  = 0xC0
)

// ErrMalformedName is wrapped by every name-decode failure.
var ErrMalformedName = errors.New("malformed dns name")

// Name is a sequence of labels, each at most 63 bytes, in wire order. A
// fully-qualified name's last label is the empty root label; Name never
// stores that trailing empty label explicitly, it is implied.
//
// Labels are compared octet-wise case-insensitively but round-trip
// through Encode/Decode byte-for-byte, matching RFC 6762's requirement
// that case be preserved but ignored for comparison.
type Name struct {
	Labels [][]byte
}

// NewName splits a dotted textual name ("alice.local." or "alice.local")
// into labels. An escaped dot ("\.") is not supported: mDNS host and
// service labels used by this engine never contain one.
func NewName(s string) (Name, error) {
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return Name{}, nil
	}
	parts := strings.Split(s, ".")
	n := Name{Labels: make([][]byte, 0, len(parts))}
	total := 0
	for _, p := range parts {
		if len(p) == 0 || len(p) > maxLabelLen {
			return Name{}, errors.Wrapf(ErrMalformedName, "label %q has invalid length", p)
		}
		total += len(p) + 1
		n.Labels = append(n.Labels, []byte(p))
	}
	if total > maxNameLen {
		return Name{}, errors.Wrapf(ErrMalformedName, "name %q exceeds %d bytes", s, maxNameLen)
	}
	return n, nil
}

// String renders the name as a dotted, fully-qualified string.
func (n Name) String() string {
	if len(n.Labels) == 0 {
		return "."
	}
	var b strings.Builder
	for _, l := range n.Labels {
		b.Write(l)
		b.WriteByte('.')
	}
	return b.String()
}

// Equal compares names octet-wise case-insensitively, per label.
func (n Name) Equal(other Name) bool {
	if len(n.Labels) != len(other.Labels) {
		return false
	}
	for i := range n.Labels {
		if !strings.EqualFold(string(n.Labels[i]), string(other.Labels[i])) {
			return false
		}
	}
	return true
}

// key returns a canonical lowercase dotted form, used as a compression
// table key and as a map key for resource dedup tables elsewhere.
func (n Name) key() string {
	return strings.ToLower(n.String())
}

// suffixes returns, from longest to shortest, every suffix of n
// expressed as its own Name, ending with the empty root (n.local.,
// local., the empty root).
func (n Name) suffixes() []Name {
	out := make([]Name, 0, len(n.Labels)+1)
	for i := 0; i <= len(n.Labels); i++ {
		out = append(out, Name{Labels: n.Labels[i:]})
	}
	return out
}

// compressionTable maps a name suffix's canonical key to the wire offset
// at which that suffix was first written in the current message buffer.
type compressionTable map[string]int

// EncodeName writes n to buf starting at the buffer's current length,
// substituting a back-pointer for the longest previously-seen suffix
// when table is non-nil. table is updated with every newly-written
// suffix whose offset fits in the 14-bit pointer field.
func EncodeName(buf *[]byte, n Name, table compressionTable) error {
	suffixes := n.suffixes()
	for i, suf := range suffixes {
		if len(suf.Labels) == 0 {
			*buf = append(*buf, 0x00)
			return nil
		}
		if table != nil {
			if off, ok := table[suf.key()]; ok {
				*buf = append(*buf, byte(pointerTag|(off>>8)), byte(off))
				return nil
			}
		}
		label := suf.Labels[0]
		if len(label) == 0 || len(label) > maxLabelLen {
			return errors.Wrapf(ErrMalformedName, "label %q has invalid length", label)
		}
		if table != nil && len(*buf) <= 0x3FFF {
			table[suf.key()] = len(*buf)
		}
		*buf = append(*buf, byte(len(label)))
		*buf = append(*buf, label...)
		_ = i
	}
	*buf = append(*buf, 0x00)
	return nil
}

// DecodeName reads a name starting at off and returns it along with the
// offset of the byte following the name (following exactly one pointer
// hop if present, per RFC 1035 §4.1.4).
func DecodeName(msg []byte, off int) (Name, int, error) {
	var labels [][]byte
	cursor := off
	consumedTo := -1
	pointers := 0
	total := 0

	for {
		if cursor >= len(msg) {
			return Name{}, 0, errors.Wrap(ErrMalformedName, "name runs past end of message")
		}
		c := int(msg[cursor])
		switch {
		case c == 0x00:
			cursor++
			if consumedTo < 0 {
				consumedTo = cursor
			}
			if total > maxNameLen {
				return Name{}, 0, errors.Wrapf(ErrMalformedName, "name exceeds %d bytes", maxNameLen)
			}
			return Name{Labels: labels}, consumedTo, nil
		case c&0xC0 == 0xC0:
			if cursor+1 >= len(msg) {
				return Name{}, 0, errors.Wrap(ErrMalformedName, "truncated pointer")
			}
			next := (c&0x3F)<<8 | int(msg[cursor+1])
			if consumedTo < 0 {
				consumedTo = cursor + 2
			}
			pointers++
			if pointers > maxPointers {
				return Name{}, 0, errors.Wrap(ErrMalformedName, "pointer chain too long")
			}
			if next >= cursor {
				return Name{}, 0, errors.Wrap(ErrMalformedName, "pointer does not point backward")
			}
			cursor = next
		case c&0xC0 != 0x00:
			return Name{}, 0, errors.Wrap(ErrMalformedName, "reserved label length bits set")
		default:
			if c > maxLabelLen {
				return Name{}, 0, errors.Wrapf(ErrMalformedName, "label length %d exceeds %d", c, maxLabelLen)
			}
			if cursor+1+c > len(msg) {
				return Name{}, 0, errors.Wrap(ErrMalformedName, "label runs past end of message")
			}
			label := make([]byte, c)
			copy(label, msg[cursor+1:cursor+1+c])
			labels = append(labels, label)
			total += c + 1
			cursor += 1 + c
		}
	}
}
