// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"net"
)

// Type is a DNS RR/question type.
type Type uint16

const (
	TypeA     Type = 1
	TypeNS    Type = 2
	TypeCNAME Type = 5
	TypePTR   Type = 12
	TypeTXT   Type = 16
	TypeAAAA  Type = 28
	TypeSRV   Type = 33
	TypeNSEC  Type = 47
	TypeANY   Type = 255
)

func (t Type) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeNS:
		return "NS"
	case TypeCNAME:
		return "CNAME"
	case TypePTR:
		return "PTR"
	case TypeTXT:
		return "TXT"
	case TypeAAAA:
		return "AAAA"
	case TypeSRV:
		return "SRV"
	case TypeNSEC:
		return "NSEC"
	case TypeANY:
		return "ANY"
	default:
		return "TYPE" + itoa(uint16(t))
	}
}

// Class is almost always ClassINET. The cache-flush/QU bit (the top bit
// of the 16-bit wire field) is tracked separately on Question/Resource
// rather than folded into Class, so Class itself is always the plain
// 1-15 bit value.
type Class uint16

const ClassINET Class = 1

// Question is a single entry of a message's question section.
type Question struct {
	Name             Name
	Type             Type
	Class            Class
	UnicastResponse bool // the QU bit: top bit of the wire class field
}

// TTLCancelled flags a resource withdrawn from an outbound queue before
// it was ever written to the wire; the scheduler drops it silently at
// send time. It is never valid on the wire.
const TTLCancelled uint32 = 0xFFFFFFFF

// Resource is a single resource record. Data holds exactly one of the
// typed payloads below, chosen by Type.
type Resource struct {
	Name        Name
	Type        Type
	Class       Class
	CacheFlush bool
	TTL         uint32
	Data        Data
}

// Data is the tagged variant over a resource's rdata. Each concrete type
// below implements it.
type Data interface {
	rrType() Type
	encode(buf *[]byte, table compressionTable) error
	// equal compares rdata ignoring TTL and any wrapping Resource fields.
	equal(Data) bool
}

// NewA builds an A resource record.
func NewA(name Name, ttl uint32, addr net.IP) *Resource {
	return &Resource{Name: name, Type: TypeA, Class: ClassINET, TTL: ttl, Data: DataA{Address: addr.To4()}}
}

// NewAAAA builds an AAAA resource record.
func NewAAAA(name Name, ttl uint32, addr net.IP) *Resource {
	return &Resource{Name: name, Type: TypeAAAA, Class: ClassINET, TTL: ttl, Data: DataAAAA{Address: addr.To16()}}
}

// NewPTR builds a PTR resource record.
func NewPTR(name Name, ttl uint32, target Name) *Resource {
	return &Resource{Name: name, Type: TypePTR, Class: ClassINET, TTL: ttl, Data: DataPTR{Target: target}}
}

// NewCNAME builds a CNAME resource record.
func NewCNAME(name Name, ttl uint32, target Name) *Resource {
	return &Resource{Name: name, Type: TypeCNAME, Class: ClassINET, TTL: ttl, Data: DataCNAME{Target: target}}
}

// NewNS builds an NS resource record.
func NewNS(name Name, ttl uint32, target Name) *Resource {
	return &Resource{Name: name, Type: TypeNS, Class: ClassINET, TTL: ttl, Data: DataNS{Target: target}}
}

// NewSRV builds an SRV resource record.
func NewSRV(name Name, ttl uint32, priority, weight, port uint16, target Name) *Resource {
	return &Resource{Name: name, Type: TypeSRV, Class: ClassINET, TTL: ttl, Data: DataSRV{
		Priority: priority, Weight: weight, Port: port, Target: target,
	}}
}

// NewTXT builds a TXT resource record from a set of already-split
// strings; each must be at most 255 bytes.
func NewTXT(name Name, ttl uint32, strs ...[]byte) *Resource {
	return &Resource{Name: name, Type: TypeTXT, Class: ClassINET, TTL: ttl, Data: DataTXT{Strings: strs}}
}

// NewNSEC builds an NSEC resource record.
func NewNSEC(name Name, ttl uint32, next Name, types []Type) *Resource {
	return &Resource{Name: name, Type: TypeNSEC, Class: ClassINET, TTL: ttl, Data: DataNSEC{Next: next, Types: types}}
}

// Equal compares two resources by (name, type, class, rdata), ignoring
// TTL and the cache-flush bit, per spec §4.C.
func (r *Resource) Equal(other *Resource) bool {
	if r == nil || other == nil {
		return r == other
	}
	if !r.Name.Equal(other.Name) || r.Type != other.Type || r.Class != other.Class {
		return false
	}
	return r.Data.equal(other.Data)
}

// --- typed rdata ---

type DataA struct{ Address net.IP }

func (DataA) rrType() Type { return TypeA }
func (d DataA) equal(o Data) bool {
	od, ok := o.(DataA)
	return ok && d.Address.Equal(od.Address)
}
func (d DataA) encode(buf *[]byte, _ compressionTable) error {
	v4 := d.Address.To4()
	if v4 == nil {
		return errMalformedData("A record address is not IPv4")
	}
	*buf = append(*buf, v4...)
	return nil
}

type DataAAAA struct{ Address net.IP }

func (DataAAAA) rrType() Type { return TypeAAAA }
func (d DataAAAA) equal(o Data) bool {
	od, ok := o.(DataAAAA)
	return ok && d.Address.Equal(od.Address)
}
func (d DataAAAA) encode(buf *[]byte, _ compressionTable) error {
	v6 := d.Address.To16()
	if v6 == nil {
		return errMalformedData("AAAA record address is not IPv6")
	}
	*buf = append(*buf, v6...)
	return nil
}

type DataPTR struct{ Target Name }

func (DataPTR) rrType() Type { return TypePTR }
func (d DataPTR) equal(o Data) bool {
	od, ok := o.(DataPTR)
	return ok && d.Target.Equal(od.Target)
}
func (d DataPTR) encode(buf *[]byte, table compressionTable) error {
	return EncodeName(buf, d.Target, table)
}

type DataCNAME struct{ Target Name }

func (DataCNAME) rrType() Type { return TypeCNAME }
func (d DataCNAME) equal(o Data) bool {
	od, ok := o.(DataCNAME)
	return ok && d.Target.Equal(od.Target)
}
func (d DataCNAME) encode(buf *[]byte, table compressionTable) error {
	return EncodeName(buf, d.Target, table)
}

type DataNS struct{ Target Name }

func (DataNS) rrType() Type { return TypeNS }
func (d DataNS) equal(o Data) bool {
	od, ok := o.(DataNS)
	return ok && d.Target.Equal(od.Target)
}
func (d DataNS) encode(buf *[]byte, table compressionTable) error {
	return EncodeName(buf, d.Target, table)
}

type DataSRV struct {
	Priority, Weight, Port uint16
	Target                 Name
}

func (DataSRV) rrType() Type { return TypeSRV }
func (d DataSRV) equal(o Data) bool {
	od, ok := o.(DataSRV)
	return ok && d.Priority == od.Priority && d.Weight == od.Weight && d.Port == od.Port && d.Target.Equal(od.Target)
}
func (d DataSRV) encode(buf *[]byte, table compressionTable) error {
	*buf = appendU16(*buf, d.Priority)
	*buf = appendU16(*buf, d.Weight)
	*buf = appendU16(*buf, d.Port)
	// SRV targets are not compressed per RFC 2782 guidance followed by
	// most mDNS stacks (simplifies rdlength backpatching); encode plainly.
	return EncodeName(buf, d.Target, nil)
}

type DataTXT struct{ Strings [][]byte }

func (DataTXT) rrType() Type { return TypeTXT }
func (d DataTXT) equal(o Data) bool {
	od, ok := o.(DataTXT)
	if !ok || len(d.Strings) != len(od.Strings) {
		return false
	}
	for i := range d.Strings {
		if !bytes.Equal(d.Strings[i], od.Strings[i]) {
			return false
		}
	}
	return true
}
func (d DataTXT) encode(buf *[]byte, _ compressionTable) error {
	if len(d.Strings) == 0 {
		// RFC 6763 §6.1: a TXT record with no strings is encoded as a
		// single empty string.
		*buf = append(*buf, 0x00)
		return nil
	}
	for _, s := range d.Strings {
		if len(s) > 255 {
			return errMalformedData("txt string exceeds 255 bytes")
		}
		*buf = append(*buf, byte(len(s)))
		*buf = append(*buf, s...)
	}
	return nil
}

type DataNSEC struct {
	Next  Name
	Types []Type
}

func (DataNSEC) rrType() Type { return TypeNSEC }
func (d DataNSEC) equal(o Data) bool {
	od, ok := o.(DataNSEC)
	if !ok || !d.Next.Equal(od.Next) || len(d.Types) != len(od.Types) {
		return false
	}
	for i := range d.Types {
		if d.Types[i] != od.Types[i] {
			return false
		}
	}
	return true
}
func (d DataNSEC) encode(buf *[]byte, _ compressionTable) error {
	if err := EncodeName(buf, d.Next, nil); err != nil {
		return err
	}
	*buf = append(*buf, encodeTypeBitmap(d.Types)...)
	return nil
}

// DataOpaque holds the raw rdata of a type this codec does not model.
type DataOpaque struct {
	Type Type
	Raw  []byte
}

func (d DataOpaque) rrType() Type { return d.Type }
func (d DataOpaque) equal(o Data) bool {
	od, ok := o.(DataOpaque)
	return ok && d.Type == od.Type && bytes.Equal(d.Raw, od.Raw)
}
func (d DataOpaque) encode(buf *[]byte, _ compressionTable) error {
	*buf = append(*buf, d.Raw...)
	return nil
}

func appendU16(b []byte, v uint16) []byte { return append(b, byte(v>>8), byte(v)) }
func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
