// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sync/errgroup"

	"github.com/web0316/netconnector/internal/wire"
)

const readBufferSize = 9000 // comfortably above a v4 path MTU; oversize datagrams are just truncated by ReadFrom.

// udpTransceiver is the default Transceiver (spec §4.D): it joins the
// mDNS multicast groups on every enabled interface and bridges raw
// datagrams to/from wire.Message. Unlike Engine, this component owns
// real OS threads (one read loop per bound socket) so it guards its
// state with a mutex rather than a run loop.
type udpTransceiver struct {
	log *logger

	mu      sync.Mutex
	ifaces  map[string]bool // name -> requested for v4
	ifaces6 map[string]bool // name -> requested for v6

	conn4 *ipv4.PacketConn
	conn6 *ipv6.PacketConn

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewUDPTransceiver builds a Transceiver that binds real UDP sockets.
// Logging is internal to the package (logger is unexported), so callers
// outside mdns get a default logger rather than having to construct one.
func NewUDPTransceiver() *udpTransceiver {
	return &udpTransceiver{
		log:     newLogger(),
		ifaces:  map[string]bool{},
		ifaces6: map[string]bool{},
	}
}

func (t *udpTransceiver) EnableInterface(name, family string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch family {
	case "ip4":
		t.ifaces[name] = true
	case "ip6":
		t.ifaces6[name] = true
	default:
		return errors.Errorf("udp transceiver: unknown family %q", family)
	}
	return nil
}

func (t *udpTransceiver) Start(hostFullName wire.Name, inbound InboundFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	var joinErr error
	if len(t.ifaces) > 0 {
		if err := t.startV4(); err != nil {
			joinErr = multierr.Append(joinErr, err)
			if t.conn4 != nil && len(multierr.Errors(err)) >= len(t.ifaces) {
				_ = t.conn4.Close() // no interface joined the v4 group
				t.conn4 = nil
			}
		}
	}
	if len(t.ifaces6) > 0 {
		if err := t.startV6(); err != nil {
			joinErr = multierr.Append(joinErr, err)
			if t.conn6 != nil && len(multierr.Errors(err)) >= len(t.ifaces6) {
				_ = t.conn6.Close() // no interface joined the v6 group
				t.conn6 = nil
			}
		}
	}
	if joinErr != nil {
		t.log.warn("transceiver start had interface failures", zap.Error(joinErr))
	}
	if t.conn4 == nil && t.conn6 == nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	group, ctx := errgroup.WithContext(ctx)
	t.group = group

	if t.conn4 != nil {
		c := t.conn4
		group.Go(func() error { return t.readLoop(ctx, c.ReadFrom, inbound) })
	}
	if t.conn6 != nil {
		c := t.conn6
		group.Go(func() error { return t.readLoopV6(ctx, c, inbound) })
	}
	return true
}

func (t *udpTransceiver) startV4() error {
	pc, err := net.ListenPacket("udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(Port)))
	if err != nil {
		return errors.Wrap(err, "listen udp4")
	}
	conn := ipv4.NewPacketConn(pc)
	var errs error
	for name := range t.ifaces {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := conn.JoinGroup(iface, V4Multicast); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	_ = conn.SetMulticastLoopback(false)
	t.conn4 = conn
	return errs
}

func (t *udpTransceiver) startV6() error {
	pc, err := net.ListenPacket("udp6", net.JoinHostPort("::", strconv.Itoa(Port)))
	if err != nil {
		return errors.Wrap(err, "listen udp6")
	}
	conn := ipv6.NewPacketConn(pc)
	var errs error
	for name := range t.ifaces6 {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := conn.JoinGroup(iface, V6Multicast); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	_ = conn.SetMulticastLoopback(false)
	t.conn6 = conn
	return errs
}

type readFromFunc func(b []byte) (int, *ipv4.ControlMessage, net.Addr, error)

func (t *udpTransceiver) readLoop(ctx context.Context, readFrom readFromFunc, inbound InboundFunc) error {
	buf := make([]byte, readBufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, cm, src, err := readFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		t.dispatch(buf[:n], src, ifaceIndexOf4(cm), inbound)
	}
}

func (t *udpTransceiver) readLoopV6(ctx context.Context, conn *ipv6.PacketConn, inbound InboundFunc) error {
	buf := make([]byte, readBufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, cm, src, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		idx := 0
		if cm != nil {
			idx = cm.IfIndex
		}
		t.dispatch(buf[:n], src, idx, inbound)
	}
}

func ifaceIndexOf4(cm *ipv4.ControlMessage) int {
	if cm == nil {
		return 0
	}
	return cm.IfIndex
}

func (t *udpTransceiver) dispatch(b []byte, src net.Addr, ifaceIndex int, inbound InboundFunc) {
	msg, err := wire.Decode(b)
	if err != nil {
		t.log.debug("dropping malformed datagram", zap.Error(err))
		return
	}
	udpSrc, _ := src.(*net.UDPAddr)
	inbound(msg, udpSrc, ifaceIndex)
}

// SendMessage serialises msg once and writes it to every bound socket:
// the v4 socket gets dest as given, and the v6 socket gets V6Multicast
// when the caller addressed the v4 group, dest otherwise (spec §4.D).
// ifaceIndex is not used; every write goes out through the socket as a
// whole.
func (t *udpTransceiver) SendMessage(msg *wire.Message, dest *net.UDPAddr, ifaceIndex int) error {
	raw, err := wire.Encode(msg)
	if err != nil {
		return errors.Wrap(err, "encode outbound message")
	}

	t.mu.Lock()
	conn4, conn6 := t.conn4, t.conn6
	t.mu.Unlock()

	var errs error
	if conn4 != nil {
		if _, err := conn4.WriteTo(raw, nil, dest); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if conn6 != nil {
		v6dest := dest
		if isV4MulticastGroup(dest) {
			v6dest = V6Multicast
		}
		if _, err := conn6.WriteTo(raw, nil, v6dest); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (t *udpTransceiver) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	conn4, conn6 := t.conn4, t.conn6
	group := t.group
	t.conn4, t.conn6 = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn4 != nil {
		_ = conn4.Close()
	}
	if conn6 != nil {
		_ = conn6.Close()
	}
	if group != nil {
		_ = group.Wait()
	}
}
