/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
)

// udpEndpoint wraps a net.UDPAddr as an Endpoint.
type udpEndpoint struct{ addr *net.UDPAddr }

func (e udpEndpoint) String() string { return e.addr.String() }

// ResolveUDPEndpoint turns a "host:port" string into an Endpoint a caller
// outside this package can pass to UDP.Send, without exposing udpEndpoint
// itself.
func ResolveUDPEndpoint(hostport string) (Endpoint, error) {
	addr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return nil, err
	}
	return udpEndpoint{addr: addr}, nil
}

// UDP is the default Transport: unreliable datagrams ride the socket
// directly; reliable streams are a small sequence-numbered ARQ layered on
// top, framed with a one-byte kind tag so data and ack datagrams share the
// same socket. Only the sending half of a stream is implemented: received
// stream data is acknowledged and then discarded, and nothing delivers it
// to a caller.
type UDP struct {
	conn    *net.UDPConn
	pconn   *ipv4.PacketConn // broadcast/multicast socket options
	mu      sync.Mutex
	streams map[string]*udpStream

	incoming chan Incoming
	accepted chan AcceptedLink
	seen     map[string]bool

	closeOnce sync.Once
	done      chan struct{}
}

const (
	kindUnreliable byte = iota
	kindStreamData
	kindStreamAck
)

// ListenUDP binds a UDP socket on addr and enables broadcast, so LAN
// discovery's PlanBroadcast targets can actually be reached.
func ListenUDP(addr string) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.SetControlMessage(ipv4.FlagDst, true); err != nil {
		log.WithError(err).Debug("transport: control message flag unavailable on this platform")
	}

	u := &UDP{
		conn:     conn,
		pconn:    pconn,
		streams:  make(map[string]*udpStream),
		incoming: make(chan Incoming, 256),
		accepted: make(chan AcceptedLink, 32),
		seen:     make(map[string]bool),
		done:     make(chan struct{}),
	}
	go u.readLoop()
	return u, nil
}

func (u *UDP) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, _, from, err := u.pconn.ReadFrom(buf)
		if err != nil {
			select {
			case <-u.done:
				return
			default:
				log.WithError(err).Warn("transport: udp read error")
				return
			}
		}
		udpFrom, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		ep := udpEndpoint{addr: udpFrom}
		key := ep.String()

		u.mu.Lock()
		firstSeen := !u.seen[key]
		u.seen[key] = true
		u.mu.Unlock()
		if firstSeen {
			select {
			case u.accepted <- AcceptedLink{From: ep}:
			default:
			}
		}

		if n < 1 {
			continue
		}
		payload := append([]byte(nil), buf[1:n]...)
		switch buf[0] {
		case kindUnreliable:
			select {
			case u.incoming <- Incoming{From: ep, Payload: payload}:
			default:
				log.Warn("transport: incoming queue full, dropping unreliable datagram")
			}
		case kindStreamData:
			u.handleStreamData(ep, payload)
		case kindStreamAck:
			u.handleStreamAck(ep, payload)
		}
	}
}

// Send transmits an unreliable payload.
func (u *UDP) Send(to Endpoint, payload []byte) error {
	ep, ok := to.(udpEndpoint)
	if !ok {
		return fmt.Errorf("transport: endpoint not produced by this transport")
	}
	framed := append([]byte{kindUnreliable}, payload...)
	_, err := u.conn.WriteToUDP(framed, ep.addr)
	return err
}

// OpenStream returns (creating if absent) the reliable ordered stream to
// to keyed by channel.
func (u *UDP) OpenStream(to Endpoint, channel string) (Stream, error) {
	ep, ok := to.(udpEndpoint)
	if !ok {
		return nil, fmt.Errorf("transport: endpoint not produced by this transport")
	}
	key := ep.String() + "/" + channel
	u.mu.Lock()
	defer u.mu.Unlock()
	s, ok := u.streams[key]
	if !ok {
		s = &udpStream{udp: u, to: ep, channel: channel, pendingAcks: make(map[uint32][]byte)}
		u.streams[key] = s
	}
	return s, nil
}

func (u *UDP) handleStreamData(from udpEndpoint, payload []byte) {
	if len(payload) < 4 {
		return
	}
	seq := binary.BigEndian.Uint32(payload[:4])
	ack := append([]byte{kindStreamAck}, payload[:4]...)
	_, _ = u.conn.WriteToUDP(ack, from.addr)
	_ = seq // the payload after the sequence number is not delivered anywhere
}

func (u *UDP) handleStreamAck(from udpEndpoint, payload []byte) {
	if len(payload) < 4 {
		return
	}
	seq := binary.BigEndian.Uint32(payload)
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, s := range u.streams {
		if s.to == from {
			delete(s.pendingAcks, seq)
		}
	}
}

// Accept blocks for the next newly observed remote endpoint.
func (u *UDP) Accept(ctx context.Context) (AcceptedLink, error) {
	select {
	case a := <-u.accepted:
		return a, nil
	case <-ctx.Done():
		return AcceptedLink{}, ctx.Err()
	case <-u.done:
		return AcceptedLink{}, fmt.Errorf("transport: closed")
	}
}

// Receive blocks for the next unreliable datagram.
func (u *UDP) Receive(ctx context.Context) (Incoming, error) {
	select {
	case in := <-u.incoming:
		return in, nil
	case <-ctx.Done():
		return Incoming{}, ctx.Err()
	case <-u.done:
		return Incoming{}, fmt.Errorf("transport: closed")
	}
}

// Close releases the underlying socket.
func (u *UDP) Close() error {
	u.closeOnce.Do(func() { close(u.done) })
	return u.conn.Close()
}

// udpStream is one reliable, ordered, channel-keyed send queue: every
// Write is tagged with a monotonic sequence number and resent on a timer
// until its ack arrives.
type udpStream struct {
	udp         *UDP
	to          udpEndpoint
	channel     string
	nextSeq     uint32
	mu          sync.Mutex
	pendingAcks map[uint32][]byte
}

const streamRetransmitInterval = 200 * time.Millisecond

func (s *udpStream) Write(payload []byte) error {
	s.mu.Lock()
	seq := s.nextSeq
	s.nextSeq++
	framed := make([]byte, 0, 5+len(payload))
	framed = append(framed, kindStreamData)
	var seqBytes [4]byte
	binary.BigEndian.PutUint32(seqBytes[:], seq)
	framed = append(framed, seqBytes[:]...)
	framed = append(framed, payload...)
	s.pendingAcks[seq] = framed
	s.mu.Unlock()

	_, err := s.udp.conn.WriteToUDP(framed, s.to.addr)
	if err != nil {
		return err
	}
	go s.retransmitUntilAcked(seq)
	return nil
}

func (s *udpStream) retransmitUntilAcked(seq uint32) {
	ticker := time.NewTicker(streamRetransmitInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		framed, pending := s.pendingAcks[seq]
		s.mu.Unlock()
		if !pending {
			return
		}
		if _, err := s.udp.conn.WriteToUDP(framed, s.to.addr); err != nil {
			log.WithError(err).Debug("transport: stream retransmit failed")
			return
		}
	}
}

func (s *udpStream) Close() error { return nil }
