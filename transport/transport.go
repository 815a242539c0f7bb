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

// Package transport defines the narrow boundary between the replication
// core and the network: unreliable datagram send, reliable ordered
// streams keyed by channel, and an accept loop producing new links. The
// core's own state (bitstream, variant, replica, peer) never touches a
// socket directly; only a Transport implementation does.
package transport

import "context"

// Endpoint is an opaque remote address a Transport hands back on accept
// or receive, and which the caller passes back in on Send.
type Endpoint interface {
	String() string
}

// Incoming is one datagram received from some endpoint.
type Incoming struct {
	From    Endpoint
	Payload []byte
}

// AcceptedLink is a newly observed remote endpoint, surfaced by the
// accept loop before any PeerLink handshake has run against it.
type AcceptedLink struct {
	From Endpoint
}

// Transport is the boundary the core depends on. Implementations may be
// UDP (the default), an in-memory pipe for tests, or anything else that
// can move framed byte payloads between endpoints.
type Transport interface {
	// Send transmits an unreliable, unordered payload to to.
	Send(to Endpoint, payload []byte) error

	// OpenStream returns a reliable, ordered channel-keyed stream to to.
	// Payloads written to the returned Stream are delivered in order and
	// without loss; channel is an application-chosen key (e.g. a replica
	// channel name) so multiple independent streams can multiplex one
	// link without head-of-line blocking each other.
	OpenStream(to Endpoint, channel string) (Stream, error)

	// Accept blocks until a new remote endpoint is observed (e.g. a UDP
	// datagram from an address with no existing link), or ctx is done.
	Accept(ctx context.Context) (AcceptedLink, error)

	// Receive blocks until an unreliable datagram arrives, or ctx is done.
	Receive(ctx context.Context) (Incoming, error)

	// Close releases the transport's underlying resources.
	Close() error
}

// Stream is one reliable, ordered byte stream keyed by channel.
type Stream interface {
	Write(payload []byte) error
	Close() error
}

// DispatchOutgoing sends every framed payload to to over t, stopping at
// the first error so a caller can tell which frame in the batch failed.
// This is the one place peer.Peer's OutboundPacket results meet an actual
// Transport; peer itself never imports this package, keeping the
// single-threaded core decoupled from the network boundary per §5.
func DispatchOutgoing(t Transport, to Endpoint, payloads [][]byte) error {
	for _, p := range payloads {
		if err := t.Send(to, p); err != nil {
			return err
		}
	}
	return nil
}
