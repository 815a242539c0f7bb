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

// Package peerlink implements one ordered, flow-controlled connection
// between two peers, modeled as the small handshake state machine the
// specification calls for: a tagged state plus a pure Advance(event)
// transition function, so the handshake can be driven and tested without
// a live transport. Every step is idempotent against a replayed packet:
// Advance never mutates state beyond what the first application of an
// event already produced.
package peerlink

import "time"

// State is one step of the link handshake.
type State uint8

const (
	Unattempted State = iota
	AttemptingConnect
	Connected
	Disconnecting
	Disconnected
)

func (s State) String() string {
	switch s {
	case Unattempted:
		return "Unattempted"
	case AttemptingConnect:
		return "AttemptingConnect"
	case Connected:
		return "Connected"
	case Disconnecting:
		return "Disconnecting"
	case Disconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// Direction records which side initiated the link.
type Direction uint8

const (
	WeInitiated Direction = iota
	TheyInitiated
)

// EventKind is a handshake input.
type EventKind uint8

const (
	EventSendConnectRequest EventKind = iota
	EventReceiveConnectRequest
	EventReceiveConnectResponseAccept
	EventReceiveConnectResponseDeny
	EventReceiveConnectConfirmation
	EventReceiveDisconnectNotice
	EventSendDisconnectNotice
	EventAttemptTimeout
)

// Event is one handshake input, carrying whatever data that input needs.
type Event struct {
	Kind           EventKind
	AssignedPeerID uint32 // server -> client, accompanies EventReceiveConnectResponseAccept
	DenyBundleLen  int    // diagnostic only; the actual bundle rides the caller's own channel
}

// OutMessage is a side effect Advance asks the caller to perform; the
// transition function itself never touches a transport.
type OutMessage int

const (
	OutNone OutMessage = iota
	OutSendConnectRequest
	OutSendConnectResponseAccept
	OutSendConnectResponseDeny
	OutSendConnectConfirmation
	OutPublishLinkConnected
	OutSendDisconnectNotice
	OutDestroyLink
	OutPublishConnectDenied
)

// Link is one PeerLink's identity and handshake state.
type Link struct {
	LocalPeerID  uint32
	RemotePeerID uint32
	IPAddress    string
	Direction    Direction
	RemoteGUID   uint64
	CreatedAt    time.Time

	state State

	// OutgoingFrameBudget bounds how many bits of change-frame data this
	// link may send per net tick before frameFillWarning/frameFillSkip
	// thresholds apply; see peer.Peer.
	OutgoingFrameBudgetBits int
}

// New starts a link in the Unattempted state.
func New(direction Direction, ipAddress string) *Link {
	return &Link{Direction: direction, IPAddress: ipAddress, CreatedAt: time.Now(), state: Unattempted}
}

// State reports the current handshake state.
func (l *Link) State() State { return l.state }

// Advance is the pure-ish transition function: given the link's current
// state and an incoming event, it computes the new state and the
// messages the caller should send/publish as a result. Replaying the same
// event against a state it has already resolved is a no-op (returns the
// same state and no messages), satisfying the replay-idempotence
// requirement.
func (l *Link) Advance(ev Event) (State, []OutMessage) {
	switch l.state {
	case Unattempted:
		return l.advanceUnattempted(ev)
	case AttemptingConnect:
		return l.advanceAttemptingConnect(ev)
	case Connected:
		return l.advanceConnected(ev)
	case Disconnecting:
		return l.advanceDisconnecting(ev)
	default: // Disconnected
		return l.state, nil
	}
}

func (l *Link) advanceUnattempted(ev Event) (State, []OutMessage) {
	switch ev.Kind {
	case EventSendConnectRequest:
		l.state = AttemptingConnect
		return l.state, []OutMessage{OutSendConnectRequest}
	case EventReceiveConnectRequest:
		// Server side: remains Unattempted until the application's accept/
		// deny handler resolves; that resolution is driven externally via
		// ResolveIncomingConnect, not through Advance, since it needs the
		// handler's bundle-producing side effect.
		return l.state, nil
	default:
		return l.state, nil
	}
}

// ResolveIncomingConnect is called by the server side once its accept/deny
// handler has decided; it is not modeled as an Advance event because the
// decision itself is an application callback, not a pure transition.
func (l *Link) ResolveIncomingConnect(accept bool, assignedPeerID uint32) (State, []OutMessage) {
	if l.state != Unattempted {
		return l.state, nil // already resolved; replay is a no-op
	}
	if accept {
		// assignedPeerID is the netPeerId the server just minted for the
		// *client* on the other end of this link, not the server's own id.
		l.RemotePeerID = assignedPeerID
		l.state = AttemptingConnect
		return l.state, []OutMessage{OutSendConnectResponseAccept}
	}
	l.state = Disconnected
	return l.state, []OutMessage{OutSendConnectResponseDeny, OutPublishConnectDenied, OutDestroyLink}
}

func (l *Link) advanceAttemptingConnect(ev Event) (State, []OutMessage) {
	switch ev.Kind {
	case EventReceiveConnectResponseAccept:
		// The server assigned this netPeerId to us; record it as our own.
		l.LocalPeerID = ev.AssignedPeerID
		return l.state, []OutMessage{OutSendConnectConfirmation}
	case EventReceiveConnectResponseDeny:
		l.state = Disconnected
		return l.state, []OutMessage{OutPublishConnectDenied, OutDestroyLink}
	case EventReceiveConnectConfirmation:
		l.state = Connected
		return l.state, []OutMessage{OutPublishLinkConnected}
	case EventAttemptTimeout:
		l.state = Disconnected
		return l.state, []OutMessage{OutDestroyLink}
	default:
		return l.state, nil
	}
}

func (l *Link) advanceConnected(ev Event) (State, []OutMessage) {
	switch ev.Kind {
	case EventReceiveConnectConfirmation:
		// Replayed confirmation after we already connected: no-op.
		return l.state, nil
	case EventSendDisconnectNotice:
		l.state = Disconnecting
		return l.state, []OutMessage{OutSendDisconnectNotice}
	case EventReceiveDisconnectNotice:
		l.state = Disconnected
		return l.state, []OutMessage{OutDestroyLink}
	default:
		return l.state, nil
	}
}

func (l *Link) advanceDisconnecting(ev Event) (State, []OutMessage) {
	switch ev.Kind {
	case EventReceiveDisconnectNotice:
		l.state = Disconnected
		return l.state, []OutMessage{OutDestroyLink}
	default:
		return l.state, nil
	}
}
