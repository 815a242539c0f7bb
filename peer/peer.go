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

// Package peer implements NetPeer: the single-threaded, cooperative
// scheduler that owns every PeerLink, the net/user id stores, the
// replica family trees, and the per-tick bandwidth budget. Exactly one
// goroutine should drive a Peer's Tick; nothing here is safe to touch
// concurrently, matching the core's single-threaded design.
package peer

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash"
	version "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/replicore/engine/netmetrics"
	"github.com/replicore/engine/peerlink"
	"github.com/replicore/engine/replica"
	"github.com/replicore/engine/variant"
	"github.com/replicore/engine/wire"
)

// ProtocolVersion is this build's wire-protocol version, compared against
// a remote peer's advertised version during the connect handshake. Minor
// and patch changes stay wire-compatible; a major bump does not.
const ProtocolVersion = "1.4.0"

// CompatibleVersion reports whether a remote peer's advertised protocol
// version can interoperate with ours: same major version line. A server
// handler calls this before accepting a ConnectRequest so an incompatible
// client is denied instead of desyncing mid-session.
func CompatibleVersion(remote string) (bool, error) {
	local, err := version.NewVersion(ProtocolVersion)
	if err != nil {
		return false, err
	}
	rv, err := version.NewVersion(remote)
	if err != nil {
		return false, fmt.Errorf("peer: malformed remote protocol version %q: %w", remote, err)
	}
	return local.Segments()[0] == rv.Segments()[0], nil
}

var guidCounter uint64

// NewGUID mints a permanent peer GUID: a random seed hashed with
// cespare/xxhash folded against a monotonic counter, so GUIDs minted in
// the same process never collide even if the random seed repeats.
func NewGUID() uint64 {
	seed := make([]byte, 16)
	binary.LittleEndian.PutUint64(seed, rand.Uint64())
	binary.LittleEndian.PutUint64(seed[8:], uint64(time.Now().UnixNano()))
	h := xxhash.Sum64(seed)
	return h ^ atomic.AddUint64(&guidCounter, 1)
}

// Role is the peer's position in the network topology.
type Role uint8

const (
	RoleOffline Role = iota
	RoleClient
	RoleServer
	RoleMasterServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	case RoleMasterServer:
		return "masterServer"
	default:
		return "offline"
	}
}

// frameFillWarning/frameFillSkip bound how much of a link's outgoing frame
// budget replication may consume before being throttled: at or above
// frameFillWarning Tick logs a warning and sets TickResult.Warnings for the
// link, at or above frameFillSkip observation is suppressed entirely for
// the remainder of the tick.
const (
	frameFillWarning = 0.8
	frameFillSkip    = 0.9
)

// OutboundPacket is one fully framed packet ready for the transport to
// send to a link's remote address.
type OutboundPacket struct {
	LinkID uint32
	Body   []byte
}

// TickEvent is something a Peer wants its owner to react to after a tick:
// one of the level/game load signals a link's remote side sent. Handshake
// side effects and bandwidth warnings are not TickEvents; Tick reports them
// in TickResult.Outgoing and TickResult.Warnings.
type TickEvent struct {
	Kind   string
	LinkID uint32
	UserID uint32

	// ReplicaID and LevelResource are populated for Kind=="LevelLoadStarted"
	// or "LevelLoadFinished"; LevelResource only for "LevelLoadStarted".
	ReplicaID     replica.ObjectID
	LevelResource uint64
}

const (
	EventLevelLoadStarted  = "LevelLoadStarted"
	EventLevelLoadFinished = "LevelLoadFinished"
	EventGameLoadStarted   = "GameLoadStarted"
	EventGameLoadFinished  = "GameLoadFinished"
)

// Peer is one NetPeer: client, server, or master-server role, its
// identity, its links, and its id-owned state.
type Peer struct {
	Role    Role
	GUID    uint64
	Address string

	netPeerIDs *replica.IDStore
	netUserIDs *replica.IDStore

	links map[uint32]*peerlink.Link

	// addedByUs/addedByThem track, per link, which netUserIds that link's
	// remote side has been told about, so duplicate UserAdd replays don't
	// re-announce a user that already exists on the other side.
	addedByUs   map[uint32]map[uint32]bool
	addedByThem map[uint32]map[uint32]bool

	families map[replica.FamilyTreeID]*replica.FamilyTree

	// LocalUserID is the user this peer's own links observe/serialize
	// channels as, for ReplicaChannel.CanObserve's client-authority check.
	// A server peer ignores it (it always observes as the server).
	LocalUserID replica.UserID

	// replicas is every replica this peer knows about, observed for
	// outgoing serialization (via Owner) and/or deserialized into from
	// inbound frames, keyed by server-assigned ObjectID.
	replicas map[replica.ObjectID]*replica.Replica

	// releaseBuffers holds one ReleaseBuffer per (link, replica, channel)
	// tuple actively receiving frames, lazily created the first time a
	// frame for that tuple arrives.
	releaseBuffers map[uint32]map[releaseKey]*ReleaseBuffer

	// outSeq tracks the next outgoing sequence number per (link, replica,
	// channel) tuple this peer serializes frames for.
	outSeq map[uint32]map[releaseKey]uint32

	pending []pendingUserAdd

	// BandwidthFillThreshold overrides frameFillSkip when non-zero, for
	// tests that want to force suppression deterministically.
	BandwidthFillThreshold float64

	// Metrics, when non-nil, receives link/bandwidth counters as the peer
	// runs; nil is a valid zero value (no observability overhead in tests).
	Metrics *netmetrics.Metrics
}

type pendingUserAdd struct {
	linkID uint32
	userID uint32
}

// New starts an empty Peer in the given role.
func New(role Role, guid uint64, address string) *Peer {
	return &Peer{
		Role:        role,
		GUID:        guid,
		Address:     address,
		netPeerIDs:  &replica.IDStore{},
		netUserIDs:  &replica.IDStore{},
		links:       make(map[uint32]*peerlink.Link),
		addedByUs:   make(map[uint32]map[uint32]bool),
		addedByThem: make(map[uint32]map[uint32]bool),
		families:    make(map[replica.FamilyTreeID]*replica.FamilyTree),

		replicas:       make(map[replica.ObjectID]*replica.Replica),
		releaseBuffers: make(map[uint32]map[releaseKey]*ReleaseBuffer),
		outSeq:         make(map[uint32]map[releaseKey]uint32),
	}
}

// AddReplica registers r so Tick observes it (if it has an Owner) and/or
// deserializes inbound frames into it.
func (p *Peer) AddReplica(r *replica.Replica) {
	p.replicas[r.Identity.ObjectID] = r
}

// RemoveReplica forgets a replica and drops every release buffer and
// outgoing-sequence counter tracking it.
func (p *Peer) RemoveReplica(id replica.ObjectID) {
	delete(p.replicas, id)
	for _, byKey := range p.releaseBuffers {
		for k := range byKey {
			if k.ObjectID == id {
				delete(byKey, k)
			}
		}
	}
	for _, byKey := range p.outSeq {
		for k := range byKey {
			if k.ObjectID == id {
				delete(byKey, k)
			}
		}
	}
}

// Replica looks up a registered replica by its object id.
func (p *Peer) Replica(id replica.ObjectID) (*replica.Replica, bool) {
	r, ok := p.replicas[id]
	return r, ok
}

// AcquireNetPeerID draws the next free id for a newly accepted link.
func (p *Peer) AcquireNetPeerID() uint32 { return p.netPeerIDs.Acquire() }

// ReleaseNetPeerID returns an id to the pool once its link is destroyed.
func (p *Peer) ReleaseNetPeerID(id uint32) { p.netPeerIDs.Release(id) }

// AddLink registers a link under id; the link stays under that key until
// RemoveLink, which also releases id back to the netPeerId pool.
func (p *Peer) AddLink(id uint32, l *peerlink.Link) {
	p.links[id] = l
	p.addedByUs[id] = make(map[uint32]bool)
	p.addedByThem[id] = make(map[uint32]bool)
	if p.Metrics != nil {
		p.Metrics.LinkCount.Set(float64(len(p.links)))
	}
}

// RemoveLink tears down a link and releases its bookkeeping, including
// its netPeerId back to the pool.
func (p *Peer) RemoveLink(id uint32) {
	delete(p.links, id)
	delete(p.addedByUs, id)
	delete(p.addedByThem, id)
	delete(p.releaseBuffers, id)
	delete(p.outSeq, id)
	p.ReleaseNetPeerID(id)
	if p.Metrics != nil {
		p.Metrics.LinkCount.Set(float64(len(p.links)))
	}
}

// Link looks up a link by its local peer id.
func (p *Peer) Link(id uint32) (*peerlink.Link, bool) {
	l, ok := p.links[id]
	return l, ok
}

// Links returns every currently tracked link.
func (p *Peer) Links() map[uint32]*peerlink.Link { return p.links }

// FamilyTree returns (creating if absent) the family tree for id.
func (p *Peer) FamilyTree(id replica.FamilyTreeID) *replica.FamilyTree {
	t, ok := p.families[id]
	if !ok {
		t = replica.NewFamilyTree(id)
		p.families[id] = t
	}
	return t
}

// HandleUserAddRequest is the server-side accept/deny decision point for
// a UserAddRequest: decide pre-allocates a netUserId which is released
// back to the pool automatically on deny.
func (p *Peer) HandleUserAddRequest(linkID uint32, decide func() (accept bool, responseBundle *variant.Bundle)) (wire.UserAddResponse, error) {
	if p.Role != RoleServer {
		return wire.UserAddResponse{}, fmt.Errorf("peer: only a server role accepts UserAddRequest")
	}
	userID := p.netUserIDs.Acquire()
	accept, bundle := decide()
	if bundle == nil {
		bundle = variant.NewBundle()
	}
	if !accept {
		p.netUserIDs.Release(userID)
		return wire.UserAddResponse{Result: wire.AddDeny, Bundle: bundle}, nil
	}
	if _, ok := p.addedByUs[linkID]; !ok {
		p.addedByUs[linkID] = make(map[uint32]bool)
	}
	p.addedByUs[linkID][userID] = true
	log.WithFields(log.Fields{"link": linkID, "user": userID}).Debug("peer: user added")
	return wire.UserAddResponse{Result: wire.AddAccept, UserID: userID, Bundle: bundle}, nil
}

// HandleUserAddResponse is the client-side reaction to the server's
// decision: on accept, the user is recorded as "added by their peer".
func (p *Peer) HandleUserAddResponse(linkID uint32, resp wire.UserAddResponse) {
	if resp.Result != wire.AddAccept {
		return
	}
	if _, ok := p.addedByThem[linkID]; !ok {
		p.addedByThem[linkID] = make(map[uint32]bool)
	}
	p.addedByThem[linkID][resp.UserID] = true
}

// RemoveUser releases a user's id back to the pool and forgets it from
// both bookkeeping sets, mirroring NetUserRemoveRequest's effect.
func (p *Peer) RemoveUser(linkID uint32, userID uint32) {
	delete(p.addedByUs[linkID], userID)
	delete(p.addedByThem[linkID], userID)
	p.netUserIDs.Release(userID)
}

// HasUser reports whether userID is known to have been added on linkID,
// from either side's bookkeeping.
func (p *Peer) HasUser(linkID uint32, userID uint32) bool {
	return p.addedByUs[linkID][userID] || p.addedByThem[linkID][userID]
}
