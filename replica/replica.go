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

package replica

import (
	"fmt"

	"github.com/replicore/engine/propaccess"
)

// State is a Replica's lifecycle state, per the specification's
// Invalid -> Valid -> Live -> Online -> {Offline, Forget, Destroy} machine.
type State uint8

const (
	// Invalid is the zero state: not yet registered with a replicator.
	Invalid State = iota
	// Valid means registered, awaiting a server-assigned ObjectID.
	Valid
	// Live means the server has assigned an ObjectID and sent creation to
	// subscribers, but local channel state has not yet been deserialized.
	Live
	// Online means initial channel deserialization completed and the
	// online event has been published.
	Online
	// Offline means the replica took itself offline; it may still exist
	// locally depending on whether Forget or Destroy follows.
	Offline
)

// String renders the state for logging.
func (s State) String() string {
	switch s {
	case Invalid:
		return "Invalid"
	case Valid:
		return "Valid"
	case Live:
		return "Live"
	case Online:
		return "Online"
	case Offline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// CreateContext distinguishes how a Replica came to exist locally.
type CreateContext uint8

const (
	// CreatedFresh was created at runtime by request.
	CreatedFresh CreateContext = iota
	// CreatedFromClone was cloned from another live replica.
	CreatedFromClone
	// Emplaced identifies itself via (EmplaceContext, EmplaceID) rather
	// than going through server-assigned creation.
	Emplaced
)

// Identity is a Replica's immutable identity tuple.
type Identity struct {
	ObjectID       ObjectID
	FamilyTreeID   FamilyTreeID
	EmplaceContext uint32
	EmplaceID      EmplaceID
	CreateContext  CreateContext
	ReplicaType    string
}

// LifecycleError reports an illegal state transition attempt.
type LifecycleError struct {
	From, Attempted State
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("replica: illegal transition from %s via %s", e.From, e.Attempted)
}

// Replica is a networked entity: identity, owning user, parent, its
// channels by name, lifecycle state, and lifecycle timestamps.
type Replica struct {
	Identity   Identity
	OwningUser UserID
	ParentID   ObjectID // zero means root / no parent

	// Owner is the game-side object this replica's channels read/write
	// through their Accessors. It is nil for a replica this peer only
	// receives (deserializes into) and never observes/serializes itself.
	Owner propaccess.Owner

	Channels map[string]*ReplicaChannel

	state State

	OnlineTime     SampleTime
	LastChangeTime SampleTime
	OfflineTime    SampleTime

	// onlineFn/offlineFn are invoked exactly once as the replica crosses
	// into Online/Offline, giving the host application a place to publish
	// its scene-graph-facing events without this package depending on the
	// scene graph.
	onlineFn  func(*Replica)
	offlineFn func(*Replica)
}

// New constructs a replica in the Invalid state.
func New(identity Identity) *Replica {
	return &Replica{
		Identity: identity,
		Channels: make(map[string]*ReplicaChannel),
		state:    Invalid,
	}
}

// State reports the current lifecycle state.
func (r *Replica) State() State { return r.state }

// OnOnline registers a callback invoked exactly once when the replica
// enters Online, after initial channel deserialization but conceptually
// "before" any scene-graph-visible online event -- callers publish their
// own event from inside this hook, which the online transition would
// otherwise race.
func (r *Replica) OnOnline(fn func(*Replica)) { r.onlineFn = fn }

// OnOffline registers a callback invoked exactly once when the replica
// takes itself offline.
func (r *Replica) OnOffline(fn func(*Replica)) { r.offlineFn = fn }

// AddChannel registers a channel under its configured name. Channels must
// be added before the replica goes Live.
func (r *Replica) AddChannel(c *ReplicaChannel) {
	r.Channels[c.Config.Name] = c
}

// MakeValid transitions Invalid -> Valid: the replica is registered with
// the replicator, awaiting a server-assigned ObjectID.
func (r *Replica) MakeValid() error {
	if r.state != Invalid {
		return &LifecycleError{From: r.state, Attempted: Valid}
	}
	r.state = Valid
	return nil
}

// MakeLive transitions Valid -> Live: the server has assigned objectID.
// Idempotent against replays of the same creation message: calling MakeLive
// again while already Live with the same id is a no-op, never an error,
// matching the handshake-replay invariant the specification requires of
// every lifecycle step.
func (r *Replica) MakeLive(objectID ObjectID) error {
	if r.state == Live && r.Identity.ObjectID == objectID {
		return nil
	}
	if r.state != Valid {
		return &LifecycleError{From: r.state, Attempted: Live}
	}
	r.Identity.ObjectID = objectID
	r.state = Live
	return nil
}

// GoOnline transitions Live -> Online: initial channel deserialization is
// assumed to already have happened (values set before this call, per the
// specification); this call records OnlineTime and fires the online hook.
func (r *Replica) GoOnline(now SampleTime) error {
	if r.state == Online {
		return nil // idempotent against replayed online confirmations
	}
	if r.state != Live {
		return &LifecycleError{From: r.state, Attempted: Online}
	}
	r.state = Online
	r.OnlineTime = now
	if r.onlineFn != nil {
		r.onlineFn(r)
	}
	return nil
}

// TakeOffline transitions Online -> Offline, publishing the offline hook.
// Per the testable lifecycle invariant, this is the only path that may
// follow an Online replica besides Forget/Destroy, and every Online
// replica must pass through exactly one of the three.
func (r *Replica) TakeOffline(now SampleTime) error {
	if r.state != Online {
		return &LifecycleError{From: r.state, Attempted: Offline}
	}
	r.state = Offline
	r.OfflineTime = now
	if r.offlineFn != nil {
		r.offlineFn(r)
	}
	return nil
}

// IsOnline reports whether the replica is currently Online.
func (r *Replica) IsOnline() bool { return r.state == Online }

// ReplicateOnOnlineChannels returns channels configured to serialize once
// at online-time, in map iteration order (callers needing determinism
// should sort by name).
func (r *Replica) ReplicateOnOnlineChannels() []*ReplicaChannel {
	var out []*ReplicaChannel
	for _, c := range r.Channels {
		if c.Config.ReplicateOnOnline {
			out = append(out, c)
		}
	}
	return out
}

// ReplicateOnOfflineChannels returns channels configured to serialize once
// more as the replica takes itself offline.
func (r *Replica) ReplicateOnOfflineChannels() []*ReplicaChannel {
	var out []*ReplicaChannel
	for _, c := range r.Channels {
		if c.Config.ReplicateOnOffline {
			out = append(out, c)
		}
	}
	return out
}
