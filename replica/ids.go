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

// Package replica implements the per-property change detection and
// interpolation system (ReplicaProperty), the channel grouping that shares
// a reliability/transfer policy (ReplicaChannel), the networked object
// lifecycle (Replica), and the family-tree hierarchy that orders a
// composite object's descendants for creation.
package replica

import "fmt"

// ObjectID identifies a Replica once it has been assigned one by the
// server; the zero value means "not yet assigned" (Valid, not yet Live).
type ObjectID uint32

// FamilyTreeID identifies the archetype-derived hierarchy a non-emplaced
// Replica belongs to.
type FamilyTreeID uint32

// EmplaceID identifies a pre-authored replica within an EmplaceContext,
// used to bypass creation when a level-authored object comes online.
type EmplaceID uint32

// UserID identifies a networked user object.
type UserID uint32

// IDStore hands out small unsigned identifiers and recycles released ones,
// the same pattern the specification requires of every *Id store a Peer
// owns (NetObjectId, NetPeerId, NetUserId, FamilyTreeId).
type IDStore struct {
	next     uint32
	released []uint32
}

// Acquire returns a fresh or recycled id, never zero (zero is reserved to
// mean "unassigned" across every id type in this package).
func (s *IDStore) Acquire() uint32 {
	if n := len(s.released); n > 0 {
		id := s.released[n-1]
		s.released = s.released[:n-1]
		return id
	}
	s.next++
	if s.next == 0 {
		s.next = 1
	}
	return s.next
}

// Release returns id to the store for future reuse.
func (s *IDStore) Release(id uint32) {
	if id == 0 {
		return
	}
	s.released = append(s.released, id)
}

// Outstanding reports how many ids have been handed out and not released,
// useful for diagnostics and leak detection.
func (s *IDStore) Outstanding() uint32 {
	return s.next - uint32(len(s.released))
}

// ErrInvalidConfig is returned when a ReplicaProperty is configured with a
// contradictory combination the specification flags as programmer misuse.
type ErrInvalidConfig struct {
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("replica: invalid property configuration: %s", e.Reason)
}
