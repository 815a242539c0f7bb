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

import "fmt"

// FamilyTree holds a root replica and its archetype-derived descendants in
// depth-first pre-order. Descendants must be appended in that order;
// removal nulls a slot rather than shifting the slice, so a receiver
// mid-delivery never sees indices shift under it. A tree whose slots are
// all null is empty and should be collected by its owner.
type FamilyTree struct {
	ID    FamilyTreeID
	slots []*Replica // slots[0] is always the root once non-empty

	// pendingParents holds replicas that arrived before their parent did;
	// they're attached once the referenced parent goes Online, recovering
	// from any out-of-order delivery of the two messages.
	pendingParents map[ObjectID][]*Replica
}

// NewFamilyTree starts an empty tree with the given id.
func NewFamilyTree(id FamilyTreeID) *FamilyTree {
	return &FamilyTree{ID: id, pendingParents: make(map[ObjectID][]*Replica)}
}

// AddRoot sets the tree's root. Must be called before any AddDescendant.
func (t *FamilyTree) AddRoot(r *Replica) error {
	if len(t.slots) != 0 {
		return fmt.Errorf("replica: family tree %d already has a root", t.ID)
	}
	t.slots = append(t.slots, r)
	return nil
}

// AddDescendant appends r in depth-first pre-order. If r's ParentID names
// a replica not yet Online within this tree, r is also deferred; it is
// released only when the owner calls AttachDeferred for that parent after
// the parent reaches Online.
func (t *FamilyTree) AddDescendant(r *Replica) error {
	if len(t.slots) == 0 {
		return fmt.Errorf("replica: family tree %d has no root to attach descendants to", t.ID)
	}
	t.slots = append(t.slots, r)
	if parent := t.find(r.ParentID); parent == nil || !parent.IsOnline() {
		t.pendingParents[r.ParentID] = append(t.pendingParents[r.ParentID], r)
	}
	return nil
}

// AttachDeferred replays any descendants waiting on parentID, which has
// just gone Online. Returns the replicas that were released so the caller
// can perform scene-graph attachment for each.
func (t *FamilyTree) AttachDeferred(parentID ObjectID) []*Replica {
	pending := t.pendingParents[parentID]
	delete(t.pendingParents, parentID)
	return pending
}

// Remove nulls out the slot holding r (by ObjectID), without shifting
// other slots, preserving pre-order for any slot still in flight.
func (t *FamilyTree) Remove(objectID ObjectID) {
	for i, s := range t.slots {
		if s != nil && s.Identity.ObjectID == objectID {
			t.slots[i] = nil
			return
		}
	}
}

// IsEmpty reports whether every slot has been nulled out (or the tree
// never held any replicas), meaning the owning Peer may collect it.
func (t *FamilyTree) IsEmpty() bool {
	for _, s := range t.slots {
		if s != nil {
			return false
		}
	}
	return true
}

// Replicas returns the non-null slots in depth-first pre-order.
func (t *FamilyTree) Replicas() []*Replica {
	out := make([]*Replica, 0, len(t.slots))
	for _, s := range t.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (t *FamilyTree) find(id ObjectID) *Replica {
	for _, s := range t.slots {
		if s != nil && s.Identity.ObjectID == id {
			return s
		}
	}
	return nil
}
