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

package collider

import (
	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/effects"
	"github.com/replicore/engine/physics/vecmath"
)

// NodeIndex addresses a PhysicsNode within a Tree's arena. Nodes
// reference each other by index, never by pointer, per the
// specification's re-architecture guidance against cyclic
// Collider<->Body<->PhysicsNode references.
type NodeIndex int

// NoParent marks a root node.
const NoParent NodeIndex = -1

// Transform is a world-space translation/rotation snapshot.
type Transform struct {
	Position vecmath.Vec3
	Rotation vecmath.Quat
}

// SceneTarget is the narrow scene-graph collaborator a PhysicsNode
// publishes its resolved world transform to, standing in for the
// out-of-scope scene graph's Cog/Transform.
type SceneTarget interface {
	ApplyWorldTransform(Transform)
}

// Node is one slot in a physics tree, owning at most one Collider and/or
// RigidBody directly, mirroring one cog that has either or both
// components.
type Node struct {
	Parent   NodeIndex
	Children []NodeIndex

	Collider *Collider
	Body     *body.RigidBody
	Target   SceneTarget

	// HierarchyEffects are effects attached on a parent cog, gathered by
	// every descendant body per the specification's effect-application
	// step. BodyEffects and ColliderEffects are this node's own.
	HierarchyEffects []effects.Effect
	BodyEffects      []effects.Effect
	ColliderEffects  []effects.Effect

	// LocalOffset is this node's transform relative to its parent, used
	// when the node owns no Body of its own (a pure collider attachment
	// following an ancestor body).
	LocalOffset Transform

	world Transform

	pendingTransform  bool
	pendingMass       bool
	pendingBroadphase bool
}

// Tree is the arena of PhysicsNodes for one Space, mirroring the cog
// hierarchy.
type Tree struct {
	nodes []Node
}

// NewTree returns an empty tree.
func NewTree() *Tree { return &Tree{} }

// AddNode appends a new node parented to parent (NoParent for a root) and
// returns its index.
func (t *Tree) AddNode(parent NodeIndex) NodeIndex {
	idx := NodeIndex(len(t.nodes))
	t.nodes = append(t.nodes, Node{Parent: parent, LocalOffset: Transform{Rotation: vecmath.IdentityQuat}})
	if parent != NoParent {
		t.nodes[parent].Children = append(t.nodes[parent].Children, idx)
	}
	return idx
}

// Node returns a pointer to the node at idx.
func (t *Tree) Node(idx NodeIndex) *Node { return &t.nodes[idx] }

// QueueTransform, QueueMass, and QueueBroadphase mark idx as needing its
// respective recomputation, coalescing repeated invalidations within a
// tick into a single pending flag per node, per the specification's
// per-node command queue.
func (t *Tree) QueueTransform(idx NodeIndex)  { t.nodes[idx].pendingTransform = true }
func (t *Tree) QueueMass(idx NodeIndex)       { t.nodes[idx].pendingMass = true }
func (t *Tree) QueueBroadphase(idx NodeIndex) { t.nodes[idx].pendingBroadphase = true }

// DrainPending returns every node index with a pending transform, mass,
// or broadphase recomputation queued, clearing the flags so each node is
// recomputed at most once this tick.
func (t *Tree) DrainPending() (transforms, mass, broadphase []NodeIndex) {
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.pendingTransform {
			transforms = append(transforms, NodeIndex(i))
			n.pendingTransform = false
		}
		if n.pendingMass {
			mass = append(mass, NodeIndex(i))
			n.pendingMass = false
		}
		if n.pendingBroadphase {
			broadphase = append(broadphase, NodeIndex(i))
			n.pendingBroadphase = false
		}
	}
	return transforms, mass, broadphase
}

// WorldTransform returns idx's resolved world transform: a Body's own
// Position/Rotation if it owns one, else its parent's world transform
// composed with LocalOffset.
func (t *Tree) WorldTransform(idx NodeIndex) Transform {
	n := &t.nodes[idx]
	if n.Body != nil {
		return Transform{Position: n.Body.Position, Rotation: n.Body.Rotation}
	}
	if n.Parent == NoParent {
		return n.LocalOffset
	}
	parent := t.WorldTransform(n.Parent)
	return Transform{
		Position: parent.Position.Add(parent.Rotation.RotateVec3(n.LocalOffset.Position)),
		Rotation: parent.Rotation.Mul(n.LocalOffset.Rotation),
	}
}

// ActiveBody returns the body of the nearest node on the chain from idx up
// to its root (idx itself included), regardless of the body's motion kind,
// or nil when no node on the chain has a body.
func (t *Tree) ActiveBody(idx NodeIndex) *body.RigidBody {
	for cur := idx; cur != NoParent; cur = t.nodes[cur].Parent {
		if b := t.nodes[cur].Body; b != nil {
			return b
		}
	}
	return nil
}

// PostOrder returns every node reachable from root in bottom-up order
// (children before their parent), the order the specification requires
// for transform publication.
func (t *Tree) PostOrder(root NodeIndex) []NodeIndex {
	var out []NodeIndex
	var visit func(NodeIndex)
	visit = func(idx NodeIndex) {
		for _, child := range t.nodes[idx].Children {
			visit(child)
		}
		out = append(out, idx)
	}
	visit(root)
	return out
}

// Roots returns every node with no parent.
func (t *Tree) Roots() []NodeIndex {
	var out []NodeIndex
	for i, n := range t.nodes {
		if n.Parent == NoParent {
			out = append(out, NodeIndex(i))
		}
	}
	return out
}

// PublishTransforms resolves and caches idx's world transform, then
// forwards it to Target if set, visiting every node reachable from every
// root in bottom-up order.
func (t *Tree) PublishTransforms() {
	for _, root := range t.Roots() {
		for _, idx := range t.PostOrder(root) {
			n := &t.nodes[idx]
			n.world = t.WorldTransform(idx)
			if n.Collider != nil {
				n.Collider.Position = n.world.Position
				n.Collider.Rotation = n.world.Rotation
			}
			if n.Target != nil {
				n.Target.ApplyWorldTransform(n.world)
			}
		}
	}
}
