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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/vecmath"
)

type recordingTarget struct{ last Transform }

func (r *recordingTarget) ApplyWorldTransform(t Transform) { r.last = t }

func TestWorldTransformComposesParentAndLocalOffset(t *testing.T) {
	tree := NewTree()
	root := tree.AddNode(NoParent)
	tree.Node(root).Body = &body.RigidBody{Position: vecmath.Vec3{X: 1}, Rotation: vecmath.IdentityQuat}

	child := tree.AddNode(root)
	tree.Node(child).LocalOffset = Transform{Position: vecmath.Vec3{X: 2}, Rotation: vecmath.IdentityQuat}

	world := tree.WorldTransform(child)
	require.Equal(t, vecmath.Vec3{X: 3}, world.Position)
}

func TestActiveBodyWalksToNearestAncestor(t *testing.T) {
	tree := NewTree()
	root := tree.AddNode(NoParent)
	b := &body.RigidBody{Motion: body.Dynamic}
	tree.Node(root).Body = b

	child := tree.AddNode(root)
	grandchild := tree.AddNode(child)

	require.Equal(t, b, tree.ActiveBody(grandchild))
	require.Nil(t, tree.ActiveBody(NoParent))
}

func TestPostOrderVisitsChildrenBeforeParent(t *testing.T) {
	tree := NewTree()
	root := tree.AddNode(NoParent)
	a := tree.AddNode(root)
	b := tree.AddNode(a)

	order := tree.PostOrder(root)
	require.Equal(t, []NodeIndex{b, a, root}, order)
}

func TestDrainPendingReturnsAndClearsFlags(t *testing.T) {
	tree := NewTree()
	idx := tree.AddNode(NoParent)
	tree.QueueTransform(idx)
	tree.QueueMass(idx)

	transforms, mass, broadphase := tree.DrainPending()
	require.Equal(t, []NodeIndex{idx}, transforms)
	require.Equal(t, []NodeIndex{idx}, mass)
	require.Empty(t, broadphase)

	transforms, mass, broadphase = tree.DrainPending()
	require.Empty(t, transforms)
	require.Empty(t, mass)
	require.Empty(t, broadphase)
}

func TestPublishTransformsForwardsToTargetAndCollider(t *testing.T) {
	tree := NewTree()
	root := tree.AddNode(NoParent)
	tree.Node(root).Body = &body.RigidBody{Position: vecmath.Vec3{X: 5}, Rotation: vecmath.IdentityQuat}

	child := tree.AddNode(root)
	target := &recordingTarget{}
	tree.Node(child).Target = target
	tree.Node(child).Collider = New(Sphere{Radius: 1}, Material{}, nil)
	tree.Node(child).LocalOffset = Transform{Rotation: vecmath.IdentityQuat}

	tree.PublishTransforms()

	require.Equal(t, vecmath.Vec3{X: 5}, target.last.Position)
	require.Equal(t, vecmath.Vec3{X: 5}, tree.Node(child).Collider.Position)
}
