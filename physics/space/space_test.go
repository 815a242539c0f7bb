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

package space

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/collider"
	"github.com/replicore/engine/physics/vecmath"
)

func addSphereBody(tree *collider.Tree, x float64, velocityX float64) (collider.NodeIndex, *body.RigidBody) {
	b := body.New()
	b.Position = vecmath.Vec3{X: x}
	b.LinearVelocity = vecmath.Vec3{X: velocityX}
	idx := tree.AddNode(collider.NoParent)
	tree.Node(idx).Body = b
	tree.Node(idx).Collider = collider.New(collider.Sphere{Radius: 1}, collider.Material{Restitution: 1}, b)
	return idx, b
}

func TestTickDrivesTwoApproachingSpheresThroughAnElasticBounce(t *testing.T) {
	tree := collider.NewTree()
	_, a := addSphereBody(tree, -1.05, 1)
	_, b := addSphereBody(tree, 1.05, -1)

	s := New(tree)
	s.Bodies = []*body.RigidBody{a, b}

	for i := 0; i < 120; i++ {
		s.Tick(1.0 / 60)
	}

	require.Less(t, a.LinearVelocity.X, 0.0, "body a should have bounced back negative after colliding")
	require.Greater(t, b.LinearVelocity.X, 0.0, "body b should have bounced back positive after colliding")
}

func TestTickSkipsZeroOrNegativeDt(t *testing.T) {
	tree := collider.NewTree()
	_, a := addSphereBody(tree, 0, 1)
	s := New(tree)
	s.Bodies = []*body.RigidBody{a}

	s.Tick(0)
	require.Equal(t, vecmath.Vec3{X: 1}, a.LinearVelocity)
}

func TestTickPublishesBodyTransformToCollider(t *testing.T) {
	tree := collider.NewTree()
	idx, a := addSphereBody(tree, 0, 2)
	s := New(tree)
	s.Bodies = []*body.RigidBody{a}

	s.Tick(1.0 / 60)

	require.InDelta(t, a.Position.X, tree.Node(idx).Collider.Position.X, 1e-9)
}

func TestUpdateSleepEmitsSleepEventOnceBodySettles(t *testing.T) {
	tree := collider.NewTree()
	_, a := addSphereBody(tree, 0, 0)
	s := New(tree)
	s.Bodies = []*body.RigidBody{a}

	for i := 0; i < 120; i++ {
		s.Tick(1.0 / 60)
	}

	sleeps, _, _ := s.DrainEvents()
	require.NotEmpty(t, sleeps)
	require.True(t, a.IsAsleep())
}

func TestMakePairKeyIsOrderIndependent(t *testing.T) {
	a := collider.New(collider.Sphere{Radius: 1}, collider.Material{}, nil)
	b := collider.New(collider.Sphere{Radius: 1}, collider.Material{}, nil)
	require.Equal(t, makePairKey(a, b), makePairKey(b, a))
}
