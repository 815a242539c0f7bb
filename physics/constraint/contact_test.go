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

package constraint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/collider"
	"github.com/replicore/engine/physics/contact"
	"github.com/replicore/engine/physics/vecmath"
)

func TestContactConstraintHeadOnElasticCollisionReversesVelocities(t *testing.T) {
	a := body.New()
	b := body.New()
	a.Position = vecmath.Vec3{X: -0.9}
	b.Position = vecmath.Vec3{X: 0.9}
	a.LinearVelocity = vecmath.Vec3{X: 1}
	b.LinearVelocity = vecmath.Vec3{X: -1}

	ca := collider.New(collider.Sphere{Radius: 1}, collider.Material{}, a)
	cb := collider.New(collider.Sphere{Radius: 1}, collider.Material{}, b)
	ca.Position, cb.Position = a.Position, b.Position
	ca.RefreshCache()
	cb.RefreshCache()

	points, hit := contact.Generate(ca, cb)
	require.True(t, hit)

	m := contact.New(ca, cb, contact.NormalPolicy)
	m.Insert(points)

	mat := collider.Combine(ca.Material, cb.Material)
	mat.Restitution = 1
	mat.Friction = 0

	c := NewContactConstraint(a, b, m, mat, JointConfigOverride{})
	for i := 0; i < 8; i++ {
		c.SolveVelocity()
	}

	require.InDelta(t, -1, a.LinearVelocity.X, 1e-6)
	require.InDelta(t, 1, b.LinearVelocity.X, 1e-6)
}

func TestContactConstraintWarmStartReappliesAccumulatedImpulse(t *testing.T) {
	a := body.New()
	b := body.New()
	b.Position = vecmath.Vec3{X: 1.5}

	ca := collider.New(collider.Sphere{Radius: 1}, collider.Material{}, a)
	cb := collider.New(collider.Sphere{Radius: 1}, collider.Material{}, b)
	ca.Position, cb.Position = a.Position, b.Position
	ca.RefreshCache()
	cb.RefreshCache()

	points, hit := contact.Generate(ca, cb)
	require.True(t, hit)
	points[0].AccumNormalImpulse = 2

	m := contact.New(ca, cb, contact.NormalPolicy)
	m.Insert(points)

	c := NewContactConstraint(a, b, m, collider.Material{}, JointConfigOverride{})
	c.WarmStart()

	require.InDelta(t, -2, a.LinearVelocity.X, 1e-9)
	require.InDelta(t, 2, b.LinearVelocity.X, 1e-9)
}

func TestContactConstraintSolvePositionSeparatesBodiesAlongNormal(t *testing.T) {
	a := body.New()
	b := body.New()
	b.Position = vecmath.Vec3{X: 1.5}

	ca := collider.New(collider.Sphere{Radius: 1}, collider.Material{}, a)
	cb := collider.New(collider.Sphere{Radius: 1}, collider.Material{}, b)
	ca.Position, cb.Position = a.Position, b.Position
	ca.RefreshCache()
	cb.RefreshCache()

	points, hit := contact.Generate(ca, cb)
	require.True(t, hit)

	m := contact.New(ca, cb, contact.NormalPolicy)
	m.Insert(points)

	c := NewContactConstraint(a, b, m, collider.Material{}, JointConfigOverride{})
	maxPenetration := c.SolvePosition(NonlinearGaussSeidel)

	require.InDelta(t, 0.5, maxPenetration, 1e-9)
	require.Less(t, a.Position.X, 0.0)
	require.Greater(t, b.Position.X, 1.5)
}
