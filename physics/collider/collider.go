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
	"github.com/replicore/engine/physics/vecmath"
)

// Material carries the restitution/friction combination used by contact
// resolution; combined values are the average of the two colliders'.
type Material struct {
	Restitution float64
	Friction    float64
}

// Combine averages two materials, the simplest of the policies the
// specification leaves unspecified and which original_source uses by
// default.
func Combine(a, b Material) Material {
	return Material{
		Restitution: (a.Restitution + b.Restitution) / 2,
		Friction:    (a.Friction + b.Friction) / 2,
	}
}

// Collider wraps one Shape with the material, grouping, and bookkeeping
// the broadphase and contact generation need.
type Collider struct {
	Shape    Shape
	Material Material

	// CollisionGroup gates which other groups this collider may contact;
	// interpretation (bitmask vs index table) is left to the space.
	CollisionGroup uint32

	// Ghost colliders detect overlap for queries/effects but never
	// generate contact impulses.
	Ghost bool

	// DirectBody is the rigid body this collider is attached to directly;
	// nil for a collider attached through a static/kinematic ancestor
	// chain, in which case ActiveBody must be used to resolve it.
	DirectBody *body.RigidBody

	Position vecmath.Vec3
	Rotation vecmath.Quat

	cachedAABBMin, cachedAABBMax vecmath.Vec3
	cachedBoundingRadius         float64
	cacheVersion                 uint64
	shapeVersion                 uint64
}

// New wraps shape with the given material, attached directly to owner.
func New(shape Shape, mat Material, owner *body.RigidBody) *Collider {
	c := &Collider{Shape: shape, Material: mat, DirectBody: owner}
	c.RefreshCache()
	return c
}

// RefreshCache recomputes the world-space AABB and bounding sphere from
// the current shape/position/rotation; the space calls this at most once
// per node per tick, coalescing repeated invalidations.
func (c *Collider) RefreshCache() {
	lo, hi := c.Shape.LocalAABB()
	corners := [8]vecmath.Vec3{
		{X: lo.X, Y: lo.Y, Z: lo.Z}, {X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: lo.X, Y: hi.Y, Z: lo.Z}, {X: hi.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z}, {X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: lo.X, Y: hi.Y, Z: hi.Z}, {X: hi.X, Y: hi.Y, Z: hi.Z},
	}
	min := c.Position.Add(c.Rotation.RotateVec3(corners[0]))
	max := min
	for _, corner := range corners[1:] {
		w := c.Position.Add(c.Rotation.RotateVec3(corner))
		min = vecmath.Vec3{X: minf(min.X, w.X), Y: minf(min.Y, w.Y), Z: minf(min.Z, w.Z)}
		max = vecmath.Vec3{X: maxf(max.X, w.X), Y: maxf(max.Y, w.Y), Z: maxf(max.Z, w.Z)}
	}
	c.cachedAABBMin, c.cachedAABBMax = min, max
	c.cachedBoundingRadius = c.Shape.BoundingRadius()
	c.cacheVersion++
}

// WorldAABB returns the cached world-space axis-aligned bounding box.
func (c *Collider) WorldAABB() (vecmath.Vec3, vecmath.Vec3) { return c.cachedAABBMin, c.cachedAABBMax }

// WorldBoundingRadius returns the cached world-space bounding sphere radius.
func (c *Collider) WorldBoundingRadius() float64 { return c.cachedBoundingRadius }

// AABBOverlaps reports whether c and other's cached world AABBs overlap,
// the broadphase's pair test.
func (c *Collider) AABBOverlaps(other *Collider) bool {
	aMin, aMax := c.WorldAABB()
	bMin, bMax := other.WorldAABB()
	return aMin.X <= bMax.X && aMax.X >= bMin.X &&
		aMin.Y <= bMax.Y && aMax.Y >= bMin.Y &&
		aMin.Z <= bMax.Z && aMax.Z >= bMin.Z
}

// ActiveBody resolves the rigid body that should receive this collider's
// contact impulses: DirectBody if set, else the nearest ancestor body
// supplied by the caller (the space walks the node hierarchy; this
// collider only knows its own direct attachment).
func (c *Collider) ActiveBody(ancestor *body.RigidBody) *body.RigidBody {
	if c.DirectBody != nil {
		return c.DirectBody
	}
	return ancestor
}

// MassContribution returns this collider's mass contribution at the given
// density, in the owning body's local frame (position/rotation relative
// to the body, which the caller must already have set on this collider).
func (c *Collider) MassContribution(density float64) body.Contribution {
	if !c.Shape.Valid() {
		return body.Contribution{Mass: 1, LocalInertia: vecmath.Identity3}
	}
	r := vecmath.FromQuat(c.Rotation)
	return body.Contribution{
		Mass:         c.Shape.Volume() * density,
		LocalCenter:  c.Position.Add(c.Rotation.RotateVec3(c.Shape.LocalCenter())),
		LocalInertia: r.Mul(c.Shape.UnitDensityInertia().Scale(density)).Mul(r.Transpose()),
	}
}
