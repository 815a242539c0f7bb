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

// Package query implements ray and frustum spatial casts against a set of
// colliders: a fixed-capacity result set, a filter (mask/group/ignore/
// callback), and the cast dispatch itself.
package query

import (
	"math"
	"sort"

	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/collider"
	"github.com/replicore/engine/physics/vecmath"
)

// Mask selects which motion kinds a cast is willing to accept.
type Mask uint8

const (
	MaskGhost Mask = 1 << iota
	MaskStatic
	MaskKinematic
	MaskDynamic
)

// AllMotion accepts every non-ghost collider.
const AllMotion = MaskStatic | MaskKinematic | MaskDynamic

// Filter gates which colliders a cast considers.
type Filter struct {
	// Motion selects which of ghost/static/kinematic/dynamic are
	// accepted; a collider's bit is derived from its active body's
	// Motion (or MaskGhost for a Ghost collider, independent of Motion).
	Motion Mask
	// CollisionGroup, when non-zero, restricts to colliders reporting
	// this exact group; zero means accept any group.
	CollisionGroup uint32
	// IgnoreOwnerID excludes colliders for which the ownerID function passed
	// to CastRay/CastFrustum returns this id; zero means ignore nothing.
	IgnoreOwnerID uint64
	// Accept, when set, is consulted after the mask/group/ignore tests
	// pass, letting the caller override acceptance per candidate.
	Accept func(c *collider.Collider) bool
}

// Ignorable reports an owner id. Filter does not consult it; owner
// exclusion goes through the ownerID function passed to the casts.
type Ignorable interface {
	OwnerID() uint64
}

func (f Filter) motionBit(c *collider.Collider, active *body.RigidBody) Mask {
	if c.Ghost {
		return MaskGhost
	}
	if active == nil {
		return MaskStatic
	}
	switch active.Motion {
	case body.Static:
		return MaskStatic
	case body.Kinematic:
		return MaskKinematic
	default:
		return MaskDynamic
	}
}

// passes reports whether c (with resolved active body) survives this
// filter, given an optional owner-id lookup for the ignore test.
func (f Filter) passes(c *collider.Collider, active *body.RigidBody, ownerID func(*collider.Collider) uint64) bool {
	bit := f.motionBit(c, active)
	if f.Motion != 0 && f.Motion&bit == 0 {
		return false
	}
	if f.CollisionGroup != 0 && c.CollisionGroup != f.CollisionGroup {
		return false
	}
	if f.IgnoreOwnerID != 0 && ownerID != nil && ownerID(c) == f.IgnoreOwnerID {
		return false
	}
	if f.Accept != nil && !f.Accept(c) {
		return false
	}
	return true
}

// Hit is one accepted result from a cast.
type Hit struct {
	Collider *collider.Collider
	Point    vecmath.Vec3
	Normal   vecmath.Vec3
	Distance float64
}

// ResultSet accumulates up to Capacity hits for one query; zero value has
// unlimited capacity.
type ResultSet struct {
	Capacity int
	Hits     []Hit
}

func (r *ResultSet) full() bool { return r.Capacity > 0 && len(r.Hits) >= r.Capacity }

func (r *ResultSet) add(h Hit) {
	if r.full() {
		return
	}
	r.Hits = append(r.Hits, h)
}

// Candidate is a collider plus the active body resolved for it by the
// caller (the space walks the node hierarchy; this package is agnostic
// to how that resolution happens).
type Candidate struct {
	Collider   *collider.Collider
	ActiveBody *body.RigidBody
}

// Ray casts a ray from Origin along Direction (need not be normalized) out
// to MaxDistance.
type Ray struct {
	Origin      vecmath.Vec3
	Direction   vecmath.Vec3
	MaxDistance float64
}

// CastRay tests ray against every candidate passing filter, returning hits
// sorted by ascending distance and capped at result.Capacity, per the
// specification's ray-cast ordering.
func CastRay(ray Ray, candidates []Candidate, filter Filter, ownerID func(*collider.Collider) uint64, result *ResultSet) {
	dir := ray.Direction.Normalized()
	if dir.LengthSq() < 1e-18 {
		return
	}
	var hits []Hit
	for _, cand := range candidates {
		if !filter.passes(cand.Collider, cand.ActiveBody, ownerID) {
			continue
		}
		if hit, ok := raySphere(ray.Origin, dir, ray.MaxDistance, cand.Collider); ok {
			hits = append(hits, hit)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	for _, h := range hits {
		if result.full() {
			break
		}
		result.add(h)
	}
}

// raySphere intersects ray against c's world bounding sphere, the narrow
// dispatch this package performs directly -- an exact per-shape ray test
// (box slab test, capsule, mesh BVH) is out of scope, matching the
// contact package's bounding-sphere fallback for unimplemented shape
// pairs.
func raySphere(origin, dir vecmath.Vec3, maxDist float64, c *collider.Collider) (Hit, bool) {
	center := c.Position
	radius := c.WorldBoundingRadius()
	toCenter := center.Sub(origin)
	proj := toCenter.Dot(dir)
	if proj < 0 {
		return Hit{}, false
	}
	closestSq := toCenter.LengthSq() - proj*proj
	radiusSq := radius * radius
	if closestSq > radiusSq {
		return Hit{}, false
	}
	offset := math.Sqrt(radiusSq - closestSq)
	dist := proj - offset
	if dist < 0 {
		dist = proj + offset
	}
	if dist < 0 || (maxDist > 0 && dist > maxDist) {
		return Hit{}, false
	}
	point := origin.Add(dir.Scale(dist))
	normal := point.Sub(center).Normalized()
	return Hit{Collider: c, Point: point, Normal: normal, Distance: dist}, true
}

// Plane is one half-space of a frustum, Normal pointing inward.
type Plane struct {
	Normal   vecmath.Vec3
	Distance float64 // plane equation: dot(Normal, p) + Distance >= 0 is inside
}

// Frustum is an intersection of half-spaces (typically 6 for a view
// frustum, but any count is accepted).
type Frustum struct {
	Planes []Plane
}

// sphereInside reports whether a sphere is at least partially inside every
// plane of f (a conservative test suitable for broad selection).
func (f Frustum) sphereInside(center vecmath.Vec3, radius float64) bool {
	for _, p := range f.Planes {
		if p.Normal.Dot(center)+p.Distance < -radius {
			return false
		}
	}
	return true
}

// CastFrustum returns every candidate passing filter whose bounding sphere
// intersects f, up to result.Capacity, unsorted (the specification only
// orders ray results).
func CastFrustum(f Frustum, candidates []Candidate, filter Filter, ownerID func(*collider.Collider) uint64, result *ResultSet) {
	for _, cand := range candidates {
		if result.full() {
			return
		}
		if !filter.passes(cand.Collider, cand.ActiveBody, ownerID) {
			continue
		}
		if !f.sphereInside(cand.Collider.Position, cand.Collider.WorldBoundingRadius()) {
			continue
		}
		result.add(Hit{Collider: cand.Collider, Point: cand.Collider.Position, Distance: 0})
	}
}
