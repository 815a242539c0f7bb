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

// Package contact implements contact manifolds between collider pairs: the
// three insertion policies (Normal/Full/Persistent), the 2-D correction
// step, and internal-edge correction against mesh/heightmap triangles.
package contact

import (
	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/collider"
	"github.com/replicore/engine/physics/vecmath"
)

// maxManifoldPoints is the specification's fixed manifold capacity.
const maxManifoldPoints = 4

// contactBreakingThreshold is the persistent policy's ~2cm drift and
// penetration-recovery bound from the specification.
const contactBreakingThreshold = 0.02

// Policy governs how a manifold absorbs a new set of contact points.
type Policy uint8

const (
	NormalPolicy Policy = iota
	FullPolicy
	PersistentPolicy
)

// ContactPoint is one point of contact between two colliders.
type ContactPoint struct {
	WorldA, WorldB vecmath.Vec3
	LocalA, LocalB vecmath.Vec3 // body-local, relative to each body's center of mass
	Normal         vecmath.Vec3 // from collider A to collider B
	Penetration    float64      // positive when interpenetrating

	AccumNormalImpulse   float64
	AccumFrictionImpulse [2]float64
}

// WithLocal returns p with LocalA/LocalB derived from the given bodies'
// current transforms, for a persistent-policy manifold to track points
// across ticks as the bodies move. A nil body leaves the corresponding
// local point at the zero vector (static colliders have no body frame).
func (p ContactPoint) WithLocal(bodyA, bodyB *body.RigidBody) ContactPoint {
	if bodyA != nil {
		p.LocalA = bodyA.Rotation.Conjugate().RotateVec3(p.WorldA.Sub(bodyA.WorldCenterOfMass()))
	}
	if bodyB != nil {
		p.LocalB = bodyB.Rotation.Conjugate().RotateVec3(p.WorldB.Sub(bodyB.WorldCenterOfMass()))
	}
	return p
}

// Manifold is the cached contact state for one overlapping collider pair.
type Manifold struct {
	ColliderA, ColliderB *collider.Collider
	Policy               Policy
	Points               []ContactPoint
}

// New returns an empty manifold for the pair under the given policy.
func New(a, b *collider.Collider, policy Policy) *Manifold {
	return &Manifold{ColliderA: a, ColliderB: b, Policy: policy}
}

// Valid reports whether the manifold still has any contact points.
func (m *Manifold) Valid() bool { return len(m.Points) > 0 }

// Insert absorbs a freshly generated set of contact points under the
// manifold's configured policy. PersistentPolicy callers should call
// RefreshPersistent first, then AddPersistentCandidate instead of Insert.
func (m *Manifold) Insert(incoming []ContactPoint) {
	switch m.Policy {
	case FullPolicy:
		m.insertFull(incoming)
	case PersistentPolicy:
		m.RefreshPersistent(identityTransform, identityTransform)
		m.AddPersistentCandidate(incoming)
	default:
		m.Points = append(m.Points[:0:0], incoming...)
	}
	if len(m.Points) > maxManifoldPoints {
		m.reduceByQuadArea()
	}
}

func identityTransform(local vecmath.Vec3) vecmath.Vec3 { return local }

const fullMatchRadius = 0.02

func (m *Manifold) insertFull(incoming []ContactPoint) {
	matched := make([]bool, len(m.Points))
	next := make([]ContactPoint, 0, len(incoming))
	for _, in := range incoming {
		bestIdx, bestDist := -1, fullMatchRadius
		for i, cached := range m.Points {
			if matched[i] {
				continue
			}
			if d := in.WorldA.Distance(cached.WorldA); d < bestDist {
				bestDist, bestIdx = d, i
			}
		}
		if bestIdx >= 0 {
			matched[bestIdx] = true
			in.AccumNormalImpulse = m.Points[bestIdx].AccumNormalImpulse
			in.AccumFrictionImpulse = m.Points[bestIdx].AccumFrictionImpulse
		}
		next = append(next, in)
	}
	m.Points = next
}

// RefreshPersistent recomputes each cached point's world position from its
// body-local offset via the supplied transforms, dropping points whose
// penetration has recovered past -contactBreakingThreshold or whose
// tangential drift from the recomputed position exceeds it.
func (m *Manifold) RefreshPersistent(worldFromLocalA, worldFromLocalB func(vecmath.Vec3) vecmath.Vec3) {
	kept := m.Points[:0]
	for _, p := range m.Points {
		wa := worldFromLocalA(p.LocalA)
		wb := worldFromLocalB(p.LocalB)
		penetration := p.Normal.Dot(wa.Sub(wb))
		tangentialDrift := wa.Sub(p.WorldA)
		tangentialDrift = tangentialDrift.Sub(p.Normal.Scale(p.Normal.Dot(tangentialDrift)))
		if penetration < -contactBreakingThreshold || tangentialDrift.Length() > contactBreakingThreshold {
			continue
		}
		p.WorldA, p.WorldB, p.Penetration = wa, wb, penetration
		kept = append(kept, p)
	}
	m.Points = kept
}

// AddPersistentCandidate adds at most one new point this tick, the deepest
// of the supplied candidates, then reduces back to the 4-point cap by
// quad-area selection if it overflows.
func (m *Manifold) AddPersistentCandidate(candidates []ContactPoint) {
	if len(candidates) == 0 {
		return
	}
	deepest := candidates[0]
	for _, c := range candidates[1:] {
		if c.Penetration > deepest.Penetration {
			deepest = c
		}
	}
	m.Points = append(m.Points, deepest)
	if len(m.Points) > maxManifoldPoints {
		m.reduceByQuadArea()
	}
}

// reduceByQuadArea keeps the deepest point, then greedily adds the three
// others that maximize the running quadrilateral's area, matching the
// persistent policy's overflow rule.
func (m *Manifold) reduceByQuadArea() {
	deepestIdx := 0
	for i, p := range m.Points {
		if p.Penetration > m.Points[deepestIdx].Penetration {
			deepestIdx = i
		}
	}
	kept := []ContactPoint{m.Points[deepestIdx]}
	remaining := make([]ContactPoint, 0, len(m.Points)-1)
	for i, p := range m.Points {
		if i != deepestIdx {
			remaining = append(remaining, p)
		}
	}
	for len(kept) < maxManifoldPoints && len(remaining) > 0 {
		bestIdx, bestArea := -1, -1.0
		for i, cand := range remaining {
			if area := quadArea(append(append([]ContactPoint{}, kept...), cand)); area > bestArea {
				bestArea, bestIdx = area, i
			}
		}
		kept = append(kept, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	m.Points = kept
}

// quadArea computes the unsigned area of the polygon formed by pts' world
// points on collider A, projected onto the XY plane.
func quadArea(pts []ContactPoint) float64 {
	var area float64
	for i := range pts {
		a := pts[i].WorldA
		b := pts[(i+1)%len(pts)].WorldA
		area += a.X*b.Y - b.X*a.Y
	}
	if area < 0 {
		area = -area
	}
	return area / 2
}

// Apply2DCorrection zeroes the z component of every contact normal and
// drops points whose remaining normal length falls below the threshold,
// matching the specification's 2-D correction step; call when either
// collider is 2-D-locked and the other is not dynamic.
func (m *Manifold) Apply2DCorrection() {
	const minNormalLength = 0.03
	kept := m.Points[:0]
	for _, p := range m.Points {
		p.Normal.Z = 0
		if p.Normal.Length() < minNormalLength {
			continue
		}
		p.Normal = p.Normal.Normalized()
		kept = append(kept, p)
	}
	m.Points = kept
}
