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

// Package spring implements particle/edge/face spring systems resolved by
// Jakobsen position-based relaxation: point masses, anchors pinning a
// point to an external transform, inter-system connection edges, and the
// per-tick apply-effects/integrate/relax sequence.
package spring

import (
	"sort"

	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/effects"
	"github.com/replicore/engine/physics/vecmath"
)

// Point is one mass point in a System.
type Point struct {
	Position    vecmath.Vec3
	OldPosition vecmath.Vec3
	Velocity    vecmath.Vec3
	InverseMass float64

	// Anchor, when non-nil, pins Position to Anchor's world transform
	// plus LocalOffset every tick, treating the point as infinite mass
	// for the purposes of edge solves involving it.
	Anchor      *Anchor
	LocalOffset vecmath.Vec3
}

// Anchor is an external transform a point mass can be pinned to.
type Anchor struct {
	WorldPosition vecmath.Vec3
	WorldRotation vecmath.Quat
}

func (a *Anchor) worldPoint(localOffset vecmath.Vec3) vecmath.Vec3 {
	return a.WorldPosition.Add(a.WorldRotation.RotateVec3(localOffset))
}

// Edge constrains two points (by index into System.Points) to a rest
// length.
type Edge struct {
	A, B      int
	RestLength float64
	Stiffness  float64 // 0-1, scales the correction applied per relaxation pass
	Damping    float64
}

// Face is a triangle of three point indices, carried for rendering/area
// bookkeeping; it does not itself participate in relaxation beyond its
// three edges, which callers add separately.
type Face struct {
	A, B, C int
}

// Connection is an edge between two different systems: Owner solves it as
// part of its owned-connection list, referencing Other's point directly.
// Both systems must resolve to non-nil before the edge is solved.
type Connection struct {
	Owner, Other         *System
	OwnerIndex, OtherIndex int
	RestLength           float64
	Stiffness            float64
}

// System is one spring system: particles, internal edges, faces, and the
// connections it owns to other systems.
type System struct {
	Points []Point
	Edges  []Edge
	Faces  []Face

	// Effects applied to every non-anchored point of this system each
	// tick. Space-global and hierarchy effects are not applied to spring
	// systems; only this list is.
	Effects []effects.Effect

	// OwnedConnections are inter-system edges this system solves;
	// ConnectedFrom records connections other systems own into this one,
	// kept only so a removed system can find and drop them.
	OwnedConnections []*Connection
	ConnectedFrom    []*Connection

	// sortedEdges caches Edges reordered by SortByAnchorDistance.
	sortedEdges []int
}

// Connect creates a connection owned by a between a's point ownIdx and b's
// point otherIdx, registering it on both systems' bookkeeping lists.
func Connect(a, b *System, ownIdx, otherIdx int, restLength, stiffness float64) *Connection {
	c := &Connection{Owner: a, Other: b, OwnerIndex: ownIdx, OtherIndex: otherIdx, RestLength: restLength, Stiffness: stiffness}
	a.OwnedConnections = append(a.OwnedConnections, c)
	b.ConnectedFrom = append(b.ConnectedFrom, c)
	return c
}

// ApplyEffects accumulates this tick's force contributions into each
// non-anchored point's velocity via semi-implicit Euler. A point mass is
// given no orientation, so effects are evaluated against a throwaway
// RigidBody built from the point's position/velocity/inverse mass,
// reusing the body package's own force-accumulate-then-integrate
// machinery rather than duplicating it for points.
func (s *System) ApplyEffects(dt float64) {
	for i := range s.Points {
		p := &s.Points[i]
		if p.Anchor != nil || p.InverseMass <= 0 {
			continue
		}
		proxy := body.New()
		proxy.Position = p.Position
		proxy.LinearVelocity = p.Velocity
		proxy.InverseMass = p.InverseMass
		for _, e := range s.Effects {
			e.Apply(proxy)
		}
		proxy.IntegrateVelocity(dt, vecmath.Vec3{})
		p.Velocity = proxy.LinearVelocity
	}
}

// IntegratePositions advances each non-anchored point's position from its
// (possibly effect-updated) velocity, and snaps anchored points to their
// anchor's current world transform -- the tick's "integrate velocity and
// position" half of the spec's spring-system step, run before relaxation.
func (s *System) IntegratePositions(dt float64) {
	for i := range s.Points {
		p := &s.Points[i]
		p.OldPosition = p.Position
		if p.Anchor != nil {
			p.Position = p.Anchor.worldPoint(p.LocalOffset)
			p.Velocity = vecmath.Vec3{}
			continue
		}
		if p.InverseMass <= 0 {
			continue
		}
		p.Position = p.Position.Add(p.Velocity.Scale(dt))
	}
}

// SortByAnchorDistance reorders the edge solve sequence by shortest-path
// hop-distance from any anchored point, ascending (topDown=true, anchors
// solved first and error propagates outward) or descending
// (topDown=false), per the specification's pre-sort option.
func (s *System) SortByAnchorDistance(topDown bool) {
	dist := make([]int, len(s.Points))
	for i := range dist {
		dist[i] = -1
	}
	queue := make([]int, 0, len(s.Points))
	for i, p := range s.Points {
		if p.Anchor != nil {
			dist[i] = 0
			queue = append(queue, i)
		}
	}
	adjacency := make([][]int, len(s.Points))
	for ei, e := range s.Edges {
		adjacency[e.A] = append(adjacency[e.A], ei)
		adjacency[e.B] = append(adjacency[e.B], ei)
	}
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		for _, ei := range adjacency[cur] {
			e := s.Edges[ei]
			other := e.A
			if other == cur {
				other = e.B
			}
			if dist[other] == -1 {
				dist[other] = dist[cur] + 1
				queue = append(queue, other)
			}
		}
	}
	edgeDistance := func(e Edge) int {
		da, db := dist[e.A], dist[e.B]
		if da == -1 {
			da = len(s.Points)
		}
		if db == -1 {
			db = len(s.Points)
		}
		if da < db {
			return da
		}
		return db
	}
	order := make([]int, len(s.Edges))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		di, dj := edgeDistance(s.Edges[order[i]]), edgeDistance(s.Edges[order[j]])
		if topDown {
			return di < dj
		}
		return di > dj
	})
	s.sortedEdges = order
}

func (s *System) edgeOrder() []int {
	if s.sortedEdges != nil {
		return s.sortedEdges
	}
	order := make([]int, len(s.Edges))
	for i := range order {
		order[i] = i
	}
	return order
}

// relaxEdge moves a and b's positions so their separation approaches
// restLength, weighted by inverse mass and scaled by correctionPercent and
// the edge's own stiffness.
func relaxEdge(a, b *Point, restLength, stiffness, correctionPercent float64) {
	invA, invB := pointInvMass(a), pointInvMass(b)
	invSum := invA + invB
	if invSum <= 0 {
		return
	}
	delta := b.Position.Sub(a.Position)
	dist := delta.Length()
	if dist < 1e-9 {
		return
	}
	diff := (dist - restLength) / dist * stiffness * correctionPercent
	correction := delta.Scale(diff)
	if invA > 0 {
		a.Position = a.Position.Add(correction.Scale(invA / invSum))
	}
	if invB > 0 {
		b.Position = b.Position.Sub(correction.Scale(invB / invSum))
	}
}

func pointInvMass(p *Point) float64 {
	if p.Anchor != nil {
		return 0
	}
	return p.InverseMass
}

// RelaxPass runs one Jakobsen relaxation iteration across this system's
// internal edges, its owned cross-system connections, and re-snaps any
// anchored point -- the specification's per-pass order.
func (s *System) RelaxPass(correctionPercent float64) {
	for _, ei := range s.edgeOrder() {
		e := s.Edges[ei]
		relaxEdge(&s.Points[e.A], &s.Points[e.B], e.RestLength, stiffnessOrDefault(e.Stiffness), correctionPercent)
	}
	for _, c := range s.OwnedConnections {
		if c.Owner == nil || c.Other == nil {
			continue
		}
		relaxEdge(&c.Owner.Points[c.OwnerIndex], &c.Other.Points[c.OtherIndex], c.RestLength, stiffnessOrDefault(c.Stiffness), correctionPercent)
	}
	for i := range s.Points {
		p := &s.Points[i]
		if p.Anchor != nil {
			p.Position = p.Anchor.worldPoint(p.LocalOffset)
		}
	}
}

func stiffnessOrDefault(s float64) float64 {
	if s <= 0 {
		return 1
	}
	return s
}

// DeriveVelocities recomputes each point's velocity from its position
// change across this tick, the specification's end-of-tick velocity
// re-derivation after relaxation has moved positions directly.
func (s *System) DeriveVelocities(dt float64) {
	if dt <= 0 {
		return
	}
	for i := range s.Points {
		p := &s.Points[i]
		if p.Anchor != nil {
			continue
		}
		p.Velocity = p.Position.Sub(p.OldPosition).Scale(1 / dt)
	}
}

// RunTick runs one full spring-system tick across every system in
// systems, interleaved per the specification: effects on every system,
// then integration on every system, then `iterations` relaxation passes
// across every system's internal and owned cross-system edges, then
// velocity re-derivation.
func RunTick(systems []*System, dt float64, iterations int, correctionPercent float64) {
	for _, s := range systems {
		s.ApplyEffects(dt)
	}
	for _, s := range systems {
		s.IntegratePositions(dt)
	}
	for i := 0; i < iterations; i++ {
		for _, s := range systems {
			s.RelaxPass(correctionPercent)
		}
	}
	for _, s := range systems {
		s.DeriveVelocities(dt)
	}
}
