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

// Package space orchestrates one physics world's per-tick loop: resource
// update, kinematic velocity derivation, effects, velocity integration,
// broadphase refresh, contact generation, constraint solve, spring
// systems, position integration, sleep management, and transform
// publication -- the twelve steps of the specification's physics tick.
package space

import (
	"reflect"

	log "github.com/sirupsen/logrus"

	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/collider"
	"github.com/replicore/engine/physics/constraint"
	"github.com/replicore/engine/physics/contact"
	"github.com/replicore/engine/physics/effects"
	"github.com/replicore/engine/physics/spring"
	"github.com/replicore/engine/physics/vecmath"
	"github.com/replicore/engine/netmetrics"
)

// pairKey orders a collider pair for manifold lookup so (a,b) and (b,a)
// resolve to the same cached manifold.
type pairKey struct{ a, b *collider.Collider }

func makePairKey(a, b *collider.Collider) pairKey {
	if reflect.ValueOf(a).Pointer() > reflect.ValueOf(b).Pointer() {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Space owns one physics world's node tree, bodies, effects, joints,
// spring systems, and manifold cache, and runs them through one tick at a
// time. Construct one with New: the zero value has no manifold map or edge
// cache.
type Space struct {
	Gravity        vecmath.Vec3
	MaxVelocity    float64 // 0 means unbounded; applied to every body each tick
	ManifoldPolicy contact.Policy
	Correction     constraint.CorrectionMethod
	AllowBackfaces bool

	// SpringIterations/SpringCorrection tune the spring relaxation pass;
	// zero SpringIterations skips spring systems entirely.
	SpringIterations int
	SpringCorrection float64

	Tree          *collider.Tree
	Bodies        []*body.RigidBody
	SpaceEffects  []effects.Effect
	Regions       []*effects.Region
	Joints        []constraint.Joint
	SpringSystems []*spring.System
	EdgeCache     *contact.InternalEdgeCache

	manifolds    map[pairKey]*contact.Manifold
	meshVersions map[*collider.Collider]uint64

	sleepEvents   []SleepEvent
	wakeEvents    []WakeEvent
	warningEvents []Warning

	// Metrics, when non-nil, receives sleeping-body and active-manifold
	// gauges at the end of every tick; nil is a valid zero value.
	Metrics *netmetrics.Metrics
}

// SleepEvent is dispatched the tick a body transitions to asleep.
type SleepEvent struct{ Body *body.RigidBody }

// WakeEvent is dispatched the tick a body is woken.
type WakeEvent struct{ Body *body.RigidBody }

// Warning is a non-fatal diagnostic surfaced during a tick (invalid
// geometry, mesh resource updates, effect and region predicate errors),
// per the specification's error handling
// design: recoverable conditions stay local and are reported, not
// propagated as an error return.
type Warning struct {
	Kind    string
	Message string
}

// New returns a Space over tree, ready to tick.
func New(tree *collider.Tree) *Space {
	return &Space{
		Tree:             tree,
		ManifoldPolicy:   contact.PersistentPolicy,
		Correction:       constraint.NonlinearGaussSeidel,
		SpringIterations: 4,
		SpringCorrection: 0.2,
		EdgeCache:        contact.NewInternalEdgeCache(contact.DefaultInternalEdgeCacheLimit),
		manifolds:        make(map[pairKey]*contact.Manifold),
		meshVersions:     make(map[*collider.Collider]uint64),
	}
}

// DrainEvents returns and clears the sleep/wake/warning events accumulated
// since the last call, for a host application to dispatch.
func (s *Space) DrainEvents() ([]SleepEvent, []WakeEvent, []Warning) {
	sleep, wake, warn := s.sleepEvents, s.wakeEvents, s.warningEvents
	s.sleepEvents, s.wakeEvents, s.warningEvents = nil, nil, nil
	return sleep, wake, warn
}

func (s *Space) warn(kind, message string) {
	s.warningEvents = append(s.warningEvents, Warning{Kind: kind, Message: message})
	log.WithField("kind", kind).Warn("space: " + message)
}

// colliders returns every node with a collider attached, across the
// whole tree.
func (s *Space) colliders() []*collider.Node {
	var out []*collider.Node
	if s.Tree == nil {
		return out
	}
	for _, root := range s.Tree.Roots() {
		for _, idx := range s.Tree.PostOrder(root) {
			n := s.Tree.Node(idx)
			if n.Collider != nil {
				out = append(out, n)
			}
		}
	}
	return out
}

// Tick advances the simulation by dt, running the full twelve-step
// sequence the specification's physics tick requires.
func (s *Space) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	nodes := s.colliders()

	s.updateResources(nodes)
	s.deriveKinematicVelocities(nodes, dt)
	s.precalculateEffects(nodes)
	s.applyEffects(nodes)
	s.integrateVelocities(dt)
	s.refreshBroadphase()
	s.generateContacts(nodes)
	s.solveConstraints()
	if s.SpringIterations > 0 {
		spring.RunTick(s.SpringSystems, dt, s.SpringIterations, s.SpringCorrection)
	}
	s.integratePositions(dt)
	s.updateSleep(dt)
	s.Tree.PublishTransforms()

	if s.Metrics != nil {
		asleep := 0
		for _, b := range s.Bodies {
			if b.IsAsleep() {
				asleep++
			}
		}
		active := 0
		for _, m := range s.manifolds {
			if len(m.Points) > 0 {
				active++
			}
		}
		s.Metrics.SleepingBodyCount.Set(float64(asleep))
		s.Metrics.ActiveManifoldCnt.Set(float64(active))
	}
}

// updateResources recomputes any collider whose mesh resource changed
// version since last tick, per the specification's resource-update step.
func (s *Space) updateResources(nodes []*collider.Node) {
	for _, n := range nodes {
		var version uint64
		switch shape := n.Collider.Shape.(type) {
		case *collider.Mesh:
			version = shape.Version
		case collider.ConvexMesh:
			version = shape.Version
		default:
			continue
		}
		if last, ok := s.meshVersions[n.Collider]; ok && last == version {
			continue
		}
		s.meshVersions[n.Collider] = version
		n.Collider.RefreshCache()
		if ab := s.Tree.ActiveBody(s.indexOf(n)); ab != nil {
			s.warn("resource", "mesh resource updated; recomposed collider cache")
		}
	}
}

// indexOf is a small linear lookup used only by the rare resource-update
// path; the tree does not otherwise need a reverse node->index map.
func (s *Space) indexOf(target *collider.Node) collider.NodeIndex {
	for _, root := range s.Tree.Roots() {
		for _, idx := range s.Tree.PostOrder(root) {
			if s.Tree.Node(idx) == target {
				return idx
			}
		}
	}
	return collider.NoParent
}

// deriveKinematicVelocities consumes any pending SetKinematicTarget pose on
// every Kinematic body and derives its velocity from the position/rotation
// delta, per the specification's kinematic-velocity-derivation step. A
// Kinematic body with no pending target keeps whatever velocity it last
// had (the owner is driving it at a slower cadence than the tick rate).
func (s *Space) deriveKinematicVelocities(nodes []*collider.Node, dt float64) {
	seen := make(map[*body.RigidBody]bool)
	for _, n := range nodes {
		if n.Body == nil || n.Body.Motion != body.Kinematic || seen[n.Body] {
			continue
		}
		seen[n.Body] = true
		if target, ok := n.Body.ConsumeKinematicTarget(); ok {
			n.Body.DeriveKinematicVelocity(target.Position, target.Rotation, dt)
		}
	}
}

// precalculateEffects runs Precalculate once on every effect reachable this
// tick -- space-global, every region's, and every node's hierarchy/body/
// collider effects -- before any of them are applied.
func (s *Space) precalculateEffects(nodes []*collider.Node) {
	sets := [][]effects.Effect{s.SpaceEffects}
	for _, r := range s.Regions {
		sets = append(sets, r.Effects)
	}
	for _, n := range nodes {
		sets = append(sets, n.HierarchyEffects, n.BodyEffects, n.ColliderEffects)
	}
	for _, sys := range s.SpringSystems {
		sets = append(sets, sys.Effects)
	}
	effects.PrecalculateAll(sets...)
}

func (s *Space) applyEffects(nodes []*collider.Node) {
	for _, b := range s.Bodies {
		if b.Motion != body.Dynamic || b.IsAsleep() {
			continue
		}
		var hierarchy, own, colliderFx []effects.Effect
		for _, n := range nodes {
			if n.Body == b {
				own = append(own, n.BodyEffects...)
				hierarchy = append(hierarchy, n.HierarchyEffects...)
				colliderFx = append(colliderFx, n.ColliderEffects...)
			}
		}
		if err := effects.Gather(b, s.SpaceEffects, hierarchy, own, colliderFx, s.Regions); err != nil {
			s.warn("effects", err.Error())
		}
	}
}

func (s *Space) integrateVelocities(dt float64) {
	for _, b := range s.Bodies {
		if b.IsAsleep() {
			continue
		}
		if s.MaxVelocity > 0 {
			b.MaxVelocity = s.MaxVelocity
		}
		b.IntegrateVelocity(dt, s.Gravity)
	}
}

// refreshBroadphase recomputes the world AABB/bounding sphere for every
// collider whose node has a queued broadphase update. A full spatial
// partition (grid/BVH separating static from dynamic colliders) is out of
// scope; contact generation below instead tests every pair directly, the
// same scope line the contact package's shape dispatch already draws.
func (s *Space) refreshBroadphase() {
	if s.Tree == nil {
		return
	}
	_, _, broadphase := s.Tree.DrainPending()
	for _, idx := range broadphase {
		if n := s.Tree.Node(idx); n.Collider != nil {
			n.Collider.RefreshCache()
		}
	}
}

func (s *Space) generateContacts(nodes []*collider.Node) {
	seenPairs := make(map[pairKey]bool)
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			ca, cb := nodes[i].Collider, nodes[j].Collider
			if !ca.Shape.Valid() || !cb.Shape.Valid() {
				if !ca.Shape.Valid() {
					s.warn("geometry", "skipping contact generation against invalid mesh collider")
				}
				continue
			}
			if !ca.AABBOverlaps(cb) {
				continue
			}
			key := makePairKey(ca, cb)
			points, hit := contact.Generate(ca, cb)
			if !hit {
				continue
			}
			seenPairs[key] = true
			points = s.correctInternalEdges(points, ca, cb)
			m, ok := s.manifolds[key]
			if !ok {
				m = contact.New(key.a, key.b, s.ManifoldPolicy)
				s.manifolds[key] = m
			}
			m.Insert(points)
			s.wakeBodiesInContact(nodes[i], nodes[j])
		}
	}
	for key := range s.manifolds {
		if !seenPairs[key] {
			delete(s.manifolds, key)
		}
	}
}

// correctInternalEdges clamps any contact normal generated against a mesh
// collider to its triangle's Voronoi region, per the specification's
// internal-edge correction step, by locating the nearest triangle to each
// contact's world point on the mesh collider.
func (s *Space) correctInternalEdges(points []contact.ContactPoint, ca, cb *collider.Collider) []contact.ContactPoint {
	mesh, onA := meshOf(ca)
	if mesh == nil {
		mesh, onA = meshOf(cb)
	}
	if mesh == nil {
		return points
	}
	for i := range points {
		triangle := nearestTriangle(mesh, points[i].WorldA)
		if triangle < 0 {
			continue
		}
		normal := points[i].Normal
		if !onA {
			normal = normal.Neg()
		}
		corrected := contact.CorrectInternalEdge(s.EdgeCache, mesh, triangle, normal, s.AllowBackfaces)
		if !onA {
			corrected = corrected.Neg()
		}
		points[i].Normal = corrected
	}
	return points
}

func meshOf(c *collider.Collider) (*collider.Mesh, bool) {
	switch shape := c.Shape.(type) {
	case *collider.Mesh:
		return shape, true
	case collider.ConvexMesh:
		return shape.Mesh, true
	default:
		return nil, false
	}
}

func nearestTriangle(mesh *collider.Mesh, point vecmath.Vec3) int {
	best, bestDist := -1, 0.0
	for i, tri := range mesh.Triangles {
		a := mesh.Vertices[tri.A]
		center := a.Add(mesh.Vertices[tri.B]).Add(mesh.Vertices[tri.C]).Scale(1.0 / 3.0)
		d := point.Distance(center)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (s *Space) wakeBodiesInContact(a, b *collider.Node) {
	if ab := s.Tree.ActiveBody(s.indexOf(a)); ab != nil {
		ab.WakeUp()
	}
	if ab := s.Tree.ActiveBody(s.indexOf(b)); ab != nil {
		ab.WakeUp()
	}
}

// solveConstraints runs joints and every manifold's contact constraints
// through one combined warm-start/velocity/position solve, the
// specification's single sequential-impulse pass over both kinds of
// constraint.
func (s *Space) solveConstraints() {
	solver := constraint.Solver{Joints: append([]constraint.Joint{}, s.Joints...)}
	for key, m := range s.manifolds {
		if !m.Valid() {
			continue
		}
		bodyA := s.bodyForCollider(key.a)
		bodyB := s.bodyForCollider(key.b)
		if bodyA == nil && bodyB == nil {
			continue
		}
		mat := collider.Combine(key.a.Material, key.b.Material)
		solver.Joints = append(solver.Joints, constraint.NewContactConstraint(bodyA, bodyB, m, mat, constraint.JointConfigOverride{}))
	}
	solver.Solve(s.Correction)
}

func (s *Space) bodyForCollider(c *collider.Collider) *body.RigidBody {
	idx := s.indexOfCollider(c)
	if idx == collider.NoParent {
		return nil
	}
	return c.ActiveBody(s.Tree.ActiveBody(idx))
}

func (s *Space) indexOfCollider(target *collider.Collider) collider.NodeIndex {
	for _, root := range s.Tree.Roots() {
		for _, idx := range s.Tree.PostOrder(root) {
			if s.Tree.Node(idx).Collider == target {
				return idx
			}
		}
	}
	return collider.NoParent
}

func (s *Space) integratePositions(dt float64) {
	for _, b := range s.Bodies {
		if b.IsAsleep() {
			continue
		}
		b.IntegratePosition(dt)
	}
}

func (s *Space) updateSleep(dt float64) {
	for _, b := range s.Bodies {
		wasAsleep := b.IsAsleep()
		if b.UpdateSleepTimer(dt) {
			s.sleepEvents = append(s.sleepEvents, SleepEvent{Body: b})
		}
		if wasAsleep && !b.IsAsleep() {
			s.wakeEvents = append(s.wakeEvents, WakeEvent{Body: b})
		}
	}
}
