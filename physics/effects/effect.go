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

// Package effects implements the physics tick's force-field layer: scoped
// effects (gravity, force, wind, thrust, point, torque, and the basic
// point/direction variants) and regions that gate a set of effects to an
// optional scripted activation predicate.
package effects

import (
	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/vecmath"
)

// Scope records where an effect is attached, for the caller's own
// gathering logic (this package does not interpret scope itself -- Gather
// already receives effects pre-sorted into their scope buckets).
type Scope uint8

const (
	ScopeCollider Scope = iota
	ScopeBody
	ScopeRegion
	ScopeSpace
	ScopeHierarchy
)

// Effect is one force/torque contributor evaluated each physics tick.
type Effect interface {
	Scope() Scope
	// Precalculate computes this effect's world-space parameters once per
	// tick, before Apply is called on any body.
	Precalculate()
	Apply(b *body.RigidBody)
}

// Gravity applies a constant world-space acceleration, scaled by mass so
// it composes uniformly with the other force-based effects.
type Gravity struct {
	ScopeKind    Scope
	Acceleration vecmath.Vec3
}

func (g *Gravity) Scope() Scope   { return g.ScopeKind }
func (g *Gravity) Precalculate()  {}
func (g *Gravity) Apply(b *body.RigidBody) {
	if b.InverseMass <= 0 {
		return
	}
	b.ApplyForce(g.Acceleration.Scale(1 / b.InverseMass))
}

// Force applies a constant world-space force.
type Force struct {
	ScopeKind  Scope
	WorldForce vecmath.Vec3
}

func (f *Force) Scope() Scope  { return f.ScopeKind }
func (f *Force) Precalculate() {}
func (f *Force) Apply(b *body.RigidBody) {
	b.ApplyForce(f.WorldForce)
}

// Wind applies a drag force toward WindVelocity, proportional to the
// relative velocity between the wind and the body.
type Wind struct {
	ScopeKind       Scope
	WindVelocity    vecmath.Vec3
	DragCoefficient float64
}

func (w *Wind) Scope() Scope  { return w.ScopeKind }
func (w *Wind) Precalculate() {}
func (w *Wind) Apply(b *body.RigidBody) {
	relative := w.WindVelocity.Sub(b.LinearVelocity)
	b.ApplyForce(relative.Scale(w.DragCoefficient))
}

// Thrust applies a force along a direction fixed in the body's local
// frame, e.g. an engine mounted on the body.
type Thrust struct {
	ScopeKind      Scope
	LocalDirection vecmath.Vec3
	Magnitude      float64
}

func (t *Thrust) Scope() Scope  { return t.ScopeKind }
func (t *Thrust) Precalculate() {}
func (t *Thrust) Apply(b *body.RigidBody) {
	worldDir := b.Rotation.RotateVec3(t.LocalDirection.Normalized())
	b.ApplyForce(worldDir.Scale(t.Magnitude))
}

// Torque applies a constant world-space torque.
type Torque struct {
	ScopeKind   Scope
	WorldTorque vecmath.Vec3
}

func (t *Torque) Scope() Scope  { return t.ScopeKind }
func (t *Torque) Precalculate() {}
func (t *Torque) Apply(b *body.RigidBody) {
	b.ApplyTorque(t.WorldTorque)
}

// PointEffect pulls bodies toward (positive Strength) or pushes them away
// from (negative Strength) a world-space point, generalizing the
// specification's point-gravity and point-force effect kinds.
type PointEffect struct {
	ScopeKind Scope
	Position  vecmath.Vec3
	Strength  float64
	// FalloffRadius, when positive, linearly fades strength to zero at
	// this distance. Zero means constant strength out to MaxDistance.
	FalloffRadius float64
	// MaxDistance, when positive, excludes bodies beyond this distance
	// entirely. Zero means unbounded.
	MaxDistance float64
}

func (p *PointEffect) Scope() Scope  { return p.ScopeKind }
func (p *PointEffect) Precalculate() {}
func (p *PointEffect) Apply(b *body.RigidBody) {
	toPoint := p.Position.Sub(b.WorldCenterOfMass())
	dist := toPoint.Length()
	if dist < 1e-9 || (p.MaxDistance > 0 && dist > p.MaxDistance) {
		return
	}
	strength := p.Strength
	if p.FalloffRadius > 0 {
		strength *= vecmath.Clamp(1-dist/p.FalloffRadius, 0, 1)
	}
	b.ApplyForce(toPoint.Scale(strength / dist))
}

// DirectionEffect applies a constant world-space force and torque along
// the same direction, generalizing the specification's basic directional
// force/torque effect kinds into one configurable structure.
type DirectionEffect struct {
	ScopeKind      Scope
	Direction      vecmath.Vec3
	ForceStrength  float64
	TorqueStrength float64
}

func (d *DirectionEffect) Scope() Scope  { return d.ScopeKind }
func (d *DirectionEffect) Precalculate() {}
func (d *DirectionEffect) Apply(b *body.RigidBody) {
	dir := d.Direction.Normalized()
	b.ApplyForce(dir.Scale(d.ForceStrength))
	b.ApplyTorque(dir.Scale(d.TorqueStrength))
}

// PrecalculateAll runs Precalculate once on every effect across the given
// sets, the tick's effects-precalculate step.
func PrecalculateAll(effectSets ...[]Effect) {
	for _, set := range effectSets {
		for _, e := range set {
			e.Precalculate()
		}
	}
}

// Gather applies every effect set relevant to b: space-global effects
// (unless b.IgnoreSpaceEffects), hierarchy effects, the body's own
// effects, its colliders' effects, and any active region's effects --
// the specification's per-body effect-application step.
func Gather(b *body.RigidBody, spaceEffects, hierarchyEffects, bodyEffects, colliderEffects []Effect, regions []*Region) error {
	if !b.IgnoreSpaceEffects {
		applyAll(b, spaceEffects)
	}
	applyAll(b, hierarchyEffects)
	applyAll(b, bodyEffects)
	applyAll(b, colliderEffects)
	for _, r := range regions {
		active, err := r.Active()
		if err != nil {
			return err
		}
		if active {
			applyAll(b, r.Effects)
		}
	}
	return nil
}

func applyAll(b *body.RigidBody, list []Effect) {
	for _, e := range list {
		e.Apply(b)
	}
}
