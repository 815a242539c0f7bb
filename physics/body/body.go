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

// Package body implements RigidBody: its motion state, force/torque
// accumulators, mass composition, sleep timer, and the semi-implicit
// Euler integrators the physics tick runs it through.
package body

import (
	"math"

	"github.com/replicore/engine/physics/vecmath"
)

// Motion is a body's simulation role. Static bodies never move; Kinematic
// bodies are moved directly by the owner and drive velocity derivation
// from position deltas; Dynamic bodies are integrated by the solver.
type Motion uint8

const (
	Static Motion = iota
	Kinematic
	Dynamic
)

// Sleep tuning constants from the specification; part of the contract.
const (
	LinearSleepEpsilon  = 0.16
	AngularSleepEpsilon = 0.16
	TimeToSleep         = 1.0
)

// RigidBody is one simulated rigid body.
type RigidBody struct {
	Motion Motion

	Position vecmath.Vec3
	Rotation vecmath.Quat

	LinearVelocity  vecmath.Vec3
	AngularVelocity vecmath.Vec3

	// PrevLinearVelocity/PrevAngularVelocity hold the velocities a Dynamic
	// body had when IntegrateVelocity last ran, before that integration.
	PrevLinearVelocity  vecmath.Vec3
	PrevAngularVelocity vecmath.Vec3
	PrevPosition        vecmath.Vec3
	PrevRotation        vecmath.Quat

	CenterOfMass vecmath.Vec3 // local-space, relative to Position

	InverseMass    float64
	InverseInertia vecmath.Mat3 // local-space inverse inertia tensor

	// Lock2D zeroes the z component of inverse mass's effect and the z
	// axis of world inertia, per the specification's 2-D body handling.
	Lock2D bool
	// RotationLocked forces zero inverse inertia regardless of mass
	// composition (a body that cannot be made to spin).
	RotationLocked bool

	forceAccum  vecmath.Vec3
	torqueAccum vecmath.Vec3

	// IgnoreSpaceEffects excludes this body from space-global effects
	// while still receiving hierarchy/body/collider/region effects.
	IgnoreSpaceEffects bool

	MaxVelocity float64 // 0 means unbounded

	sleepTimer float64
	asleep     bool

	// kinematicTarget holds the pose an owner has requested for the next
	// tick's kinematic velocity derivation, set via SetKinematicTarget.
	kinematicTarget    Transform
	hasKinematicTarget bool
}

// Transform is a position/rotation pair, used by SetKinematicTarget to
// describe where a Kinematic body should be moved to next tick.
type Transform struct {
	Position vecmath.Vec3
	Rotation vecmath.Quat
}

// SetKinematicTarget records the pose an owner (scene graph, animation,
// network replica) wants this Kinematic body to occupy after the next
// tick's kinematic-velocity-derivation step; DeriveKinematicVelocity
// consumes and clears it.
func (b *RigidBody) SetKinematicTarget(t Transform) {
	b.kinematicTarget = t
	b.hasKinematicTarget = true
}

// ConsumeKinematicTarget returns the pending target set by
// SetKinematicTarget, if any, clearing it.
func (b *RigidBody) ConsumeKinematicTarget() (Transform, bool) {
	if !b.hasKinematicTarget {
		return Transform{}, false
	}
	b.hasKinematicTarget = false
	return b.kinematicTarget, true
}

// New returns a Dynamic body with unit mass and no rotation lock.
func New() *RigidBody {
	return &RigidBody{
		Motion:         Dynamic,
		Rotation:       vecmath.IdentityQuat,
		PrevRotation:   vecmath.IdentityQuat,
		InverseMass:    1,
		InverseInertia: vecmath.Diag3(1, 1, 1),
	}
}

// ApplyForce accumulates a world-space force for this tick's integration.
func (b *RigidBody) ApplyForce(f vecmath.Vec3) {
	if b.Motion != Dynamic {
		return
	}
	b.forceAccum = b.forceAccum.Add(f)
}

// ApplyTorque accumulates a world-space torque for this tick.
func (b *RigidBody) ApplyTorque(t vecmath.Vec3) {
	if b.Motion != Dynamic {
		return
	}
	b.torqueAccum = b.torqueAccum.Add(t)
}

// ApplyForceAtPoint applies f at world-space point, contributing a torque
// about the world-space center of mass in addition to the linear force.
func (b *RigidBody) ApplyForceAtPoint(f vecmath.Vec3, point vecmath.Vec3) {
	b.ApplyForce(f)
	r := point.Sub(b.WorldCenterOfMass())
	b.ApplyTorque(r.Cross(f))
}

// ApplyImpulse immediately changes velocities (used by the constraint
// solver, not the per-tick force accumulator).
func (b *RigidBody) ApplyImpulse(impulse vecmath.Vec3, point vecmath.Vec3) {
	if b.InverseMass == 0 {
		return
	}
	b.LinearVelocity = b.LinearVelocity.Add(impulse.Scale(b.InverseMass))
	r := point.Sub(b.WorldCenterOfMass())
	angularImpulse := r.Cross(impulse)
	b.AngularVelocity = b.AngularVelocity.Add(b.worldInverseInertia().MulVec3(angularImpulse))
}

// WorldCenterOfMass is the body's center of mass in world space.
func (b *RigidBody) WorldCenterOfMass() vecmath.Vec3 {
	return b.Position.Add(b.Rotation.RotateVec3(b.CenterOfMass))
}

// WorldInverseInertia returns the current world-space inverse inertia
// tensor, for constraint solvers computing an effective mass that
// includes a contact or joint's angular lever arm.
func (b *RigidBody) WorldInverseInertia() vecmath.Mat3 { return b.worldInverseInertia() }

func (b *RigidBody) worldInverseInertia() vecmath.Mat3 {
	if b.RotationLocked {
		return vecmath.Mat3{}
	}
	r := vecmath.FromQuat(b.Rotation)
	rt := r.Transpose()
	world := r.Mul(b.InverseInertia).Mul(rt)
	if b.Lock2D {
		world[0][2], world[1][2], world[2][0], world[2][1], world[2][2] = 0, 0, 0, 0, 0
	}
	return world
}

// IntegrateVelocity performs semi-implicit Euler velocity integration
// from accumulated forces/torques and clears the accumulators; only
// Dynamic bodies are affected.
func (b *RigidBody) IntegrateVelocity(dt float64, gravity vecmath.Vec3) {
	if b.Motion != Dynamic {
		b.forceAccum = vecmath.Vec3{}
		b.torqueAccum = vecmath.Vec3{}
		return
	}
	b.PrevLinearVelocity = b.LinearVelocity
	b.PrevAngularVelocity = b.AngularVelocity

	linearAccel := gravity.Add(b.forceAccum.Scale(b.InverseMass))
	b.LinearVelocity = b.LinearVelocity.Add(linearAccel.Scale(dt))
	angularAccel := b.worldInverseInertia().MulVec3(b.torqueAccum)
	b.AngularVelocity = b.AngularVelocity.Add(angularAccel.Scale(dt))

	if b.Lock2D {
		b.LinearVelocity.Z = 0
		b.AngularVelocity.X = 0
		b.AngularVelocity.Y = 0
	}
	if b.MaxVelocity > 0 {
		b.LinearVelocity = vecmath.ClampLength(b.LinearVelocity, b.MaxVelocity)
	}

	b.forceAccum = vecmath.Vec3{}
	b.torqueAccum = vecmath.Vec3{}
}

// IntegratePosition advances position and orientation by velocity over
// dt; orientation integration re-normalizes its quaternion.
func (b *RigidBody) IntegratePosition(dt float64) {
	if b.Motion == Static {
		return
	}
	b.PrevPosition = b.Position
	b.PrevRotation = b.Rotation
	b.Position = b.Position.Add(b.LinearVelocity.Scale(dt))
	b.Rotation = b.Rotation.Integrate(b.AngularVelocity, dt)
}

// DeriveKinematicVelocity sets LinearVelocity/AngularVelocity for a
// Kinematic body from the position/rotation delta since the previous
// tick, per the specification's kinematic-velocity-derivation step.
func (b *RigidBody) DeriveKinematicVelocity(newPosition vecmath.Vec3, newRotation vecmath.Quat, dt float64) {
	if dt <= 0 {
		return
	}
	b.LinearVelocity = newPosition.Sub(b.Position).Scale(1 / dt)
	delta := newRotation.Mul(b.Rotation.Conjugate())
	angle := 2 * angleOf(delta)
	axis := axisOf(delta)
	b.AngularVelocity = axis.Scale(angle / dt)
	b.Position = newPosition
	b.Rotation = newRotation
}

func angleOf(q vecmath.Quat) float64 {
	w := vecmath.Clamp(q.W, -1, 1)
	return math.Acos(w)
}

func axisOf(q vecmath.Quat) vecmath.Vec3 {
	v := vecmath.Vec3{X: q.X, Y: q.Y, Z: q.Z}
	if v.LengthSq() < 1e-12 {
		return vecmath.Vec3{}
	}
	return v.Normalized()
}

// IsAsleep reports whether this body is currently asleep (only Dynamic
// bodies ever sleep).
func (b *RigidBody) IsAsleep() bool { return b.asleep }

// UpdateSleepTimer accumulates the sleep timer when both linear and
// angular kinetic measures are below threshold, putting the body to sleep
// once TimeToSleep has elapsed; a tick above either threshold resets the
// timer. A body that is already asleep (or not Dynamic) is left unchanged;
// only WakeUp wakes it. Returns true the tick the body transitions to
// asleep.
func (b *RigidBody) UpdateSleepTimer(dt float64) (wentToSleep bool) {
	if b.Motion != Dynamic || b.asleep {
		return false
	}
	below := b.LinearVelocity.LengthSq() < LinearSleepEpsilon*LinearSleepEpsilon &&
		b.AngularVelocity.LengthSq() < AngularSleepEpsilon*AngularSleepEpsilon
	if !below {
		b.sleepTimer = 0
		return false
	}
	b.sleepTimer += dt
	if b.sleepTimer >= TimeToSleep {
		b.asleep = true
		b.LinearVelocity = vecmath.Vec3{}
		b.AngularVelocity = vecmath.Vec3{}
		b.forceAccum = vecmath.Vec3{}
		b.torqueAccum = vecmath.Vec3{}
		return true
	}
	return false
}

// WakeUp clears the asleep flag and resets the sleep timer; any contact,
// effect, or explicit force should call this.
func (b *RigidBody) WakeUp() {
	b.asleep = false
	b.sleepTimer = 0
}
