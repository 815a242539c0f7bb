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

// Package constraint implements the sequential-impulse joint solver: warm
// starting, velocity iterations, and a position-correction pass bounded by
// per-joint error-correction limits and a slop tolerance.
package constraint

import (
	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/vecmath"
)

// CorrectionMethod selects how SolvePosition closes remaining joint error.
type CorrectionMethod uint8

const (
	PseudoVelocity CorrectionMethod = iota
	NonlinearGaussSeidel
)

// JointConfig bounds one joint's error correction.
type JointConfig struct {
	LinearErrorCorrection  float64
	AngularErrorCorrection float64
	SlopTolerance          float64
	VelocityIterations     int
}

// DefaultJointConfig is used by any joint whose JointConfigOverride leaves
// a field unset.
var DefaultJointConfig = JointConfig{
	LinearErrorCorrection:  0.2,
	AngularErrorCorrection: 0.2,
	SlopTolerance:          0.005,
	VelocityIterations:     8,
}

// JointConfigOverride lets one joint replace a subset of
// DefaultJointConfig's fields.
type JointConfigOverride struct {
	LinearErrorCorrection  *float64
	AngularErrorCorrection *float64
	SlopTolerance          *float64
	VelocityIterations     *int
}

// Resolve merges the override onto DefaultJointConfig.
func (o JointConfigOverride) Resolve() JointConfig {
	cfg := DefaultJointConfig
	if o.LinearErrorCorrection != nil {
		cfg.LinearErrorCorrection = *o.LinearErrorCorrection
	}
	if o.AngularErrorCorrection != nil {
		cfg.AngularErrorCorrection = *o.AngularErrorCorrection
	}
	if o.SlopTolerance != nil {
		cfg.SlopTolerance = *o.SlopTolerance
	}
	if o.VelocityIterations != nil {
		cfg.VelocityIterations = *o.VelocityIterations
	}
	return cfg
}

// Joint is one constraint the solver iterates.
type Joint interface {
	WarmStart()
	SolveVelocity()
	// SolvePosition returns the remaining (pre-correction) position error,
	// for convergence diagnostics.
	SolvePosition(method CorrectionMethod) float64
	VelocityIterations() int
}

// WeldJoint rigidly holds two anchor points together, eliminating both
// relative translation and (via the angular term) relative rotation. A nil
// body is treated as a fixed world anchor.
type WeldJoint struct {
	BodyA, BodyB               *body.RigidBody
	LocalAnchorA, LocalAnchorB vecmath.Vec3
	Config                     JointConfig

	linearImpulse  vecmath.Vec3
	angularImpulse vecmath.Vec3
}

// NewWeldJoint builds a weld joint between a and b's local anchor points.
func NewWeldJoint(a, b *body.RigidBody, localAnchorA, localAnchorB vecmath.Vec3, override JointConfigOverride) *WeldJoint {
	return &WeldJoint{BodyA: a, BodyB: b, LocalAnchorA: localAnchorA, LocalAnchorB: localAnchorB, Config: override.Resolve()}
}

func (j *WeldJoint) anchorWorld(b *body.RigidBody, local vecmath.Vec3) vecmath.Vec3 {
	if b == nil {
		return local
	}
	return b.WorldCenterOfMass().Add(b.Rotation.RotateVec3(local))
}

func pointVelocity(b *body.RigidBody, point vecmath.Vec3) vecmath.Vec3 {
	if b == nil {
		return vecmath.Vec3{}
	}
	r := point.Sub(b.WorldCenterOfMass())
	return b.LinearVelocity.Add(b.AngularVelocity.Cross(r))
}

func invMassOf(b *body.RigidBody) float64 {
	if b == nil {
		return 0
	}
	return b.InverseMass
}

func angularVelocityOf(b *body.RigidBody) vecmath.Vec3 {
	if b == nil {
		return vecmath.Vec3{}
	}
	return b.AngularVelocity
}

// WarmStart reapplies the impulses accumulated over the previous tick's
// iterations before this tick's velocity solve begins.
func (j *WeldJoint) WarmStart() {
	pa := j.anchorWorld(j.BodyA, j.LocalAnchorA)
	pb := j.anchorWorld(j.BodyB, j.LocalAnchorB)
	if j.BodyA != nil {
		j.BodyA.ApplyImpulse(j.linearImpulse.Neg(), pa)
	}
	if j.BodyB != nil {
		j.BodyB.ApplyImpulse(j.linearImpulse, pb)
	}
}

// SolveVelocity runs one sequential-impulse iteration holding the anchor
// points' linear velocities together and damping relative angular velocity.
func (j *WeldJoint) SolveVelocity() {
	pa := j.anchorWorld(j.BodyA, j.LocalAnchorA)
	pb := j.anchorWorld(j.BodyB, j.LocalAnchorB)

	invMassSum := invMassOf(j.BodyA) + invMassOf(j.BodyB)
	if invMassSum > 0 {
		relVel := pointVelocity(j.BodyB, pb).Sub(pointVelocity(j.BodyA, pa))
		impulse := relVel.Scale(-1 / invMassSum)
		j.linearImpulse = j.linearImpulse.Add(impulse)
		if j.BodyA != nil {
			j.BodyA.ApplyImpulse(impulse.Neg(), pa)
		}
		if j.BodyB != nil {
			j.BodyB.ApplyImpulse(impulse, pb)
		}
	}

	relAngular := angularVelocityOf(j.BodyB).Sub(angularVelocityOf(j.BodyA))
	if relAngular.LengthSq() > 0 {
		correction := relAngular.Scale(-j.Config.AngularErrorCorrection)
		j.angularImpulse = j.angularImpulse.Add(correction)
		if j.BodyA != nil {
			j.BodyA.AngularVelocity = j.BodyA.AngularVelocity.Sub(correction)
		}
		if j.BodyB != nil {
			j.BodyB.AngularVelocity = j.BodyB.AngularVelocity.Add(correction)
		}
	}
}

// SolvePosition nudges BodyA/BodyB directly (NonlinearGaussSeidel) or via a
// one-shot impulse (PseudoVelocity) to close remaining anchor-point error
// beyond the joint's slop tolerance, scaled by its linear error-correction
// factor. Returns the pre-correction error length.
func (j *WeldJoint) SolvePosition(method CorrectionMethod) float64 {
	pa := j.anchorWorld(j.BodyA, j.LocalAnchorA)
	pb := j.anchorWorld(j.BodyB, j.LocalAnchorB)
	errVec := pb.Sub(pa)
	errLen := errVec.Length()
	if errLen <= j.Config.SlopTolerance {
		return errLen
	}

	invMassSum := invMassOf(j.BodyA) + invMassOf(j.BodyB)
	if invMassSum <= 0 {
		return errLen
	}
	magnitude := j.Config.LinearErrorCorrection * (errLen - j.Config.SlopTolerance) / errLen
	correction := errVec.Scale(magnitude)

	switch method {
	case NonlinearGaussSeidel:
		if j.BodyA != nil && j.BodyA.InverseMass > 0 {
			j.BodyA.Position = j.BodyA.Position.Add(correction.Scale(invMassOf(j.BodyA) / invMassSum))
		}
		if j.BodyB != nil && j.BodyB.InverseMass > 0 {
			j.BodyB.Position = j.BodyB.Position.Sub(correction.Scale(invMassOf(j.BodyB) / invMassSum))
		}
	default: // PseudoVelocity
		impulse := correction.Scale(1 / invMassSum)
		if j.BodyA != nil {
			j.BodyA.ApplyImpulse(impulse, pa)
		}
		if j.BodyB != nil {
			j.BodyB.ApplyImpulse(impulse.Neg(), pb)
		}
	}
	return errLen
}

// VelocityIterations reports this joint's configured velocity iteration
// count.
func (j *WeldJoint) VelocityIterations() int { return j.Config.VelocityIterations }

// Solver runs warm-start, velocity iterations, then position correction
// across a set of joints each tick.
type Solver struct {
	Joints []Joint
}

// Solve runs one full constraint-solve pass.
func (s *Solver) Solve(method CorrectionMethod) {
	for _, j := range s.Joints {
		j.WarmStart()
	}
	maxIter := 0
	for _, j := range s.Joints {
		if n := j.VelocityIterations(); n > maxIter {
			maxIter = n
		}
	}
	for i := 0; i < maxIter; i++ {
		for _, j := range s.Joints {
			j.SolveVelocity()
		}
	}
	for _, j := range s.Joints {
		j.SolvePosition(method)
	}
}
