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
	"math"

	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/collider"
	"github.com/replicore/engine/physics/contact"
	"github.com/replicore/engine/physics/vecmath"
)

// ContactConstraint adapts a contact manifold's points into the same
// warm-start/velocity/position Joint contract weld joints satisfy, so
// Solver resolves contacts and joints together in one pass per the
// specification's combined sequential-impulse solve.
type ContactConstraint struct {
	BodyA, BodyB *body.RigidBody
	Manifold     *contact.Manifold
	Restitution  float64
	Friction     float64
	Config       JointConfig

	restitutionBias []float64 // per point, taken before the first velocity iteration
}

// NewContactConstraint builds a constraint over m's current points.
func NewContactConstraint(a, b *body.RigidBody, m *contact.Manifold, mat collider.Material, override JointConfigOverride) *ContactConstraint {
	return &ContactConstraint{BodyA: a, BodyB: b, Manifold: m, Restitution: mat.Restitution, Friction: mat.Friction, Config: override.Resolve()}
}

func velocityAt(b *body.RigidBody, point vecmath.Vec3) vecmath.Vec3 {
	if b == nil {
		return vecmath.Vec3{}
	}
	r := point.Sub(b.WorldCenterOfMass())
	return b.LinearVelocity.Add(b.AngularVelocity.Cross(r))
}

// effectiveInverseMass returns the scalar effective inverse mass along
// direction dir for an impulse applied at world point p on body b.
func effectiveInverseMass(b *body.RigidBody, p vecmath.Vec3, dir vecmath.Vec3) float64 {
	if b == nil {
		return 0
	}
	r := p.Sub(b.WorldCenterOfMass())
	angularTerm := r.Cross(dir)
	angularTerm = b.WorldInverseInertia().MulVec3(angularTerm)
	return b.InverseMass + r.Cross(dir).Dot(angularTerm)
}

func applyImpulseAt(b *body.RigidBody, impulse vecmath.Vec3, p vecmath.Vec3) {
	if b != nil {
		b.ApplyImpulse(impulse, p)
	}
}

// tangentBasis returns two vectors orthogonal to normal and each other,
// spanning the contact's friction plane.
func tangentBasis(normal vecmath.Vec3) (vecmath.Vec3, vecmath.Vec3) {
	ref := vecmath.Vec3{X: 1}
	if math.Abs(normal.X) > 0.9 {
		ref = vecmath.Vec3{Y: 1}
	}
	t1 := ref.Sub(normal.Scale(ref.Dot(normal))).Normalized()
	t2 := normal.Cross(t1)
	return t1, t2
}

// WarmStart reapplies each point's previously accumulated normal and
// friction impulses.
func (c *ContactConstraint) WarmStart() {
	for i := range c.Manifold.Points {
		p := &c.Manifold.Points[i]
		t1, t2 := tangentBasis(p.Normal)
		impulse := p.Normal.Scale(p.AccumNormalImpulse).
			Add(t1.Scale(p.AccumFrictionImpulse[0])).
			Add(t2.Scale(p.AccumFrictionImpulse[1]))
		applyImpulseAt(c.BodyA, impulse.Neg(), p.WorldA)
		applyImpulseAt(c.BodyB, impulse, p.WorldB)
	}
}

// SolveVelocity runs one sequential-impulse iteration: a restitution-
// biased normal impulse clamped to non-negative accumulation, then
// Coulomb friction clamped to Friction times the accumulated normal
// impulse.
func (c *ContactConstraint) SolveVelocity() {
	if c.restitutionBias == nil {
		c.restitutionBias = make([]float64, len(c.Manifold.Points))
		for i, p := range c.Manifold.Points {
			if vn := velocityAt(c.BodyB, p.WorldB).Sub(velocityAt(c.BodyA, p.WorldA)).Dot(p.Normal); vn < -1e-3 {
				c.restitutionBias[i] = -c.Restitution * vn
			}
		}
	}
	for i := range c.Manifold.Points {
		p := &c.Manifold.Points[i]

		relVel := velocityAt(c.BodyB, p.WorldB).Sub(velocityAt(c.BodyA, p.WorldA))
		vn := relVel.Dot(p.Normal)
		invMassSum := effectiveInverseMass(c.BodyA, p.WorldA, p.Normal) + effectiveInverseMass(c.BodyB, p.WorldB, p.Normal)
		if invMassSum <= 0 {
			continue
		}
		bias := c.restitutionBias[i]
		lambda := -(vn - bias) / invMassSum
		newAccum := math.Max(p.AccumNormalImpulse+lambda, 0)
		delta := newAccum - p.AccumNormalImpulse
		p.AccumNormalImpulse = newAccum
		normalImpulse := p.Normal.Scale(delta)
		applyImpulseAt(c.BodyA, normalImpulse.Neg(), p.WorldA)
		applyImpulseAt(c.BodyB, normalImpulse, p.WorldB)

		if c.Friction <= 0 {
			continue
		}
		t1, t2 := tangentBasis(p.Normal)
		maxFriction := c.Friction * p.AccumNormalImpulse
		for axis, tangent := range [2]vecmath.Vec3{t1, t2} {
			relVel = velocityAt(c.BodyB, p.WorldB).Sub(velocityAt(c.BodyA, p.WorldA))
			vt := relVel.Dot(tangent)
			invMassT := effectiveInverseMass(c.BodyA, p.WorldA, tangent) + effectiveInverseMass(c.BodyB, p.WorldB, tangent)
			if invMassT <= 0 {
				continue
			}
			lambdaT := -vt / invMassT
			newAccumT := vecmath.Clamp(p.AccumFrictionImpulse[axis]+lambdaT, -maxFriction, maxFriction)
			deltaT := newAccumT - p.AccumFrictionImpulse[axis]
			p.AccumFrictionImpulse[axis] = newAccumT
			frictionImpulse := tangent.Scale(deltaT)
			applyImpulseAt(c.BodyA, frictionImpulse.Neg(), p.WorldA)
			applyImpulseAt(c.BodyB, frictionImpulse, p.WorldB)
		}
	}
}

// SolvePosition pushes the two bodies apart along each point's normal to
// close penetration beyond the slop tolerance, the position-correction
// pass run after the velocity solve. Returns the largest remaining
// penetration across the manifold's points.
func (c *ContactConstraint) SolvePosition(method CorrectionMethod) float64 {
	var maxPenetration float64
	for i := range c.Manifold.Points {
		p := &c.Manifold.Points[i]
		if p.Penetration > maxPenetration {
			maxPenetration = p.Penetration
		}
		correction := p.Penetration - c.Config.SlopTolerance
		if correction <= 0 {
			continue
		}
		invMassSum := effectiveInverseMass(c.BodyA, p.WorldA, p.Normal) + effectiveInverseMass(c.BodyB, p.WorldB, p.Normal)
		if invMassSum <= 0 {
			continue
		}
		magnitude := c.Config.LinearErrorCorrection * correction / invMassSum
		switch method {
		case NonlinearGaussSeidel:
			if c.BodyA != nil && c.BodyA.InverseMass > 0 {
				c.BodyA.Position = c.BodyA.Position.Sub(p.Normal.Scale(magnitude * c.BodyA.InverseMass))
			}
			if c.BodyB != nil && c.BodyB.InverseMass > 0 {
				c.BodyB.Position = c.BodyB.Position.Add(p.Normal.Scale(magnitude * c.BodyB.InverseMass))
			}
		default: // PseudoVelocity
			impulse := p.Normal.Scale(magnitude)
			applyImpulseAt(c.BodyA, impulse.Neg(), p.WorldA)
			applyImpulseAt(c.BodyB, impulse, p.WorldB)
		}
	}
	return maxPenetration
}

// VelocityIterations implements Joint.
func (c *ContactConstraint) VelocityIterations() int { return c.Config.VelocityIterations }
