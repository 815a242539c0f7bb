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

package body

import "github.com/replicore/engine/physics/vecmath"

// massContributionFloor/Ceiling skip numerically degenerate collider
// contributions (near-zero or absurdly large mass) to avoid inertia
// blowup, per the specification's mass-composition rule.
const (
	massContributionFloor   = 1e-6
	massContributionCeiling = 1e7
)

// Contribution is one collider's mass properties in the owning body's
// local frame, gathered by walking the body's direct colliders plus those
// reachable through static/kinematic descendant bodies.
type Contribution struct {
	Mass           float64
	LocalCenter    vecmath.Vec3
	LocalInertia   vecmath.Mat3 // about this collider's own local center
}

// Override replaces computed mass and, optionally, center of mass — the
// specification's MassOverride component.
type Override struct {
	Mass          float64
	HasCenter     bool
	Center        vecmath.Vec3
}

// ComposeMass combines contributions into total mass, local center of
// mass, and local inverse inertia tensor via the parallel-axis theorem,
// then applies body to the result. fallbackCenter is used when there are
// no contributions (the body's own translation, by the specification).
func (b *RigidBody) ComposeMass(contributions []Contribution, override *Override, fallbackCenter vecmath.Vec3) {
	if override != nil && override.Mass > 0 {
		b.InverseMass = 1 / override.Mass
		if override.HasCenter {
			b.CenterOfMass = override.Center
		} else {
			b.CenterOfMass = composeCenter(contributions, fallbackCenter)
		}
		b.InverseInertia = invertOrZero(composeInertia(contributions, b.CenterOfMass))
		b.applyLocks()
		return
	}

	totalMass := 0.0
	for _, c := range contributions {
		if c.Mass < massContributionFloor || c.Mass > massContributionCeiling {
			continue
		}
		totalMass += c.Mass
	}
	center := composeCenter(contributions, fallbackCenter)
	inertia := composeInertia(contributions, center)

	if totalMass <= 0 || b.Motion != Dynamic {
		b.InverseMass = 0
	} else {
		b.InverseMass = 1 / totalMass
	}
	b.CenterOfMass = center
	b.InverseInertia = invertOrZero(inertia)
	b.applyLocks()
}

func (b *RigidBody) applyLocks() {
	if b.RotationLocked || b.Motion != Dynamic {
		b.InverseInertia = vecmath.Mat3{}
		return
	}
	if b.Lock2D {
		b.InverseInertia[0][2] = 0
		b.InverseInertia[1][2] = 0
		b.InverseInertia[2][0] = 0
		b.InverseInertia[2][1] = 0
	}
}

func composeCenter(contributions []Contribution, fallback vecmath.Vec3) vecmath.Vec3 {
	totalMass := 0.0
	weighted := vecmath.Vec3{}
	for _, c := range contributions {
		if c.Mass < massContributionFloor || c.Mass > massContributionCeiling {
			continue
		}
		weighted = weighted.Add(c.LocalCenter.Scale(c.Mass))
		totalMass += c.Mass
	}
	if totalMass <= 0 {
		return fallback
	}
	return weighted.Scale(1 / totalMass)
}

// composeInertia applies the parallel-axis theorem to move each
// contribution's inertia about its own center to the shared center.
func composeInertia(contributions []Contribution, center vecmath.Vec3) vecmath.Mat3 {
	var total vecmath.Mat3
	for _, c := range contributions {
		if c.Mass < massContributionFloor || c.Mass > massContributionCeiling {
			continue
		}
		offset := c.LocalCenter.Sub(center)
		d2 := offset.LengthSq()
		parallel := vecmath.Diag3(d2, d2, d2).Sub(outerProduct(offset, offset))
		contribution := c.LocalInertia.Add(parallel.Scale(c.Mass))
		total = total.Add(contribution)
	}
	return total
}

func outerProduct(a, b vecmath.Vec3) vecmath.Mat3 {
	return vecmath.Mat3{
		{a.X * b.X, a.X * b.Y, a.X * b.Z},
		{a.Y * b.X, a.Y * b.Y, a.Y * b.Z},
		{a.Z * b.X, a.Z * b.Y, a.Z * b.Z},
	}
}

func invertOrZero(m vecmath.Mat3) vecmath.Mat3 {
	inv, ok := vecmath.Inverse3(m)
	if !ok {
		return vecmath.Mat3{}
	}
	return inv
}
