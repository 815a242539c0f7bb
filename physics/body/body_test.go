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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/physics/vecmath"
)

func TestVelocityIntegrationAppliesGravityToDynamicOnly(t *testing.T) {
	dyn := New()
	static := New()
	static.Motion = Static

	gravity := vecmath.Vec3{Y: -10}
	dyn.IntegrateVelocity(1, gravity)
	static.IntegrateVelocity(1, gravity)

	require.InDelta(t, -10, dyn.LinearVelocity.Y, 1e-9)
	require.Zero(t, static.LinearVelocity.Y)
}

func TestMaxVelocityClampsSpeed(t *testing.T) {
	b := New()
	b.MaxVelocity = 5
	b.LinearVelocity = vecmath.Vec3{X: 100}
	b.IntegrateVelocity(0, vecmath.Vec3{})
	require.InDelta(t, 5, b.LinearVelocity.Length(), 1e-9)
}

func TestSleepAfterTimeToSleepAndWakeResetsTimer(t *testing.T) {
	b := New()
	b.LinearVelocity = vecmath.Vec3{}
	b.AngularVelocity = vecmath.Vec3{}

	for i := 0; i < 9; i++ {
		require.False(t, b.UpdateSleepTimer(0.1))
	}
	require.True(t, b.UpdateSleepTimer(0.2))
	require.True(t, b.IsAsleep())

	b.WakeUp()
	require.False(t, b.IsAsleep())
	require.False(t, b.UpdateSleepTimer(0.1))
}

func TestMassCompositionOfTwoUnitCollidersSeparatedByD(t *testing.T) {
	b := New()
	b.Motion = Dynamic
	d := 2.0
	unitInertia := vecmath.Diag3(0.4, 0.4, 0.4) // solid unit sphere about its own center, for illustration

	contributions := []Contribution{
		{Mass: 1, LocalCenter: vecmath.Vec3{X: -d / 2}, LocalInertia: unitInertia},
		{Mass: 1, LocalCenter: vecmath.Vec3{X: d / 2}, LocalInertia: unitInertia},
	}
	b.ComposeMass(contributions, nil, vecmath.Vec3{})

	require.InDelta(t, 0.5, b.InverseMass, 1e-9) // mass == 2
	require.InDelta(t, 0, b.CenterOfMass.X, 1e-9)

	inertia, ok := vecmath.Inverse3(b.InverseInertia)
	require.True(t, ok)
	expectedYY := 2*0.4 + 2*(d/2)*(d/2)
	require.InDelta(t, expectedYY, inertia[1][1], 1e-6)
}

func TestMassOverrideReplacesComputedMassAndCenter(t *testing.T) {
	b := New()
	override := &Override{Mass: 10, HasCenter: true, Center: vecmath.Vec3{X: 1}}
	b.ComposeMass(nil, override, vecmath.Vec3{})
	require.InDelta(t, 0.1, b.InverseMass, 1e-9)
	require.Equal(t, vecmath.Vec3{X: 1}, b.CenterOfMass)
}

func TestKinematicVelocityDerivation(t *testing.T) {
	b := New()
	b.Motion = Kinematic
	b.Position = vecmath.Vec3{}
	b.DeriveKinematicVelocity(vecmath.Vec3{X: 2}, vecmath.IdentityQuat, 1)
	require.Equal(t, vecmath.Vec3{X: 2}, b.LinearVelocity)
	require.Equal(t, vecmath.Vec3{X: 2}, b.Position)
}
