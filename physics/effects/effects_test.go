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

package effects

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/vecmath"
)

func TestGravityScalesWithMass(t *testing.T) {
	b := body.New()
	b.InverseMass = 0.5 // mass == 2
	g := &Gravity{Acceleration: vecmath.Vec3{Y: -10}}
	g.Apply(b)
	b.IntegrateVelocity(1, vecmath.Vec3{})
	require.InDelta(t, -10, b.LinearVelocity.Y, 1e-9)
}

func TestPointEffectPullsTowardPosition(t *testing.T) {
	b := body.New()
	p := &PointEffect{Position: vecmath.Vec3{X: 10}, Strength: 5}
	p.Apply(b)
	b.IntegrateVelocity(1, vecmath.Vec3{})
	require.Greater(t, b.LinearVelocity.X, 0.0)
}

func TestPointEffectRespectsMaxDistance(t *testing.T) {
	b := body.New()
	p := &PointEffect{Position: vecmath.Vec3{X: 10}, Strength: 5, MaxDistance: 1}
	p.Apply(b)
	b.IntegrateVelocity(1, vecmath.Vec3{})
	require.Zero(t, b.LinearVelocity.X)
}

func TestGatherSkipsSpaceEffectsWhenIgnored(t *testing.T) {
	b := body.New()
	b.IgnoreSpaceEffects = true
	space := []Effect{&Force{WorldForce: vecmath.Vec3{X: 1}}}
	require.NoError(t, Gather(b, space, nil, nil, nil, nil))
	b.IntegrateVelocity(1, vecmath.Vec3{})
	require.Zero(t, b.LinearVelocity.X)
}

func TestGatherAppliesBodyAndColliderEffects(t *testing.T) {
	b := body.New()
	bodyEffects := []Effect{&Force{WorldForce: vecmath.Vec3{X: 1}}}
	colliderEffects := []Effect{&Force{WorldForce: vecmath.Vec3{X: 1}}}
	require.NoError(t, Gather(b, nil, nil, bodyEffects, colliderEffects, nil))
	b.IntegrateVelocity(1, vecmath.Vec3{})
	require.InDelta(t, 2, b.LinearVelocity.X, 1e-9)
}

func TestRegionActiveWithoutPredicate(t *testing.T) {
	r := &Region{}
	active, err := r.Active()
	require.NoError(t, err)
	require.True(t, active)
}

func TestRegionPredicateGatesEffects(t *testing.T) {
	r := &Region{
		Predicate: "strength > 0.5",
		Variables: map[string]interface{}{"strength": 0.2},
		Effects:   []Effect{&Force{WorldForce: vecmath.Vec3{X: 1}}},
	}
	require.NoError(t, r.Prepare())

	active, err := r.Active()
	require.NoError(t, err)
	require.False(t, active)

	b := body.New()
	require.NoError(t, Gather(b, nil, nil, nil, nil, []*Region{r}))
	b.IntegrateVelocity(1, vecmath.Vec3{})
	require.Zero(t, b.LinearVelocity.X)

	r.Variables["strength"] = 0.9
	active, err = r.Active()
	require.NoError(t, err)
	require.True(t, active)
}

func TestRegionPrepareRejectsInvalidPredicate(t *testing.T) {
	r := &Region{Predicate: "strength >"}
	require.Error(t, r.Prepare())
}
