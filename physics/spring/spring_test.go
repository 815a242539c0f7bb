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

package spring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/physics/effects"
	"github.com/replicore/engine/physics/vecmath"
)

func twoPointEdgeSystem(restLength float64) *System {
	return &System{
		Points: []Point{
			{InverseMass: 1},
			{Position: vecmath.Vec3{X: restLength * 2}, InverseMass: 1},
		},
		Edges: []Edge{{A: 0, B: 1, RestLength: restLength, Stiffness: 1}},
	}
}

func TestRelaxPassPullsStretchedEdgeTowardRestLength(t *testing.T) {
	s := twoPointEdgeSystem(1)
	for i := 0; i < 20; i++ {
		s.RelaxPass(0.5)
	}
	dist := s.Points[1].Position.Sub(s.Points[0].Position).Length()
	require.InDelta(t, 1, dist, 1e-3)
}

func TestAnchoredPointIsImmuneToRelaxation(t *testing.T) {
	anchor := &Anchor{WorldPosition: vecmath.Vec3{X: 5}}
	s := &System{
		Points: []Point{
			{Anchor: anchor},
			{Position: vecmath.Vec3{X: 100}, InverseMass: 1},
		},
		Edges: []Edge{{A: 0, B: 1, RestLength: 1, Stiffness: 1}},
	}
	s.IntegratePositions(0.016)
	s.RelaxPass(1)
	require.Equal(t, vecmath.Vec3{X: 5}, s.Points[0].Position)
}

func TestApplyEffectsAccumulatesGravityIntoNonAnchoredPointVelocity(t *testing.T) {
	s := &System{
		Points:  []Point{{InverseMass: 1}},
		Effects: []effects.Effect{&effects.Gravity{Acceleration: vecmath.Vec3{Y: -10}}},
	}
	s.ApplyEffects(0.1)
	require.InDelta(t, -1, s.Points[0].Velocity.Y, 1e-9)
}

func TestApplyEffectsSkipsAnchoredPoints(t *testing.T) {
	s := &System{
		Points:  []Point{{Anchor: &Anchor{}, InverseMass: 1}},
		Effects: []effects.Effect{&effects.Gravity{Acceleration: vecmath.Vec3{Y: -10}}},
	}
	s.ApplyEffects(0.1)
	require.Equal(t, vecmath.Vec3{}, s.Points[0].Velocity)
}

func TestConnectRegistersBookkeepingOnBothSystems(t *testing.T) {
	a := &System{Points: []Point{{InverseMass: 1}}}
	b := &System{Points: []Point{{InverseMass: 1}}}
	c := Connect(a, b, 0, 0, 1, 1)
	require.Contains(t, a.OwnedConnections, c)
	require.Contains(t, b.ConnectedFrom, c)
}

func TestSortByAnchorDistanceOrdersEdgesByHopCount(t *testing.T) {
	s := &System{
		Points: []Point{
			{Anchor: &Anchor{}},
			{InverseMass: 1},
			{InverseMass: 1},
		},
		Edges: []Edge{
			{A: 1, B: 2, RestLength: 1, Stiffness: 1},
			{A: 0, B: 1, RestLength: 1, Stiffness: 1},
		},
	}
	s.SortByAnchorDistance(true)
	require.Equal(t, 1, s.edgeOrder()[0])
	require.Equal(t, 0, s.edgeOrder()[1])
}

func TestRunTickIntegratesRelaxesAndDerivesVelocity(t *testing.T) {
	s := twoPointEdgeSystem(1)
	s.Points[1].Position = vecmath.Vec3{X: 3}
	RunTick([]*System{s}, 1.0/60, 8, 0.5)
	dist := s.Points[1].Position.Sub(s.Points[0].Position).Length()
	require.Less(t, dist, 3.0)
}
