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

package collider

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/physics/vecmath"
)

func TestSphereVolumeAndInertia(t *testing.T) {
	s := Sphere{Radius: 1}
	require.InDelta(t, 4.18879, s.Volume(), 1e-4)
	require.InDelta(t, 1.67552, s.UnitDensityInertia()[0][0], 1e-4)
	require.True(t, s.Valid())
}

func TestMeshWithDanglingIndexIsInvalid(t *testing.T) {
	m := NewMesh(
		[]vecmath.Vec3{{}, {X: 1}, {Y: 1}},
		[]Triangle{{A: 0, B: 1, C: 5}}, // index 5 is dangling
	)
	require.False(t, m.Valid())
	require.Equal(t, 1.0, m.Volume())
	require.Equal(t, vecmath.Identity3, m.UnitDensityInertia())
}

func TestMeshBecomesInvalidAfterMutationAndInvalidate(t *testing.T) {
	m := NewMesh(
		[]vecmath.Vec3{{}, {X: 1}, {Y: 1}},
		[]Triangle{{A: 0, B: 1, C: 2}},
	)
	require.True(t, m.Valid())

	m.Triangles[0].C = 99
	m.Invalidate()
	require.False(t, m.Valid())
}

func TestHeightMapValidityRequiresMatchingSampleCount(t *testing.T) {
	h := &HeightMap{Width: 2, Depth: 2, Heights: []float64{1, 2, 3}}
	require.False(t, h.Valid())
	h.Heights = append(h.Heights, 4)
	require.True(t, h.Valid())
}

func TestAABBOverlapsDetectsPairOverlap(t *testing.T) {
	a := New(Sphere{Radius: 1}, Material{}, nil)
	b := New(Sphere{Radius: 1}, Material{}, nil)
	b.Position = vecmath.Vec3{X: 1.5}
	b.RefreshCache()

	require.True(t, a.AABBOverlaps(b))

	b.Position = vecmath.Vec3{X: 5}
	b.RefreshCache()
	require.False(t, a.AABBOverlaps(b))
}

func TestCombineMaterialAverages(t *testing.T) {
	m := Combine(Material{Restitution: 1, Friction: 0.2}, Material{Restitution: 0, Friction: 0.8})
	require.InDelta(t, 0.5, m.Restitution, 1e-9)
	require.InDelta(t, 0.5, m.Friction, 1e-9)
}
