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

package contact

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/physics/collider"
	"github.com/replicore/engine/physics/vecmath"
)

func makeSpherePair(separation float64) (*collider.Collider, *collider.Collider) {
	a := collider.New(collider.Sphere{Radius: 1}, collider.Material{}, nil)
	b := collider.New(collider.Sphere{Radius: 1}, collider.Material{}, nil)
	b.Position = vecmath.Vec3{X: separation}
	b.RefreshCache()
	return a, b
}

func TestGenerateSphereSphereOverlap(t *testing.T) {
	a, b := makeSpherePair(1.5)
	points, ok := Generate(a, b)
	require.True(t, ok)
	require.Len(t, points, 1)
	require.InDelta(t, 0.5, points[0].Penetration, 1e-9)
	require.Equal(t, vecmath.Vec3{X: 1}, points[0].Normal)
}

func TestGenerateSphereSphereNoOverlap(t *testing.T) {
	a, b := makeSpherePair(3)
	_, ok := Generate(a, b)
	require.False(t, ok)
}

func TestNormalPolicyReplacesPoints(t *testing.T) {
	m := New(nil, nil, NormalPolicy)
	m.Insert([]ContactPoint{{WorldA: vecmath.Vec3{X: 1}, Penetration: 0.1}})
	require.Len(t, m.Points, 1)
	m.Insert([]ContactPoint{{WorldA: vecmath.Vec3{X: 2}, Penetration: 0.2}})
	require.Len(t, m.Points, 1)
	require.InDelta(t, 0.2, m.Points[0].Penetration, 1e-9)
}

func TestFullPolicyPreservesImpulsesOnMatch(t *testing.T) {
	m := New(nil, nil, FullPolicy)
	m.Insert([]ContactPoint{{WorldA: vecmath.Vec3{X: 1}, Penetration: 0.1, AccumNormalImpulse: 5}})
	m.Insert([]ContactPoint{{WorldA: vecmath.Vec3{X: 1.001}, Penetration: 0.11}})
	require.Len(t, m.Points, 1)
	require.InDelta(t, 5, m.Points[0].AccumNormalImpulse, 1e-9)
}

func TestFullPolicyDiscardsUnmatchedCachedPoints(t *testing.T) {
	m := New(nil, nil, FullPolicy)
	m.Insert([]ContactPoint{{WorldA: vecmath.Vec3{X: 1}, Penetration: 0.1}})
	m.Insert([]ContactPoint{{WorldA: vecmath.Vec3{X: 50}, Penetration: 0.1}})
	require.Len(t, m.Points, 1)
	require.Equal(t, vecmath.Vec3{X: 50}, m.Points[0].WorldA)
}

func TestApply2DCorrectionDropsShallowNormalsAndInvalidatesManifold(t *testing.T) {
	m := New(nil, nil, NormalPolicy)
	m.Points = []ContactPoint{{Normal: vecmath.Vec3{X: 0.01, Z: 0.999}}}
	m.Apply2DCorrection()
	require.False(t, m.Valid())
}

func TestApply2DCorrectionZeroesZAndKeepsStrongNormals(t *testing.T) {
	m := New(nil, nil, NormalPolicy)
	m.Points = []ContactPoint{{Normal: vecmath.Vec3{X: 1, Z: 0.5}}}
	m.Apply2DCorrection()
	require.True(t, m.Valid())
	require.Zero(t, m.Points[0].Normal.Z)
}

func TestInternalEdgeCacheEvictsOldestBeyondLimit(t *testing.T) {
	mesh := collider.NewMesh(
		[]vecmath.Vec3{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}},
		[]collider.Triangle{{A: 0, B: 1, C: 2}, {A: 1, B: 3, C: 2}},
	)
	cache := NewInternalEdgeCache(1)
	cache.adjacency(mesh, 0)
	require.Equal(t, 1, cache.Len())
	cache.adjacency(mesh, 1)
	require.Equal(t, 1, cache.Len())
}

func TestCorrectInternalEdgeClampsBackfacingNormalToFace(t *testing.T) {
	mesh := collider.NewMesh(
		[]vecmath.Vec3{{}, {X: 1}, {Y: 1}},
		[]collider.Triangle{{A: 0, B: 1, C: 2}},
	)
	cache := NewInternalEdgeCache(0)
	faceN := faceNormal(mesh, mesh.Triangles[0])
	backfacing := faceN.Neg()
	corrected := CorrectInternalEdge(cache, mesh, 0, backfacing, false)
	require.True(t, corrected.ApproxEqual(faceN, 1e-9))
}
