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

package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/collider"
	"github.com/replicore/engine/physics/vecmath"
)

func sphereAt(x float64) *collider.Collider {
	c := collider.New(collider.Sphere{Radius: 1}, collider.Material{}, nil)
	c.Position = vecmath.Vec3{X: x}
	c.RefreshCache()
	return c
}

func TestCastRaySortsHitsByAscendingDistance(t *testing.T) {
	near := sphereAt(5)
	far := sphereAt(10)
	candidates := []Candidate{{Collider: far}, {Collider: near}}

	var result ResultSet
	CastRay(Ray{Direction: vecmath.Vec3{X: 1}, MaxDistance: 20}, candidates, Filter{}, nil, &result)

	require.Len(t, result.Hits, 2)
	require.Equal(t, near, result.Hits[0].Collider)
	require.Equal(t, far, result.Hits[1].Collider)
	require.Less(t, result.Hits[0].Distance, result.Hits[1].Distance)
}

func TestCastRayRespectsMaxDistance(t *testing.T) {
	far := sphereAt(10)
	var result ResultSet
	CastRay(Ray{Direction: vecmath.Vec3{X: 1}, MaxDistance: 5}, []Candidate{{Collider: far}}, Filter{}, nil, &result)
	require.Empty(t, result.Hits)
}

func TestCastRayRespectsCapacity(t *testing.T) {
	candidates := []Candidate{{Collider: sphereAt(2)}, {Collider: sphereAt(4)}, {Collider: sphereAt(6)}}
	result := ResultSet{Capacity: 1}
	CastRay(Ray{Direction: vecmath.Vec3{X: 1}, MaxDistance: 20}, candidates, Filter{}, nil, &result)
	require.Len(t, result.Hits, 1)
}

func TestFilterMotionMaskExcludesNonMatchingBody(t *testing.T) {
	kinematicBody := &body.RigidBody{Motion: body.Kinematic}
	c := sphereAt(5)
	filter := Filter{Motion: MaskDynamic}
	require.False(t, filter.passes(c, kinematicBody, nil))
	require.True(t, Filter{Motion: MaskKinematic}.passes(c, kinematicBody, nil))
}

func TestFilterIgnoreOwnerIDExcludesMatchingOwner(t *testing.T) {
	c := sphereAt(5)
	filter := Filter{IgnoreOwnerID: 7}
	ownerID := func(*collider.Collider) uint64 { return 7 }
	require.False(t, filter.passes(c, nil, ownerID))
}

func TestCastFrustumSelectsIntersectingSpheresUnsorted(t *testing.T) {
	inside := sphereAt(0)
	outside := sphereAt(100)
	f := Frustum{Planes: []Plane{
		{Normal: vecmath.Vec3{X: 1}, Distance: 10},
		{Normal: vecmath.Vec3{X: -1}, Distance: 10},
	}}
	var result ResultSet
	CastFrustum(f, []Candidate{{Collider: inside}, {Collider: outside}}, Filter{}, nil, &result)
	require.Len(t, result.Hits, 1)
	require.Equal(t, inside, result.Hits[0].Collider)
}
