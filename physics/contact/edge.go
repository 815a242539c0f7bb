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
	"golang.org/x/exp/maps"

	"github.com/replicore/engine/physics/collider"
	"github.com/replicore/engine/physics/vecmath"
)

// DefaultInternalEdgeCacheLimit bounds an InternalEdgeCache's entry count
// when the space doesn't configure one explicitly.
const DefaultInternalEdgeCacheLimit = 100000

type edgeKey struct {
	meshVersion uint64
	triangle    int
}

type edgeAdjacency struct {
	// neighborNormals holds one face normal per edge of the triangle
	// (edges AB, BC, CA in order), zero when that edge has no neighbor.
	neighborNormals [3]vecmath.Vec3
}

// InternalEdgeCache memoizes per-triangle neighbor face normals for
// mesh/heightmap colliders, keyed by mesh version so a re-authored mesh
// invalidates its own entries without a sweep. Bounded in size (oldest
// entries evicted first) since streamed or procedurally regenerated
// meshes would otherwise grow it without bound.
type InternalEdgeCache struct {
	limit   int
	order   []edgeKey
	entries map[edgeKey]edgeAdjacency
}

// NewInternalEdgeCache returns a cache bounded to limit entries, or
// DefaultInternalEdgeCacheLimit if limit is non-positive.
func NewInternalEdgeCache(limit int) *InternalEdgeCache {
	if limit <= 0 {
		limit = DefaultInternalEdgeCacheLimit
	}
	return &InternalEdgeCache{limit: limit, entries: make(map[edgeKey]edgeAdjacency)}
}

// Clear discards all cached adjacency entries.
func (c *InternalEdgeCache) Clear() {
	c.entries = make(map[edgeKey]edgeAdjacency)
	c.order = c.order[:0]
}

// Len reports the number of cached entries.
func (c *InternalEdgeCache) Len() int { return len(c.entries) }

// CachedMeshVersions returns the distinct mesh versions currently
// represented in the cache, for diagnostics.
func (c *InternalEdgeCache) CachedMeshVersions() []uint64 {
	seen := make(map[uint64]struct{})
	for _, key := range maps.Keys(c.entries) {
		seen[key.meshVersion] = struct{}{}
	}
	return maps.Keys(seen)
}

func (c *InternalEdgeCache) adjacency(mesh *collider.Mesh, triangleIdx int) edgeAdjacency {
	key := edgeKey{mesh.Version, triangleIdx}
	if a, ok := c.entries[key]; ok {
		return a
	}
	a := computeAdjacency(mesh, triangleIdx)
	c.insert(key, a)
	return a
}

func (c *InternalEdgeCache) insert(key edgeKey, a edgeAdjacency) {
	if len(c.order) >= c.limit && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = a
	c.order = append(c.order, key)
}

func computeAdjacency(mesh *collider.Mesh, triangleIdx int) edgeAdjacency {
	var out edgeAdjacency
	tri := mesh.Triangles[triangleIdx]
	edges := [3][2]int{{tri.A, tri.B}, {tri.B, tri.C}, {tri.C, tri.A}}
	for i, e := range edges {
		for j, other := range mesh.Triangles {
			if j == triangleIdx {
				continue
			}
			if sharesEdge(other, e) {
				out.neighborNormals[i] = faceNormal(mesh, other)
				break
			}
		}
	}
	return out
}

func sharesEdge(t collider.Triangle, e [2]int) bool {
	verts := [3]int{t.A, t.B, t.C}
	has := func(v int) bool { return verts[0] == v || verts[1] == v || verts[2] == v }
	return has(e[0]) && has(e[1])
}

func faceNormal(mesh *collider.Mesh, t collider.Triangle) vecmath.Vec3 {
	a, b, c := mesh.Vertices[t.A], mesh.Vertices[t.B], mesh.Vertices[t.C]
	return b.Sub(a).Cross(c.Sub(a)).Normalized()
}

// CorrectInternalEdge clamps normal to the contact triangle's own face
// normal when it points into the back half-space (disabled for meshes
// that allow back-face contacts), then prefers whichever of the
// triangle's neighbors is both more aligned with normal and non-concave
// relative to the face, approximating the specification's Voronoi-region
// clamp against the adjacent triangles' dihedral angles.
func CorrectInternalEdge(cache *InternalEdgeCache, mesh *collider.Mesh, triangleIdx int, normal vecmath.Vec3, allowBackfaces bool) vecmath.Vec3 {
	tri := mesh.Triangles[triangleIdx]
	faceN := faceNormal(mesh, tri)
	if !allowBackfaces && normal.Dot(faceN) < 0 {
		return faceN
	}
	adj := cache.adjacency(mesh, triangleIdx)
	best, bestDot := faceN, normal.Dot(faceN)
	zero := vecmath.Vec3{}
	for _, n := range adj.neighborNormals {
		if n == zero {
			continue
		}
		if d := normal.Dot(n); d > bestDot && n.Dot(faceN) >= 0 {
			best, bestDot = n, d
		}
	}
	return best.Normalized()
}
