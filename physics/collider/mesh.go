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
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/replicore/engine/physics/vecmath"
)

// Triangle is one face of a mesh, by vertex index.
type Triangle struct{ A, B, C int }

// Mesh is a reference-counted, versioned triangle soup shape. A mesh with
// dangling indices marks itself invalid: Volume/UnitDensityInertia/
// LocalCenter return defaults (unit volume, identity inertia, zero
// center) and the collider owning it is skipped for contact generation,
// matching the specification's invalid-geometry handling.
type Mesh struct {
	Vertices  []vecmath.Vec3
	Triangles []Triangle
	Version   uint64

	valid    bool
	validSet bool
}

// NewMesh validates indices up front and logs a warning once if any
// triangle references an out-of-range vertex.
func NewMesh(vertices []vecmath.Vec3, triangles []Triangle) *Mesh {
	m := &Mesh{Vertices: vertices, Triangles: triangles}
	m.checkValid()
	return m
}

func (m *Mesh) checkValid() {
	m.valid = true
	for _, t := range m.Triangles {
		if t.A < 0 || t.A >= len(m.Vertices) || t.B < 0 || t.B >= len(m.Vertices) || t.C < 0 || t.C >= len(m.Vertices) {
			m.valid = false
			break
		}
	}
	if !m.valid && !m.validSet {
		log.Warn("collider: mesh has dangling triangle indices; marking invalid")
	}
	m.validSet = true
}

// Invalidate must be called whenever Vertices/Triangles changes, bumping
// Version and re-checking validity so cached volumes/AABBs/inertia are
// re-derived before the next tick.
func (m *Mesh) Invalidate() {
	m.Version++
	m.checkValid()
}

func (m *Mesh) Valid() bool { return m.valid }

func (m *Mesh) Volume() float64 {
	if !m.valid {
		return 1
	}
	var vol float64
	for _, t := range m.Triangles {
		a, b, c := m.Vertices[t.A], m.Vertices[t.B], m.Vertices[t.C]
		vol += a.Dot(b.Cross(c)) / 6
	}
	if vol < 0 {
		vol = -vol
	}
	return vol
}

func (m *Mesh) UnitDensityInertia() vecmath.Mat3 {
	if !m.valid {
		return vecmath.Identity3
	}
	// Approximate as a uniform solid bounded by the AABB at this mesh's
	// volume; exact polyhedral inertia is out of scope for this core.
	lo, hi := m.LocalAABB()
	extents := hi.Sub(lo)
	box := Box{HalfExtents: extents.Scale(0.5)}
	return box.UnitDensityInertia()
}

func (m *Mesh) LocalCenter() vecmath.Vec3 {
	if !m.valid || len(m.Vertices) == 0 {
		return vecmath.Vec3{}
	}
	var sum vecmath.Vec3
	for _, v := range m.Vertices {
		sum = sum.Add(v)
	}
	return sum.Scale(1 / float64(len(m.Vertices)))
}

func (m *Mesh) LocalAABB() (vecmath.Vec3, vecmath.Vec3) {
	if !m.valid || len(m.Vertices) == 0 {
		return vecmath.Vec3{}, vecmath.Vec3{}
	}
	min, max := m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		min = vecmath.Vec3{X: minf(min.X, v.X), Y: minf(min.Y, v.Y), Z: minf(min.Z, v.Z)}
		max = vecmath.Vec3{X: maxf(max.X, v.X), Y: maxf(max.Y, v.Y), Z: maxf(max.Z, v.Z)}
	}
	return min, max
}

func (m *Mesh) BoundingRadius() float64 {
	lo, hi := m.LocalAABB()
	return hi.Sub(lo).Length() / 2
}

// ConvexMesh is a single convex hull, represented the same way as Mesh
// but assumed (by the caller, at construction) to already be convex.
type ConvexMesh struct{ *Mesh }

// MultiConvexMesh aggregates several convex hulls sharing one local frame,
// e.g. for a compound collider authored as several convex pieces.
type MultiConvexMesh struct {
	Parts []ConvexMesh
}

func (m MultiConvexMesh) Valid() bool {
	for _, p := range m.Parts {
		if !p.Valid() {
			return false
		}
	}
	return len(m.Parts) > 0
}

func (m MultiConvexMesh) Volume() float64 {
	if !m.Valid() {
		return 1
	}
	var v float64
	for _, p := range m.Parts {
		v += p.Volume()
	}
	return v
}

func (m MultiConvexMesh) UnitDensityInertia() vecmath.Mat3 {
	if !m.Valid() {
		return vecmath.Identity3
	}
	var total vecmath.Mat3
	for _, p := range m.Parts {
		total = total.Add(p.UnitDensityInertia())
	}
	return total
}

func (m MultiConvexMesh) LocalCenter() vecmath.Vec3 {
	if !m.Valid() {
		return vecmath.Vec3{}
	}
	var sum vecmath.Vec3
	totalVolume := 0.0
	for _, p := range m.Parts {
		v := p.Volume()
		sum = sum.Add(p.LocalCenter().Scale(v))
		totalVolume += v
	}
	if totalVolume <= 0 {
		return vecmath.Vec3{}
	}
	return sum.Scale(1 / totalVolume)
}

func (m MultiConvexMesh) LocalAABB() (vecmath.Vec3, vecmath.Vec3) {
	if len(m.Parts) == 0 {
		return vecmath.Vec3{}, vecmath.Vec3{}
	}
	min, max := m.Parts[0].LocalAABB()
	for _, p := range m.Parts[1:] {
		lo, hi := p.LocalAABB()
		min = vecmath.Vec3{X: minf(min.X, lo.X), Y: minf(min.Y, lo.Y), Z: minf(min.Z, lo.Z)}
		max = vecmath.Vec3{X: maxf(max.X, hi.X), Y: maxf(max.Y, hi.Y), Z: maxf(max.Z, hi.Z)}
	}
	return min, max
}

func (m MultiConvexMesh) BoundingRadius() float64 {
	lo, hi := m.LocalAABB()
	return hi.Sub(lo).Length() / 2
}

// HeightMap is a regular grid of height samples, used for large-scale
// terrain collision. A height map with a mismatched sample count for its
// declared grid dimensions is invalid, per the same rule as Mesh.
type HeightMap struct {
	Width, Depth int
	CellSize     float64
	Heights      []float64 // row-major, length must equal Width*Depth
}

func (h *HeightMap) Valid() bool { return len(h.Heights) == h.Width*h.Depth && h.Width > 0 && h.Depth > 0 }

func (h *HeightMap) HeightAt(x, z int) (float64, error) {
	if x < 0 || x >= h.Width || z < 0 || z >= h.Depth {
		return 0, fmt.Errorf("collider: height map sample (%d,%d) out of range", x, z)
	}
	return h.Heights[z*h.Width+x], nil
}

func (h *HeightMap) Volume() float64 {
	if !h.Valid() {
		return 1
	}
	lo, hi := h.LocalAABB()
	ext := hi.Sub(lo)
	return ext.X * ext.Y * ext.Z
}

func (h *HeightMap) UnitDensityInertia() vecmath.Mat3 {
	if !h.Valid() {
		return vecmath.Identity3
	}
	lo, hi := h.LocalAABB()
	box := Box{HalfExtents: hi.Sub(lo).Scale(0.5)}
	return box.UnitDensityInertia()
}

func (h *HeightMap) LocalCenter() vecmath.Vec3 { return vecmath.Vec3{} }

func (h *HeightMap) LocalAABB() (vecmath.Vec3, vecmath.Vec3) {
	if !h.Valid() {
		return vecmath.Vec3{}, vecmath.Vec3{}
	}
	minH, maxH := h.Heights[0], h.Heights[0]
	for _, v := range h.Heights[1:] {
		minH = minf(minH, v)
		maxH = maxf(maxH, v)
	}
	halfW := float64(h.Width) * h.CellSize / 2
	halfD := float64(h.Depth) * h.CellSize / 2
	return vecmath.Vec3{X: -halfW, Y: minH, Z: -halfD}, vecmath.Vec3{X: halfW, Y: maxH, Z: halfD}
}

func (h *HeightMap) BoundingRadius() float64 {
	lo, hi := h.LocalAABB()
	return hi.Sub(lo).Length() / 2
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
