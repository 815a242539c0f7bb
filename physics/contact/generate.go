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
	"math"

	"github.com/replicore/engine/physics/collider"
	"github.com/replicore/engine/physics/vecmath"
)

// Generate computes the contact points between a and b, dispatching on
// their shape types. Sphere-sphere uses the closed-form formula;
// sphere-box clips the sphere center to the box's local extents; and
// sphere-mesh/convex-mesh walks the triangle list for the nearest point,
// feeding the internal-edge corrector a real face-aligned normal instead
// of a center-to-center guess. Every remaining combination (box-box,
// capsule, cylinder, ellipsoid, convex-convex, height maps as a primary
// shape) still falls back to a bounding-sphere approximation; see
// DESIGN.md for why those are deferred rather than implemented here.
func Generate(a, b *collider.Collider) ([]ContactPoint, bool) {
	if sa, ok := a.Shape.(collider.Sphere); ok {
		if sb, ok := b.Shape.(collider.Sphere); ok {
			return sphereSphere(a, sa, b, sb)
		}
		if bb, ok := b.Shape.(collider.Box); ok {
			return sphereBox(a, sa, b, bb, true)
		}
		if mesh, ok := meshShapeOf(b.Shape); ok {
			return sphereMesh(a, sa, b, mesh, true)
		}
	}
	if sb, ok := b.Shape.(collider.Sphere); ok {
		if ba, ok := a.Shape.(collider.Box); ok {
			return sphereBox(b, sb, a, ba, false)
		}
		if mesh, ok := meshShapeOf(a.Shape); ok {
			return sphereMesh(b, sb, a, mesh, false)
		}
	}
	return boundingSphereFallback(a, b)
}

func sphereSphere(a *collider.Collider, sa collider.Sphere, b *collider.Collider, sb collider.Sphere) ([]ContactPoint, bool) {
	delta := b.Position.Sub(a.Position)
	dist := delta.Length()
	radiusSum := sa.Radius + sb.Radius
	if dist >= radiusSum {
		return nil, false
	}
	normal := separationNormal(delta, dist)
	return []ContactPoint{{
		WorldA:      a.Position.Add(normal.Scale(sa.Radius)),
		WorldB:      b.Position.Sub(normal.Scale(sb.Radius)),
		Normal:      normal,
		Penetration: radiusSum - dist,
	}}, true
}

// meshShapeOf extracts the underlying triangle mesh from a Mesh or
// ConvexMesh shape, the two shapes sphereMesh knows how to dispatch to.
func meshShapeOf(s collider.Shape) (*collider.Mesh, bool) {
	switch shape := s.(type) {
	case *collider.Mesh:
		return shape, true
	case collider.ConvexMesh:
		return shape.Mesh, true
	default:
		return nil, false
	}
}

// boxSphereContact computes the contact between boxCol/box and
// sphereCol/sphere, with Normal pointing from the box toward the sphere
// and WorldA/WorldB the surface points on the box and sphere respectively.
// Callers reorder/negate as needed to match the caller-facing A/B order.
func boxSphereContact(boxCol *collider.Collider, box collider.Box, sphereCol *collider.Collider, sphere collider.Sphere) (ContactPoint, bool) {
	localCenter := boxCol.Rotation.Conjugate().RotateVec3(sphereCol.Position.Sub(boxCol.Position))
	closestLocal := vecmath.Vec3{
		X: vecmath.Clamp(localCenter.X, -box.HalfExtents.X, box.HalfExtents.X),
		Y: vecmath.Clamp(localCenter.Y, -box.HalfExtents.Y, box.HalfExtents.Y),
		Z: vecmath.Clamp(localCenter.Z, -box.HalfExtents.Z, box.HalfExtents.Z),
	}
	diff := localCenter.Sub(closestLocal)
	distSq := diff.LengthSq()

	var normalLocal vecmath.Vec3
	var penetration float64
	if distSq > 1e-12 {
		// Sphere center is outside the box: push along the surface normal.
		dist := math.Sqrt(distSq)
		if dist >= sphere.Radius {
			return ContactPoint{}, false
		}
		normalLocal = diff.Scale(1 / dist)
		penetration = sphere.Radius - dist
	} else {
		// Sphere center is inside the box: push out along whichever axis
		// has the least penetration.
		pens := [3]float64{
			box.HalfExtents.X - math.Abs(localCenter.X),
			box.HalfExtents.Y - math.Abs(localCenter.Y),
			box.HalfExtents.Z - math.Abs(localCenter.Z),
		}
		axis := 0
		for i := 1; i < 3; i++ {
			if pens[i] < pens[axis] {
				axis = i
			}
		}
		sign := 1.0
		if localCenter.Component(axis) < 0 {
			sign = -1.0
		}
		normalLocal = vecmath.Vec3{}.WithComponent(axis, sign)
		closestLocal = closestLocal.WithComponent(axis, sign*box.HalfExtents.Component(axis))
		penetration = pens[axis] + sphere.Radius
	}

	normal := boxCol.Rotation.RotateVec3(normalLocal).Normalized()
	worldOnBox := boxCol.Position.Add(boxCol.Rotation.RotateVec3(closestLocal))
	worldOnSphere := sphereCol.Position.Sub(normal.Scale(sphere.Radius))
	return ContactPoint{
		WorldA:      worldOnBox,
		WorldB:      worldOnSphere,
		Normal:      normal,
		Penetration: penetration,
	}, true
}

// sphereBox dispatches to boxSphereContact and restores the caller's
// original A/B order: sphereIsA is true when Generate's a argument was
// the sphere.
func sphereBox(sphereCol *collider.Collider, sphere collider.Sphere, boxCol *collider.Collider, box collider.Box, sphereIsA bool) ([]ContactPoint, bool) {
	cp, ok := boxSphereContact(boxCol, box, sphereCol, sphere)
	if !ok {
		return nil, false
	}
	if sphereIsA {
		cp.WorldA, cp.WorldB = cp.WorldB, cp.WorldA
		cp.Normal = cp.Normal.Neg()
	}
	return []ContactPoint{cp}, true
}

func meshTriangleWorld(meshCol *collider.Collider, mesh *collider.Mesh, tri collider.Triangle) (vecmath.Vec3, vecmath.Vec3, vecmath.Vec3) {
	toWorld := func(v vecmath.Vec3) vecmath.Vec3 {
		return meshCol.Position.Add(meshCol.Rotation.RotateVec3(v))
	}
	return toWorld(mesh.Vertices[tri.A]), toWorld(mesh.Vertices[tri.B]), toWorld(mesh.Vertices[tri.C])
}

// closestPointOnTriangle returns the point on triangle abc nearest p,
// Ericson's barycentric-region test (Real-Time Collision Detection §5.1.5).
func closestPointOnTriangle(p, a, b, c vecmath.Vec3) vecmath.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Scale(v))
	}
	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Scale(w))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Scale(w))
	}
	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Scale(v)).Add(ac.Scale(w))
}

// meshSphereContact finds the mesh triangle nearest sphereCol's center and
// returns the contact against it, with Normal pointing from the mesh
// toward the sphere. bestTriangle is the winning triangle's index, for
// callers that want to feed it straight into internal-edge correction.
func meshSphereContact(meshCol *collider.Collider, mesh *collider.Mesh, sphereCol *collider.Collider, sphere collider.Sphere) (cp ContactPoint, bestTriangle int, ok bool) {
	if !mesh.Valid() || len(mesh.Triangles) == 0 {
		return ContactPoint{}, -1, false
	}
	bestDist := math.MaxFloat64
	var bestPoint vecmath.Vec3
	bestTriangle = -1
	for i, tri := range mesh.Triangles {
		wa, wb, wc := meshTriangleWorld(meshCol, mesh, tri)
		candidate := closestPointOnTriangle(sphereCol.Position, wa, wb, wc)
		if d := candidate.Distance(sphereCol.Position); d < bestDist {
			bestDist, bestPoint, bestTriangle = d, candidate, i
		}
	}
	if bestTriangle < 0 || bestDist >= sphere.Radius {
		return ContactPoint{}, -1, false
	}
	normal := sphereCol.Position.Sub(bestPoint)
	if normal.Length() < 1e-9 {
		normal = faceNormal(mesh, mesh.Triangles[bestTriangle])
	} else {
		normal = normal.Normalized()
	}
	return ContactPoint{
		WorldA:      bestPoint,
		WorldB:      sphereCol.Position.Sub(normal.Scale(sphere.Radius)),
		Normal:      normal,
		Penetration: sphere.Radius - bestDist,
	}, bestTriangle, true
}

// sphereMesh dispatches to meshSphereContact and restores the caller's
// original A/B order: sphereIsA is true when Generate's a argument was
// the sphere.
func sphereMesh(sphereCol *collider.Collider, sphere collider.Sphere, meshCol *collider.Collider, mesh *collider.Mesh, sphereIsA bool) ([]ContactPoint, bool) {
	cp, _, ok := meshSphereContact(meshCol, mesh, sphereCol, sphere)
	if !ok {
		return nil, false
	}
	if sphereIsA {
		cp.WorldA, cp.WorldB = cp.WorldB, cp.WorldA
		cp.Normal = cp.Normal.Neg()
	}
	return []ContactPoint{cp}, true
}

func boundingSphereFallback(a, b *collider.Collider) ([]ContactPoint, bool) {
	delta := b.Position.Sub(a.Position)
	dist := delta.Length()
	radiusSum := a.WorldBoundingRadius() + b.WorldBoundingRadius()
	if dist >= radiusSum {
		return nil, false
	}
	normal := separationNormal(delta, dist)
	return []ContactPoint{{
		WorldA:      a.Position.Add(normal.Scale(a.WorldBoundingRadius())),
		WorldB:      b.Position.Sub(normal.Scale(b.WorldBoundingRadius())),
		Normal:      normal,
		Penetration: radiusSum - dist,
	}}, true
}

func separationNormal(delta vecmath.Vec3, dist float64) vecmath.Vec3 {
	if dist < 1e-9 {
		return vecmath.Vec3{Y: 1}
	}
	return delta.Scale(1 / dist)
}
