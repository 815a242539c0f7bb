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

// Package collider implements the shape library (sphere, box, capsule,
// cylinder, ellipsoid, mesh, convex mesh, multi-convex mesh, height map)
// and the Collider that wraps one in a material, collision group, and
// cached bounding volumes.
package collider

import (
	"math"

	"github.com/replicore/engine/physics/vecmath"
)

// Shape is one primitive or aggregate collision volume. Every shape can
// report its volume and local-frame inertia for unit density, the mass
// composition step scales by actual density.
type Shape interface {
	Volume() float64
	// UnitDensityInertia returns the local-space inertia tensor for this
	// shape at density 1, about its own local center.
	UnitDensityInertia() vecmath.Mat3
	LocalCenter() vecmath.Vec3
	LocalAABB() (min, max vecmath.Vec3)
	BoundingRadius() float64
	// Valid reports whether this shape's geometry is usable; an invalid
	// mesh/heightmap still satisfies the interface with defaults (unit
	// volume, identity inertia, zero support) per the specification's
	// invalid-geometry error handling.
	Valid() bool
}

// Sphere is a solid sphere of the given radius.
type Sphere struct{ Radius float64 }

func (s Sphere) Volume() float64 { return (4.0 / 3.0) * math.Pi * s.Radius * s.Radius * s.Radius }
func (s Sphere) UnitDensityInertia() vecmath.Mat3 {
	i := 0.4 * s.Volume() * s.Radius * s.Radius
	return vecmath.Diag3(i, i, i)
}
func (s Sphere) LocalCenter() vecmath.Vec3 { return vecmath.Vec3{} }
func (s Sphere) LocalAABB() (vecmath.Vec3, vecmath.Vec3) {
	r := s.Radius
	return vecmath.Vec3{X: -r, Y: -r, Z: -r}, vecmath.Vec3{X: r, Y: r, Z: r}
}
func (s Sphere) BoundingRadius() float64 { return s.Radius }
func (s Sphere) Valid() bool             { return s.Radius > 0 }

// Box is a solid axis-aligned box of the given half-extents.
type Box struct{ HalfExtents vecmath.Vec3 }

func (b Box) Volume() float64 {
	return 8 * b.HalfExtents.X * b.HalfExtents.Y * b.HalfExtents.Z
}
func (b Box) UnitDensityInertia() vecmath.Mat3 {
	m := b.Volume()
	w, h, d := 2*b.HalfExtents.X, 2*b.HalfExtents.Y, 2*b.HalfExtents.Z
	return vecmath.Diag3(
		m*(h*h+d*d)/12,
		m*(w*w+d*d)/12,
		m*(w*w+h*h)/12,
	)
}
func (b Box) LocalCenter() vecmath.Vec3 { return vecmath.Vec3{} }
func (b Box) LocalAABB() (vecmath.Vec3, vecmath.Vec3) {
	return b.HalfExtents.Neg(), b.HalfExtents
}
func (b Box) BoundingRadius() float64 { return b.HalfExtents.Length() }
func (b Box) Valid() bool {
	return b.HalfExtents.X > 0 && b.HalfExtents.Y > 0 && b.HalfExtents.Z > 0
}

// Capsule is a cylinder of Radius/HalfHeight capped with hemispheres,
// oriented along the local y axis.
type Capsule struct {
	Radius     float64
	HalfHeight float64 // height of the cylindrical section only
}

func (c Capsule) cylinderVolume() float64 {
	return math.Pi * c.Radius * c.Radius * 2 * c.HalfHeight
}
func (c Capsule) sphereVolume() float64 { return (4.0 / 3.0) * math.Pi * c.Radius * c.Radius * c.Radius }
func (c Capsule) Volume() float64       { return c.cylinderVolume() + c.sphereVolume() }
func (c Capsule) UnitDensityInertia() vecmath.Mat3 {
	// Approximate as a cylinder plus two solid spheres of the cap radius
	// centred HalfHeight+Radius from the centre; the caps add to the x and
	// z axes only. Adequate for a physics tick, not a CAD-grade inertia.
	cylM := c.cylinderVolume()
	r2 := c.Radius * c.Radius
	h := 2 * c.HalfHeight
	iy := 0.5 * cylM * r2
	ix := cylM * (3*r2+h*h) / 12
	capM := c.sphereVolume()
	ixCap := 0.4 * capM * r2
	offset := c.HalfHeight + c.Radius
	ixTotal := ix + 2*(ixCap+capM*offset*offset)
	return vecmath.Diag3(ixTotal, iy, ixTotal)
}
func (c Capsule) LocalCenter() vecmath.Vec3 { return vecmath.Vec3{} }
func (c Capsule) LocalAABB() (vecmath.Vec3, vecmath.Vec3) {
	h := c.HalfHeight + c.Radius
	r := c.Radius
	return vecmath.Vec3{X: -r, Y: -h, Z: -r}, vecmath.Vec3{X: r, Y: h, Z: r}
}
func (c Capsule) BoundingRadius() float64 { return c.HalfHeight + c.Radius }
func (c Capsule) Valid() bool             { return c.Radius > 0 && c.HalfHeight >= 0 }

// Cylinder is a solid cylinder oriented along the local y axis.
type Cylinder struct {
	Radius     float64
	HalfHeight float64
}

func (c Cylinder) Volume() float64 {
	return math.Pi * c.Radius * c.Radius * 2 * c.HalfHeight
}
func (c Cylinder) UnitDensityInertia() vecmath.Mat3 {
	m := c.Volume()
	r2 := c.Radius * c.Radius
	h := 2 * c.HalfHeight
	iy := 0.5 * m * r2
	ix := m * (3*r2 + h*h) / 12
	return vecmath.Diag3(ix, iy, ix)
}
func (c Cylinder) LocalCenter() vecmath.Vec3 { return vecmath.Vec3{} }
func (c Cylinder) LocalAABB() (vecmath.Vec3, vecmath.Vec3) {
	return vecmath.Vec3{X: -c.Radius, Y: -c.HalfHeight, Z: -c.Radius},
		vecmath.Vec3{X: c.Radius, Y: c.HalfHeight, Z: c.Radius}
}
func (c Cylinder) BoundingRadius() float64 {
	return vecmath.Vec3{X: c.Radius, Y: c.HalfHeight, Z: c.Radius}.Length()
}
func (c Cylinder) Valid() bool { return c.Radius > 0 && c.HalfHeight > 0 }

// Ellipsoid is a solid ellipsoid with the given semi-axes.
type Ellipsoid struct{ SemiAxes vecmath.Vec3 }

func (e Ellipsoid) Volume() float64 {
	return (4.0 / 3.0) * math.Pi * e.SemiAxes.X * e.SemiAxes.Y * e.SemiAxes.Z
}
func (e Ellipsoid) UnitDensityInertia() vecmath.Mat3 {
	m := e.Volume()
	a, b, c := e.SemiAxes.X, e.SemiAxes.Y, e.SemiAxes.Z
	return vecmath.Diag3(
		0.2*m*(b*b+c*c),
		0.2*m*(a*a+c*c),
		0.2*m*(a*a+b*b),
	)
}
func (e Ellipsoid) LocalCenter() vecmath.Vec3 { return vecmath.Vec3{} }
func (e Ellipsoid) LocalAABB() (vecmath.Vec3, vecmath.Vec3) {
	return e.SemiAxes.Neg(), e.SemiAxes
}
func (e Ellipsoid) BoundingRadius() float64 { return e.SemiAxes.Length() }
func (e Ellipsoid) Valid() bool {
	return e.SemiAxes.X > 0 && e.SemiAxes.Y > 0 && e.SemiAxes.Z > 0
}
