package packing

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Dim is the embedding dimension of the packing domain. The original codebase
// selects 2 or 3 via a compile-time constant and has code paths that only make
// sense in 3-D (structure factor, order parameter); those paths are out of
// core scope here (see spec §1), so Dim only needs to size geometry and does
// not need a "throws in 2-D" branch anywhere in this package.
const Dim = 3

// Domain is a fully periodic, axis-aligned rectangular box.
type Domain struct {
	Size mgl64.Vec3 // extent along each axis; Size[2] is ignored when Dim == 2
}

// FillDistance returns the minimum-image vector from b to a: for each axis i,
// d_i = a_i - b_i, reduced into [-L_i/2, L_i/2].
func (d Domain) FillDistance(a, b mgl64.Vec3) mgl64.Vec3 {
	var out mgl64.Vec3
	for i := 0; i < Dim; i++ {
		di := a[i] - b[i]
		half := d.Size[i] / 2
		if di > half {
			di -= d.Size[i]
		} else if di < -half {
			di += d.Size[i]
		}
		out[i] = di
	}
	return out
}

// EnsureBoundaries wraps p periodically so every coordinate lies in [0, L_i).
func (d Domain) EnsureBoundaries(p mgl64.Vec3) mgl64.Vec3 {
	var out mgl64.Vec3
	for i := 0; i < Dim; i++ {
		c := math.Mod(p[i], d.Size[i])
		if c < 0 {
			c += d.Size[i]
		}
		out[i] = c
	}
	return out
}

// Volume returns the product of the domain's extents over Dim axes.
func (d Domain) Volume() float64 {
	v := 1.0
	for i := 0; i < Dim; i++ {
		v *= d.Size[i]
	}
	return v
}

// NormalizedDistanceSquared returns |FillDistance(a,b)|^2 * 4 / (diamA+diamB)^2.
func (d Domain) NormalizedDistanceSquared(a mgl64.Vec3, diamA float64, b mgl64.Vec3, diamB float64) float64 {
	delta := d.FillDistance(a, b)
	halfSum := (diamA + diamB) / 2
	return delta.LenSqr() / (halfSum * halfSum)
}

// SphereIntersectionTime returns the smallest t >= 0 such that
// |point + t*velocity - center| == radius, or a negative value if the ray
// never meets the sphere (or velocity is zero).
func SphereIntersectionTime(point, velocity, center mgl64.Vec3, radius float64) float64 {
	velocityLength := velocity.Len()
	if velocityLength == 0 {
		return -1
	}
	direction := velocity.Mul(1 / velocityLength)
	shifted := center.Sub(point)

	dot := direction.Dot(shifted)
	centerSquare := shifted.Dot(shifted)
	discriminant := dot*dot - centerSquare + radius*radius
	if discriminant < 0 {
		return -1
	}

	root := math.Sqrt(discriminant)
	distance := dot - root
	if distance < 0 {
		distance = dot + root
	}
	return distance / velocityLength
}

// Plane is an axis-aligned plane bounding a cell or box: all points with
// coordinate[Axis] == Coordinate. OuterNormalDirection is +1 or -1 and points
// away from the region the plane bounds.
type Plane struct {
	Axis                  int
	Coordinate            float64
	OuterNormalDirection  float64
}

// PlaneIntersectionTime returns the earliest t >= 0 at which point+t*velocity
// crosses plane, moving outward. It is robust to points that ended up
// numerically outside the box after a periodic shift: such points return 0
// if velocity points further outward (force an immediate transfer) and -1 if
// velocity points back inward (let the caller try another plane first).
func PlaneIntersectionTime(point, velocity mgl64.Vec3, plane Plane) float64 {
	coordinateOnAxis := point[plane.Axis]
	distanceToWall := plane.Coordinate - coordinateOnAxis
	velocityOnAxis := velocity[plane.Axis]
	distanceOnOuterNormal := distanceToWall * plane.OuterNormalDirection

	if distanceOnOuterNormal <= 0 {
		velocityOnOuterNormal := velocityOnAxis * plane.OuterNormalDirection
		if distanceOnOuterNormal < 0 {
			// Outside the box already.
			if velocityOnOuterNormal >= 0 {
				return 0
			}
			return -1
		}
		// Exactly on the plane.
		if velocityOnOuterNormal > 0 {
			return 0
		}
		return -1
	}

	if velocityOnAxis == 0 {
		return -1
	}
	return distanceToWall / velocityOnAxis
}

// CellBox is the six-plane boundary of a cubic cell, used by
// TimeToUpdateBoundary (§4.2) to find when a point leaves its owning cell.
type CellBox struct {
	MinCorner mgl64.Vec3
	Size      mgl64.Vec3
}

func (c CellBox) planes() [2 * Dim]Plane {
	var planes [2 * Dim]Plane
	for axis := 0; axis < Dim; axis++ {
		planes[2*axis] = Plane{Axis: axis, Coordinate: c.MinCorner[axis], OuterNormalDirection: -1}
		planes[2*axis+1] = Plane{Axis: axis, Coordinate: c.MinCorner[axis] + c.Size[axis], OuterNormalDirection: 1}
	}
	return planes
}

// TimeToLeaveCell returns the earliest non-negative time at which point,
// moving along velocity, crosses one of the cell's six bounding planes.
func TimeToLeaveCell(point, velocity mgl64.Vec3, cell CellBox) float64 {
	best := math.MaxFloat64
	for _, plane := range cell.planes() {
		t := PlaneIntersectionTime(point, velocity, plane)
		if t >= 0 && t < best {
			best = t
		}
	}
	return best
}
