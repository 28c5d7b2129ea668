package emath

// Some basic affine transformations, used to describe global motion
// between frames

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f64" // Will be "image/math/f64" at some point, hopefully make this file redundant
)

// Use a local type so we can hang methods off it
type Aff3 f64.Aff3

// Cut-n-pasted from image@0.7.0/draw/scale:matMul
func (p Aff3) Mult(q Aff3) Aff3 {
	return Aff3{
		p[3*0+0]*q[3*0+0] + p[3*0+1]*q[3*1+0],
		p[3*0+0]*q[3*0+1] + p[3*0+1]*q[3*1+1],
		p[3*0+0]*q[3*0+2] + p[3*0+1]*q[3*1+2] + p[3*0+2],
		p[3*1+0]*q[3*0+0] + p[3*1+1]*q[3*1+0],
		p[3*1+0]*q[3*0+1] + p[3*1+1]*q[3*1+1],
		p[3*1+0]*q[3*0+2] + p[3*1+1]*q[3*1+2] + p[3*1+2],
	}
}

func Identity() Aff3 {
	return Aff3{1, 0, 0, 0, 1, 0}
}

func (m1 Aff3) Translate(tx, ty float64) Aff3 {
	return m1.Mult(Aff3{1, 0, tx, 0, 1, ty})
}

func (m1 Aff3) Rotate(thetaDeg float64) Aff3 {
	cosTheta := math.Cos(thetaDeg * math.Pi / 180.0)
	sinTheta := math.Sin(thetaDeg * math.Pi / 180.0)
	return m1.Mult(Aff3{cosTheta, -1 * sinTheta, 0, sinTheta, cosTheta, 0})
}

func RotateAbout(thetaDeg, x, y float64) Aff3 {
	// Remember they compose back to front - rightmost operations performed first
	return Identity().Translate(x, y).Rotate(thetaDeg).Translate(-1*x, -1*y)
}

// Apply maps the point (x,y).
func (m Aff3) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

func (m Aff3) String() string {
	return fmt.Sprintf("[%6.3f %6.3f %6.3f | %6.3f %6.3f %6.3f]", m[0], m[1], m[2], m[3], m[4], m[5])
}

// Vec3 is an RGB triple
type Vec3 f64.Vec3

func (v Vec3) String() string {
	return fmt.Sprintf("[%12.10f, %12.10f, %12.10f]", v[0], v[1], v[2])
}

func (v *Vec3) FloorAt(min float64) {
	if v[0] < min {
		v[0] = min
	}
	if v[1] < min {
		v[1] = min
	}
	if v[2] < min {
		v[2] = min
	}
}

func (v *Vec3) CeilingAt(max float64) {
	if v[0] > max {
		v[0] = max
	}
	if v[1] > max {
		v[1] = max
	}
	if v[2] > max {
		v[2] = max
	}
}
