// Package motion turns inertial samples into relative pointer movement.
//
// Two of the three rotation axes (gyro X and Z) behave like a laser pointer
// swept by the wrist, so their natural frame is gravity: they are rotated by
// the tilt angle captured when the user starts pointing. The third axis
// (gyro Y, a screwdriver-like wrist twist) maps straight to horizontal motion.
package motion

import (
	"context"
	"math"
)

// DefaultSensitivity scales deg/s * s into pointer counts.
const DefaultSensitivity = 20.0

// Sample is one inertial reading. Acceleration is in g, angular rate in
// degrees per second and DT is the time covered by the sample in seconds.
type Sample struct {
	AX, AY, AZ float64
	GX, GY, GZ float64
	DT         float64
}

// Finite reports whether every field is a finite number.
func (s Sample) Finite() bool {
	for _, v := range [...]float64{s.AX, s.AY, s.AZ, s.GX, s.GY, s.GZ, s.DT} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Source produces samples, one per call.
type Source interface {
	Next(ctx context.Context) (Sample, error)
}

// Idle is a Source for a device lying still and level. It stands in for a
// sensor that failed to start.
type Idle struct{}

func (Idle) Next(context.Context) (Sample, error) { return Sample{AZ: 1}, nil }

// Transform holds the orientation state carried between ticks. The zero value
// is not usable; create one with NewTransform.
type Transform struct {
	sensitivity    float64
	referenceAngle float64
}

// NewTransform returns a transform with the given sensitivity and a zero
// reference angle. A non-positive sensitivity selects DefaultSensitivity.
func NewTransform(sensitivity float64) *Transform {
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}
	return &Transform{sensitivity: sensitivity}
}

// ReferenceAngle returns the current gravity reference in radians.
func (t *Transform) ReferenceAngle() float64 { return t.referenceAngle }

// Sensitivity returns the configured scale factor.
func (t *Transform) Sensitivity() float64 { return t.sensitivity }

// Step consumes one sample. While not engaged it re-baselines the reference
// angle from gravity and reports no movement; while engaged it freezes the
// reference and returns the rotated gyro movement.
//
// Samples containing NaN or Inf produce no movement and leave the reference
// untouched.
func (t *Transform) Step(s Sample, engaged bool) (dx, dy int) {
	if !s.Finite() {
		return 0, 0
	}
	moveX := int(s.GX * t.sensitivity * s.DT)
	moveY := int(s.GY * t.sensitivity * s.DT)
	moveZ := int(s.GZ * t.sensitivity * s.DT)

	if !engaged {
		t.referenceAngle = math.Atan2(s.AX, s.AZ)
		return 0, 0
	}

	theta := t.referenceAngle
	rx := float64(-moveX)
	rz := float64(-moveZ)
	sin, cos := math.Sincos(theta)
	vertical := rx*cos - rz*sin
	horizontal := rx*sin + rz*cos
	return moveY + int(horizontal), int(vertical)
}
