package motion_test

import (
	"context"
	"math"
	"testing"

	"github.com/Alia5/airmouse/motion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1/64 s is exactly representable, keeping the expected counts exact.
const dt = 1.0 / 64

func TestTwistAxisIsNotRotated(t *testing.T) {
	tests := []struct {
		name   string
		gy     float64
		accel  [3]float64
		wantDX int
	}{
		{name: "positive twist", gy: 64, accel: [3]float64{0, 0, 1}, wantDX: 20},
		{name: "negative twist", gy: -128, accel: [3]float64{0.3, -0.2, 0.9}, wantDX: -40},
		{name: "sub-count twist truncates", gy: 3, accel: [3]float64{1, 1, 1}, wantDX: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := motion.NewTransform(motion.DefaultSensitivity)
			require.Equal(t, 0.0, tr.ReferenceAngle())

			s := motion.Sample{AX: tt.accel[0], AY: tt.accel[1], AZ: tt.accel[2], GY: tt.gy, DT: dt}
			dx, dy := tr.Step(s, true)
			assert.Equal(t, tt.wantDX, dx)
			assert.Equal(t, 0, dy)
			assert.Equal(t, 0.0, tr.ReferenceAngle(), "engaged steps must not touch the reference")
		})
	}
}

func TestDisengagedTracksGravity(t *testing.T) {
	tr := motion.NewTransform(0)
	assert.Equal(t, motion.DefaultSensitivity, tr.Sensitivity())

	for i := 0; i < 100; i++ {
		dx, dy := tr.Step(motion.Sample{AX: 0, AZ: 1, GX: 500, GY: 500, GZ: 500, DT: dt}, false)
		assert.Equal(t, 0, dx)
		assert.Equal(t, 0, dy)
		assert.Equal(t, 0.0, tr.ReferenceAngle())
	}

	tr.Step(motion.Sample{AX: 1, AZ: 0, DT: dt}, false)
	assert.InDelta(t, math.Pi/2, tr.ReferenceAngle(), 1e-12)
}

func TestEngagementFreezesReference(t *testing.T) {
	tr := motion.NewTransform(motion.DefaultSensitivity)
	// Tilted a quarter turn: gravity along +X.
	tr.Step(motion.Sample{AX: 1, AZ: 0, DT: dt}, false)
	require.InDelta(t, math.Pi/2, tr.ReferenceAngle(), 1e-12)

	// moveX = 20, so (-moveX, -moveZ) = (-20, 0) rotated by pi/2 lands on
	// the horizontal axis.
	dx, dy := tr.Step(motion.Sample{AX: 0, AZ: 1, GX: 64, DT: dt}, true)
	assert.Equal(t, -20, dx)
	assert.Equal(t, 0, dy)
	assert.InDelta(t, math.Pi/2, tr.ReferenceAngle(), 1e-12, "level accel while engaged must not re-baseline")
}

func TestRotationIdentityAtZero(t *testing.T) {
	tr := motion.NewTransform(motion.DefaultSensitivity)
	tr.Step(motion.Sample{AZ: 1, DT: dt}, false)

	dx, dy := tr.Step(motion.Sample{AZ: 1, GX: 64, GZ: 128, DT: dt}, true)
	// theta=0: vertical = -moveX, horizontal = -moveZ
	assert.Equal(t, -20, dy)
	assert.Equal(t, -40, dx)
}

func TestNonFiniteSamplesAreIgnored(t *testing.T) {
	tr := motion.NewTransform(motion.DefaultSensitivity)
	tr.Step(motion.Sample{AX: 1, AZ: 1, DT: dt}, false)
	ref := tr.ReferenceAngle()

	for _, s := range []motion.Sample{
		{AX: math.NaN(), AZ: 1, DT: dt},
		{GX: math.Inf(1), AZ: 1, DT: dt},
		{AZ: 1, DT: math.NaN()},
	} {
		dx, dy := tr.Step(s, false)
		assert.Zero(t, dx)
		assert.Zero(t, dy)
		dx, dy = tr.Step(s, true)
		assert.Zero(t, dx)
		assert.Zero(t, dy)
		assert.Equal(t, ref, tr.ReferenceAngle())
	}
}

func TestIdleSource(t *testing.T) {
	s, err := motion.Idle{}.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, motion.Sample{AZ: 1}, s)
}
