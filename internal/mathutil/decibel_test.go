package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tphakala/go-audio-eq/internal/testutil"
)

func TestDBToAmplitude(t *testing.T) {
	tests := []struct {
		name string
		db   float64
		want float64
	}{
		{"unity", 0, 1},
		{"plus_20", 20, 10},
		{"minus_20", -20, 0.1},
		{"plus_6", 6, 1.9952623149688795},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertRelativeError(t, tt.want, DBToAmplitude(tt.db), 1e-12)
		})
	}
}

func TestAmplitudeToDB_RoundTrip(t *testing.T) {
	for _, db := range []float64{-60, -12.5, 0, 3, 24} {
		assert.InDelta(t, db, AmplitudeToDB(DBToAmplitude(db)), 1e-9)
	}
}

func TestAmplitudeToDB_Silence(t *testing.T) {
	assert.InDelta(t, SilenceDB, AmplitudeToDB(0), 0)
	assert.InDelta(t, SilenceDB, AmplitudeToDB(-1), 0)
	assert.InDelta(t, SilenceDB, PowerToDB(0), 0)
}

func TestCookbookAmplitude(t *testing.T) {
	// A² is the amplitude ratio at the center of a peaking band.
	a := CookbookAmplitude(6)
	testutil.AssertRelativeError(t, DBToAmplitude(6), a*a, 1e-12)
	assert.InDelta(t, 1.0, CookbookAmplitude(0), 0)
}

func TestClamp(t *testing.T) {
	assert.InDelta(t, 1.0, Clamp(0.5, 1, 2), 0)
	assert.InDelta(t, 2.0, Clamp(3, 1, 2), 0)
	assert.InDelta(t, 1.5, Clamp(1.5, 1, 2), 0)
	assert.True(t, math.IsNaN(Clamp(math.NaN(), 1, 2)))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(1))
	assert.False(t, IsFinite(math.NaN()))
	assert.False(t, IsFinite(math.Inf(-1)))
}
