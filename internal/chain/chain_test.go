package chain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-eq/internal/biquad"
	"github.com/tphakala/go-audio-eq/internal/mathutil"
	"github.com/tphakala/go-audio-eq/internal/testutil"
)

const (
	testRate   = 48000.0
	testFrames = 48000
)

func TestNew_Layout(t *testing.T) {
	c, err := New[float64](DefaultSlots, 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultSlots, c.Slots())
	assert.Equal(t, 2, c.Channels())

	st := c.State()
	require.Len(t, st.Sections, DefaultSlots)
	for _, slot := range st.Sections {
		for _, s := range slot {
			assert.True(t, s.IsNeutral())
		}
	}
	assert.InDelta(t, 1.0, st.Gain, 0)
	assert.InDelta(t, 1.0, st.Volume, 0)
	assert.False(t, st.Muted)

	_, err = New[float64](0, 2)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = New[float32](4, 0)
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestSetBand_Errors(t *testing.T) {
	c, err := New[float64](2, 2)
	require.NoError(t, err)

	packed := biquad.PackSection(biquad.Neutral(), 2)
	assert.ErrorIs(t, c.SetBand(2, packed), ErrSlotOutOfRange)
	assert.ErrorIs(t, c.SetBand(-1, packed), ErrSlotOutOfRange)
	assert.ErrorIs(t, c.SetBand(0, packed[:5]), ErrCoefficientCount)

	packed[3] = math.NaN()
	assert.ErrorIs(t, c.SetBand(0, packed), ErrInvalidCoefficient)
}

func TestSetBand_PerChannel(t *testing.T) {
	c, err := New[float64](1, 2)
	require.NoError(t, err)

	left := biquad.Section{B0: 0.5, B1: 0.1, B2: 0.2, A1: -0.3, A2: 0.1}
	right := biquad.Section{B0: 0.9}
	packed := make([]float64, 0, 10)
	lv, rv := left.Values(), right.Values()
	packed = append(packed, lv[:]...)
	packed = append(packed, rv[:]...)
	require.NoError(t, c.SetBand(0, packed))

	got, err := c.Band(0, 0)
	require.NoError(t, err)
	assert.Equal(t, left, got)
	got, err = c.Band(0, 1)
	require.NoError(t, err)
	assert.Equal(t, right, got)

	_, err = c.Band(0, 2)
	assert.ErrorIs(t, err, ErrChannelMismatch)
}

func TestProcess_NeutralIsTransparent(t *testing.T) {
	c, err := New[float64](DefaultSlots, 1)
	require.NoError(t, err)

	in := testutil.Sine(1024, 440, testRate)
	buf := [][]float64{append([]float64(nil), in...)}
	require.NoError(t, c.Process(buf))
	assert.Equal(t, in, buf[0])
}

func TestProcess_PeakingBoostMatchesResponse(t *testing.T) {
	c, err := New[float64](DefaultSlots, 1)
	require.NoError(t, err)

	d, err := biquad.NewDescriptor(biquad.Peaking, 1000, 1, 6)
	require.NoError(t, err)
	packed, err := biquad.Pack([]biquad.Descriptor{d}, testRate, 1)
	require.NoError(t, err)
	require.NoError(t, c.SetBand(0, packed))

	in := testutil.Sine(testFrames, 1000, testRate)
	buf := [][]float64{append([]float64(nil), in...)}
	require.NoError(t, c.Process(buf))

	// Skip the transient.
	settle := testFrames / 4
	gotDB := mathutil.AmplitudeToDB(testutil.RMS(buf[0][settle:]) / testutil.RMS(in[settle:]))
	assert.InDelta(t, 6.0, gotDB, 0.05)
	testutil.AssertNoNaNOrInf(t, buf[0])
}

func TestProcess_GainVolumeMute(t *testing.T) {
	c, err := New[float32](DefaultSlots, 2)
	require.NoError(t, err)
	require.NoError(t, c.SetGain(0.5))
	require.NoError(t, c.SetVolume(0.5))

	buf := [][]float32{{1, 1, 1}, {-1, -1, -1}}
	require.NoError(t, c.Process(buf))
	assert.InDeltaSlice(t, []float32{0.25, 0.25, 0.25}, buf[0], 1e-6)
	assert.InDeltaSlice(t, []float32{-0.25, -0.25, -0.25}, buf[1], 1e-6)

	c.SetMuted(true)
	assert.True(t, c.Muted())
	buf = [][]float32{{1, 2}, {3, 4}}
	require.NoError(t, c.Process(buf))
	assert.Equal(t, [][]float32{{0, 0}, {0, 0}}, buf)

	assert.ErrorIs(t, c.Process([][]float32{{1}}), ErrChannelMismatch)
}

func TestSetGainVolume_Errors(t *testing.T) {
	c, err := New[float64](1, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, c.SetGain(-1), ErrInvalidGain)
	assert.ErrorIs(t, c.SetGain(math.Inf(1)), ErrInvalidGain)
	assert.ErrorIs(t, c.SetVolume(1.5), ErrInvalidVolume)
	assert.ErrorIs(t, c.SetVolume(math.NaN()), ErrInvalidVolume)
	assert.InDelta(t, 1.0, c.Gain(), 0)
	assert.InDelta(t, 1.0, c.Volume(), 0)
}

func TestState_IsCopy(t *testing.T) {
	c, err := New[float64](2, 1)
	require.NoError(t, err)

	st := c.State()
	st.Sections[0][0].B0 = 42
	again := c.State()
	assert.True(t, again.Sections[0][0].IsNeutral())
}

func TestReset_ClearsMemory(t *testing.T) {
	c, err := New[float64](1, 1)
	require.NoError(t, err)
	d, err := biquad.NewDescriptor(biquad.Lowpass, 200, 0.707, 0)
	require.NoError(t, err)
	packed, err := biquad.Pack([]biquad.Descriptor{d}, testRate, 1)
	require.NoError(t, err)
	require.NoError(t, c.SetBand(0, packed))

	first := [][]float64{testutil.Impulse(64)}
	require.NoError(t, c.Process(first))

	c.Reset()
	second := [][]float64{testutil.Impulse(64)}
	require.NoError(t, c.Process(second))
	assert.Equal(t, first, second)
}

func TestLoad(t *testing.T) {
	c, err := New[float64](3, 2)
	require.NoError(t, err)

	d := biquad.Descriptor{Type: biquad.Peaking, Frequency: 1000, Q: 1, Gain: 6}
	s, err := biquad.SynthesizeSection(d, testRate)
	require.NoError(t, err)

	packed, err := biquad.Pack([]biquad.Descriptor{d, d, d}, testRate, 2)
	require.NoError(t, err)
	require.NoError(t, c.Load(packed, 0.5))

	// A shorter load leaves the trailing slots neutral.
	require.NoError(t, c.Load(packed[:biquad.PackedLen(1, 2)], 0.25))
	st := c.State()
	assert.Equal(t, []biquad.Section{s, s}, st.Sections[0])
	assert.True(t, st.Sections[1][0].IsNeutral())
	assert.True(t, st.Sections[2][1].IsNeutral())
	assert.InDelta(t, 0.25, st.Gain, 0)

	assert.ErrorIs(t, c.Load(packed[:7], 1), ErrCoefficientCount)
	four, err := biquad.Pack([]biquad.Descriptor{d, d, d, d}, testRate, 2)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Load(four, 1), ErrSlotOutOfRange)
	assert.ErrorIs(t, c.Load(nil, -1), ErrInvalidGain)
}

func TestLoad_RejectedLoadChangesNothing(t *testing.T) {
	c, err := New[float64](3, 2)
	require.NoError(t, err)

	d := biquad.Descriptor{Type: biquad.Peaking, Frequency: 1000, Q: 1, Gain: 6}
	packed, err := biquad.Pack([]biquad.Descriptor{d, d}, testRate, 2)
	require.NoError(t, err)
	require.NoError(t, c.Load(packed, 0.5))
	before := c.State()

	other := biquad.Descriptor{Type: biquad.Lowpass, Frequency: 200, Q: 0.7}
	bad, err := biquad.Pack([]biquad.Descriptor{other, other}, testRate, 2)
	require.NoError(t, err)
	bad[len(bad)-1] = math.NaN()

	assert.ErrorIs(t, c.Load(bad, 0.1), ErrInvalidCoefficient)
	assert.Equal(t, before, c.State())

	assert.ErrorIs(t, c.Load(packed[:biquad.PackedLen(1, 2)], math.Inf(1)), ErrInvalidGain)
	assert.Equal(t, before, c.State())
}
