package biquad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascadeMagnitudeDB_SumsSections(t *testing.T) {
	a, err := SynthesizeSection(Descriptor{Type: Peaking, Frequency: 500, Q: 1, Gain: 3}, testRate48k)
	require.NoError(t, err)
	b, err := SynthesizeSection(Descriptor{Type: Peaking, Frequency: 500, Q: 1, Gain: 4}, testRate48k)
	require.NoError(t, err)

	got := CascadeMagnitudeDB([]Section{a, b}, 1, 500, testRate48k)
	assert.InDelta(t, 7.0, got, 1e-6)
}

func TestCascadeMagnitudeDB_Gain(t *testing.T) {
	got := CascadeMagnitudeDB(nil, 0.5, 1000, testRate48k)
	assert.InDelta(t, -6.0206, got, 1e-4)
}
