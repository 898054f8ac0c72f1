package snake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodFromFreq_RoundTrip(t *testing.T) {
	// Scenario 1: literal tag period conversions.
	p := PeriodFromFreq(1)
	assert.Equal(t, Ps(1_000_000_000_000), p.Ps())

	p = PeriodFromFreq(189_800)
	assert.Equal(t, Ps(5_268_704), p.Ps())
}

func TestPeriod_HzRoundTrip(t *testing.T) {
	for f := 1.0; f < 1e6; f *= 13.37 {
		p := PeriodFromFreq(f)
		got := p.Hz()
		assert.InEpsilon(t, f, got, 1e-4)
	}
}

func TestPeriod_TextRoundTrip(t *testing.T) {
	p := PeriodFromPs(123456789)
	text, err := p.MarshalText()
	require.NoError(t, err)

	var got Period
	require.NoError(t, got.UnmarshalText(text))
	assert.Equal(t, p, got)
}

func TestCoord3_IsDiscard(t *testing.T) {
	assert.True(t, discardCoord.IsDiscard())
	assert.False(t, Coord3{}.IsDiscard())
}

func TestDataKind_PmtChannelIndex(t *testing.T) {
	idx, ok := Pmt3.PmtChannelIndex()
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = Line.PmtChannelIndex()
	assert.False(t, ok)
}
