package stresstest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seconds(offsets []time.Duration) []float64 {
	out := make([]float64, len(offsets))
	for i, o := range offsets {
		out[i] = o.Seconds()
	}
	return out
}

func TestArrivalOffsets_RampHoldTearDown(t *testing.T) {
	stages := []Stage{
		{Target: 2, Duration: time.Minute},
		{Target: 2, Duration: time.Minute},
		{Target: 0, Duration: time.Minute},
	}

	offsets := ArrivalOffsets(stages, time.Minute)

	require.Len(t, offsets, 4)
	got := seconds(offsets)
	assert.InDelta(t, 0, got[0], 0.001)
	assert.InDelta(t, 60, got[1], 0.001)
	assert.InDelta(t, 90, got[2], 0.001)
	assert.InDelta(t, 120, got[3], 0.001)
}

func TestArrivalOffsets_LinearRamp(t *testing.T) {
	// 0 -> 1/s over 60s accumulates 30 iterations; i starts at sqrt(120*i)
	offsets := ArrivalOffsets([]Stage{{Target: 60, Duration: time.Minute}}, time.Minute)

	require.Len(t, offsets, 30)
	assert.InDelta(t, 10.954, offsets[1].Seconds(), 0.01)
	assert.InDelta(t, math.Sqrt(120*29), offsets[29].Seconds(), 0.01)
	for i := 1; i < len(offsets); i++ {
		assert.Greater(t, offsets[i], offsets[i-1])
	}
}

func TestArrivalOffsets_ConstantRate(t *testing.T) {
	// Holding 10/s from the start: no ramp means the first stage is a jump
	stages := []Stage{
		{Target: 10, Duration: 0},
		{Target: 10, Duration: time.Second},
	}

	offsets := ArrivalOffsets(stages, time.Second)

	require.Len(t, offsets, 10)
	for i, o := range offsets {
		assert.InDelta(t, float64(i)*0.1, o.Seconds(), 0.001)
	}
}

func TestArrivalOffsets_Empty(t *testing.T) {
	assert.Empty(t, ArrivalOffsets(nil, time.Second))
	assert.Empty(t, ArrivalOffsets([]Stage{{Target: 0, Duration: time.Minute}}, time.Minute))
	assert.Nil(t, ArrivalOffsets([]Stage{{Target: 5, Duration: time.Minute}}, 0))
}

func TestArrivalOffsets_WithinTotalDuration(t *testing.T) {
	stages := []Stage{
		{Target: 75, Duration: 30 * time.Second},
		{Target: 75, Duration: 30 * time.Second},
		{Target: 0, Duration: 30 * time.Second},
	}

	offsets := ArrivalOffsets(stages, time.Minute)

	require.NotEmpty(t, offsets)
	assert.Equal(t, time.Duration(0), offsets[0])
	for _, o := range offsets {
		assert.Less(t, o, 90*time.Second)
	}
	// 75/min: ramp 18.75 + hold 37.5 + teardown 18.75
	assert.Len(t, offsets, 75)
}

func TestSolveStageTime(t *testing.T) {
	assert.Equal(t, 0.0, solveStageTime(0, 1, 1, 10))
	assert.Equal(t, 0.0, solveStageTime(-1, 1, 1, 10))
	assert.InDelta(t, 2.0, solveStageTime(2, 1, 1, 10), 1e-9)
	// decreasing rate 1 -> 0 over 10s, area 5; half the area at 10-sqrt(50)
	assert.InDelta(t, 10-7.0710678, solveStageTime(2.5, 1, 0, 10), 1e-6)
	assert.Equal(t, 10.0, solveStageTime(100, 1, 0, 10))
}
