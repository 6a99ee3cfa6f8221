package stresstest

import (
	"math"
	"time"
)

// ArrivalOffsets returns the start offset of every iteration of a ramping
// arrival rate. Stage targets are iterations per timeUnit and the rate
// starts at 0. Iteration i starts when the integral of the rate reaches i,
// so the first iteration starts at offset 0 of the first non-empty stage.
func ArrivalOffsets(stages []Stage, timeUnit time.Duration) []time.Duration {
	if timeUnit <= 0 {
		return nil
	}
	unit := timeUnit.Seconds()

	var offsets []time.Duration
	next := 0      // index of the next iteration
	done := 0.0    // iterations accumulated before the current stage
	elapsed := 0.0 // seconds before the current stage
	from := 0.0    // rate at the start of the current stage, per second

	for _, stage := range stages {
		to := float64(stage.Target) / unit
		length := stage.Duration.Seconds()
		area := (from + to) / 2 * length

		for length > 0 && float64(next) < done+area {
			tau := solveStageTime(float64(next)-done, from, to, length)
			offsets = append(offsets, time.Duration((elapsed+tau)*float64(time.Second)))
			next++
		}

		done += area
		elapsed += length
		from = to
	}
	return offsets
}

// solveStageTime returns the time t within a stage at which the integral of
// a rate moving linearly from r0 to r1 over length reaches delta:
// a*t^2 + b*t = delta with a = (r1-r0)/(2*length) and b = r0.
// The rationalised root stays stable when a is zero or negative.
func solveStageTime(delta, r0, r1, length float64) float64 {
	if delta <= 0 {
		return 0
	}
	a := (r1 - r0) / (2 * length)
	b := r0
	disc := b*b + 4*a*delta
	if disc < 0 {
		disc = 0
	}
	denom := b + math.Sqrt(disc)
	if denom <= 0 {
		return length
	}
	t := 2 * delta / denom
	if t > length {
		t = length
	}
	return t
}
