package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRTTEstimatorFirstSampleSeedsSmoothedDirectly(t *testing.T) {
	e := NewRTTEstimator()
	smoothed, _ := e.Update(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, smoothed)
}

func TestRTTEstimatorConvergesTowardStableSamples(t *testing.T) {
	e := NewRTTEstimator()
	for i := 0; i < 50; i++ {
		e.Update(200 * time.Millisecond)
	}
	smoothed := e.Smoothed()
	assert.InDelta(t, float64(200*time.Millisecond), float64(smoothed), float64(2*time.Millisecond))
}

func TestRTTEstimatorDeviationGrowsWithJitter(t *testing.T) {
	e := NewRTTEstimator()
	e.Update(100 * time.Millisecond)
	e.Update(100 * time.Millisecond)
	steady := e.Deviation()

	e.Update(500 * time.Millisecond)
	jittery := e.Deviation()
	assert.Greater(t, jittery, steady)
}

func TestClockOffsetMedianOdd(t *testing.T) {
	got := clockOffsetMedian([]time.Duration{30 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond})
	assert.Equal(t, 20*time.Millisecond, got)
}

func TestClockOffsetMedianEven(t *testing.T) {
	got := clockOffsetMedian([]time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 40 * time.Millisecond})
	assert.Equal(t, 25*time.Millisecond, got)
}

func TestClockOffsetMedianEmpty(t *testing.T) {
	assert.Equal(t, time.Duration(0), clockOffsetMedian(nil))
}
