package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopWindow_FiresAtFirstSlowPoint(t *testing.T) {
	det := NewStopWindowDetector(DefaultStopWindowConfig())

	for sec := 0; sec < 300; sec += 60 {
		_, fired := det.Feed(pt(sec, sceneLat, sceneLon, 2, true))
		require.False(t, fired, "fired early at %ds", sec)
	}

	sig, fired := det.Feed(pt(300, sceneLat, sceneLon+0.0002, 1, true))
	require.True(t, fired)
	assert.True(t, sig.Timestamp.Equal(t0))
	assert.Equal(t, sceneLat, sig.Position.Lat)
	assert.Equal(t, sceneLon, sig.Position.Lon)
	assert.Equal(t, 0, det.Len(), "window is cleared after firing")
}

func TestStopWindow_SinglePointNeverFires(t *testing.T) {
	det := NewStopWindowDetector(StopWindowConfig{SlowSpeed: 5, MinDwell: 0, MaxRadiusKm: 1})
	_, fired := det.Feed(pt(0, sceneLat, sceneLon, 0, true))
	assert.False(t, fired)
}

func TestStopWindow_FastPointResets(t *testing.T) {
	det := NewStopWindowDetector(DefaultStopWindowConfig())

	det.Feed(pt(0, sceneLat, sceneLon, 0, true))
	det.Feed(pt(200, sceneLat, sceneLon, 0, true))
	require.Equal(t, 2, det.Len())

	_, fired := det.Feed(pt(250, sceneLat, sceneLon, 5, true))
	assert.False(t, fired, "speed equal to the threshold is not slow")
	assert.Equal(t, 0, det.Len())

	_, fired = det.Feed(pt(310, sceneLat, sceneLon, 0, true))
	assert.False(t, fired, "dwell restarts after a reset")
}

func TestStopWindow_RadiusExceeded(t *testing.T) {
	det := NewStopWindowDetector(DefaultStopWindowConfig())

	det.Feed(pt(0, sceneLat, sceneLon, 1, true))
	// ~111m north of the anchor
	_, fired := det.Feed(pt(400, sceneLat+0.001, sceneLon, 1, true))
	assert.False(t, fired)
	assert.Equal(t, 2, det.Len())

	// drifting back inside the radius fires against the original anchor
	sig, fired := det.Feed(pt(430, sceneLat+0.0001, sceneLon, 1, true))
	require.True(t, fired)
	assert.True(t, sig.Timestamp.Equal(t0))
}

func TestStopWindow_LongDwellWrapsRing(t *testing.T) {
	det := NewStopWindowDetector(DefaultStopWindowConfig())

	// 1Hz samples: 300 points before the dwell is reached, far beyond ring capacity.
	for sec := 0; sec < 300; sec++ {
		_, fired := det.Feed(pt(sec, sceneLat, sceneLon, 0, true))
		require.False(t, fired)
	}
	assert.Equal(t, 300, det.Len())

	sig, fired := det.Feed(pt(300, sceneLat, sceneLon, 0, true))
	require.True(t, fired)
	assert.True(t, sig.Timestamp.Equal(t0))
}

func TestStopWindow_Reset(t *testing.T) {
	det := NewStopWindowDetector(StopWindowConfig{SlowSpeed: 5, MinDwell: time.Minute, MaxRadiusKm: 0.05})
	det.Feed(pt(0, sceneLat, sceneLon, 0, true))
	det.Reset()

	_, fired := det.Feed(pt(60, sceneLat, sceneLon, 0, true))
	assert.False(t, fired, "a reset window must not remember the old anchor")
}
