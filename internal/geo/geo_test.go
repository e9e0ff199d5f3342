package geo

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestHaversineKm(t *testing.T) {
	london := Point{Lat: 51.5074, Lng: -0.1278}
	paris := Point{Lat: 48.8566, Lng: 2.3522}

	assert.InDelta(t, 343.5, HaversineKm(london, paris), 2)
	assert.InDelta(t, HaversineKm(london, paris), HaversineKm(paris, london), 1e-9)
	assert.Zero(t, HaversineKm(london, london))

	// quarter of the equator
	assert.InDelta(t, 10007.5, HaversineKm(Point{0, 0}, Point{0, 90}), 1)
}

func TestDistanceKm_UnknownEndpoint(t *testing.T) {
	a := &Point{Lat: 10, Lng: 10}
	assert.Nil(t, DistanceKm(a, nil))
	assert.Nil(t, DistanceKm(nil, a))
	require.NotNil(t, DistanceKm(a, a))
	assert.Zero(t, *DistanceKm(a, a))

	assert.Nil(t, NewPoint(ptr(1), nil))
	assert.Equal(t, &Point{Lat: 1, Lng: 2}, NewPoint(ptr(1), ptr(2)))
}

func TestTravelTime(t *testing.T) {
	tests := []struct {
		name     string
		distance *float64
		expected time.Duration
	}{
		{"500 km is one hour", ptr(500), time.Hour},
		{"1000 km is two hours", ptr(1000), 2 * time.Hour},
		{"zero distance", ptr(0), 0},
		{"unknown distance uses default", nil, 2 * time.Hour},
		{"negative distance uses default", ptr(-3), 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, float64(tt.expected), float64(TravelTime(tt.distance)), float64(time.Millisecond))
		})
	}
}

func TestReturnTime_QuarterOfFlownTime(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	// recalled 10 minutes into a 40 minute trip
	assert.Equal(t, 150*time.Second, ReturnTime(t0, t0.Add(10*time.Minute), 40*time.Minute))

	// recall at dispatch
	assert.Zero(t, ReturnTime(t0, t0, 40*time.Minute))

	// clock skew never produces a negative return
	assert.Zero(t, ReturnTime(t0, t0.Add(-time.Minute), 40*time.Minute))

	// capped at the outbound time
	assert.Equal(t, 10*time.Minute, ReturnTime(t0, t0.Add(2*time.Hour), 40*time.Minute))

	assert.Equal(t, t0.Add(10*time.Minute+150*time.Second),
		ReturnArrivalTime(t0, t0.Add(10*time.Minute), ptr(500.0*40/60)).Round(time.Millisecond))
}

func TestOutboundProgress(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	travel := 40 * time.Minute

	assert.Equal(t, 0.0, OutboundProgress(t0.Add(-time.Minute), t0, travel))
	assert.Equal(t, 0.0, OutboundProgress(t0, t0, travel))
	assert.InDelta(t, 25.0, OutboundProgress(t0.Add(10*time.Minute), t0, travel), 1e-9)
	assert.Equal(t, 100.0, OutboundProgress(t0.Add(travel), t0, travel))
	assert.Equal(t, 100.0, OutboundProgress(t0.Add(3*travel), t0, travel))
	assert.Equal(t, 100.0, OutboundProgress(t0, t0, 0))
}

func TestProgress_MonotonicAndClamped(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	recalled := t0.Add(10 * time.Minute)
	travel := 40 * time.Minute

	prevOut, prevRet := -1.0, -1.0
	for step := -10; step <= 120; step++ {
		now := t0.Add(time.Duration(step) * 30 * time.Second)

		out := OutboundProgress(now, t0, travel)
		ret := ReturnProgress(now, t0, recalled, travel)

		assert.GreaterOrEqual(t, out, prevOut)
		assert.GreaterOrEqual(t, ret, prevRet)
		assert.True(t, out >= 0 && out <= 100)
		assert.True(t, ret >= 0 && ret <= 100)
		prevOut, prevRet = out, ret
	}

	assert.Equal(t, 100.0, ReturnProgress(recalled.Add(150*time.Second), t0, recalled, travel))
	assert.Equal(t, 100.0, ReturnProgress(t0, t0, t0, travel))
}

func TestRemaining(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.InDelta(t, float64(30*time.Minute), float64(RemainingOutbound(t0.Add(30*time.Minute), t0, ptr(500))), float64(time.Millisecond))
	assert.Zero(t, RemainingOutbound(t0.Add(2*time.Hour), t0, ptr(500)))
	assert.Zero(t, RemainingReturn(t0.Add(time.Hour), t0, t0.Add(10*time.Minute), ptr(500)))
}

func TestGreatCirclePath(t *testing.T) {
	a := Point{Lat: 0, Lng: 0}
	b := Point{Lat: 0, Lng: 90}

	path := GreatCirclePath(a, b, 4)
	require.Len(t, path, 5)
	assert.Equal(t, a, path[0])
	assert.Equal(t, b, path[4])
	assert.InDelta(t, 0, path[2].Lat, 1e-9)
	assert.InDelta(t, 45, path[2].Lng, 1e-9)

	same := GreatCirclePath(a, a, 10)
	assert.Equal(t, []Point{a, a}, same)

	assert.Len(t, GreatCirclePath(a, b, 0), 2)
}

func TestPositionAlongPath(t *testing.T) {
	path := GreatCirclePath(Point{0, 0}, Point{0, 90}, DefaultPathSamples)

	start := PositionAlongPath(path, 0)
	mid := PositionAlongPath(path, 50)
	end := PositionAlongPath(path, 100)

	assert.Equal(t, path[0], start)
	assert.Equal(t, path[len(path)-1], end)
	assert.InDelta(t, 45, mid.Lng, 0.01)
	assert.InDelta(t, 0, mid.Lat, 0.01)

	// out of range progress is clamped
	assert.Equal(t, start, PositionAlongPath(path, -20))
	assert.Equal(t, end, PositionAlongPath(path, 250))

	assert.Equal(t, Point{}, PositionAlongPath(nil, 50))
	assert.Equal(t, Point{Lat: 3, Lng: 4}, PositionAlongPath([]Point{{3, 4}}, 50))
}

func TestPositionAlongPath_Antimeridian(t *testing.T) {
	path := []Point{{Lat: 0, Lng: 170}, {Lat: 0, Lng: -170}}
	mid := PositionAlongPath(path, 50)
	assert.InDelta(t, 180, abs(mid.Lng), 0.01)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestFormatETA(t *testing.T) {
	durations := []time.Duration{
		0,
		-5 * time.Second,
		500 * time.Millisecond,
		45 * time.Second,
		5*time.Minute + 30*time.Second,
		59*time.Minute + 59*time.Second,
		2 * time.Hour,
		2*time.Hour + 15*time.Minute,
		27 * time.Hour,
		72 * time.Hour,
	}

	var buf bytes.Buffer
	for _, d := range durations {
		fmt.Fprintf(&buf, "%s => %s\n", d, FormatETA(d))
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "format_eta", buf.Bytes())
}
