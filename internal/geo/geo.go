// Package geo holds the distance, travel time, progress and path math shared by
// the transit state machine and the messenger projection. Every caller that
// needs a speed, a return fraction or an unknown-distance fallback must read it
// from here so server arrival checks and client progress bars agree.
package geo

import (
	"math"
	"time"
)

const (
	// EarthRadiusKm is the mean Earth radius used by the haversine formula.
	EarthRadiusKm = 6371.0

	// SpeedKmPerHour is the constant courier speed for both legs of a trip.
	SpeedKmPerHour = 500.0

	// SpeedKmPerMs is SpeedKmPerHour expressed per millisecond.
	SpeedKmPerMs = SpeedKmPerHour / 60 / 60 / 1000

	// DefaultDistanceKm stands in for a trip whose endpoints were unknown at dispatch.
	DefaultDistanceKm = 1000.0

	// ReturnFraction is the share of the outbound time already flown that the
	// return leg takes after a recall.
	ReturnFraction = 0.25

	// FormulaVersion identifies the constants above. Clients compare it against
	// their own copy to detect drift.
	FormulaVersion = "2024-01.speed500.return25.default1000"
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPoint returns nil unless both coordinates are known.
func NewPoint(lat, lng *float64) *Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &Point{Lat: *lat, Lng: *lng}
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// HaversineKm is the great-circle distance between a and b in kilometers.
func HaversineKm(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// DistanceKm returns nil ("unknown distance") when either endpoint is missing.
func DistanceKm(a, b *Point) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := HaversineKm(*a, *b)
	return &d
}

// TravelTime is the outbound flight duration for a distance. A nil or negative
// distance falls back to DefaultDistanceKm.
func TravelTime(distanceKm *float64) time.Duration {
	d := DefaultDistanceKm
	if distanceKm != nil && *distanceKm >= 0 {
		d = *distanceKm
	}
	return msToDuration(d / SpeedKmPerMs)
}

// ReturnTime is how long the courier needs to fly back after a recall: a
// fixed fraction of the outbound time elapsed before the recall, capped at the
// full outbound travel time. A recall at or before dispatch yields zero.
func ReturnTime(dispatchedAt, recalledAt time.Time, travelTime time.Duration) time.Duration {
	flown := recalledAt.Sub(dispatchedAt)
	if flown <= 0 {
		return 0
	}
	if travelTime > 0 && flown > travelTime {
		flown = travelTime
	}
	return time.Duration(float64(flown) * ReturnFraction)
}

// ArrivalTime is when an outbound trip lands.
func ArrivalTime(dispatchedAt time.Time, distanceKm *float64) time.Time {
	return dispatchedAt.Add(TravelTime(distanceKm))
}

// ReturnArrivalTime is when a recalled courier is back with the sender.
func ReturnArrivalTime(dispatchedAt, recalledAt time.Time, distanceKm *float64) time.Time {
	return recalledAt.Add(ReturnTime(dispatchedAt, recalledAt, TravelTime(distanceKm)))
}

// OutboundProgress is the percentage [0,100] of the outbound leg flown at now.
func OutboundProgress(now, dispatchedAt time.Time, travelTime time.Duration) float64 {
	if travelTime <= 0 {
		return 100
	}
	return clamp01(float64(now.Sub(dispatchedAt))/float64(travelTime)) * 100
}

// ReturnProgress is the percentage [0,100] of the return leg flown at now.
// A zero-length return counts as complete.
func ReturnProgress(now, dispatchedAt, recalledAt time.Time, travelTime time.Duration) float64 {
	returnTime := ReturnTime(dispatchedAt, recalledAt, travelTime)
	if returnTime <= 0 {
		return 100
	}
	return clamp01(float64(now.Sub(recalledAt))/float64(returnTime)) * 100
}

// RemainingOutbound is the time left until arrival, never negative.
func RemainingOutbound(now, dispatchedAt time.Time, distanceKm *float64) time.Duration {
	return nonNegative(ArrivalTime(dispatchedAt, distanceKm).Sub(now))
}

// RemainingReturn is the time left until a recalled courier is home, never negative.
func RemainingReturn(now, dispatchedAt, recalledAt time.Time, distanceKm *float64) time.Duration {
	return nonNegative(ReturnArrivalTime(dispatchedAt, recalledAt, distanceKm).Sub(now))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}
