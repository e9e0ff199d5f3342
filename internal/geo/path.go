package geo

import "math"

// DefaultPathSamples is the number of segments used when sampling a route.
const DefaultPathSamples = 64

// GreatCirclePath samples the great circle between a and b into samples+1
// points, endpoints included. Coincident endpoints yield a two-point path.
func GreatCirclePath(a, b Point, samples int) []Point {
	if samples < 1 {
		samples = 1
	}

	lat1, lng1 := toRad(a.Lat), toRad(a.Lng)
	lat2, lng2 := toRad(b.Lat), toRad(b.Lng)
	d := HaversineKm(a, b) / EarthRadiusKm

	if d == 0 {
		return []Point{a, b}
	}

	path := make([]Point, 0, samples+1)
	sinD := math.Sin(d)
	for i := 0; i <= samples; i++ {
		f := float64(i) / float64(samples)
		A := math.Sin((1-f)*d) / sinD
		B := math.Sin(f*d) / sinD

		x := A*math.Cos(lat1)*math.Cos(lng1) + B*math.Cos(lat2)*math.Cos(lng2)
		y := A*math.Cos(lat1)*math.Sin(lng1) + B*math.Cos(lat2)*math.Sin(lng2)
		z := A*math.Sin(lat1) + B*math.Sin(lat2)

		path = append(path, Point{
			Lat: toDeg(math.Atan2(z, math.Sqrt(x*x+y*y))),
			Lng: toDeg(math.Atan2(y, x)),
		})
	}
	// pin the endpoints so rounding never moves them
	path[0] = a
	path[len(path)-1] = b
	return path
}

// PositionAlongPath returns the coordinate at progressPercent of the path's
// total arc length. Progress is clamped to [0,100].
func PositionAlongPath(path []Point, progressPercent float64) Point {
	switch len(path) {
	case 0:
		return Point{}
	case 1:
		return path[0]
	}

	f := clamp01(progressPercent / 100)
	if f == 0 {
		return path[0]
	}
	if f == 1 {
		return path[len(path)-1]
	}

	segments := make([]float64, len(path)-1)
	total := 0.0
	for i := 0; i < len(path)-1; i++ {
		segments[i] = HaversineKm(path[i], path[i+1])
		total += segments[i]
	}
	if total == 0 {
		return path[0]
	}

	target := f * total
	walked := 0.0
	for i, seg := range segments {
		if walked+seg >= target {
			if seg == 0 {
				return path[i]
			}
			t := (target - walked) / seg
			return Point{
				Lat: path[i].Lat + (path[i+1].Lat-path[i].Lat)*t,
				Lng: lerpLng(path[i].Lng, path[i+1].Lng, t),
			}
		}
		walked += seg
	}
	return path[len(path)-1]
}

// lerpLng interpolates longitudes along the short way round the antimeridian.
func lerpLng(from, to, t float64) float64 {
	delta := to - from
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	lng := from + delta*t
	if lng > 180 {
		lng -= 360
	} else if lng < -180 {
		lng += 360
	}
	return lng
}
