// Package geo holds great-circle helpers shared by matching and its SQL queries.
// This is part of the platform layer and contains no business logic.
package geo

import "math"

// EarthRadiusKm is the sphere radius PostgreSQL's earthdistance module uses
// (earth() returns 6378168 metres). Keeping the same value means Go and SQL
// agree on which locations are inside a coverage radius.
const EarthRadiusKm = 6378.168

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Valid reports whether the point lies within the WGS84 coordinate ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lon)
}

// DistanceKm returns the haversine distance between two points in kilometres.
func DistanceKm(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Within reports whether b lies inside a circle of radiusKm around a.
func Within(a, b Point, radiusKm float64) bool {
	return DistanceKm(a, b) <= radiusKm
}

// BoundingBox is the lat/lon rectangle enclosing a circle. It mirrors the
// earth_box prefilter used by the SQL queries.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoxAround returns a box that fully contains the circle of radiusKm around p.
// Near the poles the longitude span widens to the full range.
func BoxAround(p Point, radiusKm float64) BoundingBox {
	angular := radiusKm / EarthRadiusKm
	dLat := degrees(angular)

	box := BoundingBox{
		MinLat: math.Max(p.Lat-dLat, -90),
		MaxLat: math.Min(p.Lat+dLat, 90),
		MinLon: -180,
		MaxLon: 180,
	}

	cosLat := math.Cos(radians(p.Lat))
	if cosLat > 1e-9 {
		ratio := math.Sin(angular) / cosLat
		if ratio < 1 {
			dLon := degrees(math.Asin(ratio))
			box.MinLon = p.Lon - dLon
			box.MaxLon = p.Lon + dLon
		}
	}

	return box
}

// Contains reports whether p falls inside the box.
func (b BoundingBox) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.MinLon <= -180 && b.MaxLon >= 180 {
		return true
	}
	lon := p.Lon
	if lon < b.MinLon {
		lon += 360
	} else if lon > b.MaxLon {
		lon -= 360
	}
	return lon >= b.MinLon && lon <= b.MaxLon
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
