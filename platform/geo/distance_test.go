package geo

import (
	"math"
	"testing"
)

var (
	saoPaulo = Point{Lat: -23.5505, Lon: -46.6333}
	rio      = Point{Lat: -22.9068, Lon: -43.1729}
)

func TestDistanceSamePointIsZero(t *testing.T) {
	if d := DistanceKm(saoPaulo, saoPaulo); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
	if !Within(saoPaulo, saoPaulo, 10) {
		t.Fatal("expected point to be inside its own radius")
	}
}

func TestDistanceSaoPauloRio(t *testing.T) {
	d := DistanceKm(saoPaulo, rio)
	if d < 350 || d > 365 {
		t.Fatalf("expected roughly 360km, got %f", d)
	}
	if Within(saoPaulo, rio, 10) {
		t.Fatal("rio must be outside a 10km radius around sao paulo")
	}
	if math.Abs(d-DistanceKm(rio, saoPaulo)) > 1e-9 {
		t.Fatal("distance must be symmetric")
	}
}

func TestBoxAroundContainsCircle(t *testing.T) {
	box := BoxAround(saoPaulo, 200)
	if !box.Contains(saoPaulo) {
		t.Fatal("box must contain its centre")
	}
	if box.Contains(rio) {
		t.Fatal("rio is ~360km away and must fall outside a 200km box")
	}

	// A point 199km due east must be inside the box.
	east := Point{Lat: saoPaulo.Lat, Lon: saoPaulo.Lon + 1.9}
	if DistanceKm(saoPaulo, east) > 200 {
		t.Fatalf("test point too far: %f", DistanceKm(saoPaulo, east))
	}
	if !box.Contains(east) {
		t.Fatal("expected point within radius to be inside box")
	}
}

func TestPointValid(t *testing.T) {
	if !saoPaulo.Valid() {
		t.Fatal("expected valid point")
	}
	if (Point{Lat: 91, Lon: 0}).Valid() {
		t.Fatal("latitude above 90 must be invalid")
	}
	if (Point{Lat: math.NaN(), Lon: 0}).Valid() {
		t.Fatal("NaN must be invalid")
	}
}
