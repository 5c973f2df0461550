package domain

import (
	"testing"

	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/geo"
)

func TestLocationValidateRadiusBounds(t *testing.T) {
	bounds := RadiusBounds{MinKm: 10, MaxKm: 200}

	loc := StoreLocation{Latitude: -23.5505, Longitude: -46.6333}
	if err := loc.Validate(bounds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.CoverageRadiusKm != DefaultCoverageRadiusKm {
		t.Fatalf("expected default radius, got %f", loc.CoverageRadiusKm)
	}

	loc.CoverageRadiusKm = 5
	if err := loc.Validate(bounds); !apperr.Is(err, apperr.KindBusinessRule) {
		t.Fatalf("expected radius below minimum to break a business rule, got %v", err)
	}

	loc.CoverageRadiusKm = 250
	if err := loc.Validate(bounds); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected radius above maximum to fail validation, got %v", err)
	}
}

func TestLocationCovers(t *testing.T) {
	loc := StoreLocation{Latitude: -23.5505, Longitude: -46.6333, CoverageRadiusKm: 10}

	if d, ok := loc.Covers(geo.Point{Lat: -23.5505, Lon: -46.6333}); !ok || d != 0 {
		t.Fatalf("expected same point to be covered at 0km, got %f %v", d, ok)
	}
	if _, ok := loc.Covers(geo.Point{Lat: -22.9068, Lon: -43.1729}); ok {
		t.Fatal("expected rio to be outside a 10km radius")
	}
}
