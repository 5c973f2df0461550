package maps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadrouter_backend/platform/logger"

	"golang.org/x/time/rate"
)

const paulistaPayload = `[
  {
    "display_name": "Avenida Paulista, 1578, Bela Vista, São Paulo",
    "lat": "-23.5613",
    "lon": "-46.6565",
    "address": {
      "road": "Avenida Paulista",
      "house_number": "1578",
      "suburb": "Bela Vista",
      "postcode": "01310-200",
      "city": "São Paulo",
      "state": "São Paulo"
    }
  },
  {
    "display_name": "Somewhere without a road",
    "lat": "-23.0",
    "lon": "-46.0",
    "address": {"city": "Campinas"}
  }
]`

func newTestService(t *testing.T, status int, body string, seen *http.Request) *Service {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = *r
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return NewService("BR", logger.New("test"), WithBaseURL(server.URL), WithRateLimit(rate.Inf, 1))
}

func TestSearchAddressBuildsSuggestions(t *testing.T) {
	var seen http.Request
	svc := newTestService(t, http.StatusOK, paulistaPayload, &seen)

	results, err := svc.SearchAddress(context.Background(), "Avenida Paulista 1578")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(results))
	}

	got := results[0]
	if got.Label != "Avenida Paulista, 1578 - Bela Vista, São Paulo - São Paulo, 01310-200" {
		t.Fatalf("unexpected label %q", got.Label)
	}
	if got.Latitude != -23.5613 || got.Longitude != -46.6565 {
		t.Fatalf("unexpected coordinates %v,%v", got.Latitude, got.Longitude)
	}

	query := seen.URL.Query()
	if query.Get("countrycodes") != "br" || query.Get("limit") != "5" {
		t.Fatalf("unexpected query %v", query)
	}
	if seen.Header.Get("User-Agent") == "" {
		t.Fatal("expected a user agent")
	}
}

func TestGeocodeReturnsFirstPoint(t *testing.T) {
	svc := newTestService(t, http.StatusOK, paulistaPayload, nil)

	p, ok, err := svc.Geocode(context.Background(), "Avenida Paulista 1578, São Paulo")
	if err != nil || !ok {
		t.Fatalf("expected a match, got ok=%v err=%v", ok, err)
	}
	if p.Lat != -23.5613 || p.Lon != -46.6565 {
		t.Fatalf("unexpected point %+v", p)
	}
}

func TestGeocodeNoMatch(t *testing.T) {
	svc := newTestService(t, http.StatusOK, `[]`, nil)

	_, ok, err := svc.Geocode(context.Background(), "nowhere")
	if err != nil || ok {
		t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
	}

	_, ok, err = svc.Geocode(context.Background(), "   ")
	if err != nil || ok {
		t.Fatalf("blank query must not match, got ok=%v err=%v", ok, err)
	}
}

func TestGeocodeUpstreamError(t *testing.T) {
	svc := newTestService(t, http.StatusServiceUnavailable, `busy`, nil)

	if _, _, err := svc.Geocode(context.Background(), "Rua Augusta"); err == nil {
		t.Fatal("expected an upstream error")
	}
}

func TestGeocodeHonoursCancelledContext(t *testing.T) {
	svc := NewService("br", logger.New("test"), WithBaseURL("http://127.0.0.1:1"), WithRateLimit(rate.Limit(0.001), 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := svc.Geocode(ctx, "Rua Augusta"); err == nil {
		t.Fatal("expected the cancelled context to stop the request")
	}
}
