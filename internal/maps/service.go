// Package maps geocodes free-text addresses through Nominatim. Lead intake
// uses it to place leads that arrive without coordinates, and operators use
// the lookup endpoint when registering store locations.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadrouter_backend/platform/geo"
	"leadrouter_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	userAgent           = "LeadRouter/1.0"
	suggestionLimit     = 5
)

// Service queries Nominatim. Requests are throttled to the public usage
// policy of one request per second.
type Service struct {
	client       *http.Client
	baseURL      string
	countryCodes string
	limiter      *rate.Limiter
	log          *logger.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithBaseURL points the service at another Nominatim instance.
func WithBaseURL(u string) Option {
	return func(s *Service) { s.baseURL = u }
}

// WithRateLimit replaces the request throttle.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Service) { s.limiter = rate.NewLimiter(limit, burst) }
}

// NewService creates a geocoder restricted to the given ISO country codes
// (comma separated, empty for no restriction).
func NewService(countryCodes string, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		client:       &http.Client{Timeout: 5 * time.Second},
		baseURL:      defaultNominatimURL,
		countryCodes: strings.ToLower(strings.TrimSpace(countryCodes)),
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		log:          log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchAddress returns up to five street-level suggestions.
func (s *Service) SearchAddress(ctx context.Context, query string) ([]AddressSuggestion, error) {
	rawResults, err := s.search(ctx, query, suggestionLimit)
	if err != nil {
		return nil, err
	}

	suggestions := make([]AddressSuggestion, 0, len(rawResults))
	for _, raw := range rawResults {
		suggestion, ok := buildSuggestion(raw)
		if !ok {
			continue
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, nil
}

// Geocode resolves the best match for query. It reports false when nothing
// matched.
func (s *Service) Geocode(ctx context.Context, query string) (geo.Point, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return geo.Point{}, false, nil
	}

	rawResults, err := s.search(ctx, query, 1)
	if err != nil {
		return geo.Point{}, false, err
	}
	for _, raw := range rawResults {
		if p, ok := parsePoint(raw); ok {
			return p, true, nil
		}
	}
	return geo.Point{}, false, nil
}

func (s *Service) search(ctx context.Context, query string, limit int) ([]nominatimResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("format", "json")
	params.Add("addressdetails", "1")
	params.Add("limit", strconv.Itoa(limit))
	if s.countryCodes != "" {
		params.Add("countrycodes", s.countryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("nominatim request failed", "error", err)
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		s.log.Error("nominatim upstream error", "status", resp.StatusCode)
		return nil, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var rawResults []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResults); err != nil {
		s.log.Error("failed to decode nominatim payload", "error", err)
		return nil, err
	}
	return rawResults, nil
}

func parsePoint(raw nominatimResponse) (geo.Point, bool) {
	lat, errLat := strconv.ParseFloat(raw.Lat, 64)
	lon, errLon := strconv.ParseFloat(raw.Lon, 64)
	if errLat != nil || errLon != nil {
		return geo.Point{}, false
	}
	p := geo.Point{Lat: lat, Lon: lon}
	return p, p.Valid()
}

func buildSuggestion(raw nominatimResponse) (AddressSuggestion, bool) {
	if raw.Address.Road == "" {
		return AddressSuggestion{}, false
	}
	city := pickCity(raw.Address)
	if city == "" {
		return AddressSuggestion{}, false
	}
	p, ok := parsePoint(raw)
	if !ok {
		return AddressSuggestion{}, false
	}

	suggestion := AddressSuggestion{
		Street:      raw.Address.Road,
		HouseNumber: raw.Address.HouseNumber,
		District:    raw.Address.Suburb,
		ZipCode:     raw.Address.Postcode,
		City:        city,
		State:       raw.Address.State,
		Latitude:    p.Lat,
		Longitude:   p.Lon,
	}
	suggestion.Label = buildLabel(suggestion)
	return suggestion, true
}

func pickCity(address nominatimAddress) string {
	for _, candidate := range []string{address.City, address.Town, address.Village, address.Municipality} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// buildLabel renders "Street, 123 - District, City - State, 01310-100".
func buildLabel(s AddressSuggestion) string {
	label := s.Street
	if s.HouseNumber != "" {
		label += ", " + s.HouseNumber
	}
	if s.District != "" {
		label += " - " + s.District
	}
	label += ", " + s.City
	if s.State != "" {
		label += " - " + s.State
	}
	if s.ZipCode != "" {
		label += ", " + s.ZipCode
	}
	return label
}
