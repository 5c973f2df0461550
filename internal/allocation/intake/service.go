// Package intake applies normalized lead events from upstream sources:
// created events insert a lead with its first phone record, updated events
// patch an existing lead and extend its phone history.
package intake

import (
	"context"
	"strings"
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/repository"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/geo"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/phone"
	"leadrouter_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Kind is the lead event type.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
)

// Event is one lead event.
type Event struct {
	Kind   Kind
	Fields domain.LeadFields
}

// Result describes what an event did.
type Result struct {
	Lead         domain.Lead
	Created      bool
	PhoneChanged bool
	Geocoded     bool
}

// Geocoder places a free-text address.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (geo.Point, bool, error)
}

// Config holds the intake settings.
type Config struct {
	PhoneRegion string
}

// Service applies lead events.
type Service struct {
	repo     repository.Repository
	geocoder Geocoder
	cfg      Config
	log      *logger.Logger
	now      func() time.Time
}

// New creates an intake service. geocoder may be nil.
func New(repo repository.Repository, geocoder Geocoder, cfg Config, log *logger.Logger) *Service {
	if cfg.PhoneRegion == "" {
		cfg.PhoneRegion = phone.DefaultRegion
	}
	return &Service{repo: repo, geocoder: geocoder, cfg: cfg, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Apply dispatches an event by kind.
func (s *Service) Apply(ctx context.Context, ev Event) (Result, error) {
	fields := clean(ev.Fields)
	switch ev.Kind {
	case KindCreated:
		return s.create(ctx, fields)
	case KindUpdated:
		return s.update(ctx, fields)
	default:
		return Result{}, apperr.Validation("unknown lead event kind").WithOp("intake.Apply")
	}
}

func (s *Service) create(ctx context.Context, fields domain.LeadFields) (Result, error) {
	if fields.SegmentID == nil {
		segmentID, err := s.repo.DefaultSegmentID(ctx)
		if err != nil {
			return Result{}, err
		}
		fields.SegmentID = &segmentID
	}

	now := s.now()
	lead, rec, err := domain.NewLead(fields, s.cfg.PhoneRegion, now)
	if err != nil {
		return Result{}, err
	}

	geocoded := s.fillCoordinates(ctx, &lead)

	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertLead(ctx, lead); err != nil {
			return err
		}
		return tx.InsertPhoneRecord(ctx, rec)
	})
	if err != nil {
		return Result{}, err
	}

	s.log.WithContext(ctx).Info("lead created", "lead_id", lead.ID.String(), "geocoded", geocoded)
	return Result{Lead: lead, Created: true, PhoneChanged: true, Geocoded: geocoded}, nil
}

// fillCoordinates geocodes a lead that has an address but no coordinates.
// Failures leave the lead unplaced; it simply matches no store.
func (s *Service) fillCoordinates(ctx context.Context, lead *domain.Lead) bool {
	if s.geocoder == nil || !lead.HasAddress() {
		return false
	}
	if _, ok := lead.Point(); ok {
		return false
	}

	p, ok, err := s.geocoder.Geocode(ctx, addressQuery(*lead))
	if err != nil {
		s.log.WithContext(ctx).Warn("lead geocoding failed", "lead_id", lead.ID.String(), "error", err)
		return false
	}
	if !ok {
		return false
	}
	lat, lon := p.Lat, p.Lon
	lead.Latitude, lead.Longitude = &lat, &lon
	return true
}

func addressQuery(lead domain.Lead) string {
	var parts []string
	for _, part := range []*string{lead.Address, lead.City, lead.State, lead.ZipCode} {
		if part != nil && *part != "" {
			parts = append(parts, *part)
		}
	}
	return strings.Join(parts, ", ")
}

func (s *Service) update(ctx context.Context, fields domain.LeadFields) (Result, error) {
	existing, err := s.resolve(ctx, fields)
	if err != nil {
		return Result{}, err
	}

	var (
		lead domain.Lead
		rec  *domain.PhoneRecord
	)
	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		var err error
		lead, err = tx.GetLead(ctx, existing.ID)
		if err != nil {
			return err
		}
		rec, err = lead.ApplyUpdate(fields, s.cfg.PhoneRegion, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateLead(ctx, lead); err != nil {
			return err
		}
		if rec != nil {
			return tx.InsertPhoneRecord(ctx, *rec)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.log.WithContext(ctx).Info("lead updated", "lead_id", lead.ID.String(), "phone_changed", rec != nil)
	return Result{Lead: lead, PhoneChanged: rec != nil}, nil
}

// resolve finds the lead an update refers to: by external id first, then by
// email, then by the raw phone.
func (s *Service) resolve(ctx context.Context, fields domain.LeadFields) (domain.Lead, error) {
	type lookup func() (domain.Lead, error)

	var lookups []lookup
	if present(fields.ExternalID) {
		lookups = append(lookups, func() (domain.Lead, error) {
			return s.repo.FindLeadByExternalID(ctx, *fields.ExternalID, fields.ExternalSource)
		})
	}
	if present(fields.Email) {
		lookups = append(lookups, func() (domain.Lead, error) {
			return s.repo.FindLeadByEmail(ctx, *fields.Email)
		})
	}
	if present(fields.Phone) {
		lookups = append(lookups, func() (domain.Lead, error) {
			return s.repo.FindLeadByPhone(ctx, *fields.Phone)
		})
	}

	for _, find := range lookups {
		lead, err := find()
		if err == nil {
			return lead, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return domain.Lead{}, err
		}
	}
	return domain.Lead{}, apperr.NotFound("lead not found").WithOp("intake.update")
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func clean(f domain.LeadFields) domain.LeadFields {
	f.Name = sanitize.TextPtr(f.Name)
	f.Email = sanitize.Email(f.Email)
	f.City = sanitize.TextPtr(f.City)
	f.State = sanitize.TextPtr(f.State)
	f.Address = sanitize.TextPtr(f.Address)
	return f
}

// RenormalizeReport summarises a phone key backfill.
type RenormalizeReport struct {
	Scanned int
	Changed int
}

// RenormalizePhones recomputes every stored exclusivity key from the raw
// phone. With dryRun set nothing is written.
func (s *Service) RenormalizePhones(ctx context.Context, dryRun bool, batchSize int) (RenormalizeReport, error) {
	if batchSize < 1 {
		batchSize = 500
	}

	var (
		report RenormalizeReport
		after  uuid.UUID
	)
	for {
		records, err := s.repo.ListPhoneRecords(ctx, after, batchSize)
		if err != nil {
			return report, err
		}
		if len(records) == 0 {
			return report, nil
		}
		after = records[len(records)-1].ID
		report.Scanned += len(records)

		var stale []domain.PhoneRecord
		for _, rec := range records {
			if normalized := phone.Normalize(rec.Original); normalized != rec.Normalized {
				rec.Normalized = normalized
				stale = append(stale, rec)
			}
		}
		report.Changed += len(stale)

		if dryRun || len(stale) == 0 {
			continue
		}
		err = s.repo.InTx(ctx, func(tx repository.Tx) error {
			for _, rec := range stale {
				if err := tx.UpdatePhoneNormalized(ctx, rec.ID, rec.Normalized); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return report, err
		}
	}
}

// GeocodeReport summarises a coordinate backfill.
type GeocodeReport struct {
	Scanned  int
	Geocoded int
}

// GeocodeUnplaced places stored leads that have an address but no
// coordinates. Leads the geocoder cannot place are skipped and retried on the
// next run. With dryRun set nothing is written.
func (s *Service) GeocodeUnplaced(ctx context.Context, dryRun bool, batchSize int) (GeocodeReport, error) {
	if s.geocoder == nil {
		return GeocodeReport{}, apperr.BadRequest("geocoder is not configured").WithOp("intake.GeocodeUnplaced")
	}
	if batchSize < 1 {
		batchSize = 100
	}

	var (
		report GeocodeReport
		after  uuid.UUID
	)
	for {
		leads, err := s.repo.ListUnplacedLeads(ctx, after, batchSize)
		if err != nil {
			return report, err
		}
		if len(leads) == 0 {
			return report, nil
		}
		after = leads[len(leads)-1].ID
		report.Scanned += len(leads)

		for _, lead := range leads {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if !s.fillCoordinates(ctx, &lead) {
				continue
			}
			report.Geocoded++
			if dryRun {
				continue
			}
			lead.UpdatedAt = s.now()
			err := s.repo.InTx(ctx, func(tx repository.Tx) error {
				return tx.UpdateLead(ctx, lead)
			})
			if err != nil {
				return report, err
			}
		}
	}
}
