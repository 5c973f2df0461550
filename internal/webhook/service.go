package webhook

import (
	"context"
	"strings"
	"time"

	"leadrouter_backend/internal/allocation/intake"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

// LeadEventApplier applies lead events. Satisfied by *intake.Service.
type LeadEventApplier interface {
	Apply(ctx context.Context, ev intake.Event) (intake.Result, error)
}

// Service issues source keys and forwards authenticated lead events.
type Service struct {
	keys   KeyStore
	intake LeadEventApplier
	log    *logger.Logger
	now    func() time.Time
}

// NewService creates a webhook service.
func NewService(keys KeyStore, applier LeadEventApplier, log *logger.Logger) *Service {
	return &Service{keys: keys, intake: applier, log: log, now: time.Now}
}

// IssuedKey is a freshly created key with its plaintext, shown once.
type IssuedKey struct {
	SourceKey
	Plaintext string
}

// CreateKey issues a key for source.
func (s *Service) CreateKey(ctx context.Context, source, name string) (IssuedKey, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	name = strings.TrimSpace(name)
	if source == "" || name == "" {
		return IssuedKey{}, apperr.Validation("source and name are required").WithOp("webhook.CreateKey")
	}

	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		return IssuedKey{}, apperr.Wrap(apperr.KindInternal, "generate API key", err)
	}

	now := s.now()
	key := SourceKey{
		ID:        uuid.New(),
		Source:    source,
		Name:      name,
		KeyHash:   hash,
		KeyPrefix: prefix,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return IssuedKey{}, err
	}

	s.log.WithContext(ctx).Info("source key created", "key_id", key.ID.String(), "source", source)
	return IssuedKey{SourceKey: key, Plaintext: plaintext}, nil
}

func (s *Service) ListKeys(ctx context.Context) ([]SourceKey, error) {
	return s.keys.List(ctx)
}

func (s *Service) RevokeKey(ctx context.Context, id uuid.UUID) error {
	if err := s.keys.Revoke(ctx, id, s.now()); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("source key revoked", "key_id", id.String())
	return nil
}

// Submit applies an event pushed by source. The key's source fills the
// lead's external source when the event does not name one.
func (s *Service) Submit(ctx context.Context, source string, ev intake.Event) (intake.Result, error) {
	if ev.Fields.ExternalSource == nil || strings.TrimSpace(*ev.Fields.ExternalSource) == "" {
		src := source
		ev.Fields.ExternalSource = &src
	}
	return s.intake.Apply(ctx, ev)
}
