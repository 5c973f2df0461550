package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"leadrouter_backend/internal/allocation/allocationtest"
	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/intake"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 20, 8, 0, 0, 0, time.UTC)

type memKeys struct {
	mu   sync.Mutex
	keys map[uuid.UUID]SourceKey
}

func newMemKeys() *memKeys { return &memKeys{keys: map[uuid.UUID]SourceKey{}} }

func (m *memKeys) Create(_ context.Context, key SourceKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key.ID] = key
	return nil
}

func (m *memKeys) GetByHash(_ context.Context, hash string) (SourceKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.KeyHash == hash && k.IsActive {
			return k, nil
		}
	}
	return SourceKey{}, apperr.NotFound(keyNotFoundMsg)
}

func (m *memKeys) List(context.Context) ([]SourceKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SourceKey, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memKeys) Revoke(_ context.Context, id uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return apperr.NotFound(keyNotFoundMsg)
	}
	k.IsActive = false
	k.UpdatedAt = now
	m.keys[id] = k
	return nil
}

type harness struct {
	repo   *allocationtest.Repo
	svc    *Service
	engine *gin.Engine
}

func newHarness(t *testing.T) harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := allocationtest.New()
	log := logger.New("test")
	applier := intake.New(repo, nil, intake.Config{PhoneRegion: "BR"}, log).WithClock(func() time.Time { return t0 })
	keys := newMemKeys()
	svc := NewService(keys, applier, log)
	svc.now = func() time.Time { return t0 }

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	NewModule(svc, keys, validator.New()).RegisterRoutes(&apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Protected: v1,
		Admin:     v1.Group("/admin"),
	})
	return harness{repo: repo, svc: svc, engine: engine}
}

func (h harness) do(t *testing.T, method, path, apiKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func TestGenerateAPIKey(t *testing.T) {
	plaintext, hash, prefix, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.Len(t, plaintext, 4+64)
	assert.Equal(t, plaintext[:12], prefix)
	assert.Equal(t, HashKey(plaintext), hash)
	assert.NotEqual(t, plaintext, hash)
}

func TestLeadEventRequiresValidKey(t *testing.T) {
	h := newHarness(t)
	event := map[string]interface{}{"kind": "created", "fields": map[string]string{"phone": "(11) 98765-4321"}}

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/v1/webhook/lead-events", "", event).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/v1/webhook/lead-events", "lrk_nope", event).Code)
}

func TestLeadEventTagsSource(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/admin/webhook/keys", "", CreateKeyRequest{Source: " Portal ", Name: "Portal prod"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created CreateKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "portal", created.Source)
	assert.NotEmpty(t, created.Key)

	event := map[string]interface{}{
		"kind":   "created",
		"fields": map[string]string{"name": "Maria", "phone": "(11) 98765-4321", "externalId": "p-1"},
	}
	rec = h.do(t, http.MethodPost, "/api/v1/webhook/lead-events", created.Key, event)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out struct {
		LeadID uuid.UUID `json:"leadId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	lead := h.repo.Lead(out.LeadID)
	require.NotNil(t, lead.ExternalSource)
	assert.Equal(t, "portal", *lead.ExternalSource)

	update := map[string]interface{}{
		"kind":   "updated",
		"fields": map[string]string{"externalId": "p-1", "city": "Campinas"},
	}
	rec = h.do(t, http.MethodPost, "/api/v1/webhook/lead-events", created.Key, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, h.repo.Lead(out.LeadID).City)
	assert.Equal(t, "Campinas", *h.repo.Lead(out.LeadID).City)
}

func TestRevokedKeyIsRejected(t *testing.T) {
	h := newHarness(t)
	issued, err := h.svc.CreateKey(context.Background(), "portal", "Portal")
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/api/v1/admin/webhook/keys", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []KeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.True(t, listed[0].IsActive)

	rec = h.do(t, http.MethodDelete, "/api/v1/admin/webhook/keys/"+issued.ID.String(), "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	event := map[string]interface{}{"kind": "created", "fields": map[string]string{"phone": "(11) 98765-4321"}}
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/v1/webhook/lead-events", issued.Plaintext, event).Code)

	rec = h.do(t, http.MethodDelete, "/api/v1/admin/webhook/keys/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateKeyValidation(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/admin/webhook/keys", "", map[string]string{"source": "portal"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err := h.svc.CreateKey(context.Background(), "  ", "Portal")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSubmitKeepsExplicitSource(t *testing.T) {
	h := newHarness(t)
	phone, source := "(11) 98765-4321", "partner-feed"

	res, err := h.svc.Submit(context.Background(), "portal", intake.Event{
		Kind:   intake.KindCreated,
		Fields: domain.LeadFields{Phone: &phone, ExternalSource: &source},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Lead.ExternalSource)
	assert.Equal(t, "partner-feed", *res.Lead.ExternalSource)
}
