package repository

import (
	"context"
	"strings"
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadColumns = `
	l.id, l.segment_id, l.name, l.email, l.phone, l.zip_code, l.city, l.state, l.address,
	l.latitude, l.longitude, l.external_id, l.external_source, l.status, l.is_active,
	l.created_at, l.updated_at, l.deleted_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	var status string
	err := row.Scan(
		&l.ID, &l.SegmentID, &l.Name, &l.Email, &l.Phone, &l.ZipCode, &l.City, &l.State, &l.Address,
		&l.Latitude, &l.Longitude, &l.ExternalID, &l.ExternalSource, &status, &l.IsActive,
		&l.CreatedAt, &l.UpdatedAt, &l.DeletedAt,
	)
	l.Status = domain.LeadStatus(status)
	return l, err
}

func (q *queries) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(q.db.QueryRow(ctx, `
		SELECT`+leadColumns+`
		FROM leads l
		WHERE l.id = $1 AND l.deleted_at IS NULL`, id))
	if err != nil {
		return domain.Lead{}, mapError("get lead", err, leadNotFoundMsg)
	}
	return lead, nil
}

func (q *queries) FindLeadByExternalID(ctx context.Context, externalID string, externalSource *string) (domain.Lead, error) {
	lead, err := scanLead(q.db.QueryRow(ctx, `
		SELECT`+leadColumns+`
		FROM leads l
		WHERE l.external_id = $1
		  AND ($2::text IS NULL OR l.external_source = $2)
		  AND l.deleted_at IS NULL
		ORDER BY l.created_at DESC
		LIMIT 1`, externalID, externalSource))
	if err != nil {
		return domain.Lead{}, mapError("find lead by external id", err, leadNotFoundMsg)
	}
	return lead, nil
}

func (q *queries) FindLeadByEmail(ctx context.Context, email string) (domain.Lead, error) {
	lead, err := scanLead(q.db.QueryRow(ctx, `
		SELECT`+leadColumns+`
		FROM leads l
		WHERE lower(l.email) = lower($1) AND l.deleted_at IS NULL
		ORDER BY l.created_at DESC
		LIMIT 1`, strings.TrimSpace(email)))
	if err != nil {
		return domain.Lead{}, mapError("find lead by email", err, leadNotFoundMsg)
	}
	return lead, nil
}

func (q *queries) FindLeadByPhone(ctx context.Context, phoneOriginal string) (domain.Lead, error) {
	lead, err := scanLead(q.db.QueryRow(ctx, `
		SELECT`+leadColumns+`
		FROM leads l
		JOIN lead_phones p ON p.lead_id = l.id
		WHERE p.phone_original = $1 AND l.deleted_at IS NULL
		ORDER BY l.created_at DESC
		LIMIT 1`, strings.TrimSpace(phoneOriginal)))
	if err != nil {
		return domain.Lead{}, mapError("find lead by phone", err, leadNotFoundMsg)
	}
	return lead, nil
}

func (q *queries) DefaultSegmentID(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, `
		SELECT id FROM segments
		WHERE is_default AND deleted_at IS NULL
		LIMIT 1`).Scan(&id)
	if err != nil {
		return uuid.Nil, mapError("default segment", err, segmentNotFoundMsg)
	}
	return id, nil
}

func (q *queries) ListLeadPhones(ctx context.Context, leadID uuid.UUID) ([]domain.PhoneRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, lead_id, phone_original, phone_normalized, created_at
		FROM lead_phones
		WHERE lead_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC`, leadID)
	if err != nil {
		return nil, mapError("list lead phones", err, "")
	}
	return collectPhoneRecords(rows)
}

func (q *queries) ListPhoneRecords(ctx context.Context, after uuid.UUID, limit int) ([]domain.PhoneRecord, error) {
	if limit < 1 {
		limit = 500
	}
	rows, err := q.db.Query(ctx, `
		SELECT id, lead_id, phone_original, phone_normalized, created_at
		FROM lead_phones
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2`, after, limit)
	if err != nil {
		return nil, mapError("list phone records", err, "")
	}
	return collectPhoneRecords(rows)
}

func (q *queries) ListUnplacedLeads(ctx context.Context, after uuid.UUID, limit int) ([]domain.Lead, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := q.db.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads l
		WHERE l.id > $1
		  AND l.deleted_at IS NULL
		  AND (l.latitude IS NULL OR l.longitude IS NULL)
		  AND (NULLIF(TRIM(l.address), '') IS NOT NULL
		    OR NULLIF(TRIM(l.city), '') IS NOT NULL
		    OR NULLIF(TRIM(l.zip_code), '') IS NOT NULL)
		ORDER BY l.id ASC
		LIMIT $2`, after, limit)
	if err != nil {
		return nil, mapError("list unplaced leads", err, "")
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, mapError("scan lead", err, "")
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate leads", err, "")
	}
	return leads, nil
}

const listLeadsBase = `
	FROM leads l
	WHERE l.deleted_at IS NULL
	  AND ($1::uuid IS NULL OR l.segment_id = $1)
	  AND ($2::text IS NULL OR l.name ILIKE $2)
	  AND ($3::text IS NULL OR l.phone LIKE $3
	    OR ($4::text IS NOT NULL AND EXISTS (
	      SELECT 1 FROM lead_phones p
	      WHERE p.lead_id = l.id AND p.deleted_at IS NULL AND p.phone_normalized LIKE $4
	    )))
	  AND ($5::boolean IS NULL OR l.is_active = $5)`

func containsPattern(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	replacer := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	pattern := "%" + replacer.Replace(s) + "%"
	return &pattern
}

func (q *queries) ListLeads(ctx context.Context, params LeadListParams) (LeadListResult, error) {
	page, pageSize, offset := PageBounds(params.Page, params.PageSize)
	var digits *string
	if params.NormalizedPhone != "" {
		digits = containsPattern(params.NormalizedPhone)
	}
	args := []interface{}{params.SegmentID, containsPattern(params.Name), containsPattern(params.Phone), digits, params.IsActive}

	var total int
	if err := q.db.QueryRow(ctx, "SELECT COUNT(*) "+listLeadsBase, args...).Scan(&total); err != nil {
		return LeadListResult{}, mapError("count leads", err, "")
	}

	rows, err := q.db.Query(ctx, "SELECT"+leadColumns+listLeadsBase+`
	ORDER BY l.created_at DESC, l.id DESC
	LIMIT $6 OFFSET $7`, append(args, pageSize, offset)...)
	if err != nil {
		return LeadListResult{}, mapError("list leads", err, "")
	}
	defer rows.Close()

	items := make([]domain.Lead, 0, pageSize)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return LeadListResult{}, mapError("scan lead", err, "")
		}
		items = append(items, lead)
	}
	if err := rows.Err(); err != nil {
		return LeadListResult{}, mapError("iterate leads", err, "")
	}

	return LeadListResult{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(total, pageSize),
	}, nil
}

func collectPhoneRecords(rows pgx.Rows) ([]domain.PhoneRecord, error) {
	defer rows.Close()

	var records []domain.PhoneRecord
	for rows.Next() {
		var rec domain.PhoneRecord
		if err := rows.Scan(&rec.ID, &rec.LeadID, &rec.Original, &rec.Normalized, &rec.CreatedAt); err != nil {
			return nil, mapError("scan phone record", err, "")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate phone records", err, "")
	}
	return records, nil
}

func (t *txQueries) InsertLead(ctx context.Context, l domain.Lead) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO leads (
			id, segment_id, name, email, phone, zip_code, city, state, address,
			latitude, longitude, external_id, external_source, status, is_active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)`,
		l.ID, l.SegmentID, l.Name, l.Email, l.Phone, l.ZipCode, l.City, l.State, l.Address,
		l.Latitude, l.Longitude, l.ExternalID, l.ExternalSource, string(l.Status), l.IsActive,
		l.CreatedAt,
	)
	return mapError("insert lead", err, "")
}

func (t *txQueries) UpdateLead(ctx context.Context, l domain.Lead) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE leads SET
			segment_id = $2, name = $3, email = $4, phone = $5, zip_code = $6, city = $7,
			state = $8, address = $9, latitude = $10, longitude = $11, external_id = $12,
			external_source = $13, updated_at = $14
		WHERE id = $1 AND deleted_at IS NULL`,
		l.ID, l.SegmentID, l.Name, l.Email, l.Phone, l.ZipCode, l.City,
		l.State, l.Address, l.Latitude, l.Longitude, l.ExternalID,
		l.ExternalSource, l.UpdatedAt,
	)
	if err != nil {
		return mapError("update lead", err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMsg).WithOp("update lead")
	}
	return nil
}

func (t *txQueries) SetLeadStatus(ctx context.Context, id uuid.UUID, status domain.LeadStatus, now time.Time) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE leads SET status = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL`, id, string(status), now)
	if err != nil {
		return mapError("set lead status", err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMsg).WithOp("set lead status")
	}
	return nil
}

func (t *txQueries) InsertPhoneRecord(ctx context.Context, rec domain.PhoneRecord) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO lead_phones (id, lead_id, phone_original, phone_normalized, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.LeadID, rec.Original, rec.Normalized, rec.CreatedAt,
	)
	return mapError("insert phone record", err, "")
}

func (t *txQueries) UpdatePhoneNormalized(ctx context.Context, id uuid.UUID, normalized string) error {
	_, err := t.db.Exec(ctx, `UPDATE lead_phones SET phone_normalized = $2 WHERE id = $1`, id, normalized)
	return mapError("update normalized phone", err, "")
}
