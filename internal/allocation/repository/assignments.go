package repository

import (
	"context"
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const assignmentColumns = `
	ls.id, ls.lead_id, ls.store_id, ls.contract_id, ls.status, ls.notes, ls.is_warranty,
	ls.sent_at, ls.contacted_at, ls.converted_at, ls.returned_at,
	ls.created_at, ls.updated_at, ls.deleted_at`

const warrantyColumns = `
	w.id, w.lead_store_id, w.new_lead_id, w.status, w.return_reason, w.analysis_notes,
	w.analyzed_by, w.analyzed_at, w.replaced_at, w.created_at, w.updated_at, w.deleted_at`

func scanAssignment(row pgx.Row) (domain.Assignment, error) {
	var a domain.Assignment
	var status string
	err := row.Scan(
		&a.ID, &a.LeadID, &a.StoreID, &a.ContractID, &status, &a.Notes, &a.IsWarranty,
		&a.SentAt, &a.ContactedAt, &a.ConvertedAt, &a.ReturnedAt,
		&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
	)
	a.Status = domain.AssignmentStatus(status)
	return a, err
}

func scanWarranty(row pgx.Row) (domain.Warranty, error) {
	var w domain.Warranty
	var status string
	err := row.Scan(
		&w.ID, &w.AssignmentID, &w.NewLeadID, &status, &w.ReturnReason, &w.AnalysisNotes,
		&w.AnalyzedBy, &w.AnalyzedAt, &w.ReplacedAt, &w.CreatedAt, &w.UpdatedAt, &w.DeletedAt,
	)
	w.Status = domain.WarrantyStatus(status)
	return w, err
}

func (q *queries) GetAssignment(ctx context.Context, id uuid.UUID) (domain.Assignment, error) {
	a, err := scanAssignment(q.db.QueryRow(ctx, `
		SELECT`+assignmentColumns+`
		FROM lead_stores ls
		WHERE ls.id = $1 AND ls.deleted_at IS NULL`, id))
	if err != nil {
		return domain.Assignment{}, mapError("get assignment", err, assignmentNotFoundMsg)
	}
	return a, nil
}

func (q *queries) ListAssignmentsForLead(ctx context.Context, leadID uuid.UUID) ([]domain.Assignment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT`+assignmentColumns+`
		FROM lead_stores ls
		WHERE ls.lead_id = $1 AND ls.deleted_at IS NULL
		ORDER BY ls.created_at ASC, ls.id ASC`, leadID)
	if err != nil {
		return nil, mapError("list assignments", err, "")
	}
	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, mapError("scan assignment", err, "")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate assignments", err, "")
	}
	return out, nil
}

func (q *queries) GetWarranty(ctx context.Context, id uuid.UUID) (domain.Warranty, error) {
	w, err := scanWarranty(q.db.QueryRow(ctx, `
		SELECT`+warrantyColumns+`
		FROM lead_warranties w
		WHERE w.id = $1 AND w.deleted_at IS NULL`, id))
	if err != nil {
		return domain.Warranty{}, mapError("get warranty", err, warrantyNotFoundMsg)
	}
	return w, nil
}

func (t *txQueries) InsertAssignment(ctx context.Context, a domain.Assignment) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO lead_stores (
			id, lead_id, store_id, contract_id, status, notes, is_warranty, sent_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		a.ID, a.LeadID, a.StoreID, a.ContractID, string(a.Status), a.Notes, a.IsWarranty, a.SentAt, a.CreatedAt,
	)
	return mapError("insert assignment", err, "")
}

// updateAssignmentStatusQuery stamps stages the same way domain.Assignment.SetStatus does.
const updateAssignmentStatusQuery = `
	UPDATE lead_stores SET
		status = $2::text,
		notes = COALESCE($3, notes),
		updated_at = $4,
		contacted_at = CASE WHEN $2::text = 'contacted' THEN COALESCE(contacted_at, $4) ELSE contacted_at END,
		converted_at = CASE WHEN $2::text = 'converted' THEN COALESCE(converted_at, $4) ELSE converted_at END,
		returned_at = CASE WHEN left($2::text, 9) = 'warranty_' THEN COALESCE(returned_at, $4) ELSE returned_at END
	WHERE id = $1 AND deleted_at IS NULL`

func (t *txQueries) UpdateAssignmentStatus(ctx context.Context, id uuid.UUID, status domain.AssignmentStatus, notes *string, now time.Time) error {
	tag, err := t.db.Exec(ctx, updateAssignmentStatusQuery, id, string(status), notes, now)
	if err != nil {
		return mapError("update assignment status", err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(assignmentNotFoundMsg).WithOp("update assignment status")
	}
	return nil
}

func (t *txQueries) InsertWarranty(ctx context.Context, w domain.Warranty) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO lead_warranties (id, lead_store_id, status, return_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		w.ID, w.AssignmentID, string(w.Status), w.ReturnReason, w.CreatedAt,
	)
	return mapError("insert warranty", err, "")
}

func (t *txQueries) LockWarranty(ctx context.Context, id uuid.UUID) (domain.Warranty, error) {
	w, err := scanWarranty(t.db.QueryRow(ctx, `
		SELECT`+warrantyColumns+`
		FROM lead_warranties w
		WHERE w.id = $1 AND w.deleted_at IS NULL
		FOR UPDATE`, id))
	if err != nil {
		return domain.Warranty{}, mapError("lock warranty", err, warrantyNotFoundMsg)
	}
	return w, nil
}

func (t *txQueries) UpdateWarranty(ctx context.Context, w domain.Warranty) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE lead_warranties SET
			status = $2, new_lead_id = $3, analysis_notes = $4, analyzed_by = $5,
			analyzed_at = $6, replaced_at = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL`,
		w.ID, string(w.Status), w.NewLeadID, w.AnalysisNotes, w.AnalyzedBy,
		w.AnalyzedAt, w.ReplacedAt, w.UpdatedAt,
	)
	if err != nil {
		return mapError("update warranty", err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(warrantyNotFoundMsg).WithOp("update warranty")
	}
	return nil
}
