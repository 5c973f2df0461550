package repository

import (
	"context"
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const contractColumns = `
	c.id, c.owner_type, c.owner_id, c.start_date, c.end_date, c.lead_price,
	c.leads_contracted, c.leads_delivered, c.leads_returned, c.leads_warranty_used,
	c.warranty_percentage, c.is_active, c.completed_at, c.auto_close_at,
	c.created_at, c.updated_at, c.deleted_at`

// lockActiveContractForStoreQuery prefers the store's own contract over its
// company's. The row lock covers only the chosen contract.
const lockActiveContractForStoreQuery = `
	SELECT` + contractColumns + `
	FROM contracts c
	WHERE c.is_active
	  AND c.deleted_at IS NULL
	  AND ((c.owner_type = 'store' AND c.owner_id = $1)
	    OR (c.owner_type = 'company' AND c.owner_id = $2))
	ORDER BY CASE c.owner_type WHEN 'store' THEN 0 ELSE 1 END
	LIMIT 1
	FOR UPDATE OF c`

func scanContract(row pgx.Row) (domain.Contract, error) {
	var c domain.Contract
	var ownerType string
	err := row.Scan(
		&c.ID, &ownerType, &c.Owner.ID, &c.StartDate, &c.EndDate, &c.LeadPrice,
		&c.LeadsContracted, &c.LeadsDelivered, &c.LeadsReturned, &c.LeadsWarrantyUsed,
		&c.WarrantyPercentage, &c.IsActive, &c.CompletedAt, &c.AutoCloseAt,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	c.Owner.Type = domain.OwnerType(ownerType)
	return c, err
}

func (q *queries) GetContract(ctx context.Context, id uuid.UUID) (domain.Contract, error) {
	c, err := scanContract(q.db.QueryRow(ctx, `
		SELECT`+contractColumns+`
		FROM contracts c
		WHERE c.id = $1 AND c.deleted_at IS NULL`, id))
	if err != nil {
		return domain.Contract{}, mapError("get contract", err, contractNotFoundMsg)
	}
	return c, nil
}

func (q *queries) GetActiveContractForOwner(ctx context.Context, owner domain.OwnerRef) (domain.Contract, error) {
	c, err := scanContract(q.db.QueryRow(ctx, `
		SELECT`+contractColumns+`
		FROM contracts c
		WHERE c.owner_type = $1 AND c.owner_id = $2
		  AND c.is_active AND c.deleted_at IS NULL`, string(owner.Type), owner.ID))
	if err != nil {
		return domain.Contract{}, mapError("get active contract", err, contractNotFoundMsg)
	}
	return c, nil
}

func (q *queries) ListDueContractIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := q.db.Query(ctx, `
		SELECT c.id
		FROM contracts c
		WHERE c.is_active
		  AND c.deleted_at IS NULL
		  AND c.auto_close_at IS NOT NULL
		  AND c.auto_close_at <= $1
		ORDER BY c.auto_close_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, mapError("list due contracts", err, "")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, mapError("scan due contract", err, "")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate due contracts", err, "")
	}
	return ids, nil
}

func (t *txQueries) LockContract(ctx context.Context, id uuid.UUID) (domain.Contract, error) {
	c, err := scanContract(t.db.QueryRow(ctx, `
		SELECT`+contractColumns+`
		FROM contracts c
		WHERE c.id = $1 AND c.deleted_at IS NULL
		FOR UPDATE`, id))
	if err != nil {
		return domain.Contract{}, mapError("lock contract", err, contractNotFoundMsg)
	}
	return c, nil
}

func (t *txQueries) LockActiveContractForStore(ctx context.Context, store domain.Store) (domain.Contract, error) {
	c, err := scanContract(t.db.QueryRow(ctx, lockActiveContractForStoreQuery, store.ID, store.CompanyID))
	if err != nil {
		return domain.Contract{}, mapError("lock store contract", err, noActiveContractMsg)
	}
	return c, nil
}

func (t *txQueries) InsertContract(ctx context.Context, c domain.Contract) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO contracts (
			id, owner_type, owner_id, start_date, end_date, lead_price,
			leads_contracted, leads_delivered, leads_returned, leads_warranty_used,
			warranty_percentage, is_active, completed_at, auto_close_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		c.ID, string(c.Owner.Type), c.Owner.ID, c.StartDate, c.EndDate, c.LeadPrice,
		c.LeadsContracted, c.LeadsDelivered, c.LeadsReturned, c.LeadsWarrantyUsed,
		c.WarrantyPercentage, c.IsActive, c.CompletedAt, c.AutoCloseAt, c.CreatedAt,
	)
	return mapError("insert contract", err, "")
}

// UpdateContract persists counters and lifecycle fields. Callers hold the row lock.
func (t *txQueries) UpdateContract(ctx context.Context, c domain.Contract) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE contracts SET
			leads_delivered = $2,
			leads_returned = $3,
			leads_warranty_used = $4,
			is_active = $5,
			completed_at = $6,
			auto_close_at = $7,
			updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL`,
		c.ID, c.LeadsDelivered, c.LeadsReturned, c.LeadsWarrantyUsed,
		c.IsActive, c.CompletedAt, c.AutoCloseAt, c.UpdatedAt,
	)
	if err != nil {
		return mapError("update contract", err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(contractNotFoundMsg).WithOp("update contract")
	}
	return nil
}

func (t *txQueries) SoftDeleteContract(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE contracts SET deleted_at = $2, is_active = false, auto_close_at = NULL, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, now)
	if err != nil {
		return mapError("delete contract", err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(contractNotFoundMsg).WithOp("delete contract")
	}
	return nil
}
