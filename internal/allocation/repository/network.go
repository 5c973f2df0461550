package repository

import (
	"context"
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const storeColumns = `s.id, s.company_id, s.name, s.is_active, s.created_at, s.updated_at, s.deleted_at`

const locationColumns = `
	sl.id, sl.store_id, sl.name, sl.latitude, sl.longitude, sl.coverage_radius,
	sl.is_main, sl.is_active, sl.created_at, sl.updated_at, sl.deleted_at`

func scanStore(row pgx.Row) (domain.Store, error) {
	var s domain.Store
	err := row.Scan(&s.ID, &s.CompanyID, &s.Name, &s.IsActive, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt)
	return s, err
}

func scanLocation(row pgx.Row) (domain.StoreLocation, error) {
	var l domain.StoreLocation
	err := row.Scan(
		&l.ID, &l.StoreID, &l.Name, &l.Latitude, &l.Longitude, &l.CoverageRadiusKm,
		&l.IsMain, &l.IsActive, &l.CreatedAt, &l.UpdatedAt, &l.DeletedAt,
	)
	return l, err
}

func (q *queries) GetCompany(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	var c domain.Company
	err := q.db.QueryRow(ctx, `
		SELECT id, name, is_active, created_at, updated_at, deleted_at
		FROM companies
		WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		return domain.Company{}, mapError("get company", err, companyNotFoundMsg)
	}
	return c, nil
}

func (q *queries) GetStore(ctx context.Context, id uuid.UUID) (domain.Store, error) {
	store, err := scanStore(q.db.QueryRow(ctx, `
		SELECT `+storeColumns+`
		FROM stores s
		WHERE s.id = $1 AND s.deleted_at IS NULL`, id))
	if err != nil {
		return domain.Store{}, mapError("get store", err, storeNotFoundMsg)
	}
	return store, nil
}

func (q *queries) GetLocation(ctx context.Context, id uuid.UUID) (domain.StoreLocation, error) {
	loc, err := scanLocation(q.db.QueryRow(ctx, `
		SELECT`+locationColumns+`
		FROM store_locations sl
		WHERE sl.id = $1 AND sl.deleted_at IS NULL`, id))
	if err != nil {
		return domain.StoreLocation{}, mapError("get location", err, locationNotFoundMsg)
	}
	return loc, nil
}

func (q *queries) ListStoreLocations(ctx context.Context, storeID uuid.UUID) ([]domain.StoreLocation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT`+locationColumns+`
		FROM store_locations sl
		WHERE sl.store_id = $1 AND sl.deleted_at IS NULL
		ORDER BY sl.is_main DESC, sl.created_at ASC`, storeID)
	if err != nil {
		return nil, mapError("list store locations", err, "")
	}
	defer rows.Close()

	var locations []domain.StoreLocation
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, mapError("scan store location", err, "")
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate store locations", err, "")
	}
	return locations, nil
}

func (t *txQueries) InsertCompany(ctx context.Context, c domain.Company) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO companies (id, name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)`, c.ID, c.Name, c.IsActive, c.CreatedAt)
	return mapError("insert company", err, "")
}

func (t *txQueries) InsertStore(ctx context.Context, s domain.Store) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO stores (id, company_id, name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`, s.ID, s.CompanyID, s.Name, s.IsActive, s.CreatedAt)
	return mapError("insert store", err, "")
}

func (t *txQueries) LockStore(ctx context.Context, id uuid.UUID) (domain.Store, error) {
	store, err := scanStore(t.db.QueryRow(ctx, `
		SELECT `+storeColumns+`
		FROM stores s
		WHERE s.id = $1 AND s.deleted_at IS NULL
		FOR UPDATE`, id))
	if err != nil {
		return domain.Store{}, mapError("lock store", err, storeNotFoundMsg)
	}
	return store, nil
}

func (t *txQueries) SoftDeleteStore(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE stores SET deleted_at = $2, is_active = false, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, now)
	if err != nil {
		return mapError("delete store", err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(storeNotFoundMsg).WithOp("delete store")
	}
	_, err = t.db.Exec(ctx, `
		UPDATE store_locations SET deleted_at = $2, is_active = false, is_main = false, updated_at = $2
		WHERE store_id = $1 AND deleted_at IS NULL`, id, now)
	return mapError("delete store locations", err, "")
}

func (t *txQueries) InsertLocation(ctx context.Context, l domain.StoreLocation) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO store_locations (
			id, store_id, name, latitude, longitude, coverage_radius, is_main, is_active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		l.ID, l.StoreID, l.Name, l.Latitude, l.Longitude, l.CoverageRadiusKm, l.IsMain, l.IsActive,
		l.CreatedAt,
	)
	return mapError("insert location", err, "")
}

func (t *txQueries) UpdateLocation(ctx context.Context, l domain.StoreLocation) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE store_locations SET
			name = $2, latitude = $3, longitude = $4, coverage_radius = $5,
			is_main = $6, is_active = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL`,
		l.ID, l.Name, l.Latitude, l.Longitude, l.CoverageRadiusKm, l.IsMain, l.IsActive, l.UpdatedAt,
	)
	if err != nil {
		return mapError("update location", err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(locationNotFoundMsg).WithOp("update location")
	}
	return nil
}

func (t *txQueries) ClearMainLocation(ctx context.Context, storeID, exceptID uuid.UUID, now time.Time) error {
	_, err := t.db.Exec(ctx, `
		UPDATE store_locations SET is_main = false, updated_at = $3
		WHERE store_id = $1 AND id <> $2 AND is_main AND deleted_at IS NULL`,
		storeID, exceptID, now,
	)
	return mapError("clear main location", err, "")
}

func (t *txQueries) SoftDeleteLocation(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE store_locations SET deleted_at = $2, is_active = false, is_main = false, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, now)
	if err != nil {
		return mapError("delete location", err, "")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(locationNotFoundMsg).WithOp("delete location")
	}
	return nil
}
