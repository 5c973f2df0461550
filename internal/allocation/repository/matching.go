package repository

import (
	"context"
	"time"

	"leadrouter_backend/internal/allocation/domain"

	"github.com/google/uuid"
)

// Distances use the earthdistance sphere, the same one platform/geo uses.
// earth_box is an index-friendly superset of the circle; earth_distance then
// applies each location's own radius exactly.

// sharedPhoneHistory matches assignments of leadID itself or of any lead that
// shares one of its normalized phones. Tombstoned leads still count; only
// tombstoned assignments are ignored.
const sharedPhoneHistory = `
	SELECT 1
	FROM lead_stores ls
	WHERE ls.deleted_at IS NULL
	  AND ls.created_at >= $3::timestamptz
	  AND (
	    ls.lead_id = $1
	    OR EXISTS (
	      SELECT 1
	      FROM lead_phones other
	      JOIN lead_phones mine
	        ON mine.phone_normalized = other.phone_normalized
	      WHERE other.lead_id = ls.lead_id
	        AND mine.lead_id = $1
	        AND mine.deleted_at IS NULL
	        AND mine.phone_normalized <> ''
	    )
	  )`

const findStoresForLeadQuery = `
	WITH target AS (
		SELECT l.id, ll_to_earth(l.latitude, l.longitude) AS pos
		FROM leads l
		WHERE l.id = $1
		  AND l.deleted_at IS NULL
		  AND l.latitude IS NOT NULL
		  AND l.longitude IS NOT NULL
	)
	SELECT s.id, s.company_id, s.name,
	       MIN(earth_distance(target.pos, ll_to_earth(sl.latitude, sl.longitude)) / 1000.0) AS distance_km
	FROM target
	JOIN store_locations sl
	  ON sl.is_active
	 AND sl.deleted_at IS NULL
	 AND earth_box(target.pos, $2::float8 * 1000.0) @> ll_to_earth(sl.latitude, sl.longitude)
	 AND earth_distance(target.pos, ll_to_earth(sl.latitude, sl.longitude)) <= sl.coverage_radius * 1000.0
	JOIN stores s
	  ON s.id = sl.store_id
	 AND s.is_active
	 AND s.deleted_at IS NULL
	JOIN companies co
	  ON co.id = s.company_id
	 AND co.is_active
	 AND co.deleted_at IS NULL
	WHERE EXISTS (
		SELECT 1
		FROM contracts c
		WHERE c.is_active
		  AND c.deleted_at IS NULL
		  AND ((c.owner_type = 'store' AND c.owner_id = s.id)
		    OR (c.owner_type = 'company' AND c.owner_id = s.company_id))
	)
	AND NOT EXISTS (` + sharedPhoneHistory + `
	  AND ls.store_id = s.id
	)
	GROUP BY s.id, s.company_id, s.name
	ORDER BY distance_km ASC, s.id ASC`

const findLeadsForStoreQuery = `
	WITH target AS (
		SELECT s.id, s.company_id
		FROM stores s
		WHERE s.id = $1 AND s.deleted_at IS NULL
	),
	coverage AS (
		SELECT ll_to_earth(sl.latitude, sl.longitude) AS pos, sl.coverage_radius
		FROM store_locations sl
		JOIN target ON sl.store_id = target.id
		WHERE sl.is_active AND sl.deleted_at IS NULL
	)
	SELECT l.id, l.name,
	       MIN(earth_distance(coverage.pos, ll_to_earth(l.latitude, l.longitude)) / 1000.0) AS distance_km
	FROM coverage
	JOIN leads l
	  ON l.status = 'new'
	 AND l.is_active
	 AND l.deleted_at IS NULL
	 AND l.latitude IS NOT NULL
	 AND l.longitude IS NOT NULL
	 AND earth_box(coverage.pos, $2::float8 * 1000.0) @> ll_to_earth(l.latitude, l.longitude)
	 AND earth_distance(coverage.pos, ll_to_earth(l.latitude, l.longitude)) <= coverage.coverage_radius * 1000.0
	WHERE NOT EXISTS (
		SELECT 1
		FROM lead_stores ls
		JOIN stores sibling ON sibling.id = ls.store_id
		WHERE ls.lead_id = l.id
		  AND ls.deleted_at IS NULL
		  AND sibling.company_id = (SELECT company_id FROM target)
	)
	GROUP BY l.id, l.name
	ORDER BY distance_km ASC, l.id ASC
	LIMIT $3`

const sentToStoreQuery = `
	SELECT EXISTS (` + sharedPhoneHistory + `
	  AND ls.store_id = $2
	)`

const sentToCompanyQuery = `
	SELECT EXISTS (` + sharedPhoneHistory + `
	  AND ls.store_id IN (SELECT s.id FROM stores s WHERE s.company_id = $2)
	)`

const storeCoversLeadQuery = `
	SELECT EXISTS (
		SELECT 1
		FROM leads l
		JOIN store_locations sl
		  ON sl.store_id = $2
		 AND sl.is_active
		 AND sl.deleted_at IS NULL
		 AND earth_distance(ll_to_earth(l.latitude, l.longitude), ll_to_earth(sl.latitude, sl.longitude))
		     <= sl.coverage_radius * 1000.0
		WHERE l.id = $1
		  AND l.deleted_at IS NULL
		  AND l.latitude IS NOT NULL
		  AND l.longitude IS NOT NULL
	)`

func (q *queries) FindStoresForLead(ctx context.Context, mq StoreMatchQuery) ([]domain.StoreMatch, error) {
	rows, err := q.db.Query(ctx, findStoresForLeadQuery, mq.LeadID, mq.MaxRadiusKm, mq.Since)
	if err != nil {
		return nil, mapError("find stores for lead", err, "")
	}
	defer rows.Close()

	matches := make([]domain.StoreMatch, 0)
	for rows.Next() {
		var m domain.StoreMatch
		if err := rows.Scan(&m.StoreID, &m.CompanyID, &m.StoreName, &m.DistanceKm); err != nil {
			return nil, mapError("scan store match", err, "")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate store matches", err, "")
	}
	return matches, nil
}

func (q *queries) FindLeadsForStore(ctx context.Context, mq LeadMatchQuery) ([]domain.LeadMatch, error) {
	var limit *int
	if mq.Limit > 0 {
		limit = &mq.Limit
	}

	rows, err := q.db.Query(ctx, findLeadsForStoreQuery, mq.StoreID, mq.MaxRadiusKm, limit)
	if err != nil {
		return nil, mapError("find leads for store", err, "")
	}
	defer rows.Close()

	matches := make([]domain.LeadMatch, 0)
	for rows.Next() {
		var m domain.LeadMatch
		if err := rows.Scan(&m.LeadID, &m.LeadName, &m.DistanceKm); err != nil {
			return nil, mapError("scan lead match", err, "")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate lead matches", err, "")
	}
	return matches, nil
}

func (q *queries) SentToStore(ctx context.Context, leadID, storeID uuid.UUID, since time.Time) (bool, error) {
	var sent bool
	if err := q.db.QueryRow(ctx, sentToStoreQuery, leadID, storeID, since).Scan(&sent); err != nil {
		return false, mapError("lead sent to store", err, "")
	}
	return sent, nil
}

func (q *queries) SentToCompany(ctx context.Context, leadID, companyID uuid.UUID, since time.Time) (bool, error) {
	var sent bool
	if err := q.db.QueryRow(ctx, sentToCompanyQuery, leadID, companyID, since).Scan(&sent); err != nil {
		return false, mapError("lead sent to company", err, "")
	}
	return sent, nil
}

func (q *queries) StoreCoversLead(ctx context.Context, leadID, storeID uuid.UUID) (bool, error) {
	var covered bool
	if err := q.db.QueryRow(ctx, storeCoversLeadQuery, leadID, storeID).Scan(&covered); err != nil {
		return false, mapError("store covers lead", err, "")
	}
	return covered, nil
}
