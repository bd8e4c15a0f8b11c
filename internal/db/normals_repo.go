package db

import (
	"context"

	"etofusion/internal/types"
)

// NormalsRepository reads monthly_climate_normals. The eto and precipitation
// columns are JSONB-encoded types.VariableNormal values.
type NormalsRepository struct {
	db DBTX
}

// NewNormalsRepository creates a new NormalsRepository.
func NewNormalsRepository(db DBTX) *NormalsRepository {
	return &NormalsRepository{db: db}
}

// ListByPeriod returns every normal for the given period label, ordered by
// reference and month. Rows are returned unvalidated; the normals store
// validates on load.
func (r *NormalsRepository) ListByPeriod(ctx context.Context, period string) ([]types.MonthlyClimateNormal, error) {
	rows, err := r.db.Query(ctx,
		`SELECT reference_id, period, month, eto, precipitation
		 FROM monthly_climate_normals
		 WHERE period = $1
		 ORDER BY reference_id, month`,
		period,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query climate normals", err)
	}
	defer rows.Close()

	var out []types.MonthlyClimateNormal
	for rows.Next() {
		var n types.MonthlyClimateNormal
		if err := rows.Scan(&n.ReferenceID, &n.Period, &n.Month, &n.ETo, &n.Precipitation); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan climate normal", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating climate normals", err)
	}
	return out, nil
}
