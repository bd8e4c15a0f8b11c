package normals

import (
	"context"
	"fmt"

	"etofusion/internal/types"
)

// ReferenceLister is satisfied by db.ReferenceRepository.
type ReferenceLister interface {
	ListReferences(ctx context.Context) ([]types.ReferenceLocation, error)
	ListStations(ctx context.Context) ([]types.WeatherStation, error)
}

// NormalsLister is satisfied by db.NormalsRepository.
type NormalsLister interface {
	ListByPeriod(ctx context.Context, period string) ([]types.MonthlyClimateNormal, error)
}

// LoadDB builds a snapshot of one period from the database tables.
func LoadDB(ctx context.Context, refs ReferenceLister, normals NormalsLister, period string) (*Snapshot, error) {
	references, err := refs.ListReferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}
	stations, err := refs.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stations: %w", err)
	}
	rows, err := normals.ListByPeriod(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("listing normals for %s: %w", period, err)
	}
	return &Snapshot{
		Version:    "db:" + period,
		References: references,
		Stations:   stations,
		Normals:    rows,
	}, nil
}
