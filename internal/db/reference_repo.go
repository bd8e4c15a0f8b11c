package db

import (
	"context"
	"time"

	"etofusion/internal/types"
)

// ReferenceRepository reads reference cities and weather stations. Both
// tables carry a GIST-indexed geography column named geog.
type ReferenceRepository struct {
	db DBTX
}

// NewReferenceRepository creates a new ReferenceRepository.
func NewReferenceRepository(db DBTX) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// Candidates returns up to limit cities and up to limit stations within
// radiusKm of p, nearest first. Distance filtering and ordering run on the
// spheroid in PostGIS; the resolver recomputes exact distances itself.
func (r *ReferenceRepository) Candidates(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]types.Candidate, error) {
	rows, err := r.db.Query(ctx,
		`WITH q AS (SELECT ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography AS g)
		 SELECT id, kind, lat, lon, available_from, available_to
		 FROM (
		   (SELECT l.id, 'city' AS kind, l.lat, l.lon,
		           NULL::date AS available_from, NULL::date AS available_to,
		           l.geog <-> q.g AS dist
		    FROM reference_locations l, q
		    WHERE ST_DWithin(l.geog, q.g, $3)
		    ORDER BY l.geog <-> q.g, l.id
		    LIMIT $4)
		   UNION ALL
		   (SELECT s.id, 'station' AS kind, s.lat, s.lon,
		           s.available_from, s.available_to,
		           s.geog <-> q.g AS dist
		    FROM weather_stations s, q
		    WHERE ST_DWithin(s.geog, q.g, $3)
		    ORDER BY s.geog <-> q.g, s.id
		    LIMIT $4)
		 ) c
		 ORDER BY c.dist, c.id`,
		p.Lat,
		p.Lon,
		radiusKm*1000,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query proximity candidates", err)
	}
	defer rows.Close()

	var out []types.Candidate
	for rows.Next() {
		var (
			c        types.Candidate
			kind     string
			from, to *time.Time
		)
		if err := rows.Scan(&c.ID, &kind, &c.Lat, &c.Lon, &from, &to); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan proximity candidate", err)
		}
		c.Kind = types.CandidateKind(kind)
		if from != nil {
			c.AvailableFrom = *from
		}
		if to != nil {
			c.AvailableTo = *to
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating proximity candidates", err)
	}
	return out, nil
}

// ListReferences returns every reference city.
func (r *ReferenceRepository) ListReferences(ctx context.Context) ([]types.ReferenceLocation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, country, lat, lon, elevation_m
		 FROM reference_locations
		 ORDER BY id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query reference locations", err)
	}
	defer rows.Close()

	var out []types.ReferenceLocation
	for rows.Next() {
		var ref types.ReferenceLocation
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Country, &ref.Lat, &ref.Lon, &ref.ElevationM); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reference location", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating reference locations", err)
	}
	return out, nil
}

// ListStations returns every weather station.
func (r *ReferenceRepository) ListStations(ctx context.Context) ([]types.WeatherStation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, lat, lon, source, available_from, available_to
		 FROM weather_stations
		 ORDER BY id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query weather stations", err)
	}
	defer rows.Close()

	var out []types.WeatherStation
	for rows.Next() {
		var (
			s        types.WeatherStation
			from, to *time.Time
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lon, &s.Source, &from, &to); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan weather station", err)
		}
		if from != nil {
			s.AvailableFrom = *from
		}
		if to != nil {
			s.AvailableTo = *to
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating weather stations", err)
	}
	return out, nil
}
