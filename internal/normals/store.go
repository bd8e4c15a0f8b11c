// Package normals holds the read-only climate normals store: reference cities,
// weather stations and the monthly percentile baselines keyed by
// (reference, period, month). A Store is built once at startup and injected.
package normals

import (
	"fmt"
	"sort"

	"etofusion/internal/types"
)

type normalKey struct {
	ref    string
	period string
	month  int
}

// Store is an immutable in-memory view of the normals snapshot. Safe for
// concurrent use.
type Store struct {
	refs     map[string]types.ReferenceLocation
	refList  []types.ReferenceLocation
	stations []types.WeatherStation
	normals  map[normalKey]types.MonthlyClimateNormal
	periods  map[string]struct{}
}

// NewStore validates every row and indexes it. A single invalid normal, a
// duplicate key or a normal for an unknown reference rejects the whole set.
func NewStore(refs []types.ReferenceLocation, stations []types.WeatherStation, normals []types.MonthlyClimateNormal) (*Store, error) {
	s := &Store{
		refs:     make(map[string]types.ReferenceLocation, len(refs)),
		stations: append([]types.WeatherStation(nil), stations...),
		normals:  make(map[normalKey]types.MonthlyClimateNormal, len(normals)),
		periods:  make(map[string]struct{}),
	}

	for _, r := range refs {
		if r.ID == "" {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidNormal, "reference location without id", nil)
		}
		if err := r.Point().Validate(); err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidNormal, fmt.Sprintf("reference %s: %v", r.ID, err), err)
		}
		if _, dup := s.refs[r.ID]; dup {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidNormal, fmt.Sprintf("duplicate reference %s", r.ID), nil)
		}
		s.refs[r.ID] = r
		s.refList = append(s.refList, r)
	}
	sort.Slice(s.refList, func(i, j int) bool { return s.refList[i].ID < s.refList[j].ID })
	sort.Slice(s.stations, func(i, j int) bool { return s.stations[i].ID < s.stations[j].ID })

	for _, n := range normals {
		if err := n.Validate(); err != nil {
			return nil, err
		}
		if _, ok := s.refs[n.ReferenceID]; !ok {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidNormal,
				fmt.Sprintf("normal for unknown reference %s", n.ReferenceID), nil)
		}
		k := normalKey{ref: n.ReferenceID, period: n.Period, month: n.Month}
		if _, dup := s.normals[k]; dup {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidNormal,
				fmt.Sprintf("duplicate normal %s/%s/%02d", n.ReferenceID, n.Period, n.Month), nil)
		}
		s.normals[k] = n
		s.periods[n.Period] = struct{}{}
	}

	return s, nil
}

// Lookup returns the normal for a reference, month and period.
func (s *Store) Lookup(refID string, month int, period string) (types.MonthlyClimateNormal, bool) {
	n, ok := s.normals[normalKey{ref: refID, period: period, month: month}]
	return n, ok
}

// References returns all reference cities ordered by ID.
func (s *Store) References() []types.ReferenceLocation {
	return append([]types.ReferenceLocation(nil), s.refList...)
}

// Stations returns all weather stations ordered by ID.
func (s *Store) Stations() []types.WeatherStation {
	return append([]types.WeatherStation(nil), s.stations...)
}

// HasPeriod reports whether any normal was loaded for period.
func (s *Store) HasPeriod(period string) bool {
	_, ok := s.periods[period]
	return ok
}

// Len returns the number of monthly normals held.
func (s *Store) Len() int { return len(s.normals) }

// Candidates flattens cities and stations into proximity candidates.
func (s *Store) Candidates() []types.Candidate {
	out := make([]types.Candidate, 0, len(s.refList)+len(s.stations))
	for _, r := range s.refList {
		out = append(out, types.Candidate{ID: r.ID, Kind: types.CandidateCity, Lat: r.Lat, Lon: r.Lon})
	}
	for _, st := range s.stations {
		out = append(out, types.Candidate{
			ID:            st.ID,
			Kind:          types.CandidateStation,
			Lat:           st.Lat,
			Lon:           st.Lon,
			AvailableFrom: st.AvailableFrom,
			AvailableTo:   st.AvailableTo,
		})
	}
	return out
}
