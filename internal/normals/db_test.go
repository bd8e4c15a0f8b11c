package normals

import (
	"context"
	"errors"
	"testing"

	"etofusion/internal/types"
)

type fakeRefs struct {
	snap *Snapshot
	err  error
}

func (f *fakeRefs) ListReferences(context.Context) ([]types.ReferenceLocation, error) {
	return f.snap.References, f.err
}

func (f *fakeRefs) ListStations(context.Context) ([]types.WeatherStation, error) {
	return f.snap.Stations, nil
}

type fakeNormals struct {
	snap   *Snapshot
	period string
}

func (f *fakeNormals) ListByPeriod(_ context.Context, period string) ([]types.MonthlyClimateNormal, error) {
	f.period = period
	return f.snap.Normals, nil
}

func TestLoadDB(t *testing.T) {
	src := sampleSnapshot()
	norms := &fakeNormals{snap: src}

	snap, err := LoadDB(context.Background(), &fakeRefs{snap: src}, norms, "1991-2020")
	if err != nil {
		t.Fatalf("LoadDB error: %v", err)
	}
	if norms.period != "1991-2020" {
		t.Errorf("period = %q", norms.period)
	}
	s, err := snap.Store()
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if s.Len() != 24 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestLoadDB_Error(t *testing.T) {
	boom := errors.New("db down")
	_, err := LoadDB(context.Background(), &fakeRefs{snap: sampleSnapshot(), err: boom}, &fakeNormals{snap: sampleSnapshot()}, "1991-2020")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}
