package normals

import (
	"testing"

	"etofusion/internal/types"
)

func TestNewStore_Lookup(t *testing.T) {
	snap := sampleSnapshot()
	s, err := snap.Store()
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	if s.Len() != 24 {
		t.Errorf("Len() = %d, want 24", s.Len())
	}

	n, ok := s.Lookup("brasilia", 7, "1991-2020")
	if !ok {
		t.Fatal("expected brasilia July normal")
	}
	if want := ladder(4.5).P99; n.ETo.Percentiles.P99 != want {
		t.Errorf("P99 = %v, want %v", n.ETo.Percentiles.P99, want)
	}

	if _, ok := s.Lookup("brasilia", 7, "1961-1990"); ok {
		t.Error("unexpected hit for unknown period")
	}
	if _, ok := s.Lookup("recife", 7, "1991-2020"); ok {
		t.Error("unexpected hit for unknown reference")
	}
	if !s.HasPeriod("1991-2020") || s.HasPeriod("1961-1990") {
		t.Error("HasPeriod mismatch")
	}
}

func TestNewStore_RejectsInvalidRows(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"non-monotone ladder", func(s *Snapshot) { s.Normals[3].ETo.Percentiles.P95 = 0 }},
		{"month out of range", func(s *Snapshot) { s.Normals[0].Month = 0 }},
		{"duplicate normal", func(s *Snapshot) { s.Normals = append(s.Normals, s.Normals[0]) }},
		{"unknown reference", func(s *Snapshot) { s.Normals[0].ReferenceID = "nowhere" }},
		{"duplicate reference", func(s *Snapshot) { s.References = append(s.References, s.References[0]) }},
		{"reference out of bounds", func(s *Snapshot) { s.References[0].Lat = 123 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := sampleSnapshot()
			tt.mutate(snap)
			_, err := snap.Store()
			if !types.IsCode(err, types.ErrCodeValidationInvalidNormal) {
				t.Errorf("error = %v, want code %s", err, types.ErrCodeValidationInvalidNormal)
			}
		})
	}
}

func TestStore_Candidates(t *testing.T) {
	s, err := sampleSnapshot().Store()
	if err != nil {
		t.Fatal(err)
	}

	c := s.Candidates()
	if len(c) != 3 {
		t.Fatalf("len = %d, want 3", len(c))
	}
	kinds := map[types.CandidateKind]int{}
	for _, cand := range c {
		kinds[cand.Kind]++
	}
	if kinds[types.CandidateCity] != 2 || kinds[types.CandidateStation] != 1 {
		t.Errorf("kinds = %v", kinds)
	}
	if refs := s.References(); refs[0].ID != "brasilia" || refs[1].ID != "goiania" {
		t.Errorf("references not ordered: %v", refs)
	}
}
