package normals

import (
	"time"

	"etofusion/internal/types"
)

func ladder(base float64) types.PercentileLadder {
	return types.PercentileLadder{
		P01: base - 1.6, P05: base - 1.1, P10: base - 0.8, P25: base - 0.4,
		P75: base + 0.4, P90: base + 0.8, P95: base + 1.1, P99: base + 1.6,
	}
}

func sampleSnapshot() *Snapshot {
	refs := []types.ReferenceLocation{
		{ID: "brasilia", Name: "Brasília", Country: "BR", Lat: -15.78, Lon: -47.93, ElevationM: 1172},
		{ID: "goiania", Name: "Goiânia", Country: "BR", Lat: -16.68, Lon: -49.25, ElevationM: 749},
	}
	stations := []types.WeatherStation{
		{ID: "A001", Name: "Brasília INMET", Lat: -15.79, Lon: -47.92, Source: "inmet",
			AvailableFrom: time.Date(2000, 5, 7, 0, 0, 0, 0, time.UTC)},
	}
	var normals []types.MonthlyClimateNormal
	for _, ref := range []string{"brasilia", "goiania"} {
		for m := 1; m <= 12; m++ {
			normals = append(normals, types.MonthlyClimateNormal{
				ReferenceID:   ref,
				Period:        "1991-2020",
				Month:         m,
				ETo:           types.VariableNormal{Mean: 4.5, Median: 4.5, StdDev: 0.7, Percentiles: ladder(4.5), Min: 2.1, Max: 7.0, SampleCount: 900},
				Precipitation: types.VariableNormal{Mean: 5, SampleCount: 900},
			})
		}
	}
	return &Snapshot{
		Version:     "2024.1",
		GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		References:  refs,
		Stations:    stations,
		Normals:     normals,
	}
}
