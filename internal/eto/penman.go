// Package eto derives daily reference evapotranspiration with the FAO-56
// Penman-Monteith equation for sources that report weather inputs but no ETo.
package eto

import (
	"math"
	"time"
)

const (
	solarConstant = 0.0820   // MJ m-2 min-1
	stefanBoltz   = 4.903e-9 // MJ K-4 m-2 day-1
	albedo        = 0.23
)

// Inputs are the daily weather values the equation needs. NaN marks a
// missing value.
type Inputs struct {
	Date         time.Time
	LatDeg       float64
	ElevationM   float64
	TempMax      float64 // degC
	TempMin      float64 // degC
	HumidityMean float64 // percent
	WindSpeed2m  float64 // m/s at 2 m
	Radiation    float64 // MJ m-2 day-1, incoming shortwave
}

// ReferenceET returns ETo in mm/day, or NaN when an input is missing.
// Soil heat flux is taken as zero at daily steps.
func ReferenceET(in Inputs) float64 {
	for _, v := range []float64{in.TempMax, in.TempMin, in.HumidityMean, in.WindSpeed2m, in.Radiation} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.NaN()
		}
	}
	if math.IsNaN(in.ElevationM) {
		in.ElevationM = 0
	}

	tmean := (in.TempMax + in.TempMin) / 2
	delta := 4098 * saturationVP(tmean) / math.Pow(tmean+237.3, 2)

	pressure := 101.3 * math.Pow((293-0.0065*in.ElevationM)/293, 5.26)
	gamma := 0.000665 * pressure

	es := (saturationVP(in.TempMax) + saturationVP(in.TempMin)) / 2
	ea := math.Min(math.Max(in.HumidityMean, 0), 100) / 100 * es

	ra := ExtraterrestrialRadiation(in.Date, in.LatDeg)
	rso := (0.75 + 2e-5*in.ElevationM) * ra
	rns := (1 - albedo) * in.Radiation

	ratio := 1.0
	if rso > 0 {
		ratio = math.Min(in.Radiation/rso, 1)
	}
	tk4 := (math.Pow(in.TempMax+273.16, 4) + math.Pow(in.TempMin+273.16, 4)) / 2
	rnl := stefanBoltz * tk4 * (0.34 - 0.14*math.Sqrt(ea)) * (1.35*ratio - 0.35)
	rn := rns - rnl

	u2 := math.Max(in.WindSpeed2m, 0)
	num := 0.408*delta*rn + gamma*900/(tmean+273)*u2*(es-ea)
	den := delta + gamma*(1+0.34*u2)
	return math.Max(num/den, 0)
}

// ExtraterrestrialRadiation is daily Ra in MJ m-2 day-1 for a latitude.
func ExtraterrestrialRadiation(day time.Time, latDeg float64) float64 {
	j := float64(day.YearDay())
	dr := 1 + 0.033*math.Cos(2*math.Pi*j/365)
	decl := 0.409 * math.Sin(2*math.Pi*j/365-1.39)
	phi := latDeg * math.Pi / 180

	ws := math.Acos(math.Min(math.Max(-math.Tan(phi)*math.Tan(decl), -1), 1))
	return 24 * 60 / math.Pi * solarConstant * dr *
		(ws*math.Sin(phi)*math.Sin(decl) + math.Cos(phi)*math.Cos(decl)*math.Sin(ws))
}

// Wind2m converts a wind speed measured at heightM to the 2 m standard
// with the FAO-56 logarithmic profile.
func Wind2m(speed, heightM float64) float64 {
	if heightM == 2 {
		return speed
	}
	return speed * 4.87 / math.Log(67.8*heightM-5.42)
}

func saturationVP(t float64) float64 {
	return 0.6108 * math.Exp(17.27*t/(t+237.3))
}
