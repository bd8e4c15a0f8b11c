package eto

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtraterrestrialRadiation(t *testing.T) {
	// 3 September at 20 degrees south.
	got := ExtraterrestrialRadiation(time.Date(2015, 9, 3, 0, 0, 0, 0, time.UTC), -20)
	assert.InDelta(t, 32.2, got, 0.05)
}

func TestReferenceET_Brussels(t *testing.T) {
	// Brussels, 6 July: 21.5/12.3 degC, ea 1.409 kPa, u2 2.078 m/s, Rs 22.07.
	got := ReferenceET(Inputs{
		Date:         time.Date(2015, 7, 6, 0, 0, 0, 0, time.UTC),
		LatDeg:       50.8,
		ElevationM:   100,
		TempMax:      21.5,
		TempMin:      12.3,
		HumidityMean: 70.54,
		WindSpeed2m:  2.078,
		Radiation:    22.07,
	})
	assert.InDelta(t, 3.9, got, 0.1)
}

func TestReferenceET_MissingInput(t *testing.T) {
	got := ReferenceET(Inputs{
		Date:         time.Date(2015, 7, 6, 0, 0, 0, 0, time.UTC),
		LatDeg:       50.8,
		TempMax:      21.5,
		TempMin:      12.3,
		HumidityMean: math.NaN(),
		WindSpeed2m:  2,
		Radiation:    20,
	})
	assert.True(t, math.IsNaN(got))
}

func TestReferenceET_NeverNegative(t *testing.T) {
	got := ReferenceET(Inputs{
		Date:         time.Date(2015, 12, 21, 0, 0, 0, 0, time.UTC),
		LatDeg:       70,
		TempMax:      -20,
		TempMin:      -30,
		HumidityMean: 100,
		WindSpeed2m:  0,
		Radiation:    0,
	})
	assert.GreaterOrEqual(t, got, 0.0)
}

func TestWind2m(t *testing.T) {
	assert.Equal(t, 3.0, Wind2m(3, 2))
	assert.InDelta(t, 0.748, Wind2m(1, 10), 0.001)
}
