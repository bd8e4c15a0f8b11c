package sources

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"etofusion/internal/eto"
	"etofusion/internal/types"
)

// openMeteoWindHeight is the anemometer height of Open-Meteo's daily wind.
const openMeteoWindHeight = 10.0

var openMeteoDaily = []string{
	"temperature_2m_max",
	"temperature_2m_min",
	"temperature_2m_mean",
	"precipitation_sum",
	"wind_speed_10m_mean",
	"shortwave_radiation_sum",
	"relative_humidity_2m_mean",
	"et0_fao_evapotranspiration",
}

// OpenMeteo reads the Open-Meteo historical weather archive.
type OpenMeteo struct {
	client  *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewOpenMeteo creates the adapter. baseURL is the archive endpoint.
func NewOpenMeteo(client *BaseClient, baseURL string, logger *slog.Logger) *OpenMeteo {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenMeteo{client: client, baseURL: baseURL, logger: logger.With("source", SourceOpenMeteo)}
}

func (o *OpenMeteo) Name() string { return SourceOpenMeteo }

type openMeteoResponse struct {
	Elevation float64 `json:"elevation"`
	Daily     struct {
		Time     []string   `json:"time"`
		TempMax  []*float64 `json:"temperature_2m_max"`
		TempMin  []*float64 `json:"temperature_2m_min"`
		TempMean []*float64 `json:"temperature_2m_mean"`
		Precip   []*float64 `json:"precipitation_sum"`
		Wind     []*float64 `json:"wind_speed_10m_mean"`
		Rad      []*float64 `json:"shortwave_radiation_sum"`
		Humidity []*float64 `json:"relative_humidity_2m_mean"`
		ETo      []*float64 `json:"et0_fao_evapotranspiration"`
	} `json:"daily"`
}

// Fetch returns one measurement per day the archive reports.
func (o *OpenMeteo) Fetch(ctx context.Context, lat, lon float64, start, end time.Time) ([]types.SourceMeasurement, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("start_date", start.Format(types.DateLayout))
	q.Set("end_date", end.Format(types.DateLayout))
	q.Set("daily", strings.Join(openMeteoDaily, ","))
	q.Set("timezone", "UTC")
	q.Set("wind_speed_unit", "ms")

	var payload openMeteoResponse
	if err := o.client.GetJSON(ctx, o.baseURL+"?"+q.Encode(), &payload); err != nil {
		return nil, err
	}

	d := payload.Daily
	n := len(d.Time)
	for _, col := range [][]*float64{d.TempMax, d.TempMin, d.TempMean, d.Precip, d.Wind, d.Rad, d.Humidity, d.ETo} {
		if col != nil && len(col) != n {
			return nil, newSourceError(SourceOpenMeteo, KindInvalidResponse,
				fmt.Errorf("daily column length %d does not match %d dates", len(col), n))
		}
	}

	start, end = types.TruncateDay(start), types.TruncateDay(end)
	out := make([]types.SourceMeasurement, 0, n)
	for i, raw := range d.Time {
		day, err := time.Parse(types.DateLayout, raw)
		if err != nil {
			return nil, newSourceError(SourceOpenMeteo, KindInvalidResponse, fmt.Errorf("parsing date %q: %w", raw, err))
		}
		if day.Before(start) || day.After(end) {
			continue
		}

		m := types.NewSourceMeasurement(SourceOpenMeteo, day)
		m.TempMax = at(d.TempMax, i)
		m.TempMin = at(d.TempMin, i)
		m.TempMean = at(d.TempMean, i)
		m.Precipitation = at(d.Precip, i)
		m.WindSpeed = eto.Wind2m(at(d.Wind, i), openMeteoWindHeight)
		m.Radiation = at(d.Rad, i)
		m.Humidity = at(d.Humidity, i)
		m.ETo = at(d.ETo, i)
		if math.IsNaN(m.ETo) {
			m.ETo = derivedETo(m, lat, payload.Elevation)
		}
		if m.HasAnyValue(types.AllVariables) {
			out = append(out, m)
		}
	}

	o.logger.DebugContext(ctx, "fetched measurements", "days", len(out))
	return out, nil
}

// at reads column i, treating null and absent columns as NaN.
func at(col []*float64, i int) float64 {
	if i >= len(col) || col[i] == nil {
		return math.NaN()
	}
	return *col[i]
}

// derivedETo fills ETo from the weather inputs a measurement carries.
func derivedETo(m types.SourceMeasurement, lat, elevationM float64) float64 {
	return eto.ReferenceET(eto.Inputs{
		Date:         m.Date,
		LatDeg:       lat,
		ElevationM:   elevationM,
		TempMax:      m.TempMax,
		TempMin:      m.TempMin,
		HumidityMean: m.Humidity,
		WindSpeed2m:  m.WindSpeed,
		Radiation:    m.Radiation,
	})
}
