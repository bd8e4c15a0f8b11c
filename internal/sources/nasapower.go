package sources

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"etofusion/internal/types"
)

// powerFillValue marks missing data in POWER responses.
const powerFillValue = -999.0

const powerDateLayout = "20060102"

// POWER parameter names, community AG (radiation in MJ/m2/day).
const (
	powerTempMax  = "T2M_MAX"
	powerTempMin  = "T2M_MIN"
	powerTempMean = "T2M"
	powerPrecip   = "PRECTOTCORR"
	powerWind     = "WS2M"
	powerRad      = "ALLSKY_SFC_SW_DWN"
	powerHumidity = "RH2M"
)

var powerParameters = []string{powerTempMax, powerTempMin, powerTempMean, powerPrecip, powerWind, powerRad, powerHumidity}

// NASAPower reads the NASA POWER daily point API. POWER has no ETo product,
// so ETo is derived from its inputs.
type NASAPower struct {
	client  *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewNASAPower creates the adapter.
func NewNASAPower(client *BaseClient, baseURL string, logger *slog.Logger) *NASAPower {
	if logger == nil {
		logger = slog.Default()
	}
	return &NASAPower{client: client, baseURL: baseURL, logger: logger.With("source", SourceNASAPower)}
}

func (p *NASAPower) Name() string { return SourceNASAPower }

type powerResponse struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Header struct {
		FillValue *float64 `json:"fill_value"`
	} `json:"header"`
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

func (p *NASAPower) Fetch(ctx context.Context, lat, lon float64, start, end time.Time) ([]types.SourceMeasurement, error) {
	q := url.Values{}
	q.Set("parameters", strings.Join(powerParameters, ","))
	q.Set("community", "AG")
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("start", start.Format(powerDateLayout))
	q.Set("end", end.Format(powerDateLayout))
	q.Set("format", "JSON")

	var payload powerResponse
	if err := p.client.GetJSON(ctx, p.baseURL+"?"+q.Encode(), &payload); err != nil {
		return nil, err
	}
	params := payload.Properties.Parameter
	if len(params) == 0 {
		return nil, newSourceError(SourceNASAPower, KindInvalidResponse, fmt.Errorf("response has no parameters"))
	}

	fill := powerFillValue
	if payload.Header.FillValue != nil {
		fill = *payload.Header.FillValue
	}
	elevation := math.NaN()
	if c := payload.Geometry.Coordinates; len(c) >= 3 {
		elevation = c[2]
	}

	value := func(param, key string) float64 {
		v, ok := params[param][key]
		if !ok || v == fill {
			return math.NaN()
		}
		return v
	}

	keys := make(map[string]struct{})
	for _, series := range params {
		for k := range series {
			keys[k] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	start, end = types.TruncateDay(start), types.TruncateDay(end)
	out := make([]types.SourceMeasurement, 0, len(sorted))
	for _, k := range sorted {
		day, err := time.Parse(powerDateLayout, k)
		if err != nil {
			return nil, newSourceError(SourceNASAPower, KindInvalidResponse, fmt.Errorf("parsing date %q: %w", k, err))
		}
		if day.Before(start) || day.After(end) {
			continue
		}

		m := types.NewSourceMeasurement(SourceNASAPower, day)
		m.TempMax = value(powerTempMax, k)
		m.TempMin = value(powerTempMin, k)
		m.TempMean = value(powerTempMean, k)
		m.Precipitation = value(powerPrecip, k)
		m.WindSpeed = value(powerWind, k)
		m.Radiation = value(powerRad, k)
		m.Humidity = value(powerHumidity, k)
		m.ETo = derivedETo(m, lat, elevation)
		if m.HasAnyValue(types.AllVariables) {
			out = append(out, m)
		}
	}

	p.logger.DebugContext(ctx, "fetched measurements", "days", len(out))
	return out, nil
}
