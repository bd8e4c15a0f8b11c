// Package handlers contains the HTTP handlers of the fusion service.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"etofusion/internal/core"
	"etofusion/internal/types"
)

// FusionService is the subset of fusion.Service the handler calls.
type FusionService interface {
	GetFusedSeries(ctx context.Context, loc types.Point, start, end time.Time, vars []types.Variable) ([]types.DayResult, error)
	InvalidateLocation(ctx context.Context, loc types.Point) error
}

// seriesQuery holds the raw query parameters of GET /v1/eto/series.
type seriesQuery struct {
	Lat   *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon   *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
	Start string   `query:"start" validate:"required,iso_date"`
	End   string   `query:"end" validate:"required,iso_date"`
	Vars  []string `query:"vars" validate:"omitempty,dive,eto_variable"`
}

type locationQuery struct {
	Lat *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
}

// SeriesResponse is the data payload of GET /v1/eto/series.
type SeriesResponse struct {
	Location  types.Point      `json:"location"`
	Start     string           `json:"start"`
	End       string           `json:"end"`
	Variables []types.Variable `json:"variables"`
	Days      []DayResponse    `json:"days"`
}

// DayResponse is one day of a series.
type DayResponse struct {
	Date      string                  `json:"date"`
	Status    types.DayStatus         `json:"status"`
	Record    *types.FusedDailyRecord `json:"record,omitempty"`
	Reason    types.Quality           `json:"missing_reason,omitempty"`
	ErrorCode string                  `json:"error_code,omitempty"`
}

// SeriesSummary counts days per status.
type SeriesSummary struct {
	Fused   int `json:"fused"`
	Cached  int `json:"cached"`
	Missing int `json:"missing"`
	Failed  int `json:"failed"`
}

// VariableInfo describes one supported variable.
type VariableInfo struct {
	Name    types.Variable `json:"name"`
	Unit    string         `json:"unit"`
	Default bool           `json:"default"`
}

// EToHandler serves the fused series endpoints.
type EToHandler struct {
	service   FusionService
	validator *core.Validator
	logger    *slog.Logger
}

// NewEToHandler creates an EToHandler.
func NewEToHandler(svc FusionService, val *core.Validator, logger *slog.Logger) *EToHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if val == nil {
		val = core.NewValidator(logger)
	}
	return &EToHandler{service: svc, validator: val, logger: logger}
}

// RegisterRoutes mounts the endpoints under the given router.
func (h *EToHandler) RegisterRoutes(r chi.Router) {
	r.Get("/series", h.HandleGetSeries)
	r.Get("/variables", h.HandleListVariables)
	r.Delete("/cache", h.HandleInvalidate)
}

// HandleGetSeries handles GET /v1/eto/series?lat=&lon=&start=&end=&vars=.
// The response is 200 whenever the request was valid and at least one data
// path worked; each day carries its own status.
func (h *EToHandler) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		core.Error(w, r, err)
		return
	}

	start, err := parseDay("start", q.Start)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	end, err := parseDay("end", q.End)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := types.ValidateDateRange(start, end); err != nil {
		core.Error(w, r, err)
		return
	}
	vars, err := types.ValidateVariables(q.Vars)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	loc := types.Point{Lat: *q.Lat, Lon: *q.Lon}
	days, err := h.service.GetFusedSeries(r.Context(), loc, start, end, vars)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := SeriesResponse{
		Location:  loc,
		Start:     q.Start,
		End:       q.End,
		Variables: vars,
		Days:      make([]DayResponse, 0, len(days)),
	}
	var summary SeriesSummary
	for _, d := range days {
		dr := DayResponse{
			Date:   d.Date.Format(types.DateLayout),
			Status: d.Status,
			Record: d.Record,
			Reason: d.MissingReason,
		}
		switch d.Status {
		case types.DayStatusFused:
			summary.Fused++
		case types.DayStatusCached:
			summary.Cached++
		case types.DayStatusMissing:
			summary.Missing++
		case types.DayStatusFailed:
			summary.Failed++
			dr.ErrorCode = errorCode(d.Err)
		}
		resp.Days = append(resp.Days, dr)
	}

	if summary.Failed > 0 {
		types.LoggerFromContext(r.Context(), h.logger).WarnContext(r.Context(), "series returned with failed days",
			"failed", summary.Failed,
			"location", loc.Fingerprint(),
		)
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp, Meta: summary})
}

// HandleListVariables handles GET /v1/eto/variables.
func (h *EToHandler) HandleListVariables(w http.ResponseWriter, r *http.Request) {
	defaults := make(map[types.Variable]bool, len(types.DefaultVariables))
	for _, v := range types.DefaultVariables {
		defaults[v] = true
	}
	out := make([]VariableInfo, 0, len(types.AllVariables))
	for _, v := range types.AllVariables {
		out = append(out, VariableInfo{Name: v, Unit: types.VariableUnits[v], Default: defaults[v]})
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: out})
}

// HandleInvalidate handles DELETE /v1/eto/cache?lat=&lon=.
func (h *EToHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	var q locationQuery
	var err error
	if q.Lat, err = parseCoord(r, "lat", types.ErrCodeValidationInvalidLat); err != nil {
		core.Error(w, r, err)
		return
	}
	if q.Lon, err = parseCoord(r, "lon", types.ErrCodeValidationInvalidLon); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		core.Error(w, r, err)
		return
	}

	loc := types.Point{Lat: *q.Lat, Lon: *q.Lon}
	if err := h.service.InvalidateLocation(r.Context(), loc); err != nil {
		core.Error(w, r, err)
		return
	}
	types.LoggerFromContext(r.Context(), h.logger).InfoContext(r.Context(), "location cache invalidated", "location", loc.Fingerprint())
	w.WriteHeader(http.StatusNoContent)
}

func parseSeriesQuery(r *http.Request) (seriesQuery, error) {
	var q seriesQuery
	var err error
	if q.Lat, err = parseCoord(r, "lat", types.ErrCodeValidationInvalidLat); err != nil {
		return q, err
	}
	if q.Lon, err = parseCoord(r, "lon", types.ErrCodeValidationInvalidLon); err != nil {
		return q, err
	}
	values := r.URL.Query()
	q.Start = strings.TrimSpace(values.Get("start"))
	q.End = strings.TrimSpace(values.Get("end"))
	for _, raw := range values["vars"] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				q.Vars = append(q.Vars, v)
			}
		}
	}
	return q, nil
}

// parseCoord returns nil for an absent parameter so the required rule can
// report it.
func parseCoord(r *http.Request, name string, code types.ErrorCode) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, types.NewAppError(code, name+" must be a valid number", nil)
	}
	return &f, nil
}

func parseDay(name, raw string) (time.Time, error) {
	t, err := time.Parse(types.DateLayout, raw)
	if err != nil {
		return time.Time{}, types.NewAppErrorWithDetails(types.ErrCodeValidationDateRange,
			name+" must be a YYYY-MM-DD date", err, map[string]any{"field": name})
	}
	return t, nil
}

func errorCode(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Code)
	}
	if err != nil {
		return string(types.ErrCodeInternalUnexpected)
	}
	return ""
}
