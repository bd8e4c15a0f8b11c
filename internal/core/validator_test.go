package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etofusion/internal/types"
)

type seriesQuery struct {
	Lat   *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon   *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
	Start string   `query:"start" validate:"required,iso_date"`
	Vars  []string `query:"vars" validate:"omitempty,dive,eto_variable"`
}

func ptr(f float64) *float64 { return &f }

type selfChecked struct {
	Point types.Point `json:"point"`
}

func (s selfChecked) Validate() error { return s.Point.Validate() }

func TestValidateStruct(t *testing.T) {
	v := NewValidator(nil)

	tests := []struct {
		name  string
		in    seriesQuery
		code  types.ErrorCode
		field string
	}{
		{name: "valid", in: seriesQuery{Lat: ptr(-15.8), Lon: ptr(-47.9), Start: "2024-01-01", Vars: []string{"eto", "PRECIPITATION"}}},
		{name: "missing lat", in: seriesQuery{Lon: ptr(0), Start: "2024-01-01"}, code: types.ErrCodeValidationMissingField, field: "lat"},
		{name: "lat range", in: seriesQuery{Lat: ptr(91), Lon: ptr(0), Start: "2024-01-01"}, code: types.ErrCodeValidationInvalidLat, field: "lat"},
		{name: "lon range", in: seriesQuery{Lat: ptr(0), Lon: ptr(-181), Start: "2024-01-01"}, code: types.ErrCodeValidationInvalidLon, field: "lon"},
		{name: "bad date", in: seriesQuery{Lat: ptr(0), Lon: ptr(0), Start: "01/02/2024"}, code: types.ErrCodeValidationDateRange, field: "start"},
		{name: "bad variable", in: seriesQuery{Lat: ptr(0), Lon: ptr(0), Start: "2024-01-01", Vars: []string{"snow"}}, code: types.ErrCodeValidationInvalidVariable, field: "vars[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.in)
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, types.IsCode(err, tt.code), "got %v", err)
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestValidateStruct_SelfValidating(t *testing.T) {
	v := NewValidator(nil)

	require.NoError(t, v.ValidateStruct(selfChecked{Point: types.Point{Lat: 10, Lon: 10}}))
	err := v.ValidateStruct(selfChecked{Point: types.Point{Lat: 100}})
	assert.True(t, types.IsCode(err, types.ErrCodeValidationInvalidLat))
}
