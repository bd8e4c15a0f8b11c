package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"etofusion/internal/types"
)

// Validator wraps go-playground/validator with the domain tags:
//
//	eto_variable  a supported variable name
//	iso_date      a YYYY-MM-DD calendar date
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	_ = v.RegisterValidation("eto_variable", validateVariable)
	_ = v.RegisterValidation("iso_date", validateISODate)
	return &Validator{validate: v, logger: logger}
}

func validateVariable(fl validator.FieldLevel) bool {
	_, ok := types.VariableUnits[types.Variable(strings.ToLower(strings.TrimSpace(fl.Field().String())))]
	return ok
}

func validateISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := time.Parse(types.DateLayout, s)
	return err == nil
}

// ValidateStruct checks s against its validate tags and, when s implements
// types.Validator, its own Validate method. The first failure is returned
// as an AppError.
func (v *Validator) ValidateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			v.logger.Error("validator misuse", "error", err)
			return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
		}
		fe := verrs[0]
		return types.NewAppErrorWithDetails(
			tagToErrorCode(fe.Field(), fe.Tag()),
			fieldMessage(fe),
			err,
			map[string]any{"field": fe.Field(), "rule": fe.Tag()},
		)
	}
	if sv, ok := s.(types.Validator); ok {
		return sv.Validate()
	}
	return nil
}

func tagToErrorCode(field, tag string) types.ErrorCode {
	switch {
	case tag == "required":
		return types.ErrCodeValidationMissingField
	case field == "lat":
		return types.ErrCodeValidationInvalidLat
	case field == "lon":
		return types.ErrCodeValidationInvalidLon
	case tag == "eto_variable":
		return types.ErrCodeValidationInvalidVariable
	case tag == "iso_date":
		return types.ErrCodeValidationDateRange
	default:
		return types.ErrCodeValidationInvalidParameter
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "iso_date":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", fe.Field())
	case "eto_variable":
		return fmt.Sprintf("unsupported variable: %v", fe.Value())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
