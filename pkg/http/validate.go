package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Timeframes accepted by the `timeframe` tag.
var Timeframes = []string{"D1", "H4", "H2", "H1", "M30", "M15"}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(fieldName)
	_ = v.RegisterValidation("symbol", isSymbol)
	_ = v.RegisterValidation("timeframe", isTimeframe)
	_ = v.RegisterValidation("day", isDay)
	return v
}

// fieldName reports the query or json name so errors match what clients send.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"query", "json"} {
		name := strings.Split(f.Tag.Get(tag), ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// isSymbol accepts six letters in either case; handlers upper-case them.
func isSymbol(fl validator.FieldLevel) bool {
	s := strings.ToUpper(fl.Field().String())
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func isTimeframe(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	for _, tf := range Timeframes {
		if s == tf {
			return true
		}
	}
	return false
}

func isDay(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}

// ReadAndValidateRequest binds query, path and body params into req, applies
// `default` tags and validates. It returns nil or a []ValidationError.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	// defaults first so optional fields pass `oneof`
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fes validator.ValidationErrors
	if errors.As(err, &fes) {
		out := make([]ValidationError, 0, len(fes))
		for _, fe := range fes {
			out = append(out, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: message(fe),
				Params:  params(fe),
			})
		}
		return out
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{Code: "ERR_BIND", Message: fmt.Sprint(he.Message)}}
	}
	return []ValidationError{{Code: "ERR_BIND", Message: err.Error()}}
}

func message(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return f + " is required"
	case "symbol":
		return f + " must be a six-letter pair such as EURUSD"
	case "timeframe":
		return f + " must be one of: " + strings.Join(Timeframes, ", ")
	case "day":
		return f + " must be a date in YYYY-MM-DD form"
	case "oneof":
		return f + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", f, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", f, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s accepts at most %s values", f, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", f, fe.Tag())
	}
}

func params(fe validator.FieldError) map[string]interface{} {
	switch fe.Tag() {
	case "timeframe":
		return map[string]interface{}{"options": Timeframes}
	case "oneof":
		return map[string]interface{}{"options": strings.Fields(fe.Param())}
	case "gte", "gt":
		return map[string]interface{}{"min": fe.Param()}
	case "lte", "lt", "max":
		return map[string]interface{}{"max": fe.Param()}
	}
	return nil
}
