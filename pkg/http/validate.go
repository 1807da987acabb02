package http

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"PolyChannel/pkg/util"
)

var (
	validate = validator.New()

	rulesMu sync.RWMutex
	// messages holds the text for tags registered through RegisterStringRule.
	messages = map[string]string{}
)

func init() {
	if err := RegisterStringRule("symbol", util.IsSymbol, "must be a ticker of letters, digits, '.', '_' or '-'"); err != nil {
		panic(err)
	}
}

// RegisterStringRule adds a validation tag for string fields. ok receives the raw field
// value; msg is appended to the field name when it fails.
func RegisterStringRule(tag string, ok func(string) bool, msg string) error {
	err := validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return ok(fl.Field().String())
	})
	if err != nil {
		return fmt.Errorf("register %s rule: %w", tag, err)
	}
	rulesMu.Lock()
	messages[tag] = msg
	rulesMu.Unlock()
	return nil
}

// ReadAndValidateRequest binds the body, applies defaults and validates. It returns
// nil or a []ValidationError for the client.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return validationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return validationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return validationErrors(err)
	}
	return nil
}

func validationErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]ValidationError, 0, len(verrs))
		for _, e := range verrs {
			out = append(out, ValidationError{
				Code:    "ERR_" + strings.ToUpper(e.Tag()),
				Field:   e.Field(),
				Message: errorMessage(e),
				Params:  errorParams(e),
			})
		}
		return out
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{Code: "ERR_BIND", Message: fmt.Sprintf("%v", he.Message)}}
	}
	return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
}

func errorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	}

	rulesMu.RLock()
	msg, ok := messages[fe.Tag()]
	rulesMu.RUnlock()
	if ok {
		return fmt.Sprintf("%s %s", field, msg)
	}
	return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
}

func errorParams(fe validator.FieldError) map[string]interface{} {
	params := make(map[string]interface{})
	switch fe.Tag() {
	case "gte":
		params["min"] = fe.Param()
	case "max", "lte":
		params["max"] = fe.Param()
	default:
		if v, ok := fe.Value().(string); ok {
			params["value"] = v
		}
	}
	return params
}
