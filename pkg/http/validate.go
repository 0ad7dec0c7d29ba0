package http

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var (
	validate  *validator.Validate
	tickerRex = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return tickerRex.MatchString(fl.Field().String())
	})
}

// Validate runs struct validation outside of a request.
func Validate(v interface{}) error {
	return validate.Struct(v)
}

// ReadAndValidateRequest binds req from the request, fills `default` tags,
// then validates it. It returns nil or a []ValidationError for BadRequestResponse.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: fieldMessage(fe),
				Params:  fieldParams(fe),
			})
		}
		return out
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_BIND", Message: msg}}
}

// constraint phrases keyed by tag; %s is the tag parameter
var phrases = map[string]string{
	"required": "is required",
	"ticker":   "must be 1-10 characters of A-Z, 0-9, '.' or '-'",
	"numeric":  "must be numeric",
	"gtfield":  "must be greater than %s",
	"oneof":    "must be one of: %s",
	"gt":       "must be greater than %s",
	"gte":      "must be greater than or equal to %s",
	"lt":       "must be less than %s",
	"lte":      "must be less than or equal to %s",
	"min":      "must be at least %s",
	"max":      "must be at most %s",
}

func fieldMessage(fe validator.FieldError) string {
	p, ok := phrases[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
	param := fe.Param()
	if fe.Tag() == "oneof" {
		param = strings.ReplaceAll(param, " ", ", ")
	}
	if strings.Contains(p, "%s") {
		p = fmt.Sprintf(p, param)
	}
	if (fe.Tag() == "min" || fe.Tag() == "max") && fe.Kind() == reflect.String {
		p += " characters"
	}
	return fe.Field() + " " + p
}

func fieldParams(fe validator.FieldError) map[string]interface{} {
	switch fe.Tag() {
	case "min", "gte":
		return map[string]interface{}{"min": fe.Param()}
	case "max", "lte":
		return map[string]interface{}{"max": fe.Param()}
	case "gt", "lt", "gtfield":
		return map[string]interface{}{"value": fe.Param()}
	case "oneof":
		return map[string]interface{}{"options": strings.Split(fe.Param(), " ")}
	}
	return nil
}
