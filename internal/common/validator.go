package common

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GenericEchoValidator validates bound request structs and reports failures as 400 responses.
type GenericEchoValidator struct {
	Validator *validator.Validate
}

// NewGenericEchoValidator reports fields by their query, form or json name instead of the Go field name.
func NewGenericEchoValidator() *GenericEchoValidator {
	v := validator.New()
	v.RegisterTagNameFunc(requestFieldName)
	return &GenericEchoValidator{Validator: v}
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	if gv.Validator == nil {
		gv.Validator = validator.New()
	}
	if err := gv.Validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request: %v", err))
	}
	return nil
}

func requestFieldName(field reflect.StructField) string {
	for _, tag := range []string{"query", "form", "json"} {
		name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}
