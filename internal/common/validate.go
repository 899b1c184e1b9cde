package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator. Field names in errors use
// the json tag.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// FieldErrors flattens validator errors into field → rule.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule = fmt.Sprintf("%s=%s", rule, fe.Param())
		}
		out[fe.Namespace()] = rule
	}
	return out
}

// DecodeAndValidate reads a JSON body into dst and validates it.
func DecodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return NewAppError("PAYLOAD_TOO_LARGE", "request entity too large", http.StatusRequestEntityTooLarge, err)
		}
		return BadRequest("invalid JSON body", err, nil)
	}
	if err := Validator().Struct(dst); err != nil {
		return BadRequest("validation failed", err, FieldErrors(err))
	}
	return nil
}
