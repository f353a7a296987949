package server

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"bugtracker/internal/models"
	"bugtracker/internal/tracker"
)

var registerOnce sync.Once

// registerValidators teaches gin's validator the custom tags used by the
// request bodies and makes it report JSON field names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		_ = v.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
			status, ok := fl.Field().Interface().(models.TaskStatus)
			return ok && status.Valid()
		})
	})
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// bindError converts a gin binding failure into a ValidationError with per-field detail.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return &tracker.ValidationError{Message: "request validation failed", Fields: fields}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &tracker.ValidationError{
			Message: "malformed request body",
			Fields:  map[string]string{typeErr.Field: "type"},
		}
	}
	return &tracker.ValidationError{Message: "malformed request body: " + err.Error()}
}
