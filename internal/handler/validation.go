package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prperemyshlev/aths/internal/apperrors"
	"github.com/prperemyshlev/aths/internal/service"
)

const msgMalformedBody = "Request body must be valid JSON"

var jsonNamesOnce sync.Once

// useJSONFieldNames makes validation errors report the json name of a field
func useJSONFieldNames() {
	jsonNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON decodes and validates the request body into obj
func bindJSON(c *gin.Context, obj any) error {
	useJSONFieldNames()

	err := c.ShouldBindJSON(obj)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]apperrors.FieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, apperrors.Field(fe.Field(), fieldMessage(fe)))
		}
		return apperrors.Validation(service.MsgValidationFailed, fields...)
	}

	return apperrors.Validation(msgMalformedBody, apperrors.Field("body", msgMalformedBody)).WithCause(err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return service.MsgInvalidEmail
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
