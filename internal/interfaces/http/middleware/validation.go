package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/leadcrm/backend/internal/interfaces/http/dto"
)

// TagDecimalAmount accepts a plain decimal string such as "75.50".
const TagDecimalAmount = "decimal_amount"

// fixedMessages holds the rejections whose wording does not depend on the tag parameter.
var fixedMessages = map[string]string{
	"required":       "This field is required",
	"uuid":           "Invalid UUID format",
	TagDecimalAmount: "Must be a decimal amount such as 75.50",
}

// SetupValidator installs the custom tags and JSON field naming on gin's binding validator.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return RegisterValidations(v)
}

// RegisterValidations reports fields by their json (or form) name and adds TagDecimalAmount.
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			name, _, _ = strings.Cut(f.Tag.Get("form"), ",")
		}
		return name
	})
	return v.RegisterValidation(TagDecimalAmount, func(fl validator.FieldLevel) bool {
		return isDecimalAmount(fl.Field().String())
	})
}

// isDecimalAmount rejects exponent notation, which decimal.NewFromString would otherwise accept.
func isDecimalAmount(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "eE") {
		return false
	}
	_, err := decimal.NewFromString(s)
	return err == nil
}

// FormatValidationErrors lists one detail per rejected field. Errors other than
// validator.ValidationErrors, such as malformed JSON, produce no details.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var fieldErrs validator.ValidationErrors
	var details []dto.ValidationDetail
	if errors.As(err, &fieldErrs) {
		details = make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: getValidationMessage(fe)})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, getRequestID(c)))
}

func getValidationMessage(fe validator.FieldError) string {
	if msg, ok := fixedMessages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "min":
		return bound("at least", fe)
	case "max":
		return bound("at most", fe)
	case "oneof":
		return "Must be one of: " + fe.Param()
	}
	return "Invalid value"
}

// bound words a min or max rejection, counting items for slices.
func bound(limit string, fe validator.FieldError) string {
	if fe.Kind() == reflect.Slice {
		return fmt.Sprintf("Must contain %s %s item(s)", limit, fe.Param())
	}
	return fmt.Sprintf("Must be %s %s", limit, fe.Param())
}
