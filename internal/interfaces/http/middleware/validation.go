package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/erp/bcsync/internal/interfaces/http/dto"
)

var (
	validatorOnce sync.Once
	validatorErr  error
	translator    ut.Translator
)

// SetupValidator configures gin's validator to report JSON or form field
// names with English messages. Safe to call more than once.
func SetupValidator() error {
	validatorOnce.Do(func() {
		validatorErr = setupValidator()
	})
	return validatorErr
}

func setupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding does not use go-playground/validator")
	}
	v.RegisterTagNameFunc(fieldName)

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return err
	}
	err := v.RegisterTranslation("e164", trans,
		func(t ut.Translator) error {
			return t.Add("e164", "{0} must be a phone number in international format, e.g. +37060000000", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T("e164", fe.Field())
			return msg
		},
	)
	if err != nil {
		return err
	}
	translator = trans
	return nil
}

// fieldName is the json name, else the form name
func fieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
	}
	return name
}

// FormatValidationErrors turns validator errors into the validation error envelope
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			msg := fe.Error()
			if translator != nil {
				msg = fe.Translate(translator)
			}
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: msg})
		}
	}

	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError answers 400 with the validation envelope
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, getRequestIDFromContext(c)))
}

// getRequestIDFromContext prefers the id assigned by RequestID, then a truncated header
func getRequestIDFromContext(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	id := c.GetHeader(HeaderRequestID)
	if len(id) > MaxRequestIDLength {
		return id[:MaxRequestIDLength]
	}
	return id
}
