package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	requestValidator = validator.New()
	textPolicy       = bluemonday.StrictPolicy()
)

var errBodyTooLarge = errors.New("request body too large")

func decodeAndValidate(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if isBodyTooLargeError(err) {
			return errBodyTooLarge
		}
		return fmt.Errorf("invalid JSON body")
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err != nil && isBodyTooLargeError(err) {
			return errBodyTooLarge
		}
		return fmt.Errorf("invalid JSON body")
	}

	if err := requestValidator.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]
			field := jsonFieldName(first.Field())
			switch first.Tag() {
			case "required":
				return fmt.Errorf("%s is required", field)
			case "min":
				return fmt.Errorf("%s must be at least %s characters", field, first.Param())
			case "max":
				return fmt.Errorf("%s must be at most %s characters", field, first.Param())
			case "gte", "lte":
				return fmt.Errorf("%s is out of range", field)
			default:
				return fmt.Errorf("invalid %s", field)
			}
		}

		return fmt.Errorf("invalid request payload")
	}

	return nil
}

// decodeRequest decodes the body into dst and writes the matching error
// response on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := decodeAndValidate(r.Body, dst)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errBodyTooLarge):
		payloadTooLarge(w, "Request body too large")
	default:
		badRequest(w, err.Error())
	}
	return false
}

func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// sanitizeText strips markup from free text and trims surrounding space.
func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func sanitizeTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := sanitizeText(*s)
	return &clean
}
