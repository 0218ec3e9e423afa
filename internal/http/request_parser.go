// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request data.
// Sale submissions arrive as JSON from the API and the service worker and
// as form data from htmx; both go through RequestBodyParser.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"salestracker/internal/core"
	"salestracker/internal/services"
)

const maxBodyBytes = 64 << 10

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most 64 KiB of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse parses the body as JSON when it looks like a JSON object and as
// form data otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || trimmed[0] == '[' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = fmt.Errorf("parse JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	if p.err != nil {
		p.err = fmt.Errorf("parse form body: %w", p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// SaleInput extracts the sale fields. Amounts are passed through as text;
// core coerces them.
func (p *RequestBodyParser) SaleInput() core.SaleInput {
	return core.SaleInput{
		Date:   p.Get("date"),
		Cash:   p.Get("cashAmount"),
		Online: p.Get("onlineAmount"),
		Notes:  p.Get("notes"),
	}
}

// ValidationError lists the invalid fields of a request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Fields, "; ")
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateSale checks the shape of the input. It never looks at amounts.
func (s *Server) validateSale(in core.SaleInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate sale: %w", err)
	}
	ve := &ValidationError{}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "datetime":
			ve.Fields = append(ve.Fields, fe.Field()+" must be a date in YYYY-MM-DD format")
		case "max":
			ve.Fields = append(ve.Fields, fe.Field()+" must be at most "+fe.Param()+" characters")
		default:
			ve.Fields = append(ve.Fields, fe.Field()+" is invalid")
		}
	}
	return ve
}

// ParseChartQuery reads period, view, month and end from query parameters.
// Absent values fall back to the dashboard defaults.
func ParseChartQuery(query url.Values) (services.ChartQuery, error) {
	var q services.ChartQuery
	var err error

	if q.Period, err = core.ParsePeriod(query.Get("period")); err != nil {
		return q, err
	}
	if q.View, err = core.ParseValueView(query.Get("view")); err != nil {
		return q, err
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if q.Month, err = core.ParseYearMonth(v); err != nil {
			return q, err
		}
	}
	if v := strings.TrimSpace(query.Get("end")); v != "" {
		if q.End, err = core.ParseDate(v); err != nil {
			return q, err
		}
	}
	return q, nil
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireGET is a convenience function for GET-only handlers.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}
