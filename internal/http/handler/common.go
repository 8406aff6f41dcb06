package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/straye-as/target-analytics/internal/analytics"
	"github.com/straye-as/target-analytics/internal/domain"
	"github.com/straye-as/target-analytics/internal/http/middleware"
	"github.com/straye-as/target-analytics/internal/service"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, domain.APIError{
		Type:   getErrorType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: message,
	})
}

// respondValidationError sends field level messages keyed by JSON name
func respondValidationError(w http.ResponseWriter, fields map[string]string) {
	respondJSON(w, http.StatusBadRequest, domain.APIError{
		Type:   domain.ErrorTypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: "One or more fields failed validation",
		Errors: fields,
	})
}

// getErrorType returns the appropriate error type for an HTTP status code
func getErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeBadRequest
	case http.StatusNotFound:
		return domain.ErrorTypeNoData
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusTooManyRequests:
		return domain.ErrorTypeRateLimit
	default:
		return domain.ErrorTypeInternal
	}
}

// statusFor maps an engine error kind to its HTTP status
func statusFor(kind analytics.ErrorKind) int {
	switch kind {
	case analytics.KindBadInput:
		return http.StatusBadRequest
	case analytics.KindNoData:
		return http.StatusNotFound
	case analytics.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes the response for a service error. Engine errors carry
// their own message; anything else is logged and hidden behind a 500.
func handleError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, action string) {
	var fields service.FieldErrors
	if errors.As(err, &fields) {
		respondValidationError(w, fields)
		return
	}

	var engineErr *analytics.Error
	if errors.As(err, &engineErr) {
		status := statusFor(engineErr.Kind)
		if status == http.StatusConflict {
			middleware.LoggerFrom(r.Context(), logger).Warn("conflicting targets", zap.String("action", action), zap.Error(err))
		}
		detail := engineErr.Message
		if engineErr.Err != nil {
			detail += ": " + engineErr.Err.Error()
		}
		respondWithError(w, status, detail)
		return
	}

	middleware.LoggerFrom(r.Context(), logger).Error("failed to "+action, zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "Failed to "+action)
}

// queryParser collects parse failures of query parameters so a request with
// several bad values reports all of them at once
type queryParser struct {
	r      *http.Request
	loc    *time.Location
	errors map[string]string
}

func newQueryParser(r *http.Request, loc *time.Location) *queryParser {
	if loc == nil {
		loc = time.UTC
	}
	return &queryParser{r: r, loc: loc, errors: make(map[string]string)}
}

func (p *queryParser) fail(name, msg string) {
	p.errors[name] = msg
}

func (p *queryParser) Err() map[string]string {
	if len(p.errors) == 0 {
		return nil
	}
	return p.errors
}

func (p *queryParser) String(name string) string {
	return strings.TrimSpace(p.r.URL.Query().Get(name))
}

func (p *queryParser) UUID(name string) *uuid.UUID {
	raw := p.String(name)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		p.fail(name, domain.GetValidationMessage("uuid"))
		return nil
	}
	return &id
}

func (p *queryParser) Int(name string) int {
	raw := p.String(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, "Must be an integer")
		return 0
	}
	return n
}

func (p *queryParser) ProductType(name string) *domain.ProductType {
	raw := p.String(name)
	if raw == "" {
		return nil
	}
	pt := domain.ProductType(strings.ToUpper(raw))
	if !pt.IsValid() {
		p.fail(name, domain.GetValidationMessage("oneof"))
		return nil
	}
	return &pt
}

// Time accepts RFC 3339 or a plain date. A plain date is the start of that
// day, or its last instant when endOfDay is set, in the analytics time zone.
func (p *queryParser) Time(name string, endOfDay bool) *time.Time {
	raw := p.String(name)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	d, err := time.ParseInLocation(time.DateOnly, raw, p.loc)
	if err != nil {
		p.fail(name, fmt.Sprintf("Must be a date (%s) or RFC 3339 timestamp", time.DateOnly))
		return nil
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &d
}

func (p *queryParser) PeriodType(name string) domain.PeriodType {
	return domain.PeriodType(strings.ToUpper(p.String(name)))
}

func (p *queryParser) ScopeType(name string) domain.ScopeType {
	return domain.ScopeType(strings.ToUpper(p.String(name)))
}

// decodeJSON reads a size limited JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
