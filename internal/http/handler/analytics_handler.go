package handler

import (
	"net/http"
	"time"

	"github.com/straye-as/target-analytics/internal/domain"
	"github.com/straye-as/target-analytics/internal/service"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	loc              *time.Location
	logger           *zap.Logger
}

func NewAnalyticsHandler(analyticsService *service.AnalyticsService, loc *time.Location, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		loc:              loc,
		logger:           logger,
	}
}

func (h *AnalyticsHandler) rangeRequest(w http.ResponseWriter, r *http.Request) (*domain.RangeRequest, bool) {
	q := newQueryParser(r, h.loc)
	req := &domain.RangeRequest{
		From:   q.Time("from", false),
		To:     q.Time("to", true),
		ZoneID: q.UUID("zoneId"),
	}
	if errs := q.Err(); errs != nil {
		respondValidationError(w, errs)
		return nil, false
	}
	return req, true
}

// @Summary Product type breakdown
// @Description All nine product types, zero-filled, with their Pareto ordering.
// @Tags Analytics
// @Produce json
// @Param from query string false "Start date"
// @Param to query string false "End date"
// @Param zoneId query string false "Zone ID"
// @Success 200 {object} domain.ProductTypeBreakdown
// @Router /analytics/product-types [get]
func (h *AnalyticsHandler) ProductTypes(w http.ResponseWriter, r *http.Request) {
	req, ok := h.rangeRequest(w, r)
	if !ok {
		return
	}
	out, err := h.analyticsService.ProductTypeBreakdown(r.Context(), req)
	if err != nil {
		handleError(w, r, h.logger, err, "get product type breakdown")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// @Summary Zone by product type pivot
// @Tags Analytics
// @Produce json
// @Param from query string false "Start date"
// @Param to query string false "End date"
// @Success 200 {array} domain.PivotRow
// @Router /analytics/zone-product-pivot [get]
func (h *AnalyticsHandler) ZoneProductPivot(w http.ResponseWriter, r *http.Request) {
	req, ok := h.rangeRequest(w, r)
	if !ok {
		return
	}
	out, err := h.analyticsService.ZoneProductPivot(r.Context(), req)
	if err != nil {
		handleError(w, r, h.logger, err, "get zone product pivot")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// @Summary User by zone matrix
// @Tags Analytics
// @Produce json
// @Param from query string false "Start date"
// @Param to query string false "End date"
// @Success 200 {array} domain.UserZoneRow
// @Router /analytics/user-zone [get]
func (h *AnalyticsHandler) UserZone(w http.ResponseWriter, r *http.Request) {
	req, ok := h.rangeRequest(w, r)
	if !ok {
		return
	}
	out, err := h.analyticsService.UserZoneMatrix(r.Context(), req)
	if err != nil {
		handleError(w, r, h.logger, err, "get user zone matrix")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// @Summary Monthly time series of a year
// @Tags Analytics
// @Produce json
// @Param year query string true "YYYY"
// @Param zoneId query string false "Zone ID"
// @Param userId query string false "User ID"
// @Success 200 {array} domain.TimeSeriesPoint
// @Router /analytics/time-series [get]
func (h *AnalyticsHandler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r, h.loc)
	req := &domain.TimeSeriesRequest{
		Year:   q.String("year"),
		ZoneID: q.UUID("zoneId"),
		UserID: q.UUID("userId"),
	}
	if errs := q.Err(); errs != nil {
		respondValidationError(w, errs)
		return
	}
	out, err := h.analyticsService.TimeSeries(r.Context(), req)
	if err != nil {
		handleError(w, r, h.logger, err, "get time series")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// @Summary Top or bottom achieving targets
// @Tags Analytics
// @Produce json
// @Param period query string true "YYYY or YYYY-MM"
// @Param periodType query string true "MONTHLY or YEARLY"
// @Param scope query string true "zone or user"
// @Param n query int false "Number of rows, default from config"
// @Param order query string false "asc or desc (default)"
// @Success 200 {array} domain.ReconciledTarget
// @Router /analytics/rankings [get]
func (h *AnalyticsHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r, h.loc)
	req := &domain.RankingRequest{
		Period:     q.String("period"),
		PeriodType: q.PeriodType("periodType"),
		Scope:      q.ScopeType("scope"),
		N:          q.Int("n"),
		Order:      q.String("order"),
	}
	if errs := q.Err(); errs != nil {
		respondValidationError(w, errs)
		return
	}
	out, err := h.analyticsService.Rankings(r.Context(), req)
	if err != nil {
		handleError(w, r, h.logger, err, "get rankings")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// @Summary Achievement histogram
// @Description Counts targets per achievement band. Lower bounds are inclusive.
// @Tags Analytics
// @Produce json
// @Param period query string true "YYYY or YYYY-MM"
// @Param periodType query string true "MONTHLY or YEARLY"
// @Success 200 {array} domain.HistogramBucket
// @Router /analytics/histogram [get]
func (h *AnalyticsHandler) Histogram(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r, h.loc)
	req := &domain.AchievementRequest{
		Period:     q.String("period"),
		PeriodType: q.PeriodType("periodType"),
	}
	if errs := q.Err(); errs != nil {
		respondValidationError(w, errs)
		return
	}
	out, err := h.analyticsService.Histogram(r.Context(), req)
	if err != nil {
		handleError(w, r, h.logger, err, "get achievement histogram")
		return
	}
	respondJSON(w, http.StatusOK, out)
}
