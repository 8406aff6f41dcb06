package handler

import (
	"net/http"
	"time"

	"github.com/straye-as/target-analytics/internal/domain"
	"github.com/straye-as/target-analytics/internal/service"
	"go.uber.org/zap"
)

type TargetHandler struct {
	achievementService *service.TargetAchievementService
	loc                *time.Location
	logger             *zap.Logger
}

func NewTargetHandler(achievementService *service.TargetAchievementService, loc *time.Location, logger *zap.Logger) *TargetHandler {
	return &TargetHandler{
		achievementService: achievementService,
		loc:                loc,
		logger:             logger,
	}
}

// @Summary Get target achievement
// @Description Reconciles the zone and user targets of a period against offers.
// @Description Actual value is the won value; expected achievement counts open
// @Description offers above 50% probability. The current month carries pacing.
// @Tags Targets
// @Produce json
// @Param period query string true "YYYY or YYYY-MM"
// @Param periodType query string true "MONTHLY or YEARLY"
// @Param zoneId query string false "Zone ID"
// @Param userId query string false "User ID"
// @Param productType query string false "Product type"
// @Param from query string false "Start date, narrows the period"
// @Param to query string false "End date, narrows the period"
// @Success 200 {object} domain.AchievementReport
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError "No targets for the period"
// @Failure 409 {object} domain.APIError "Duplicate targets"
// @Router /targets/achievement [get]
func (h *TargetHandler) GetAchievement(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r, h.loc)
	req := &domain.AchievementRequest{
		Period:      q.String("period"),
		PeriodType:  q.PeriodType("periodType"),
		ZoneID:      q.UUID("zoneId"),
		UserID:      q.UUID("userId"),
		ProductType: q.ProductType("productType"),
		From:        q.Time("from", false),
		To:          q.Time("to", true),
	}
	if errs := q.Err(); errs != nil {
		respondValidationError(w, errs)
		return
	}

	report, err := h.achievementService.GetAchievement(r.Context(), req)
	if err != nil {
		handleError(w, r, h.logger, err, "get target achievement")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// @Summary Create or update a target
// @Description Targets are unique per scope, scope id, product type, period and
// @Description period type. An existing target with the same key is updated.
// @Tags Targets
// @Accept json
// @Produce json
// @Param target body domain.UpsertTargetRequest true "Target"
// @Success 200 {object} domain.Target "Updated"
// @Success 201 {object} domain.Target "Created"
// @Failure 400 {object} domain.APIError
// @Router /targets [put]
func (h *TargetHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req domain.UpsertTargetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, created, err := h.achievementService.UpsertTarget(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err, "save target")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, target)
}
