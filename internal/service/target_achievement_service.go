package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/straye-as/target-analytics/internal/analytics"
	"github.com/straye-as/target-analytics/internal/cache"
	"github.com/straye-as/target-analytics/internal/domain"
	"github.com/straye-as/target-analytics/internal/logger"
	"github.com/straye-as/target-analytics/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OfferSource reads offers. Implemented by the gorm offer repository and the
// data warehouse client.
type OfferSource interface {
	ListOffers(ctx context.Context, filter repository.OfferFilter) ([]domain.Offer, error)
}

// TargetStore reads and writes targets
type TargetStore interface {
	ListTargets(ctx context.Context, filter repository.TargetFilter) ([]domain.Target, error)
	Upsert(ctx context.Context, target *domain.Target) (bool, error)
}

// ReferenceSource provides zones and users
type ReferenceSource interface {
	ListZones(ctx context.Context, activeOnly bool) ([]domain.Zone, error)
	ListUsers(ctx context.Context, activeOnly bool) ([]domain.User, error)
}

// ReportCache stores computed reports. A nil *cache.ReportCache satisfies it
// as a disabled cache.
type ReportCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	InvalidatePeriod(ctx context.Context, period string) error
}

// References is a snapshot of zones and users with id lookups
type References struct {
	Zones []domain.Zone
	Users []domain.User
	zones map[uuid.UUID]domain.Zone
	users map[uuid.UUID]domain.User
}

func newReferences(zones []domain.Zone, users []domain.User) *References {
	r := &References{
		Zones: zones,
		Users: users,
		zones: make(map[uuid.UUID]domain.Zone, len(zones)),
		users: make(map[uuid.UUID]domain.User, len(users)),
	}
	for _, z := range zones {
		r.zones[z.ID] = z
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

// ScopeNames maps every zone and user id to its display name
func (r *References) ScopeNames() map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(r.zones)+len(r.users))
	for id, z := range r.zones {
		names[id] = z.Name
	}
	for id, u := range r.users {
		names[id] = u.Name
	}
	return names
}

type TargetAchievementService struct {
	offers   OfferSource
	targets  TargetStore
	refs     ReferenceSource
	cache    ReportCache
	opts     analytics.Options
	validate *validator.Validate
	logger   *zap.Logger
}

func NewTargetAchievementService(
	offers OfferSource,
	targets TargetStore,
	refs ReferenceSource,
	reportCache ReportCache,
	opts analytics.Options,
	logger *zap.Logger,
) *TargetAchievementService {
	if reportCache == nil {
		reportCache = (*cache.ReportCache)(nil)
	}
	return &TargetAchievementService{
		offers:   offers,
		targets:  targets,
		refs:     refs,
		cache:    reportCache,
		opts:     opts,
		validate: newValidator(),
		logger:   logger,
	}
}

// Options returns the engine options the service runs with
func (s *TargetAchievementService) Options() analytics.Options {
	return s.opts
}

func (s *TargetAchievementService) location() *time.Location {
	if s.opts.Location == nil {
		return time.UTC
	}
	return s.opts.Location
}

func (s *TargetAchievementService) now() time.Time {
	if s.opts.Now == nil {
		return time.Now().In(s.location())
	}
	return s.opts.Now().In(s.location())
}

// LoadReferences fetches all zones and users, including inactive ones so
// historic targets still resolve their names
func (s *TargetAchievementService) LoadReferences(ctx context.Context) (*References, error) {
	zones, err := s.refs.ListZones(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}
	users, err := s.refs.ListUsers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return newReferences(zones, users), nil
}

// checkRange rejects inverted date ranges
func checkRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return analytics.BadInput(nil, "from %s is after to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return nil
}

// GetAchievement reconciles the period's targets against offers and returns the
// zone and user rows, the summary and, for the current month, the pacing.
func (s *TargetAchievementService) GetAchievement(ctx context.Context, req *domain.AchievementRequest) (*domain.AchievementReport, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}
	if req.ProductType != nil && !req.ProductType.IsValid() {
		return nil, analytics.BadInput(nil, "unknown product type %q", *req.ProductType)
	}
	period, err := domain.ParsePeriod(req.Period, req.PeriodType, s.location())
	if err != nil {
		return nil, analytics.BadInput(err, "invalid period")
	}
	if err := checkRange(req.From, req.To); err != nil {
		return nil, err
	}

	refs, err := s.LoadReferences(ctx)
	if err != nil {
		return nil, err
	}
	if req.ZoneID != nil {
		if _, ok := refs.zones[*req.ZoneID]; !ok {
			return nil, analytics.BadInput(nil, "unknown zone %s", *req.ZoneID)
		}
	}
	if req.UserID != nil {
		if _, ok := refs.users[*req.UserID]; !ok {
			return nil, analytics.BadInput(nil, "unknown user %s", *req.UserID)
		}
	}

	now := s.now()
	cacheKey, err := cache.Key("achievement", period.Key, struct {
		Request *domain.AchievementRequest `json:"request"`
		Day     string                     `json:"day"`
	}{req, now.Format(time.DateOnly)})
	if err != nil {
		return nil, err
	}

	log := logger.WithPeriod(s.logger, period)
	var cached domain.AchievementReport
	if found, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
		log.Warn("Report cache read failed", zap.Error(err))
	} else if found {
		return &cached, nil
	}

	report, err := s.buildReport(ctx, req, period, refs, now)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKey, report); err != nil {
		log.Warn("Report cache write failed", zap.Error(err))
	}
	return report, nil
}

func (s *TargetAchievementService) buildReport(ctx context.Context, req *domain.AchievementRequest, period domain.Period, refs *References, now time.Time) (*domain.AchievementReport, error) {
	targets, err := s.targets.ListTargets(ctx, repository.TargetFilter{
		Periods:     []string{period.Key},
		PeriodType:  period.Type,
		ProductType: req.ProductType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}

	targets = selectTargets(targets, req, refs, s.opts)
	if len(targets) == 0 {
		return nil, analytics.NoData("no targets for %s %s", period.Type, period.Key)
	}

	window := analytics.Filter{From: req.From, To: req.To}.Narrow(period.Start, period.End)
	if window.From.After(*window.To) {
		return nil, analytics.BadInput(nil, "date range does not overlap %s %s", period.Type, period.Key)
	}
	offers, err := s.offers.ListOffers(ctx, repository.OfferFilter{
		From:        window.From,
		To:          window.To,
		ProductType: req.ProductType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}

	opts := s.opts
	opts.Now = func() time.Time { return now }
	rows, err := analytics.Reconcile(analytics.ReconcileInput{
		Targets:    targets,
		Offers:     offers,
		Period:     period,
		Filter:     window,
		ScopeNames: refs.ScopeNames(),
	}, opts)
	if err != nil {
		return nil, err
	}

	report := &domain.AchievementReport{
		Period:      period,
		ZoneTargets: []domain.ReconciledTarget{},
		UserTargets: []domain.ReconciledTarget{},
		GeneratedAt: now,
	}
	for _, rt := range rows {
		if rt.ScopeType == domain.ScopeTypeZone {
			report.ZoneTargets = append(report.ZoneTargets, rt)
		} else {
			report.UserTargets = append(report.UserTargets, rt)
		}
	}
	report.Summary = analytics.Summarize(report.ZoneTargets, report.UserTargets)
	report.Pacing = analytics.Project(period, report.Summary.TotalTargetValue, report.Summary.TotalActualValue, now)

	logger.WithPeriod(s.logger, period).Debug("Achievement report built",
		zap.Int("zone_targets", len(report.ZoneTargets)),
		zap.Int("user_targets", len(report.UserTargets)),
		zap.Int("offers", len(offers)),
	)
	return report, nil
}

// selectTargets applies the request scope. A zone request keeps the zone's own
// targets plus the targets of users reporting to it; a user request keeps
// only that user's targets.
func selectTargets(targets []domain.Target, req *domain.AchievementRequest, refs *References, opts analytics.Options) []domain.Target {
	if req.ZoneID == nil && req.UserID == nil {
		return targets
	}

	out := make([]domain.Target, 0, len(targets))
	for _, t := range targets {
		switch t.ScopeType {
		case domain.ScopeTypeZone:
			if req.UserID == nil && t.ScopeID == *req.ZoneID {
				out = append(out, t)
			}
		case domain.ScopeTypeUser:
			if req.UserID != nil {
				if t.ScopeID == *req.UserID {
					out = append(out, t)
				}
				continue
			}
			if u, ok := refs.users[t.ScopeID]; ok {
				if home, ok := opts.HomeZone(u.ZoneID); ok && home == *req.ZoneID {
					out = append(out, t)
				}
			}
		}
	}
	return out
}

// UpsertTarget creates the target or updates the one with the same key, then
// drops cached reports of its period
func (s *TargetAchievementService) UpsertTarget(ctx context.Context, req *domain.UpsertTargetRequest) (*domain.Target, bool, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, false, err
	}
	if req.ScopeID == uuid.Nil {
		return nil, false, analytics.BadInput(nil, "scopeId is required")
	}
	if req.ProductType != nil && !req.ProductType.IsValid() {
		return nil, false, analytics.BadInput(nil, "unknown product type %q", *req.ProductType)
	}
	period, err := domain.ParsePeriod(req.Period, req.PeriodType, s.location())
	if err != nil {
		return nil, false, analytics.BadInput(err, "invalid period")
	}

	refs, err := s.LoadReferences(ctx)
	if err != nil {
		return nil, false, err
	}
	switch req.ScopeType {
	case domain.ScopeTypeZone:
		if _, ok := refs.zones[req.ScopeID]; !ok {
			return nil, false, analytics.BadInput(nil, "unknown zone %s", req.ScopeID)
		}
	case domain.ScopeTypeUser:
		if _, ok := refs.users[req.ScopeID]; !ok {
			return nil, false, analytics.BadInput(nil, "unknown user %s", req.ScopeID)
		}
	}

	target := &domain.Target{
		ScopeType:        req.ScopeType,
		ScopeID:          req.ScopeID,
		ProductType:      req.ProductType,
		Period:           req.Period,
		PeriodType:       req.PeriodType,
		TargetValue:      req.TargetValue,
		TargetOfferCount: req.TargetOfferCount,
	}
	created, err := s.targets.Upsert(ctx, target)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, analytics.Conflict("target %s was written concurrently, retry the request", target.Key())
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to save target: %w", err)
	}

	if err := s.invalidate(ctx, period); err != nil {
		logger.WithPeriod(s.logger, period).Warn("Report cache invalidation failed", zap.Error(err))
	}

	s.logger.Info("Target saved",
		zap.String("key", target.Key().String()),
		zap.Float64("target_value", target.TargetValue),
		zap.Bool("created", created),
	)
	return target, created, nil
}

// invalidate drops the period's reports and, for a month, the reports of its
// year whose time series include the month's target
func (s *TargetAchievementService) invalidate(ctx context.Context, period domain.Period) error {
	if err := s.cache.InvalidatePeriod(ctx, period.Key); err != nil {
		return err
	}
	if period.Type == domain.PeriodTypeMonthly {
		return s.cache.InvalidatePeriod(ctx, domain.YearKey(period.Start))
	}
	return nil
}
