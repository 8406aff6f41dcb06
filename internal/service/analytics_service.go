package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/straye-as/target-analytics/internal/analytics"
	"github.com/straye-as/target-analytics/internal/domain"
	"github.com/straye-as/target-analytics/internal/repository"
	"go.uber.org/zap"
)

// AnalyticsService serves the rollup views built on offers and on reconciled
// achievement reports
type AnalyticsService struct {
	achievements *TargetAchievementService
	offers       OfferSource
	targets      TargetStore
	defaultTopN  int
	validate     *validator.Validate
	logger       *zap.Logger
}

func NewAnalyticsService(
	achievements *TargetAchievementService,
	offers OfferSource,
	targets TargetStore,
	defaultTopN int,
	logger *zap.Logger,
) *AnalyticsService {
	if defaultTopN <= 0 {
		defaultTopN = analytics.DefaultRankingSize
	}
	return &AnalyticsService{
		achievements: achievements,
		offers:       offers,
		targets:      targets,
		defaultTopN:  defaultTopN,
		validate:     newValidator(),
		logger:       logger,
	}
}

func (s *AnalyticsService) rangeOffers(ctx context.Context, req *domain.RangeRequest, refs *References) ([]domain.Offer, error) {
	if err := checkRange(req.From, req.To); err != nil {
		return nil, err
	}
	if req.ZoneID != nil {
		if _, ok := refs.zones[*req.ZoneID]; !ok {
			return nil, analytics.BadInput(nil, "unknown zone %s", *req.ZoneID)
		}
	}
	offers, err := s.offers.ListOffers(ctx, repository.OfferFilter{
		From:   req.From,
		To:     req.To,
		ZoneID: req.ZoneID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}
	return offers, nil
}

// ProductTypeBreakdown returns every product type zero-filled, with the Pareto
// ordering of their won values. Total is the won value of the classified offers.
func (s *AnalyticsService) ProductTypeBreakdown(ctx context.Context, req *domain.RangeRequest) (*domain.ProductTypeBreakdown, error) {
	refs, err := s.achievements.LoadReferences(ctx)
	if err != nil {
		return nil, err
	}
	offers, err := s.rangeOffers(ctx, req, refs)
	if err != nil {
		return nil, err
	}

	filter := analytics.Filter{From: req.From, To: req.To, ZoneID: req.ZoneID}
	rows := analytics.NormalizeProductTypes(analytics.Aggregate(offers, analytics.ByProductType, filter))

	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(decimal.NewFromFloat(r.WonValue))
	}
	return &domain.ProductTypeBreakdown{
		Rows:   rows,
		Pareto: analytics.Pareto(rows),
		Total:  total.InexactFloat64(),
	}, nil
}

// ZoneProductPivot returns the zone x product type stacked view
func (s *AnalyticsService) ZoneProductPivot(ctx context.Context, req *domain.RangeRequest) ([]domain.PivotRow, error) {
	refs, err := s.achievements.LoadReferences(ctx)
	if err != nil {
		return nil, err
	}
	offers, err := s.rangeOffers(ctx, req, refs)
	if err != nil {
		return nil, err
	}

	filter := analytics.Filter{From: req.From, To: req.To, ZoneID: req.ZoneID}
	aggs := analytics.Aggregate(offers, analytics.Composite(analytics.ByZone, analytics.ByProductType), filter)
	return analytics.ZoneProductPivot(aggs, refs.Zones), nil
}

// UserZoneMatrix returns each active user's results per zone
func (s *AnalyticsService) UserZoneMatrix(ctx context.Context, req *domain.RangeRequest) ([]domain.UserZoneRow, error) {
	refs, err := s.achievements.LoadReferences(ctx)
	if err != nil {
		return nil, err
	}
	offers, err := s.rangeOffers(ctx, req, refs)
	if err != nil {
		return nil, err
	}

	filter := analytics.Filter{From: req.From, To: req.To, ZoneID: req.ZoneID}
	aggs := analytics.Aggregate(offers, analytics.Composite(analytics.ByOwner, analytics.ByZone), filter)
	rows := analytics.UserZoneMatrix(aggs, refs.Users, refs.Zones, s.achievements.Options())
	if rows == nil {
		rows = []domain.UserZoneRow{}
	}
	return rows, nil
}

// TimeSeries returns the twelve months of a year with running won value and,
// where combined monthly targets exist for the scope, monthly achievement.
// Without a zone or user the monthly target is the sum of all zone targets.
func (s *AnalyticsService) TimeSeries(ctx context.Context, req *domain.TimeSeriesRequest) ([]domain.TimeSeriesPoint, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}
	opts := s.achievements.Options()
	year, err := domain.ParsePeriod(req.Year, domain.PeriodTypeYearly, s.achievements.location())
	if err != nil {
		return nil, analytics.BadInput(err, "invalid year")
	}

	refs, err := s.achievements.LoadReferences(ctx)
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

	offers, err := s.offers.ListOffers(ctx, repository.OfferFilter{
		From:    &year.Start,
		To:      &year.End,
		ZoneID:  req.ZoneID,
		OwnerID: req.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}

	months := year.Months()
	filter := analytics.Filter{ZoneID: req.ZoneID, OwnerID: req.UserID}.Narrow(year.Start, year.End)
	points := analytics.NormalizeMonths(analytics.Aggregate(offers, analytics.ByMonth(opts.Location), filter), months)

	targetFilter := repository.TargetFilter{
		Periods:      months,
		PeriodType:   domain.PeriodTypeMonthly,
		CombinedOnly: true,
	}
	switch {
	case req.UserID != nil:
		scope := domain.ScopeTypeUser
		targetFilter.ScopeType, targetFilter.ScopeID = &scope, req.UserID
	case req.ZoneID != nil:
		scope := domain.ScopeTypeZone
		targetFilter.ScopeType, targetFilter.ScopeID = &scope, req.ZoneID
	default:
		scope := domain.ScopeTypeZone
		targetFilter.ScopeType = &scope
	}
	targets, err := s.targets.ListTargets(ctx, targetFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}

	return analytics.TimeSeries(points, monthlyTargets(targets)), nil
}

// monthlyTargets sums target values per period key
func monthlyTargets(targets []domain.Target) map[string]float64 {
	sums := make(map[string]decimal.Decimal)
	for _, t := range targets {
		sums[t.Period] = sums[t.Period].Add(decimal.NewFromFloat(t.TargetValue))
	}
	out := make(map[string]float64, len(sums))
	for period, sum := range sums {
		out[period] = sum.InexactFloat64()
	}
	return out
}

// Rankings returns the best or worst achieving zone or user targets of a period.
// A period without targets ranks nothing.
func (s *AnalyticsService) Rankings(ctx context.Context, req *domain.RankingRequest) ([]domain.ReconciledTarget, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}

	report, err := s.reportOrEmpty(ctx, &domain.AchievementRequest{
		Period:     req.Period,
		PeriodType: req.PeriodType,
	})
	if err != nil {
		return nil, err
	}

	rows := report.ZoneTargets
	if req.Scope == domain.ScopeTypeUser {
		rows = report.UserTargets
	}

	n := req.N
	if n == 0 {
		n = s.defaultTopN
	}
	order := analytics.SortDescending
	if strings.EqualFold(req.Order, string(analytics.SortAscending)) {
		order = analytics.SortAscending
	}
	return analytics.Rank(rows, n, order), nil
}

// Histogram bands the reconciled targets of a period by achievement. Zone
// targets are used when the period has any, otherwise user targets. A period
// without targets yields every band with a zero count.
func (s *AnalyticsService) Histogram(ctx context.Context, req *domain.AchievementRequest) ([]domain.HistogramBucket, error) {
	report, err := s.reportOrEmpty(ctx, req)
	if err != nil {
		return nil, err
	}
	rows := report.ZoneTargets
	if len(rows) == 0 {
		rows = report.UserTargets
	}
	return analytics.Histogram(rows), nil
}

// reportOrEmpty builds the achievement report of a period, treating a period
// without targets as an empty report
func (s *AnalyticsService) reportOrEmpty(ctx context.Context, req *domain.AchievementRequest) (*domain.AchievementReport, error) {
	report, err := s.achievements.GetAchievement(ctx, req)
	if analytics.IsKind(err, analytics.KindNoData) {
		return &domain.AchievementReport{}, nil
	}
	return report, err
}
