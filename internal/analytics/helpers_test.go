package analytics_test

import (
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/target-analytics/internal/analytics"
	"github.com/straye-as/target-analytics/internal/domain"
)

var (
	zoneNorth = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	zoneSouth = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	zoneWest  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	userAnna  = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	userBjorn = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
)

func ptr[T any](v T) *T {
	return &v
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 12, 0, 0, 0, time.UTC)
}

type offerOpt func(*domain.Offer)

func withPO(v float64) offerOpt {
	return func(o *domain.Offer) { o.PoValue = &v }
}

func withOfferValue(v float64) offerOpt {
	return func(o *domain.Offer) { o.OfferValue = &v }
}

func withProduct(pt domain.ProductType) offerOpt {
	return func(o *domain.Offer) { o.ProductType = &pt }
}

func withProbability(p int) offerOpt {
	return func(o *domain.Offer) { o.ProbabilityPercentage = &p }
}

func withOwner(id uuid.UUID) offerOpt {
	return func(o *domain.Offer) { o.OwnerID = id }
}

func withCreated(t time.Time) offerOpt {
	return func(o *domain.Offer) { o.CreatedAt = t }
}

func withStage(s domain.OfferStage) offerOpt {
	return func(o *domain.Offer) { o.Stage = s }
}

func newOffer(zone uuid.UUID, opts ...offerOpt) domain.Offer {
	o := domain.Offer{
		Stage:   domain.OfferStageProposalSent,
		ZoneID:  zone,
		OwnerID: userAnna,
	}
	o.ID = uuid.New()
	o.CreatedAt = day(2026, time.March, 10)
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func zoneTarget(zone uuid.UUID, period string, periodType domain.PeriodType, value float64) domain.Target {
	t := domain.Target{
		ScopeType:   domain.ScopeTypeZone,
		ScopeID:     zone,
		Period:      period,
		PeriodType:  periodType,
		TargetValue: value,
	}
	t.ID = uuid.New()
	return t
}

func userTarget(user uuid.UUID, period string, periodType domain.PeriodType, value float64) domain.Target {
	t := zoneTarget(user, period, periodType, value)
	t.ScopeType = domain.ScopeTypeUser
	return t
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// sumOffers rolls every matching offer into one row
func sumOffers(offers []domain.Offer, filter analytics.Filter) domain.Aggregate {
	all := func(*domain.Offer) (string, bool) { return "", true }
	aggs := analytics.Aggregate(offers, all, filter)
	if len(aggs) == 0 {
		return domain.Aggregate{}
	}
	return aggs[0]
}
