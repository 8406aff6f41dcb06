package analytics_test

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/target-analytics/internal/analytics"
	"github.com/straye-as/target-analytics/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPeriod(t *testing.T, key string, periodType domain.PeriodType) domain.Period {
	t.Helper()
	p, err := domain.ParsePeriod(key, periodType, time.UTC)
	require.NoError(t, err)
	return p
}

// a clock far away from the March 2026 test data so pacing stays out of the way
var octoberClock = analytics.Options{Now: fixedClock(day(2026, time.October, 17))}

func TestReconcile_ZoneScenario(t *testing.T) {
	period := mustPeriod(t, "2026-03", domain.PeriodTypeMonthly)
	in := analytics.ReconcileInput{
		Targets: []domain.Target{zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 1_000_000)},
		Offers: []domain.Offer{
			newOffer(zoneNorth, withPO(650_000), withStage(domain.OfferStageWon)),
		},
		Period:     period,
		ScopeNames: map[uuid.UUID]string{zoneNorth: "North"},
	}

	rows, err := analytics.Reconcile(in, octoberClock)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rt := rows[0]
	assert.Equal(t, "North", rt.ScopeName)
	assert.Equal(t, 650_000.0, rt.ActualValue)
	assert.Equal(t, 1, rt.ActualOfferCount)
	assert.Equal(t, 65.0, rt.Achievement)
	assert.Equal(t, -350_000.0, rt.Variance)
	assert.Equal(t, -35.0, rt.VariancePercentage)
	assert.Equal(t, 0.0, rt.OpenFunnel)
	assert.Equal(t, 100.0, rt.ConversionRate)
	assert.False(t, rt.Inconsistent)
	assert.Nil(t, rt.Pacing)
}

func TestReconcile_ZeroTargetNeverProducesNaN(t *testing.T) {
	period := mustPeriod(t, "2026-03", domain.PeriodTypeMonthly)
	target := zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 0)
	target.TargetOfferCount = ptr(0)
	in := analytics.ReconcileInput{
		Targets: []domain.Target{target},
		Offers: []domain.Offer{
			newOffer(zoneNorth, withPO(500), withStage(domain.OfferStageWon)),
			newOffer(zoneNorth, withPO(500), withProbability(80)),
		},
		Period: period,
	}

	rows, err := analytics.Reconcile(in, octoberClock)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rt := rows[0]
	for name, v := range map[string]float64{
		"achievement":         rt.Achievement,
		"variancePercentage":  rt.VariancePercentage,
		"expectedAchievement": rt.ExpectedAchievement,
		"countAchievement":    *rt.CountAchievement,
	} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), name)
		assert.Equal(t, 0.0, v, name)
	}
	assert.Equal(t, 500.0, rt.Variance)
}

func TestReconcile_TargetWithoutOffersReportsZero(t *testing.T) {
	period := mustPeriod(t, "2026", domain.PeriodTypeYearly)
	in := analytics.ReconcileInput{
		Targets: []domain.Target{zoneTarget(zoneSouth, "2026", domain.PeriodTypeYearly, 5000)},
		Offers:  []domain.Offer{newOffer(zoneNorth, withPO(100), withStage(domain.OfferStageWon))},
		Period:  period,
	}

	rows, err := analytics.Reconcile(in, octoberClock)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.0, rows[0].ActualValue)
	assert.Equal(t, 0.0, rows[0].Achievement)
	assert.Equal(t, -5000.0, rows[0].Variance)
	assert.Equal(t, 0, rows[0].OffersCount)
}

func TestReconcile_ProductTypeMatching(t *testing.T) {
	period := mustPeriod(t, "2026-03", domain.PeriodTypeMonthly)
	combined := zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 1000)
	software := zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 400)
	software.ProductType = ptr(domain.ProductTypeSoftware)

	in := analytics.ReconcileInput{
		Targets: []domain.Target{software, combined},
		Offers: []domain.Offer{
			newOffer(zoneNorth, withPO(200), withStage(domain.OfferStageWon), withProduct(domain.ProductTypeSoftware)),
			newOffer(zoneNorth, withPO(300), withStage(domain.OfferStageWon), withProduct(domain.ProductTypeMachine)),
			newOffer(zoneNorth, withPO(100), withStage(domain.OfferStageWon)),
		},
		Period: period,
	}

	rows, err := analytics.Reconcile(in, octoberClock)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// the all-products target sorts first
	assert.Nil(t, rows[0].ProductType)
	assert.Equal(t, 600.0, rows[0].ActualValue)
	assert.Equal(t, 60.0, rows[0].Achievement)

	require.NotNil(t, rows[1].ProductType)
	assert.Equal(t, domain.ProductTypeSoftware, *rows[1].ProductType)
	assert.Equal(t, 200.0, rows[1].ActualValue)
	assert.Equal(t, 50.0, rows[1].Achievement)
}

func TestReconcile_UserScopeMatchesOwner(t *testing.T) {
	period := mustPeriod(t, "2026-03", domain.PeriodTypeMonthly)
	in := analytics.ReconcileInput{
		Targets: []domain.Target{userTarget(userBjorn, "2026-03", domain.PeriodTypeMonthly, 100)},
		Offers: []domain.Offer{
			newOffer(zoneNorth, withPO(40), withStage(domain.OfferStageWon), withOwner(userBjorn)),
			newOffer(zoneSouth, withPO(80), withStage(domain.OfferStageWon), withOwner(userBjorn)),
			newOffer(zoneSouth, withPO(999), withStage(domain.OfferStageWon), withOwner(userAnna)),
		},
		Period: period,
	}

	rows, err := analytics.Reconcile(in, octoberClock)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 120.0, rows[0].ActualValue)
	assert.Equal(t, 120.0, rows[0].Achievement)
	assert.Equal(t, 20.0, rows[0].Variance)
}

func TestReconcile_ExpectedAchievementAndOpenFunnel(t *testing.T) {
	period := mustPeriod(t, "2026-03", domain.PeriodTypeMonthly)
	in := analytics.ReconcileInput{
		Targets: []domain.Target{zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 2000)},
		Offers: []domain.Offer{
			newOffer(zoneNorth, withPO(500), withStage(domain.OfferStageWon)),
			newOffer(zoneNorth, withPO(1000), withProbability(70)),
			newOffer(zoneNorth, withPO(1000), withProbability(40)),
			newOffer(zoneNorth, withPO(300), withStage(domain.OfferStageLost), withProbability(90)),
		},
		Period: period,
	}

	rows, err := analytics.Reconcile(in, octoberClock)
	require.NoError(t, err)

	rt := rows[0]
	assert.Equal(t, 700.0, rt.ExpectedOffersValue)
	assert.Equal(t, 35.0, rt.ExpectedAchievement)
	assert.Equal(t, 2800.0, rt.OffersValueTotal)
	assert.Equal(t, 2300.0, rt.OpenFunnel)
	assert.Equal(t, 25.0, rt.ConversionRate)
}

func TestReconcile_NegativeOpenFunnelIsFlaggedNotClamped(t *testing.T) {
	period := mustPeriod(t, "2026-03", domain.PeriodTypeMonthly)
	in := analytics.ReconcileInput{
		Targets: []domain.Target{zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 100)},
		Offers: []domain.Offer{
			newOffer(zoneNorth, withPO(100), withStage(domain.OfferStageWon)),
			newOffer(zoneNorth, withPO(-150)),
		},
		Period: period,
	}

	rows, err := analytics.Reconcile(in, octoberClock)
	require.NoError(t, err)
	assert.Equal(t, -150.0, rows[0].OpenFunnel)
	assert.True(t, rows[0].Inconsistent)
}

func TestReconcile_VarianceIsExact(t *testing.T) {
	period := mustPeriod(t, "2026", domain.PeriodTypeYearly)
	cases := []struct {
		target float64
		actual float64
	}{
		{1000, 250},
		{0, 75},
		{333, 333},
		{12_500_000, 13_750_000},
	}

	for _, c := range cases {
		in := analytics.ReconcileInput{
			Targets: []domain.Target{zoneTarget(zoneNorth, "2026", domain.PeriodTypeYearly, c.target)},
			Offers:  []domain.Offer{newOffer(zoneNorth, withPO(c.actual), withStage(domain.OfferStageWon))},
			Period:  period,
		}
		for run := 0; run < 3; run++ {
			rows, err := analytics.Reconcile(in, octoberClock)
			require.NoError(t, err)
			assert.Equal(t, c.actual-c.target, rows[0].Variance)
			assert.Equal(t, rows[0].ActualValue-rows[0].TargetValue, rows[0].Variance)
		}
	}
}

func TestReconcile_RequestRangeNarrowsPeriod(t *testing.T) {
	period := mustPeriod(t, "2026-03", domain.PeriodTypeMonthly)
	from := day(2026, time.March, 15)
	in := analytics.ReconcileInput{
		Targets: []domain.Target{zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 100)},
		Offers: []domain.Offer{
			newOffer(zoneNorth, withPO(10), withStage(domain.OfferStageWon), withCreated(day(2026, time.March, 5))),
			newOffer(zoneNorth, withPO(20), withStage(domain.OfferStageWon), withCreated(day(2026, time.March, 20))),
			newOffer(zoneNorth, withPO(40), withStage(domain.OfferStageWon), withCreated(day(2026, time.April, 2))),
		},
		Period: period,
		Filter: analytics.Filter{From: &from},
	}

	rows, err := analytics.Reconcile(in, octoberClock)
	require.NoError(t, err)
	assert.Equal(t, 20.0, rows[0].ActualValue)
}

func TestReconcile_DuplicateTargetsAreRejected(t *testing.T) {
	period := mustPeriod(t, "2026-03", domain.PeriodTypeMonthly)
	in := analytics.ReconcileInput{
		Targets: []domain.Target{
			zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 100),
			zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 200),
		},
		Period: period,
	}

	_, err := analytics.Reconcile(in, octoberClock)
	require.Error(t, err)
	assert.True(t, analytics.IsKind(err, analytics.KindConflict))
	assert.Contains(t, err.Error(), zoneNorth.String())
}

func TestReconcile_SameScopeDifferentProductIsNotDuplicate(t *testing.T) {
	a := zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 100)
	b := zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 100)
	b.ProductType = ptr(domain.ProductTypeMachine)

	assert.NoError(t, analytics.CheckDuplicates([]domain.Target{a, b}))
}

func TestReconcile_TargetFromAnotherPeriodIsBadInput(t *testing.T) {
	period := mustPeriod(t, "2026-03", domain.PeriodTypeMonthly)
	in := analytics.ReconcileInput{
		Targets: []domain.Target{zoneTarget(zoneNorth, "2026-04", domain.PeriodTypeMonthly, 100)},
		Period:  period,
	}

	_, err := analytics.Reconcile(in, octoberClock)
	require.Error(t, err)
	assert.Equal(t, analytics.KindBadInput, analytics.KindOf(err))
}

func TestReconcile_PacingOnlyForCurrentMonth(t *testing.T) {
	now := analytics.Options{Now: fixedClock(day(2026, time.March, 16))}

	monthly := analytics.ReconcileInput{
		Targets: []domain.Target{zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 3100)},
		Offers:  []domain.Offer{newOffer(zoneNorth, withPO(1600), withStage(domain.OfferStageWon))},
		Period:  mustPeriod(t, "2026-03", domain.PeriodTypeMonthly),
	}
	rows, err := analytics.Reconcile(monthly, now)
	require.NoError(t, err)
	require.NotNil(t, rows[0].Pacing)
	assert.Equal(t, 16, rows[0].Pacing.DayOfMonth)

	yearly := analytics.ReconcileInput{
		Targets: []domain.Target{zoneTarget(zoneNorth, "2026", domain.PeriodTypeYearly, 3100)},
		Offers:  monthly.Offers,
		Period:  mustPeriod(t, "2026", domain.PeriodTypeYearly),
	}
	rows, err = analytics.Reconcile(yearly, now)
	require.NoError(t, err)
	assert.Nil(t, rows[0].Pacing)
}

func TestSummarize(t *testing.T) {
	period := mustPeriod(t, "2026-03", domain.PeriodTypeMonthly)
	machine := zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 500)
	machine.ProductType = ptr(domain.ProductTypeMachine)

	in := analytics.ReconcileInput{
		Targets: []domain.Target{
			zoneTarget(zoneNorth, "2026-03", domain.PeriodTypeMonthly, 1000),
			zoneTarget(zoneSouth, "2026-03", domain.PeriodTypeMonthly, 1000),
			machine,
			userTarget(userAnna, "2026-03", domain.PeriodTypeMonthly, 700),
		},
		Offers: []domain.Offer{
			newOffer(zoneNorth, withPO(1200), withStage(domain.OfferStageWon), withProduct(domain.ProductTypeMachine)),
			newOffer(zoneSouth, withPO(300), withStage(domain.OfferStageWon)),
		},
		Period: period,
	}
	rows, err := analytics.Reconcile(in, octoberClock)
	require.NoError(t, err)

	var zones, users []domain.ReconciledTarget
	for _, rt := range rows {
		if rt.ScopeType == domain.ScopeTypeZone {
			zones = append(zones, rt)
		} else {
			users = append(users, rt)
		}
	}

	s := analytics.Summarize(zones, users)
	assert.Equal(t, "zone_total", s.Basis)
	assert.Equal(t, 3, s.TotalZoneTargets)
	assert.Equal(t, 1, s.TotalUserTargets)
	assert.Equal(t, 2000.0, s.TotalTargetValue)
	assert.Equal(t, 1500.0, s.TotalActualValue)
	assert.Equal(t, 75.0, s.TotalAchievement)
	assert.Equal(t, -500.0, s.TotalVariance)
	assert.Equal(t, 1, s.AchievedTargets)
	assert.Equal(t, 2500.0, s.ZoneTargetValue)
	assert.Equal(t, 700.0, s.UserTargetValue)
}

func TestSummarize_FallsBackToUserTargets(t *testing.T) {
	users := []domain.ReconciledTarget{
		{Target: userTarget(userAnna, "2026", domain.PeriodTypeYearly, 100), ActualValue: 50},
		{Target: userTarget(userBjorn, "2026", domain.PeriodTypeYearly, 0), ActualValue: 10},
	}

	s := analytics.Summarize(nil, users)
	assert.Equal(t, "user_total", s.Basis)
	assert.Equal(t, 100.0, s.TotalTargetValue)
	assert.Equal(t, 60.0, s.TotalActualValue)
	assert.Equal(t, 60.0, s.TotalAchievement)
	assert.Equal(t, 0, s.AchievedTargets)
}

func TestSummarize_Empty(t *testing.T) {
	s := analytics.Summarize(nil, nil)
	assert.Equal(t, "none", s.Basis)
	assert.Equal(t, 0.0, s.TotalAchievement)
}
