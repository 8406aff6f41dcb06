package analytics

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/target-analytics/internal/domain"
)

// ReconcileInput is everything the reconciler needs for one period
type ReconcileInput struct {
	Targets []domain.Target
	Offers  []domain.Offer
	Period  domain.Period
	// Filter narrows the offers further than the period, e.g. a requested date range.
	Filter Filter
	// ScopeNames resolves zone and user ids to display names
	ScopeNames map[uuid.UUID]string
}

// scopeGroups holds the lazily built groupings a reconciliation needs
type scopeGroups struct {
	offers []domain.Offer
	window Filter
	cache  map[string]map[string]*bucket
}

func (g *scopeGroups) lookup(t *domain.Target) *bucket {
	var base KeyFunc
	switch t.ScopeType {
	case domain.ScopeTypeZone:
		base = ByZone
	default:
		base = ByOwner
	}

	name := string(t.ScopeType)
	key := base
	groupKey := t.ScopeID.String()
	if t.ProductType != nil {
		name += "+product"
		key = Composite(base, ByProductType)
		groupKey = CompositeKey(groupKey, string(*t.ProductType))
	}

	groups, ok := g.cache[name]
	if !ok {
		groups = group(g.offers, key, g.window)
		g.cache[name] = groups
	}
	return groups[groupKey]
}

// Reconcile pairs every target with the offers of its scope inside the period.
// Targets without offers reconcile to zero actuals. Duplicate target keys and
// targets from another period are rejected rather than merged.
func Reconcile(in ReconcileInput, opts Options) ([]domain.ReconciledTarget, error) {
	if err := CheckDuplicates(in.Targets); err != nil {
		return nil, err
	}

	groups := &scopeGroups{
		offers: in.Offers,
		window: in.Filter.Narrow(in.Period.Start, in.Period.End),
		cache:  make(map[string]map[string]*bucket),
	}
	now := opts.now()

	out := make([]domain.ReconciledTarget, 0, len(in.Targets))
	for i := range in.Targets {
		t := in.Targets[i]
		if !t.ScopeType.IsValid() {
			return nil, BadInput(nil, "target %s has unknown scope type", t.Key())
		}
		if t.Period != in.Period.Key || t.PeriodType != in.Period.Type {
			return nil, BadInput(nil, "target %s does not belong to period %s/%s", t.Key(), in.Period.Type, in.Period.Key)
		}

		b := groups.lookup(&t)
		if b == nil {
			b = &bucket{}
		}

		rt := reconcileOne(t, b)
		rt.ScopeName = in.ScopeNames[t.ScopeID]
		rt.Pacing = Project(in.Period, rt.TargetValue, rt.ActualValue, now)
		out = append(out, rt)
	}

	SortReconciled(out)
	return out, nil
}

func reconcileOne(t domain.Target, b *bucket) domain.ReconciledTarget {
	target := decimal.NewFromFloat(t.TargetValue)
	actual := b.won
	variance := actual.Sub(target)
	openFunnel := b.total.Sub(b.won)

	rt := domain.ReconciledTarget{
		Target:              t,
		ActualValue:         actual.InexactFloat64(),
		ActualOfferCount:    b.wonCount,
		OffersValueTotal:    b.total.InexactFloat64(),
		OffersCount:         b.count,
		Achievement:         percent(actual, target),
		Variance:            variance.InexactFloat64(),
		VariancePercentage:  percent(variance, target),
		ExpectedOffersValue: b.expected.InexactFloat64(),
		ExpectedAchievement: percent(b.expected, target),
		OpenFunnel:          openFunnel.InexactFloat64(),
		ConversionRate:      percent(decimal.NewFromInt(int64(b.wonCount)), decimal.NewFromInt(int64(b.count))),
		Inconsistent:        openFunnel.IsNegative(),
	}

	if t.TargetOfferCount != nil {
		ca := percent(decimal.NewFromInt(int64(b.wonCount)), decimal.NewFromInt(int64(*t.TargetOfferCount)))
		rt.CountAchievement = &ca
	}
	return rt
}

// percent returns n/d*100, or 0 when d is not positive
func percent(n, d decimal.Decimal) float64 {
	if !d.IsPositive() {
		return 0
	}
	return n.Div(d).Mul(hundred).InexactFloat64()
}

// Percent is the float form of the guarded ratio used across the engine
func Percent(n, d float64) float64 {
	return percent(decimal.NewFromFloat(n), decimal.NewFromFloat(d))
}

// CheckDuplicates returns a conflict error when two targets share a key
func CheckDuplicates(targets []domain.Target) error {
	seen := make(map[domain.TargetKey]struct{}, len(targets))
	var dups []string
	for i := range targets {
		k := targets[i].Key()
		if _, ok := seen[k]; ok {
			dups = append(dups, k.String())
			continue
		}
		seen[k] = struct{}{}
	}
	if len(dups) > 0 {
		return Conflict("duplicate targets for key(s) %s", strings.Join(dups, ", "))
	}
	return nil
}

// SortReconciled orders rows by scope type, scope name, scope id and product
// type, with the all-products target first.
func SortReconciled(rows []domain.ReconciledTarget) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ScopeType != b.ScopeType {
			return a.ScopeType < b.ScopeType
		}
		if a.ScopeName != b.ScopeName {
			return a.ScopeName < b.ScopeName
		}
		if a.ScopeID != b.ScopeID {
			return a.ScopeID.String() < b.ScopeID.String()
		}
		return productSortKey(a.ProductType) < productSortKey(b.ProductType)
	})
}

func productSortKey(pt *domain.ProductType) int {
	if pt == nil {
		return -1
	}
	for i, p := range domain.AllProductTypes() {
		if p == *pt {
			return i
		}
	}
	return len(domain.AllProductTypes())
}

// Summarize totals a reconciled report. Totals are taken from one target set
// only so zone and user targets covering the same sales are not added twice:
// zone targets when present, user targets otherwise. Within that set the
// all-products targets are used when any exist, product targets otherwise.
func Summarize(zoneTargets, userTargets []domain.ReconciledTarget) domain.AchievementSummary {
	s := domain.AchievementSummary{
		TotalZoneTargets: len(zoneTargets),
		TotalUserTargets: len(userTargets),
	}

	for _, rt := range zoneTargets {
		s.ZoneTargetValue += rt.TargetValue
	}
	for _, rt := range userTargets {
		s.UserTargetValue += rt.TargetValue
	}

	basis, rows := "zone", zoneTargets
	if len(rows) == 0 {
		basis, rows = "user", userTargets
	}
	rows, combined := summaryRows(rows)
	if len(rows) == 0 {
		s.Basis = "none"
		return s
	}
	if combined {
		s.Basis = basis + "_total"
	} else {
		s.Basis = basis + "_product"
	}

	target, actual, expected := decimal.Zero, decimal.Zero, decimal.Zero
	for _, rt := range rows {
		target = target.Add(decimal.NewFromFloat(rt.TargetValue))
		actual = actual.Add(decimal.NewFromFloat(rt.ActualValue))
		expected = expected.Add(decimal.NewFromFloat(rt.ExpectedOffersValue))
		if rt.TargetValue > 0 && rt.ActualValue >= rt.TargetValue {
			s.AchievedTargets++
		}
	}

	s.TotalTargetValue = target.InexactFloat64()
	s.TotalActualValue = actual.InexactFloat64()
	s.TotalVariance = actual.Sub(target).InexactFloat64()
	s.TotalAchievement = percent(actual, target)
	s.TotalExpectedValue = expected.InexactFloat64()
	s.TotalExpectedAchievement = percent(expected, target)
	return s
}

func summaryRows(rows []domain.ReconciledTarget) ([]domain.ReconciledTarget, bool) {
	var combined []domain.ReconciledTarget
	for _, rt := range rows {
		if rt.ProductType == nil {
			combined = append(combined, rt)
		}
	}
	if len(combined) > 0 {
		return combined, true
	}
	return rows, false
}
