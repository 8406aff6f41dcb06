package analytics

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/target-analytics/internal/domain"
)

// DefaultRankingSize is used when a caller asks for a ranking without a size
const DefaultRankingSize = 5

// paretoThreshold is the cumulative share that marks the vital few
var paretoThreshold = decimal.NewFromInt(80)

// SortOrder is the direction of a ranking
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// Rank sorts a copy of rows by achievement and keeps the first n.
// Ties are broken by scope name so the output is stable across runs.
func Rank(rows []domain.ReconciledTarget, n int, order SortOrder) []domain.ReconciledTarget {
	if n <= 0 {
		n = DefaultRankingSize
	}
	out := make([]domain.ReconciledTarget, len(rows))
	copy(out, rows)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Achievement != out[j].Achievement {
			if order == SortAscending {
				return out[i].Achievement < out[j].Achievement
			}
			return out[i].Achievement > out[j].Achievement
		}
		return out[i].ScopeName < out[j].ScopeName
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}

// TopN returns the n best achieving targets
func TopN(rows []domain.ReconciledTarget, n int) []domain.ReconciledTarget {
	return Rank(rows, n, SortDescending)
}

// BottomN returns the n worst achieving targets
func BottomN(rows []domain.ReconciledTarget, n int) []domain.ReconciledTarget {
	return Rank(rows, n, SortAscending)
}

// Pareto orders product types by won value, largest first, with each row's
// share and the running cumulative share of the won total. Rows up to and
// including the one that crosses 80% are marked InTopEighty. Open and lost
// offers never count.
func Pareto(rows []domain.ProductTypeRow) []domain.ParetoRow {
	sorted := make([]domain.ProductTypeRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].WonValue > sorted[j].WonValue
	})

	total := decimal.Zero
	for _, r := range sorted {
		total = total.Add(decimal.NewFromFloat(r.WonValue))
	}

	out := make([]domain.ParetoRow, len(sorted))
	running := decimal.Zero
	for i, r := range sorted {
		value := decimal.NewFromFloat(r.WonValue)
		before := running
		running = running.Add(value)
		out[i] = domain.ParetoRow{
			ProductType:          r.ProductType,
			Value:                r.WonValue,
			Percentage:           percent(value, total),
			CumulativePercentage: percent(running, total),
			InTopEighty:          total.IsPositive() && value.IsPositive() && before.Mul(hundred).LessThan(paretoThreshold.Mul(total)),
		}
	}
	return out
}

type band struct {
	label string
	min   float64
	max   float64 // exclusive; 0 means open ended
}

var achievementBands = []band{
	{label: "0-50", min: 0, max: 50},
	{label: "50-80", min: 50, max: 80},
	{label: "80-100", min: 80, max: 100},
	{label: "100-120", min: 100, max: 120},
	{label: "120+", min: 120},
}

// Histogram counts reconciled targets per achievement band. Lower bounds are
// inclusive, so exactly 100% lands in 100-120.
func Histogram(rows []domain.ReconciledTarget) []domain.HistogramBucket {
	out := make([]domain.HistogramBucket, len(achievementBands))
	for i, b := range achievementBands {
		out[i] = domain.HistogramBucket{Label: b.label, Min: b.min}
		if b.max > 0 {
			upper := b.max
			out[i].Max = &upper
		}
	}

	for _, rt := range rows {
		out[bandIndex(rt.Achievement)].Count++
	}
	return out
}

func bandIndex(achievement float64) int {
	for i, b := range achievementBands {
		if b.max > 0 && achievement < b.max {
			return i
		}
	}
	return len(achievementBands) - 1
}

// ZoneProductPivot builds the zone x product type stacked view of won value
// from aggregates keyed by Composite(ByZone, ByProductType). Every active zone
// gets a row and every row carries all product types.
func ZoneProductPivot(aggs []domain.Aggregate, zones []domain.Zone) []domain.PivotRow {
	byKey := Index(aggs)
	types := domain.AllProductTypes()

	out := make([]domain.PivotRow, 0, len(zones))
	for _, z := range ActiveZones(zones) {
		row := domain.PivotRow{
			ZoneID:   z.ID,
			ZoneName: z.Name,
			Values:   make(map[domain.ProductType]float64, len(types)),
		}
		total := decimal.Zero
		for _, pt := range types {
			a := byKey[CompositeKey(z.ID.String(), string(pt))]
			row.Values[pt] = a.WonValue
			total = total.Add(decimal.NewFromFloat(a.WonValue))
		}
		row.Total = total.InexactFloat64()
		out = append(out, row)
	}
	return out
}

// UserZoneMatrix builds user x zone cells from aggregates keyed by
// Composite(ByOwner, ByZone). Each active user gets a cell for every known zone
// they sold in plus their home zone, zero-filled when they sold nothing there.
func UserZoneMatrix(aggs []domain.Aggregate, users []domain.User, zones []domain.Zone, opts Options) []domain.UserZoneRow {
	zoneNames := make(map[uuid.UUID]string, len(zones))
	for _, z := range zones {
		zoneNames[z.ID] = z.Name
	}

	perUser := make(map[string][]domain.Aggregate)
	for _, a := range aggs {
		parts := SplitKey(a.GroupKey)
		if len(parts) != 2 {
			continue
		}
		perUser[parts[0]] = append(perUser[parts[0]], a)
	}

	var out []domain.UserZoneRow
	for _, u := range users {
		if !u.IsActive {
			continue
		}
		home, hasHome := opts.HomeZone(u.ZoneID)
		seenHome := false

		var rows []domain.UserZoneRow
		for _, a := range perUser[u.ID.String()] {
			zoneID, err := uuid.Parse(SplitKey(a.GroupKey)[1])
			if err != nil {
				continue
			}
			name, known := zoneNames[zoneID]
			if !known {
				continue
			}
			isHome := hasHome && zoneID == home
			seenHome = seenHome || isHome
			rows = append(rows, domain.UserZoneRow{
				UserID:     u.ID,
				UserName:   u.Name,
				ZoneID:     zoneID,
				ZoneName:   name,
				HomeZone:   isHome,
				TotalValue: a.TotalValue,
				OfferCount: a.OfferCount,
				WonValue:   a.WonValue,
				WonCount:   a.WonCount,
			})
		}
		if hasHome && !seenHome {
			if name, known := zoneNames[home]; known {
				rows = append(rows, domain.UserZoneRow{
					UserID:   u.ID,
					UserName: u.Name,
					ZoneID:   home,
					ZoneName: name,
					HomeZone: true,
				})
			}
		}

		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].HomeZone != rows[j].HomeZone {
				return rows[i].HomeZone
			}
			return rows[i].ZoneName < rows[j].ZoneName
		})
		out = append(out, rows...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UserName < out[j].UserName
	})
	return out
}

// TimeSeries adds the running won value and, where a monthly target exists,
// the month's target and achievement to normalized month points.
func TimeSeries(points []domain.TimeSeriesPoint, monthlyTargets map[string]float64) []domain.TimeSeriesPoint {
	out := make([]domain.TimeSeriesPoint, len(points))
	running := decimal.Zero
	for i, p := range points {
		running = running.Add(decimal.NewFromFloat(p.WonValue))
		p.CumulativeWonValue = running.InexactFloat64()
		if target, ok := monthlyTargets[p.Month]; ok {
			t := target
			a := Percent(p.WonValue, target)
			p.TargetValue = &t
			p.Achievement = &a
		}
		out[i] = p
	}
	return out
}
