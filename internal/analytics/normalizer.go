package analytics

import (
	"github.com/straye-as/target-analytics/internal/domain"
)

// The normalizers expand aggregates to a closed enumeration. Every member gets
// exactly one row, zero-filled when absent from the input, and keys outside the
// enumeration are dropped: the enumeration is the contract, not the data.

// NormalizeProductTypes returns one row per product type, in enumeration order,
// from aggregates keyed by ByProductType.
func NormalizeProductTypes(aggs []domain.Aggregate) []domain.ProductTypeRow {
	byKey := Index(aggs)
	types := domain.AllProductTypes()
	out := make([]domain.ProductTypeRow, len(types))
	for i, pt := range types {
		a := byKey[string(pt)]
		out[i] = domain.ProductTypeRow{
			ProductType: pt,
			Count:       a.OfferCount,
			Value:       a.TotalValue,
			WonValue:    a.WonValue,
			WonCount:    a.WonCount,
		}
	}
	return out
}

// NormalizeZones returns one row per active zone, in the order given, from
// aggregates keyed by ByZone.
func NormalizeZones(aggs []domain.Aggregate, zones []domain.Zone) []domain.ZoneRow {
	byKey := Index(aggs)
	out := make([]domain.ZoneRow, 0, len(zones))
	for _, z := range zones {
		if !z.IsActive {
			continue
		}
		a := byKey[z.ID.String()]
		out = append(out, domain.ZoneRow{
			ZoneID:   z.ID,
			ZoneName: z.Name,
			Count:    a.OfferCount,
			Value:    a.TotalValue,
			WonValue: a.WonValue,
			WonCount: a.WonCount,
		})
	}
	return out
}

// NormalizeMonths returns one point per month key, in the order given, from
// aggregates keyed by ByMonth.
func NormalizeMonths(aggs []domain.Aggregate, months []string) []domain.TimeSeriesPoint {
	byKey := Index(aggs)
	out := make([]domain.TimeSeriesPoint, len(months))
	for i, m := range months {
		a := byKey[m]
		out[i] = domain.TimeSeriesPoint{
			Month:      m,
			TotalValue: a.TotalValue,
			OfferCount: a.OfferCount,
			WonValue:   a.WonValue,
			WonCount:   a.WonCount,
		}
	}
	return out
}

// ActiveZones filters zones down to the active enumeration
func ActiveZones(zones []domain.Zone) []domain.Zone {
	out := make([]domain.Zone, 0, len(zones))
	for _, z := range zones {
		if z.IsActive {
			out = append(out, z)
		}
	}
	return out
}
