package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/target-analytics/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// keySeparator joins the parts of a composite group key
const keySeparator = "|"

// KeyFunc extracts the group key of an offer. Returning false drops the offer.
type KeyFunc func(o *domain.Offer) (string, bool)

// ByZone groups offers by zone id
func ByZone(o *domain.Offer) (string, bool) {
	return o.ZoneID.String(), true
}

// ByOwner groups offers by owning user id
func ByOwner(o *domain.Offer) (string, bool) {
	return o.OwnerID.String(), true
}

// ByProductType groups offers by product type. Offers without one are dropped.
func ByProductType(o *domain.Offer) (string, bool) {
	if o.ProductType == nil || *o.ProductType == "" {
		return "", false
	}
	return string(*o.ProductType), true
}

// ByMonth groups offers by the YYYY-MM of their creation date in loc
func ByMonth(loc *time.Location) KeyFunc {
	if loc == nil {
		loc = time.UTC
	}
	return func(o *domain.Offer) (string, bool) {
		return domain.MonthKey(o.CreatedAt.In(loc)), true
	}
}

// Composite groups by several keys at once. An offer dropped by any part is dropped.
func Composite(parts ...KeyFunc) KeyFunc {
	return func(o *domain.Offer) (string, bool) {
		keys := make([]string, len(parts))
		for i, part := range parts {
			k, ok := part(o)
			if !ok {
				return "", false
			}
			keys[i] = k
		}
		return CompositeKey(keys...), true
	}
}

// CompositeKey builds the key Composite would produce for the given parts
func CompositeKey(parts ...string) string {
	return strings.Join(parts, keySeparator)
}

// SplitKey reverses CompositeKey
func SplitKey(key string) []string {
	return strings.Split(key, keySeparator)
}

// Filter restricts the offers that take part in an aggregation.
// Nil fields do not filter. From and To are inclusive.
type Filter struct {
	From          *time.Time
	To            *time.Time
	ZoneID        *uuid.UUID
	OwnerID       *uuid.UUID
	ProductType   *domain.ProductType
	ExcludeStages []domain.OfferStage
}

// Match reports whether o passes the filter
func (f Filter) Match(o *domain.Offer) bool {
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && o.CreatedAt.After(*f.To) {
		return false
	}
	if f.ZoneID != nil && o.ZoneID != *f.ZoneID {
		return false
	}
	if f.OwnerID != nil && o.OwnerID != *f.OwnerID {
		return false
	}
	if f.ProductType != nil && (o.ProductType == nil || *o.ProductType != *f.ProductType) {
		return false
	}
	for _, s := range f.ExcludeStages {
		if o.Stage == s {
			return false
		}
	}
	return true
}

// Narrow returns a copy of f whose date range is intersected with [from, to]
func (f Filter) Narrow(from, to time.Time) Filter {
	out := f
	if out.From == nil || out.From.Before(from) {
		out.From = &from
	}
	if out.To == nil || out.To.After(to) {
		out.To = &to
	}
	return out
}

// ResolveValue returns the monetary value an offer contributes: the PO value
// when present and non-zero, else the offer value when present and non-zero,
// else zero. The order is fixed; swapping it changes reconciled totals.
func ResolveValue(o *domain.Offer) decimal.Decimal {
	if o.PoValue != nil && *o.PoValue != 0 {
		return decimal.NewFromFloat(*o.PoValue)
	}
	if o.OfferValue != nil && *o.OfferValue != 0 {
		return decimal.NewFromFloat(*o.OfferValue)
	}
	return decimal.Zero
}

// bucket accumulates one group in exact decimal arithmetic
type bucket struct {
	total     decimal.Decimal
	won       decimal.Decimal
	lost      decimal.Decimal
	open      decimal.Decimal
	expected  decimal.Decimal
	count     int
	wonCount  int
	lostCount int
	openCount int
}

func (b *bucket) add(o *domain.Offer) {
	value := ResolveValue(o)
	b.total = b.total.Add(value)
	b.count++

	switch {
	case o.Stage.IsWon():
		b.won = b.won.Add(value)
		b.wonCount++
	case o.Stage == domain.OfferStageLost:
		b.lost = b.lost.Add(value)
		b.lostCount++
	default:
		b.open = b.open.Add(value)
		b.openCount++
		if o.ProbabilityPercentage != nil && *o.ProbabilityPercentage > ExpectedProbabilityCutoff {
			weight := decimal.NewFromInt(int64(*o.ProbabilityPercentage))
			b.expected = b.expected.Add(value.Mul(weight).Div(hundred))
		}
	}
}

func (b *bucket) aggregate(key string) domain.Aggregate {
	return domain.Aggregate{
		GroupKey:      key,
		TotalValue:    b.total.InexactFloat64(),
		OfferCount:    b.count,
		WonValue:      b.won.InexactFloat64(),
		WonCount:      b.wonCount,
		LostValue:     b.lost.InexactFloat64(),
		LostCount:     b.lostCount,
		OpenValue:     b.open.InexactFloat64(),
		OpenCount:     b.openCount,
		ExpectedValue: b.expected.InexactFloat64(),
	}
}

// group sums the matching offers per key into fresh buckets
func group(offers []domain.Offer, key KeyFunc, filter Filter) map[string]*bucket {
	groups := make(map[string]*bucket)
	for i := range offers {
		o := &offers[i]
		if !filter.Match(o) {
			continue
		}
		k, ok := key(o)
		if !ok {
			continue
		}
		b, exists := groups[k]
		if !exists {
			b = &bucket{}
			groups[k] = b
		}
		b.add(o)
	}
	return groups
}

// Aggregate produces one row per distinct key among the offers that pass filter,
// sorted by key. Keys with no matching offers produce no row.
func Aggregate(offers []domain.Offer, key KeyFunc, filter Filter) []domain.Aggregate {
	groups := group(offers, key, filter)

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.Aggregate, len(keys))
	for i, k := range keys {
		out[i] = groups[k].aggregate(k)
	}
	return out
}

// Index maps aggregates by group key
func Index(aggs []domain.Aggregate) map[string]domain.Aggregate {
	out := make(map[string]domain.Aggregate, len(aggs))
	for _, a := range aggs {
		out[a.GroupKey] = a
	}
	return out
}
