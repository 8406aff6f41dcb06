package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/target-analytics/internal/analytics"
	"github.com/straye-as/target-analytics/internal/domain"
	"github.com/straye-as/target-analytics/internal/repository"
	"go.uber.org/zap"
)

var (
	zoneNorth = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	zoneSouth = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	userAnna  = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	userBjorn = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
)

func ptr[T any](v T) *T {
	return &v
}

type fakeOffers struct {
	offers  []domain.Offer
	err     error
	filters []repository.OfferFilter
}

func (f *fakeOffers) ListOffers(_ context.Context, filter repository.OfferFilter) ([]domain.Offer, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Offer
	for _, o := range f.offers {
		if filter.From != nil && o.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && o.CreatedAt.After(*filter.To) {
			continue
		}
		if filter.ZoneID != nil && o.ZoneID != *filter.ZoneID {
			continue
		}
		if filter.OwnerID != nil && o.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.ProductType != nil && (o.ProductType == nil || *o.ProductType != *filter.ProductType) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

type fakeTargets struct {
	mu        sync.Mutex
	targets   []domain.Target
	upsertErr error
}

func (f *fakeTargets) ListTargets(_ context.Context, filter repository.TargetFilter) ([]domain.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	periods := make(map[string]bool, len(filter.Periods))
	for _, p := range filter.Periods {
		periods[p] = true
	}
	var out []domain.Target
	for _, t := range f.targets {
		if !periods[t.Period] || t.PeriodType != filter.PeriodType {
			continue
		}
		if filter.ScopeType != nil && t.ScopeType != *filter.ScopeType {
			continue
		}
		if filter.ScopeID != nil && t.ScopeID != *filter.ScopeID {
			continue
		}
		if filter.CombinedOnly && t.ProductType != nil {
			continue
		}
		if !filter.CombinedOnly && filter.ProductType != nil && (t.ProductType == nil || *t.ProductType != *filter.ProductType) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTargets) Upsert(_ context.Context, target *domain.Target) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	key := target.Key()
	for i := range f.targets {
		if f.targets[i].Key() == key {
			target.ID = f.targets[i].ID
			f.targets[i] = *target
			return false, nil
		}
	}
	target.ID = uuid.New()
	f.targets = append(f.targets, *target)
	return true, nil
}

type fakeRefs struct {
	zones []domain.Zone
	users []domain.User
}

func (f *fakeRefs) ListZones(context.Context, bool) ([]domain.Zone, error) {
	return f.zones, nil
}

func (f *fakeRefs) ListUsers(context.Context, bool) ([]domain.User, error) {
	return f.users, nil
}

// memoryCache is an in-process stand-in for the Redis report cache
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]any
	gets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]any)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	report, ok := dest.(*domain.AchievementReport)
	if !ok {
		return false, errors.New("unexpected cache destination")
	}
	*report = *(v.(*domain.AchievementReport))
	return true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) InvalidatePeriod(_ context.Context, period string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.Contains(key, ":"+period+":") {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memoryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func testZones() []domain.Zone {
	north := domain.Zone{Name: "North", IsActive: true}
	north.ID = zoneNorth
	south := domain.Zone{Name: "South", IsActive: true}
	south.ID = zoneSouth
	return []domain.Zone{north, south}
}

func testUsers() []domain.User {
	anna := domain.User{Name: "Anna", ZoneID: ptr(zoneNorth), IsActive: true}
	anna.ID = userAnna
	bjorn := domain.User{Name: "Bjorn", ZoneID: ptr(zoneSouth), IsActive: true}
	bjorn.ID = userBjorn
	return []domain.User{anna, bjorn}
}

func offer(zone, owner uuid.UUID, stage domain.OfferStage, value float64, created time.Time) domain.Offer {
	o := domain.Offer{
		Stage:      stage,
		ZoneID:     zone,
		OwnerID:    owner,
		OfferValue: ptr(value),
	}
	o.ID = uuid.New()
	o.CreatedAt = created
	return o
}

func target(scope domain.ScopeType, id uuid.UUID, period string, periodType domain.PeriodType, value float64) domain.Target {
	t := domain.Target{
		ScopeType:   scope,
		ScopeID:     id,
		Period:      period,
		PeriodType:  periodType,
		TargetValue: value,
	}
	t.ID = uuid.New()
	return t
}

type fixture struct {
	offers       *fakeOffers
	targets      *fakeTargets
	cache        *memoryCache
	achievements *TargetAchievementService
	analytics    *AnalyticsService
}

// newFixture wires the services at 2026-03-15 12:00 UTC
func newFixture(offers []domain.Offer, targets []domain.Target) *fixture {
	f := &fixture{
		offers:  &fakeOffers{offers: offers},
		targets: &fakeTargets{targets: targets},
		cache:   newMemoryCache(),
	}
	opts := analytics.Options{
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC) },
	}
	refs := &fakeRefs{zones: testZones(), users: testUsers()}
	f.achievements = NewTargetAchievementService(f.offers, f.targets, refs, f.cache, opts, zap.NewNop())
	f.analytics = NewAnalyticsService(f.achievements, f.offers, f.targets, 3, zap.NewNop())
	return f
}

func march(d int) time.Time {
	return time.Date(2026, time.March, d, 9, 0, 0, 0, time.UTC)
}
