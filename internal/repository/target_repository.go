package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/straye-as/target-analytics/internal/domain"
	"gorm.io/gorm"
)

// upsertAttempts bounds the retries of a create that lost a race on the
// unique target key
const upsertAttempts = 2

type TargetRepository struct {
	db *gorm.DB
}

func NewTargetRepository(db *gorm.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

// ListTargets returns the targets matching the filter in a stable order
func (r *TargetRepository) ListTargets(ctx context.Context, filter TargetFilter) ([]domain.Target, error) {
	if len(filter.Periods) == 0 {
		return nil, nil
	}

	var targets []domain.Target
	query := ApplyTargetFilter(r.db.WithContext(ctx).Model(&domain.Target{}), filter)
	if err := query.Order("scope_type ASC, scope_id ASC, period ASC, product_type ASC").Find(&targets).Error; err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	return targets, nil
}

func findByKey(tx *gorm.DB, key domain.TargetKey) (*domain.Target, error) {
	var pt *domain.ProductType
	if key.ProductType != "" {
		p := key.ProductType
		pt = &p
	}

	var target domain.Target
	query := tx.Where("scope_type = ? AND scope_id = ? AND period = ? AND period_type = ?",
		key.ScopeType, key.ScopeID, key.Period, key.PeriodType)
	query = whereProductType(query, pt)
	if err := query.First(&target).Error; err != nil {
		return nil, err
	}
	return &target, nil
}

// Upsert creates the target or updates the values of the existing target with
// the same key. It reports whether a new row was created.
//
// Two writers creating the same key both miss in the lookup; the loser hits
// the unique index and is retried once in a fresh transaction, where it finds
// the winner's row and updates it. gorm must run with TranslateError so the
// violation surfaces as gorm.ErrDuplicatedKey, which is returned wrapped when
// the retry collides again.
func (r *TargetRepository) Upsert(ctx context.Context, target *domain.Target) (bool, error) {
	var (
		created bool
		err     error
	)
	for attempt := 0; attempt < upsertAttempts; attempt++ {
		created, err = r.upsertOnce(ctx, target)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert target %s: %w", target.Key(), err)
	}
	return created, nil
}

func (r *TargetRepository) upsertOnce(ctx context.Context, target *domain.Target) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByKey(tx, target.Key())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			return tx.Create(target).Error
		}
		if err != nil {
			return err
		}

		existing.TargetValue = target.TargetValue
		existing.TargetOfferCount = target.TargetOfferCount
		if err := tx.Save(existing).Error; err != nil {
			return err
		}
		*target = *existing
		return nil
	})
	return created, err
}
