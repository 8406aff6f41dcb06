package repository

import (
	"context"
	"fmt"

	"github.com/straye-as/target-analytics/internal/domain"
	"gorm.io/gorm"
)

var referenceSortFields = map[string]string{
	"name":      "name",
	"createdAt": "created_at",
}

type ZoneRepository struct {
	db *gorm.DB
}

func NewZoneRepository(db *gorm.DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

func (r *ZoneRepository) Create(ctx context.Context, zone *domain.Zone) error {
	return r.db.WithContext(ctx).Create(zone).Error
}

// ListZones returns zones ordered by name. Inactive zones are included unless
// activeOnly is set.
func (r *ZoneRepository) ListZones(ctx context.Context, activeOnly bool) ([]domain.Zone, error) {
	var zones []domain.Zone
	query := r.db.WithContext(ctx).Model(&domain.Zone{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	order := BuildOrderClause(SortConfig{Field: "name", Order: SortOrderAsc}, referenceSortFields, "name")
	if err := query.Order(order).Find(&zones).Error; err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return zones, nil
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// ListUsers returns users ordered by name
func (r *UserRepository) ListUsers(ctx context.Context, activeOnly bool) ([]domain.User, error) {
	var users []domain.User
	query := r.db.WithContext(ctx).Model(&domain.User{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	order := BuildOrderClause(SortConfig{Field: "name", Order: SortOrderAsc}, referenceSortFields, "name")
	if err := query.Order(order).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ReferenceRepository reads zones and users together
type ReferenceRepository struct {
	zones *ZoneRepository
	users *UserRepository
}

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{
		zones: NewZoneRepository(db),
		users: NewUserRepository(db),
	}
}

func (r *ReferenceRepository) ListZones(ctx context.Context, activeOnly bool) ([]domain.Zone, error) {
	return r.zones.ListZones(ctx, activeOnly)
}

func (r *ReferenceRepository) ListUsers(ctx context.Context, activeOnly bool) ([]domain.User, error) {
	return r.users.ListUsers(ctx, activeOnly)
}
