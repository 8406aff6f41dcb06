package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/target-analytics/internal/domain"
	"gorm.io/gorm"
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string    // The field to sort by (API field name)
	Order SortOrder // asc or desc
}

// BuildOrderClause builds the SQL ORDER BY clause from field mapping and sort config.
// fieldMap maps API field names to database column names; fields outside the
// whitelist fall back to defaultColumn.
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "ASC"
	if config.Order == SortOrderDesc {
		order = "DESC"
	}

	return column + " " + order
}

// OfferFilter narrows the offers loaded for analytics.
// From and To are inclusive bounds on created_at.
type OfferFilter struct {
	From        *time.Time
	To          *time.Time
	ZoneID      *uuid.UUID
	OwnerID     *uuid.UUID
	ProductType *domain.ProductType
}

// ApplyOfferFilter adds the filter's predicates to an offers query
func ApplyOfferFilter(query *gorm.DB, f OfferFilter) *gorm.DB {
	if f.From != nil {
		query = query.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("created_at <= ?", *f.To)
	}
	if f.ZoneID != nil {
		query = query.Where("zone_id = ?", *f.ZoneID)
	}
	if f.OwnerID != nil {
		query = query.Where("owner_id = ?", *f.OwnerID)
	}
	if f.ProductType != nil {
		query = query.Where("product_type = ?", *f.ProductType)
	}
	return query
}

// TargetFilter selects targets for one or more periods of the same type
type TargetFilter struct {
	Periods     []string
	PeriodType  domain.PeriodType
	ScopeType   *domain.ScopeType
	ScopeID     *uuid.UUID
	ProductType *domain.ProductType
	// CombinedOnly restricts the result to targets without a product type
	CombinedOnly bool
}

// ApplyTargetFilter adds the filter's predicates to a targets query
func ApplyTargetFilter(query *gorm.DB, f TargetFilter) *gorm.DB {
	query = query.Where("period IN ? AND period_type = ?", f.Periods, f.PeriodType)
	if f.ScopeType != nil {
		query = query.Where("scope_type = ?", *f.ScopeType)
	}
	if f.ScopeID != nil {
		query = query.Where("scope_id = ?", *f.ScopeID)
	}
	switch {
	case f.CombinedOnly:
		query = query.Where("product_type IS NULL")
	case f.ProductType != nil:
		query = query.Where("product_type = ?", *f.ProductType)
	}
	return query
}

// whereProductType matches a nullable product type column exactly
func whereProductType(query *gorm.DB, pt *domain.ProductType) *gorm.DB {
	if pt == nil {
		return query.Where("product_type IS NULL")
	}
	return query.Where("product_type = ?", *pt)
}
