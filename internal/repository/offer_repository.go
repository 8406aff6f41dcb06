package repository

import (
	"context"
	"fmt"

	"github.com/straye-as/target-analytics/internal/domain"
	"gorm.io/gorm"
)

// offerColumns are the only columns the analytics engine reads
var offerColumns = []string{
	"id", "created_at", "updated_at", "offer_reference", "title", "customer_name", "stage",
	"zone_id", "owner_id", "product_type", "probability_percentage", "po_value", "offer_value",
}

type OfferRepository struct {
	db *gorm.DB
}

func NewOfferRepository(db *gorm.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

func (r *OfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

// ListOffers returns every offer matching the filter, oldest first.
// Results are unpaginated since aggregation needs the full set.
func (r *OfferRepository) ListOffers(ctx context.Context, filter OfferFilter) ([]domain.Offer, error) {
	var offers []domain.Offer
	query := r.db.WithContext(ctx).Model(&domain.Offer{}).Select(offerColumns)
	query = ApplyOfferFilter(query, filter)
	if err := query.Order("created_at ASC, id ASC").Find(&offers).Error; err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	return offers, nil
}
