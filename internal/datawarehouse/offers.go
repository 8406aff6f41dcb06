package datawarehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/target-analytics/internal/domain"
	"github.com/straye-as/target-analytics/internal/repository"
	"go.uber.org/zap"
)

// offerRow mirrors a row of the offers view; every CRM column may be NULL
type offerRow struct {
	ID                    string
	CreatedAt             time.Time
	OfferReference        sql.NullString
	Title                 sql.NullString
	CustomerName          sql.NullString
	Stage                 string
	ZoneID                string
	OwnerID               string
	ProductType           sql.NullString
	ProbabilityPercentage sql.NullInt64
	PoValue               sql.NullFloat64
	OfferValue            sql.NullFloat64
}

// buildOffersQuery renders the SELECT for the offers view with sqlserver
// @pN placeholders
func buildOffersQuery(view string, f repository.OfferFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.From != nil {
		add("created_at >= @p%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= @p%d", *f.To)
	}
	if f.ZoneID != nil {
		add("zone_id = @p%d", f.ZoneID.String())
	}
	if f.OwnerID != nil {
		add("owner_id = @p%d", f.OwnerID.String())
	}
	if f.ProductType != nil {
		add("product_type = @p%d", string(*f.ProductType))
	}

	var b strings.Builder
	b.WriteString("SELECT id, created_at, offer_reference, title, customer_name, stage, zone_id, owner_id, ")
	b.WriteString("product_type, probability_percentage, po_value, offer_value FROM ")
	b.WriteString(view)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at ASC, id ASC")
	return b.String(), args
}

// toOffer converts a view row, rejecting rows the engine cannot attribute
func (r offerRow) toOffer() (domain.Offer, error) {
	var o domain.Offer
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return o, fmt.Errorf("invalid offer id %q: %w", r.ID, err)
	}
	zoneID, err := uuid.Parse(r.ZoneID)
	if err != nil {
		return o, fmt.Errorf("offer %s has invalid zone id %q: %w", r.ID, r.ZoneID, err)
	}
	ownerID, err := uuid.Parse(r.OwnerID)
	if err != nil {
		return o, fmt.Errorf("offer %s has invalid owner id %q: %w", r.ID, r.OwnerID, err)
	}
	stage := domain.OfferStage(strings.ToUpper(strings.TrimSpace(r.Stage)))
	if !stage.IsValid() {
		return o, fmt.Errorf("offer %s has unknown stage %q", r.ID, r.Stage)
	}

	o.ID = id
	o.CreatedAt = r.CreatedAt
	o.UpdatedAt = r.CreatedAt
	o.OfferReference = r.OfferReference.String
	o.Title = r.Title.String
	o.CustomerName = r.CustomerName.String
	o.Stage = stage
	o.ZoneID = zoneID
	o.OwnerID = ownerID

	if r.ProductType.Valid {
		pt := domain.ProductType(strings.ToUpper(strings.TrimSpace(r.ProductType.String)))
		if pt.IsValid() {
			o.ProductType = &pt
		}
	}
	if r.ProbabilityPercentage.Valid {
		p := int(r.ProbabilityPercentage.Int64)
		o.ProbabilityPercentage = &p
	}
	if r.PoValue.Valid {
		v := r.PoValue.Float64
		o.PoValue = &v
	}
	if r.OfferValue.Valid {
		v := r.OfferValue.Float64
		o.OfferValue = &v
	}
	return o, nil
}

// ListOffers reads offers from the warehouse view. Rows that cannot be
// attributed to a zone, owner or stage are skipped and logged.
func (c *Client) ListOffers(ctx context.Context, filter repository.OfferFilter) ([]domain.Offer, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("data warehouse client not initialized")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query, args := buildOffersQuery(c.offersView, filter)
	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouse offers: %w", err)
	}
	defer rows.Close()

	var (
		offers  []domain.Offer
		skipped int
	)
	for rows.Next() {
		var r offerRow
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.OfferReference, &r.Title, &r.CustomerName, &r.Stage,
			&r.ZoneID, &r.OwnerID, &r.ProductType, &r.ProbabilityPercentage, &r.PoValue, &r.OfferValue); err != nil {
			return nil, fmt.Errorf("failed to scan warehouse offer: %w", err)
		}
		offer, err := r.toOffer()
		if err != nil {
			skipped++
			c.logger.Debug("Skipping warehouse offer", zap.Error(err))
			continue
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating warehouse offers: %w", err)
	}

	c.logger.Debug("Loaded offers from data warehouse",
		zap.Int("offers", len(offers)),
		zap.Int("skipped", skipped),
		zap.Duration("duration", time.Since(start)),
	)
	return offers, nil
}
