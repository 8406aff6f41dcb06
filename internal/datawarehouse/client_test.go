package datawarehouse

import (
	"context"
	"database/sql"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/target-analytics/internal/config"
	"github.com/straye-as/target-analytics/internal/domain"
	"github.com/straye-as/target-analytics/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient_DisabledConfig(t *testing.T) {
	logger := zap.NewNop()

	client, err := NewClient(nil, logger)
	assert.NoError(t, err)
	assert.Nil(t, client)

	client, err = NewClient(&config.DataWarehouseConfig{Enabled: false}, logger)
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewClient_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.DataWarehouseConfig
	}{
		{"missing URL", &config.DataWarehouseConfig{Enabled: true, User: "user", Password: "pass"}},
		{"missing user", &config.DataWarehouseConfig{Enabled: true, URL: "host:1433/db", Password: "pass"}},
		{"missing password", &config.DataWarehouseConfig{Enabled: true, URL: "host:1433/db", User: "user"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg, zap.NewNop())
			assert.NoError(t, err)
			assert.Nil(t, client)
		})
	}
}

func TestNewClient_RejectsUnsafeViewName(t *testing.T) {
	cfg := &config.DataWarehouseConfig{
		Enabled:    true,
		URL:        "host:1433/db",
		User:       "user",
		Password:   "pass",
		OffersView: "dbo.offers; DROP TABLE x",
	}
	client, err := NewClient(cfg, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestBuildConnectionString(t *testing.T) {
	connStr, err := buildConnectionString(&config.DataWarehouseConfig{
		URL:      "dw.example.net/reporting",
		User:     "reader",
		Password: "p@ss word",
	})
	require.NoError(t, err)

	u, err := url.Parse(connStr)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "dw.example.net:1433", u.Host)
	assert.Equal(t, "reporting", u.Query().Get("database"))
	assert.Equal(t, "ReadOnly", u.Query().Get("ApplicationIntent"))
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)

	_, err = buildConnectionString(&config.DataWarehouseConfig{URL: "/db"})
	assert.Error(t, err)
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.False(t, c.IsEnabled())
	assert.NoError(t, c.Close())
	assert.Equal(t, "disabled", c.HealthCheck(context.Background()).Status)

	_, err := c.ListOffers(context.Background(), repository.OfferFilter{})
	assert.Error(t, err)
}

func TestBuildOffersQuery(t *testing.T) {
	t.Run("no filter", func(t *testing.T) {
		query, args := buildOffersQuery("dbo.crm_offers", repository.OfferFilter{})
		assert.Contains(t, query, "FROM dbo.crm_offers ORDER BY")
		assert.NotContains(t, query, "WHERE")
		assert.Empty(t, args)
	})

	t.Run("all predicates are parameterized in order", func(t *testing.T) {
		from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
		zone := uuid.New()
		pt := domain.ProductTypeSoftware
		query, args := buildOffersQuery("dbo.crm_offers", repository.OfferFilter{
			From:        &from,
			ZoneID:      &zone,
			ProductType: &pt,
		})
		assert.Contains(t, query, "WHERE created_at >= @p1 AND zone_id = @p2 AND product_type = @p3")
		assert.Equal(t, []any{from, zone.String(), "SOFTWARE"}, args)
	})
}

func TestOfferRow_ToOffer(t *testing.T) {
	id, zone, owner := uuid.New(), uuid.New(), uuid.New()
	created := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

	row := offerRow{
		ID:                    id.String(),
		CreatedAt:             created,
		Title:                 sql.NullString{String: "Press line", Valid: true},
		Stage:                 " won ",
		ZoneID:                zone.String(),
		OwnerID:               owner.String(),
		ProductType:           sql.NullString{String: "machine", Valid: true},
		ProbabilityPercentage: sql.NullInt64{Int64: 80, Valid: true},
		PoValue:               sql.NullFloat64{Float64: 1200, Valid: true},
	}

	offer, err := row.toOffer()
	require.NoError(t, err)
	assert.Equal(t, id, offer.ID)
	assert.Equal(t, domain.OfferStageWon, offer.Stage)
	require.NotNil(t, offer.ProductType)
	assert.Equal(t, domain.ProductTypeMachine, *offer.ProductType)
	require.NotNil(t, offer.ProbabilityPercentage)
	assert.Equal(t, 80, *offer.ProbabilityPercentage)
	require.NotNil(t, offer.PoValue)
	assert.Equal(t, 1200.0, *offer.PoValue)
	assert.Nil(t, offer.OfferValue)

	t.Run("unknown product type is treated as absent", func(t *testing.T) {
		r := row
		r.ProductType = sql.NullString{String: "DRONES", Valid: true}
		o, err := r.toOffer()
		require.NoError(t, err)
		assert.Nil(t, o.ProductType)
	})

	t.Run("rows without attribution are rejected", func(t *testing.T) {
		for _, mutate := range []func(r *offerRow){
			func(r *offerRow) { r.ZoneID = "" },
			func(r *offerRow) { r.OwnerID = "n/a" },
			func(r *offerRow) { r.Stage = "ARCHIVED" },
			func(r *offerRow) { r.ID = "42" },
		} {
			r := row
			mutate(&r)
			_, err := r.toOffer()
			assert.Error(t, err)
		}
	})
}
