package config_test

import (
	"testing"
	"time"

	"github.com/straye-as/target-analytics/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "Europe/Oslo", cfg.Analytics.Timezone)
	assert.Equal(t, config.OfferSourceDatabase, cfg.Analytics.OfferSource)
	assert.Equal(t, 5, cfg.Analytics.DefaultTopN)
	assert.Equal(t, "0 7 * * *", cfg.Jobs.PacingMonitorSchedule)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTLDuration())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ANALYTICS_OFFERSOURCE", "warehouse")
	t.Setenv("DATAWAREHOUSE_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("APP_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, config.OfferSourceWarehouse, cfg.Analytics.OfferSource)
	assert.True(t, cfg.DataWarehouse.Enabled)
	assert.Equal(t, "redis:6379", cfg.Cache.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{Analytics: config.AnalyticsConfig{
			Timezone:    "UTC",
			OfferSource: config.OfferSourceDatabase,
			DefaultTopN: 5,
		}}
	}

	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"unknown timezone", func(c *config.Config) { c.Analytics.Timezone = "Mars/Olympus" }},
		{"bad fallback zone", func(c *config.Config) { c.Analytics.FallbackZoneID = "north" }},
		{"unknown offer source", func(c *config.Config) { c.Analytics.OfferSource = "spreadsheet" }},
		{"warehouse without warehouse", func(c *config.Config) { c.Analytics.OfferSource = config.OfferSourceWarehouse }},
		{"zero top n", func(c *config.Config) { c.Analytics.DefaultTopN = 0 }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAnalyticsConfig_Parsing(t *testing.T) {
	a := config.AnalyticsConfig{Timezone: "Europe/Oslo", FallbackZoneID: "11111111-1111-1111-1111-111111111111"}

	loc, err := a.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Oslo", loc.String())

	zone, err := a.FallbackZone()
	require.NoError(t, err)
	require.NotNil(t, zone)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", zone.String())

	empty := config.AnalyticsConfig{}
	loc, err = empty.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
	zone, err = empty.FallbackZone()
	require.NoError(t, err)
	assert.Nil(t, zone)
}
