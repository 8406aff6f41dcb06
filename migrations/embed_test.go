package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	names, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for i, name := range names {
		assert.True(t, strings.HasPrefix(name, "0000"+string(rune('1'+i))), "migrations are sequential: %s", name)

		body, err := fs.ReadFile(FS, name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}
}

func TestTargetKeyIndexCoversAllProductTarget(t *testing.T) {
	body, err := fs.ReadFile(FS, "00003_create_targets.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "COALESCE(product_type, '')")
}
