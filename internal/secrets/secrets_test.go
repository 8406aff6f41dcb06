package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeVault struct {
	values map[string]string
	calls  int
}

func (f *fakeVault) GetSecret(_ context.Context, name, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.calls++
	value, ok := f.values[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, errors.New("SecretNotFound")
	}
	return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{Value: &value}}, nil
}

func TestVaultClient_Cache(t *testing.T) {
	fake := &fakeVault{values: map[string]string{"POSTGRES-MAIN-PASSWORD": "hunter2"}}
	client := newVaultClient(fake, &VaultConfig{VaultName: "kv", CacheEnabled: true, CacheTTL: time.Minute}, zap.NewNop())

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		value, err := client.GetSecret(context.Background(), "POSTGRES-MAIN-PASSWORD")
		require.NoError(t, err)
		assert.Equal(t, "hunter2", value)
	}
	assert.Equal(t, 1, fake.calls)

	now = now.Add(2 * time.Minute)
	_, err := client.GetSecret(context.Background(), "POSTGRES-MAIN-PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls, "expired entries are fetched again")

	client.ClearCache()
	_, err = client.GetSecret(context.Background(), "POSTGRES-MAIN-PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, 3, fake.calls)
}

func TestVaultClient_CacheDisabled(t *testing.T) {
	fake := &fakeVault{values: map[string]string{"A": "1"}}
	client := newVaultClient(fake, &VaultConfig{VaultName: "kv"}, zap.NewNop())

	_, _ = client.GetSecret(context.Background(), "A")
	_, _ = client.GetSecret(context.Background(), "A")
	assert.Equal(t, 2, fake.calls)
}

func TestVaultClient_MissingSecret(t *testing.T) {
	client := newVaultClient(&fakeVault{}, &VaultConfig{VaultName: "kv", CacheEnabled: true}, zap.NewNop())
	_, err := client.GetSecret(context.Background(), "NOPE")
	assert.ErrorContains(t, err, "NOPE")
}

func TestResolveSource(t *testing.T) {
	tests := []struct {
		source      SecretSource
		environment string
		want        SecretSource
	}{
		{SourceAuto, "development", SourceEnvironment},
		{SourceAuto, "", SourceEnvironment},
		{SourceAuto, "production", SourceVault},
		{"", "staging", SourceVault},
		{SourceEnvironment, "production", SourceEnvironment},
		{SourceVault, "development", SourceVault},
	}

	for _, tt := range tests {
		t.Run(string(tt.source)+"/"+tt.environment, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSource(tt.source, tt.environment))
		})
	}
}

func TestEnvironmentProvider(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "from-env")
	p := NewEnvironmentProvider(zap.NewNop())

	value, err := p.GetSecret(context.Background(), "REDIS_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)

	_, err = p.GetSecret(context.Background(), "NOT_SET_ANYWHERE")
	assert.Error(t, err)

	value, err = p.GetSecretOrEnv(context.Background(), "redis-password", "REDIS_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
	assert.False(t, p.IsVaultEnabled())
}
