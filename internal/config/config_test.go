package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "dev-secret", cfg.JWTSecret)
	assert.Equal(t, time.Minute, cfg.VisitorRateWindow)
	assert.Equal(t, 30, cfg.VisitorRateLimit)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadRequiresSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("VISITOR_RATE_LIMIT", "5")
	t.Setenv("VISITOR_RATE_WINDOW", "10s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.VisitorRateLimit)
	assert.Equal(t, 10*time.Second, cfg.VisitorRateWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.7"}, cfg.TrustedProxies)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ADMIN_CACHE_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidRateLimit(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero limit", key: "VISITOR_RATE_LIMIT", value: "0"},
		{name: "negative limit", key: "VISITOR_RATE_LIMIT", value: "-3"},
		{name: "zero window", key: "VISITOR_RATE_WINDOW", value: "0s"},
		{name: "negative window", key: "VISITOR_RATE_WINDOW", value: "-1m"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", "development")
			t.Setenv("STORE_DRIVER", "memory")
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestLoadRejectsBadTrustedProxy(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,load-balancer")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load-balancer")
}
