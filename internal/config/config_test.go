package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intersectx/internal/session"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INTERSECTX_BASE_URL", "")
	t.Setenv("INTERSECTX_COMPANY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultCompany, cfg.Company)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, session.DefaultLoadDebounce, cfg.ThreadLoadDebounce)
	assert.Equal(t, session.DefaultCreateDebounce, cfg.ThreadCreateDebounce)
	assert.Empty(t, cfg.UserEmail)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("INTERSECTX_BASE_URL", "https://api.intersectx.io")
	t.Setenv("INTERSECTX_COMPANY", "acme-capital")
	t.Setenv("INTERSECTX_USER_EMAIL", "ada@intersectx.io")
	t.Setenv("INTERSECTX_REQUEST_TIMEOUT", "45s")
	t.Setenv("INTERSECTX_THREAD_LOAD_DEBOUNCE", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.intersectx.io", cfg.BaseURL)
	assert.Equal(t, "acme-capital", cfg.Company)
	assert.Equal(t, "ada@intersectx.io", cfg.UserEmail)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.ThreadLoadDebounce)
}
