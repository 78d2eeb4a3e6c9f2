// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/unpuff/internal/platform/config"
)

/*
TestLoad_RequiredAndDefaults verifies that required variables are enforced and
defaults are applied to everything else.
*/
func TestLoad_RequiredAndDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/unpuff")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_PRIVATE_KEY_PATH", "/keys/private.pem")
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/keys/public.pem")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 3, cfg.PasswordMinLength)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.GoogleOAuthEnabled())
}

/*
TestLoad_MissingRequired ensures startup fails fast without a database URL.
*/
func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	require.NoError(t, os.Unsetenv("DATABASE_URL"))
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_PRIVATE_KEY_PATH", "/keys/private.pem")
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/keys/public.pem")

	_, err := config.Load()
	assert.Error(t, err)
}

/*
TestLoadClient_StorageDrivers checks driver validation in the client config.
*/
func TestLoadClient_StorageDrivers(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		redisURL string
		hasError bool
	}{
		{"file_default", "file", "", false},
		{"memory", "memory", "", false},
		{"redis_with_url", "redis", "redis://localhost:6379/1", false},
		{"redis_without_url", "redis", "", true},
		{"unknown", "sqlite", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("UNPUFF_STORAGE", tt.driver)
			t.Setenv("UNPUFF_REDIS_URL", tt.redisURL)

			cfg, err := config.LoadClient()
			if tt.hasError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.driver, cfg.StorageDriver)
			assert.Equal(t, "unpuff://auth/callback", cfg.RedirectURL)
			assert.Equal(t, 3, cfg.PasswordMinLength)
		})
	}
}
