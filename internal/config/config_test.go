package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validProductionConfig() *Config {
	return &Config{
		Port:            "8480",
		Env:             "production",
		JWTSecret:       "a-strong-secret-that-is-long-enough!",
		DBPassword:      "s3cure-db-password",
		DBSSLMode:       "require",
		AuthorizedEmail: "owner@example.com",
		GatewaySecret:   "gateway-secret",
	}
}

func TestValidate_Production(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Port = "" },
			wantErr: "PORT",
		},
		{
			name:    "default jwt secret",
			mutate:  func(c *Config) { c.JWTSecret = "your-secret-key-change-in-production" },
			wantErr: "JWT_SECRET",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.JWTSecret = "short" },
			wantErr: "32 characters",
		},
		{
			name:    "weak db password",
			mutate:  func(c *Config) { c.DBPassword = "password" },
			wantErr: "DB_PASSWORD",
		},
		{
			name:    "missing authorized email",
			mutate:  func(c *Config) { c.AuthorizedEmail = "" },
			wantErr: "AUTHORIZED_EMAIL",
		},
		{
			name:    "missing gateway secret",
			mutate:  func(c *Config) { c.GatewaySecret = "" },
			wantErr: "AUTH_GATEWAY_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validProductionConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_DevelopmentIsLenient(t *testing.T) {
	cfg := &Config{
		Port:      "8480",
		Env:       "development",
		JWTSecret: "short-dev-secret",
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ProdAliasTreatedAsProduction(t *testing.T) {
	cfg := validProductionConfig()
	cfg.Env = "prod"
	cfg.GatewaySecret = ""
	assert.ErrorContains(t, cfg.Validate(), "AUTH_GATEWAY_SECRET")
}
