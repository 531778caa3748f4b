package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	// StorageMode selects "postgres" (with Redis) or "memory" for local runs.
	StorageMode string

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	WebhookSigningSecret string
	ClockSkewTolerance   time.Duration

	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	ProviderSecretKey string
	ProviderBaseURL   string
	FrontendURL       string

	PlanCatalog          map[string]string
	IntentValidityWindow time.Duration

	ReconcileMaxAttempts int
	ReconcileBackoff     time.Duration
	ParkPollInterval     time.Duration
	ParkRetryBackoff     time.Duration
	ParkMaxRetries       int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Storage struct {
		Mode string `yaml:"mode"`
	} `yaml:"storage"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Provider struct {
		BaseURL     string `yaml:"base_url"`
		FrontendURL string `yaml:"frontend_url"`
	} `yaml:"provider"`
	Billing struct {
		Plans                map[string]string `yaml:"plans"`
		IntentWindowMinutes  int               `yaml:"intent_window_minutes"`
		SkewToleranceMinutes int               `yaml:"skew_tolerance_minutes"`
	} `yaml:"billing"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "subscription-service",
		HTTPPort:             8080,
		GRPCPort:             9090,
		StorageMode:          "postgres",
		MaxDBConns:           20,
		ClockSkewTolerance:   5 * time.Minute,
		TokenTTL:             24 * time.Hour,
		BcryptCost:           10,
		ProviderBaseURL:      "https://api.stripe.com",
		PlanCatalog:          map[string]string{},
		IntentValidityWindow: 30 * time.Minute,
		ReconcileMaxAttempts: 3,
		ReconcileBackoff:     50 * time.Millisecond,
		ParkPollInterval:     2 * time.Second,
		ParkRetryBackoff:     5 * time.Second,
		ParkMaxRetries:       3,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Storage.Mode != "" {
			cfg.StorageMode = f.Storage.Mode
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Provider.BaseURL != "" {
			cfg.ProviderBaseURL = f.Provider.BaseURL
		}
		if f.Provider.FrontendURL != "" {
			cfg.FrontendURL = f.Provider.FrontendURL
		}
		if len(f.Billing.Plans) > 0 {
			cfg.PlanCatalog = f.Billing.Plans
		}
		if f.Billing.IntentWindowMinutes > 0 {
			cfg.IntentValidityWindow = time.Duration(f.Billing.IntentWindowMinutes) * time.Minute
		}
		if f.Billing.SkewToleranceMinutes > 0 {
			cfg.ClockSkewTolerance = time.Duration(f.Billing.SkewToleranceMinutes) * time.Minute
		}
	}

	cfg.StorageMode = strings.ToLower(envOrDefault("STORAGE_MODE", cfg.StorageMode))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.WebhookSigningSecret = envOrDefault("WEBHOOK_SIGNING_SECRET", cfg.WebhookSigningSecret)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.ProviderSecretKey = envOrDefault("PROVIDER_SECRET_KEY", cfg.ProviderSecretKey)
	cfg.ProviderBaseURL = envOrDefault("PROVIDER_BASE_URL", cfg.ProviderBaseURL)
	cfg.FrontendURL = envOrDefault("FRONTEND_URL", cfg.FrontendURL)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.TokenTTL = time.Duration(envInt("TOKEN_EXPIRY_HOURS", int(cfg.TokenTTL.Hours()))) * time.Hour
	cfg.ClockSkewTolerance = time.Duration(envInt("WEBHOOK_SKEW_TOLERANCE_MINUTES", int(cfg.ClockSkewTolerance.Minutes()))) * time.Minute
	cfg.IntentValidityWindow = time.Duration(envInt("INTENT_WINDOW_MINUTES", int(cfg.IntentValidityWindow.Minutes()))) * time.Minute
	cfg.ReconcileMaxAttempts = envInt("RECONCILE_MAX_ATTEMPTS", cfg.ReconcileMaxAttempts)
	cfg.ParkPollInterval = time.Duration(envInt("PARK_POLL_SECONDS", int(cfg.ParkPollInterval.Seconds()))) * time.Second
	cfg.ParkRetryBackoff = time.Duration(envInt("PARK_RETRY_BACKOFF_SECONDS", int(cfg.ParkRetryBackoff.Seconds()))) * time.Second
	cfg.ParkMaxRetries = envInt("PARK_MAX_RETRIES", cfg.ParkMaxRetries)

	if cfg.WebhookSigningSecret == "" {
		return Config{}, fmt.Errorf("missing WEBHOOK_SIGNING_SECRET")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("missing JWT_SECRET")
	}
	if cfg.StorageMode != "memory" {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("missing REDIS_URL")
		}
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
