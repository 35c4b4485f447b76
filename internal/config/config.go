package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Supported values for STORAGE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config contains runtime configuration required by the service.
type Config struct {
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DBURL         string `env:"DB_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"cohort-sync.db"`
	ListenAddr    string `env:"LISTEN_ADDR" envDefault:":8080"`
	APIKeysRaw    string `env:"API_KEYS"`

	Cohorts CohortsConfig

	APIKeys map[string]string // apiKey -> tenantID, parsed from APIKeysRaw
}

// CohortsConfig holds the raw automatic-cohorts hook settings. Validation and
// normalization happen in cohortsync.Setup.
type CohortsConfig struct {
	PropertiesToTrack string `env:"PROPERTIES_TO_TRACK"`
	PosthogHost       string `env:"POSTHOG_HOST" envDefault:"app.posthog.com"`
	PosthogAPIKey     string `env:"POSTHOG_API_KEY"`
	NamingConvention  string `env:"NAMING_CONVENTION" envDefault:"<property_name> = <property_value>"`
}

// Load reads values from environment variables.
// API_KEYS format: "tenant1:key1,tenant2:key2"
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.DBURL = strings.TrimSpace(cfg.DBURL)

	switch cfg.StorageDriver {
	case DriverPostgres:
		if cfg.DBURL == "" {
			return Config{}, errors.New("DB_URL required")
		}
	case DriverSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return Config{}, errors.New("SQLITE_PATH required")
		}
	default:
		return Config{}, fmt.Errorf("STORAGE_DRIVER must be %q or %q", DriverPostgres, DriverSQLite)
	}

	if strings.TrimSpace(cfg.Cohorts.PosthogAPIKey) == "" {
		return Config{}, errors.New("POSTHOG_API_KEY required")
	}

	apiKeys, err := parseAPIKeys(cfg.APIKeysRaw)
	if err != nil {
		return Config{}, err
	}

	// Local dev fallback so the service runs out-of-the-box.
	if len(apiKeys) == 0 {
		apiKeys["tenant-key-123"] = "tenant1"
	}
	cfg.APIKeys = apiKeys

	return cfg, nil
}

func parseAPIKeys(raw string) (map[string]string, error) {
	apiKeys := map[string]string{}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apiKeys, nil
	}

	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			return nil, errors.New(`API_KEYS must be "tenant:key,tenant:key"`)
		}
		tenant := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if tenant == "" || key == "" {
			return nil, errors.New(`API_KEYS must be "tenant:key,tenant:key"`)
		}
		apiKeys[key] = tenant
	}
	return apiKeys, nil
}
