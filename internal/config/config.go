package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Withdraw policies.
const (
	WithdrawPolicyReject  = "reject"
	WithdrawPolicyCascade = "cascade"
)

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	GroupPrefix string
}

// JWTConfig holds token verification settings.
type JWTConfig struct {
	Secret string
}

// LockConfig tunes the per-pet guard.
type LockConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	LeaseTTL    time.Duration
}

// ServiceConfig holds all configuration for the adoption service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	StoreDriver    string
	MigrationsDir  string
	WithdrawPolicy string
	DBConfig       database.PostgresConfig
	JWTConfig      JWTConfig
	KafkaConfig    KafkaConfig
	LockConfig     LockConfig
}

// Load reads configuration from ADOPTION_-prefixed environment variables.
func Load() (*ServiceConfig, error) {
	return LoadFrom(newViper())
}

// LoadFrom builds a ServiceConfig from an already-populated viper instance.
func LoadFrom(v *viper.Viper) (*ServiceConfig, error) {
	cfg := &ServiceConfig{
		Port:           v.GetString("SERVICE_PORT"),
		AppEnv:         v.GetString("APP_ENV"),
		StoreDriver:    strings.ToLower(v.GetString("STORE_DRIVER")),
		MigrationsDir:  v.GetString("MIGRATIONS_DIR"),
		WithdrawPolicy: strings.ToLower(v.GetString("WITHDRAW_POLICY")),
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWTConfig: JWTConfig{Secret: v.GetString("JWT_SECRET")},
		KafkaConfig: KafkaConfig{
			Enabled:     v.GetBool("KAFKA_ENABLED"),
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		LockConfig: LockConfig{
			MaxAttempts: v.GetInt("LOCK_MAX_ATTEMPTS"),
			BaseBackoff: v.GetDuration("LOCK_BASE_BACKOFF"),
			LeaseTTL:    v.GetDuration("LOCK_LEASE_TTL"),
		},
	}

	if !strings.HasPrefix(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no safe fallback.
func (c *ServiceConfig) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	switch c.WithdrawPolicy {
	case WithdrawPolicyReject, WithdrawPolicyCascade:
	default:
		return fmt.Errorf("unknown withdraw policy %q", c.WithdrawPolicy)
	}
	if c.AppEnv != "development" && c.JWTConfig.Secret == "" {
		return fmt.Errorf("JWT secret is required outside development")
	}
	if c.KafkaConfig.Enabled && len(c.KafkaConfig.Brokers) == 0 {
		return fmt.Errorf("kafka is enabled but no brokers are configured")
	}
	if c.LockConfig.MaxAttempts < 1 {
		return fmt.Errorf("lock max attempts must be at least 1")
	}
	if c.LockConfig.LeaseTTL <= 0 {
		return fmt.Errorf("lock lease TTL must be positive")
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ADOPTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers every default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("WITHDRAW_POLICY", WithdrawPolicyReject)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "adoption")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("KAFKA_ENABLED", true)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "kilat-")
	v.SetDefault("LOCK_MAX_ATTEMPTS", 3)
	v.SetDefault("LOCK_BASE_BACKOFF", "25ms")
	v.SetDefault("LOCK_LEASE_TTL", "30s")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
