package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(defaults())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, WithdrawPolicyReject, cfg.WithdrawPolicy)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, 3, cfg.LockConfig.MaxAttempts)
	assert.Equal(t, 25*time.Millisecond, cfg.LockConfig.BaseBackoff)
	assert.Equal(t, 30*time.Second, cfg.LockConfig.LeaseTTL)
}

func TestLoadFrom_Overrides(t *testing.T) {
	v := defaults()
	v.Set("STORE_DRIVER", "MEMORY")
	v.Set("WITHDRAW_POLICY", "cascade")
	v.Set("KAFKA_BROKERS", "a:9092, b:9092,,")
	v.Set("SERVICE_PORT", ":9000")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, WithdrawPolicyCascade, cfg.WithdrawPolicy)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, ":9000", cfg.Port)
}

func TestLoadFrom_Invalid(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"unknown driver":       func(v *viper.Viper) { v.Set("STORE_DRIVER", "mongo") },
		"unknown policy":       func(v *viper.Viper) { v.Set("WITHDRAW_POLICY", "ignore") },
		"no secret in prod":    func(v *viper.Viper) { v.Set("APP_ENV", "production") },
		"kafka without broker": func(v *viper.Viper) { v.Set("KAFKA_BROKERS", " ") },
		"zero attempts":        func(v *viper.Viper) { v.Set("LOCK_MAX_ATTEMPTS", 0) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := defaults()
			mutate(v)
			_, err := LoadFrom(v)
			assert.Error(t, err)
		})
	}
}
