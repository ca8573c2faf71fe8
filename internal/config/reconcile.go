package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// MaxAdminPageSize caps how many dead-letter rows one admin read returns.
const MaxAdminPageSize = 50

// ReconcileConfig holds the tuning knobs of the reconciliation pipeline.
// It is read from reconcile.yml and may change at runtime.
type ReconcileConfig struct {
	Retry   RetryConfig   `mapstructure:"retry"`
	Booking BookingConfig `mapstructure:"booking"`
	Admin   AdminConfig   `mapstructure:"admin"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"maxAttempts"`
	BaseDelay   time.Duration `mapstructure:"baseDelay"`
	MaxElapsed  time.Duration `mapstructure:"maxElapsed"`
	Jitter      bool          `mapstructure:"jitter"`
}

type BookingConfig struct {
	MaxAttempts int `mapstructure:"maxAttempts"`
}

type AdminConfig struct {
	PageSize int `mapstructure:"pageSize"`
}

func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   200 * time.Millisecond,
			MaxElapsed:  10 * time.Second,
			Jitter:      true,
		},
		Booking: BookingConfig{MaxAttempts: 3},
		Admin:   AdminConfig{PageSize: MaxAdminPageSize},
	}
}

type ReconcileConfigHolder struct {
	current atomic.Value // holds ReconcileConfig
}

// NewReconcileConfigHolderFrom returns a holder pinned to cfg with no file watch.
func NewReconcileConfigHolderFrom(cfg ReconcileConfig) *ReconcileConfigHolder {
	holder := &ReconcileConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReconcileConfigHolder(cfg Config, log *zap.Logger) (*ReconcileConfigHolder, error) {
	log = log.Named("config.reconcile")
	v := viper.New()

	v.SetConfigName("reconcile")
	v.SetConfigType("yml")
	if dir := strings.TrimSpace(cfg.ConfigDir); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("/etc/guardbook")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GUARDBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReconcileConfig()
	v.SetDefault("reconcile.retry.maxAttempts", defaults.Retry.MaxAttempts)
	v.SetDefault("reconcile.retry.baseDelay", defaults.Retry.BaseDelay)
	v.SetDefault("reconcile.retry.maxElapsed", defaults.Retry.MaxElapsed)
	v.SetDefault("reconcile.retry.jitter", defaults.Retry.Jitter)
	v.SetDefault("reconcile.booking.maxAttempts", defaults.Booking.MaxAttempts)
	v.SetDefault("reconcile.admin.pageSize", defaults.Admin.PageSize)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read reconcile config: %w", err)
		}
		fileFound = false
	}

	loaded, err := unmarshalReconcile(v)
	if err != nil {
		return nil, err
	}

	holder := NewReconcileConfigHolderFrom(loaded)
	if !fileFound {
		log.Info("reconcile config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalReconcile(v)
		if err != nil {
			log.Warn("invalid reconcile config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reconcile config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ReconcileConfigHolder) Get() ReconcileConfig {
	if h == nil {
		return DefaultReconcileConfig()
	}
	cfg, ok := h.current.Load().(ReconcileConfig)
	if !ok {
		return DefaultReconcileConfig()
	}
	return cfg
}

// unmarshalReconcile decodes the full settings tree so defaults and env
// overrides fill whatever the file leaves out. UnmarshalKey on the parent
// key would only see the file's own map.
func unmarshalReconcile(v *viper.Viper) (ReconcileConfig, error) {
	var root struct {
		Reconcile ReconcileConfig `mapstructure:"reconcile"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return ReconcileConfig{}, fmt.Errorf("decode reconcile config: %w", err)
	}
	if err := ValidateReconcileConfig(root.Reconcile); err != nil {
		return ReconcileConfig{}, err
	}
	return root.Reconcile, nil
}

func ValidateReconcileConfig(cfg ReconcileConfig) error {
	if cfg.Retry.MaxAttempts < 1 {
		return errors.New("reconcile.retry.maxAttempts must be at least 1")
	}
	if cfg.Retry.BaseDelay < 0 {
		return errors.New("reconcile.retry.baseDelay cannot be negative")
	}
	if cfg.Retry.MaxElapsed <= 0 {
		return errors.New("reconcile.retry.maxElapsed must be positive")
	}
	if cfg.Booking.MaxAttempts < 1 {
		return errors.New("reconcile.booking.maxAttempts must be at least 1")
	}
	if cfg.Admin.PageSize < 1 || cfg.Admin.PageSize > MaxAdminPageSize {
		return fmt.Errorf("reconcile.admin.pageSize must be between 1 and %d", MaxAdminPageSize)
	}
	return nil
}
