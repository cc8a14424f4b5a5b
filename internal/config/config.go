package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Remote
		Database
		Cache
		Retry
		Sync
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Remote struct {
		BaseURL string
		Token   string
	}
	Database struct {
		Path string
	}
	Cache struct {
		MaxEntries int
		MaxMemory  int64
		DefaultTTL time.Duration
	}
	Retry struct {
		MaxAttempts   int
		BaseDelay     time.Duration
		MaxDelay      time.Duration
		BackoffFactor float64
	}
	Sync struct {
		Enabled        bool
		Schedule       string // Cron format: "0 */6 * * *" = every 6 hours
		Concurrency    int
		ContentTimeout time.Duration
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8180)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Remote service defaults
	v.SetDefault("remote_base_url", "")
	v.SetDefault("remote_token", "")

	// Cache defaults
	v.SetDefault("cache_max_entries", 500)
	v.SetDefault("cache_max_memory", 10*1024*1024)
	v.SetDefault("cache_default_ttl", "5m")

	// Retry defaults
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay", "1s")
	v.SetDefault("retry_max_delay", "30s")
	v.SetDefault("retry_backoff_factor", 2.0)

	// Sync defaults
	v.SetDefault("sync_enabled", false)
	v.SetDefault("sync_schedule", "0 */6 * * *") // Every 6 hours
	v.SetDefault("sync_concurrency", 4)
	v.SetDefault("sync_content_timeout", "30s")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Remote: Remote{
			BaseURL: v.GetString("REMOTE_BASE_URL"),
			Token:   v.GetString("REMOTE_TOKEN"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Cache: Cache{
			MaxEntries: v.GetInt("CACHE_MAX_ENTRIES"),
			MaxMemory:  v.GetInt64("CACHE_MAX_MEMORY"),
			DefaultTTL: v.GetDuration("CACHE_DEFAULT_TTL"),
		},
		Retry: Retry{
			MaxAttempts:   v.GetInt("RETRY_MAX_ATTEMPTS"),
			BaseDelay:     v.GetDuration("RETRY_BASE_DELAY"),
			MaxDelay:      v.GetDuration("RETRY_MAX_DELAY"),
			BackoffFactor: v.GetFloat64("RETRY_BACKOFF_FACTOR"),
		},
		Sync: Sync{
			Enabled:        v.GetBool("SYNC_ENABLED"),
			Schedule:       v.GetString("SYNC_SCHEDULE"),
			Concurrency:    v.GetInt("SYNC_CONCURRENCY"),
			ContentTimeout: v.GetDuration("SYNC_CONTENT_TIMEOUT"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}
