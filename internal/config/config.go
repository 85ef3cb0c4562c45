package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Library
		Watcher
		DocumentCache
		Thumbnail
		Tasks
		Rescan
		Log
	}

	HTTP struct {
		Port int32
		Host string
		// ReadOnly rejects API requests that change the library or queue jobs.
		ReadOnly bool
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Library struct {
		FoldersConfigPath string
		CacheDir          string
		// ArchiveFallbackEncoding names the encoding tried for zip entry
		// names that are not UTF-8 (htmlindex name, e.g. "shift_jis").
		ArchiveFallbackEncoding string
	}
	Watcher struct {
		Enabled      bool
		PollInterval time.Duration
		Debounce     time.Duration
		IgnoreModify bool
	}
	DocumentCache struct {
		MaxEntries int
		TTL        time.Duration
	}
	Thumbnail struct {
		Width  int
		Height int
		Format string
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ScanTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Rescan struct {
		Enabled  bool
		Schedule string // Cron format: "0 3 * * *" = nightly at 03:00
	}
	Log struct {
		Level  string
		Format string // "json" or "console"
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("read_only", false)
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Library defaults
	v.SetDefault("folders_config_path", DefaultFoldersConfigPath)
	v.SetDefault("cache_dir", DefaultCacheDir)
	v.SetDefault("archive_fallback_encoding", "shift_jis")

	// Watcher defaults
	v.SetDefault("watcher_enabled", true)
	v.SetDefault("watcher_poll_interval", "5s")
	v.SetDefault("watcher_debounce", "10s")
	v.SetDefault("watcher_ignore_modify", false)

	// Document cache defaults
	v.SetDefault("document_cache_max_entries", 20)
	v.SetDefault("document_cache_ttl", "1m")

	// Thumbnail defaults
	v.SetDefault("thumbnail_width", 230)
	v.SetDefault("thumbnail_height", 320)
	v.SetDefault("thumbnail_format", "png")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "1h")
	v.SetDefault("task_scan_timeout", "2h")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	// Scheduled rescan defaults
	v.SetDefault("rescan_enabled", true)
	v.SetDefault("rescan_schedule", "0 3 * * *")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	return &Config{
		HTTP: HTTP{
			Port:     v.GetInt32("PORT"),
			Host:     v.GetString("HOST"),
			ReadOnly: v.GetBool("READ_ONLY"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Library: Library{
			FoldersConfigPath:       v.GetString("FOLDERS_CONFIG_PATH"),
			CacheDir:                v.GetString("CACHE_DIR"),
			ArchiveFallbackEncoding: v.GetString("ARCHIVE_FALLBACK_ENCODING"),
		},
		Watcher: Watcher{
			Enabled:      v.GetBool("WATCHER_ENABLED"),
			PollInterval: v.GetDuration("WATCHER_POLL_INTERVAL"),
			Debounce:     v.GetDuration("WATCHER_DEBOUNCE"),
			IgnoreModify: v.GetBool("WATCHER_IGNORE_MODIFY"),
		},
		DocumentCache: DocumentCache{
			MaxEntries: v.GetInt("DOCUMENT_CACHE_MAX_ENTRIES"),
			TTL:        v.GetDuration("DOCUMENT_CACHE_TTL"),
		},
		Thumbnail: Thumbnail{
			Width:  v.GetInt("THUMBNAIL_WIDTH"),
			Height: v.GetInt("THUMBNAIL_HEIGHT"),
			Format: v.GetString("THUMBNAIL_FORMAT"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ScanTimeout:       v.GetDuration("TASK_SCAN_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Rescan: Rescan{
			Enabled:  v.GetBool("RESCAN_ENABLED"),
			Schedule: v.GetString("RESCAN_SCHEDULE"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}
