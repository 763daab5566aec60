package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values. Interval defaults mirror the operational profile of the
// upstream API: requests step immediately between pages, rate-limit replies
// back off for 10s, transport errors for 5s, and an idle tail re-polls
// every 15s.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "json"
	DefaultLogOutput = "stdout"

	DefaultMetricsPort = 9090

	DefaultAPIVersion      = "2.5"
	DefaultAPIResource     = "tenders"
	DefaultAPILimit        = 100
	DefaultAPIMode         = "_all_"
	DefaultUserAgent       = "OpenTender Crawler 1.0"
	DefaultGetErrorRetries = 5

	DefaultFeedStepInterval        = 0 * time.Second
	DefaultTooManyRequestsInterval = 10 * time.Second
	DefaultConnectionErrorInterval = 5 * time.Second
	DefaultNoItemsInterval         = 15 * time.Second
	DefaultDBErrorInterval         = 5 * time.Second

	DefaultMongoDatabase        = "feed-crawler"
	DefaultMongoStateCollection = "feed-crawler-state"
	DefaultStateID              = "FEED_CRAWLER_STATE"

	DefaultPostgresPort       = 5432
	DefaultPostgresStateTable = "feed_crawler_state"

	DefaultLockCollection      = "process_lock"
	DefaultLockProcessName     = "crawler_lock"
	DefaultLockExpireTime      = 60 * time.Second
	DefaultLockUpdateTime      = 30 * time.Second
	DefaultLockAcquireInterval = 10 * time.Second

	DefaultDateModifiedMargin = 60 * time.Second
)

// GetDefaultConfig returns the configuration with all defaults applied.
func GetDefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Output: DefaultLogOutput,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    DefaultMetricsPort,
		},
		API: APIConfig{
			Version:         DefaultAPIVersion,
			Resource:        DefaultAPIResource,
			Limit:           DefaultAPILimit,
			Mode:            DefaultAPIMode,
			UserAgent:       DefaultUserAgent,
			GetErrorRetries: DefaultGetErrorRetries,
		},
		Intervals: IntervalsConfig{
			FeedStep:        DefaultFeedStepInterval,
			TooManyRequests: DefaultTooManyRequestsInterval,
			ConnectionError: DefaultConnectionErrorInterval,
			NoItems:         DefaultNoItemsInterval,
			DBError:         DefaultDBErrorInterval,
		},
		Mongo: MongoConfig{
			Database:        DefaultMongoDatabase,
			StateCollection: DefaultMongoStateCollection,
			StateID:         DefaultStateID,
		},
		Postgres: PostgresConfig{
			Port:       DefaultPostgresPort,
			StateTable: DefaultPostgresStateTable,
			StateID:    DefaultStateID,
		},
		Lock: LockConfig{
			Enabled:         false,
			Collection:      DefaultLockCollection,
			ProcessName:     DefaultLockProcessName,
			ExpireTime:      DefaultLockExpireTime,
			UpdateTime:      DefaultLockUpdateTime,
			AcquireInterval: DefaultLockAcquireInterval,
		},
		DateModified: DateModifiedConfig{
			Margin: DefaultDateModifiedMargin,
		},
	}
}

// registerDefaults declares every key and its default to viper so that
// AutomaticEnv resolves CRAWLER_* overrides even without a config file.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("logging.output", DefaultLogOutput)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", DefaultMetricsPort)

	v.SetDefault("api.host", "")
	v.SetDefault("api.version", DefaultAPIVersion)
	v.SetDefault("api.resource", DefaultAPIResource)
	v.SetDefault("api.limit", DefaultAPILimit)
	v.SetDefault("api.mode", DefaultAPIMode)
	v.SetDefault("api.opt_fields", []string{})
	v.SetDefault("api.token", "")
	v.SetDefault("api.user_agent", DefaultUserAgent)
	v.SetDefault("api.get_error_retries", DefaultGetErrorRetries)

	v.SetDefault("intervals.feed_step", DefaultFeedStepInterval)
	v.SetDefault("intervals.too_many_requests", DefaultTooManyRequestsInterval)
	v.SetDefault("intervals.connection_error", DefaultConnectionErrorInterval)
	v.SetDefault("intervals.no_items", DefaultNoItemsInterval)
	v.SetDefault("intervals.db_error", DefaultDBErrorInterval)

	v.SetDefault("mongo.url", "")
	v.SetDefault("mongo.database", DefaultMongoDatabase)
	v.SetDefault("mongo.state_collection", DefaultMongoStateCollection)
	v.SetDefault("mongo.state_id", DefaultStateID)

	v.SetDefault("postgres.host", "")
	v.SetDefault("postgres.port", DefaultPostgresPort)
	v.SetDefault("postgres.database", "")
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.state_table", DefaultPostgresStateTable)
	v.SetDefault("postgres.state_id", DefaultStateID)

	v.SetDefault("lock.enabled", false)
	v.SetDefault("lock.collection", DefaultLockCollection)
	v.SetDefault("lock.process_name", DefaultLockProcessName)
	v.SetDefault("lock.expire_time", DefaultLockExpireTime)
	v.SetDefault("lock.update_time", DefaultLockUpdateTime)
	v.SetDefault("lock.acquire_interval", DefaultLockAcquireInterval)

	v.SetDefault("date_modified.lock_enabled", false)
	v.SetDefault("date_modified.skip_statuses", []string{})
	v.SetDefault("date_modified.margin", DefaultDateModifiedMargin)

	v.SetDefault("bootstrap.forward_offset", "")
	v.SetDefault("bootstrap.backward_offset", "")

	v.SetDefault("cooldown.forward_changes", time.Duration(0))
	v.SetDefault("cooldown.sleep_forward_changes", time.Duration(0))
}
