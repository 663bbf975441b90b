package config

// Configuration key constants
// These constants centralize all environment variable and configuration key names
// to eliminate magic strings and improve maintainability.

const (
	// Core service configuration keys
	KeyClientKey   = "FLAGSYNC_CLIENT_KEY"
	KeyBaseURL     = "FLAGSYNC_BASE_URL"
	KeyDimensionID = "FLAGSYNC_DIMENSION_ID"
	KeyUserID      = "FLAGSYNC_USER_ID"
	KeyOffline     = "FLAGSYNC_OFFLINE"

	// Polling and flush configuration keys
	KeyPollIntervalSeconds  = "FLAGSYNC_POLL_INTERVAL_SECONDS"
	KeyQueueCapacity        = "FLAGSYNC_QUEUE_CAPACITY"
	KeyFlushIntervalSeconds = "FLAGSYNC_FLUSH_INTERVAL_SECONDS"
	KeyFlushAgeSeconds      = "FLAGSYNC_FLUSH_AGE_SECONDS"

	// Overflow store configuration keys
	KeyOverflowPath     = "FLAGSYNC_OVERFLOW_PATH"
	KeyOverflowMaxItems = "FLAGSYNC_OVERFLOW_MAX_ITEMS"

	// Config cache configuration keys
	KeyCachePath           = "FLAGSYNC_CACHE_PATH"
	KeyCacheTTLSeconds     = "FLAGSYNC_CACHE_TTL_SECONDS"
	KeyCacheAllowStale     = "FLAGSYNC_CACHE_ALLOW_STALE"
	KeyCacheEvictOnRestart = "FLAGSYNC_CACHE_EVICT_ON_RESTART"
	KeyCachePersist        = "FLAGSYNC_CACHE_PERSIST"

	// Network configuration keys
	KeyInitialBackoffSeconds = "FLAGSYNC_INITIAL_BACKOFF_SECONDS"
	KeyMaxBackoffSeconds     = "FLAGSYNC_MAX_BACKOFF_SECONDS"
	KeyBreakerThreshold      = "FLAGSYNC_BREAKER_THRESHOLD"
	KeyBreakerResetSeconds   = "FLAGSYNC_BREAKER_RESET_SECONDS"

	// Timeout configuration keys
	KeyTimeoutProbeSeconds  = "FLAGSYNC_TIMEOUT_PROBE_SECONDS"
	KeyTimeoutFetchSeconds  = "FLAGSYNC_TIMEOUT_FETCH_SECONDS"
	KeyTimeoutSubmitSeconds = "FLAGSYNC_TIMEOUT_SUBMIT_SECONDS"
)

// Default values for configuration
const (
	// Polling and flush defaults. MinFlushIntervalSeconds is a hard
	// floor: configured values below it are clamped with a warning.
	DefaultPollIntervalSeconds  = 60
	MinPollIntervalSeconds      = 15
	DefaultQueueCapacity        = 100
	DefaultFlushIntervalSeconds = 120
	MinFlushIntervalSeconds     = 60
	DefaultFlushAgeSeconds      = 300

	// Overflow store defaults
	DefaultOverflowPath     = "flagsync-overflow.bin"
	DefaultOverflowMaxItems = 500

	// Config cache defaults
	DefaultCachePath       = "flagsync-cache.bin"
	DefaultCacheTTLSeconds = 86400

	// Network defaults
	DefaultInitialBackoffSeconds = 1
	DefaultMaxBackoffSeconds     = 300
	DefaultBreakerThreshold      = 5
	DefaultBreakerResetSeconds   = 30

	// Timeout defaults
	DefaultTimeoutProbeSeconds  = 4
	DefaultTimeoutFetchSeconds  = 10
	DefaultTimeoutSubmitSeconds = 10
)

// CLI flag name constants
const (
	FlagClientKey             = "client-key"
	FlagBaseURL               = "base-url"
	FlagDimensionID           = "dimension-id"
	FlagUserID                = "user-id"
	FlagOffline               = "offline"
	FlagPollIntervalSeconds   = "poll-interval-seconds"
	FlagQueueCapacity         = "queue-capacity"
	FlagFlushIntervalSeconds  = "flush-interval-seconds"
	FlagFlushAgeSeconds       = "flush-age-seconds"
	FlagOverflowPath          = "overflow-path"
	FlagOverflowMaxItems      = "overflow-max-items"
	FlagCachePath             = "cache-path"
	FlagCacheTTLSeconds       = "cache-ttl-seconds"
	FlagInitialBackoffSeconds = "initial-backoff-seconds"
	FlagMaxBackoffSeconds     = "max-backoff-seconds"
	FlagBreakerThreshold      = "breaker-threshold"
	FlagBreakerResetSeconds   = "breaker-reset-seconds"
	FlagHelp                  = "help"
)

// Help message constants
const (
	AppName        = "flagsync"
	AppDescription = "Sync remote configuration and report usage telemetry"
	UsageFormat    = "flagsyncd [OPTIONS]"

	HelpClientKey             = "Client key for the remote service (required)"
	HelpBaseURL               = "Base URL of the remote service (required)"
	HelpDimensionID           = "Dimension id for SDK settings (required)"
	HelpUserID                = "User id reported with telemetry"
	HelpOffline               = "Start in offline mode"
	HelpPollIntervalSeconds   = "Config poll interval in seconds"
	HelpQueueCapacity         = "Telemetry queue capacity"
	HelpFlushIntervalSeconds  = "Telemetry flush interval in seconds"
	HelpFlushAgeSeconds       = "Flush when the oldest item exceeds this age"
	HelpOverflowPath          = "Path of the durable overflow file"
	HelpOverflowMaxItems      = "Maximum items kept in the overflow file"
	HelpCachePath             = "Path of the config cache file"
	HelpCacheTTLSeconds       = "Config cache TTL in seconds"
	HelpInitialBackoffSeconds = "Initial reconnect backoff in seconds"
	HelpMaxBackoffSeconds     = "Max reconnect backoff in seconds"
	HelpBreakerThreshold      = "Circuit breaker failure threshold"
	HelpBreakerResetSeconds   = "Circuit breaker reset timeout in seconds"
	HelpShowHelp              = "Show this help message"

	HelpOptions         = "Options:"
	HelpEnvironmentVars = "Environment Variables:"
	HelpUsage           = "Usage:"
	HelpNote            = "Note: CLI options override environment variables and the config file"
)
