package config

import (
	"fmt"
	"log"
)

type Config struct {
	ClientKey   string
	BaseURL     string
	DimensionID string
	UserID      string
	Offline     bool

	PollIntervalSeconds int
	Queue               QueueConfig
	Overflow            OverflowConfig
	Cache               CacheConfig
	Network             NetworkConfig
	Timeouts            TimeoutConfig
}

type QueueConfig struct {
	Capacity             int
	FlushIntervalSeconds int
	FlushAgeSeconds      int
}

type OverflowConfig struct {
	Path     string
	MaxItems int
}

type CacheConfig struct {
	Path           string
	TTLSeconds     int
	AllowStale     bool
	EvictOnRestart bool
	Persist        bool
}

type NetworkConfig struct {
	InitialBackoffSeconds int
	MaxBackoffSeconds     int
	BreakerThreshold      int
	BreakerResetSeconds   int
}

type TimeoutConfig struct {
	ProbeSeconds  int
	FetchSeconds  int
	SubmitSeconds int
}

// Load loads configuration from CLI flags, environment variables and an
// optional config file. Precedence: flags > env > file > defaults.
func Load() (*Config, error) {
	flagSource, showHelp := parseCLIFlags()

	if showHelp {
		printUsage()
		return nil, nil // Return nil to indicate help was shown
	}

	return Resolve(flagSource, &EnvSource{}, NewFileSource())
}

// Resolve builds a Config from the given sources in precedence order.
func Resolve(sources ...ConfigSource) (*Config, error) {
	resolver := NewConfigResolver(sources...)

	cfg := &Config{
		ClientKey:           resolver.ResolveString(KeyClientKey, ""),
		BaseURL:             resolver.ResolveString(KeyBaseURL, ""),
		DimensionID:         resolver.ResolveString(KeyDimensionID, ""),
		UserID:              resolver.ResolveString(KeyUserID, ""),
		Offline:             resolver.ResolveBool(KeyOffline, false),
		PollIntervalSeconds: resolver.ResolveInt(KeyPollIntervalSeconds, DefaultPollIntervalSeconds),
		Queue: QueueConfig{
			Capacity:             resolver.ResolveInt(KeyQueueCapacity, DefaultQueueCapacity),
			FlushIntervalSeconds: resolver.ResolveInt(KeyFlushIntervalSeconds, DefaultFlushIntervalSeconds),
			FlushAgeSeconds:      resolver.ResolveInt(KeyFlushAgeSeconds, DefaultFlushAgeSeconds),
		},
		Overflow: OverflowConfig{
			Path:     resolver.ResolveString(KeyOverflowPath, DefaultOverflowPath),
			MaxItems: resolver.ResolveInt(KeyOverflowMaxItems, DefaultOverflowMaxItems),
		},
		Cache: CacheConfig{
			Path:           resolver.ResolveString(KeyCachePath, DefaultCachePath),
			TTLSeconds:     resolver.ResolveInt(KeyCacheTTLSeconds, DefaultCacheTTLSeconds),
			AllowStale:     resolver.ResolveBool(KeyCacheAllowStale, true),
			EvictOnRestart: resolver.ResolveBool(KeyCacheEvictOnRestart, false),
			Persist:        resolver.ResolveBool(KeyCachePersist, true),
		},
		Network: NetworkConfig{
			InitialBackoffSeconds: resolver.ResolveInt(KeyInitialBackoffSeconds, DefaultInitialBackoffSeconds),
			MaxBackoffSeconds:     resolver.ResolveInt(KeyMaxBackoffSeconds, DefaultMaxBackoffSeconds),
			BreakerThreshold:      resolver.ResolveInt(KeyBreakerThreshold, DefaultBreakerThreshold),
			BreakerResetSeconds:   resolver.ResolveInt(KeyBreakerResetSeconds, DefaultBreakerResetSeconds),
		},
		Timeouts: TimeoutConfig{
			ProbeSeconds:  resolver.ResolveInt(KeyTimeoutProbeSeconds, DefaultTimeoutProbeSeconds),
			FetchSeconds:  resolver.ResolveInt(KeyTimeoutFetchSeconds, DefaultTimeoutFetchSeconds),
			SubmitSeconds: resolver.ResolveInt(KeyTimeoutSubmitSeconds, DefaultTimeoutSubmitSeconds),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ClientKey == "" {
		return fmt.Errorf("%s is required", KeyClientKey)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("%s is required", KeyBaseURL)
	}
	if c.DimensionID == "" {
		return fmt.Errorf("%s is required", KeyDimensionID)
	}
	if c.Queue.Capacity < 1 {
		return fmt.Errorf("%s must be at least 1", KeyQueueCapacity)
	}
	if c.Overflow.MaxItems < 1 {
		return fmt.Errorf("%s must be at least 1", KeyOverflowMaxItems)
	}

	// Clamp instead of reject: a too-aggressive flush interval would
	// hammer the service, but it should not stop the client from running.
	if c.Queue.FlushIntervalSeconds < MinFlushIntervalSeconds {
		log.Printf("warning: %s=%d below minimum, clamping to %d",
			KeyFlushIntervalSeconds, c.Queue.FlushIntervalSeconds, MinFlushIntervalSeconds)
		c.Queue.FlushIntervalSeconds = MinFlushIntervalSeconds
	}
	if c.PollIntervalSeconds < MinPollIntervalSeconds {
		log.Printf("warning: %s=%d below minimum, clamping to %d",
			KeyPollIntervalSeconds, c.PollIntervalSeconds, MinPollIntervalSeconds)
		c.PollIntervalSeconds = MinPollIntervalSeconds
	}

	if c.Network.InitialBackoffSeconds < 1 {
		c.Network.InitialBackoffSeconds = DefaultInitialBackoffSeconds
	}
	if c.Network.MaxBackoffSeconds < c.Network.InitialBackoffSeconds {
		c.Network.MaxBackoffSeconds = DefaultMaxBackoffSeconds
	}
	return nil
}
