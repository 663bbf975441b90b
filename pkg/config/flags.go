package config

import (
	"flag"
	"fmt"
)

// parseCLIFlags parses command-line flags and returns a FlagSource and help flag
func parseCLIFlags() (*FlagSource, bool) {
	flagSource := NewFlagSource()

	clientKey := flag.String(FlagClientKey, "", HelpClientKey)
	baseURL := flag.String(FlagBaseURL, "", HelpBaseURL)
	dimensionID := flag.String(FlagDimensionID, "", HelpDimensionID)
	userID := flag.String(FlagUserID, "", HelpUserID)
	offline := flag.Bool(FlagOffline, false, HelpOffline)
	pollIntervalSeconds := flag.Int(FlagPollIntervalSeconds, 0, HelpPollIntervalSeconds)
	queueCapacity := flag.Int(FlagQueueCapacity, 0, HelpQueueCapacity)
	flushIntervalSeconds := flag.Int(FlagFlushIntervalSeconds, 0, HelpFlushIntervalSeconds)
	flushAgeSeconds := flag.Int(FlagFlushAgeSeconds, 0, HelpFlushAgeSeconds)
	overflowPath := flag.String(FlagOverflowPath, "", HelpOverflowPath)
	overflowMaxItems := flag.Int(FlagOverflowMaxItems, 0, HelpOverflowMaxItems)
	cachePath := flag.String(FlagCachePath, "", HelpCachePath)
	cacheTTLSeconds := flag.Int(FlagCacheTTLSeconds, 0, HelpCacheTTLSeconds)
	initialBackoffSeconds := flag.Int(FlagInitialBackoffSeconds, 0, HelpInitialBackoffSeconds)
	maxBackoffSeconds := flag.Int(FlagMaxBackoffSeconds, 0, HelpMaxBackoffSeconds)
	breakerThreshold := flag.Int(FlagBreakerThreshold, 0, HelpBreakerThreshold)
	breakerResetSeconds := flag.Int(FlagBreakerResetSeconds, 0, HelpBreakerResetSeconds)
	help := flag.Bool(FlagHelp, false, HelpShowHelp)

	flag.Parse()

	if *help {
		return flagSource, true
	}

	// Store non-zero/non-empty values in flag source
	if *clientKey != "" {
		flagSource.Set(KeyClientKey, *clientKey)
	}
	if *baseURL != "" {
		flagSource.Set(KeyBaseURL, *baseURL)
	}
	if *dimensionID != "" {
		flagSource.Set(KeyDimensionID, *dimensionID)
	}
	if *userID != "" {
		flagSource.Set(KeyUserID, *userID)
	}
	if *offline {
		flagSource.Set(KeyOffline, *offline)
	}
	if *pollIntervalSeconds != 0 {
		flagSource.Set(KeyPollIntervalSeconds, *pollIntervalSeconds)
	}
	if *queueCapacity != 0 {
		flagSource.Set(KeyQueueCapacity, *queueCapacity)
	}
	if *flushIntervalSeconds != 0 {
		flagSource.Set(KeyFlushIntervalSeconds, *flushIntervalSeconds)
	}
	if *flushAgeSeconds != 0 {
		flagSource.Set(KeyFlushAgeSeconds, *flushAgeSeconds)
	}
	if *overflowPath != "" {
		flagSource.Set(KeyOverflowPath, *overflowPath)
	}
	if *overflowMaxItems != 0 {
		flagSource.Set(KeyOverflowMaxItems, *overflowMaxItems)
	}
	if *cachePath != "" {
		flagSource.Set(KeyCachePath, *cachePath)
	}
	if *cacheTTLSeconds != 0 {
		flagSource.Set(KeyCacheTTLSeconds, *cacheTTLSeconds)
	}
	if *initialBackoffSeconds != 0 {
		flagSource.Set(KeyInitialBackoffSeconds, *initialBackoffSeconds)
	}
	if *maxBackoffSeconds != 0 {
		flagSource.Set(KeyMaxBackoffSeconds, *maxBackoffSeconds)
	}
	if *breakerThreshold != 0 {
		flagSource.Set(KeyBreakerThreshold, *breakerThreshold)
	}
	if *breakerResetSeconds != 0 {
		flagSource.Set(KeyBreakerResetSeconds, *breakerResetSeconds)
	}

	return flagSource, false
}

// printUsage prints the usage message
func printUsage() {
	fmt.Printf("%s - %s\n", AppName, AppDescription)
	fmt.Println()
	fmt.Printf("%s\n", HelpUsage)
	fmt.Printf("  %s\n", UsageFormat)
	fmt.Println()
	fmt.Printf("%s\n", HelpOptions)
	fmt.Printf("  --%s string             %s\n", FlagClientKey, HelpClientKey)
	fmt.Printf("  --%s string               %s\n", FlagBaseURL, HelpBaseURL)
	fmt.Printf("  --%s string           %s\n", FlagDimensionID, HelpDimensionID)
	fmt.Printf("  --%s string                %s\n", FlagUserID, HelpUserID)
	fmt.Printf("  --%s                       %s\n", FlagOffline, HelpOffline)
	fmt.Printf("  --%s int    %s (default: %d)\n", FlagPollIntervalSeconds, HelpPollIntervalSeconds, DefaultPollIntervalSeconds)
	fmt.Printf("  --%s int          %s (default: %d)\n", FlagQueueCapacity, HelpQueueCapacity, DefaultQueueCapacity)
	fmt.Printf("  --%s int   %s (default: %d, minimum: %d)\n", FlagFlushIntervalSeconds, HelpFlushIntervalSeconds, DefaultFlushIntervalSeconds, MinFlushIntervalSeconds)
	fmt.Printf("  --%s int        %s (default: %d)\n", FlagFlushAgeSeconds, HelpFlushAgeSeconds, DefaultFlushAgeSeconds)
	fmt.Printf("  --%s string           %s (default: %s)\n", FlagOverflowPath, HelpOverflowPath, DefaultOverflowPath)
	fmt.Printf("  --%s int       %s (default: %d)\n", FlagOverflowMaxItems, HelpOverflowMaxItems, DefaultOverflowMaxItems)
	fmt.Printf("  --%s string              %s (default: %s)\n", FlagCachePath, HelpCachePath, DefaultCachePath)
	fmt.Printf("  --%s int        %s (default: %d)\n", FlagCacheTTLSeconds, HelpCacheTTLSeconds, DefaultCacheTTLSeconds)
	fmt.Printf("  --%s int  %s (default: %d)\n", FlagInitialBackoffSeconds, HelpInitialBackoffSeconds, DefaultInitialBackoffSeconds)
	fmt.Printf("  --%s int      %s (default: %d)\n", FlagMaxBackoffSeconds, HelpMaxBackoffSeconds, DefaultMaxBackoffSeconds)
	fmt.Printf("  --%s int       %s (default: %d)\n", FlagBreakerThreshold, HelpBreakerThreshold, DefaultBreakerThreshold)
	fmt.Printf("  --%s int   %s (default: %d)\n", FlagBreakerResetSeconds, HelpBreakerResetSeconds, DefaultBreakerResetSeconds)
	fmt.Printf("  --%s                          %s\n", FlagHelp, HelpShowHelp)
	fmt.Println()
	fmt.Printf("%s\n", HelpEnvironmentVars)
	fmt.Printf("  %-36s %s\n", KeyClientKey, HelpClientKey)
	fmt.Printf("  %-36s %s\n", KeyBaseURL, HelpBaseURL)
	fmt.Printf("  %-36s %s\n", KeyDimensionID, HelpDimensionID)
	fmt.Printf("  %-36s %s\n", KeyUserID, HelpUserID)
	fmt.Printf("  %-36s %s\n", KeyOffline, HelpOffline)
	fmt.Printf("  %-36s %s\n", KeyPollIntervalSeconds, HelpPollIntervalSeconds)
	fmt.Printf("  %-36s %s\n", KeyQueueCapacity, HelpQueueCapacity)
	fmt.Printf("  %-36s %s\n", KeyFlushIntervalSeconds, HelpFlushIntervalSeconds)
	fmt.Printf("  %-36s %s\n", KeyFlushAgeSeconds, HelpFlushAgeSeconds)
	fmt.Printf("  %-36s %s\n", KeyOverflowPath, HelpOverflowPath)
	fmt.Printf("  %-36s %s\n", KeyOverflowMaxItems, HelpOverflowMaxItems)
	fmt.Printf("  %-36s %s\n", KeyCachePath, HelpCachePath)
	fmt.Printf("  %-36s %s\n", KeyCacheTTLSeconds, HelpCacheTTLSeconds)
	fmt.Printf("  %-36s %s\n", KeyInitialBackoffSeconds, HelpInitialBackoffSeconds)
	fmt.Printf("  %-36s %s\n", KeyMaxBackoffSeconds, HelpMaxBackoffSeconds)
	fmt.Printf("  %-36s %s\n", KeyBreakerThreshold, HelpBreakerThreshold)
	fmt.Printf("  %-36s %s\n", KeyBreakerResetSeconds, HelpBreakerResetSeconds)
	fmt.Println()
	fmt.Printf("%s\n", HelpNote)
}
