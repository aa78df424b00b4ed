package config

// Default configuration values.
const (
	// DefaultCheckSizeFraction is the share of capacity a quick check tests.
	// Zero in the config file means "use the capacity-based recommendation".
	DefaultCheckSizeFraction = 0.10

	// DefaultSweepIntervalDays is the days between full sweeps.
	DefaultSweepIntervalDays = 14

	// DefaultSafetyMargin is the free space never written by a check.
	DefaultSafetyMargin = "100MiB"

	// DefaultChunkSize is the read/write unit for hashing and test data.
	DefaultChunkSize = "64MiB"

	// DefaultMaxBatchSize bounds a single test file.
	DefaultMaxBatchSize = "2GiB"

	// DefaultJournalRetentionDays is how long run history is kept.
	DefaultJournalRetentionDays = 90

	// DefaultWatchDebounce delays a watch-triggered check after a mount
	// appears so the automounter can finish.
	DefaultWatchDebounce = "3s"
)
