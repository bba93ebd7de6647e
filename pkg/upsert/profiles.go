package upsert

import "time"

// Profile is a named tuning preset controlling chunk size, retry behavior,
// the memory guard threshold, and the concurrency/conflict strategy for the
// bulk upsert engine.
type Profile struct {
	Name           string
	ChunkSize      int
	MaxRetries     uint
	RetryDelay     time.Duration
	MemoryGuardMB  int
	ParallelDegree int  // number of chunks executed concurrently; 1 runs sequentially
	UpsertEnabled  bool // false uses a plain INSERT, for append-only or pre-deduplicated loads
}

// Named profiles, chosen by OptimizationLevel in configuration.
var (
	Conservative = Profile{
		Name:           "conservative",
		ChunkSize:      200,
		MaxRetries:     5,
		RetryDelay:     500 * time.Millisecond,
		MemoryGuardMB:  256,
		ParallelDegree: 1,
		UpsertEnabled:  true,
	}
	Balanced = Profile{
		Name:           "balanced",
		ChunkSize:      1000,
		MaxRetries:     3,
		RetryDelay:     250 * time.Millisecond,
		MemoryGuardMB:  512,
		ParallelDegree: 2,
		UpsertEnabled:  true,
	}
	Aggressive = Profile{
		Name:           "aggressive",
		ChunkSize:      5000,
		MaxRetries:     2,
		RetryDelay:     100 * time.Millisecond,
		MemoryGuardMB:  1024,
		ParallelDegree: 4,
		UpsertEnabled:  true,
	}
	MemoryConstrained = Profile{
		Name:           "memory_constrained",
		ChunkSize:      100,
		MaxRetries:     5,
		RetryDelay:     1 * time.Second,
		MemoryGuardMB:  128,
		ParallelDegree: 1,
		UpsertEnabled:  true,
	}
)

// ProfileByName resolves a configuration string to a Profile, defaulting
// to Balanced for an unrecognized name rather than failing a job outright.
func ProfileByName(name string) Profile {
	switch name {
	case "conservative":
		return Conservative
	case "aggressive":
		return Aggressive
	case "memory_constrained":
		return MemoryConstrained
	default:
		return Balanced
	}
}
