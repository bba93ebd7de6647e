// Package keyregistry tracks the pool of outbound provider API keys, their
// daily quota usage, and their cooldown/rotation state.
package keyregistry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Provider identifies which upstream API a key belongs to.
type Provider string

const (
	ProviderKTO Provider = "kto"
	ProviderKMA Provider = "kma"
)

// KeyStatus is the lifecycle state of a single API key.
type KeyStatus string

const (
	KeyStatusActive     KeyStatus = "active"
	KeyStatusExhausted  KeyStatus = "exhausted"
	KeyStatusCoolingDown KeyStatus = "cooling_down"
	KeyStatusDisabled   KeyStatus = "disabled"
)

// Key is a single registered provider API key and its current quota state.
type Key struct {
	ID                uuid.UUID
	Provider          Provider
	Secret            string
	DailyQuota        int
	UsedToday         int
	Status            KeyStatus
	CooldownUntil     *time.Time
	LastUsedAt        *time.Time
	QuotaResetAt      time.Time
	ConsecutiveErrors int
	TotalCalls        int
	TotalSuccesses    int
}

// Remaining returns the number of calls left in the key's current day.
func (k *Key) Remaining() int {
	r := k.DailyQuota - k.UsedToday
	if r < 0 {
		return 0
	}
	return r
}

// Usable reports whether the key can currently be handed out.
func (k *Key) Usable(now time.Time) bool {
	switch k.Status {
	case KeyStatusDisabled, KeyStatusExhausted:
		return false
	case KeyStatusCoolingDown:
		return k.CooldownUntil == nil || !now.Before(*k.CooldownUntil)
	default:
		return k.Remaining() > 0
	}
}

// Prober attempts a cheap, read-only call against a provider using one
// specific key's secret, outside the normal rotation. The registry uses
// it to decide whether a disabled key whose cooldown has elapsed is safe
// to return to rotation.
type Prober interface {
	Probe(ctx context.Context, provider Provider, secret string) error
}

// Lease is a handed-out key plus the bookkeeping needed to record the
// outcome of the call it was acquired for.
type Lease struct {
	Key       *Key
	AcquiredAt time.Time
}

// Outcome describes how a call made with a leased key resolved, so the
// registry can update quota, cooldown, and status bookkeeping.
type Outcome struct {
	Success        bool
	QuotaExhausted bool
	RateLimited    bool
	AuthFailed     bool
	TransientError bool
	RetryAfter     time.Duration
}
