package keyregistry

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func registryWithKeys(keys ...*Key) *Registry {
	r := &Registry{keys: make(map[Provider][]*Key)}
	for _, k := range keys {
		r.keys[k.Provider] = append(r.keys[k.Provider], k)
	}
	return r
}

func TestRegistry_AcquirePicksMostRemainingQuota(t *testing.T) {
	low := &Key{ID: uuid.New(), Provider: ProviderKTO, Status: KeyStatusActive, DailyQuota: 100, UsedToday: 90}
	high := &Key{ID: uuid.New(), Provider: ProviderKTO, Status: KeyStatusActive, DailyQuota: 100, UsedToday: 10}
	r := registryWithKeys(low, high)

	lease, err := r.Acquire(ProviderKTO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lease.Key.ID != high.ID {
		t.Fatalf("acquired key %s, want the key with more remaining quota (%s)", lease.Key.ID, high.ID)
	}
}

func TestRegistry_AcquireSkipsUnusableKeys(t *testing.T) {
	exhausted := &Key{ID: uuid.New(), Provider: ProviderKTO, Status: KeyStatusExhausted, DailyQuota: 100}
	cooling := &Key{ID: uuid.New(), Provider: ProviderKTO, Status: KeyStatusCoolingDown, CooldownUntil: timePtr(time.Now().Add(time.Hour)), DailyQuota: 100}
	usable := &Key{ID: uuid.New(), Provider: ProviderKTO, Status: KeyStatusActive, DailyQuota: 100, UsedToday: 50}
	r := registryWithKeys(exhausted, cooling, usable)

	lease, err := r.Acquire(ProviderKTO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lease.Key.ID != usable.ID {
		t.Fatalf("acquired key %s, want the only usable key %s", lease.Key.ID, usable.ID)
	}
}

func TestRegistry_AcquireReturnsErrNoKeyAvailable(t *testing.T) {
	exhausted := &Key{ID: uuid.New(), Provider: ProviderKTO, Status: KeyStatusExhausted, DailyQuota: 100}
	r := registryWithKeys(exhausted)

	if _, err := r.Acquire(ProviderKTO); err == nil {
		t.Fatalf("expected ErrNoKeyAvailable")
	}
}

func TestRegistry_AcquireUnknownProvider(t *testing.T) {
	r := registryWithKeys()
	if _, err := r.Acquire(ProviderKMA); err == nil {
		t.Fatalf("expected an error for a provider with no registered keys")
	}
}

func TestRegistry_AcquireReservesQuotaSoASecondAcquireSeesLessRemaining(t *testing.T) {
	k := &Key{ID: uuid.New(), Provider: ProviderKTO, Status: KeyStatusActive, DailyQuota: 1, UsedToday: 0}
	r := registryWithKeys(k)

	lease, err := r.Acquire(ProviderKTO)
	if err != nil {
		t.Fatalf("unexpected error on first acquire: %v", err)
	}
	if lease.Key.Remaining() != 0 {
		t.Fatalf("remaining after acquiring the only unit = %d, want 0", lease.Key.Remaining())
	}

	if _, err := r.Acquire(ProviderKTO); err == nil {
		t.Fatalf("expected a second concurrent acquire against the same key to see no remaining quota")
	}
}
