// Package gateway executes outbound calls to the tourism (KTO) and weather
// (KMA) provider APIs through the shared governor and key registry, and
// classifies every outcome into the batch engine's error taxonomy.
package gateway

import (
	"encoding/json"
	"time"
)

// Outcome is the high-level classification of a completed call, used by the
// key registry to update quota/cooldown state and by the job runtime to
// decide whether to retry.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeQuotaExhausted Outcome = "quota_exhausted"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeAuthError      Outcome = "auth_error"
	OutcomeTransient      Outcome = "transient"
	OutcomeValidation     Outcome = "validation"
	OutcomeTimeout        Outcome = "timeout"
)

// Items is a duck-typed sum type over a provider response body's item list,
// since some endpoints return a single object where others return an array
// for the same field when there is exactly one result.
type Items struct {
	one   json.RawMessage
	many  []json.RawMessage
}

// UnmarshalJSON accepts either a single object or an array of objects.
func (it *Items) UnmarshalJSON(data []byte) error {
	trimmed := trimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		var many []json.RawMessage
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		it.many = many
		return nil
	}
	it.one = json.RawMessage(data)
	return nil
}

// All returns every item as a slice, regardless of whether the wire format
// held one object or many.
func (it Items) All() []json.RawMessage {
	if it.many != nil {
		return it.many
	}
	if len(it.one) > 0 {
		return []json.RawMessage{it.one}
	}
	return nil
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Response is the structured result of a single outbound call.
type Response struct {
	Provider   string
	Outcome    Outcome
	StatusCode int
	Items      Items
	TotalCount int
	RawBody    []byte
	CalledAt   time.Time
	Duration   time.Duration
}

// Error wraps a failed call with enough context for the error taxonomy and
// for alerting.
type Error struct {
	Provider   string
	Outcome    Outcome
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return e.Provider + ": " + string(e.Outcome) + ": " + e.Message
}
