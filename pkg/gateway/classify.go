package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

// classify maps a raw HTTP status code and the provider's own result code
// (KTO/KMA both embed a numeric resultCode in the response body alongside
// the transport-level status) to an Outcome.
func classify(statusCode int, resultCode string, retryAfterHeader string) Outcome {
	switch statusCode {
	case http.StatusOK:
		// fall through to result-code inspection below
	case http.StatusTooManyRequests:
		return OutcomeRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return OutcomeAuthError
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return OutcomeTimeout
	default:
		if statusCode >= 500 {
			return OutcomeTransient
		}
		if statusCode >= 400 {
			return OutcomeValidation
		}
	}

	switch resultCode {
	case "", "0000", "00":
		return OutcomeSuccess
	case "22", "LIMITED_NUMBER_OF_SERVICE_REQUESTS_EXCEEDS_ERROR":
		return OutcomeQuotaExhausted
	case "30", "SERVICE_KEY_IS_NOT_REGISTERED_ERROR":
		return OutcomeAuthError
	case "20", "SERVICE_ACCESS_DENIED_ERROR":
		return OutcomeAuthError
	case "04", "HTTP_ERROR":
		return OutcomeTransient
	default:
		return OutcomeValidation
	}
}

// retryAfter parses a Retry-After header value, falling back to zero if it
// is absent or malformed (the governor's adaptive delay covers that case).
func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// ErrNoItems indicates a call succeeded at the transport level but the
// provider returned zero items, which callers may treat as a soft failure
// depending on the job's tolerance for empty pages.
var ErrNoItems = errors.New("gateway: provider returned no items")
