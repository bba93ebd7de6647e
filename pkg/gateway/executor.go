package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aicc6/weatherflick-batch/pkg/archive"
	"github.com/aicc6/weatherflick-batch/pkg/governor"
	"github.com/aicc6/weatherflick-batch/pkg/keyregistry"
)

// envelope is the common shape of both provider's response JSON: a
// header carrying the result code and a body carrying the item list.
type envelope struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items      Items `json:"items"`
			TotalCount int   `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
}

// Executor runs the single outbound call lifecycle described for the
// gateway: acquire a governor slot, acquire a key, build and execute the
// request, classify the outcome, record it against the key, archive the
// raw response, then hand back a structured Response or Error.
type Executor struct {
	httpClient *http.Client
	governor   *governor.Governor
	keys       *keyregistry.Registry
	archiver   *archive.Writer
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given request timeout.
func NewExecutor(timeout time.Duration, g *governor.Governor, keys *keyregistry.Registry, archiver *archive.Writer, logger *slog.Logger) *Executor {
	return &Executor{
		httpClient: &http.Client{Timeout: timeout},
		governor:   g,
		keys:       keys,
		archiver:   archiver,
		logger:     logger,
	}
}

// Call performs one outbound call to baseURL+path with the given query
// parameters. serviceKey is injected as the provider's service key query
// parameter. provider identifies both the governor/key-registry bucket and
// the archive's provider column.
func (e *Executor) Call(ctx context.Context, provider keyregistry.Provider, baseURL, path string, query url.Values) (*Response, error) {
	slot, err := e.governor.Acquire(ctx, string(provider))
	if err != nil {
		return nil, fmt.Errorf("acquiring governor slot: %w", err)
	}
	defer slot.Release()

	lease, err := e.keys.Acquire(provider)
	if err != nil {
		return nil, fmt.Errorf("acquiring key: %w", err)
	}

	query.Set("serviceKey", lease.Key.Secret)
	query.Set("_type", "json")
	reqURL := baseURL + path + "?" + query.Encode()

	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, httpErr := e.httpClient.Do(req)
	duration := time.Since(started)

	result, classifyErr := e.handleResponse(ctx, provider, resp, httpErr, duration)

	outcome := keyregistry.Outcome{}
	var gerr *Error
	switch {
	case httpErr != nil:
		outcome.TransientError = true
	case errors.As(classifyErr, &gerr):
		switch gerr.Outcome {
		case OutcomeQuotaExhausted:
			outcome.QuotaExhausted = true
		case OutcomeRateLimited:
			outcome.RateLimited = true
			outcome.RetryAfter = gerr.RetryAfter
		case OutcomeAuthError:
			outcome.AuthFailed = true
		case OutcomeTransient, OutcomeTimeout:
			outcome.TransientError = true
		}
	case classifyErr == nil:
		outcome.Success = true
	}

	if recErr := e.keys.Record(ctx, lease, outcome); recErr != nil {
		e.logger.Error("recording key outcome", "provider", provider, "error", recErr)
	}

	switch {
	case outcome.RateLimited, outcome.AuthFailed:
		e.governor.Backoff(string(provider))
	case outcome.Success:
		e.governor.Recover(string(provider))
	}

	if classifyErr != nil {
		return nil, classifyErr
	}
	return result, nil
}

func (e *Executor) handleResponse(ctx context.Context, provider keyregistry.Provider, resp *http.Response, httpErr error, duration time.Duration) (*Response, error) {
	if httpErr != nil {
		return nil, &Error{Provider: string(provider), Outcome: OutcomeTimeout, Message: httpErr.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, &Error{Provider: string(provider), Outcome: OutcomeTransient, Message: "reading response body: " + readErr.Error()}
	}

	if e.archiver != nil {
		e.archiver.Write(ctx, archive.Record{
			Provider:   string(provider),
			StatusCode: resp.StatusCode,
			Body:       body,
			CalledAt:   time.Now(),
		})
	}

	var env envelope
	_ = json.Unmarshal(body, &env) // a malformed body still classifies on status code alone

	outcome := classify(resp.StatusCode, env.Response.Header.ResultCode, resp.Header.Get("Retry-After"))
	if outcome != OutcomeSuccess {
		return nil, &Error{
			Provider:   string(provider),
			Outcome:    outcome,
			StatusCode: resp.StatusCode,
			Message:    env.Response.Header.ResultMsg,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return &Response{
		Provider:   string(provider),
		Outcome:    OutcomeSuccess,
		StatusCode: resp.StatusCode,
		Items:      env.Response.Body.Items,
		TotalCount: env.Response.Body.TotalCount,
		RawBody:    body,
		CalledAt:   time.Now(),
		Duration:   duration,
	}, nil
}
