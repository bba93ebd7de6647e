package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aicc6/weatherflick-batch/pkg/keyregistry"
)

// Prober issues a single minimal read directly against a provider using
// one specific key's secret, bypassing the key registry and concurrency
// governor entirely. It exists only to answer "does this disabled key
// work now" for the registry's reactivation pass, so it never touches
// quota accounting or the raw archive.
type Prober struct {
	httpClient *http.Client
	ktoBaseURL string
	kmaBaseURL string
}

// NewProber creates a Prober with the given per-request timeout.
func NewProber(timeout time.Duration, ktoBaseURL, kmaBaseURL string) *Prober {
	return &Prober{
		httpClient: &http.Client{Timeout: timeout},
		ktoBaseURL: ktoBaseURL,
		kmaBaseURL: kmaBaseURL,
	}
}

// Probe performs one cheap read against provider using secret directly
// and returns nil only if the provider classifies the response as a
// success.
func (p *Prober) Probe(ctx context.Context, provider keyregistry.Provider, secret string) error {
	reqURL, err := p.probeURL(provider, secret)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading probe response: %w", err)
	}

	var env envelope
	_ = json.Unmarshal(body, &env)
	outcome := classify(resp.StatusCode, env.Response.Header.ResultCode, resp.Header.Get("Retry-After"))
	if outcome != OutcomeSuccess {
		return fmt.Errorf("probe for %s classified as %s", provider, outcome)
	}
	return nil
}

func (p *Prober) probeURL(provider keyregistry.Provider, secret string) (string, error) {
	switch provider {
	case keyregistry.ProviderKTO:
		q := url.Values{}
		q.Set("contentTypeId", string(ContentTourist))
		q.Set("pageNo", "1")
		q.Set("numOfRows", "1")
		q.Set("MobileOS", "ETC")
		q.Set("MobileApp", "weatherflick-batch")
		q.Set("serviceKey", secret)
		q.Set("_type", "json")
		return p.ktoBaseURL + "/areaBasedList2?" + q.Encode(), nil
	case keyregistry.ProviderKMA:
		now := time.Now()
		q := url.Values{}
		q.Set("pageNo", "1")
		q.Set("numOfRows", "1")
		q.Set("base_date", now.Format("20060102"))
		q.Set("base_time", "0500")
		q.Set("nx", "60")
		q.Set("ny", "127")
		q.Set("serviceKey", secret)
		q.Set("_type", "json")
		return p.kmaBaseURL + "/getVilageFcst?" + q.Encode(), nil
	default:
		return "", fmt.Errorf("probing unknown provider %s", provider)
	}
}
