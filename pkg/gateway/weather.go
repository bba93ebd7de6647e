package gateway

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/aicc6/weatherflick-batch/pkg/keyregistry"
)

// WeatherClient fetches forecast and observation data from the Korea
// Meteorological Administration (KMA) village-forecast API.
type WeatherClient struct {
	exec    *Executor
	baseURL string
}

// NewWeatherClient creates a client bound to the KMA base URL.
func NewWeatherClient(exec *Executor, baseURL string) *WeatherClient {
	return &WeatherClient{exec: exec, baseURL: baseURL}
}

// VillageForecast fetches the short-term forecast grid for a base
// date/time and a single nx/ny grid cell.
func (c *WeatherClient) VillageForecast(ctx context.Context, baseDate time.Time, baseTime string, nx, ny, pageNo, numOfRows int) (*Response, error) {
	q := url.Values{}
	q.Set("pageNo", strconv.Itoa(pageNo))
	q.Set("numOfRows", strconv.Itoa(numOfRows))
	q.Set("base_date", baseDate.Format("20060102"))
	q.Set("base_time", baseTime)
	q.Set("nx", strconv.Itoa(nx))
	q.Set("ny", strconv.Itoa(ny))

	return c.exec.Call(ctx, keyregistry.ProviderKMA, c.baseURL, "/getVilageFcst", q)
}

// UltraSrtNcst fetches the ultra-short-term current observation for a grid
// cell, used to populate weather_current.
func (c *WeatherClient) UltraSrtNcst(ctx context.Context, baseDate time.Time, baseTime string, nx, ny int) (*Response, error) {
	q := url.Values{}
	q.Set("pageNo", "1")
	q.Set("numOfRows", "100")
	q.Set("base_date", baseDate.Format("20060102"))
	q.Set("base_time", baseTime)
	q.Set("nx", strconv.Itoa(nx))
	q.Set("ny", strconv.Itoa(ny))

	return c.exec.Call(ctx, keyregistry.ProviderKMA, c.baseURL, "/getUltraSrtNcst", q)
}
