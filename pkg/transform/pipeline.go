package transform

import (
	"encoding/json"
	"log/slog"

	"github.com/aicc6/weatherflick-batch/pkg/gateway"
)

// Result summarizes one chunk's transform outcome: the rows that passed
// the shape check, and the raw items that failed it along with why.
type Result struct {
	Rows     []*Row
	Rejected []*ShapeError
}

// Pipeline runs the stateless shape-check/normalize/map/score sequence
// over a provider's response, lazily chunking the item list so a large
// page never holds more than chunkSize mapped rows in memory at once.
type Pipeline struct {
	chunkSize int
	logger    *slog.Logger
}

// New creates a Pipeline that yields chunks of at most chunkSize rows.
func New(chunkSize int, logger *slog.Logger) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &Pipeline{chunkSize: chunkSize, logger: logger}
}

// TourismChunks lazily maps a tourism response's items, yielding fn once
// per chunk of at most chunkSize rows. fn's error aborts iteration.
func (p *Pipeline) TourismChunks(items []json.RawMessage, fn func(Result) error) error {
	chunk := Result{Rows: make([]*Row, 0, p.chunkSize)}

	flush := func() error {
		if len(chunk.Rows) == 0 && len(chunk.Rejected) == 0 {
			return nil
		}
		err := fn(chunk)
		chunk = Result{Rows: make([]*Row, 0, p.chunkSize)}
		return err
	}

	for _, raw := range items {
		row, err := MapTourismItem(raw)
		if err != nil {
			if se, ok := err.(*ShapeError); ok {
				chunk.Rejected = append(chunk.Rejected, se)
				p.logger.Debug("rejected tourism item", "reason", se.Reason)
			}
			continue
		}
		chunk.Rows = append(chunk.Rows, row)
		if len(chunk.Rows) >= p.chunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// WeatherChunks maps a weather forecast response (which must be folded as
// a whole page, since one forecast slot spans several raw items) and
// yields it in chunks of at most chunkSize rows.
func (p *Pipeline) WeatherChunks(items []json.RawMessage, fn func(Result) error) error {
	rows, err := MapWeatherForecastItems(items)
	if err != nil {
		return err
	}

	for start := 0; start < len(rows); start += p.chunkSize {
		end := start + p.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := fn(Result{Rows: rows[start:end]}); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return fn(Result{})
	}
	return nil
}

// FromGatewayResponse adapts a gateway.Response's Items into the raw JSON
// slice the chunkers expect, so callers don't need to know about the
// gateway package's duck-typed sum type.
func FromGatewayResponse(resp *gateway.Response) []json.RawMessage {
	return resp.Items.All()
}
