package transform

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipeline_TourismChunksRespectsChunkSize(t *testing.T) {
	items := make([]json.RawMessage, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, rawTourismItem(t, "content-1", "12", "Name", "Addr", "", "127", "37.5"))
	}

	p := New(2, discardLogger())
	var chunkSizes []int
	err := p.TourismChunks(items, func(r Result) error {
		chunkSizes = append(chunkSizes, len(r.Rows))
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := chunkSizes, []int{2, 2, 1}; !equalInts(got, want) {
		t.Fatalf("chunk sizes = %v, want %v", got, want)
	}
}

func TestPipeline_TourismChunksCollectsRejects(t *testing.T) {
	items := []json.RawMessage{
		rawTourismItem(t, "", "12", "Name", "Addr", "", "", ""),
		rawTourismItem(t, "content-1", "12", "Name", "Addr", "", "", ""),
	}

	p := New(10, discardLogger())
	var result Result
	err := p.TourismChunks(items, func(r Result) error {
		result = r
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
	if len(result.Rejected) != 1 {
		t.Fatalf("rejected = %d, want 1", len(result.Rejected))
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
