package transform

import (
	"encoding/json"
	"testing"
)

func rawTourismItem(t *testing.T, contentID, contentType, title, addr1, addr2, mapX, mapY string) json.RawMessage {
	t.Helper()
	item := rawItem{
		ContentID:   contentID,
		ContentType: contentType,
		Title:       title,
		Addr1:       addr1,
		Addr2:       addr2,
		MapX:        mapX,
		MapY:        mapY,
	}
	raw, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("marshaling fixture: %v", err)
	}
	return raw
}

func TestMapTourismItem_ValidRow(t *testing.T) {
	raw := rawTourismItem(t, "123", "12", "  Gyeongbokgung &amp; Palace  ", "Jongno-gu", "Seoul", "126.9770", "37.5796")

	row, err := MapTourismItem(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Table != "tourist_attractions" {
		t.Fatalf("table = %q, want tourist_attractions", row.Table)
	}
	if row.Fields["name"] != "Gyeongbokgung & Palace" {
		t.Fatalf("name = %q", row.Fields["name"])
	}
	if row.Fields["address"] != "Jongno-gu Seoul" {
		t.Fatalf("address = %q", row.Fields["address"])
	}
	if lat := row.Fields["latitude"]; lat != 37.5796 {
		t.Fatalf("latitude = %v", lat)
	}
	if len(row.Issues) != 0 {
		t.Fatalf("unexpected issues: %v", row.Issues)
	}
	if row.QualityScore != 1.0 {
		t.Fatalf("quality score = %v, want 1.0", row.QualityScore)
	}
}

func TestMapTourismItem_ModifiedTimePassesThroughWhenPresent(t *testing.T) {
	item := rawItem{ContentID: "123", ContentType: "12", Title: "A", Addr1: "X", ModifiedTime: "20260115093000"}
	raw, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("marshaling fixture: %v", err)
	}

	row, err := MapTourismItem(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Fields["modified_time"] != "20260115093000" {
		t.Fatalf("modified_time = %v, want 20260115093000", row.Fields["modified_time"])
	}
}

func TestMapTourismItem_ModifiedTimeOmittedWhenBlank(t *testing.T) {
	raw := rawTourismItem(t, "123", "12", "A", "X", "", "", "")

	row, err := MapTourismItem(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := row.Fields["modified_time"]; ok {
		t.Fatalf("expected modified_time to be absent when the raw item has none")
	}
}

func TestMapTourismItem_CoordinatesOutsideKoreaAreDropped(t *testing.T) {
	raw := rawTourismItem(t, "123", "12", "Somewhere", "Addr", "", "0", "0")

	row, err := MapTourismItem(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := row.Fields["latitude"]; ok {
		t.Fatalf("expected latitude to be dropped for out-of-range coordinates")
	}
	if len(row.Issues) == 0 {
		t.Fatalf("expected an issue for missing coordinates")
	}
}

func TestMapTourismItem_MissingContentID(t *testing.T) {
	raw := rawTourismItem(t, "", "12", "Title", "Addr", "", "", "")

	_, err := MapTourismItem(raw)
	if err == nil {
		t.Fatalf("expected a shape error for missing contentid")
	}
	if _, ok := err.(*ShapeError); !ok {
		t.Fatalf("error = %T, want *ShapeError", err)
	}
}

func TestMapTourismItem_UnknownContentType(t *testing.T) {
	raw := rawTourismItem(t, "1", "99", "Title", "Addr", "", "", "")

	_, err := MapTourismItem(raw)
	if err == nil {
		t.Fatalf("expected a shape error for unknown content type")
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := []struct{ addr1, addr2, want string }{
		{"Seoul", "Jongno-gu", "Seoul Jongno-gu"},
		{"Seoul", "", "Seoul"},
		{"", "Jongno-gu", "Jongno-gu"},
		{"", "", ""},
	}
	for _, c := range cases {
		if got := normalizeAddress(c.addr1, c.addr2); got != c.want {
			t.Errorf("normalizeAddress(%q, %q) = %q, want %q", c.addr1, c.addr2, got, c.want)
		}
	}
}
