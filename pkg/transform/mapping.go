package transform

import (
	"encoding/json"
	"strconv"
	"strings"
)

// rawItem is the subset of a KTO areaBasedList2 item this pipeline reads.
// Every field is a string on the wire regardless of its logical type,
// which is typical of the provider's JSON rendering of its XML schema.
type rawItem struct {
	ContentID    string `json:"contentid"`
	ContentType  string `json:"contenttypeid"`
	Title        string `json:"title"`
	Addr1        string `json:"addr1"`
	Addr2        string `json:"addr2"`
	MapX         string `json:"mapx"`
	MapY         string `json:"mapy"`
	Tel          string `json:"tel"`
	FirstImage   string `json:"firstimage"`
	ModifiedTime string `json:"modifiedtime"`
}

// tableByContentType maps a KTO content type ID to its destination table.
var tableByContentType = map[string]string{
	"12": "tourist_attractions",
	"14": "cultural_facilities",
	"15": "festivals_events",
	"25": "travel_courses",
	"28": "leisure_sports",
	"32": "accommodations",
	"38": "shopping",
	"39": "restaurants",
}

// MapTourismItem validates and maps a single raw KTO item into a Row.
// Shape check: contentid and contenttypeid must be present and the content
// type must be one this pipeline knows how to route. Coordinates, when
// present, must fall within Korea's bounding box — a point mapX/mapY
// outside of it is treated as a missing coordinate rather than a fatal
// error, since many historical rows carry bad geocoding.
func MapTourismItem(raw json.RawMessage) (*Row, error) {
	var item rawItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, &ShapeError{Reason: "invalid item JSON: " + err.Error(), Raw: raw}
	}

	if item.ContentID == "" {
		return nil, &ShapeError{Reason: "missing contentid", Raw: raw}
	}
	table, ok := tableByContentType[item.ContentType]
	if !ok {
		return nil, &ShapeError{Reason: "unknown contenttypeid " + item.ContentType, Raw: raw}
	}

	fields := map[string]any{
		"content_id": item.ContentID,
		"name":       normalizeTitle(item.Title),
		"address":    normalizeAddress(item.Addr1, item.Addr2),
		"tel":        strings.TrimSpace(item.Tel),
		"image_url":  strings.TrimSpace(item.FirstImage),
	}
	if mt := strings.TrimSpace(item.ModifiedTime); mt != "" {
		fields["modified_time"] = mt
	}

	issues := make([]string, 0, 2)

	lon, lonOK := parseFloat(item.MapX)
	lat, latOK := parseFloat(item.MapY)
	if latOK && lonOK && withinKorea(lat, lon) {
		fields["latitude"] = lat
		fields["longitude"] = lon
	} else {
		issues = append(issues, "coordinates missing or out of range")
	}

	if fields["name"] == "" {
		issues = append(issues, "empty name after normalization")
	}
	if fields["address"] == "" {
		issues = append(issues, "empty address")
	}

	row := &Row{
		Table:  table,
		Fields: fields,
		Issues: issues,
	}
	row.QualityScore = scoreRow(row)
	return row, nil
}

// normalizeTitle trims whitespace and collapses HTML entities the KTO feed
// occasionally leaves unescaped in titles.
func normalizeTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.Join(strings.Fields(s), " ")
}

// normalizeAddress joins addr1/addr2 into a single address string,
// skipping either part when empty.
func normalizeAddress(addr1, addr2 string) string {
	addr1 = strings.TrimSpace(addr1)
	addr2 = strings.TrimSpace(addr2)
	switch {
	case addr1 == "":
		return addr2
	case addr2 == "":
		return addr1
	default:
		return addr1 + " " + addr2
	}
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
