package transform

import (
	"encoding/json"
	"testing"
)

func forecastJSON(t *testing.T, nx, ny int, fcstDate, fcstTime, category, value string) json.RawMessage {
	t.Helper()
	item := forecastItem{
		BaseDate: fcstDate,
		BaseTime: "0200",
		Category: category,
		FcstDate: fcstDate,
		FcstTime: fcstTime,
		FcstValue: value,
		NX:       nx,
		NY:       ny,
	}
	raw, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("marshaling fixture: %v", err)
	}
	return raw
}

func TestMapWeatherForecastItems_FoldsCategoriesIntoOneRow(t *testing.T) {
	raw := []json.RawMessage{
		forecastJSON(t, 60, 127, "20260801", "1500", catTemp, "27.4"),
		forecastJSON(t, 60, 127, "20260801", "1500", catSky, "1"),
		forecastJSON(t, 60, 127, "20260801", "1500", catPop, "30"),
		forecastJSON(t, 60, 127, "20260801", "1500", catPty, "0"),
		forecastJSON(t, 60, 127, "20260801", "1500", catHumidity, "55"),
	}

	rows, err := MapWeatherForecastItems(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}

	row := rows[0]
	if row.Table != "weather_forecasts" {
		t.Fatalf("table = %q", row.Table)
	}
	if row.Fields["temperature_c"] != 27.4 {
		t.Fatalf("temperature_c = %v", row.Fields["temperature_c"])
	}
	if row.Fields["sky_condition"] != "clear" {
		t.Fatalf("sky_condition = %v", row.Fields["sky_condition"])
	}
	if row.Fields["precipitation_type"] != "none" {
		t.Fatalf("precipitation_type = %v", row.Fields["precipitation_type"])
	}
	if row.QualityScore != 1.0 {
		t.Fatalf("quality score = %v, want 1.0", row.QualityScore)
	}
}

func TestMapWeatherForecastItems_SeparatesDistinctSlots(t *testing.T) {
	raw := []json.RawMessage{
		forecastJSON(t, 60, 127, "20260801", "1500", catTemp, "27.4"),
		forecastJSON(t, 60, 127, "20260801", "1800", catTemp, "25.1"),
	}

	rows, err := MapWeatherForecastItems(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
}

func TestMapWeatherForecastItems_SkipsItemsMissingForecastSlot(t *testing.T) {
	raw := []json.RawMessage{
		forecastJSON(t, 60, 127, "", "", catTemp, "27.4"),
	}

	rows, err := MapWeatherForecastItems(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}
