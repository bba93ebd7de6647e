package transform

// requiredFieldsByTable lists the fields scoreRow treats as load-bearing
// for completeness scoring. A row missing all of them scores 0 on
// completeness; missing some still degrades the score proportionally.
var requiredFieldsByTable = map[string][]string{
	"tourist_attractions": {"name", "address", "latitude", "longitude"},
	"cultural_facilities": {"name", "address", "latitude", "longitude"},
	"festivals_events":    {"name", "address"},
	"travel_courses":      {"name", "address"},
	"leisure_sports":      {"name", "address", "latitude", "longitude"},
	"accommodations":      {"name", "address", "latitude", "longitude"},
	"shopping":            {"name", "address"},
	"restaurants":         {"name", "address", "latitude", "longitude"},
	"weather_forecasts":   {"temperature_c", "sky_condition", "precipitation_probability"},
}

// scoreRow computes a single row's quality score as the fraction of its
// required fields that are present and non-empty. The upsert engine writes
// it to the data_quality_score column; the quality gate computes its
// table-level completeness separately, from each table's required_fields.
func scoreRow(row *Row) float64 {
	required, ok := requiredFieldsByTable[row.Table]
	if !ok || len(required) == 0 {
		return 1.0
	}

	present := 0
	for _, f := range required {
		if isPresent(row.Fields[f]) {
			present++
		}
	}
	return float64(present) / float64(len(required))
}

func isPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return true
	case int:
		return true
	default:
		return true
	}
}
