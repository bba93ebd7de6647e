package transform

import (
	"encoding/json"
	"strconv"
	"strings"
)

// forecastItem is a single category/value pair from the KMA village
// forecast response. Multiple items share the same fcstDate/fcstTime and
// together describe one forecast slot; MapWeatherForecastItems folds them.
type forecastItem struct {
	BaseDate string `json:"baseDate"`
	BaseTime string `json:"baseTime"`
	Category string `json:"category"`
	FcstDate string `json:"fcstDate"`
	FcstTime string `json:"fcstTime"`
	FcstValue string `json:"fcstValue"`
	NX       int    `json:"nx"`
	NY       int    `json:"ny"`
}

// forecastCategory keys the KMA uses for the fields this pipeline keeps.
const (
	catTemp    = "TMP"
	catSky     = "SKY"
	catPop     = "POP" // probability of precipitation
	catPty     = "PTY" // precipitation type
	catHumidity = "REH"
)

// MapWeatherForecastItems folds a flat list of category/value rows (the
// wire shape for getVilageFcst) into one Row per nx/ny/fcstDate/fcstTime
// slot. Unlike tourism mapping this needs the whole page at once since a
// single forecast slot is spread across many KMA items.
func MapWeatherForecastItems(raw []json.RawMessage) ([]*Row, error) {
	groups := make(map[string]*Row)
	order := make([]string, 0)

	for _, r := range raw {
		var item forecastItem
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, &ShapeError{Reason: "invalid forecast item JSON: " + err.Error(), Raw: r}
		}
		if item.FcstDate == "" || item.FcstTime == "" {
			continue
		}

		key := strconv.Itoa(item.NX) + "_" + strconv.Itoa(item.NY) + "_" + item.FcstDate + "_" + item.FcstTime
		row, ok := groups[key]
		if !ok {
			row = &Row{
				Table: "weather_forecasts",
				Fields: map[string]any{
					"nx":          item.NX,
					"ny":          item.NY,
					"base_date":   item.BaseDate,
					"base_time":   item.BaseTime,
					"forecast_date": item.FcstDate,
					"forecast_time": item.FcstTime,
				},
			}
			groups[key] = row
			order = append(order, key)
		}

		applyCategory(row, item.Category, item.FcstValue)
	}

	rows := make([]*Row, 0, len(order))
	for _, key := range order {
		row := groups[key]
		row.QualityScore = scoreRow(row)
		rows = append(rows, row)
	}
	return rows, nil
}

func applyCategory(row *Row, category, value string) {
	value = strings.TrimSpace(value)
	switch category {
	case catTemp:
		if f, ok := parseFloat(value); ok {
			row.Fields["temperature_c"] = f
		}
	case catSky:
		row.Fields["sky_condition"] = skyConditionLabel(value)
	case catPop:
		if f, ok := parseFloat(value); ok {
			row.Fields["precipitation_probability"] = f
		}
	case catPty:
		row.Fields["precipitation_type"] = precipitationTypeLabel(value)
	case catHumidity:
		if f, ok := parseFloat(value); ok {
			row.Fields["humidity_pct"] = f
		}
	}
}

func skyConditionLabel(code string) string {
	switch code {
	case "1":
		return "clear"
	case "3":
		return "mostly_cloudy"
	case "4":
		return "cloudy"
	default:
		return "unknown"
	}
}

func precipitationTypeLabel(code string) string {
	switch code {
	case "0":
		return "none"
	case "1":
		return "rain"
	case "2":
		return "rain_snow"
	case "3":
		return "snow"
	case "4":
		return "shower"
	default:
		return "unknown"
	}
}
