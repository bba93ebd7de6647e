package quality

import (
	"fmt"
	"time"

	"github.com/aicc6/weatherflick-batch/pkg/transform"
)

// Report is the outcome of running the quality gate over one table's
// batch of rows.
type Report struct {
	Table          string
	RowCount       int
	Completeness   float64
	Validity       float64
	Consistency    float64
	Freshness      float64
	OverallScore   float64
	Passed         bool
	FailureReasons []string
}

// Gate evaluates transformed rows against a QualitySpec before they are
// considered safe to upsert.
type Gate struct {
	spec *QualitySpec
}

// NewGate creates a Gate backed by spec.
func NewGate(spec *QualitySpec) *Gate {
	return &Gate{spec: spec}
}

// Evaluate scores a table's rows against its declared spec.
func (g *Gate) Evaluate(table string, rows []*transform.Row, now time.Time) *Report {
	report := &Report{Table: table, RowCount: len(rows)}

	spec := g.spec.For(table)
	if spec == nil {
		// No declared spec: accept by default rather than blocking tables
		// the operator hasn't configured yet, but flag it clearly.
		report.Passed = true
		report.OverallScore = 1.0
		report.FailureReasons = append(report.FailureReasons, "no quality spec configured for table, defaulting to pass")
		return report
	}

	report.Completeness = completeness(rows, spec.RequiredFields)
	report.Validity = validity(rows, spec.ValueRanges)
	report.Consistency = consistency(rows, spec.DuplicateKeyColumns)
	report.Freshness = freshness(rows, spec.DateColumn, now, spec.maxStalenessDuration)

	weightTotal := spec.WeightComplete + spec.WeightValid + spec.WeightConsistent + spec.WeightFresh
	if weightTotal == 0 {
		weightTotal = 1
	}
	report.OverallScore = (report.Completeness*spec.WeightComplete +
		report.Validity*spec.WeightValid +
		report.Consistency*spec.WeightConsistent +
		report.Freshness*spec.WeightFresh) / weightTotal

	report.Passed = report.OverallScore >= spec.PassThreshold
	if !report.Passed {
		report.FailureReasons = append(report.FailureReasons, "overall score below pass threshold")
	}
	return report
}

// completeness is the fraction of rows that carry every required field,
// scored per-row rather than averaged across fields: a row missing one
// required field is exactly as incomplete as a row missing all of them.
func completeness(rows []*transform.Row, requiredFields []string) float64 {
	if len(rows) == 0 {
		return 0
	}
	complete := 0
	for _, row := range rows {
		ok := true
		for _, f := range requiredFields {
			if v, present := row.Fields[f]; !present || isZero(v) {
				ok = false
				break
			}
		}
		if ok {
			complete++
		}
	}
	return float64(complete) / float64(len(rows))
}

// validity is the fraction of rows whose declared numeric fields fall
// within the configured value_ranges. A field absent from a row, or a
// range with no entry, is not judged here (completeness already covers
// missing fields).
func validity(rows []*transform.Row, ranges map[string]ValueRange) float64 {
	if len(rows) == 0 {
		return 0
	}
	if len(ranges) == 0 {
		return 1.0
	}
	valid := 0
	for _, row := range rows {
		ok := true
		for field, r := range ranges {
			v, present := row.Fields[field]
			if !present {
				continue
			}
			f, isFloat := v.(float64)
			if !isFloat {
				continue
			}
			if f < r.Min || f > r.Max {
				ok = false
				break
			}
		}
		if ok {
			valid++
		}
	}
	return float64(valid) / float64(len(rows))
}

// consistency is the fraction of rows whose duplicate_key_columns tuple is
// unique within the batch. A repeated key means the same logical record
// was mapped twice in one run, which the upsert would otherwise silently
// collapse.
func consistency(rows []*transform.Row, keyColumns []string) float64 {
	if len(rows) == 0 {
		return 0
	}
	if len(keyColumns) == 0 {
		return 1.0
	}
	seen := make(map[string]int, len(rows))
	for _, row := range rows {
		seen[rowKey(row, keyColumns)]++
	}
	unique := 0
	for _, row := range rows {
		if seen[rowKey(row, keyColumns)] == 1 {
			unique++
		}
	}
	return float64(unique) / float64(len(rows))
}

func rowKey(row *transform.Row, keyColumns []string) string {
	key := ""
	for _, c := range keyColumns {
		key += fmt.Sprint(row.Fields[c]) + "\x00"
	}
	return key
}

// freshness is the fraction of rows whose own date column falls within
// maxStaleness of now. Unlike a linear decay from a single sync timestamp,
// each row is judged against the date it actually carries, so a batch
// mixing a handful of stale records with mostly fresh ones scores
// proportionally rather than all-or-nothing.
func freshness(rows []*transform.Row, dateColumn string, now time.Time, maxStaleness time.Duration) float64 {
	if len(rows) == 0 {
		return 0
	}
	if dateColumn == "" || maxStaleness <= 0 {
		return 0
	}
	fresh := 0
	for _, row := range rows {
		v, ok := row.Fields[dateColumn]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		t, err := parseDateColumn(s)
		if err != nil {
			continue
		}
		if now.Sub(t) <= maxStaleness {
			fresh++
		}
	}
	return float64(fresh) / float64(len(rows))
}

// parseDateColumn accepts the two wire date layouts this pipeline produces:
// KMA's bare YYYYMMDD forecast date and KTO's YYYYMMDDHHMMSS modified time.
func parseDateColumn(s string) (time.Time, error) {
	switch len(s) {
	case 8:
		return time.Parse("20060102", s)
	case 14:
		return time.Parse("20060102150405", s)
	default:
		return time.Time{}, fmt.Errorf("unrecognized date column format %q", s)
	}
}

func isZero(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return t == 0
	default:
		return false
	}
}
