package validate

import "testing"

type sampleDoc struct {
	Name      string  `validate:"required"`
	Threshold float64 `validate:"gt=0,lte=1"`
	Mode      string  `validate:"oneof=fast slow"`
}

func TestStruct_ValidDocumentReturnsNoErrors(t *testing.T) {
	doc := sampleDoc{Name: "batch", Threshold: 0.5, Mode: "fast"}
	if errs := Struct(&doc); errs != nil {
		t.Fatalf("expected no field errors, got %v", errs)
	}
}

func TestStruct_ReportsEachFailingField(t *testing.T) {
	doc := sampleDoc{Name: "", Threshold: 2, Mode: "medium"}
	errs := Struct(&doc)
	if len(errs) != 3 {
		t.Fatalf("expected 3 field errors, got %d: %v", len(errs), errs)
	}

	seen := make(map[string]bool)
	for _, e := range errs {
		seen[e.Field] = true
	}
	for _, want := range []string{"name", "threshold", "mode"} {
		if !seen[want] {
			t.Errorf("expected a field error for %q, got %v", want, errs)
		}
	}
}

func TestError_CollapsesFailuresIntoSingleError(t *testing.T) {
	doc := sampleDoc{Name: "", Threshold: 0.5, Mode: "fast"}
	err := Error(&doc)
	if err == nil {
		t.Fatalf("expected an error for a missing required field")
	}
}

func TestError_ValidDocumentReturnsNil(t *testing.T) {
	doc := sampleDoc{Name: "batch", Threshold: 0.5, Mode: "slow"}
	if err := Error(&doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
