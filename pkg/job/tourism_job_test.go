package job

import (
	"errors"
	"testing"

	"github.com/aicc6/weatherflick-batch/pkg/gateway"
)

func TestClassifyGatewayErr_MapsOutcomeToCategory(t *testing.T) {
	cases := []struct {
		outcome gateway.Outcome
		want    Category
	}{
		{gateway.OutcomeQuotaExhausted, CategoryQuotaExhausted},
		{gateway.OutcomeRateLimited, CategoryRateLimited},
		{gateway.OutcomeAuthError, CategoryAuthError},
		{gateway.OutcomeTimeout, CategoryTimeout},
		{gateway.OutcomeValidation, CategoryValidation},
		{gateway.OutcomeTransient, CategoryTransient},
	}

	for _, c := range cases {
		gerr := &gateway.Error{Provider: "kto", Outcome: c.outcome, Message: "boom"}
		err := classifyGatewayErr("tourism-12", gerr)

		var jerr *Error
		if !errors.As(err, &jerr) {
			t.Fatalf("expected a *job.Error, got %T", err)
		}
		if jerr.TaxonomyCategory() != c.want {
			t.Errorf("outcome %q -> category %q, want %q", c.outcome, jerr.TaxonomyCategory(), c.want)
		}
	}
}

func TestClassifyGatewayErr_NonGatewayErrorDefaultsToTransient(t *testing.T) {
	err := classifyGatewayErr("tourism-12", errors.New("connection reset"))

	var jerr *Error
	if !errors.As(err, &jerr) {
		t.Fatalf("expected a *job.Error, got %T", err)
	}
	if jerr.TaxonomyCategory() != CategoryTransient {
		t.Errorf("category = %q, want transient", jerr.TaxonomyCategory())
	}
}
