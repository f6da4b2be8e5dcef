package scraper

import (
	"testing"

	"github.com/aluiziolira/go-scrape-kabum/models"
)

func TestRepeatGuard(t *testing.T) {
	page := func(codes ...string) []models.Product {
		out := make([]models.Product, 0, len(codes))
		for _, code := range codes {
			out = append(out, models.Product{Code: models.Present(code)})
		}
		return out
	}

	guard := newRepeatGuard(16)
	if guard.Observe(page("a", "b")) {
		t.Fatalf("first page cannot repeat")
	}
	if guard.Observe(page("b", "c")) {
		t.Fatalf("partially new page is not a repeat")
	}
	if !guard.Observe(page("a", "c")) {
		t.Fatalf("page of known codes should be reported")
	}
	if guard.Observe([]models.Product{{Code: models.Missing("Code Unavailable")}}) {
		t.Fatalf("pages without codes are never repeats")
	}

	disabled := newRepeatGuard(0)
	if disabled.Observe(page("a")) || disabled.Observe(page("a")) {
		t.Fatalf("disabled guard should never report")
	}
}
