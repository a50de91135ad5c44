package httpapi_test

import (
	"strings"
	"testing"

	"jobby/recommend-service/internal/httpapi"
)

// ── query input validation ─────────────────────────────────────────────────

func validQueryInput() httpapi.QueryInput {
	in := httpapi.QueryInput{Query: "golang developer"}
	in.ApplyDefaults()
	return in
}

func TestQueryInput_Valid(t *testing.T) {
	in := validQueryInput()
	if err := in.Validate(); err != nil {
		t.Errorf("valid input rejected: %v", err)
	}
}

func TestQueryInput_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t"} {
		in := validQueryInput()
		in.Query = q
		if err := in.Validate(); err == nil {
			t.Errorf("query %q should be rejected", q)
		}
	}
}

func TestQueryInput_PageBounds(t *testing.T) {
	for _, page := range []int{-1, 51, 100} {
		in := validQueryInput()
		in.Page = page
		if err := in.Validate(); err == nil {
			t.Errorf("page %d should be rejected", page)
		}
	}
	for _, page := range []int{1, 25, 50} {
		in := validQueryInput()
		in.Page = page
		if err := in.Validate(); err != nil {
			t.Errorf("page %d should be accepted: %v", page, err)
		}
	}
}

func TestQueryInput_DatePostedEnum(t *testing.T) {
	for _, v := range []string{"all", "today", "3days", "week", "month"} {
		in := validQueryInput()
		in.DatePosted = v
		if err := in.Validate(); err != nil {
			t.Errorf("datePosted %q should be accepted: %v", v, err)
		}
	}
	in := validQueryInput()
	in.DatePosted = "yesterday"
	if err := in.Validate(); err == nil {
		t.Error("datePosted \"yesterday\" should be rejected")
	}
}

func TestQueryInput_Defaults(t *testing.T) {
	in := httpapi.QueryInput{Query: "golang"}
	in.ApplyDefaults()
	if in.Page != 1 || in.NumPages != 1 {
		t.Errorf("pagination defaults: page=%d numPages=%d, want 1/1", in.Page, in.NumPages)
	}
	if in.Country != "us" {
		t.Errorf("country default = %q, want us", in.Country)
	}
	if in.DatePosted != "all" {
		t.Errorf("datePosted default = %q, want all", in.DatePosted)
	}
}

func TestQueryInput_TrimsQueryText(t *testing.T) {
	in := validQueryInput()
	in.Query = "  golang developer  "
	m := in.ToModel()
	if m.Query != "golang developer" {
		t.Errorf("query not trimmed: %q", m.Query)
	}
}

// ── pattern input validation ───────────────────────────────────────────────

func validPatternInput() httpapi.PatternInput {
	return httpapi.PatternInput{Pattern: `\bgo\b`, Effect: "+"}
}

func TestPatternInput_Valid(t *testing.T) {
	in := validPatternInput()
	if err := in.Validate(); err != nil {
		t.Errorf("valid input rejected: %v", err)
	}
}

func TestPatternInput_MalformedRegex(t *testing.T) {
	in := validPatternInput()
	in.Pattern = "(unclosed"
	err := in.Validate()
	if err == nil {
		t.Fatal("malformed regex should be rejected")
	}
	if !strings.Contains(err.Error(), "regular expression") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestPatternInput_WeightMustBePositive(t *testing.T) {
	for _, w := range []float64{0, -5} {
		in := validPatternInput()
		in.Weight = &w
		if err := in.Validate(); err == nil {
			t.Errorf("weight %v should be rejected", w)
		}
	}
}

func TestPatternInput_EffectEnum(t *testing.T) {
	for _, e := range []string{"+", "-"} {
		in := validPatternInput()
		in.Effect = e
		if err := in.Validate(); err != nil {
			t.Errorf("effect %q should be accepted: %v", e, err)
		}
	}
	in := validPatternInput()
	in.Effect = "*"
	if err := in.Validate(); err == nil {
		t.Error("effect \"*\" should be rejected")
	}
}

func TestPatternInput_ModelDefaults(t *testing.T) {
	in := validPatternInput()
	m := in.ToModel()
	if m.Weight != 10 {
		t.Errorf("default weight = %v, want 10", m.Weight)
	}
	if !m.CountOnce {
		t.Error("countOnce should default to true")
	}
	if m.Disqualify {
		t.Error("disqualify should default to false")
	}
}
