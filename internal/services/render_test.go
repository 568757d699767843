package services

import (
	"reflect"
	"testing"
)

func TestRenderSubstitutesBindings(t *testing.T) {
	content := "Agreement between {{provider_name}} and {{ client_name }} effective {{effective_date}}."
	rendered, missing := Render(content, map[string]string{
		"provider_name":  "Votra Consulting",
		"client_name":    "Acme Corp",
		"effective_date": "2026-01-01",
	})
	want := "Agreement between Votra Consulting and Acme Corp effective 2026-01-01."
	if rendered != want {
		t.Fatalf("got %q", rendered)
	}
	if len(missing) != 0 {
		t.Fatalf("unexpected missing keys: %v", missing)
	}
}

func TestRenderReportsMissingKeys(t *testing.T) {
	content := "{{b}} {{a}} {{a}}"
	rendered, missing := Render(content, nil)
	if rendered != "  " {
		t.Fatalf("missing placeholders should render empty, got %q", rendered)
	}
	if !reflect.DeepEqual(missing, []string{"a", "b"}) {
		t.Fatalf("expected sorted unique missing keys, got %v", missing)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	content := "{{x}}-{{y}}"
	bindings := map[string]string{"x": "1", "y": "2"}
	r1, _ := Render(content, bindings)
	r2, _ := Render(content, bindings)
	if r1 != r2 {
		t.Fatalf("expected deterministic output")
	}
}

func TestPlaceholders(t *testing.T) {
	keys := Placeholders("{{client_name}} and {{provider_name}} and {{client_name}}")
	if !reflect.DeepEqual(keys, []string{"client_name", "provider_name"}) {
		t.Fatalf("got %v", keys)
	}
	if got := Placeholders("no placeholders here"); len(got) != 0 {
		t.Fatalf("expected none, got %v", got)
	}
}
