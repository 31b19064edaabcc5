package chat

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeScalar(t *testing.T) {
	answer := Normalize(json.RawMessage(`"Paris"`))

	if len(answer.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(answer.Sections))
	}
	if answer.Sections[0].Label != "Answer" {
		t.Fatalf("expected Answer label, got %q", answer.Sections[0].Label)
	}
	if answer.Sections[0].Value.Text != "Paris" {
		t.Fatalf("expected Paris, got %q", answer.Sections[0].Value.Text)
	}
}

func TestNormalizeNumberAndBool(t *testing.T) {
	if got := Normalize(json.RawMessage(`42`)).Sections[0].Value.Text; got != "42" {
		t.Fatalf("expected 42, got %q", got)
	}
	if got := Normalize(json.RawMessage(`true`)).Sections[0].Value.Text; got != "true" {
		t.Fatalf("expected true, got %q", got)
	}
}

func TestNormalizeAbsentOrNull(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage(`null`), json.RawMessage(`""`)} {
		answer := Normalize(raw)
		if len(answer.Sections) != 1 {
			t.Fatalf("expected 1 section for %q, got %d", raw, len(answer.Sections))
		}
		section := answer.Sections[0]
		if section.Label != "Answer" || section.Value.Text != "No answer received" {
			t.Fatalf("expected no-answer section for %q, got %+v", raw, section)
		}
	}
}

func TestNormalizeObjectPassthroughKeepsOrder(t *testing.T) {
	answer := Normalize(json.RawMessage(`{"Summary": "x", "Sources": ["a", "b"], "Score": 3}`))

	if len(answer.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(answer.Sections))
	}
	if answer.Sections[0].Label != "Summary" || answer.Sections[0].Value.Text != "x" {
		t.Fatalf("unexpected first section: %+v", answer.Sections[0])
	}
	if answer.Sections[1].Label != "Sources" {
		t.Fatalf("expected Sources second, got %q", answer.Sections[1].Label)
	}
	list := answer.Sections[1].Value.List
	if len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Fatalf("unexpected list: %v", list)
	}
	if answer.Sections[2].Label != "Score" || answer.Sections[2].Value.Text != "3" {
		t.Fatalf("unexpected third section: %+v", answer.Sections[2])
	}
}

func TestNormalizeNestedValueDegradesToText(t *testing.T) {
	answer := Normalize(json.RawMessage(`{"Detail": {"inner": 1}}`))

	if got := answer.Sections[0].Value.Text; got != `{"inner":1}` {
		t.Fatalf("expected compact JSON text, got %q", got)
	}
}

func TestErrorAnswer(t *testing.T) {
	answer := ErrorAnswer()

	if len(answer.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(answer.Sections))
	}
	section := answer.Sections[0]
	if section.Label != "Error" || section.Value.Text != "Error contacting backend" {
		t.Fatalf("unexpected error section: %+v", section)
	}
}

func TestAnswerMarshalKeepsOrder(t *testing.T) {
	answer := Answer{Sections: []Section{
		{Label: "Summary", Value: scalarValue("x")},
		{Label: "Sources", Value: listValue([]string{"a", "b"})},
	}}

	data, err := json.Marshal(answer)
	if err != nil {
		t.Fatalf("marshal answer: %v", err)
	}
	if string(data) != `{"Summary":"x","Sources":["a","b"]}` {
		t.Fatalf("unexpected JSON: %s", data)
	}
}

func TestAnswerRenderNumbersLists(t *testing.T) {
	answer := Answer{Sections: []Section{
		{Label: "Answer", Value: scalarValue("Paris")},
		{Label: "Sources", Value: listValue([]string{"a.pdf", "b.pdf"})},
	}}

	rendered := answer.Render()
	for _, want := range []string{"Answer: Paris", "Sources:", "1. a.pdf", "2. b.pdf"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("rendered answer missing %q:\n%s", want, rendered)
		}
	}
}
