package document

import (
	"testing"
	"time"
)

func TestDefaultStepsOrderedFromOne(t *testing.T) {
	steps := DefaultSteps()
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(steps))
	}
	for i, step := range steps {
		if step.Order != i+1 {
			t.Errorf("step %d has order %d", i, step.Order)
		}
		if step.Status != StatusPending {
			t.Errorf("step %q created as %s", step.Name, step.Status)
		}
	}
}

func TestMarkAllCompleted(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	steps := DefaultSteps().MarkAllCompleted(now)
	for _, step := range steps {
		if step.Status != StatusCompleted {
			t.Errorf("step %q is %s", step.Name, step.Status)
		}
		if step.StartedAt == nil || step.EndedAt == nil {
			t.Errorf("step %q missing timestamps", step.Name)
		}
	}
}

func TestStepsJSONRoundTrip(t *testing.T) {
	raw, err := DefaultSteps().ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	steps, err := StepsFromJSON(raw)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps after round trip, got %d", len(steps))
	}
}

func TestStepsFromJSONEmpty(t *testing.T) {
	steps, err := StepsFromJSON(nil)
	if err != nil {
		t.Fatalf("nil json: %v", err)
	}
	if len(steps) != 0 {
		t.Fatalf("expected empty steps, got %d", len(steps))
	}
}
