package document

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Step is one named display phase of the generation pipeline. Steps are a
// reporting artifact: they carry no execution state of their own and are
// stored as a single JSON value replaced atomically with the document.
type Step struct {
	Name      string     `json:"name"`
	Order     int        `json:"order"`
	Status    Status     `json:"status"`
	Details   string     `json:"details,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Steps is the ordered list of pipeline phases attached to a document.
type Steps []Step

// stepNames is the fixed phase sequence shown to the user for every generation.
var stepNames = []string{
	"Job offer analysis",
	"Profile adaptation",
	"Content generation",
	"Optimization",
	"Final validation",
}

// DefaultSteps returns a fresh pending step list, ordered contiguously from 1.
func DefaultSteps() Steps {
	steps := make(Steps, 0, len(stepNames))
	for i, name := range stepNames {
		steps = append(steps, Step{
			Name:   name,
			Order:  i + 1,
			Status: StatusPending,
		})
	}
	return steps
}

// MarkAllCompleted flips every step to completed with the given timestamp.
func (s Steps) MarkAllCompleted(now time.Time) Steps {
	out := make(Steps, len(s))
	for i, step := range s {
		step.Status = StatusCompleted
		start := now
		end := now
		step.StartedAt = &start
		step.EndedAt = &end
		out[i] = step
	}
	return out
}

// ToJSON serializes the steps for the document's JSONB column.
func (s Steps) ToJSON() (datatypes.JSON, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}
	return datatypes.JSON(data), nil
}

// StepsFromJSON decodes the steps column; a missing value yields an empty list.
func StepsFromJSON(raw datatypes.JSON) (Steps, error) {
	if len(raw) == 0 {
		return Steps{}, nil
	}
	var steps Steps
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return steps, nil
}
