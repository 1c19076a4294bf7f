package llm

import (
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestParseJobAnalysisValid(t *testing.T) {
	raw := `{"job_title":"Backend Engineer","required_skills":["Go","SQL"],"preferred_skills":["Redis"],"experience_level":"3+ years","keywords":["api","cloud"],"company_culture":"remote-first"}`
	analysis := ParseJobAnalysis(testLogger(), raw)
	if analysis.JobTitle != "Backend Engineer" {
		t.Errorf("job title = %q", analysis.JobTitle)
	}
	if len(analysis.RequiredSkills) != 2 {
		t.Errorf("required skills = %v", analysis.RequiredSkills)
	}
}

func TestParseJobAnalysisStripsFences(t *testing.T) {
	raw := "```json\n{\"job_title\":\"Data Analyst\"}\n```"
	analysis := ParseJobAnalysis(testLogger(), raw)
	if analysis.JobTitle != "Data Analyst" {
		t.Errorf("job title = %q", analysis.JobTitle)
	}
}

func TestParseJobAnalysisFallsBackToDefault(t *testing.T) {
	analysis := ParseJobAnalysis(testLogger(), "the model rambled instead of returning JSON")
	want := DefaultJobAnalysis()
	if analysis.JobTitle != want.JobTitle {
		t.Errorf("job title = %q, want default %q", analysis.JobTitle, want.JobTitle)
	}
	if analysis.RequiredSkills == nil || analysis.Keywords == nil {
		t.Error("default analysis must have non-nil slices")
	}
}
