package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// JobAnalysis is the structured result of analyzing a job description.
type JobAnalysis struct {
	JobTitle        string   `json:"job_title"`
	RequiredSkills  []string `json:"required_skills"`
	PreferredSkills []string `json:"preferred_skills"`
	ExperienceLevel string   `json:"experience_level"`
	Keywords        []string `json:"keywords"`
	CompanyCulture  string   `json:"company_culture"`
}

// DefaultJobAnalysis is the typed fallback used when the model output cannot be parsed.
func DefaultJobAnalysis() JobAnalysis {
	return JobAnalysis{
		JobTitle:        "Unspecified role",
		RequiredSkills:  []string{},
		PreferredSkills: []string{},
		ExperienceLevel: "Not specified",
		Keywords:        []string{},
		CompanyCulture:  "Not specified",
	}
}

const analysisPromptTemplate = `Analyze this job description and extract the key information:

%s

Return a JSON object with exactly these fields:
- job_title: the title of the position
- required_skills: list of required skills
- preferred_skills: list of preferred skills
- experience_level: required experience level
- keywords: important keywords
- company_culture: hints about the company culture

Respond with JSON only.`

// TextGenerator is the model surface analysis needs.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AnalyzeJobDescription asks the model for a structured summary of the job
// description. Parse failures are logged and degrade to the typed default;
// they never abort the enclosing request.
func AnalyzeJobDescription(ctx context.Context, logger *slog.Logger, g TextGenerator, jobDescription string) JobAnalysis {
	raw, err := g.Generate(ctx, fmt.Sprintf(analysisPromptTemplate, jobDescription))
	if err != nil {
		logger.Warn("job description analysis failed", slog.Any("error", err))
		return DefaultJobAnalysis()
	}
	return ParseJobAnalysis(logger, raw)
}

// ParseJobAnalysis decodes model output into a JobAnalysis, tolerating
// markdown code fences. A decode failure returns the default and is logged
// rather than swallowed.
func ParseJobAnalysis(logger *slog.Logger, raw string) JobAnalysis {
	var analysis JobAnalysis
	if err := json.Unmarshal([]byte(stripFences(raw)), &analysis); err != nil {
		logger.Warn("job analysis output is not valid JSON, using default",
			slog.Any("error", err),
			slog.Int("output_len", len(raw)),
		)
		return DefaultJobAnalysis()
	}
	if analysis.RequiredSkills == nil {
		analysis.RequiredSkills = []string{}
	}
	if analysis.PreferredSkills == nil {
		analysis.PreferredSkills = []string{}
	}
	if analysis.Keywords == nil {
		analysis.Keywords = []string{}
	}
	return analysis
}

// stripFences removes markdown code fences from model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
