package prompt

import (
	"strings"
	"testing"
)

func sampleInput() Input {
	return Input{
		DocumentType:   "CV",
		Role:           "Backend Developer",
		Company:        "Acme",
		Keywords:       []string{"Go", "PostgreSQL"},
		Tone:           "professional",
		JobDescription: "We build APIs.",
		User: UserData{
			Name:        "Jane Doe",
			Email:       "jane@example.com",
			Phone:       "+33 6 00 00 00 00",
			LinkedinURL: "https://linkedin.com/in/jane",
			GithubURL:   "https://github.com/jane",
			Skills:      []string{"Go", "Docker"},
			Experiences: `[{"title":"Dev","company":"X"}]`,
			Education:   `[{"degree":"MSc","school":"Y"}]`,
		},
		Context:  "Acme is hiring aggressively.",
		Language: "en",
		Template: "default",
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	in := sampleInput()
	first := Build(in)
	for i := 0; i < 10; i++ {
		if got := Build(in); got != first {
			t.Fatalf("iteration %d produced different output", i)
		}
	}
}

func TestBuildEmbedsAllInputsVerbatim(t *testing.T) {
	in := sampleInput()
	out := Build(in)

	for _, want := range []string{
		"Backend Developer",
		"Acme",
		"Go, PostgreSQL",
		"We build APIs.",
		"Jane Doe",
		"jane@example.com",
		`[{"title":"Dev","company":"X"}]`,
		`[{"degree":"MSc","school":"Y"}]`,
		"Acme is hiring aggressively.",
		"professional",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildSelectsTemplateByType(t *testing.T) {
	in := sampleInput()
	cv := Build(in)
	in.DocumentType = "LM"
	letter := Build(in)

	if !strings.Contains(cv, "professional CV") {
		t.Error("CV prompt missing CV instructions")
	}
	if !strings.Contains(letter, "cover letter") {
		t.Error("letter prompt missing letter instructions")
	}
	if cv == letter {
		t.Error("CV and letter prompts must differ")
	}
}

func TestBuildLanguage(t *testing.T) {
	in := sampleInput()
	in.Language = "fr"
	if out := Build(in); !strings.Contains(out, "in French") {
		t.Error("fr language not reflected in prompt")
	}
}
