// Package prompt assembles the instruction text sent to the generation model.
// Building is a pure function of its inputs: identical inputs yield
// byte-identical prompts. No field is sanitized or truncated before being
// embedded; the output is an opaque instruction string, never parsed back.
package prompt

import (
	"fmt"
	"strings"
)

// UserData is the profile snapshot embedded in the prompt.
type UserData struct {
	Name        string
	Email       string
	Phone       string
	LinkedinURL string
	GithubURL   string
	Skills      []string
	// Experiences and Education are raw JSON array strings submitted with the
	// form; they are embedded verbatim.
	Experiences string
	Education   string
}

// Input carries everything the builder needs.
type Input struct {
	DocumentType   string // "CV" or "LM"
	Role           string
	Company        string
	Keywords       []string
	Tone           string
	JobDescription string
	User           UserData
	Context        string
	Language       string // "fr" or "en"
	Template       string
}

func languageName(code string) string {
	switch code {
	case "en":
		return "English"
	default:
		return "French"
	}
}

// Build renders one of the two fixed instruction templates.
func Build(in Input) string {
	if in.DocumentType == "LM" {
		return buildLetter(in)
	}
	return buildCV(in)
}

func buildCV(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a professional CV in %s for the following candidate.\n\n", languageName(in.Language))
	writeCommon(&b, in)
	b.WriteString(`
The CV must be structured with:
1. A header with personal information
2. A professional profile summary
3. Work experience (highlight the most relevant positions)
4. Education
5. Skills (adapted to the job requirements)
6. Languages and certifications

`)
	fmt.Fprintf(&b, "Use a %s tone and emphasize the matches with the target position.\n", in.Tone)
	fmt.Fprintf(&b, "Render the document using the %q layout conventions.\n", in.Template)
	return b.String()
}

func buildLetter(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a cover letter in %s for the following candidate.\n\n", languageName(in.Language))
	writeCommon(&b, in)
	b.WriteString(`
The letter must:
1. Open by naming the target position and company
2. Connect the candidate's experience to the job requirements
3. Show genuine motivation grounded in the company context
4. Close with a call to action

`)
	fmt.Fprintf(&b, "Use a %s tone throughout.\n", in.Tone)
	fmt.Fprintf(&b, "Render the document using the %q layout conventions.\n", in.Template)
	return b.String()
}

func writeCommon(b *strings.Builder, in Input) {
	fmt.Fprintf(b, "TARGET POSITION: %s\n", in.Role)
	fmt.Fprintf(b, "COMPANY: %s\n\n", in.Company)

	b.WriteString("CANDIDATE PROFILE:\n")
	fmt.Fprintf(b, "Name: %s\n", in.User.Name)
	fmt.Fprintf(b, "Email: %s\n", in.User.Email)
	fmt.Fprintf(b, "Phone: %s\n", in.User.Phone)
	fmt.Fprintf(b, "LinkedIn: %s\n", in.User.LinkedinURL)
	fmt.Fprintf(b, "GitHub: %s\n", in.User.GithubURL)
	fmt.Fprintf(b, "Skills: %s\n", strings.Join(in.User.Skills, ", "))
	fmt.Fprintf(b, "Experiences (JSON): %s\n", in.User.Experiences)
	fmt.Fprintf(b, "Education (JSON): %s\n\n", in.User.Education)

	fmt.Fprintf(b, "JOB DESCRIPTION:\n%s\n\n", in.JobDescription)
	fmt.Fprintf(b, "KEYWORDS TO INCLUDE: %s\n\n", strings.Join(in.Keywords, ", "))
	fmt.Fprintf(b, "ADDITIONAL CONTEXT:\n%s\n", in.Context)
}
