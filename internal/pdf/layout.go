package pdf

import (
	"html/template"
	"strings"
)

const (
	// LineCharBudget is the maximum number of characters rendered per line;
	// anything wider is truncated.
	LineCharBudget = 100
	// LinesPerPage is the fixed vertical capacity of one page.
	LinesPerPage = 48
)

// Page is one fixed-size page of laid-out text lines.
type Page struct {
	Lines []string
}

// Paginate lays the title and body out line by line. The title occupies the
// first line of the first page; a new page starts whenever the vertical
// budget is exhausted.
func Paginate(title, body string) []Page {
	lines := make([]string, 0, 64)
	if strings.TrimSpace(title) != "" {
		lines = append(lines, truncateLine(title))
	}
	for _, line := range strings.Split(body, "\n") {
		lines = append(lines, truncateLine(line))
	}

	pages := make([]Page, 0, 1+len(lines)/LinesPerPage)
	for start := 0; start < len(lines); start += LinesPerPage {
		end := start + LinesPerPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, Page{Lines: lines[start:end]})
	}
	if len(pages) == 0 {
		pages = append(pages, Page{Lines: []string{}})
	}
	return pages
}

func truncateLine(line string) string {
	runes := []rune(line)
	if len(runes) <= LineCharBudget {
		return line
	}
	return string(runes[:LineCharBudget])
}

// documentTemplate renders paginated lines into print-ready A4 HTML.
// Template escaping keeps document content inert in the page.
var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
  @page { size: A4; margin: 0; }
  body { margin: 0; padding: 0; font-family: 'Courier New', monospace; font-size: 11pt; }
  .page {
    width: 794px;
    height: 1122px;
    box-sizing: border-box;
    padding: 48px;
    background: white;
    page-break-after: always;
  }
  .page:last-child { page-break-after: auto; }
  .line { white-space: pre; line-height: 1.6; }
</style>
</head>
<body>
{{range .}}<div class="page">
{{range .Lines}}<div class="line">{{.}}</div>
{{end}}</div>
{{end}}</body>
</html>
`))

// BuildHTML renders the pages into the HTML document handed to the browser.
func BuildHTML(pages []Page) (string, error) {
	var b strings.Builder
	if err := documentTemplate.Execute(&b, pages); err != nil {
		return "", err
	}
	return b.String(), nil
}
