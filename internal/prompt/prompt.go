// Package prompt renders the LLM prompts used for answers, summaries and
// question suggestions.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

//go:embed templates/*.txt
var files embed.FS

var templates = template.Must(template.New("prompt").Funcs(templateFuncs()).ParseFS(files, "templates/*.txt"))

// Prompt is a system message plus a user message. System may be empty.
type Prompt struct {
	System string
	User   string
}

func (p Prompt) String() string {
	if p.System == "" {
		return p.User
	}
	return p.System + "\n\n" + p.User
}

// QA asks for an answer grounded in the retrieved report sections.
func QA(question, context string) (Prompt, error) {
	return build("qa_system.txt", "qa_user.txt", map[string]any{
		"Question": question,
		"Context":  context,
	})
}

// Comprehensive asks for a sectioned summary of a whole report.
func Comprehensive(reportType, content string) (Prompt, error) {
	if reportType == "" {
		reportType = "general"
	}
	return build("summary_system.txt", "summary_user.txt", map[string]any{
		"ReportType": reportType,
		"Content":    content,
	})
}

// Brief asks for three or four bullet points.
func Brief(content string) (Prompt, error) {
	return build("", "brief_user.txt", map[string]any{"Content": content})
}

// Suggest asks for count numbered questions about a report excerpt.
func Suggest(count int, excerpt string) (Prompt, error) {
	return build("", "suggest_user.txt", map[string]any{
		"Count":   count,
		"Content": excerpt,
	})
}

// Insights asks for risk factors and care gaps given a summary and the
// entities extracted from the report.
func Insights(summary string, entities []domain.Entity) (Prompt, error) {
	return build("", "insights_user.txt", map[string]any{
		"Summary":  summary,
		"Entities": entities,
	})
}

func build(system, user string, data any) (Prompt, error) {
	var p Prompt
	var err error
	if system != "" {
		if p.System, err = render(system, data); err != nil {
			return Prompt{}, err
		}
	}
	if p.User, err = render(user, data); err != nil {
		return Prompt{}, err
	}
	return p, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatEntities": func(entities []domain.Entity) string {
			if len(entities) == 0 {
				return "none"
			}
			parts := make([]string, len(entities))
			for i, e := range entities {
				parts[i] = fmt.Sprintf("%s (%s)", e.Text, e.Label)
			}
			return strings.Join(parts, ", ")
		},
	}
}
