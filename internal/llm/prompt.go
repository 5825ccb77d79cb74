package llm

import (
	"strings"
	"text/template"
)

// PromptInput is everything a generation prompt is built from.
type PromptInput struct {
	Question string
	// Schema is the rendered table section (catalog.Prompt).
	Schema string
	// Examples is the rendered examples section (examples.Prompt).
	Examples string
	// Previous is the failed attempt being corrected, if any.
	Previous *Previous
}

// Previous describes a failed attempt. SQL holds the compiled SQL, or the
// raw plan text when the plan never compiled.
type Previous struct {
	SQL   string
	Error string
}

var promptTemplate = template.Must(template.New("prompt").Parse(`
*User Question*:
    {{.Question}}

*Database Schema*:
{{.Schema}}

*Example Queries and Resulting JSON Plans*:
{{.Examples}}
{{- with .Previous}}

*Previous Attempt*:
The previous plan failed. Do not repeat the mistake.
    Output: {{.SQL}}
    Error: {{.Error}}
{{- end}}

*Instructions*:
    Using the schema above and examples, generate a JSON plan that answers the user question.
    Include tables, columns, filters, joins, and output fields.
    Only include relevant tables and columns.
    Respond with the JSON plan only.
`))

// BuildPrompt renders the generation prompt.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	// The template is fixed and its fields are plain strings.
	_ = promptTemplate.Execute(&b, in)
	return b.String()
}
