package transcript

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer turns transcripts into HTML. Raw HTML inside messages is not passed through.
type Renderer struct {
	md   goldmark.Markdown
	page *template.Template
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<main class="transcript">
<h1>{{.Title}}</h1>
{{range .Entries}}<article class="entry entry-{{.Kind}}" id="m-{{.ID}}">{{.HTML}}</article>
{{end}}</main>
</body>
</html>
`

type renderedEntry struct {
	ID   string
	Kind Kind
	HTML template.HTML
}

// NewRenderer creates a GitHub-flavored markdown renderer
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		page: template.Must(template.New("share").Parse(pageTemplate)),
	}
}

// Markdown renders one message body
func (r *Renderer) Markdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// RenderPage writes a standalone read-only page for a transcript
func (r *Renderer) RenderPage(w io.Writer, title string, entries []Entry) error {
	rendered := make([]renderedEntry, 0, len(entries))
	for _, e := range entries {
		body, err := r.Markdown(e.Value())
		if err != nil {
			return err
		}
		rendered = append(rendered, renderedEntry{ID: e.ID, Kind: e.Kind, HTML: body})
	}
	return r.page.Execute(w, struct {
		Title   string
		Entries []renderedEntry
	}{Title: title, Entries: rendered})
}
