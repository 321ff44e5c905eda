package api

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/randalmurphal/socialflow/platform"
	"github.com/randalmurphal/socialflow/workflow"
)

// markdown renders draft bodies. Raw HTML in a draft is dropped.
var markdown = goldmark.New(
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

var previewPage = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 40em; margin: 2em auto; }
.meta { color: #666; font-size: 0.9em; }
.over { color: #b00; }
</style>
</head>
<body>
<p class="meta">{{.Platform}} &middot; {{.Status}} &middot; draft {{.Attempt}} of {{.MaxAttempts}}</p>
<article>{{.Body}}</article>
<p class="meta{{if .OverLimit}} over{{end}}">{{.Length}}/{{.MaxLength}} characters</p>
{{if .PublishedURL}}<p><a href="{{.PublishedURL}}">{{.PublishedURL}}</a></p>{{end}}
</body>
</html>
`))

type previewData struct {
	Title        string
	Platform     string
	Status       workflow.Status
	Attempt      int
	MaxAttempts  int
	Body         template.HTML
	Length       int
	MaxLength    int
	OverLimit    bool
	PublishedURL string
}

// RenderPreview converts a draft's rendered text to an HTML fragment.
func RenderPreview(d workflow.Draft) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(d.RenderedText()), &buf); err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Preview renders the current draft as an HTML page.
// GET /posts/{id}/preview
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	out, err := h.runner.Inspect(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeRunError(w, "Failed to load post", err)
		return
	}
	s := out.State
	if s.Draft == nil {
		h.writeError(w, http.StatusNotFound, "no_draft", "Post has no draft yet", string(s.Status))
		return
	}

	body, err := RenderPreview(*s.Draft)
	if err != nil {
		h.writeRunError(w, "Failed to render preview", err)
		return
	}
	data := previewData{
		Title:        fmt.Sprintf("%s post: %s", s.Platform, s.Topic),
		Platform:     string(s.Platform),
		Status:       s.Status,
		Attempt:      s.AttemptCount,
		MaxAttempts:  s.MaxAttempts,
		Body:         body,
		Length:       s.Draft.Length(),
		PublishedURL: s.PublishedURL,
	}
	if pol, err := platform.Lookup(s.Platform); err == nil {
		data.MaxLength = pol.MaxLength
		data.OverLimit = data.Length > pol.MaxLength
	}

	var page bytes.Buffer
	if err := previewPage.Execute(&page, data); err != nil {
		h.writeRunError(w, "Failed to render preview", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = page.WriteTo(w)
}
