package feedback

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Header describes the interview a report belongs to.
type Header struct {
	SessionID string
	Candidate string
	Position  string
}

// Markdown renders the report as a standalone Markdown document.
func (r *Report) Markdown(h Header) string {
	var builder strings.Builder

	builder.WriteString("# Interview feedback\n\n")
	if h.Candidate != "" {
		fmt.Fprintf(&builder, "- Candidate: %s\n", h.Candidate)
	}
	if h.Position != "" {
		fmt.Fprintf(&builder, "- Position: %s\n", h.Position)
	}
	if h.SessionID != "" {
		fmt.Fprintf(&builder, "- Session: %s\n", h.SessionID)
	}
	fmt.Fprintf(&builder, "- Evaluation: %s\n\n", r.Mode)

	builder.WriteString(r.Text)
	builder.WriteString("\n")

	return builder.String()
}

// HTML renders the report as a complete HTML page.
func (r *Report) HTML(h Header) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Interview feedback",
	})
	return markdown.ToHTML([]byte(r.Markdown(h)), p, renderer)
}

// WriteReport stores the report at path. Files ending in .html or .htm are
// written as HTML, everything else as Markdown. Parent directories are created.
func WriteReport(path string, r *Report, h Header) error {
	if r == nil {
		return errors.New("report is empty")
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("report path is empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory %q: %w", dir, err)
		}
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		data = r.HTML(h)
	default:
		data = []byte(r.Markdown(h))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %q: %w", path, err)
	}

	return nil
}
