package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"log/slog"

	"golang.org/x/net/html"

	"github.com/vehosts/vehosts/internal/artifact"
	"github.com/vehosts/vehosts/internal/domain"
)

// ErrNotRunning indicates the project is not in the running state, so no
// preview document may be assembled.
var ErrNotRunning = errors.New("preview: project is not running")

// ErrEntryMissing indicates the project's entry document is absent from the
// artifact store.
var ErrEntryMissing = errors.New("preview: entry document not found")

// consolePlaceholder is served for running projects whose output is textual
// rather than a web page.
const consolePlaceholder = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Console Project</title>
<style>
body { background: #0d1117; color: #c9d1d9; font-family: monospace; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
.panel { text-align: center; }
.panel h1 { color: #58a6ff; font-size: 1.2rem; }
</style>
</head>
<body>
<div class="panel">
<h1>This project runs in the console</h1>
<p>Open the project logs to see its output.</p>
</div>
</body>
</html>
`

// Service assembles self-contained preview documents by inlining a project's
// local stylesheet and script references.
type Service struct {
	store  artifact.Store
	logger *slog.Logger
}

// New creates a preview service.
func New(store artifact.Store, logger *slog.Logger) Service {
	return Service{store: store, logger: logger}
}

// Assemble produces a single HTML document for the project. The project must
// be running. For non-HTML projects a static console placeholder is returned.
func (s Service) Assemble(ctx context.Context, project *domain.Project) ([]byte, error) {
	if project == nil {
		return nil, fmt.Errorf("preview: project required")
	}
	if project.Status != domain.StatusRunning {
		return nil, ErrNotRunning
	}
	if project.Language != domain.LanguageHTML {
		return []byte(consolePlaceholder), nil
	}

	entryKey := artifact.Key(project.OwnerKey, project.Slug, project.MainFilePath)
	doc, err := s.store.Get(ctx, entryKey)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, ErrEntryMissing
		}
		return nil, fmt.Errorf("fetch entry document: %w", err)
	}

	return s.inline(ctx, project, doc)
}

// inline walks the document token stream, replacing local stylesheet links
// and script references with their fetched contents. Every untouched token is
// copied through verbatim, so repeated assembly of an already inlined
// document is a no-op.
func (s Service) inline(ctx context.Context, project *domain.Project, doc []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(doc))
	z := html.NewTokenizer(bytes.NewReader(doc))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("tokenize entry document: %w", err)
			}
			return out.Bytes(), nil
		}

		raw := append([]byte(nil), z.Raw()...)
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "link":
				if s.inlineStylesheet(ctx, project, tok, &out) {
					continue
				}
			case "script":
				if tt == html.StartTagToken && s.inlineScript(ctx, project, tok, z, &out) {
					continue
				}
			}
		}
		out.Write(raw)
	}
}

// inlineStylesheet reports whether the link tag was replaced by an inline
// style element.
func (s Service) inlineStylesheet(ctx context.Context, project *domain.Project, tok html.Token, out *bytes.Buffer) bool {
	var rel, href string
	for _, attr := range tok.Attr {
		switch attr.Key {
		case "rel":
			rel = strings.TrimSpace(attr.Val)
		case "href":
			href = strings.TrimSpace(attr.Val)
		}
	}
	if !strings.EqualFold(rel, "stylesheet") || !isLocalRef(href) {
		return false
	}
	css, err := s.store.Get(ctx, artifact.Key(project.OwnerKey, project.Slug, href))
	if err != nil {
		s.logger.Warn("stylesheet not inlined", "project_id", project.ID, "href", href, "error", err)
		return false
	}
	out.WriteString("<style>")
	out.Write(css)
	out.WriteString("</style>")
	return true
}

// inlineScript reports whether the script tag, its body, and its closing tag
// were replaced by an inline script element.
func (s Service) inlineScript(ctx context.Context, project *domain.Project, tok html.Token, z *html.Tokenizer, out *bytes.Buffer) bool {
	var src string
	for _, attr := range tok.Attr {
		if attr.Key == "src" {
			src = strings.TrimSpace(attr.Val)
			break
		}
	}
	if !isLocalRef(src) {
		return false
	}
	js, err := s.store.Get(ctx, artifact.Key(project.OwnerKey, project.Slug, src))
	if err != nil {
		s.logger.Warn("script not inlined", "project_id", project.ID, "src", src, "error", err)
		return false
	}
	out.WriteString("<script>")
	out.Write(js)
	out.WriteString("</script>")
	// Discard the original element body up to and including its end tag.
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return true
		}
		if tt == html.EndTagToken {
			name, _ := z.TagName()
			if string(name) == "script" {
				return true
			}
		}
	}
}

// isLocalRef reports whether the reference points at a project file rather
// than an external resource.
func isLocalRef(ref string) bool {
	if ref == "" {
		return false
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return false
	}
	if strings.HasPrefix(ref, "//") {
		return false
	}
	if strings.HasPrefix(lower, "data:") {
		return false
	}
	return true
}
