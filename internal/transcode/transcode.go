// Package transcode converts markup between dialects, either through an
// external filter process or in-process.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Dialects understood by the migration.
const (
	HTML      = "html"
	Markdown  = "markdown"
	Textile   = "textile"
	MediaWiki = "mediawiki"
)

// ErrUnsupported is returned for a dialect pair nobody handles.
var ErrUnsupported = errors.New("unsupported dialect pair")

// Transcoder converts text from one dialect to another.
type Transcoder interface {
	Transcode(ctx context.Context, from, to, text string) (string, error)
}

// ExitError reports a filter process that ran but failed.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("transcoder exited with code %d: %s", e.Code, strings.TrimSpace(e.Stderr))
}

// Pandoc runs an external filter invoked as `<command> --from X --to Y`.
type Pandoc struct {
	Command string
}

// NewPandoc creates a filter runner for command.
func NewPandoc(command string) *Pandoc {
	return &Pandoc{Command: command}
}

// Transcode writes text to the child's stdin, closes it, and collects stdout
// and stderr until the process exits.
func (p *Pandoc) Transcode(ctx context.Context, from, to, text string) (string, error) {
	cmd := exec.CommandContext(ctx, p.Command, "--from", from, "--to", to)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", fmt.Errorf("failed to start transcoder %s: %w", p.Command, err)
	}
	return stdout.String(), nil
}

// Goldmark renders Markdown to HTML in-process.
type Goldmark struct {
	md goldmark.Markdown
}

// NewGoldmark creates a Markdown renderer with GFM tables and raw HTML
// passthrough, since stories mix both.
func NewGoldmark() *Goldmark {
	return &Goldmark{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Transcode only handles markdown to html.
func (g *Goldmark) Transcode(_ context.Context, from, to, text string) (string, error) {
	if from != Markdown || to != HTML {
		return "", fmt.Errorf("%w: goldmark %s->%s", ErrUnsupported, from, to)
	}
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// Chain routes each dialect pair to a Transcoder, falling back to Default.
// Identical dialects pass through untouched.
type Chain struct {
	Default Transcoder
	routes  map[string]Transcoder
}

// NewChain creates a Chain with a fallback transcoder.
func NewChain(def Transcoder) *Chain {
	return &Chain{Default: def, routes: make(map[string]Transcoder)}
}

// Route registers t for the from->to pair.
func (c *Chain) Route(from, to string, t Transcoder) *Chain {
	c.routes[from+"->"+to] = t
	return c
}

// Transcode dispatches to the registered route.
func (c *Chain) Transcode(ctx context.Context, from, to, text string) (string, error) {
	if from == to {
		return text, nil
	}
	if t, ok := c.routes[from+"->"+to]; ok {
		return t.Transcode(ctx, from, to, text)
	}
	if c.Default == nil {
		return "", fmt.Errorf("%w: %s->%s", ErrUnsupported, from, to)
	}
	return c.Default.Transcode(ctx, from, to, text)
}

// Func adapts a plain function to Transcoder.
type Func func(ctx context.Context, from, to, text string) (string, error)

// Transcode calls f.
func (f Func) Transcode(ctx context.Context, from, to, text string) (string, error) {
	return f(ctx, from, to, text)
}

// Identity returns text unchanged for any dialect pair.
type Identity struct{}

// Transcode returns text.
func (Identity) Transcode(_ context.Context, _, _, text string) (string, error) {
	return text, nil
}
