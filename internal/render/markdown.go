// Package render provides markdown rendering for assistant replies in the
// terminal client, using Glamour.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"intersectx/internal/logger"
)

// Markdown renders assistant reply markdown to ANSI terminal output.
type Markdown struct {
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a renderer with auto-style detection and a default
// word wrap suited to chat replies.
func NewMarkdown() (*Markdown, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	logger.Debug("Markdown renderer initialized")
	return &Markdown{renderer: renderer}, nil
}

// Render renders markdown content to a string with ANSI escape sequences.
// Empty content is rejected before rendering.
func (m *Markdown) Render(markdown string) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("markdown content cannot be empty")
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}
