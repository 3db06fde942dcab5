package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown_Render(t *testing.T) {
	markdown, err := NewMarkdown()
	require.NoError(t, err)

	rendered, err := markdown.Render("# Heading\n\nSome **bold** text.")
	require.NoError(t, err)
	assert.Contains(t, rendered, "Heading")
	assert.Contains(t, rendered, "bold")
}

func TestMarkdown_RenderEmptyContent(t *testing.T) {
	markdown, err := NewMarkdown()
	require.NoError(t, err)

	_, err = markdown.Render("   ")
	assert.Error(t, err)
}
