package mailer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		metadata map[string]any
		body     string
	}{
		{
			name:     "frontmatter and body",
			content:  "---\nSubject: Welcome\nAuthor: System\n---\n# Hello\n\nBody.\n",
			metadata: map[string]any{"Subject": "Welcome", "Author": "System"},
			body:     "# Hello\n\nBody.\n",
		},
		{
			name:     "no frontmatter",
			content:  "# Hello\n\nJust markdown.",
			metadata: map[string]any{},
			body:     "# Hello\n\nJust markdown.",
		},
		{
			name:     "empty frontmatter",
			content:  "---\n---\nBody.",
			metadata: map[string]any{},
			body:     "Body.",
		},
		{
			name:     "blank frontmatter",
			content:  "---\n\n---\nBody.",
			metadata: map[string]any{},
			body:     "Body.",
		},
		{
			name:     "windows line endings",
			content:  "---\r\nSubject: Test\r\n---\r\nBody",
			metadata: map[string]any{"Subject": "Test"},
			body:     "Body",
		},
		{
			name:     "empty body",
			content:  "---\nSubject: Test\n---\n",
			metadata: map[string]any{"Subject": "Test"},
			body:     "",
		},
		{
			name:     "delimiters inside the body",
			content:  "---\nSubject: Code\n---\nExample:\n\n```\n---\nkey: value\n---\n```\n",
			metadata: map[string]any{"Subject": "Code"},
			body:     "Example:\n\n```\n---\nkey: value\n---\n```\n",
		},
		{
			name:     "typed values",
			content:  "---\nOrderID: 12345\nAmount: 99.99\nTags: [a, b]\n---\nBody",
			metadata: map[string]any{"OrderID": 12345, "Amount": 99.99, "Tags": []any{"a", "b"}},
			body:     "Body",
		},
		{
			name:     "empty content",
			content:  "",
			metadata: map[string]any{},
			body:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tmpl, err := ParseTemplate([]byte(tt.content))
			require.NoError(t, err)
			require.Equal(t, tt.metadata, tmpl.Metadata)
			require.Equal(t, tt.body, tmpl.Body)
		})
	}
}

func TestParseTemplate_Invalid(t *testing.T) {
	t.Parallel()

	for name, content := range map[string]string{
		"missing closing delimiter":   "---\nSubject: Test\nBody",
		"nothing after the delimiter": "---",
		"invalid yaml":                "---\nSubject: [unclosed\n---\nBody",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tmpl, err := ParseTemplate([]byte(content))
			require.ErrorIs(t, err, ErrInvalidFrontmatter)
			require.Nil(t, tmpl)
		})
	}
}
