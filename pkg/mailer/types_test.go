package mailer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSimpleTags_CreatesPresenceOnlyTags(t *testing.T) {
	t.Parallel()

	tags := SimpleTags("welcome", "onboarding")

	require.Len(t, tags, 2)
	require.Equal(t, struct{}{}, tags["welcome"])
	require.Equal(t, struct{}{}, tags["onboarding"])

	require.NotNil(t, SimpleTags())
	require.Empty(t, SimpleTags())
}

func TestRecipient(t *testing.T) {
	t.Parallel()

	require.Equal(t, "John Doe <john@example.com>", Recipient("John Doe", "john@example.com"))
	require.Equal(t, "john@example.com", Recipient("", "john@example.com"))
}

func TestMessageKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want MessageKind
		ok   bool
	}{
		{"plain", KindPlain, true},
		{"alternatives", KindAlternatives, true},
		{"html", KindAlternatives, true},
		{"", KindUnset, true},
		{"fancy", KindUnset, false},
	}
	for _, tt := range tests {
		got, ok := ParseMessageKind(tt.in)
		require.Equal(t, tt.ok, ok, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	require.Equal(t, "alternatives", KindAlternatives.String())
	require.Equal(t, "unset", KindUnset.String())
}

func TestEmail_Recipients(t *testing.T) {
	t.Parallel()

	email := &Email{
		To:  []string{"to@example.com"},
		CC:  []string{"cc@example.com"},
		BCC: []string{"bcc@example.com"},
	}

	require.Equal(t, []string{"to@example.com", "cc@example.com", "bcc@example.com"}, email.Recipients())
}

func TestEmail_HTML(t *testing.T) {
	t.Parallel()

	email := &Email{Alternatives: []Alternative{
		{Content: "# md", MIMEType: "text/markdown"},
		{Content: "<p>hi</p>", MIMEType: MIMETypeHTML},
	}}
	require.Equal(t, "<p>hi</p>", email.HTML())
	require.Empty(t, (&Email{}).HTML())
}

func TestStrings_UnmarshalYAML(t *testing.T) {
	t.Parallel()

	var doc struct {
		One  Strings `yaml:"one"`
		Many Strings `yaml:"many"`
	}
	err := yaml.Unmarshal([]byte("one: a@example.com\nmany: [b@example.com, c@example.com]\n"), &doc)
	require.NoError(t, err)
	require.Equal(t, Strings{"a@example.com"}, doc.One)
	require.Equal(t, Strings{"b@example.com", "c@example.com"}, doc.Many)

	err = yaml.Unmarshal([]byte("one: {a: b}\n"), &doc)
	require.Error(t, err)
}

func TestFields_Set(t *testing.T) {
	t.Parallel()

	var f Fields
	require.NoError(t, f.set(FieldCC, []any{"a@example.com", "b@example.com"}))
	require.Equal(t, Strings{"a@example.com", "b@example.com"}, f.CC)

	require.NoError(t, f.set(FieldMessageKind, "html"))
	require.Equal(t, KindAlternatives, f.Kind)

	require.NoError(t, f.set(FieldHeaders, map[string]any{"X-A": "1"}))
	require.Equal(t, map[string]string{"X-A": "1"}, f.Headers)

	require.NoError(t, f.set(FieldTags, []string{"a"}))
	require.Equal(t, SimpleTags("a"), f.Tags)

	require.NoError(t, f.set(FieldFailSilently, true))
	require.True(t, f.FailSilently)

	require.NoError(t, f.set(FieldCC, nil))
	require.Nil(t, f.CC)

	require.Error(t, f.set(FieldMessageKind, "fancy"))
	require.Error(t, f.set(FieldHeaders, map[string]any{"X-A": 1}))
	require.Error(t, f.set(FieldTo, []any{"a@example.com", 2}))
	require.Error(t, f.set(FieldConnection, "smtp"))
	require.Error(t, f.set(FieldFailSilently, "yes"))
}
