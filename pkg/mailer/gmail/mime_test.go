package gmail

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

func parseMessage(t *testing.T, raw []byte) *mail.Message {
	t.Helper()
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	return msg
}

type part struct {
	Header   textproto.MIMEHeader
	FileName string
	Body     string
}

func readParts(t *testing.T, body io.Reader, contentType string) []part {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(mediaType, "multipart/"))

	var parts []part
	r := multipart.NewReader(body, params["boundary"])
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			return parts
		}
		require.NoError(t, err)
		content, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, part{Header: p.Header, FileName: p.FileName(), Body: string(content)})
	}
}

func TestBuildMIME_Plain(t *testing.T) {
	t.Parallel()

	raw, err := BuildMIME(&mailer.Email{
		Subject: "Héllo",
		Body:    "Hello, world",
		To:      []string{"a@example.com", "b@example.com"},
		CC:      []string{"cc@example.com"},
		ReplyTo: "support@example.com",
		Headers: map[string]string{"x-campaign": "launch\r\nBcc: evil@example.com"},
	}, "Team <team@example.com>")
	require.NoError(t, err)

	msg := parseMessage(t, raw)
	require.Equal(t, "Team <team@example.com>", msg.Header.Get("From"))
	require.Equal(t, "a@example.com, b@example.com", msg.Header.Get("To"))
	require.Equal(t, "cc@example.com", msg.Header.Get("Cc"))
	require.Empty(t, msg.Header.Get("Bcc"))
	require.Equal(t, "support@example.com", msg.Header.Get("Reply-To"))
	require.Equal(t, "launchBcc: evil@example.com", msg.Header.Get("X-Campaign"))

	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	require.Equal(t, "Héllo", subject)

	require.Equal(t, "text/plain; charset=UTF-8", msg.Header.Get("Content-Type"))
	require.Equal(t, "quoted-printable", msg.Header.Get("Content-Transfer-Encoding"))
	body, err := io.ReadAll(msg.Body)
	require.NoError(t, err)
	require.Equal(t, "Hello, world", string(body))
}

func TestBuildMIME_Alternatives(t *testing.T) {
	t.Parallel()

	raw, err := BuildMIME(&mailer.Email{
		Subject:      "Welcome",
		Body:         "Hello",
		To:           []string{"a@example.com"},
		BCC:          []string{"hidden@example.com"},
		Alternatives: []mailer.Alternative{{Content: "<p>Hello</p>", MIMEType: mailer.MIMETypeHTML}},
	}, "team@example.com")
	require.NoError(t, err)

	msg := parseMessage(t, raw)
	require.Equal(t, "hidden@example.com", msg.Header.Get("Bcc"))

	parts := readParts(t, msg.Body, msg.Header.Get("Content-Type"))
	require.Len(t, parts, 2)
	require.Equal(t, "text/plain; charset=UTF-8", parts[0].Header.Get("Content-Type"))
	require.Equal(t, "text/html; charset=UTF-8", parts[1].Header.Get("Content-Type"))
	require.Equal(t, "Hello", parts[0].Body)
	require.Equal(t, "<p>Hello</p>", parts[1].Body)
}

func TestBuildMIME_Attachments(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("pdf-bytes "), 20)
	raw, err := BuildMIME(&mailer.Email{
		Subject:      "Invoice",
		Body:         "See attached",
		To:           []string{"a@example.com"},
		Alternatives: []mailer.Alternative{{Content: "<p>See attached</p>", MIMEType: mailer.MIMETypeHTML}},
		Attachments: []mailer.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Content: content},
			{Filename: "logo.png", ContentID: "logo", Content: []byte("png")},
		},
	}, "team@example.com")
	require.NoError(t, err)

	msg := parseMessage(t, raw)
	require.True(t, strings.HasPrefix(msg.Header.Get("Content-Type"), "multipart/mixed"))

	parts := readParts(t, msg.Body, msg.Header.Get("Content-Type"))
	require.Len(t, parts, 3)
	require.True(t, strings.HasPrefix(parts[0].Header.Get("Content-Type"), "multipart/alternative"))

	require.Equal(t, "application/pdf", parts[1].Header.Get("Content-Type"))
	require.Equal(t, "base64", parts[1].Header.Get("Content-Transfer-Encoding"))
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(parts[1].Body, "\r\n", ""))
	require.NoError(t, err)
	require.Equal(t, content, decoded)
	require.Equal(t, "invoice.pdf", parts[1].FileName)

	require.Equal(t, "application/octet-stream", parts[2].Header.Get("Content-Type"))
	require.Equal(t, "<logo>", parts[2].Header.Get("Content-ID"))
	require.True(t, strings.HasPrefix(parts[2].Header.Get("Content-Disposition"), "inline"))
}

func TestBuildMIME_AttachmentWithoutAlternatives(t *testing.T) {
	t.Parallel()

	raw, err := BuildMIME(&mailer.Email{
		Subject:     "Report",
		Body:        "Attached",
		To:          []string{"a@example.com"},
		Attachments: []mailer.Attachment{{Filename: "report.csv", ContentType: "text/csv", Content: []byte("a,b")}},
	}, "team@example.com")
	require.NoError(t, err)

	msg := parseMessage(t, raw)
	parts := readParts(t, msg.Body, msg.Header.Get("Content-Type"))
	require.Len(t, parts, 2)
	require.Equal(t, "text/plain; charset=UTF-8", parts[0].Header.Get("Content-Type"))

	require.Equal(t, "Attached", parts[0].Body)
}
