package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"maps"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"slices"
	"strings"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

var headerSanitizer = strings.NewReplacer("\r", "", "\n", "")

// BuildMIME renders email as an RFC 5322 message. Plain messages are a
// single text/plain part; alternatives become multipart/alternative and
// attachments wrap everything in multipart/mixed.
func BuildMIME(email *mailer.Email, from string) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, "From", from)
	writeHeader(&buf, "To", strings.Join(email.To, ", "))
	if len(email.CC) > 0 {
		writeHeader(&buf, "Cc", strings.Join(email.CC, ", "))
	}
	if len(email.BCC) > 0 {
		writeHeader(&buf, "Bcc", strings.Join(email.BCC, ", "))
	}
	if email.ReplyTo != "" {
		writeHeader(&buf, "Reply-To", email.ReplyTo)
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", email.Subject))
	writeHeader(&buf, "MIME-Version", "1.0")
	for _, key := range slices.Sorted(maps.Keys(email.Headers)) {
		writeHeader(&buf, textproto.CanonicalMIMEHeaderKey(key), email.Headers[key])
	}

	if len(email.Alternatives) == 0 && len(email.Attachments) == 0 {
		writeHeader(&buf, "Content-Type", "text/plain; charset=UTF-8")
		writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		if err := writeQuoted(&buf, email.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	header, body, err := bodyPart(email)
	if err != nil {
		return nil, err
	}

	if len(email.Attachments) == 0 {
		for _, key := range slices.Sorted(maps.Keys(header)) {
			writeHeader(&buf, key, header.Get(key))
		}
		buf.WriteString("\r\n")
		buf.Write(body)
		return buf.Bytes(), nil
	}

	mixed := multipart.NewWriter(&buf)
	writeHeader(&buf, "Content-Type", "multipart/mixed; boundary="+mixed.Boundary())
	buf.WriteString("\r\n")

	part, err := mixed.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(body); err != nil {
		return nil, err
	}
	for _, a := range email.Attachments {
		if err := writeAttachment(mixed, a); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// bodyPart returns the body as multipart/alternative, or as a single
// text/plain part when there are no alternatives.
func bodyPart(email *mailer.Email) (textproto.MIMEHeader, []byte, error) {
	var buf bytes.Buffer

	if len(email.Alternatives) == 0 {
		if err := writeQuoted(&buf, email.Body); err != nil {
			return nil, nil, err
		}
		return textproto.MIMEHeader{
			"Content-Type":              {"text/plain; charset=UTF-8"},
			"Content-Transfer-Encoding": {"quoted-printable"},
		}, buf.Bytes(), nil
	}

	alt := multipart.NewWriter(&buf)
	if err := writeTextPart(alt, "text/plain", email.Body); err != nil {
		return nil, nil, err
	}
	for _, a := range email.Alternatives {
		if err := writeTextPart(alt, a.MIMEType, a.Content); err != nil {
			return nil, nil, err
		}
	}
	if err := alt.Close(); err != nil {
		return nil, nil, err
	}
	return textproto.MIMEHeader{
		"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()},
	}, buf.Bytes(), nil
}

func writeTextPart(w *multipart.Writer, mimeType, content string) error {
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mimeType + "; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	return writeQuoted(part, content)
}

func writeAttachment(w *multipart.Writer, a mailer.Attachment) error {
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := "attachment"
	if a.ContentID != "" {
		disposition = "inline"
	}

	header := textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType(disposition, map[string]string{"filename": a.Filename})},
	}
	if a.ContentID != "" {
		header.Set("Content-ID", fmt.Sprintf("<%s>", strings.Trim(a.ContentID, "<>")))
	}

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(a.Content)
	for len(encoded) > 76 {
		if _, err := io.WriteString(part, encoded[:76]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err = io.WriteString(part, encoded)
	return err
}

func writeQuoted(w io.Writer, s string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := io.WriteString(qp, s); err != nil {
		return err
	}
	return qp.Close()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(headerSanitizer.Replace(key))
	buf.WriteString(": ")
	buf.WriteString(headerSanitizer.Replace(value))
	buf.WriteString("\r\n")
}
