package mailer

import (
	"context"
	"errors"
	"fmt"
)

// Tags represents email tags/categories that can be either presence-only
// (using struct{}{}) or key-value pairs (using string values).
// Each transport converts them to its own format.
type Tags map[string]any

// SimpleTags creates presence-only tags from a list of tag names.
func SimpleTags(names ...string) Tags {
	t := make(Tags, len(names))
	for _, n := range names {
		t[n] = struct{}{}
	}
	return t
}

// Recipient formats a name and email into RFC 5322 address format.
// Returns "Name <email>" if name is provided, otherwise just email.
func Recipient(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// MessageKind selects the transport object a spec builds.
type MessageKind int

const (
	// KindUnset means the spec never declared a kind.
	KindUnset MessageKind = iota
	// KindPlain builds a single-part text message.
	KindPlain
	// KindAlternatives builds a message that accepts alternative parts.
	KindAlternatives
)

func (k MessageKind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindAlternatives:
		return "alternatives"
	default:
		return "unset"
	}
}

// ParseMessageKind maps a kind name back to its value.
func ParseMessageKind(s string) (MessageKind, bool) {
	switch s {
	case "plain":
		return KindPlain, true
	case "alternatives", "html", "multipart":
		return KindAlternatives, true
	case "", "unset":
		return KindUnset, true
	default:
		return KindUnset, false
	}
}

// MIMETypeHTML is the content type of the HTML alternative part.
const MIMETypeHTML = "text/html"

// Alternative is an extra representation of the message body.
type Alternative struct {
	Content  string
	MIMEType string
}

// Attachment represents an email attachment.
type Attachment struct {
	Filename    string // Display name for the attachment
	ContentType string // MIME type (e.g., "application/pdf")
	ContentID   string // Optional Content-ID for inline attachments
	Content     []byte // Raw file content
}

// Email is the composed message handed to a transport.
// It is fully resolved: nothing calls back into the spec once it exists.
type Email struct {
	connection   Sender
	Headers      map[string]string // Custom headers
	Tags         Tags              // Transport-specific tags/categories
	Subject      string            // Email subject
	Body         string            // Plain text body
	From         string            // Sender address
	ReplyTo      string            // Reply-to address
	To           []string          // Recipients (at least one)
	CC           []string          // Carbon copy recipients
	BCC          []string          // Blind carbon copy recipients
	Attachments  []Attachment      // File attachments
	Alternatives []Alternative     // Alternative body representations
	kind         MessageKind
}

// Kind reports which transport object was built.
func (m *Email) Kind() MessageKind {
	return m.kind
}

// Connection returns the transport the message was built with, if any.
func (m *Email) Connection() Sender {
	return m.connection
}

// AttachAlternative adds an alternative representation of the body.
// Only alternatives messages accept extra parts.
func (m *Email) AttachAlternative(content, mimeType string) error {
	if m.kind != KindAlternatives {
		return fmt.Errorf("%w: %s", ErrNoAlternatives, m.kind)
	}
	m.Alternatives = append(m.Alternatives, Alternative{Content: content, MIMEType: mimeType})
	return nil
}

// HTML returns the first text/html alternative, or an empty string.
func (m *Email) HTML() string {
	for _, a := range m.Alternatives {
		if a.MIMEType == MIMETypeHTML {
			return a.Content
		}
	}
	return ""
}

// Recipients returns every envelope recipient: to, cc and bcc.
func (m *Email) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.CC)+len(m.BCC))
	out = append(out, m.To...)
	out = append(out, m.CC...)
	return append(out, m.BCC...)
}

// SendOptions are the send-time options resolved for one delivery.
type SendOptions struct {
	// FailSilently swallows delivery errors and reports zero messages sent.
	FailSilently bool
}

// Send delivers the message through its connection, falling back to the
// process default connection. Returns the number of messages sent.
func (m *Email) Send(ctx context.Context, opts SendOptions) (int, error) {
	conn := m.connection
	if conn == nil {
		conn = Defaults().Connection
	}
	if conn == nil {
		return 0, missing(FieldConnection)
	}

	if err := conn.Send(ctx, m); err != nil {
		if opts.FailSilently {
			return 0, nil
		}
		return 0, errors.Join(ErrSendFailed, err)
	}

	return 1, nil
}
