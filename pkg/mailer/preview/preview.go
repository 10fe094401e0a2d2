// Package preview serves built emails over HTTP for local inspection.
//
//	r := chi.NewRouter()
//	r.Mount("/_emails", preview.New(registry,
//		preview.WithSample("welcome", func(r *http.Request) ([]any, error) {
//			return []any{&User{Name: "Ann", Email: "ann@example.com"}}, nil
//		}),
//	))
//
// Routes:
//
//	GET /              list of registered emails
//	GET /{name}        built message as JSON
//	GET /{name}/html   HTML body
//	GET /{name}/text   plain body
//
// Query parameters are passed to the callable as keyword arguments. Messages
// are built, never sent.
package preview

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/emailkit/pkg/logger"
	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

// HeaderPreviewID identifies one preview build in logs and responses.
const HeaderPreviewID = "X-Preview-Id"

// SampleFunc returns the positional arguments used to build a preview.
type SampleFunc func(r *http.Request) ([]any, error)

// Option configures the handler.
type Option func(*handler)

// WithSample sets the sample arguments of the named email.
func WithSample(name string, fn SampleFunc) Option {
	return func(h *handler) {
		h.samples[name] = fn
	}
}

// WithLogger sets the logger for build failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *handler) {
		if l != nil {
			h.logger = l
		}
	}
}

type handler struct {
	registry *mailer.Registry
	samples  map[string]SampleFunc
	logger   *slog.Logger
}

// Summary describes one registered email.
type Summary struct {
	Name string `json:"name"`
	Doc  string `json:"doc,omitempty"`
}

// Message is the JSON form of a built email.
type Message struct {
	Headers     map[string]string `json:"headers,omitempty"`
	Tags        mailer.Tags       `json:"tags,omitempty"`
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Kind        string            `json:"kind"`
	Subject     string            `json:"subject"`
	From        string            `json:"from"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Text        string            `json:"text"`
	HTML        string            `json:"html,omitempty"`
	To          []string          `json:"to"`
	CC          []string          `json:"cc,omitempty"`
	BCC         []string          `json:"bcc,omitempty"`
	Attachments []string          `json:"attachments,omitempty"`
}

// NewMessage converts a built email into its JSON form.
func NewMessage(id, name string, msg *mailer.Email) Message {
	attachments := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, a.Filename)
	}

	return Message{
		ID:          id,
		Name:        name,
		Kind:        msg.Kind().String(),
		Subject:     msg.Subject,
		From:        msg.From,
		ReplyTo:     msg.ReplyTo,
		To:          msg.To,
		CC:          msg.CC,
		BCC:         msg.BCC,
		Headers:     msg.Headers,
		Tags:        msg.Tags,
		Text:        msg.Body,
		HTML:        msg.HTML(),
		Attachments: attachments,
	}
}

// New returns a chi router serving previews of the callables in reg.
func New(reg *mailer.Registry, opts ...Option) chi.Router {
	h := &handler{
		registry: reg,
		samples:  make(map[string]SampleFunc),
		logger:   logger.NewNope(),
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Route("/{name}", func(r chi.Router) {
		r.Get("/", h.message)
		r.Get("/html", h.html)
		r.Get("/text", h.text)
	})
	return r
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	out := make([]Summary, 0, len(names))
	for _, name := range names {
		c, err := h.registry.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, Summary{Name: name, Doc: c.Doc()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) message(w http.ResponseWriter, r *http.Request) {
	id, msg, ok := h.build(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, NewMessage(id, chi.URLParam(r, "name"), msg))
}

func (h *handler) html(w http.ResponseWriter, r *http.Request) {
	_, msg, ok := h.build(w, r)
	if !ok {
		return
	}
	body := msg.HTML()
	if body == "" {
		writeError(w, http.StatusNotFound, "email has no HTML body")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (h *handler) text(w http.ResponseWriter, r *http.Request) {
	_, msg, ok := h.build(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(msg.Body))
}

// build resolves the callable and builds its message. It writes the error
// response itself and reports whether the caller should continue.
func (h *handler) build(w http.ResponseWriter, r *http.Request) (string, *mailer.Email, bool) {
	name := chi.URLParam(r, "name")
	id := uuid.NewString()
	w.Header().Set(HeaderPreviewID, id)

	c, err := h.registry.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return id, nil, false
	}

	var args []any
	if sample, ok := h.samples[name]; ok {
		if args, err = sample(r); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return id, nil, false
		}
	}
	if query := r.URL.Query(); len(query) > 0 {
		kwargs := make(mailer.Kwargs, len(query))
		for key := range query {
			kwargs[key] = query.Get(key)
		}
		args = append(args, kwargs)
	}

	msg, err := c.Message(r.Context(), args...)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "email preview failed",
			slog.String("email", name),
			slog.String("preview_id", id),
			slog.Any("error", err),
		)
		writeError(w, statusFor(err), err.Error())
		return id, nil, false
	}
	return id, msg, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, mailer.ErrMissingConfiguration),
		errors.Is(err, mailer.ErrInvalidOverride):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mailer.ErrTemplateNotFound),
		errors.Is(err, mailer.ErrLayoutNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
