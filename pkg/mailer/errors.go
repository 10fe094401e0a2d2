package mailer

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingConfiguration indicates a required field never resolved to a value.
	ErrMissingConfiguration = errors.New("missing email configuration")

	// ErrInvalidOverride indicates a pinned field that the spec does not declare
	// or a value that does not fit the field.
	ErrInvalidOverride = errors.New("invalid email override")

	// ErrTemplateNotFound indicates none of the candidate templates exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrLayoutNotFound indicates none of the candidate layouts exist.
	ErrLayoutNotFound = errors.New("layout not found")

	// ErrRenderFailed indicates template rendering failed.
	ErrRenderFailed = errors.New("failed to render template")

	// ErrInvalidFrontmatter indicates invalid YAML frontmatter.
	ErrInvalidFrontmatter = errors.New("invalid frontmatter")

	// ErrUnknownExtension indicates a Markdown extension name that the renderer does not know.
	ErrUnknownExtension = errors.New("unknown markdown extension")

	// ErrNoAlternatives indicates an alternative part was attached to a plain message.
	ErrNoAlternatives = errors.New("message kind does not support alternatives")

	// ErrSendFailed indicates email sending failed.
	ErrSendFailed = errors.New("failed to send email")

	// ErrUnknownEmail indicates a registry lookup for a name that was never registered.
	ErrUnknownEmail = errors.New("unknown email")

	// ErrDuplicateEmail indicates a second registration under the same name.
	ErrDuplicateEmail = errors.New("email already registered")
)

// MissingConfigError reports the field that could not be resolved.
type MissingConfigError struct {
	Field string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("%s: no `%s` provided", ErrMissingConfiguration, e.Field)
}

func (e *MissingConfigError) Unwrap() error {
	return ErrMissingConfiguration
}

func missing(field string) error {
	return &MissingConfigError{Field: field}
}

// InvalidOverrideError reports a rejected pin.
type InvalidOverrideError struct {
	Spec   string
	Key    string
	Reason string
}

func (e *InvalidOverrideError) Error() string {
	return fmt.Sprintf("%s: %s() received an invalid keyword %q: %s", ErrInvalidOverride, e.Spec, e.Key, e.Reason)
}

func (e *InvalidOverrideError) Unwrap() error {
	return ErrInvalidOverride
}
