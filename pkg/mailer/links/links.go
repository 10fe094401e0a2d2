// Package links builds absolute URLs and signed token links for emails.
//
//	urls, _ := links.New("https://app.example.com")
//	tokens := links.NewTokens(links.TokenConfig{Secret: secret, TTL: 24 * time.Hour})
//
//	reset := mailer.NewSpec("password_reset",
//		links.WithTokenURL(urls, tokens, "ResetURL", "/reset/{uid}/{token}", "password_reset", links.ArgID(0)),
//	)
package links

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

// Placeholders filled by WithTokenURL when the pattern declares them.
const (
	ParamUID   = "uid"
	ParamToken = "token"
)

var (
	ErrInvalidBaseURL = errors.New("links: base URL must be absolute")
	ErrMissingParam   = errors.New("links: missing path parameter")
	ErrInvalidSubject = errors.New("links: unsupported token subject")
)

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Config holds the public base URL of the application.
type Config struct {
	BaseURL string `env:"MAILER_BASE_URL"`
}

// URLs builds absolute URLs against a base URL.
type URLs struct {
	base *url.URL
}

// New parses baseURL, which must carry a scheme and a host.
func New(baseURL string) (*URLs, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Join(ErrInvalidBaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	return &URLs{base: u}, nil
}

// Absolute resolves location against the base URL. Absolute locations are
// returned unchanged.
func (u *URLs) Absolute(location string) (string, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return u.base.ResolveReference(ref).String(), nil
}

// Path fills {name} placeholders of pattern with path-escaped params.
func Path(pattern string, params map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(pattern, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return url.PathEscape(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %v", ErrMissingParam, missing)
	}
	return out, nil
}

// Reverse fills pattern and resolves it against the base URL.
func (u *URLs) Reverse(pattern string, params map[string]string) (string, error) {
	p, err := Path(pattern, params)
	if err != nil {
		return "", err
	}
	return u.Absolute(p)
}

// SubjectFunc identifies whom a token link is for.
type SubjectFunc func(e *mailer.Instance) (string, error)

// ArgID uses positional argument i as the token subject. Strings and
// fmt.Stringer values are used as is, integers are encoded in base 36 and
// values with an ID() string method use that.
func ArgID(i int) SubjectFunc {
	return func(e *mailer.Instance) (string, error) {
		switch v := e.Arg(i).(type) {
		case string:
			return v, nil
		case interface{ ID() string }:
			return v.ID(), nil
		case fmt.Stringer:
			return v.String(), nil
		case int:
			return strconv.FormatInt(int64(v), 36), nil
		case int64:
			return strconv.FormatInt(v, 36), nil
		case uint64:
			return strconv.FormatUint(v, 36), nil
		default:
			return "", fmt.Errorf("%w: %T", ErrInvalidSubject, v)
		}
	}
}

// WithAbsoluteURL adds the absolute form of location to the context data
// under key.
func WithAbsoluteURL(u *URLs, key, location string) mailer.Option {
	return mailer.ExtendContext(func(_ *mailer.Instance, data mailer.Data) error {
		abs, err := u.Absolute(location)
		if err != nil {
			return err
		}
		data[key] = abs
		return nil
	})
}

// tokenLink identifies one signed link within an instance.
type tokenLink struct {
	key, pattern, purpose string
}

// WithTokenURL adds a signed link to the context data under key. The
// pattern's {uid} and {token} placeholders are filled with the subject and
// a token for purpose. The link is signed once per instance, so every body
// of a message carries the same token.
func WithTokenURL(u *URLs, t *Tokens, key, pattern, purpose string, subject SubjectFunc) mailer.Option {
	return mailer.ExtendContext(func(e *mailer.Instance, data mailer.Data) error {
		link, err := e.Memo(tokenLink{key: key, pattern: pattern, purpose: purpose}, func() (any, error) {
			uid, err := subject(e)
			if err != nil {
				return nil, err
			}
			token, err := t.Generate(uid, purpose)
			if err != nil {
				return nil, err
			}
			return u.Reverse(pattern, map[string]string{ParamUID: uid, ParamToken: token})
		})
		if err != nil {
			return err
		}
		data[key] = link
		return nil
	})
}
