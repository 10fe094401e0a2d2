package queue

import (
	"encoding/json"
	"errors"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

// JobKind is the River job kind of email deliveries.
const JobKind = "mailer:send"

type sendArgs struct {
	Email     string          `json:"email"`
	UniqueKey string          `json:"unique_key,omitempty" river:"unique"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Kwargs    mailer.Kwargs   `json:"kwargs,omitempty"`
}

func (sendArgs) Kind() string {
	return JobKind
}

// Binder turns a job payload into positional arguments for the callable.
type Binder func(payload json.RawMessage) ([]any, error)

// Bind decodes the payload into P and passes it as the only argument.
func Bind[P any]() Binder {
	return func(raw json.RawMessage) ([]any, error) {
		var p P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, errors.Join(ErrInvalidPayload, err)
			}
		}
		return []any{p}, nil
	}
}

// bindAny passes the generic JSON value as the only argument, or no
// arguments for an empty payload.
func bindAny(raw json.RawMessage) ([]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	return []any{v}, nil
}
