package mailer

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// Pins are field values baked into a callable at creation time.
// Keys are field keys or declared attribute names.
type Pins map[string]any

// Kwargs are keyword arguments passed when a callable is invoked.
type Kwargs map[string]any

type nameCtxKey struct{}

// WithName returns a context carrying the email name.
func WithName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, nameCtxKey{}, name)
}

// NameFromContext returns the name of the email being built or sent.
func NameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(nameCtxKey{}).(string)
	return name, ok
}

// Callable sends or builds one kind of email with its pins applied.
// A callable is safe for concurrent use: every call creates a fresh instance.
type Callable struct {
	spec *Spec
	name string
	doc  string
}

// AsCallable validates pins against s and returns a callable over a derived
// spec. Unknown keys and values that do not fit their field are rejected
// with an *InvalidOverrideError; s is never modified.
func AsCallable(s *Spec, pins Pins) (*Callable, error) {
	derived := s.copy()
	for _, key := range slices.Sorted(maps.Keys(pins)) {
		if !s.Declares(key) {
			return nil, &InvalidOverrideError{
				Spec:   s.name,
				Key:    key,
				Reason: "as_callable only accepts arguments that are already attributes of the spec",
			}
		}
		if err := derived.fields.set(key, pins[key]); err != nil {
			return nil, &InvalidOverrideError{Spec: s.name, Key: key, Reason: err.Error()}
		}
	}
	derived.finalize()

	return &Callable{spec: derived, name: s.name, doc: s.doc}, nil
}

// MustCallable is like AsCallable but panics on invalid pins.
// Use it for package-level callables.
func MustCallable(s *Spec, pins Pins) *Callable {
	c, err := AsCallable(s, pins)
	if err != nil {
		panic(err)
	}
	return c
}

// AsCallable is shorthand for AsCallable(s, pins).
func (s *Spec) AsCallable(pins Pins) (*Callable, error) {
	return AsCallable(s, pins)
}

// Send builds the message and delivers it. Kwargs values among args are
// passed as keyword arguments. Returns the number of messages sent.
func (c *Callable) Send(ctx context.Context, args ...any) (int, error) {
	return c.instance(ctx, args).Send()
}

// Message builds the message without sending it.
func (c *Callable) Message(ctx context.Context, args ...any) (*Email, error) {
	return c.instance(ctx, args).Message()
}

// Instance returns a fresh instance for inspecting individual accessors.
func (c *Callable) Instance(ctx context.Context, args ...any) *Instance {
	return c.instance(ctx, args)
}

func (c *Callable) instance(ctx context.Context, args []any) *Instance {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.spec.Instance(WithName(ctx, c.name), args...)
}

// Name returns the name of the originating spec.
func (c *Callable) Name() string { return c.name }

// Doc returns the documentation of the originating spec.
func (c *Callable) Doc() string { return c.doc }

// Fields returns the declarations with the pins applied.
func (c *Callable) Fields() Fields { return c.spec.fields.clone() }

func (c *Callable) String() string {
	return fmt.Sprintf("<callable %s>", c.name)
}
