package mailer

import (
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// Field keys accepted by pins and spec files.
const (
	FieldSubject        = "subject"
	FieldFrom           = "from_email"
	FieldTo             = "to"
	FieldCC             = "cc"
	FieldBCC            = "bcc"
	FieldReplyTo        = "reply_to"
	FieldBody           = "body"
	FieldTemplateName   = "template_name"
	FieldLayoutTemplate = "layout_template"
	FieldConnection     = "connection"
	FieldAttachments    = "attachments"
	FieldHeaders        = "headers"
	FieldTags           = "tags"
	FieldFailSilently   = "fail_silently"
	FieldMessageKind    = "message_kind"
)

// fieldKeys lists every built-in field in declaration order.
var fieldKeys = []string{
	FieldSubject, FieldFrom, FieldTo, FieldCC, FieldBCC, FieldReplyTo,
	FieldBody, FieldTemplateName, FieldLayoutTemplate, FieldConnection,
	FieldAttachments, FieldHeaders, FieldTags, FieldFailSilently, FieldMessageKind,
}

// FieldKeys returns the keys of the built-in fields.
func FieldKeys() []string {
	return slices.Clone(fieldKeys)
}

// Strings is a list of strings that may be declared as a single string.
type Strings []string

// UnmarshalYAML accepts both a scalar and a sequence.
func (s *Strings) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var one string
		if err := value.Decode(&one); err != nil {
			return err
		}
		*s = toStringsOne(one)
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	default:
		return fmt.Errorf("expected a string or a list of strings, got %s", value.Tag)
	}
}

func toStringsOne(v string) Strings {
	if v == "" {
		return nil
	}
	return Strings{v}
}

// toStrings normalizes a string or a list of strings.
func toStrings(v any) (Strings, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return toStringsOne(val), nil
	case Strings:
		return slices.Clone(val), nil
	case []string:
		return slices.Clone(Strings(val)), nil
	case []any:
		out := make(Strings, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list item %v is %T, not a string", item, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or a list of strings, got %T", v)
	}
}

// Fields are the declarations of a spec. A zero value means unset.
type Fields struct {
	Connection     Sender
	Headers        map[string]string
	Tags           Tags
	Attrs          map[string]any
	Subject        string
	From           string
	ReplyTo        string
	Body           string
	LayoutTemplate string
	To             Strings
	CC             Strings
	BCC            Strings
	TemplateNames  Strings
	Attachments    []Attachment
	Kind           MessageKind
	FailSilently   bool
}

// clone returns a copy that shares no mutable state with f.
func (f Fields) clone() Fields {
	f.Headers = maps.Clone(f.Headers)
	f.Tags = maps.Clone(f.Tags)
	f.Attrs = maps.Clone(f.Attrs)
	f.To = slices.Clone(f.To)
	f.CC = slices.Clone(f.CC)
	f.BCC = slices.Clone(f.BCC)
	f.TemplateNames = slices.Clone(f.TemplateNames)
	f.Attachments = slices.Clone(f.Attachments)
	return f
}

// set assigns a value by key. A nil value unsets the field.
// Returns a reason when the value does not fit the field.
func (f *Fields) set(key string, v any) error {
	var err error
	switch key {
	case FieldSubject:
		f.Subject, err = toString(v)
	case FieldFrom:
		f.From, err = toString(v)
	case FieldReplyTo:
		f.ReplyTo, err = toString(v)
	case FieldBody:
		f.Body, err = toString(v)
	case FieldLayoutTemplate:
		f.LayoutTemplate, err = toString(v)
	case FieldTo:
		f.To, err = toStrings(v)
	case FieldCC:
		f.CC, err = toStrings(v)
	case FieldBCC:
		f.BCC, err = toStrings(v)
	case FieldTemplateName:
		f.TemplateNames, err = toStrings(v)
	case FieldConnection:
		f.Connection, err = toSender(v)
	case FieldAttachments:
		f.Attachments, err = toAttachments(v)
	case FieldHeaders:
		f.Headers, err = toHeaders(v)
	case FieldTags:
		f.Tags, err = toTags(v)
	case FieldFailSilently:
		f.FailSilently, err = toBool(v)
	case FieldMessageKind:
		f.Kind, err = toKind(v)
	default:
		if f.Attrs == nil {
			f.Attrs = make(map[string]any)
		}
		f.Attrs[key] = v
	}
	return err
}

func toString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch val := v.(type) {
	case nil:
		return false, nil
	case bool:
		return val, nil
	default:
		return false, fmt.Errorf("expected a bool, got %T", v)
	}
}

func toSender(v any) (Sender, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case Sender:
		return val, nil
	default:
		return nil, fmt.Errorf("expected a Sender, got %T", v)
	}
}

func toKind(v any) (MessageKind, error) {
	switch val := v.(type) {
	case nil:
		return KindUnset, nil
	case MessageKind:
		return val, nil
	case string:
		kind, ok := ParseMessageKind(val)
		if !ok {
			return KindUnset, fmt.Errorf("unknown message kind %q", val)
		}
		return kind, nil
	default:
		return KindUnset, fmt.Errorf("expected a message kind, got %T", v)
	}
}

func toAttachments(v any) ([]Attachment, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case Attachment:
		return []Attachment{val}, nil
	case []Attachment:
		return slices.Clone(val), nil
	default:
		return nil, fmt.Errorf("expected attachments, got %T", v)
	}
}

func toHeaders(v any) (map[string]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return maps.Clone(val), nil
	case map[string]any:
		out := make(map[string]string, len(val))
		for k, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("header %q is %T, not a string", k, item)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected headers map, got %T", v)
	}
}

func toTags(v any) (Tags, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case Tags:
		return maps.Clone(val), nil
	case map[string]any:
		return Tags(maps.Clone(val)), nil
	case []string:
		return SimpleTags(val...), nil
	case []any:
		names, err := toStrings(val)
		if err != nil {
			return nil, err
		}
		return SimpleTags(names...), nil
	default:
		return nil, fmt.Errorf("expected tags, got %T", v)
	}
}
