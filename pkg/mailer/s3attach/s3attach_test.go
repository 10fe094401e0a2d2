package s3attach

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

type object struct {
	body        string
	contentType string
}

type fakeS3 struct {
	objects map[string]object
	err     error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	out := &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(obj.body))}
	if obj.contentType != "" {
		out.ContentType = aws.String(obj.contentType)
	}
	return out, nil
}

type apiError struct {
	code string
}

func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }
func (e *apiError) Error() string                 { return fmt.Sprintf("api error %s", e.code) }

func testLoader() *Loader {
	return newLoader(&fakeS3{objects: map[string]object{
		"invoices/2024-01.pdf": {body: "%PDF-1.4", contentType: "application/pdf"},
		"logos/brand.png":      {body: "png"},
		"notes/readme":         {body: "plain notes"},
	}}, "bucket", 0)
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	l := testLoader()
	ctx := context.Background()

	t.Run("metadata content type", func(t *testing.T) {
		t.Parallel()
		a, err := l.Load(ctx, Object{Key: "invoices/2024-01.pdf", Filename: "invoice.pdf"})
		require.NoError(t, err)
		require.Equal(t, "invoice.pdf", a.Filename)
		require.Equal(t, "application/pdf", a.ContentType)
		require.Equal(t, []byte("%PDF-1.4"), a.Content)
	})

	t.Run("extension content type and default filename", func(t *testing.T) {
		t.Parallel()
		a, err := l.Load(ctx, Object{Key: "logos/brand.png", ContentID: "logo"})
		require.NoError(t, err)
		require.Equal(t, "brand.png", a.Filename)
		require.Equal(t, "image/png", a.ContentType)
		require.Equal(t, "logo", a.ContentID)
	})

	t.Run("sniffed content type", func(t *testing.T) {
		t.Parallel()
		a, err := l.Load(ctx, Object{Key: "notes/readme"})
		require.NoError(t, err)
		require.Equal(t, "text/plain; charset=utf-8", a.ContentType)
	})

	t.Run("missing object", func(t *testing.T) {
		t.Parallel()
		_, err := l.Load(ctx, Object{Key: "nope"})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLoader_MaxSize(t *testing.T) {
	t.Parallel()

	l := newLoader(&fakeS3{objects: map[string]object{"big.bin": {body: "0123456789"}}}, "bucket", 4)
	_, err := l.Load(context.Background(), Object{Key: "big.bin"})
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestWrapS3Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key code", &apiError{code: "NoSuchKey"}, ErrNotFound},
		{"not found code", &apiError{code: "NotFound"}, ErrNotFound},
		{"access denied", &apiError{code: "AccessDenied"}, ErrAccessDenied},
		{"forbidden", &apiError{code: "Forbidden"}, ErrAccessDenied},
		{"typed no such key", &types.NoSuchKey{}, ErrNotFound},
		{"other", errors.New("boom"), ErrDownload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, wrapS3Error(tt.err, ErrDownload), tt.want)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Bucket: "b"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	l, err := New(Config{Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "http://localhost:9000", PathStyle: true})
	require.NoError(t, err)
	require.Equal(t, int64(DefaultMaxSize), l.maxSize)
}

func TestAttach(t *testing.T) {
	t.Parallel()

	l := testLoader()
	spec := mailer.NewSpec("invoice",
		mailer.Plain(),
		mailer.WithSubject("Your invoice"),
		mailer.WithFrom("billing@example.com"),
		mailer.WithTo("user@example.com"),
		mailer.WithBody("Attached."),
		mailer.WithAttachments(mailer.Attachment{Filename: "terms.txt", Content: []byte("terms")}),
		Attach(l, func(e *mailer.Instance) ([]Object, error) {
			return []Object{{Key: e.Arg(0).(string), Filename: "invoice.pdf"}}, nil
		}),
		AttachKeys(l, "logos/brand.png"),
	)

	msg, err := spec.Instance(context.Background(), "invoices/2024-01.pdf").Message()
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 3)
	require.Equal(t, "terms.txt", msg.Attachments[0].Filename)
	require.Equal(t, "invoice.pdf", msg.Attachments[1].Filename)
	require.Equal(t, "brand.png", msg.Attachments[2].Filename)

	_, err = spec.Instance(context.Background(), "missing.pdf").Message()
	require.ErrorIs(t, err, ErrNotFound)
}
