// Package s3attach loads email attachments from S3-compatible storage.
//
//	loader, err := s3attach.New(s3attach.Config{Bucket: "invoices", ...})
//	invoice := mailer.NewSpec("invoice",
//		s3attach.Attach(loader, func(e *mailer.Instance) ([]s3attach.Object, error) {
//			inv := e.Arg(0).(*Invoice)
//			return []s3attach.Object{{Key: inv.PDFKey, Filename: "invoice.pdf"}}, nil
//		}),
//	)
package s3attach

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrymomot/emailkit/pkg/mailer"
)

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

// DefaultMaxSize caps a single attachment.
const DefaultMaxSize = 10 << 20 // 10MB

var (
	ErrInvalidConfig = errors.New("s3attach: invalid configuration")
	ErrNotFound      = errors.New("s3attach: object not found")
	ErrAccessDenied  = errors.New("s3attach: access denied")
	ErrDownload      = errors.New("s3attach: download failed")
	ErrTooLarge      = errors.New("s3attach: object exceeds size limit")
)

// Config holds S3-compatible storage configuration.
type Config struct {
	Bucket    string `env:"MAILER_S3_BUCKET"`
	AccessKey string `env:"MAILER_S3_ACCESS_KEY"`
	SecretKey string `env:"MAILER_S3_SECRET_KEY"`
	Endpoint  string `env:"MAILER_S3_ENDPOINT"` // MinIO and other S3-compatible services
	Region    string `env:"MAILER_S3_REGION" envDefault:"us-east-1"`
	PathStyle bool   `env:"MAILER_S3_PATH_STYLE"`
	MaxSize   int64  `env:"MAILER_S3_MAX_SIZE"`
}

// objectAPI is the subset of *s3.Client used by Loader.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Object names one stored file to attach.
type Object struct {
	Key       string
	Filename  string // Defaults to the base name of Key
	ContentID string // Set for inline attachments
}

// Loader reads objects from one bucket.
type Loader struct {
	api     objectAPI
	bucket  string
	maxSize int64
}

// New creates a loader with static credentials.
func New(cfg Config) (*Loader, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrInvalidConfig
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	client := s3.New(s3.Options{}, func(o *s3.Options) {
		o.Region = cfg.Region
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		}
	})

	return newLoader(client, cfg.Bucket, cfg.MaxSize), nil
}

func newLoader(api objectAPI, bucket string, maxSize int64) *Loader {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Loader{api: api, bucket: bucket, maxSize: maxSize}
}

// Load downloads obj and returns it as an attachment.
// The content type comes from the object metadata, then the key extension,
// then content sniffing.
func (l *Loader) Load(ctx context.Context, obj Object) (mailer.Attachment, error) {
	out, err := l.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		return mailer.Attachment{}, wrapS3Error(err, ErrDownload)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(io.LimitReader(out.Body, l.maxSize+1))
	if err != nil {
		return mailer.Attachment{}, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if int64(len(content)) > l.maxSize {
		return mailer.Attachment{}, fmt.Errorf("%w: %s", ErrTooLarge, obj.Key)
	}

	filename := obj.Filename
	if filename == "" {
		filename = path.Base(obj.Key)
	}

	return mailer.Attachment{
		Filename:    filename,
		ContentType: contentType(aws.ToString(out.ContentType), obj.Key, content),
		ContentID:   obj.ContentID,
		Content:     content,
	}, nil
}

// LoadAll downloads every object in order.
func (l *Loader) LoadAll(ctx context.Context, objs ...Object) ([]mailer.Attachment, error) {
	out := make([]mailer.Attachment, 0, len(objs))
	for _, obj := range objs {
		a, err := l.Load(ctx, obj)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Attach returns a spec option that appends the objects chosen by fn to the
// inherited attachments. Objects are downloaded when the message is built.
func Attach(l *Loader, fn func(e *mailer.Instance) ([]Object, error)) mailer.Option {
	return mailer.OverrideAttachments(func(next mailer.Hook[[]mailer.Attachment]) mailer.Hook[[]mailer.Attachment] {
		return func(e *mailer.Instance) ([]mailer.Attachment, error) {
			base, err := next(e)
			if err != nil {
				return nil, err
			}
			objs, err := fn(e)
			if err != nil {
				return nil, err
			}
			loaded, err := l.LoadAll(e.Context(), objs...)
			if err != nil {
				return nil, err
			}
			return append(append([]mailer.Attachment{}, base...), loaded...), nil
		}
	})
}

// AttachKeys attaches fixed object keys.
func AttachKeys(l *Loader, keys ...string) mailer.Option {
	objs := make([]Object, 0, len(keys))
	for _, k := range keys {
		objs = append(objs, Object{Key: k})
	}
	return Attach(l, func(*mailer.Instance) ([]Object, error) {
		return objs, nil
	})
}

func contentType(declared, key string, content []byte) string {
	if declared != "" && declared != "binary/octet-stream" {
		return declared
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return http.DetectContentType(content)
}

// wrapS3Error maps S3 errors to sentinel errors.
func wrapS3Error(err error, fallback error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}

	var notFound *types.NoSuchKey
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	return fmt.Errorf("%w: %v", fallback, err)
}
