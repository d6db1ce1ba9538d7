// Package publish uploads generated bundles to S3.
//
// Objects are written under content-addressed keys with immutable cache
// headers, so a published key never changes meaning:
//
//	awsCfg, _ := config.LoadDefaultConfig(ctx)
//	p := publish.New(s3.NewFromConfig(awsCfg), "my-bucket", "bundles/")
//	key, err := p.Publish(ctx, "main.1a2b3c4d.js", result)
package publish

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/kiln/internal/build"
	"github.com/vango-dev/kiln/internal/config"
	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/internal/logging"
	"github.com/vango-dev/kiln/pkg/bundle"
)

const (
	// ImmutableCacheControl is set on every published object.
	ImmutableCacheControl = "public, max-age=31536000, immutable"

	contentTypeJS   = "application/javascript; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// PutObjectAPI is the subset of *s3.Client used by the publisher.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher writes bundles to one bucket under a key prefix.
type Publisher struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger used for upload events.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logging.OrDiscard(l) }
}

// New creates a publisher. A non-empty prefix gets a trailing slash.
func New(client PutObjectAPI, bucket, prefix string, opts ...Option) *Publisher {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	p := &Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.TrimPrefix(prefix, "/"),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig builds a publisher from the publish section of kiln.json
// using the default AWS credential chain.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Publisher, error) {
	if cfg.Publish.Bucket == "" {
		return nil, errors.New(errors.CodePublishFailed).
			WithDetail("no bucket configured").
			WithSuggestion(`Set "publish.bucket" in kiln.json`)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Publish.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Publish.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.New(errors.CodePublishFailed).WithDetail("loading AWS config").Wrap(err)
	}

	return New(s3.NewFromConfig(awsCfg), cfg.Publish.Bucket, cfg.Publish.Prefix, opts...), nil
}

// Key returns the object key for name.
func (p *Publisher) Key(name string) string {
	return p.prefix + strings.TrimPrefix(name, "/")
}

// Publish uploads res under name and returns its key. When the bundle has
// a source map it is uploaded first to key+".map" and the code's trailer
// is pointed at it.
func (p *Publisher) Publish(ctx context.Context, name string, res *bundle.Result) (string, error) {
	key := p.Key(name)
	meta := map[string]string{
		"hash":  res.Hash,
		"entry": res.Entry,
	}

	code := res.Code
	if res.Map != "" {
		mapKey := key + ".map"
		if err := p.put(ctx, mapKey, []byte(res.Map), contentTypeJSON, meta); err != nil {
			return "", err
		}
		code = bundle.LinkSourceMap(code, path.Base(mapKey))
	}

	if err := p.put(ctx, key, []byte(code), contentTypeJS, meta); err != nil {
		return "", err
	}
	return key, nil
}

// PublishBuild uploads every file of a production build, then its
// manifest. It returns the uploaded keys in upload order.
func (p *Publisher) PublishBuild(ctx context.Context, res *build.Result, manifestPath string) ([]string, error) {
	var keys []string
	for _, f := range res.Files {
		names := []string{f.Name}
		if f.Map != "" {
			names = []string{f.Map, f.Name}
		}
		for _, name := range names {
			data, err := os.ReadFile(filepath.Join(res.Public, filepath.FromSlash(name)))
			if err != nil {
				return keys, errors.New(errors.CodePublishFailed).Wrap(err)
			}
			ct := contentTypeJS
			if strings.HasSuffix(name, ".map") {
				ct = contentTypeJSON
			}
			key := p.Key(name)
			if err := p.put(ctx, key, data, ct, map[string]string{"hash": f.Hash, "entry": f.Entry}); err != nil {
				return keys, err
			}
			keys = append(keys, key)
		}
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return keys, errors.New(errors.CodePublishFailed).Wrap(err)
	}
	key := p.Key(filepath.Base(manifestPath))
	if err := p.putObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentTypeJSON),
		CacheControl: aws.String("no-cache"),
	}); err != nil {
		return keys, err
	}
	return append(keys, key), nil
}

func (p *Publisher) put(ctx context.Context, key string, body []byte, contentType string, meta map[string]string) error {
	return p.putObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(ImmutableCacheControl),
		Metadata:     meta,
	})
}

func (p *Publisher) putObject(ctx context.Context, in *s3.PutObjectInput) error {
	if _, err := p.client.PutObject(ctx, in); err != nil {
		return errors.New(errors.CodePublishFailed).
			WithDetailf("s3://%s/%s", p.bucket, aws.ToString(in.Key)).
			Wrap(err)
	}
	p.logger.InfoContext(ctx, "object published",
		"bucket", p.bucket,
		"key", aws.ToString(in.Key),
	)
	return nil
}
