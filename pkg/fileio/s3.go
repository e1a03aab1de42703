package fileio

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
)

// S3EndpointEnv points the S3 client at a compatible endpoint (MinIO etc).
const S3EndpointEnv = "AUTOMLCLI_S3_ENDPOINT"

// S3API is the subset of *s3.Client used by the cache and by Create.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds a client from the default AWS credential chain.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load AWS config")
	}
	endpoint := os.Getenv(S3EndpointEnv)
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (c *Cache) s3Client(ctx context.Context) (S3API, error) {
	c.s3Once.Do(func() {
		if c.s3 != nil {
			return
		}
		client, err := NewS3Client(ctx)
		if err != nil {
			c.s3Err = err
			return
		}
		c.s3 = client
	})
	return c.s3, c.s3Err
}

func splitS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.Wrapf(err, "parse %s", rawURL)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", errors.Newf("invalid S3 URL %q: expected s3://bucket/key", rawURL)
	}
	return u.Host, key, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound) || errors.As(err, &noSuchBucket)
}

// s3Writer buffers the object and uploads it on Close.
type s3Writer struct {
	ctx    context.Context
	cache  *Cache
	bucket string
	key    string
	buf    bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write to closed S3 object")
	}
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	api, err := w.cache.s3Client(w.ctx)
	if err != nil {
		return err
	}
	body := w.buf.Bytes()
	op := func() error {
		_, err := api.PutObject(w.ctx, &s3.PutObjectInput{
			Bucket: aws.String(w.bucket),
			Key:    aws.String(w.key),
			Body:   bytes.NewReader(body),
		})
		if err != nil && isNotFound(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, w.cache.retryPolicy(w.ctx)); err != nil {
		return errors.Wrapf(err, "upload s3://%s/%s", w.bucket, w.key)
	}
	return nil
}
