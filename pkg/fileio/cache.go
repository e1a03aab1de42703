package fileio

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
	"github.com/cheggaaa/pb/v3"
	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/peterbourgon/diskv"

	"github.com/YuminosukeSato/automlcli/pkg/log"
)

// CacheDirEnv overrides the download cache location.
const CacheDirEnv = "AUTOMLCLI_CACHE_DIR"

// MaxAttempts is the number of tries for one remote download.
const MaxAttempts = 5

const downloadBar pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{speed . }}`

// DefaultCacheDir returns $AUTOMLCLI_CACHE_DIR or ~/.automlcli/cache.
func DefaultCacheDir() string {
	if dir := os.Getenv(CacheDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "automlcli", "cache")
	}
	return filepath.Join(home, ".automlcli", "cache")
}

// Cache downloads remote files once into a content-addressed diskv store.
type Cache struct {
	dir      string
	store    *diskv.Diskv
	client   *resty.Client
	s3       S3API
	s3Once   sync.Once
	s3Err    error
	wait     time.Duration
	progress io.Writer
	logger   log.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithS3Client uses api for s3:// paths instead of the default AWS client.
func WithS3Client(api S3API) CacheOption {
	return func(c *Cache) { c.s3 = api }
}

// WithProgress writes download progress bars to w. nil disables them.
func WithProgress(w io.Writer) CacheOption {
	return func(c *Cache) { c.progress = w }
}

// WithRetryWait sets the first backoff interval (default 1s).
func WithRetryWait(d time.Duration) CacheOption {
	return func(c *Cache) { c.wait = d }
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string, opts ...CacheOption) *Cache {
	c := &Cache{
		dir:      dir,
		wait:     time.Second,
		progress: os.Stderr,
		logger:   log.GetLoggerWithName("fileio"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store = diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 0,
		TempDir:      filepath.Join(dir, ".tmp"),
	})
	c.client = resty.New().
		SetRetryCount(MaxAttempts-1).
		SetRetryWaitTime(c.wait).
		SetRetryMaxWaitTime(16 * c.wait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			switch r.StatusCode() {
			case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				return true
			}
			return false
		})
	return c
}

var (
	defaultCache     *Cache
	defaultCacheOnce sync.Once
)

// Default returns the process-wide cache in DefaultCacheDir.
func Default() *Cache {
	defaultCacheOnce.Do(func() {
		defaultCache = NewCache(DefaultCacheDir())
	})
	return defaultCache
}

// CachedPath resolves p through the default cache.
func CachedPath(ctx context.Context, p string) (string, error) {
	return Default().Path(ctx, p)
}

// Key returns the cache key of a remote path: md5(url) plus its extension.
func Key(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:]) + FullExt(rawURL)
}

// IsRemote reports whether p is an http(s):// or s3:// URL.
func IsRemote(p string) bool {
	switch scheme(p) {
	case "http", "https", "s3":
		return true
	}
	return false
}

func scheme(p string) string {
	u, err := url.Parse(p)
	if err != nil || len(u.Scheme) < 2 {
		// "C:\data.csv" のようなドライブレターはスキームとして扱わない
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// Path returns a local file path for p. Local paths and file:// URLs are
// returned unchanged (minus the scheme); remote URLs are downloaded on the
// first call and served from the cache afterwards.
func (c *Cache) Path(ctx context.Context, p string) (string, error) {
	switch scheme(p) {
	case "":
		return p, nil
	case "file":
		u, _ := url.Parse(p)
		return u.Path, nil
	case "http", "https", "s3":
	default:
		return "", errors.Newf("unsupported URL scheme %q in %s", scheme(p), p)
	}

	key := Key(p)
	local := filepath.Join(c.dir, key)
	if c.store.Has(key) {
		c.logger.Debug("Cache hit", log.URLKey, p, log.CachePathKey, local)
		return local, nil
	}

	c.logger.Info("Downloading", log.URLKey, p, log.CachePathKey, local)
	start := time.Now()
	var err error
	if scheme(p) == "s3" {
		err = c.fetchS3(ctx, p, key)
	} else {
		err = c.fetchHTTP(ctx, p, key)
	}
	if err != nil {
		return "", err
	}
	c.logger.Debug("Download finished",
		log.URLKey, p,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return local, nil
}

func (c *Cache) fetchHTTP(ctx context.Context, rawURL, key string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return errors.Wrapf(err, "download %s", rawURL)
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() != http.StatusOK {
		return errors.Newf("download %s: unexpected status %s", rawURL, resp.Status())
	}
	var size int64
	if resp.RawResponse != nil {
		size = resp.RawResponse.ContentLength
	}
	return c.save(key, rawURL, body, size)
}

func (c *Cache) fetchS3(ctx context.Context, rawURL, key string) error {
	api, err := c.s3Client(ctx)
	if err != nil {
		return err
	}
	bucket, objKey, err := splitS3URL(rawURL)
	if err != nil {
		return err
	}

	var out *s3.GetObjectOutput
	op := func() error {
		o, err := api.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(objKey),
		})
		if err != nil {
			if isNotFound(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = o
		return nil
	}
	if err := backoff.Retry(op, c.retryPolicy(ctx)); err != nil {
		return errors.Wrapf(err, "download %s", rawURL)
	}
	defer out.Body.Close()
	return c.save(key, rawURL, out.Body, aws.ToInt64(out.ContentLength))
}

func (c *Cache) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.wait
	b.Multiplier = 2
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxAttempts-1), ctx)
}

// save writes r into the cache. diskv writes into TempDir and renames,
// so an interrupted transfer leaves no entry behind.
func (c *Cache) save(key, rawURL string, r io.Reader, size int64) error {
	if c.progress != nil {
		bar := downloadBar.New(0)
		if size > 0 {
			bar.SetTotal(size)
		}
		bar.SetWriter(c.progress)
		bar.Set("prefix", "Downloading "+path.Base(stripURL(rawURL))+":")
		bar.Start()
		defer bar.Finish()
		r = bar.NewProxyReader(r)
	}
	if err := c.store.WriteStream(key, r, true); err != nil {
		return errors.Wrapf(err, "cache %s", rawURL)
	}
	return nil
}
