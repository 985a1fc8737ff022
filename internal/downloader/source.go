package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/frederic-klein/phpfarm/internal/release"
	"github.com/frederic-klein/phpfarm/internal/transport"
)

// ErrNotOffered is returned when a release has no archive in the requested
// compression.
var ErrNotOffered = errors.New("archive not offered in this compression")

// Source is somewhere archives can be fetched from.
type Source interface {
	Name() string
	Open(ctx context.Context, e release.Entry, c release.Compression) (io.ReadCloser, int64, error)
}

// HTTPSource fetches archives from the URLs the feeds listed.
type HTTPSource struct {
	client *transport.Client
}

// NewHTTPSource creates an upstream source.
func NewHTTPSource(client *transport.Client) *HTTPSource {
	if client == nil {
		client = transport.NewClient(nil)
	}
	return &HTTPSource{client: client}
}

func (s *HTTPSource) Name() string {
	return "upstream"
}

func (s *HTTPSource) Open(ctx context.Context, e release.Entry, c release.Compression) (io.ReadCloser, int64, error) {
	src, ok := e.Source(c)
	if !ok {
		return nil, 0, fmt.Errorf("%s: %w", release.FileName(e.Version, c), ErrNotOffered)
	}
	resp, err := s.client.Get(ctx, src.URL)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.Size, nil
}

// S3Config locates an S3-compatible bucket mirroring the release archives.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
	AccessKey string
	SecretKey string
}

// S3Source fetches archives from, and optionally pushes them to, an S3
// mirror. Objects are keyed by prefix plus the upstream file name.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Source creates a mirror source. Static credentials are used when
// given; otherwise the default AWS credential chain applies.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 mirror: bucket not set")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	options := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &S3Source{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Source) Name() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

// Key returns the object key for an archive.
func (s *S3Source) Key(key release.CacheKey) string {
	return path.Join(s.prefix, key.FileName())
}

func (s *S3Source) Open(ctx context.Context, e release.Entry, c release.Compression) (io.ReadCloser, int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(release.CacheKey{Version: e.Version, Compression: c})),
	})
	if err != nil {
		return nil, 0, err
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// Put uploads a cached archive to the mirror.
func (s *S3Source) Put(ctx context.Context, key release.CacheKey, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.Key(key)),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("uploading %s to %s: %w", key, s.Name(), err)
	}
	return nil
}
