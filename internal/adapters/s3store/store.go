// Package s3store implements a blob store on Amazon S3 or an S3-compatible service.
package s3store

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

// API is the subset of the S3 client used by Store.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures the S3 client.
type Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

var _ ports.BlobStore = (*Store)(nil)

// Store keeps each blob as one object under Prefix.
type Store struct {
	api    API
	bucket string
	prefix string
}

// New builds a Store from opts. Static credentials are used when both keys are
// set; otherwise the default AWS credential chain applies. A custom endpoint
// switches to path-style addressing for S3-compatible servers.
func New(ctx context.Context, opts Options) (*Store, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Join(domain.ErrStoreCreateFailed, zerr.Wrap(err, "failed to load AWS config"))
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, opts.Bucket, opts.Prefix), nil
}

// NewWithAPI builds a Store around an existing client.
func NewWithAPI(api API, bucket, prefix string) *Store {
	return &Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *Store) objectKey(key string) string {
	return path.Join(s.prefix, key) + ".tgz"
}

// Get opens the object stored under key. Returns nil, nil if not found.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Join(domain.ErrStoreReadFailed,
			zerr.With(zerr.With(err, "bucket", s.bucket), "object", s.objectKey(key)))
	}
	return out.Body, nil
}

// Put uploads r under key. The body is spooled to a temporary file first so
// the SDK can sign and retry a seekable payload.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	spool, err := os.CreateTemp("", "rig-s3-*")
	if err != nil {
		return errors.Join(domain.ErrStoreWriteFailed, zerr.Wrap(err, "failed to create spool file"))
	}
	defer os.Remove(spool.Name()) //nolint:errcheck // Best effort cleanup
	defer spool.Close()           //nolint:errcheck // Best effort close in defer

	size, err := io.Copy(spool, r)
	if err != nil {
		return errors.Join(domain.ErrStoreWriteFailed, zerr.Wrap(err, "failed to spool upload"))
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return errors.Join(domain.ErrStoreWriteFailed, zerr.Wrap(err, "failed to rewind spool file"))
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          spool,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/gzip"),
	})
	if err != nil {
		return errors.Join(domain.ErrStoreWriteFailed,
			zerr.With(zerr.With(err, "bucket", s.bucket), "object", s.objectKey(key)))
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
