package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/safe-uploader/internal/model"
	"github.com/aliskhannn/safe-uploader/internal/tags"
	"github.com/aliskhannn/safe-uploader/internal/uploader"
)

// DefaultKeyPattern is used when no key pattern is configured.
const DefaultKeyPattern = "{_date}/{_uuid}-{_file}"

// ErrEmptyKey is returned when the key pattern resolves to nothing.
var ErrEmptyKey = errors.New("object key is empty")

// client is the part of *minio.Client used to store objects.
type client interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// fileStorage reads and removes the validated local file.
type fileStorage interface {
	Open(path string) (io.ReadCloser, error)
	Size(path string) (int64, error)
	MimeType(path string) (string, error)
	Delete(path string) error
}

// Options configure where objects are written and how they are addressed.
type Options struct {
	BucketName string
	PublicURL  string // base of the returned URLs; s3://bucket/key when empty
	KeyPattern string
	Retry      retry.Strategy
}

// Storage places validated uploads into an S3-compatible bucket.
// Its Place method is an uploader.Custom strategy.
type Storage struct {
	client client
	files  fileStorage
	opts   Options
	now    func() time.Time
}

// NewStorage connects to the MinIO server at endpoint.
// If the bucket does not exist, it will be created automatically.
func NewStorage(ctx context.Context, endpoint, accessKey, secretKey string, useSSL bool, files fileStorage, opts Options) (*Storage, error) {
	c, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := c.BucketExists(ctx, opts.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := c.MakeBucket(ctx, opts.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return New(c, files, opts), nil
}

// New creates a Storage on top of an existing client.
func New(c client, files fileStorage, opts Options) *Storage {
	if opts.KeyPattern == "" {
		opts.KeyPattern = DefaultKeyPattern
	}
	if opts.Retry.Attempts < 1 {
		opts.Retry.Attempts = 1
	}

	return &Storage{client: c, files: files, opts: opts, now: time.Now}
}

// Key resolves the object key of upload from the key pattern.
// {_file} is the base name of the client file name.
func (s *Storage) Key(upload *model.RawUpload, payload model.Payload) (string, error) {
	name := path.Base(strings.ReplaceAll(upload.Name, "\\", "/"))

	values := tags.RunTags(s.now())
	for k, v := range payload {
		values[k] = v
	}
	values[model.FileKey] = name

	key := strings.TrimLeft(path.Clean("/"+tags.Replace(s.opts.KeyPattern, values)), "/")
	if key == "" {
		return "", fmt.Errorf("%w: pattern %q", ErrEmptyKey, s.opts.KeyPattern)
	}

	return key, nil
}

// URL returns the address callers use to reach key.
func (s *Storage) URL(key string) (string, error) {
	if s.opts.PublicURL == "" {
		return "s3://" + s.opts.BucketName + "/" + key, nil
	}

	u, err := url.JoinPath(s.opts.PublicURL, key)
	if err != nil {
		return "", fmt.Errorf("failed to build url for %s: %w", key, err)
	}
	return u, nil
}

// Place uploads the validated file to the bucket and removes the local copy.
func (s *Storage) Place(ctx context.Context, _ *uploader.Uploader, upload *model.RawUpload, payload model.Payload) (uploader.Placement, error) {
	key, err := s.Key(upload, payload)
	if err != nil {
		return uploader.Placement{}, err
	}

	size, err := s.files.Size(upload.TmpName)
	if err != nil {
		return uploader.Placement{}, fmt.Errorf("failed to stat %s: %w", upload.TmpName, err)
	}

	contentType, err := s.files.MimeType(upload.TmpName)
	if err != nil || contentType == "" {
		contentType = "application/octet-stream"
	}

	// The reader is consumed by every attempt, so each one reopens the file.
	err = retry.Do(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		src, err := s.files.Open(upload.TmpName)
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = s.client.PutObject(ctx, s.opts.BucketName, key, src, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		return err
	}, s.opts.Retry)
	if err != nil {
		return uploader.Placement{}, fmt.Errorf("failed to save object %s: %w", key, err)
	}

	if err := s.files.Delete(upload.TmpName); err != nil {
		zlog.Logger.Warn().Err(err).Str("path", upload.TmpName).Msg("failed to remove local copy")
	}

	u, err := s.URL(key)
	if err != nil {
		return uploader.Placement{}, err
	}

	zlog.Logger.Info().Str("bucket", s.opts.BucketName).Str("key", key).Msg("object stored")

	return uploader.Placement{RealURL: u}, nil
}
