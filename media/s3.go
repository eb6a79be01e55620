package media

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	removeLocal = os.Remove
)

// Config carries the connection and layout settings for the S3 uploader.
// BaseEndpoint is optional and points at S3-compatible stores such as MinIO.
type Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseEndpoint    string
	// KeyPrefix is prepended to generated storage keys, e.g. "avatars".
	KeyPrefix string
	// PublicBaseURL overrides the generated object URL host. When empty the
	// uploader derives the URL from the bucket and region.
	PublicBaseURL string
}

// S3Uploader implements Uploader on top of AWS S3.
type S3Uploader struct {
	config Config
	client *s3.Client
}

// NewS3Uploader builds an uploader. The S3 client is created lazily on the
// first upload so construction never touches the network.
func NewS3Uploader(cfg Config) *S3Uploader {
	return &S3Uploader{config: cfg}
}

// StorageKey generates a collision-free key bucketed by date.
func StorageKey(prefix, localPath string) string {
	d := time.Now()
	key := fmt.Sprintf("%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), filepath.Ext(localPath))
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

// Upload stores the file at localPath and returns where it landed. The local
// file is removed in every case, including failures, so staged uploads never
// pile up on disk.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (*UploadResult, error) {
	if localPath == "" {
		return nil, goerrors.New("no file to upload", goerrors.CategoryBadInput).
			WithTextCode("NO_UPLOAD_FILE")
	}

	defer func() {
		_ = removeLocal(localPath)
	}()

	client, err := u.getClient(ctx)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to read upload file").
			WithTextCode("UPLOAD_FILE_UNREADABLE").
			WithMetadata(map[string]any{"path": localPath})
	}
	defer file.Close()

	key := StorageKey(u.config.KeyPrefix, localPath)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))

	input := &s3.PutObjectInput{
		Bucket: aws.String(u.config.Bucket),
		Key:    aws.String(key),
		Body:   file,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := putObject(client, ctx, input); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "upload to object storage failed").
			WithTextCode("UPLOAD_FAILED").
			WithMetadata(map[string]any{"bucket": u.config.Bucket, "key": key})
	}

	return &UploadResult{
		URL: u.objectURL(key),
		Key: key,
	}, nil
}

func (u *S3Uploader) getClient(ctx context.Context) (*s3.Client, error) {
	if u.client != nil {
		return u.client, nil
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(u.config.Region),
	}
	if u.config.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(u.config.AccessKeyID, u.config.SecretAccessKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load storage credentials")
	}

	u.client = newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if u.config.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(u.config.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return u.client, nil
}

func (u *S3Uploader) objectURL(key string) string {
	if u.config.PublicBaseURL != "" {
		return strings.TrimSuffix(u.config.PublicBaseURL, "/") + "/" + key
	}
	if u.config.BaseEndpoint != "" {
		return strings.TrimSuffix(u.config.BaseEndpoint, "/") + "/" + u.config.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.config.Bucket, u.config.Region, key)
}
