package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	signerv4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dcastano/framevault-backend/pkg/config"
	"github.com/dcastano/framevault-backend/pkg/logger"
)

// DeleteObjects accepts at most 1000 keys per call.
const deleteBatchMax = 1000

// ErrObjectMissing is returned by Head when the key does not exist.
var ErrObjectMissing = errors.New("object not found in bucket")

type presignAPI interface {
	PresignPutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.PresignOptions)) (*signerv4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.PresignOptions)) (*signerv4.PresignedHTTPRequest, error)
}

type objectAPI interface {
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	DeleteObjects(ctx context.Context, in *awss3.DeleteObjectsInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error)
}

// Client wraps the S3 surface used by the media pipeline: presigned uploads
// and downloads plus verification and batched deletes across the media and
// thumbnail buckets.
type Client struct {
	objects         objectAPI
	presigner       presignAPI
	mediaBucket     string
	thumbnailBucket string
	uploadExpiry    time.Duration
	downloadExpiry  time.Duration
	viewExpiry      time.Duration
}

// NewClient builds the S3 client from configuration. Static credentials and a
// custom endpoint are optional so local setups can point at MinIO.
func NewClient(ctx context.Context, cfg config.S3Config, logg *logger.Logger) (*Client, error) {
	if cfg.MediaBucket == "" || cfg.ThumbnailBucket == "" {
		return nil, errors.New("s3 media and thumbnail buckets are required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	raw := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	if logg != nil {
		logg.Info(ctx, "s3 client initialized")
	}

	return &Client{
		objects:         raw,
		presigner:       awss3.NewPresignClient(raw),
		mediaBucket:     cfg.MediaBucket,
		thumbnailBucket: cfg.ThumbnailBucket,
		uploadExpiry:    cfg.UploadURLExpiry,
		downloadExpiry:  cfg.DownloadURLExpiry,
		viewExpiry:      cfg.ViewURLExpiry,
	}, nil
}

// PresignMediaUpload returns a PUT URL for the original object.
func (c *Client) PresignMediaUpload(ctx context.Context, key, contentType string) (string, error) {
	return c.presignPut(ctx, c.mediaBucket, key, contentType)
}

// PresignThumbnailUpload returns a PUT URL for the thumbnail object.
func (c *Client) PresignThumbnailUpload(ctx context.Context, key, contentType string) (string, error) {
	return c.presignPut(ctx, c.thumbnailBucket, key, contentType)
}

func (c *Client) presignPut(ctx context.Context, bucket, key, contentType string) (string, error) {
	in := &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	req, err := c.presigner.PresignPutObject(ctx, in, awss3.WithPresignExpires(c.uploadExpiry))
	if err != nil {
		return "", fmt.Errorf("presigning put for %s: %w", key, err)
	}
	return req.URL, nil
}

// PresignView returns a GET URL for inline display of the original object.
func (c *Client) PresignView(ctx context.Context, key string) (string, error) {
	return c.presignGet(ctx, c.mediaBucket, key, "", c.viewExpiry)
}

// PresignThumbnail returns a GET URL for the thumbnail object.
func (c *Client) PresignThumbnail(ctx context.Context, key string) (string, error) {
	return c.presignGet(ctx, c.thumbnailBucket, key, "", c.viewExpiry)
}

// PresignDownload returns a GET URL that forces an attachment download under
// the provided filename.
func (c *Client) PresignDownload(ctx context.Context, key, filename string) (string, error) {
	disposition := fmt.Sprintf("attachment; filename=%q", filename)
	return c.presignGet(ctx, c.mediaBucket, key, disposition, c.downloadExpiry)
}

func (c *Client) presignGet(ctx context.Context, bucket, key, disposition string, expiry time.Duration) (string, error) {
	in := &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if disposition != "" {
		in.ResponseContentDisposition = aws.String(disposition)
	}
	req, err := c.presigner.PresignGetObject(ctx, in, awss3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presigning get for %s: %w", key, err)
	}
	return req.URL, nil
}

// Head verifies the object exists in the media bucket and returns its size.
func (c *Client) Head(ctx context.Context, key string) (int64, error) {
	out, err := c.objects.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.mediaBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return 0, ErrObjectMissing
		}
		return 0, fmt.Errorf("head object %s: %w", key, err)
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

// DeleteMediaObjects removes keys from the media bucket. Missing keys are not
// an error.
func (c *Client) DeleteMediaObjects(ctx context.Context, keys []string) error {
	return c.deleteBatch(ctx, c.mediaBucket, keys)
}

// DeleteThumbnailObjects removes keys from the thumbnail bucket.
func (c *Client) DeleteThumbnailObjects(ctx context.Context, keys []string) error {
	return c.deleteBatch(ctx, c.thumbnailBucket, keys)
}

func (c *Client) deleteBatch(ctx context.Context, bucket string, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchMax {
		end := start + deleteBatchMax
		if end > len(keys) {
			end = len(keys)
		}

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			if key == "" {
				continue
			}
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}
		if len(objects) == 0 {
			continue
		}

		_, err := c.objects.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("deleting %d objects from %s: %w", len(objects), bucket, err)
		}
	}
	return nil
}
