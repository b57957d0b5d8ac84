package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	Endpoint      string
	PublicBase    string
	ThumbnailBase string
}

// putObjectAPI is the slice of the S3 client the store uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Client struct {
	cfg S3Config
	s3  putObjectAPI
}

func NewClient(ctx context.Context, cfg S3Config) (*Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{cfg: cfg, s3: s3Client}, nil
}

// Store uploads the blob with PutObject and returns its public URLs.
func (c *Client) Store(ctx context.Context, upload Upload) (StoredObject, error) {
	if c == nil || c.s3 == nil {
		return StoredObject{}, uploadFailed(upload.FileName, errors.New("s3 client not initialized"))
	}

	key := ObjectKey(upload.FileName)
	contentType := DetectType(upload.Data, upload.DeclaredType)
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(upload.Data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(upload.Data))),
	})
	if err != nil {
		return StoredObject{}, uploadFailed(upload.FileName, err)
	}

	return StoredObject{
		Key:          key,
		FileURL:      c.FileURL(key),
		ThumbnailURL: c.ThumbnailURL(key, contentType),
		FileType:     contentType,
		FileSize:     int64(len(upload.Data)),
	}, nil
}

func (c *Client) FileURL(key string) string {
	if c == nil || key == "" {
		return ""
	}
	if c.cfg.PublicBase != "" {
		return strings.TrimRight(c.cfg.PublicBase, "/") + "/" + key
	}
	return "s3://" + c.cfg.Bucket + "/" + key
}

// ThumbnailURL is set only for images.
func (c *Client) ThumbnailURL(key, contentType string) *string {
	if c == nil || key == "" {
		return nil
	}
	fileBase := strings.TrimSuffix(c.FileURL(key), "/"+key)
	return thumbnailURL(c.cfg.ThumbnailBase, fileBase, key, contentType)
}
