package clips

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3Config configures the object store. Endpoint is set for S3-compatible
// services such as MinIO, which also need path-style addressing.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// objectAPI is the part of *s3.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 stores clips as objects under Prefix.
type S3 struct {
	api    objectAPI
	bucket string
	prefix string
}

// NewS3 loads the default AWS credential chain and creates the store.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("clips: s3 bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3WithAPI(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3WithAPI(api objectAPI, bucket, prefix string) *S3 {
	return &S3{api: api, bucket: bucket, prefix: prefix}
}

func (s *S3) key(id string) string {
	return path.Join(s.prefix, id)
}

func (s *S3) Put(ctx context.Context, c Clip) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(c.ID)),
		Body:        bytes.NewReader(c.Data),
		ContentType: aws.String(c.ContentType),
		Metadata:    map[string]string{"created-at": c.CreatedAt.Format(time.RFC3339)},
	})
	if err != nil {
		return "", fmt.Errorf("put clip %s: %w", c.ID, err)
	}
	return c.ID, nil
}

func (s *S3) Get(ctx context.Context, id string) (*Clip, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get clip %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read clip %s: %w", id, err)
	}

	c := &Clip{ID: id, Data: data, ContentType: aws.ToString(out.ContentType)}
	if ts, ok := out.Metadata["created-at"]; ok {
		c.CreatedAt, _ = time.Parse(time.RFC3339, ts)
	}
	return c, nil
}
