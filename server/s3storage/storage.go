// Package s3storage stores contact images in any S3-compatible bucket
// (AWS S3, MinIO, R2 and the like).
package s3storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Daskott/rolodex/shared"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

type S3Storage struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

func NewS3Storage(ctx context.Context, cfg shared.S3Config, bucket, publicBaseURL string) (*S3Storage, error) {
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOptions := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "NewS3Storage")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	if publicBaseURL == "" {
		publicBaseURL = defaultBaseURL(cfg, bucket, region)
	}

	return &S3Storage{client: client, bucket: bucket, publicBaseURL: strings.TrimSuffix(publicBaseURL, "/")}, nil
}

// Put uploads an object and returns its public URL.
func (s *S3Storage) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"),
	})
	if err != nil {
		return "", errors.Wrap(err, "PutObject")
	}

	return s.publicBaseURL + "/" + (&url.URL{Path: key}).EscapedPath(), nil
}

func defaultBaseURL(cfg shared.S3Config, bucket, region string) string {
	if cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.Endpoint, "/"), bucket)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}
