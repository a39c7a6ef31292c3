// Package storage loads gateway credentials from the local filesystem or
// from an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mobilepush/internal/config"
)

// maxCertificateSize bounds what is read from a bucket object.
const maxCertificateSize = 1 << 20

// ObjectGetter is the subset of *s3.Client used to fetch certificates.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// CertificateStore reads certificate files. Locations are either plain
// paths or s3://bucket/key URLs.
type CertificateStore struct {
	s3Client ObjectGetter
}

// NewCertificateStore builds an S3 client from config only when an
// s3:// location is configured.
func NewCertificateStore(ctx context.Context, cfg *config.Config) (*CertificateStore, error) {
	if !strings.HasPrefix(cfg.APNSCertFile, "s3://") {
		return &CertificateStore{}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewCertificateStoreWithClient(client), nil
}

func NewCertificateStoreWithClient(client ObjectGetter) *CertificateStore {
	return &CertificateStore{s3Client: client}
}

// Load returns the raw bytes at location.
func (s *CertificateStore) Load(ctx context.Context, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "s3://") {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("read certificate file: %w", err)
		}
		return data, nil
	}

	if s.s3Client == nil {
		return nil, fmt.Errorf("no S3 client configured for %s", location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse certificate url: %w", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("certificate url must be s3://bucket/key, got %q", location)
	}

	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get certificate object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxCertificateSize))
	if err != nil {
		return nil, fmt.Errorf("read certificate object: %w", err)
	}
	return data, nil
}
