package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mobilepush/internal/config"
)

type mockObjectGetter struct {
	getObjectFn func(ctx context.Context, params *s3.GetObjectInput) (*s3.GetObjectOutput, error)
	last        *s3.GetObjectInput
}

func (m *mockObjectGetter) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.last = params
	return m.getObjectFn(ctx, params)
}

func TestCertificateStore_LoadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apns.pem")
	if err := os.WriteFile(path, []byte("PEM DATA"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, err := NewCertificateStore(context.Background(), &config.Config{APNSCertFile: path})
	if err != nil {
		t.Fatalf("NewCertificateStore: %v", err)
	}

	data, err := store.Load(context.Background(), path)

	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "PEM DATA" {
		t.Errorf("data = %q", data)
	}
}

func TestCertificateStore_LoadMissingFile(t *testing.T) {
	store := &CertificateStore{}

	if _, err := store.Load(context.Background(), filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("expected an error")
	}
}

func TestCertificateStore_LoadFromBucket(t *testing.T) {
	getter := &mockObjectGetter{getObjectFn: func(ctx context.Context, params *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("P12 DATA"))}, nil
	}}
	store := NewCertificateStoreWithClient(getter)

	data, err := store.Load(context.Background(), "s3://secrets/push/apns.p12")

	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "P12 DATA" {
		t.Errorf("data = %q", data)
	}
	if aws.ToString(getter.last.Bucket) != "secrets" || aws.ToString(getter.last.Key) != "push/apns.p12" {
		t.Errorf("bucket/key = %s/%s", aws.ToString(getter.last.Bucket), aws.ToString(getter.last.Key))
	}
}

func TestCertificateStore_LoadFromBucket_Errors(t *testing.T) {
	getter := &mockObjectGetter{getObjectFn: func(ctx context.Context, params *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return nil, errors.New("access denied")
	}}

	tests := []struct {
		name     string
		store    *CertificateStore
		location string
	}{
		{"no client", &CertificateStore{}, "s3://secrets/apns.pem"},
		{"no key", NewCertificateStoreWithClient(getter), "s3://secrets"},
		{"get fails", NewCertificateStoreWithClient(getter), "s3://secrets/apns.pem"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.store.Load(context.Background(), tt.location); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
