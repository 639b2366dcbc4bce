// Package s3 implements the storage.Store interface on an S3 bucket. Keys
// map directly to object keys under an optional base prefix.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ecopipe-systems/ecopipe/internal/storage"
)

// Compile-time interface satisfaction check.
var _ storage.Store = (*Store)(nil)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store maps logical keys to S3 objects under bucket/basePrefix.
type Store struct {
	client     S3API
	bucket     string
	basePrefix string
}

// Option configures a Store.
type Option func(*Store)

// WithClient sets a custom S3 client (useful for testing).
func WithClient(c S3API) Option {
	return func(s *Store) { s.client = c }
}

// New creates an S3-backed store.
func New(bucket, basePrefix string, opts ...Option) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name required")
	}
	s := &Store{
		bucket:     bucket,
		basePrefix: strings.Trim(basePrefix, "/"),
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = s3.NewFromConfig(cfg)
	}
	return s, nil
}

func (s *Store) fullKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.basePrefix == "" {
		return key
	}
	return s.basePrefix + "/" + key
}

// Write persists bytes at the given key and returns the s3:// location.
func (s *Store) Write(ctx context.Context, key string, data []byte) (string, error) {
	full := s.fullKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &full,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("putting s3://%s/%s: %w", s.bucket, full, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, full), nil
}

// Read returns the bytes stored at the key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	full := s.fullKey(key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &full,
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, full, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, full, err)
	}
	return data, nil
}

// List returns logical keys (base prefix stripped) under the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := strings.TrimRight(s.fullKey(prefix), "/") + "/"

	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            aws.String(fullPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, fullPrefix, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if s.basePrefix != "" {
				key = strings.TrimPrefix(key, s.basePrefix+"/")
			}
			keys = append(keys, key)
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}
