// Package s3 implements the blob store against S3/MinIO.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/pubfiles/pubfiles/internal/blob"
	"github.com/pubfiles/pubfiles/internal/logging"
	"github.com/pubfiles/pubfiles/internal/metrics"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Store implements blob.Store using S3/MinIO. Locators are path-style
// object URLs, <endpoint>/<bucket>/<key>.
type Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// New creates an S3 store and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
			}, nil
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	store := &Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket,
	}

	if err := store.ensureBucket(ctx); err != nil {
		logging.Error("bucket check failed", zap.Error(err))
	}

	return store, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	start := time.Now()
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		_, createErr := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(s.bucket),
		})
		if createErr != nil {
			metrics.RecordStoreOperation("create_bucket", time.Since(start), false)
			return fmt.Errorf("bucket %s does not exist and cannot create: %w", s.bucket, createErr)
		}
		metrics.RecordStoreOperation("create_bucket", time.Since(start), true)
		logging.Info("created bucket", zap.String("bucket", s.bucket))
	}
	return nil
}

// Pathname derives the object key from a locator URL.
func (s *Store) Pathname(locator string) (string, error) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(locator, prefix) {
		return "", fmt.Errorf("locator %q not in bucket %s", locator, s.bucket)
	}
	return strings.TrimPrefix(locator, prefix), nil
}

func (s *Store) locator(key string) string {
	return s.baseURL + "/" + key
}

// List returns every object in the bucket, following continuation
// tokens across pages.
func (s *Store) List(ctx context.Context) ([]blob.ObjectInfo, error) {
	start := time.Now()

	var infos []blob.ObjectInfo
	var continuationToken *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			metrics.RecordStoreOperation("list_objects", time.Since(start), false)
			return nil, fmt.Errorf("list bucket %s: %w", s.bucket, err)
		}

		for _, obj := range out.Contents {
			info := blob.ObjectInfo{
				Pathname: aws.ToString(obj.Key),
				Locator:  s.locator(aws.ToString(obj.Key)),
			}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.LastModified != nil {
				info.UploadedAt = *obj.LastModified
			}
			infos = append(infos, info)
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	metrics.RecordStoreOperation("list_objects", time.Since(start), true)
	return infos, nil
}

// Get retrieves the full object at locator.
func (s *Store) Get(ctx context.Context, locator string) ([]byte, error) {
	key, err := s.Pathname(locator)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordStoreOperation("get_object", time.Since(start), false)
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, &blob.NotFoundError{Locator: locator}
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		metrics.RecordStoreOperation("get_object", time.Since(start), false)
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}

	metrics.RecordStoreOperation("get_object", time.Since(start), true)
	return content, nil
}

// Put uploads content under pathname. An existing object at the same
// key is overwritten; no uniqueness suffix is appended.
func (s *Store) Put(ctx context.Context, pathname string, content []byte, contentType string) (blob.PutResult, error) {
	start := time.Now()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(pathname),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		metrics.RecordStoreOperation("put_object", time.Since(start), false)
		return blob.PutResult{}, fmt.Errorf("put object %s: %w", pathname, err)
	}

	metrics.RecordStoreOperation("put_object", time.Since(start), true)
	logging.Debug("put object", zap.String("key", pathname), zap.Int("size", len(content)))

	return blob.PutResult{Pathname: pathname, Locator: s.locator(pathname)}, nil
}

// Delete removes the object at locator. S3 treats deletion of a missing
// key as success, which matches the store contract.
func (s *Store) Delete(ctx context.Context, locator string) error {
	key, err := s.Pathname(locator)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordStoreOperation("delete_object", time.Since(start), false)
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	metrics.RecordStoreOperation("delete_object", time.Since(start), true)
	logging.Debug("delete object", zap.String("key", key))
	return nil
}

var _ blob.Store = (*Store)(nil)
