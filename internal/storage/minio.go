package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/feedvault/feedvault/internal/model"
)

// Client wraps an S3-compatible store with the bucket-per-dataset layout the
// backup engine relies on.
type Client struct {
	mc *minio.Client
}

// Config holds object store connection settings.
type Config struct {
	Endpoint  string // e.g. "cellar-c2.services.clever-cloud.com"
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewClient creates a new object store client.
func NewClient(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}
	return &Client{mc: mc}, nil
}

// EnsureBucket creates the bucket if it does not exist and marks its objects
// publicly readable. Idempotent; safe to call on every run.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		// another worker or run may have won the race
		if exists, checkErr := c.mc.BucketExists(ctx, bucket); checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	if err := c.mc.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
		return fmt.Errorf("failed to set bucket policy on %s: %w", bucket, err)
	}
	return nil
}

// publicReadPolicy allows anonymous reads of every object in the bucket.
func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{
	"Version": "2012-10-17",
	"Statement": [
		{
			"Effect": "Allow",
			"Principal": {"AWS": ["*"]},
			"Action": ["s3:GetObject"],
			"Resource": ["arn:aws:s3:::%s/*"]
		}
	]
}`, bucket)
}

// ListByPrefix returns every object whose key starts with prefix, metadata
// included. The result is unordered with respect to time; callers reduce it
// explicitly. An empty prefix lists the whole bucket.
func (c *Client) ListByPrefix(ctx context.Context, bucket, prefix string) ([]model.BackupObject, error) {
	var objects []model.BackupObject
	for obj := range c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", bucket, obj.Err)
		}
		objects = append(objects, model.BackupObject{
			Key:          obj.Key,
			LastModified: obj.LastModified,
			Size:         obj.Size,
			ETag:         strings.Trim(obj.ETag, `"`),
			Metadata:     userMetadata(obj.UserMetadata),
		})
	}
	return objects, nil
}

// userMetadata strips the x-amz-meta transport prefix and lowercases keys so
// callers see metadata as it was attached at upload time.
func userMetadata(raw map[string]string) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	meta := make(map[string]string, len(raw))
	for k, v := range raw {
		k = strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")
		meta[k] = v
	}
	return meta
}

// Stat fetches a single object with its user metadata. Generic S3-compatible
// endpoints omit user metadata from listings (WithMetadata is a MinIO server
// extension), so callers that need it per object go through here.
func (c *Client) Stat(ctx context.Context, bucket, key string) (model.BackupObject, error) {
	info, err := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return model.BackupObject{}, fmt.Errorf("failed to stat %s/%s: %w", bucket, key, err)
	}
	return model.BackupObject{
		Key:          info.Key,
		LastModified: info.LastModified,
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, `"`),
		Metadata:     userMetadata(info.UserMetadata),
	}, nil
}

// Put uploads the staged file at localPath under key, attaching metadata as
// flat string pairs. Empty values are dropped so absent fields are omitted,
// never written as empty strings.
func (c *Client) Put(ctx context.Context, bucket, key, localPath string, metadata map[string]string) error {
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if v != "" {
			meta[k] = v
		}
	}

	_, err := c.mc.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{
		ContentType:  "application/octet-stream",
		UserMetadata: meta,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Delete removes a single object. Irreversible.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	if err := c.mc.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// ListBuckets returns every dataset bucket managed by this tool.
func (c *Client) ListBuckets(ctx context.Context) ([]string, error) {
	buckets, err := c.mc.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	var names []string
	for _, b := range buckets {
		if strings.HasPrefix(b.Name, BucketPrefix) {
			names = append(names, b.Name)
		}
	}
	return names, nil
}

// DeleteBucket removes every object in the bucket and then the bucket
// itself. Irreversible.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	objects, err := c.ListByPrefix(ctx, bucket, "")
	if err != nil {
		return err
	}
	for _, o := range objects {
		if err := c.Delete(ctx, bucket, o.Key); err != nil {
			return err
		}
	}
	if err := c.mc.RemoveBucket(ctx, bucket); err != nil {
		return fmt.Errorf("failed to remove bucket %s: %w", bucket, err)
	}
	return nil
}
