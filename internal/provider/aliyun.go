package provider

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/mikaelkraft/quicknote-pro/internal/database"
)

// aliyunStore adapts an Aliyun OSS bucket to the objectStore surface.
type aliyunStore struct {
	client *oss.Client
	bucket *oss.Bucket
	name   string
}

func newAliyunStore(cfg *database.ProviderConfig) (*aliyunStore, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}

	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}

	return &aliyunStore{client: client, bucket: bucket, name: cfg.Bucket}, nil
}

func (s *aliyunStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	options := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}
	if err := s.bucket.PutObject(key, r, options...); err != nil {
		return fmt.Errorf("failed to upload object to aliyun oss: %w", err)
	}
	return nil
}

func (s *aliyunStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to download object from aliyun oss: %w", err)
	}
	return body, nil
}

func (s *aliyunStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	marker := ""
	for {
		res, err := s.bucket.ListObjects(
			oss.Prefix(prefix),
			oss.Marker(marker),
			oss.MaxKeys(1000),
			oss.WithContext(ctx),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects from aliyun oss: %w", err)
		}
		for _, object := range res.Objects {
			infos = append(infos, ObjectInfo{
				Key:        object.Key,
				Size:       object.Size,
				ModifiedAt: object.LastModified.UTC(),
				ETag:       strings.Trim(object.ETag, "\""),
			})
		}
		if !res.IsTruncated {
			return infos, nil
		}
		marker = res.NextMarker
	}
}

func (s *aliyunStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete object from aliyun oss: %w", err)
	}
	return nil
}

func (s *aliyunStore) Test(ctx context.Context) error {
	if _, err := s.client.GetBucketInfo(s.name); err != nil {
		return fmt.Errorf("failed to reach aliyun oss bucket: %w", err)
	}
	return nil
}
