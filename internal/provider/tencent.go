package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"

	"github.com/mikaelkraft/quicknote-pro/internal/database"
)

// tencentStore adapts Tencent COS to the objectStore surface.
type tencentStore struct {
	client *cos.Client
}

func newTencentStore(cfg *database.ProviderConfig) (*tencentStore, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = cfg.Endpoint
	}
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
	})
	return &tencentStore{client: client}, nil
}

func (s *tencentStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	options := &cos.ObjectPutOptions{}
	if contentType != "" {
		options.ObjectPutHeaderOptions = &cos.ObjectPutHeaderOptions{ContentType: contentType}
	}
	if _, err := s.client.Object.Put(ctx, key, r, options); err != nil {
		return fmt.Errorf("failed to upload object to tencent cos: %w", err)
	}
	return nil
}

func (s *tencentStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download object from tencent cos: %w", err)
	}
	return resp.Body, nil
}

func (s *tencentStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	marker := ""
	for {
		res, _, err := s.client.Bucket.Get(ctx, &cos.BucketGetOptions{
			Prefix:  prefix,
			Marker:  marker,
			MaxKeys: 1000,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects from tencent cos: %w", err)
		}
		for _, object := range res.Contents {
			modified, _ := time.Parse(time.RFC3339, object.LastModified)
			infos = append(infos, ObjectInfo{
				Key:        object.Key,
				Size:       object.Size,
				ModifiedAt: modified.UTC(),
				ETag:       strings.Trim(object.ETag, "\""),
			})
		}
		if !res.IsTruncated {
			return infos, nil
		}
		marker = res.NextMarker
	}
}

func (s *tencentStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Object.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete object from tencent cos: %w", err)
	}
	return nil
}

func (s *tencentStore) Test(ctx context.Context) error {
	if _, err := s.client.Bucket.Head(ctx); err != nil {
		return fmt.Errorf("failed to reach tencent cos bucket: %w", err)
	}
	return nil
}
