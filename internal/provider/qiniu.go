package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"

	"github.com/mikaelkraft/quicknote-pro/internal/database"
)

// qiniuStore adapts Qiniu Kodo to the objectStore surface.
type qiniuStore struct {
	mac          *qbox.Mac
	bucketName   string
	bucketDomain string
	region       *storage.Region
}

func newQiniuStore(cfg *database.ProviderConfig) (*qiniuStore, error) {
	mac := qbox.NewMac(cfg.AccessKey, cfg.SecretKey)

	region, err := storage.GetRegion(cfg.AccessKey, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}

	bucketDomain := cfg.Endpoint
	if bucketDomain == "" {
		bucketDomain = fmt.Sprintf("%s.%s", cfg.Bucket, region.RsHost)
	}

	return &qiniuStore{
		mac:          mac,
		bucketName:   cfg.Bucket,
		bucketDomain: bucketDomain,
		region:       region,
	}, nil
}

func (s *qiniuStore) manager() *storage.BucketManager {
	return storage.NewBucketManager(s.mac, &storage.Config{Region: s.region})
}

func (s *qiniuStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	// Scope to bucket:key so re-uploading the same key overwrites instead
	// of failing with "file exists".
	putPolicy := storage.PutPolicy{
		Scope: fmt.Sprintf("%s:%s", s.bucketName, key),
	}
	upToken := putPolicy.UploadToken(s.mac)

	cfg := storage.Config{Region: s.region, UseHTTPS: true}
	uploader := storage.NewFormUploader(&cfg)
	ret := storage.PutRet{}
	putExtra := storage.PutExtra{}
	if contentType != "" {
		putExtra.MimeType = contentType
	}

	if err := uploader.Put(ctx, &ret, upToken, key, r, size, &putExtra); err != nil {
		return fmt.Errorf("failed to upload object to qiniu kodo: %w", err)
	}
	return nil
}

func (s *qiniuStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	deadline := time.Now().Add(time.Hour).Unix()
	privateURL := storage.MakePrivateURL(s.mac, s.bucketDomain, key, deadline)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, privateURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build qiniu download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download object from qiniu kodo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download object from qiniu kodo, status: %s", resp.Status)
	}
	return resp.Body, nil
}

func (s *qiniuStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	marker := ""
	for {
		entries, _, nextMarker, hasNext, err := s.manager().ListFiles(s.bucketName, prefix, "", marker, 1000)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects from qiniu kodo: %w", err)
		}
		for _, entry := range entries {
			infos = append(infos, ObjectInfo{
				Key:  entry.Key,
				Size: entry.Fsize,
				// PutTime is in 100ns units since the epoch.
				ModifiedAt: time.Unix(0, entry.PutTime*100).UTC(),
				ETag:       entry.Hash,
			})
		}
		if !hasNext {
			return infos, nil
		}
		marker = nextMarker
	}
}

func (s *qiniuStore) Delete(ctx context.Context, key string) error {
	if err := s.manager().Delete(s.bucketName, key); err != nil {
		return fmt.Errorf("failed to delete object from qiniu kodo: %w", err)
	}
	return nil
}

func (s *qiniuStore) Test(ctx context.Context) error {
	if _, _, _, _, err := s.manager().ListFiles(s.bucketName, "", "", "", 1); err != nil {
		return fmt.Errorf("failed to reach qiniu kodo bucket: %w", err)
	}
	return nil
}
