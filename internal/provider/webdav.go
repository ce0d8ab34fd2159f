package provider

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/studio-b12/gowebdav"

	"github.com/mikaelkraft/quicknote-pro/internal/database"
)

// webdavStore adapts a WebDAV share to the objectStore surface. Note records
// live flat under one collection, so List only has to read a single
// directory.
type webdavStore struct {
	client *gowebdav.Client
}

func newWebDAVStore(cfg *database.ProviderConfig) (*webdavStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("webdav provider requires an endpoint URL")
	}
	client := gowebdav.NewClient(cfg.Endpoint, cfg.Username, cfg.Password)
	return &webdavStore{client: client}, nil
}

func (s *webdavStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := path.Dir(key); dir != "." && dir != "/" {
		if err := s.client.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create webdav collection %s: %w", dir, err)
		}
	}
	if err := s.client.WriteStream(key, r, 0644); err != nil {
		return fmt.Errorf("failed to upload object to webdav: %w", err)
	}
	return nil
}

func (s *webdavStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.client.ReadStream(key)
	if err != nil {
		return nil, fmt.Errorf("failed to download object from webdav: %w", err)
	}
	return r, nil
}

func (s *webdavStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := strings.TrimSuffix(prefix, "/")
	entries, err := s.client.ReadDir(dir)
	if err != nil {
		// An absent collection just means nothing was synced yet.
		if gowebdav.IsErrNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list webdav collection %s: %w", dir, err)
	}

	var infos []ObjectInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		infos = append(infos, ObjectInfo{
			Key:        path.Join(dir, entry.Name()),
			Size:       entry.Size(),
			ModifiedAt: entry.ModTime().UTC(),
		})
	}
	return infos, nil
}

func (s *webdavStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.Remove(key); err != nil {
		return fmt.Errorf("failed to delete object from webdav: %w", err)
	}
	return nil
}

func (s *webdavStore) Test(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to reach webdav server: %w", err)
	}
	return nil
}
