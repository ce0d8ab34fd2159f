package provider

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
	ETag       string
}

// objectStore is the minimal surface an object-storage backend must expose.
// Every bucket-style backend (S3, Aliyun OSS, Qiniu Kodo, Tencent COS,
// WebDAV, the in-memory test double) implements this; objectClient turns it
// into a full Client.
type objectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	// Test verifies the credentials can reach the backend.
	Test(ctx context.Context) error
}

// objectClient implements Client over an objectStore using a fixed key
// layout under a base prefix:
//
//	<base>/notes/<noteID>.json
//	<base>/media/<noteID>/<relativePath>
//
// Fixed keys make uploads idempotent by id. The cursor is the RFC3339Nano
// watermark of the newest remote modification observed.
type objectClient struct {
	id         string
	name       string
	base       string
	caps       Capabilities
	store      objectStore
	configured bool
}

func newObjectClient(id, name, base string, caps Capabilities, store objectStore, configured bool) *objectClient {
	return &objectClient{
		id:         id,
		name:       name,
		base:       strings.Trim(base, "/"),
		caps:       caps,
		store:      store,
		configured: configured,
	}
}

func (c *objectClient) ID() string                 { return c.id }
func (c *objectClient) DisplayName() string        { return c.name }
func (c *objectClient) Capabilities() Capabilities { return c.caps }
func (c *objectClient) IsConfigured() bool         { return c.configured }

func (c *objectClient) noteKey(noteID string) string {
	return path.Join(c.base, "notes", noteID+".json")
}

func (c *objectClient) mediaKey(noteID, relativePath string) string {
	return path.Join(c.base, "media", noteID, path.Clean("/"+relativePath))
}

func (c *objectClient) notesPrefix() string {
	return path.Join(c.base, "notes") + "/"
}

// Connect verifies credentials with a backend round-trip.
func (c *objectClient) Connect(ctx context.Context) (*AccountIdentity, error) {
	if !c.configured {
		return nil, apperrors.Newf(apperrors.ErrNotConfigured, "provider %s", c.id)
	}
	if err := c.store.Test(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAuthFailed, err)
	}
	return &AccountIdentity{AccountID: c.id, DisplayName: c.name}, nil
}

// Disconnect is a no-op for object stores; credentials live in config and
// cursors are cleared by the sync manager.
func (c *objectClient) Disconnect(ctx context.Context) error {
	return nil
}

// ListChanges lists the notes prefix and filters by the cursor watermark.
// NextCursor always reflects the newest modification in the full listing so
// an unchanged remote yields an unchanged cursor.
func (c *objectClient) ListChanges(ctx context.Context, cursor string) (*ChangeSet, error) {
	since, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}

	objects, err := c.store.List(ctx, c.notesPrefix())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
	}

	cs := &ChangeSet{NextCursor: cursor}
	watermark := since
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		if obj.ModifiedAt.After(watermark) {
			watermark = obj.ModifiedAt
		}
		if !obj.ModifiedAt.After(since) {
			continue
		}
		noteID := strings.TrimSuffix(path.Base(obj.Key), ".json")
		cs.Entries = append(cs.Entries, ChangeEntry{
			NoteID:     noteID,
			Ref:        RemoteRef{Key: obj.Key, ETag: obj.ETag},
			ModifiedAt: obj.ModifiedAt,
			SizeBytes:  obj.Size,
		})
	}
	if watermark.After(since) {
		cs.NextCursor = formatCursor(watermark)
	}
	sort.Slice(cs.Entries, func(i, j int) bool { return cs.Entries[i].NoteID < cs.Entries[j].NoteID })
	return cs, nil
}

// UploadNote stores the record and media under fixed keys. Size limits are
// checked before any network call: an oversized payload fails fast with a
// quota error instead of a doomed upload.
func (c *objectClient) UploadNote(ctx context.Context, noteID string, record []byte, media []MediaFile) (*RemoteRef, error) {
	if limit := c.caps.MaxFileSize; limit > 0 {
		if int64(len(record)) > limit {
			return nil, apperrors.Newf(apperrors.ErrFileTooLarge,
				"note %s record is %d bytes, limit %d", noteID, len(record), limit)
		}
		for _, m := range media {
			if m.SizeBytes > limit {
				return nil, apperrors.Newf(apperrors.ErrFileTooLarge,
					"attachment %s is %d bytes, limit %d", m.RelativePath, m.SizeBytes, limit)
			}
		}
	}

	key := c.noteKey(noteID)
	if err := c.store.Put(ctx, key, strings.NewReader(string(record)), int64(len(record)), "application/json"); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
	}

	if c.caps.SupportsBlobs {
		for _, m := range media {
			if err := c.uploadMedia(ctx, noteID, m); err != nil {
				return nil, err
			}
		}
	}

	return &RemoteRef{Key: key}, nil
}

func (c *objectClient) uploadMedia(ctx context.Context, noteID string, m MediaFile) error {
	r, err := m.Open()
	if err != nil {
		return fmt.Errorf("failed to open media %s: %w", m.RelativePath, err)
	}
	defer r.Close()
	if err := c.store.Put(ctx, c.mediaKey(noteID, m.RelativePath), r, m.SizeBytes, ""); err != nil {
		return apperrors.Wrap(apperrors.ErrNetwork, err)
	}
	return nil
}

// DownloadNote fetches the record bytes behind a ref.
func (c *objectClient) DownloadNote(ctx context.Context, ref RemoteRef) ([]byte, error) {
	r, err := c.store.Get(ctx, ref.Key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
	}
	return data, nil
}

// DownloadMedia fetches one attachment payload.
func (c *objectClient) DownloadMedia(ctx context.Context, noteID, relativePath string) (io.ReadCloser, error) {
	r, err := c.store.Get(ctx, c.mediaKey(noteID, relativePath))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
	}
	return r, nil
}

func parseCursor(cursor string) (time.Time, error) {
	if cursor == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, cursor)
	if err != nil {
		return time.Time{}, apperrors.Newf(apperrors.ErrInvalidParams, "bad cursor %q", cursor)
	}
	return t, nil
}

func formatCursor(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
