package provider

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
)

func memReader(data string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte(data))), nil
	}
}

func TestUploadUsesFixedKeys(t *testing.T) {
	store := NewMemoryStore()
	client := NewMemoryClient("mem", "Memory", "quicknote", store)
	ctx := context.Background()

	media := []MediaFile{
		{RelativePath: "img/photo.png", SizeBytes: 4, Open: memReader("data")},
	}
	ref, err := client.UploadNote(ctx, "n1", []byte(`{"id":"n1"}`), media)
	require.NoError(t, err)
	assert.Equal(t, "quicknote/notes/n1.json", ref.Key)
	assert.Equal(t, 2, store.Len())

	// Re-uploading the same note overwrites the same objects.
	_, err = client.UploadNote(ctx, "n1", []byte(`{"id":"n1","title":"x"}`), media)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	data, err := client.DownloadNote(ctx, *ref)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title":"x"`)

	r, err := client.DownloadMedia(ctx, "n1", "img/photo.png")
	require.NoError(t, err)
	defer r.Close()
	payload, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "data", string(payload))
}

func TestListChangesCursorAdvances(t *testing.T) {
	store := NewMemoryStore()
	client := NewMemoryClient("mem", "Memory", "quicknote", store)
	ctx := context.Background()

	_, err := client.UploadNote(ctx, "b", []byte(`{"id":"b"}`), nil)
	require.NoError(t, err)
	_, err = client.UploadNote(ctx, "a", []byte(`{"id":"a"}`), nil)
	require.NoError(t, err)

	cs, err := client.ListChanges(ctx, "")
	require.NoError(t, err)
	require.Len(t, cs.Entries, 2)
	// Entries are ordered by note id regardless of modification order.
	assert.Equal(t, "a", cs.Entries[0].NoteID)
	assert.Equal(t, "b", cs.Entries[1].NoteID)
	require.NotEmpty(t, cs.NextCursor)

	// Nothing changed: no entries, cursor stays put.
	quiet, err := client.ListChanges(ctx, cs.NextCursor)
	require.NoError(t, err)
	assert.Empty(t, quiet.Entries)
	assert.Equal(t, cs.NextCursor, quiet.NextCursor)

	_, err = client.UploadNote(ctx, "c", []byte(`{"id":"c"}`), nil)
	require.NoError(t, err)

	delta, err := client.ListChanges(ctx, cs.NextCursor)
	require.NoError(t, err)
	require.Len(t, delta.Entries, 1)
	assert.Equal(t, "c", delta.Entries[0].NoteID)
	assert.NotEqual(t, cs.NextCursor, delta.NextCursor)
}

func TestListChangesRejectsBadCursor(t *testing.T) {
	client := NewMemoryClient("mem", "Memory", "quicknote", NewMemoryStore())

	_, err := client.ListChanges(context.Background(), "not-a-cursor")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidParams, apperrors.CodeOf(err))
}

func TestUploadSizeLimitFailsFast(t *testing.T) {
	store := NewMemoryStore()
	client := newObjectClient("mem", "Memory", "quicknote", Capabilities{
		SupportsBlobs: true,
		MaxFileSize:   8,
	}, store, true)
	ctx := context.Background()

	_, err := client.UploadNote(ctx, "n1", []byte(`{"id":"n1","content":"too big"}`), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsQuota(err))
	// Nothing reached the backend.
	assert.Equal(t, 0, store.Len())

	media := []MediaFile{{RelativePath: "big.bin", SizeBytes: 100, Open: memReader("x")}}
	_, err = client.UploadNote(ctx, "n1", []byte(`{}`), media)
	require.Error(t, err)
	assert.True(t, apperrors.IsQuota(err))
	assert.Equal(t, 0, store.Len())
}

func TestConnectRequiresConfiguration(t *testing.T) {
	client := newObjectClient("mem", "Memory", "quicknote", Capabilities{}, NewMemoryStore(), false)

	_, err := client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
}
