package notestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return NewStore(db)
}

func makeNote(id string, updatedAt time.Time) *database.Note {
	return &database.Note{
		ID:        id,
		Title:     "title " + id,
		Content:   "content " + id,
		CreatedAt: updatedAt.Add(-time.Hour),
		UpdatedAt: updatedAt,
	}
}

func TestUpsertCreatesAndPreservesTimestamps(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	note := makeNote("n1", ts)
	applied, err := store.Upsert(note)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := store.Get("n1")
	require.NoError(t, err)
	assert.Equal(t, "title n1", got.Title)
	assert.True(t, got.UpdatedAt.Equal(ts))
	assert.True(t, got.CreatedAt.Equal(ts.Add(-time.Hour)))
}

func TestUpsertLastWriteWins(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.Upsert(makeNote("n1", ts))
	require.NoError(t, err)

	older := makeNote("n1", ts.Add(-time.Minute))
	older.Title = "stale"
	applied, err := store.Upsert(older)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := store.Get("n1")
	require.NoError(t, err)
	assert.Equal(t, "title n1", got.Title)

	newer := makeNote("n1", ts.Add(time.Minute))
	newer.Title = "fresh"
	applied, err = store.Upsert(newer)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err = store.Get("n1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Title)
}

func TestUpsertReplacesAttachments(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	note := makeNote("n1", ts)
	note.Attachments = []database.Attachment{
		{ID: "a1", Name: "one.png", RelativePath: "one.png", Type: database.AttachmentTypeImage},
	}
	_, err := store.Upsert(note)
	require.NoError(t, err)

	next := makeNote("n1", ts.Add(time.Minute))
	next.Attachments = []database.Attachment{
		{ID: "a2", Name: "two.png", RelativePath: "two.png", Type: database.AttachmentTypeImage},
	}
	_, err = store.Upsert(next)
	require.NoError(t, err)

	got, err := store.Get("n1")
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "a2", got.Attachments[0].ID)
}

func TestCompareAndSwap(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Zero readUpdatedAt means the writer saw no note; creation succeeds.
	note := makeNote("n1", ts)
	require.NoError(t, store.CompareAndSwap(note, time.Time{}))

	// A second expect-absent write conflicts.
	err := store.CompareAndSwap(makeNote("n1", ts.Add(time.Minute)), time.Time{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrStoreConflict, apperrors.CodeOf(err))

	// Matching readUpdatedAt wins.
	update := makeNote("n1", ts.Add(time.Minute))
	update.Title = "swapped"
	require.NoError(t, store.CompareAndSwap(update, ts))

	// The old timestamp is now stale.
	err = store.CompareAndSwap(makeNote("n1", ts.Add(2*time.Minute)), ts)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrStoreConflict, apperrors.CodeOf(err))

	got, err := store.Get("n1")
	require.NoError(t, err)
	assert.Equal(t, "swapped", got.Title)
}

func TestDeleteTombstones(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.Upsert(makeNote("n1", ts))
	require.NoError(t, err)

	require.NoError(t, store.Delete("n1"))

	got, err := store.Get("n1")
	require.NoError(t, err)
	assert.True(t, got.IsTombstone())
	assert.True(t, got.UpdatedAt.After(ts))

	// Deleting an already tombstoned note reports not found.
	err = store.Delete("n1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))

	active, err := store.ListActive()
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := store.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertRejectsInvertedTimestamps(t *testing.T) {
	store := newTestStore(t)

	note := makeNote("n1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	note.CreatedAt = note.UpdatedAt.Add(time.Hour)
	_, err := store.Upsert(note)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidParams, apperrors.CodeOf(err))
}
