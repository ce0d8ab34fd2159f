package sync

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
	"github.com/mikaelkraft/quicknote-pro/internal/media"
	"github.com/mikaelkraft/quicknote-pro/internal/notestore"
	"github.com/mikaelkraft/quicknote-pro/internal/provider"
)

const testProviderID = "mem"

type testEnv struct {
	manager *Manager
	store   *notestore.Store
	media   *media.Storage
	remote  *provider.MemoryStore
}

// newTestEnv builds a full sync environment over an in-memory backend. Two
// environments sharing one remote store behave like two devices syncing
// against the same account.
func newTestEnv(t *testing.T, remote *provider.MemoryStore) *testEnv {
	t.Helper()
	if remote == nil {
		remote = provider.NewMemoryStore()
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	store := notestore.NewStore(db)
	mediaStore, err := media.NewStorage(t.TempDir())
	require.NoError(t, err)

	client := provider.NewMemoryClient(testProviderID, "Memory", "quicknote", remote)
	registry := provider.NewRegistry([]provider.Entry{
		{Client: client, Kind: database.ProviderMemory},
	})

	manager := NewManager(db, store, mediaStore, registry, ManagerConfig{
		NetworkTimeout: 5 * time.Second,
	})
	return &testEnv{manager: manager, store: store, media: mediaStore, remote: remote}
}

func (e *testEnv) connect(t *testing.T) {
	t.Helper()
	_, err := e.manager.Connect(context.Background(), testProviderID)
	require.NoError(t, err)
}

func (e *testEnv) sync(t *testing.T) *Result {
	t.Helper()
	result, err := e.manager.SyncProvider(context.Background(), testProviderID)
	require.NoError(t, err)
	return result
}

func (e *testEnv) state(t *testing.T) ProviderState {
	t.Helper()
	state, ok := e.manager.State(testProviderID)
	require.True(t, ok)
	return state
}

func testNote(id, title string, updatedAt time.Time) *database.Note {
	return &database.Note{
		ID:        id,
		Title:     title,
		Content:   "content of " + id,
		CreatedAt: updatedAt.Add(-time.Hour),
		UpdatedAt: updatedAt,
	}
}

// seedRemote plants a note record on the backend the way another device's
// upload would.
func seedRemote(t *testing.T, remote *provider.MemoryStore, note *database.Note) {
	t.Helper()
	client := provider.NewMemoryClient("seed", "Seed", "quicknote", remote)
	record, err := json.Marshal(note)
	require.NoError(t, err)
	_, err = client.UploadNote(context.Background(), note.ID, record, nil)
	require.NoError(t, err)
}

func TestLifecycleStates(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, StateDisconnected, env.state(t))

	// Syncing before connecting is rejected.
	_, err := env.manager.SyncProvider(context.Background(), testProviderID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrProviderState, apperrors.CodeOf(err))

	env.connect(t)
	assert.Equal(t, StateConnected, env.state(t))

	require.NoError(t, env.manager.Disconnect(context.Background(), testProviderID))
	assert.Equal(t, StateDisconnected, env.state(t))
}

func TestUnknownProvider(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.manager.Connect(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestConcurrentSyncRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	env.connect(t)

	env.manager.mu.Lock()
	env.manager.states[testProviderID].state = StateSyncing
	env.manager.mu.Unlock()

	_, err := env.manager.SyncProvider(context.Background(), testProviderID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrSyncInProgress, apperrors.CodeOf(err))
}

func TestSyncUploadsAndSecondPassIsQuiet(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, id := range []string{"n1", "n2"} {
		_, err := env.store.Upsert(testNote(id, "local "+id, ts))
		require.NoError(t, err)
	}

	env.connect(t)
	result := env.sync(t)
	assert.Equal(t, 2, result.Uploaded)
	assert.Equal(t, 0, result.Downloaded)
	assert.Equal(t, 2, env.remote.Len())

	// The second pass sees its own uploads absorbed into the cursor and
	// both notes shadowed at their uploaded versions: nothing moves.
	second := env.sync(t)
	assert.Equal(t, 0, second.Uploaded)
	assert.Equal(t, 0, second.Downloaded)
	assert.Equal(t, 0, second.Skipped)
	assert.Equal(t, 2, env.remote.Len())
}

func TestSyncDownloadsRemoteNotes(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedRemote(t, env.remote, testNote("n1", "from another device", ts))

	env.connect(t)
	result := env.sync(t)
	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 0, result.Uploaded)

	got, err := env.store.Get("n1")
	require.NoError(t, err)
	assert.Equal(t, "from another device", got.Title)
	assert.True(t, got.UpdatedAt.Equal(ts))

	second := env.sync(t)
	assert.Equal(t, 0, second.Downloaded)
	assert.Equal(t, 0, second.Uploaded)
}

func TestNewerLocalWinsOverRemote(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedRemote(t, env.remote, testNote("n1", "stale remote", ts))
	_, err := env.store.Upsert(testNote("n1", "fresh local", ts.Add(time.Minute)))
	require.NoError(t, err)

	env.connect(t)
	result := env.sync(t)
	assert.Equal(t, 0, result.Downloaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Uploaded)

	got, err := env.store.Get("n1")
	require.NoError(t, err)
	assert.Equal(t, "fresh local", got.Title)
}

func TestRemoteTombstoneBeatsNewerLocalEdit(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	deleted := ts
	tombstone := testNote("n1", "", ts)
	tombstone.Content = ""
	tombstone.DeletedAt = &deleted
	seedRemote(t, env.remote, tombstone)

	// The local edit is newer than the deletion, and still loses.
	_, err := env.store.Upsert(testNote("n1", "edited after delete", ts.Add(time.Hour)))
	require.NoError(t, err)

	env.connect(t)
	result := env.sync(t)
	assert.Equal(t, 1, result.Downloaded)

	got, err := env.store.Get("n1")
	require.NoError(t, err)
	assert.True(t, got.IsTombstone())
}

func TestTimestampTieBreaksOnContentHash(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	local := testNote("n1", "apple", ts)
	remote := testNote("n1", "banana", ts)
	seedRemote(t, env.remote, remote)
	_, err := env.store.Upsert(local)
	require.NoError(t, err)

	env.connect(t)
	env.sync(t)

	got, err := env.store.Get("n1")
	require.NoError(t, err)
	if remote.ContentHash() > local.ContentHash() {
		assert.Equal(t, "banana", got.Title)
	} else {
		assert.Equal(t, "apple", got.Title)
	}
}

func TestCursorRetainedAcrossFailedPass(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedRemote(t, env.remote, testNote("n1", "remote", ts))
	_, err := env.store.Upsert(testNote("n2", "local", ts))
	require.NoError(t, err)

	env.connect(t)
	env.remote.FailPuts = true
	_, err = env.manager.SyncProvider(context.Background(), testProviderID)
	require.Error(t, err)
	assert.Equal(t, StateError, env.state(t))

	// The cursor never advanced, so the retry re-examines n1 and finds it
	// already applied; only n2, whose upload failed, is pushed again.
	env.remote.FailPuts = false
	env.connect(t)
	result := env.sync(t)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, env.remote.Len())

	logs, err := env.manager.RecentLogs(10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "failed", logs[1].Status)
	assert.Equal(t, "success", logs[0].Status)
}

func TestBackdatedNoteStillUploads(t *testing.T) {
	env := newTestEnv(t, nil)
	env.connect(t)
	env.sync(t)

	// A restored backup keeps its original timestamps. The note is still
	// unknown to the backend and must be pushed regardless of how far in
	// the past its updatedAt lies.
	old := time.Now().UTC().Add(-48 * time.Hour)
	_, err := env.store.Upsert(testNote("imported", "from an old backup", old))
	require.NoError(t, err)

	result := env.sync(t)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 1, env.remote.Len())

	// Once accepted it stays quiet.
	third := env.sync(t)
	assert.Equal(t, 0, third.Uploaded)
}

func TestDisconnectClearsSyncState(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedRemote(t, env.remote, testNote("n1", "remote", ts))
	env.connect(t)
	env.sync(t)

	state, err := env.manager.loadState(testProviderID)
	require.NoError(t, err)
	assert.NotEmpty(t, state.Cursor)

	require.NoError(t, env.manager.Disconnect(context.Background(), testProviderID))

	state, err = env.manager.loadState(testProviderID)
	require.NoError(t, err)
	assert.Empty(t, state.Cursor)
}

type denyGate struct{}

func (denyGate) Allows(string) bool { return false }

func TestAdvancedProviderGated(t *testing.T) {
	env := newTestEnv(t, nil)
	env.manager.gate = denyGate{}

	_, err := env.manager.Connect(context.Background(), testProviderID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
	require.Error(t, err)
	assert.Contains(t, err.Error(), FeatureAdvancedSync)
}

func TestTwoDevicesConverge(t *testing.T) {
	remote := provider.NewMemoryStore()
	deviceA := newTestEnv(t, remote)
	deviceB := newTestEnv(t, remote)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	note := testNote("n1", "written on A", ts)
	note.Attachments = []database.Attachment{{
		ID:           "a1",
		Name:         "photo.png",
		RelativePath: "photo.png",
		Type:         database.AttachmentTypeImage,
		SizeBytes:    5,
	}}
	_, err := deviceA.store.Upsert(note)
	require.NoError(t, err)
	_, err = deviceA.media.Write("n1", "photo.png", strings.NewReader("pixel"))
	require.NoError(t, err)

	deviceA.connect(t)
	resultA := deviceA.sync(t)
	assert.Equal(t, 1, resultA.Uploaded)

	deviceB.connect(t)
	resultB := deviceB.sync(t)
	assert.Equal(t, 1, resultB.Downloaded)
	assert.Empty(t, resultB.Warnings)

	got, err := deviceB.store.Get("n1")
	require.NoError(t, err)
	assert.Equal(t, "written on A", got.Title)
	require.Len(t, got.Attachments, 1)
	assert.True(t, deviceB.media.Exists("n1", "photo.png"))

	// Deleting on B propagates back to A as a tombstone.
	require.NoError(t, deviceB.store.Delete("n1"))
	deviceB.sync(t)
	resultA2 := deviceA.sync(t)
	assert.Equal(t, 1, resultA2.Downloaded)

	gotA, err := deviceA.store.Get("n1")
	require.NoError(t, err)
	assert.True(t, gotA.IsTombstone())
	assert.False(t, deviceA.media.Exists("n1", "photo.png"))
}

func TestStatusEventsPublished(t *testing.T) {
	env := newTestEnv(t, nil)

	ch, cancel := env.manager.StatusStream().Subscribe()
	defer cancel()

	env.connect(t)

	var states []ProviderState
	timeout := time.After(2 * time.Second)
	for len(states) < 2 {
		select {
		case ev := <-ch:
			states = append(states, ev.State)
		case <-timeout:
			t.Fatal("timed out waiting for status events")
		}
	}
	assert.Equal(t, StateConnecting, states[0])
	assert.Equal(t, StateConnected, states[1])
}
