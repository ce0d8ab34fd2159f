package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
	"github.com/mikaelkraft/quicknote-pro/internal/provider"
)

// action is the outcome of resolving one note against its remote copy.
type action int

const (
	// actionNone means both copies already agree.
	actionNone action = iota
	// actionApplyRemote means the remote copy wins and replaces the local one.
	actionApplyRemote
	// actionKeepLocal means the local copy wins; the upload phase will push it.
	actionKeepLocal
)

// resolve decides which copy of a note wins. Deletions take precedence over
// concurrent edits regardless of timestamps; otherwise the later updatedAt
// wins, and an exact timestamp tie falls back to the content hash so every
// device picks the same winner.
func resolve(local, remote *database.Note) action {
	if local == nil {
		return actionApplyRemote
	}
	switch {
	case local.IsTombstone() && remote.IsTombstone():
		return actionNone
	case remote.IsTombstone():
		return actionApplyRemote
	case local.IsTombstone():
		return actionKeepLocal
	}

	switch {
	case remote.UpdatedAt.After(local.UpdatedAt):
		return actionApplyRemote
	case local.UpdatedAt.After(remote.UpdatedAt):
		return actionKeepLocal
	}

	localHash, remoteHash := local.ContentHash(), remote.ContentHash()
	switch {
	case remoteHash > localHash:
		return actionApplyRemote
	case remoteHash < localHash:
		return actionKeepLocal
	}
	return actionNone
}

// decodeRecord parses and validates a remote note record.
func decodeRecord(noteID string, record []byte) (*database.Note, error) {
	var note database.Note
	if err := json.Unmarshal(record, &note); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedPayload, err)
	}
	if note.ID == "" {
		return nil, apperrors.Newf(apperrors.ErrMalformedPayload, "record has no note id")
	}
	if noteID != "" && note.ID != noteID {
		return nil, apperrors.Newf(apperrors.ErrMalformedPayload,
			"record id %s does not match remote key %s", note.ID, noteID)
	}
	return &note, nil
}

// encodeRecord renders a note as a wire record.
func encodeRecord(note *database.Note) ([]byte, error) {
	record, err := json.Marshal(note)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return record, nil
}

func (m *Manager) emitProgress(providerID string, fraction float64, message string) {
	m.progress.Publish(ProgressEvent{
		ProviderID:       providerID,
		FractionComplete: fraction,
		Message:          message,
	})
}

// netCtx derives the per-call timeout context for one remote operation.
func (m *Manager) netCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.netTimeout)
}

func (m *Manager) listChanges(ctx context.Context, client provider.Client, cursor string) (*provider.ChangeSet, error) {
	cctx, cancel := m.netCtx(ctx)
	defer cancel()
	return client.ListChanges(cctx, cursor)
}

// fatal reports whether an error must abort the whole pass instead of being
// recorded against a single note. Cancellation and network failures qualify;
// quota and malformed-record errors do not.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || apperrors.IsNetwork(err) || apperrors.IsAuth(err)
}

// runSync executes one full pass: pull remote changes, resolve each against
// the local copy, push local notes the backend has not accepted yet, then try
// to absorb the echo of our own uploads so the next pass starts quiet. Local
// changes are detected against per-note shadows rather than timestamps, so a
// note with a back-dated updatedAt (a restored backup, a skewed clock) is
// still pushed. The cursor and the shadows advance only past work that fully
// succeeded, giving at-least-once semantics on every note.
func (m *Manager) runSync(ctx context.Context, client provider.Client) (*Result, error) {
	providerID := client.ID()
	result := &Result{ProviderID: providerID}
	log := m.log.WithField("provider", providerID)

	state, err := m.loadState(providerID)
	if err != nil {
		return result, err
	}

	m.emitProgress(providerID, 0, "listing remote changes")
	cs, err := m.listChanges(ctx, client, state.Cursor)
	if err != nil {
		return result, err
	}
	log.WithField("changes", len(cs.Entries)).Debug("remote changes listed")

	// Phase 1: pull. Any per-note failure here pins the cursor so the
	// entry is retried next pass.
	pullClean := true
	for i, entry := range cs.Entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		m.emitProgress(providerID, 0.5*float64(i)/float64(len(cs.Entries)),
			fmt.Sprintf("downloading %d/%d", i+1, len(cs.Entries)))

		applied, warnings, err := m.applyRemote(ctx, client, entry)
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			if fatal(ctx, err) {
				return result, err
			}
			pullClean = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("note %s: %v", entry.NoteID, err))
			continue
		}
		if applied {
			result.Downloaded++
		} else {
			result.Skipped++
		}
	}

	// Phase 2: push. A note is pushed when its updatedAt differs from the
	// shadow of the version the backend last accepted. The shadows are
	// loaded after the pull phase, so versions just applied (or confirmed
	// identical) are already covered and never re-uploaded.
	shadows, err := m.loadShadows(providerID)
	if err != nil {
		return result, err
	}
	locals, err := m.store.ListAll()
	if err != nil {
		return result, err
	}

	uploaded := make(map[string]bool)
	for i := range locals {
		note := &locals[i]
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if synced, ok := shadows[note.ID]; ok && synced.Equal(note.UpdatedAt) {
			continue
		}
		m.emitProgress(providerID, 0.5+0.4*float64(i)/float64(len(locals)),
			fmt.Sprintf("uploading %d/%d", i+1, len(locals)))

		if err := m.uploadLocal(ctx, client, note); err != nil {
			if fatal(ctx, err) {
				return result, err
			}
			if apperrors.IsQuota(err) {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("note %s: %v", note.ID, err))
			} else {
				result.Errors = append(result.Errors,
					fmt.Sprintf("note %s: %v", note.ID, err))
			}
			continue
		}
		if err := m.saveShadow(providerID, note.ID, note.UpdatedAt); err != nil {
			return result, err
		}
		uploaded[note.ID] = true
		result.Uploaded++
	}

	// Phase 3: echo absorption. Our uploads reappear as remote changes; if
	// the window past the batch cursor contains nothing but them, skip it.
	nextCursor := cs.NextCursor
	if pullClean && len(uploaded) > 0 {
		echo, err := m.listChanges(ctx, client, cs.NextCursor)
		if err != nil {
			log.Warnf("echo listing failed, next pass re-examines own uploads: %v", err)
		} else if len(echo.Entries) > 0 {
			onlyOurs := true
			for _, e := range echo.Entries {
				if !uploaded[e.NoteID] {
					onlyOurs = false
					break
				}
			}
			if onlyOurs {
				nextCursor = echo.NextCursor
			}
		}
	}

	if pullClean {
		state.Cursor = nextCursor
	}
	state.LastSyncTime = time.Now().UTC()
	if err := m.saveState(state); err != nil {
		return result, err
	}

	m.emitProgress(providerID, 1, "sync complete")
	log.WithFields(logrus.Fields{
		"uploaded":   result.Uploaded,
		"downloaded": result.Downloaded,
		"skipped":    result.Skipped,
	}).Info("sync pass finished")
	return result, nil
}

// applyRemote downloads one changed record, resolves it against the local
// copy and writes the winner. Returns whether the remote copy was applied,
// plus media warnings.
func (m *Manager) applyRemote(ctx context.Context, client provider.Client, entry provider.ChangeEntry) (bool, []string, error) {
	dctx, cancel := m.netCtx(ctx)
	record, err := client.DownloadNote(dctx, entry.Ref)
	cancel()
	if err != nil {
		return false, nil, err
	}

	remote, err := decodeRecord(entry.NoteID, record)
	if err != nil {
		return false, nil, err
	}

	// One conflict retry covers a local edit racing the write; the second
	// conflict surfaces so the pass retries the entry later.
	for attempt := 0; attempt < 2; attempt++ {
		local, err := m.store.Get(remote.ID)
		if err != nil && apperrors.CodeOf(err) != apperrors.ErrNotFound {
			return false, nil, err
		}

		switch resolve(local, remote) {
		case actionApplyRemote:
		case actionNone:
			// Both copies already agree; mark the version as accepted so
			// the push phase leaves it alone.
			if err := m.saveShadow(client.ID(), remote.ID, local.UpdatedAt); err != nil {
				return false, nil, err
			}
			return false, nil, nil
		default:
			return false, nil, nil
		}

		var readUpdatedAt time.Time
		if local != nil {
			readUpdatedAt = local.UpdatedAt
		}
		err = m.store.CompareAndSwap(remote, readUpdatedAt)
		if err == nil {
			if err := m.saveShadow(client.ID(), remote.ID, remote.UpdatedAt); err != nil {
				return false, nil, err
			}
			warnings := m.applyRemoteMedia(ctx, client, remote)
			return true, warnings, nil
		}
		if apperrors.CodeOf(err) != apperrors.ErrStoreConflict {
			return false, nil, err
		}
	}
	return false, nil, apperrors.Newf(apperrors.ErrStoreConflict,
		"note %s kept changing locally", remote.ID)
}

// applyRemoteMedia brings attachment payloads for an applied note down to
// disk. A tombstone instead drops the note's payloads. Media failures never
// fail the note; the record already landed and the payload can be refetched.
func (m *Manager) applyRemoteMedia(ctx context.Context, client provider.Client, note *database.Note) []string {
	if note.IsTombstone() {
		if err := m.media.RemoveNote(note.ID); err != nil {
			return []string{fmt.Sprintf("note %s: media cleanup failed: %v", note.ID, err)}
		}
		return nil
	}
	if !client.Capabilities().SupportsBlobs {
		return nil
	}

	var warnings []string
	for _, att := range note.Attachments {
		if att.RelativePath == "" || m.media.Exists(note.ID, att.RelativePath) {
			continue
		}
		dctx, cancel := m.netCtx(ctx)
		r, err := client.DownloadMedia(dctx, note.ID, att.RelativePath)
		if err != nil {
			cancel()
			warnings = append(warnings, fmt.Sprintf(
				"note %s: media %s unavailable: %v", note.ID, att.RelativePath, err))
			continue
		}
		_, werr := m.media.Write(note.ID, att.RelativePath, r)
		r.Close()
		cancel()
		if werr != nil {
			warnings = append(warnings, fmt.Sprintf(
				"note %s: media %s write failed: %v", note.ID, att.RelativePath, werr))
		}
	}
	return warnings
}

// uploadLocal pushes one local note (or tombstone) to the backend.
func (m *Manager) uploadLocal(ctx context.Context, client provider.Client, note *database.Note) error {
	record, err := encodeRecord(note)
	if err != nil {
		return err
	}

	var files []provider.MediaFile
	if !note.IsTombstone() && client.Capabilities().SupportsBlobs {
		for _, att := range note.Attachments {
			if att.RelativePath == "" {
				continue
			}
			noteID, rel := note.ID, att.RelativePath
			if !m.media.Exists(noteID, rel) {
				// Metadata without a payload happens when the attachment
				// itself came from a blob-less backend.
				continue
			}
			size, err := m.media.Size(noteID, rel)
			if err != nil {
				return err
			}
			files = append(files, provider.MediaFile{
				RelativePath: rel,
				SizeBytes:    size,
				Open: func() (io.ReadCloser, error) {
					return m.media.Open(noteID, rel)
				},
			})
		}
	}

	uctx, cancel := m.netCtx(ctx)
	defer cancel()
	_, err = client.UploadNote(uctx, note.ID, record, files)
	return err
}
