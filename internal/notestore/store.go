// Package notestore is the local note store collaborator. It exposes
// last-write-wins upserts keyed by updatedAt plus a per-note compare-and-swap
// so the sync and import paths can both mutate the store without a global
// lock: a write only lands if the stored updatedAt still matches what the
// writer read.
package notestore

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
	"github.com/mikaelkraft/quicknote-pro/internal/logger"
)

// Store provides access to locally persisted notes, tombstones included.
type Store struct {
	db  *gorm.DB
	log *logrus.Entry
}

// NewStore creates a note store on the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:  db,
		log: logger.WithComponent("notestore"),
	}
}

// Get returns the note with the given id, attachments included. Tombstones
// are returned like any other note.
func (s *Store) Get(id string) (*database.Note, error) {
	var note database.Note
	err := s.db.Preload("Attachments").First(&note, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "note %s", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return &note, nil
}

// ListAll returns every note including tombstones, ordered by id for
// deterministic iteration.
func (s *Store) ListAll() ([]database.Note, error) {
	var notes []database.Note
	if err := s.db.Preload("Attachments").Order("id").Find(&notes).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return notes, nil
}

// ListActive returns every non-tombstone note.
func (s *Store) ListActive() ([]database.Note, error) {
	var notes []database.Note
	err := s.db.Preload("Attachments").
		Where("deleted_at IS NULL").
		Order("id").
		Find(&notes).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return notes, nil
}

// Count returns the number of notes, tombstones included.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&database.Note{}).Count(&n).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return n, nil
}

// Upsert writes the note under last-write-wins semantics keyed by updatedAt.
// An incoming copy older than the stored one is ignored. Returns whether the
// write was applied.
func (s *Store) Upsert(note *database.Note) (bool, error) {
	if err := normalize(note); err != nil {
		return false, err
	}

	applied := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing database.Note
		err := tx.Select("id", "updated_at").First(&existing, "id = ?", note.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			applied = true
			return writeNote(tx, note, true)
		case err != nil:
			return err
		}
		if existing.UpdatedAt.After(note.UpdatedAt) {
			return nil
		}
		applied = true
		return writeNote(tx, note, false)
	})
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return applied, nil
}

// CompareAndSwap writes the note only if the stored updatedAt still equals
// readUpdatedAt (zero means "note did not exist when read"). A mismatch
// returns ErrStoreConflict so the caller can re-read and re-decide.
func (s *Store) CompareAndSwap(note *database.Note, readUpdatedAt time.Time) error {
	if err := normalize(note); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing database.Note
		err := tx.Select("id", "updated_at").First(&existing, "id = ?", note.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if !readUpdatedAt.IsZero() {
				return apperrors.Newf(apperrors.ErrStoreConflict, "note %s disappeared", note.ID)
			}
			return writeNote(tx, note, true)
		case err != nil:
			return err
		}
		if readUpdatedAt.IsZero() || !existing.UpdatedAt.Equal(readUpdatedAt.UTC()) {
			return apperrors.Newf(apperrors.ErrStoreConflict, "note %s", note.ID)
		}
		return writeNote(tx, note, false)
	})
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrStoreConflict {
			return err
		}
		return apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return nil
}

// Delete tombstones the note: deletedAt and updatedAt are set so the
// deletion propagates through sync instead of vanishing locally.
func (s *Store) Delete(id string) error {
	now := time.Now().UTC()
	res := s.db.Model(&database.Note{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{"deleted_at": now, "updated_at": now})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrStoreQuery, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "note %s", id)
	}
	s.log.WithField("note", id).Debug("note tombstoned")
	return nil
}

// Purge removes a note row and its attachments entirely. Sync never calls
// this; it exists for retention cleanup of old tombstones.
func (s *Store) Purge(id string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("note_id = ?", id).Delete(&database.Attachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&database.Note{}, "id = ?", id).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return nil
}

// writeNote persists the note row and replaces its attachment rows.
func writeNote(tx *gorm.DB, note *database.Note, create bool) error {
	attachments := note.Attachments
	note.Attachments = nil
	defer func() { note.Attachments = attachments }()

	if create {
		if err := tx.Create(note).Error; err != nil {
			return err
		}
	} else {
		// Select forces zeroed fields (cleared tags, nil folder) through
		// and keeps the JSON serializer applied to Tags.
		if err := tx.Model(&database.Note{ID: note.ID}).
			Select("title", "content", "tags", "folder_id", "updated_at", "deleted_at").
			Updates(note).Error; err != nil {
			return err
		}
		if err := tx.Where("note_id = ?", note.ID).Delete(&database.Attachment{}).Error; err != nil {
			return err
		}
	}

	for i := range attachments {
		attachments[i].NoteID = note.ID
		if err := tx.Create(&attachments[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// normalize pins timestamps to UTC and checks the updatedAt >= createdAt
// invariant. A synced tombstone may arrive with zero content timestamps from
// an older client, so only the ordering is enforced.
func normalize(note *database.Note) error {
	if note.ID == "" {
		return apperrors.Newf(apperrors.ErrInvalidParams, "note id is required")
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = note.CreatedAt
	}
	note.CreatedAt = note.CreatedAt.UTC()
	note.UpdatedAt = note.UpdatedAt.UTC()
	if note.DeletedAt != nil {
		t := note.DeletedAt.UTC()
		note.DeletedAt = &t
	}
	if note.UpdatedAt.Before(note.CreatedAt) {
		return apperrors.Newf(apperrors.ErrInvalidParams,
			"note %s: updatedAt precedes createdAt", note.ID)
	}
	return nil
}
