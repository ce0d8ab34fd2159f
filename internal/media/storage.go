// Package media stores attachment payloads on disk. Every payload lives
// under a directory scoped to its owning note id, matching the attachment's
// note-relative storage path, so import can re-scope media by simply writing
// under a different note id.
package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/logger"
)

// Storage is a note-scoped file store rooted at a single directory.
type Storage struct {
	root string
	log  *logrus.Entry
}

// NewStorage creates the root directory if needed and returns the store.
func NewStorage(root string) (*Storage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return &Storage{
		root: root,
		log:  logger.WithComponent("media"),
	}, nil
}

// Root returns the storage root directory.
func (s *Storage) Root() string {
	return s.root
}

// PathFor resolves the on-disk location for an attachment. The relative path
// must stay inside the note's directory.
func (s *Storage) PathFor(noteID, relativePath string) (string, error) {
	if noteID == "" {
		return "", apperrors.Newf(apperrors.ErrInvalidParams, "note id is required")
	}
	clean := filepath.Clean(filepath.FromSlash(relativePath))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", apperrors.Newf(apperrors.ErrInvalidParams,
			"invalid attachment path %q", relativePath)
	}
	return filepath.Join(s.root, noteID, clean), nil
}

// Write stores a payload, replacing any previous content. The write goes to
// a temp file first and is renamed into place so readers never observe a
// partial payload.
func (s *Storage) Write(noteID, relativePath string, r io.Reader) (int64, error) {
	dest, err := s.PathFor(noteID, relativePath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("failed to create attachment directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".media-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to write attachment payload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to finalize attachment payload: %w", err)
	}

	s.log.WithFields(logrus.Fields{"note": noteID, "path": relativePath, "bytes": written}).
		Debug("attachment payload stored")
	return written, nil
}

// Open returns a reader over a stored payload.
func (s *Storage) Open(noteID, relativePath string) (io.ReadCloser, error) {
	p, err := s.PathFor(noteID, relativePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "media %s/%s", noteID, relativePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment payload: %w", err)
	}
	return f, nil
}

// Exists reports whether a payload is present.
func (s *Storage) Exists(noteID, relativePath string) bool {
	p, err := s.PathFor(noteID, relativePath)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Size returns the stored payload size in bytes.
func (s *Storage) Size(noteID, relativePath string) (int64, error) {
	p, err := s.PathFor(noteID, relativePath)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return 0, apperrors.Newf(apperrors.ErrNotFound, "media %s/%s", noteID, relativePath)
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// RemoveNote deletes every payload owned by a note.
func (s *Storage) RemoveNote(noteID string) error {
	if noteID == "" {
		return apperrors.Newf(apperrors.ErrInvalidParams, "note id is required")
	}
	return os.RemoveAll(filepath.Join(s.root, noteID))
}
