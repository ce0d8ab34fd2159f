// Package backup implements archive export, share hand-off and import with
// merge strategies. Archives are plain zip files carrying a notes.json
// manifest plus the attachment payloads, so they stay readable without this
// application.
package backup

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
	"github.com/mikaelkraft/quicknote-pro/internal/logger"
	"github.com/mikaelkraft/quicknote-pro/internal/media"
	"github.com/mikaelkraft/quicknote-pro/internal/notestore"
)

// Archive layout.
const (
	manifestName = "notes.json"
	mediaPrefix  = "media/"
)

// Service implements backup export, sharing and import.
type Service struct {
	store     *notestore.Store
	media     *media.Storage
	exportDir string
	shareDir  string
	log       *logrus.Entry
}

// NewService creates the backup service. Export and share directories are
// created on first use.
func NewService(store *notestore.Store, mediaStore *media.Storage, exportDir, shareDir string) *Service {
	return &Service{
		store:     store,
		media:     mediaStore,
		exportDir: exportDir,
		shareDir:  shareDir,
		log:       logger.WithComponent("backup"),
	}
}

// ExportSummary previews what a full export would contain.
type ExportSummary struct {
	CreatedAt       time.Time `json:"created_at"`
	NoteCount       int       `json:"note_count"`
	AttachmentCount int       `json:"attachment_count"`
	MediaBytes      int64     `json:"media_bytes"`
}

// CreateExportSummary counts the active notes, their attachments and the
// stored payload bytes without writing anything.
func (s *Service) CreateExportSummary() (*ExportSummary, error) {
	notes, err := s.store.ListActive()
	if err != nil {
		return nil, err
	}

	summary := &ExportSummary{
		CreatedAt: time.Now().UTC(),
		NoteCount: len(notes),
	}
	for i := range notes {
		for _, att := range notes[i].Attachments {
			summary.AttachmentCount++
			if att.RelativePath == "" {
				continue
			}
			if size, err := s.media.Size(notes[i].ID, att.RelativePath); err == nil {
				summary.MediaBytes += size
			}
		}
	}
	return summary, nil
}

// ExportNotesToZip writes a full backup archive into the export directory and
// returns its path. An empty store still yields a valid archive with an empty
// manifest.
func (s *Service) ExportNotesToZip() (string, error) {
	notes, err := s.store.ListActive()
	if err != nil {
		return "", err
	}

	dest, f, err := s.createExportFile("zip")
	if err != nil {
		return "", err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	if err := writeManifest(zw, notes); err != nil {
		zw.Close()
		os.Remove(dest)
		return "", err
	}

	for i := range notes {
		note := &notes[i]
		for _, att := range note.Attachments {
			if att.RelativePath == "" {
				continue
			}
			if err := s.writeMediaEntry(zw, note.ID, att.RelativePath); err != nil {
				zw.Close()
				os.Remove(dest)
				return "", err
			}
		}
	}

	if err := zw.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	s.log.WithFields(logrus.Fields{"file": dest, "notes": len(notes)}).Info("backup archive written")
	return dest, nil
}

// ExportNotesToJSON writes a metadata-only export: the manifest without any
// attachment payloads.
func (s *Service) ExportNotesToJSON() (string, error) {
	notes, err := s.store.ListActive()
	if err != nil {
		return "", err
	}

	dest, f, err := s.createExportFile("json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(notes); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	s.log.WithFields(logrus.Fields{"file": dest, "notes": len(notes)}).Info("json export written")
	return dest, nil
}

// ShareBackupFile copies an exported file into the share outbox and returns
// the copy's path. The copy is independent: later changes to the original do
// not affect it. The subject is carried as hand-off metadata only.
func (s *Service) ShareBackupFile(filePath, subject string) (string, error) {
	src, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return "", apperrors.New(apperrors.ErrFileNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to open backup file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.shareDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create share directory: %w", err)
	}

	dest := filepath.Join(s.shareDir, filepath.Base(filePath))
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create share copy: %w", err)
	}
	_, err = io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to write share copy: %w", err)
	}

	s.log.WithFields(logrus.Fields{"file": dest, "subject": subject}).Info("backup file shared")
	return dest, nil
}

// ExportDir returns the directory export files are written into.
func (s *Service) ExportDir() string {
	return s.exportDir
}

func (s *Service) createExportFile(ext string) (string, *os.File, error) {
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	name := fmt.Sprintf("quicknote-backup-%s.%s", time.Now().UTC().Format("20060102-150405"), ext)
	dest := filepath.Join(s.exportDir, name)
	f, err := os.Create(dest)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create export file: %w", err)
	}
	return dest, f, nil
}

func writeManifest(zw *zip.Writer, notes []database.Note) error {
	if notes == nil {
		notes = []database.Note{}
	}
	w, err := zw.Create(manifestName)
	if err != nil {
		return fmt.Errorf("failed to create manifest entry: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(notes); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func (s *Service) writeMediaEntry(zw *zip.Writer, noteID, relativePath string) error {
	r, err := s.media.Open(noteID, relativePath)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrNotFound {
			// Attachment metadata without a payload, tolerated on export.
			s.log.WithFields(logrus.Fields{"note": noteID, "path": relativePath}).
				Warn("attachment payload missing, skipped in archive")
			return nil
		}
		return err
	}
	defer r.Close()

	w, err := zw.Create(path.Join(mediaPrefix+noteID, relativePath))
	if err != nil {
		return fmt.Errorf("failed to create media entry: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to write media entry: %w", err)
	}
	return nil
}
