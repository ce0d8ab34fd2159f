package backup

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
)

// Merge strategies for import.
const (
	// StrategyLastWriteWins merges by note id: the copy with the later
	// updatedAt wins, an exact tie keeps the local copy.
	StrategyLastWriteWins = "lastWriteWins"
	// StrategyImportAsCopies inserts every record under a fresh id, never
	// touching existing notes.
	StrategyImportAsCopies = "importAsCopies"
)

// Backup file formats.
const (
	FormatZip  = "zip"
	FormatJSON = "json"
)

// ValidationReport is the result of inspecting a backup file before import.
type ValidationReport struct {
	FileName        string `json:"file_name"`
	Format          string `json:"format"`
	NoteCount       int    `json:"note_count"`
	AttachmentCount int    `json:"attachment_count"`
	MediaEntryCount int    `json:"media_entry_count"`
}

// ImportResult accounts for every record in the imported file:
// Created + Updated + Skipped always equals the number of records processed.
// Errors are per-note failures that prevented a record from landing;
// Warnings cover degraded outcomes such as missing media payloads.
type ImportResult struct {
	Created            int      `json:"created"`
	Updated            int      `json:"updated"`
	Skipped            int      `json:"skipped"`
	MediaFilesImported int      `json:"media_files_imported"`
	Errors             []string `json:"errors,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}

// mediaSource resolves an attachment payload out of a backup file. The bool
// reports whether the payload exists in the backup at all.
type mediaSource func(noteID, relativePath string) (io.ReadCloser, bool, error)

// noMedia is the source for metadata-only backups.
func noMedia(string, string) (io.ReadCloser, bool, error) { return nil, false, nil }

// ValidateBackupFile checks that a file is an importable backup and reports
// what it contains. The file is sniffed by content, not extension.
func (s *Service) ValidateBackupFile(filePath string) (*ValidationReport, error) {
	format, err := sniffFormat(filePath)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{
		FileName: filepath.Base(filePath),
		Format:   format,
	}

	var notes []database.Note
	switch format {
	case FormatZip:
		archive, err := openArchive(filePath)
		if err != nil {
			return nil, err
		}
		defer archive.Close()
		notes = archive.notes
		report.MediaEntryCount = len(archive.media)
	case FormatJSON:
		notes, err = readJSONBackup(filePath)
		if err != nil {
			return nil, err
		}
	}

	report.NoteCount = len(notes)
	for i := range notes {
		report.AttachmentCount += len(notes[i].Attachments)
	}
	return report, nil
}

// ImportFromZip imports a full backup archive under the given strategy.
func (s *Service) ImportFromZip(filePath, strategy string) (*ImportResult, error) {
	if err := checkStrategy(strategy); err != nil {
		return nil, err
	}
	archive, err := openArchive(filePath)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	return s.importNotes(archive.notes, archive.source(), strategy)
}

// ImportFromJSON imports a metadata-only backup. Attachment metadata is
// restored but every payload is reported missing.
func (s *Service) ImportFromJSON(filePath, strategy string) (*ImportResult, error) {
	if err := checkStrategy(strategy); err != nil {
		return nil, err
	}
	notes, err := readJSONBackup(filePath)
	if err != nil {
		return nil, err
	}
	return s.importNotes(notes, noMedia, strategy)
}

func checkStrategy(strategy string) error {
	switch strategy {
	case StrategyLastWriteWins, StrategyImportAsCopies:
		return nil
	}
	return apperrors.Newf(apperrors.ErrInvalidParams, "unknown merge strategy %q", strategy)
}

// importNotes runs the selected merge strategy over the backup records.
func (s *Service) importNotes(records []database.Note, source mediaSource, strategy string) (*ImportResult, error) {
	result := &ImportResult{}

	for i := range records {
		rec := records[i]
		if rec.ID == "" {
			result.Skipped++
			result.Warnings = append(result.Warnings, "record without id skipped")
			continue
		}

		switch strategy {
		case StrategyLastWriteWins:
			s.mergeLastWriteWins(&rec, source, result)
		case StrategyImportAsCopies:
			s.importAsCopy(&rec, source, result)
		}
	}

	s.log.WithFields(logrus.Fields{
		"strategy": strategy,
		"created":  result.Created,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"media":    result.MediaFilesImported,
	}).Info("import finished")
	return result, nil
}

func (s *Service) mergeLastWriteWins(rec *database.Note, source mediaSource, result *ImportResult) {
	existing, err := s.store.Get(rec.ID)
	if err != nil && apperrors.CodeOf(err) != apperrors.ErrNotFound {
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("note %s: %v", rec.ID, err))
		return
	}

	if existing != nil && !rec.UpdatedAt.After(existing.UpdatedAt) {
		// Local copy is newer or the timestamps tie: local wins.
		result.Skipped++
		return
	}

	if _, err := s.store.Upsert(rec); err != nil {
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("note %s: %v", rec.ID, err))
		return
	}

	if existing == nil {
		result.Created++
	} else {
		result.Updated++
	}
	if rec.IsTombstone() {
		if err := s.media.RemoveNote(rec.ID); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("note %s: media cleanup failed: %v", rec.ID, err))
		}
		return
	}
	restored, warnings := s.restoreMedia(source, rec.ID, rec)
	result.MediaFilesImported += restored
	result.Warnings = append(result.Warnings, warnings...)
}

func (s *Service) importAsCopy(rec *database.Note, source mediaSource, result *ImportResult) {
	if rec.IsTombstone() {
		// Duplicating a deletion marker is meaningless.
		result.Skipped++
		return
	}

	originalID := rec.ID
	rec.ID = uuid.NewString()
	for i := range rec.Attachments {
		rec.Attachments[i].ID = uuid.NewString()
		rec.Attachments[i].NoteID = rec.ID
	}

	if _, err := s.store.Upsert(rec); err != nil {
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("note %s: %v", originalID, err))
		return
	}
	result.Created++
	restored, warnings := s.restoreMedia(source, originalID, rec)
	result.MediaFilesImported += restored
	result.Warnings = append(result.Warnings, warnings...)
}

// restoreMedia writes a note's payloads out of the backup and reports how
// many landed. sourceID is the id the payloads are stored under in the
// backup, which differs from the note's id when importing as copies.
func (s *Service) restoreMedia(source mediaSource, sourceID string, note *database.Note) (int, []string) {
	restored := 0
	var warnings []string
	for _, att := range note.Attachments {
		if att.RelativePath == "" {
			continue
		}
		r, ok, err := source(sourceID, att.RelativePath)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf(
				"note %s: media %s unreadable: %v", note.ID, att.RelativePath, err))
			continue
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf(
				"note %s: media %s missing from backup", note.ID, att.RelativePath))
			continue
		}
		_, werr := s.media.Write(note.ID, att.RelativePath, r)
		r.Close()
		if werr != nil {
			warnings = append(warnings, fmt.Sprintf(
				"note %s: media %s restore failed: %v", note.ID, att.RelativePath, werr))
			continue
		}
		restored++
	}
	return restored, warnings
}

// sniffFormat identifies a backup file by content.
func sniffFormat(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return "", apperrors.New(apperrors.ErrFileNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read backup file: %w", err)
	}
	head = head[:n]

	if bytes.HasPrefix(head, []byte("PK\x03\x04")) {
		return FormatZip, nil
	}
	trimmed := strings.TrimLeftFunc(string(head), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return FormatJSON, nil
	}
	return "", apperrors.New(apperrors.ErrUnsupportedFormat)
}

// parsedArchive is an opened zip backup: the decoded manifest plus an index
// of the media entries keyed by "<noteID>/<relativePath>".
type parsedArchive struct {
	reader *zip.ReadCloser
	notes  []database.Note
	media  map[string]*zip.File
}

func openArchive(filePath string) (*parsedArchive, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, apperrors.New(apperrors.ErrFileNotFound)
	}

	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUnsupportedFormat)
	}

	archive := &parsedArchive{
		reader: zr,
		media:  make(map[string]*zip.File),
	}

	var manifest *zip.File
	for _, zf := range zr.File {
		name := path.Clean(zf.Name)
		switch {
		case name == manifestName:
			manifest = zf
		case strings.HasPrefix(name, mediaPrefix) && !zf.FileInfo().IsDir():
			archive.media[strings.TrimPrefix(name, mediaPrefix)] = zf
		}
	}
	if manifest == nil {
		zr.Close()
		return nil, apperrors.Newf(apperrors.ErrMalformedPayload, "archive has no %s", manifestName)
	}

	r, err := manifest.Open()
	if err != nil {
		zr.Close()
		return nil, apperrors.Wrap(apperrors.ErrMalformedPayload, err)
	}
	err = json.NewDecoder(r).Decode(&archive.notes)
	r.Close()
	if err != nil {
		zr.Close()
		return nil, apperrors.Wrap(apperrors.ErrMalformedPayload, err)
	}
	return archive, nil
}

func (a *parsedArchive) source() mediaSource {
	return func(noteID, relativePath string) (io.ReadCloser, bool, error) {
		zf, ok := a.media[path.Join(noteID, relativePath)]
		if !ok {
			return nil, false, nil
		}
		r, err := zf.Open()
		if err != nil {
			return nil, true, err
		}
		return r, true, nil
	}
}

// Close releases the underlying zip reader.
func (a *parsedArchive) Close() error {
	if a.reader != nil {
		return a.reader.Close()
	}
	return nil
}

func readJSONBackup(filePath string) ([]database.Note, error) {
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, apperrors.New(apperrors.ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	var notes []database.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedPayload, err)
	}
	return notes, nil
}
