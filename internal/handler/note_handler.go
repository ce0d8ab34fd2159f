// Package handler implements the HTTP endpoints of the trigger surface.
package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
	"github.com/mikaelkraft/quicknote-pro/internal/media"
	"github.com/mikaelkraft/quicknote-pro/internal/notestore"
	"github.com/mikaelkraft/quicknote-pro/internal/response"
)

// NoteHandler serves note CRUD and attachment payloads.
type NoteHandler struct {
	store *notestore.Store
	media *media.Storage
}

// NewNoteHandler creates the note handler.
func NewNoteHandler(store *notestore.Store, mediaStore *media.Storage) *NoteHandler {
	return &NoteHandler{store: store, media: mediaStore}
}

type notePayload struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	FolderID *string  `json:"folderId"`
}

// ListNotes returns every active note.
func (h *NoteHandler) ListNotes(c *gin.Context) {
	notes, err := h.store.ListActive()
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, notes)
}

// CreateNote creates a note with a fresh id.
func (h *NoteHandler) CreateNote(c *gin.Context) {
	var payload notePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "invalid note payload: "+err.Error())
		return
	}

	now := time.Now().UTC()
	note := &database.Note{
		ID:        uuid.NewString(),
		Title:     payload.Title,
		Content:   payload.Content,
		Tags:      payload.Tags,
		FolderID:  payload.FolderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := h.store.Upsert(note); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, note)
}

// GetNote returns one note. Tombstones are reported as not found.
func (h *NoteHandler) GetNote(c *gin.Context) {
	note, err := h.store.Get(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	if note.IsTombstone() {
		response.FromError(c, apperrors.Newf(apperrors.ErrNotFound, "note %s", note.ID))
		return
	}
	response.Success(c, note)
}

// UpdateNote updates a note's content fields. The write is a compare-and-swap
// against the copy just read, so an edit racing a sync apply surfaces as a
// conflict instead of silently overwriting.
func (h *NoteHandler) UpdateNote(c *gin.Context) {
	var payload notePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "invalid note payload: "+err.Error())
		return
	}

	note, err := h.store.Get(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	if note.IsTombstone() {
		response.FromError(c, apperrors.Newf(apperrors.ErrNotFound, "note %s", note.ID))
		return
	}

	readUpdatedAt := note.UpdatedAt
	note.Title = payload.Title
	note.Content = payload.Content
	note.Tags = payload.Tags
	note.FolderID = payload.FolderID
	note.UpdatedAt = time.Now().UTC()

	if err := h.store.CompareAndSwap(note, readUpdatedAt); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, note)
}

// DeleteNote tombstones a note and drops its payloads.
func (h *NoteHandler) DeleteNote(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Delete(id); err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.media.RemoveNote(id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "note deleted", nil)
}

// UploadAttachment stores an attachment payload and links it to the note.
func (h *NoteHandler) UploadAttachment(c *gin.Context) {
	noteID := c.Param("id")
	note, err := h.store.Get(noteID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if note.IsTombstone() {
		response.FromError(c, apperrors.Newf(apperrors.ErrNotFound, "note %s", noteID))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file field")
		return
	}
	attType := c.DefaultPostForm("type", database.AttachmentTypeFile)

	src, err := fileHeader.Open()
	if err != nil {
		response.FromError(c, err)
		return
	}
	defer src.Close()

	att := database.Attachment{
		ID:           uuid.NewString(),
		NoteID:       noteID,
		Name:         fileHeader.Filename,
		RelativePath: fileHeader.Filename,
		Type:         attType,
		MimeType:     fileHeader.Header.Get("Content-Type"),
	}
	written, err := h.media.Write(noteID, att.RelativePath, src)
	if err != nil {
		response.FromError(c, err)
		return
	}
	att.SizeBytes = written

	readUpdatedAt := note.UpdatedAt
	note.Attachments = append(note.Attachments, att)
	note.UpdatedAt = time.Now().UTC()
	if err := h.store.CompareAndSwap(note, readUpdatedAt); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, att)
}

// DownloadAttachment streams a stored attachment payload.
func (h *NoteHandler) DownloadAttachment(c *gin.Context) {
	noteID := c.Param("id")
	rel := c.Param("path")
	if len(rel) > 0 && rel[0] == '/' {
		rel = rel[1:]
	}

	p, err := h.media.PathFor(noteID, rel)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if !h.media.Exists(noteID, rel) {
		response.FromError(c, apperrors.Newf(apperrors.ErrNotFound, "media %s/%s", noteID, rel))
		return
	}
	c.File(p)
}
