package database

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Attachment type values.
const (
	AttachmentTypeImage  = "image"
	AttachmentTypeFile   = "file"
	AttachmentTypeDoodle = "doodle"
	AttachmentTypeAudio  = "audio"
)

// Note is the unit of synchronization. A note with DeletedAt set is a
// tombstone: it stays in the store and keeps flowing through sync so the
// deletion converges on every device. DeletedAt is therefore a plain
// nullable column, not a gorm soft-delete.
type Note struct {
	ID          string       `gorm:"primarykey;size:36" json:"id"`
	Title       string       `gorm:"size:200" json:"title"`
	Content     string       `gorm:"type:text" json:"content"`
	Tags        []string     `gorm:"serializer:json" json:"tags,omitempty"`
	FolderID    *string      `gorm:"size:36;index" json:"folderId,omitempty"`
	Attachments []Attachment `gorm:"foreignKey:NoteID" json:"attachments,omitempty"`
	// Timestamps are domain data set by the editing device and preserved
	// verbatim by sync, so gorm must not touch them.
	CreatedAt time.Time  `gorm:"autoCreateTime:false" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"index;autoUpdateTime:false" json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// TableName returns the notes table name.
func (Note) TableName() string {
	return "notes"
}

// IsTombstone reports whether the note marks a deletion.
func (n *Note) IsTombstone() bool {
	return n.DeletedAt != nil
}

// ContentHash returns the hex SHA-256 over title and content. Sync uses it
// as the deterministic tie-break when two copies share an updatedAt: the
// lexicographically larger hash wins on every device.
func (n *Note) ContentHash() string {
	h := sha256.New()
	h.Write([]byte(n.Title))
	h.Write([]byte{'\n'})
	h.Write([]byte(n.Content))
	return hex.EncodeToString(h.Sum(nil))
}

// Attachment is a media payload exclusively owned by one note. Its bytes
// live outside the database under the note-scoped RelativePath.
type Attachment struct {
	ID           string    `gorm:"primarykey;size:36" json:"id"`
	NoteID       string    `gorm:"size:36;index" json:"-"`
	Name         string    `gorm:"size:255" json:"name"`
	RelativePath string    `gorm:"size:500" json:"relativePath"`
	Type         string    `gorm:"size:20" json:"type"`
	MimeType     string    `gorm:"size:100" json:"mimeType,omitempty"`
	SizeBytes    int64     `json:"sizeBytes"`
	// DoodleData holds the serialized vector drawing for doodle
	// attachments.
	DoodleData      string `gorm:"type:text" json:"doodleData,omitempty"`
	ThumbnailPath   string `gorm:"size:500" json:"thumbnailPath,omitempty"`
	AudioDurationMs int64  `json:"audioDurationMs,omitempty"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
}

// TableName returns the attachments table name.
func (Attachment) TableName() string {
	return "attachments"
}
