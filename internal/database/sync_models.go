package database

import (
	"time"

	"gorm.io/gorm"
)

// Provider kind tokens. These are the stable ids providers are addressed by.
const (
	ProviderS3      = "s3"
	ProviderAliyun  = "alioss"
	ProviderQiniu   = "qiniu"
	ProviderTencent = "cos"
	ProviderWebDAV  = "webdav"
	ProviderGit     = "git"
	ProviderMemory  = "memory"
)

// ProviderConfig holds the persisted settings and credentials for one sync
// provider. The registry is rebuilt from these rows at startup; which fields
// are meaningful depends on Kind (bucket-style backends use Region/Bucket/
// keys, WebDAV uses Endpoint/Username/Password, git uses RepoURL/Branch).
type ProviderConfig struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	ProviderID string         `gorm:"not null;uniqueIndex;size:32" json:"provider_id"`
	Kind       string         `gorm:"not null;size:20" json:"kind"`
	Name       string         `gorm:"size:100" json:"name"`
	Region     string         `gorm:"size:50" json:"region"`
	Bucket     string         `gorm:"size:100" json:"bucket"`
	AccessKey  string         `gorm:"size:100" json:"access_key"`
	SecretKey  string         `gorm:"size:200" json:"secret_key,omitempty"`
	Endpoint   string         `gorm:"size:200" json:"endpoint"`
	RemotePath string         `gorm:"size:200;default:'quicknote'" json:"remote_path"`
	RepoURL    string         `gorm:"size:300" json:"repo_url"`
	Branch     string         `gorm:"size:100" json:"branch"`
	Username   string         `gorm:"size:100" json:"username"`
	Password   string         `gorm:"size:200" json:"password,omitempty"`
	Enabled    bool           `gorm:"default:true" json:"enabled"`
	AutoSync   bool           `gorm:"default:true" json:"auto_sync"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName returns the provider configs table name.
func (ProviderConfig) TableName() string {
	return "provider_configs"
}

// SyncState tracks per-provider sync progress. Cursor is opaque to everything
// except the provider that issued it and advances only after a fully
// successful batch.
type SyncState struct {
	ProviderID   string    `gorm:"primarykey;size:32" json:"provider_id"`
	Cursor       string    `gorm:"size:200" json:"cursor"`
	LastSyncTime time.Time `json:"last_sync_time"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the sync states table name.
func (SyncState) TableName() string {
	return "sync_states"
}

// SyncShadow records the note version a provider last accepted, either by
// uploading it or by applying the same version from the backend. The push
// phase uploads any note whose updatedAt differs from its shadow, so a note
// the backend has never seen is pushed no matter how old its timestamp is.
type SyncShadow struct {
	ProviderID      string    `gorm:"primarykey;size:32" json:"provider_id"`
	NoteID          string    `gorm:"primarykey;size:64" json:"note_id"`
	SyncedUpdatedAt time.Time `json:"synced_updated_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the sync shadows table name.
func (SyncShadow) TableName() string {
	return "sync_shadows"
}

// SyncLog records one sync run for observability and troubleshooting.
type SyncLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ProviderID string    `gorm:"not null;size:32;index" json:"provider_id"`
	Status     string    `gorm:"not null;size:20" json:"status"`
	Uploaded   int       `json:"uploaded"`
	Downloaded int       `json:"downloaded"`
	Skipped    int       `json:"skipped"`
	ErrorMsg   string    `gorm:"type:text" json:"error_msg,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the sync logs table name.
func (SyncLog) TableName() string {
	return "sync_logs"
}
