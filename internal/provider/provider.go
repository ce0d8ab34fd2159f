// Package provider defines the uniform, capability-based client contract
// over remote sync backends and its implementations. Callers never branch on
// a concrete backend type, only on the advertised capabilities.
package provider

import (
	"context"
	"io"
	"time"
)

// Capabilities advertises what a backend can do. They are queried, never
// assumed.
type Capabilities struct {
	// SupportsBlobs reports whether the backend stores attachment payloads
	// alongside note records.
	SupportsBlobs bool `json:"supports_blobs"`
	// SupportsDelta reports whether ListChanges is a true server-side
	// delta rather than a filtered full listing.
	SupportsDelta bool `json:"supports_delta"`
	// MaxFileSize is the largest single upload in bytes. Zero means
	// unlimited. Enforced client-side before any network call.
	MaxFileSize int64 `json:"max_file_size"`
}

// AccountIdentity describes the remote account a connect resolved to.
type AccountIdentity struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
}

// RemoteRef addresses one stored note record on the backend.
type RemoteRef struct {
	Key  string `json:"key"`
	ETag string `json:"etag,omitempty"`
}

// ChangeEntry is one remote note record that changed since a cursor.
type ChangeEntry struct {
	NoteID     string
	Ref        RemoteRef
	ModifiedAt time.Time
	SizeBytes  int64
}

// ChangeSet is the result of a ListChanges call. NextCursor is opaque and
// must only be persisted after the whole batch it covers succeeded.
type ChangeSet struct {
	Entries    []ChangeEntry
	NextCursor string
}

// MediaFile is one attachment payload offered for upload. Open is a factory
// so a payload can be re-read per backend attempt.
type MediaFile struct {
	RelativePath string
	SizeBytes    int64
	Open         func() (io.ReadCloser, error)
}

// Client is the provider client contract. All operations are idempotent with
// respect to note and attachment ids: re-uploading the same id overwrites the
// same remote object, never duplicates it. Implementations touch only the
// remote backend and their own auth state, never the local note store.
type Client interface {
	// ID returns the stable provider token the client is addressed by.
	ID() string
	// DisplayName returns a human-readable provider name.
	DisplayName() string
	// Capabilities returns the advertised capability set.
	Capabilities() Capabilities
	// IsConfigured reports whether credentials are present.
	IsConfigured() bool

	// Connect verifies credentials against the backend and resolves the
	// account identity. Failures are auth errors.
	Connect(ctx context.Context) (*AccountIdentity, error)
	// Disconnect releases any provider-local session state.
	Disconnect(ctx context.Context) error

	// ListChanges returns note records modified since the cursor. An empty
	// cursor means "everything".
	ListChanges(ctx context.Context, cursor string) (*ChangeSet, error)
	// UploadNote stores the note record and, when blobs are supported, its
	// media payloads.
	UploadNote(ctx context.Context, noteID string, record []byte, media []MediaFile) (*RemoteRef, error)
	// DownloadNote fetches the note record bytes behind a ref.
	DownloadNote(ctx context.Context, ref RemoteRef) ([]byte, error)
	// DownloadMedia fetches one attachment payload of a note.
	DownloadMedia(ctx context.Context, noteID, relativePath string) (io.ReadCloser, error)
}
