package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
)

func newTestGitClient(t *testing.T, remotePath string) *GitClient {
	t.Helper()
	return NewGitClient(&database.ProviderConfig{
		ProviderID: "git",
		Kind:       database.ProviderGit,
		RepoURL:    "https://example.invalid/notes.git",
		RemotePath: remotePath,
	}, t.TempDir())
}

func TestGitUploadSizeLimitFailsFast(t *testing.T) {
	client := newTestGitClient(t, "quicknote")
	client.caps.MaxFileSize = 8
	ctx := context.Background()

	// Oversized record. The check fires before any repository work, so no
	// clone of the unreachable remote is ever attempted.
	_, err := client.UploadNote(ctx, "n1", []byte("way past the limit"), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrFileTooLarge, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsQuota(err))

	// Oversized attachment, same fast path.
	_, err = client.UploadNote(ctx, "n1", []byte("ok"), []MediaFile{{
		RelativePath: "big.png",
		SizeBytes:    9,
		Open:         memReader("123456789"),
	}})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrFileTooLarge, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "big.png")
}

func TestGitPathspecNeverEmpty(t *testing.T) {
	assert.Equal(t, "quicknote", newTestGitClient(t, "quicknote").pathspec())

	// A remote path of "/" trims to an empty base, which must stage the
	// whole worktree instead of passing git an empty pathspec.
	assert.Equal(t, ".", newTestGitClient(t, "/").pathspec())
}
