package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
	"github.com/mikaelkraft/quicknote-pro/internal/logger"
)

// GitClient syncs notes through a git repository by wrapping the git binary.
// The repository itself is the backend: every note record is a file under
// <base>/notes, media under <base>/media, and the cursor is a commit SHA, so
// ListChanges is a true delta (git diff between cursor and HEAD).
type GitClient struct {
	id         string
	name       string
	repoURL    string
	branch     string
	base       string
	workDir    string
	caps       Capabilities
	configured bool
	log        *logrus.Entry
}

// NewGitClient creates a git-backed provider client cloning into workDir.
func NewGitClient(cfg *database.ProviderConfig, workDir string) *GitClient {
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	return &GitClient{
		id:      cfg.ProviderID,
		name:    displayNameFor(cfg),
		repoURL: cfg.RepoURL,
		branch:  branch,
		base:    strings.Trim(cfg.RemotePath, "/"),
		workDir: workDir,
		caps: Capabilities{
			SupportsBlobs: true,
			SupportsDelta: true,
		},
		configured: cfg.RepoURL != "",
		log:        logger.WithComponent("provider").WithField("provider", cfg.ProviderID),
	}
}

func (g *GitClient) ID() string                 { return g.id }
func (g *GitClient) DisplayName() string        { return g.name }
func (g *GitClient) Capabilities() Capabilities { return g.caps }
func (g *GitClient) IsConfigured() bool         { return g.configured }

// run executes a git command inside the working clone.
func (g *GitClient) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w\n%s", args[0], err, string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// ensureRepo clones the remote on first use and checks out the sync branch.
func (g *GitClient) ensureRepo(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(g.workDir, ".git")); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(g.workDir), 0755); err != nil {
		return fmt.Errorf("failed to create git work directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "clone", g.repoURL, g.workDir)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone failed: %w\n%s", err, string(output))
	}

	// A fresh or empty remote may not have the branch yet.
	if _, err := g.run(ctx, "checkout", "-B", g.branch, "origin/"+g.branch); err != nil {
		if _, err := g.run(ctx, "checkout", "-B", g.branch); err != nil {
			return err
		}
	}
	return nil
}

// remoteBranchExists reports whether origin already has the sync branch.
func (g *GitClient) remoteBranchExists(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "ls-remote", "--heads", "origin", g.branch)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// Connect clones if needed and verifies the remote is reachable with the
// configured credentials.
func (g *GitClient) Connect(ctx context.Context) (*AccountIdentity, error) {
	if !g.configured {
		return nil, apperrors.Newf(apperrors.ErrNotConfigured, "provider %s", g.id)
	}
	if err := g.ensureRepo(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAuthFailed, err)
	}
	if _, err := g.run(ctx, "ls-remote", "origin", "HEAD"); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAuthFailed, err)
	}
	return &AccountIdentity{AccountID: g.repoURL, DisplayName: g.name}, nil
}

// Disconnect keeps the clone around; only session state would be dropped
// here and git has none.
func (g *GitClient) Disconnect(ctx context.Context) error {
	return nil
}

func (g *GitClient) notesDir() string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Join(g.base, "notes")), "/")
}

// pathspec is the staging pathspec for the configured base. An empty base
// (remote path "/") must stage the whole worktree; git rejects an empty
// pathspec outright.
func (g *GitClient) pathspec() string {
	if g.base == "" {
		return "."
	}
	return g.base
}

// ListChanges pulls the branch and diffs the cursor commit against HEAD.
func (g *GitClient) ListChanges(ctx context.Context, cursor string) (*ChangeSet, error) {
	if err := g.ensureRepo(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
	}

	hasRemote, err := g.remoteBranchExists(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
	}
	if hasRemote {
		if _, err := g.run(ctx, "pull", "--ff-only", "origin", g.branch); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
		}
	}

	head, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		// No commits at all yet.
		return &ChangeSet{NextCursor: cursor}, nil
	}

	cs := &ChangeSet{NextCursor: head}
	if cursor == head {
		return cs, nil
	}

	var files []string
	if cursor == "" {
		out, err := g.run(ctx, "ls-files", "--", g.notesDir())
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
		}
		files = splitLines(out)
	} else {
		out, err := g.run(ctx, "diff", "--name-only", "--diff-filter=ACMR", cursor, head, "--", g.notesDir())
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
		}
		files = splitLines(out)
	}

	for _, file := range files {
		if !strings.HasSuffix(file, ".json") {
			continue
		}
		entry := ChangeEntry{
			NoteID: strings.TrimSuffix(filepath.Base(file), ".json"),
			Ref:    RemoteRef{Key: file},
		}
		if info, err := os.Stat(filepath.Join(g.workDir, filepath.FromSlash(file))); err == nil {
			entry.ModifiedAt = info.ModTime().UTC()
			entry.SizeBytes = info.Size()
		}
		cs.Entries = append(cs.Entries, entry)
	}
	return cs, nil
}

// UploadNote writes the record and media into the worktree, commits and
// pushes. Fixed file paths keyed by note id keep the upload idempotent.
func (g *GitClient) UploadNote(ctx context.Context, noteID string, record []byte, media []MediaFile) (*RemoteRef, error) {
	if limit := g.caps.MaxFileSize; limit > 0 {
		if int64(len(record)) > limit {
			return nil, apperrors.Newf(apperrors.ErrFileTooLarge,
				"note %s record is %d bytes, limit %d", noteID, len(record), limit)
		}
		for _, m := range media {
			if m.SizeBytes > limit {
				return nil, apperrors.Newf(apperrors.ErrFileTooLarge,
					"attachment %s is %d bytes, limit %d", m.RelativePath, m.SizeBytes, limit)
			}
		}
	}
	if err := g.ensureRepo(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
	}

	rel := filepath.ToSlash(filepath.Join(g.base, "notes", noteID+".json"))
	dest := filepath.Join(g.workDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("failed to create notes directory: %w", err)
	}
	if err := os.WriteFile(dest, record, 0644); err != nil {
		return nil, fmt.Errorf("failed to write note record: %w", err)
	}

	for _, m := range media {
		if err := g.writeMedia(noteID, m); err != nil {
			return nil, err
		}
	}

	if _, err := g.run(ctx, "add", "-A", "--", g.pathspec()); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
	}
	status, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
	}
	if status != "" {
		if _, err := g.run(ctx, "commit", "-m", fmt.Sprintf("sync note %s", noteID)); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
		}
		if _, err := g.run(ctx, "push", "-u", "origin", g.branch); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrNetwork, err)
		}
	}

	return &RemoteRef{Key: rel}, nil
}

func (g *GitClient) writeMedia(noteID string, m MediaFile) error {
	dest := filepath.Join(g.workDir, filepath.FromSlash(g.base), "media", noteID,
		filepath.FromSlash(m.RelativePath))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create media directory: %w", err)
	}
	r, err := m.Open()
	if err != nil {
		return fmt.Errorf("failed to open media %s: %w", m.RelativePath, err)
	}
	defer r.Close()
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create media file: %w", err)
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write media %s: %w", m.RelativePath, err)
	}
	return nil
}

// DownloadNote reads a record file from the worktree; ListChanges already
// pulled the latest state.
func (g *GitClient) DownloadNote(ctx context.Context, ref RemoteRef) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(g.workDir, filepath.FromSlash(ref.Key)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteNotFound, err)
	}
	return data, nil
}

// DownloadMedia reads a media file from the worktree.
func (g *GitClient) DownloadMedia(ctx context.Context, noteID, relativePath string) (io.ReadCloser, error) {
	p := filepath.Join(g.workDir, filepath.FromSlash(g.base), "media", noteID,
		filepath.FromSlash(relativePath))
	f, err := os.Open(p)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteNotFound, err)
	}
	return f, nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
