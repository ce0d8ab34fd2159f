package provider

import (
	"path/filepath"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
)

// Options carries environment the factory needs beyond the persisted config.
type Options struct {
	// GitWorkRoot is where git-backed providers keep their local clones.
	GitWorkRoot string
}

// Per-backend single-upload limits, enforced client-side.
const (
	objectStorageMaxFileSize = 5 << 30   // 5 GiB single PUT
	qiniuMaxFileSize         = 1 << 30   // form upload limit
	gitMaxFileSize           = 100 << 20 // common hosted-git blob limit
)

func displayNameFor(cfg *database.ProviderConfig) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	switch cfg.Kind {
	case database.ProviderS3:
		return "S3 Object Storage"
	case database.ProviderAliyun:
		return "Aliyun OSS"
	case database.ProviderQiniu:
		return "Qiniu Kodo"
	case database.ProviderTencent:
		return "Tencent COS"
	case database.ProviderWebDAV:
		return "WebDAV"
	case database.ProviderGit:
		return "Git Repository"
	case database.ProviderMemory:
		return "In-Memory"
	default:
		return cfg.Kind
	}
}

func bucketConfigured(cfg *database.ProviderConfig) bool {
	return cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != ""
}

// NewClient builds a provider client from its persisted configuration.
func NewClient(cfg *database.ProviderConfig, opts Options) (Client, error) {
	name := displayNameFor(cfg)

	switch cfg.Kind {
	case database.ProviderS3:
		store, err := newS3Store(cfg)
		if err != nil {
			return nil, err
		}
		return newObjectClient(cfg.ProviderID, name, cfg.RemotePath, Capabilities{
			SupportsBlobs: true,
			MaxFileSize:   objectStorageMaxFileSize,
		}, store, bucketConfigured(cfg)), nil

	case database.ProviderAliyun:
		store, err := newAliyunStore(cfg)
		if err != nil {
			return nil, err
		}
		return newObjectClient(cfg.ProviderID, name, cfg.RemotePath, Capabilities{
			SupportsBlobs: true,
			MaxFileSize:   objectStorageMaxFileSize,
		}, store, bucketConfigured(cfg)), nil

	case database.ProviderQiniu:
		store, err := newQiniuStore(cfg)
		if err != nil {
			return nil, err
		}
		return newObjectClient(cfg.ProviderID, name, cfg.RemotePath, Capabilities{
			SupportsBlobs: true,
			MaxFileSize:   qiniuMaxFileSize,
		}, store, bucketConfigured(cfg)), nil

	case database.ProviderTencent:
		store, err := newTencentStore(cfg)
		if err != nil {
			return nil, err
		}
		return newObjectClient(cfg.ProviderID, name, cfg.RemotePath, Capabilities{
			SupportsBlobs: true,
			MaxFileSize:   objectStorageMaxFileSize,
		}, store, bucketConfigured(cfg)), nil

	case database.ProviderWebDAV:
		store, err := newWebDAVStore(cfg)
		if err != nil {
			return nil, err
		}
		configured := cfg.Endpoint != "" && cfg.Username != ""
		return newObjectClient(cfg.ProviderID, name, cfg.RemotePath, Capabilities{
			SupportsBlobs: true,
		}, store, configured), nil

	case database.ProviderGit:
		workDir := filepath.Join(opts.GitWorkRoot, cfg.ProviderID)
		client := NewGitClient(cfg, workDir)
		client.caps.MaxFileSize = gitMaxFileSize
		return client, nil

	case database.ProviderMemory:
		return NewMemoryClient(cfg.ProviderID, name, cfg.RemotePath, NewMemoryStore()), nil

	default:
		return nil, apperrors.Newf(apperrors.ErrProviderUnsupported, "kind %q", cfg.Kind)
	}
}
