package handler

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/backup"
	"github.com/mikaelkraft/quicknote-pro/internal/response"
)

// BackupHandler exposes export, share, validation and import.
type BackupHandler struct {
	service *backup.Service
}

// NewBackupHandler creates the backup handler.
func NewBackupHandler(service *backup.Service) *BackupHandler {
	return &BackupHandler{service: service}
}

// Summary previews what a full export would contain.
func (h *BackupHandler) Summary(c *gin.Context) {
	summary, err := h.service.CreateExportSummary()
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, summary)
}

// ExportZip writes a full backup archive and returns its path.
func (h *BackupHandler) ExportZip(c *gin.Context) {
	path, err := h.service.ExportNotesToZip()
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"file_path": path})
}

// ExportJSON writes a metadata-only export and returns its path.
func (h *BackupHandler) ExportJSON(c *gin.Context) {
	path, err := h.service.ExportNotesToJSON()
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"file_path": path})
}

// Download streams a previously exported file. Only files inside the export
// directory are served.
func (h *BackupHandler) Download(c *gin.Context) {
	name := filepath.Base(c.Query("file"))
	if name == "." || name == "/" || name == "" {
		response.BadRequest(c, "file query parameter is required")
		return
	}
	path := filepath.Join(h.service.ExportDir(), name)
	if _, err := os.Stat(path); err != nil {
		response.FromError(c, apperrors.New(apperrors.ErrFileNotFound))
		return
	}
	c.FileAttachment(path, name)
}

type shareRequest struct {
	FilePath string `json:"file_path" binding:"required"`
	Subject  string `json:"subject"`
}

// Share copies an export into the share outbox.
func (h *BackupHandler) Share(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "file_path is required")
		return
	}
	path, err := h.service.ShareBackupFile(req.FilePath, req.Subject)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"file_path": path})
}

// incomingFile resolves the backup file a request refers to: either a
// multipart upload (spooled to a temp file) or a file_path form/query value
// pointing at a local file. The cleanup func removes any spooled copy.
func (h *BackupHandler) incomingFile(c *gin.Context) (string, func(), error) {
	if fileHeader, err := c.FormFile("file"); err == nil {
		tmpDir, err := os.MkdirTemp("", "quicknote-import-")
		if err != nil {
			return "", nil, err
		}
		dest := filepath.Join(tmpDir, filepath.Base(fileHeader.Filename))
		if err := c.SaveUploadedFile(fileHeader, dest); err != nil {
			os.RemoveAll(tmpDir)
			return "", nil, err
		}
		return dest, func() { os.RemoveAll(tmpDir) }, nil
	}

	path := strings.TrimSpace(c.PostForm("file_path"))
	if path == "" {
		path = strings.TrimSpace(c.Query("file_path"))
	}
	if path == "" {
		return "", nil, apperrors.Newf(apperrors.ErrInvalidParams,
			"either a file upload or file_path is required")
	}
	return path, func() {}, nil
}

// Validate inspects a backup file without importing it.
func (h *BackupHandler) Validate(c *gin.Context) {
	path, cleanup, err := h.incomingFile(c)
	if err != nil {
		response.FromError(c, err)
		return
	}
	defer cleanup()

	report, err := h.service.ValidateBackupFile(path)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, report)
}

// Import merges a backup file into the local store under the requested
// strategy. The file format is detected by content.
func (h *BackupHandler) Import(c *gin.Context) {
	path, cleanup, err := h.incomingFile(c)
	if err != nil {
		response.FromError(c, err)
		return
	}
	defer cleanup()

	strategy := c.PostForm("strategy")
	if strategy == "" {
		strategy = c.Query("strategy")
	}

	report, err := h.service.ValidateBackupFile(path)
	if err != nil {
		response.FromError(c, err)
		return
	}

	var result *backup.ImportResult
	switch report.Format {
	case backup.FormatZip:
		result, err = h.service.ImportFromZip(path, strategy)
	default:
		result, err = h.service.ImportFromJSON(path, strategy)
	}
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}
