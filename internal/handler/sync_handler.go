package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/mikaelkraft/quicknote-pro/internal/database"
	"github.com/mikaelkraft/quicknote-pro/internal/provider"
	"github.com/mikaelkraft/quicknote-pro/internal/response"
	syncsvc "github.com/mikaelkraft/quicknote-pro/internal/sync"
)

// SyncHandler exposes provider lifecycle, sync triggers and the persisted
// provider configuration.
type SyncHandler struct {
	manager *syncsvc.Manager
	configs *provider.ConfigService
}

// NewSyncHandler creates the sync handler.
func NewSyncHandler(manager *syncsvc.Manager, configs *provider.ConfigService) *SyncHandler {
	return &SyncHandler{manager: manager, configs: configs}
}

// ListProviders returns the status snapshot of every configured provider.
func (h *SyncHandler) ListProviders(c *gin.Context) {
	response.Success(c, h.manager.Statuses())
}

// Connect connects one provider.
func (h *SyncHandler) Connect(c *gin.Context) {
	identity, err := h.manager.Connect(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, identity)
}

// Disconnect disconnects one provider and clears its sync cursor.
func (h *SyncHandler) Disconnect(c *gin.Context) {
	if err := h.manager.Disconnect(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "provider disconnected", nil)
}

// SyncProvider runs one synchronous sync pass for a provider.
func (h *SyncHandler) SyncProvider(c *gin.Context) {
	result, err := h.manager.SyncProvider(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// SyncNow triggers an immediate pass over all connected providers. The work
// runs in the background, detached from the request context; progress is
// observable on the event stream.
func (h *SyncHandler) SyncNow(c *gin.Context) {
	go h.manager.ForceSyncNow(context.Background())
	response.SuccessWithMessage(c, "sync triggered", nil)
}

// SyncLogs returns the most recent sync log records.
func (h *SyncHandler) SyncLogs(c *gin.Context) {
	logs, err := h.manager.RecentLogs(50)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, logs)
}

// Events streams status and progress events over server-sent events until
// the client disconnects. A new subscriber first receives the latest event
// of each stream.
func (h *SyncHandler) Events(c *gin.Context) {
	statusCh, cancelStatus := h.manager.StatusStream().Subscribe()
	defer cancelStatus()
	progressCh, cancelProgress := h.manager.ProgressStream().Subscribe()
	defer cancelProgress()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev := <-statusCh:
			writeSSE(w, "status", ev)
		case ev := <-progressCh:
			writeSSE(w, "progress", ev)
		}
		return true
	})
}

func writeSSE(w io.Writer, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// ListConfigs returns every stored provider configuration.
func (h *SyncHandler) ListConfigs(c *gin.Context) {
	configs, err := h.configs.List()
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, configs)
}

// GetConfig returns one provider configuration.
func (h *SyncHandler) GetConfig(c *gin.Context) {
	cfg, err := h.configs.Get(c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, cfg)
}

// SaveConfig creates or updates a provider configuration. The registry is
// rebuilt from persisted configs at startup, so a change takes effect on the
// next restart.
func (h *SyncHandler) SaveConfig(c *gin.Context) {
	var cfg database.ProviderConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.BadRequest(c, "invalid provider config: "+err.Error())
		return
	}
	if err := h.configs.Save(&cfg); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, cfg)
}

// DeleteConfig removes a provider configuration.
func (h *SyncHandler) DeleteConfig(c *gin.Context) {
	if err := h.configs.Delete(c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "provider config deleted", nil)
}
