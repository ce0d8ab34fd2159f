// Package sync orchestrates the connect/disconnect/sync lifecycle across the
// configured providers: the per-provider state machine, the reconcile engine,
// interval-based auto-sync and the status/progress broadcast streams.
package sync

import (
	"context"
	"errors"
	"strings"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
	"github.com/mikaelkraft/quicknote-pro/internal/logger"
	"github.com/mikaelkraft/quicknote-pro/internal/media"
	"github.com/mikaelkraft/quicknote-pro/internal/notestore"
	"github.com/mikaelkraft/quicknote-pro/internal/provider"
)

// FeatureAdvancedSync is the entitlement required for self-hosted providers.
const FeatureAdvancedSync = "advanced_sync"

// Gate is the entitlement boundary: the purchase system decides which sync
// features the current user may use.
type Gate interface {
	Allows(feature string) bool
}

// AllowAllGate permits everything; used when no entitlement system is wired.
type AllowAllGate struct{}

// Allows always returns true.
func (AllowAllGate) Allows(string) bool { return true }

// Result summarizes one sync pass over a single provider.
type Result struct {
	ProviderID string        `json:"provider_id"`
	Uploaded   int           `json:"uploaded"`
	Downloaded int           `json:"downloaded"`
	Skipped    int           `json:"skipped"`
	Warnings   []string      `json:"warnings,omitempty"`
	Errors     []string      `json:"errors,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// ManagerConfig tunes the sync manager.
type ManagerConfig struct {
	// AutoSyncInterval is the auto-sync timer period; zero disables it.
	AutoSyncInterval time.Duration
	// NetworkTimeout bounds every single remote call.
	NetworkTimeout time.Duration
	// Gate is the entitlement boundary; nil means allow everything.
	Gate Gate
}

type providerRuntime struct {
	state   ProviderState
	message string
}

// Manager owns all mutable provider sync state. Constructed once at startup
// and handed to consumers; there is no ambient global instance.
type Manager struct {
	db       *gorm.DB
	store    *notestore.Store
	media    *media.Storage
	registry *provider.Registry
	gate     Gate

	netTimeout time.Duration
	interval   time.Duration

	status   *Broadcaster[StatusEvent]
	progress *Broadcaster[ProgressEvent]

	mu     gosync.Mutex
	states map[string]*providerRuntime

	cancelAuto context.CancelFunc
	wg         gosync.WaitGroup

	log *logrus.Entry
}

// NewManager creates a sync manager for the given registry. Every provider
// starts disconnected (or notConfigured when credentials are missing).
func NewManager(db *gorm.DB, store *notestore.Store, mediaStore *media.Storage, registry *provider.Registry, cfg ManagerConfig) *Manager {
	gate := cfg.Gate
	if gate == nil {
		gate = AllowAllGate{}
	}
	netTimeout := cfg.NetworkTimeout
	if netTimeout <= 0 {
		netTimeout = time.Minute
	}

	m := &Manager{
		db:         db,
		store:      store,
		media:      mediaStore,
		registry:   registry,
		gate:       gate,
		netTimeout: netTimeout,
		interval:   cfg.AutoSyncInterval,
		status:     NewBroadcaster[StatusEvent](),
		progress:   NewBroadcaster[ProgressEvent](),
		states:     make(map[string]*providerRuntime),
		log:        logger.WithComponent("sync"),
	}

	for _, client := range registry.All() {
		state := StateDisconnected
		if !client.IsConfigured() {
			state = StateNotConfigured
		}
		m.states[client.ID()] = &providerRuntime{state: state}
	}
	return m
}

// StatusStream returns the broadcast status stream.
func (m *Manager) StatusStream() *Broadcaster[StatusEvent] { return m.status }

// ProgressStream returns the broadcast progress stream.
func (m *Manager) ProgressStream() *Broadcaster[ProgressEvent] { return m.progress }

// State returns the current lifecycle state of one provider.
func (m *Manager) State(providerID string) (ProviderState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.states[providerID]
	if !ok {
		return "", false
	}
	return rt.state, true
}

// Statuses returns the point-in-time view of every provider.
func (m *Manager) Statuses() []ProviderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ProviderStatus
	for _, client := range m.registry.All() {
		rt := m.states[client.ID()]
		kind, _ := m.registry.KindOf(client.ID())
		st := ProviderStatus{
			ProviderID:   client.ID(),
			DisplayName:  client.DisplayName(),
			Kind:         kind,
			Advanced:     m.registry.IsAdvanced(client.ID()),
			State:        rt.state,
			Message:      rt.message,
			IsConfigured: client.IsConfigured(),
			Capabilities: client.Capabilities(),
		}
		if state, err := m.loadState(client.ID()); err == nil && !state.LastSyncTime.IsZero() {
			t := state.LastSyncTime
			st.LastSyncTime = &t
		}
		out = append(out, st)
	}
	return out
}

func (m *Manager) setState(providerID string, state ProviderState, message string) {
	m.mu.Lock()
	rt, ok := m.states[providerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	rt.state = state
	rt.message = message
	m.mu.Unlock()

	m.status.Publish(StatusEvent{
		ProviderID: providerID,
		State:      state,
		Message:    message,
		Timestamp:  time.Now().UTC(),
	})
}

func (m *Manager) client(providerID string) (provider.Client, error) {
	client, ok := m.registry.ByID(providerID)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "provider %s", providerID)
	}
	return client, nil
}

// Connect moves a provider from disconnected (or error) to connected. A
// failed handshake parks the provider in the error state; re-invoking
// Connect is the recovery path.
func (m *Manager) Connect(ctx context.Context, providerID string) (*provider.AccountIdentity, error) {
	client, err := m.client(providerID)
	if err != nil {
		return nil, err
	}
	if m.registry.IsAdvanced(providerID) && !m.gate.Allows(FeatureAdvancedSync) {
		return nil, apperrors.Newf(apperrors.ErrForbidden,
			"provider %s requires the %s entitlement", providerID, FeatureAdvancedSync)
	}
	if !client.IsConfigured() {
		m.setState(providerID, StateNotConfigured, "credentials missing")
		return nil, apperrors.Newf(apperrors.ErrNotConfigured, "provider %s", providerID)
	}

	m.mu.Lock()
	if rt := m.states[providerID]; rt.state == StateSyncing {
		m.mu.Unlock()
		return nil, apperrors.Newf(apperrors.ErrSyncInProgress, "provider %s", providerID)
	}
	m.mu.Unlock()

	m.setState(providerID, StateConnecting, "connecting")

	cctx, cancel := context.WithTimeout(ctx, m.netTimeout)
	defer cancel()
	identity, err := client.Connect(cctx)
	if err != nil {
		m.setState(providerID, StateError, err.Error())
		return nil, err
	}

	m.setState(providerID, StateConnected, "connected as "+identity.AccountID)
	m.log.WithField("provider", providerID).Info("provider connected")
	return identity, nil
}

// Disconnect moves a provider to disconnected from any state and clears its
// cached cursor and per-note shadows so the next connect starts a full
// reconciliation.
func (m *Manager) Disconnect(ctx context.Context, providerID string) error {
	client, err := m.client(providerID)
	if err != nil {
		return err
	}

	if err := client.Disconnect(ctx); err != nil {
		m.log.WithField("provider", providerID).Warnf("provider disconnect cleanup failed: %v", err)
	}
	if err := m.db.Delete(&database.SyncState{}, "provider_id = ?", providerID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	if err := m.db.Delete(&database.SyncShadow{}, "provider_id = ?", providerID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}

	state := StateDisconnected
	if !client.IsConfigured() {
		state = StateNotConfigured
	}
	m.setState(providerID, state, "disconnected")
	return nil
}

// SyncProvider runs one full sync pass for a connected provider. At most one
// pass per provider is in flight: a concurrent call is rejected immediately
// with a sync-in-progress error, never queued. Per-note failures are
// collected into the result; only a failure that prevents the pass itself
// (handshake, change listing) is returned as an error.
func (m *Manager) SyncProvider(ctx context.Context, providerID string) (*Result, error) {
	client, err := m.client(providerID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	rt, ok := m.states[providerID]
	if !ok {
		m.mu.Unlock()
		return nil, apperrors.Newf(apperrors.ErrNotFound, "provider %s", providerID)
	}
	switch rt.state {
	case StateSyncing:
		m.mu.Unlock()
		return nil, apperrors.Newf(apperrors.ErrSyncInProgress, "provider %s", providerID)
	case StateConnected:
		rt.state = StateSyncing
		m.mu.Unlock()
	default:
		state := rt.state
		m.mu.Unlock()
		return nil, apperrors.Newf(apperrors.ErrProviderState,
			"provider %s is %s, expected connected", providerID, state)
	}

	m.status.Publish(StatusEvent{
		ProviderID: providerID,
		State:      StateSyncing,
		Message:    "sync started",
		Timestamp:  time.Now().UTC(),
	})

	started := time.Now()
	result, err := m.runSync(ctx, client)
	result.Duration = time.Since(started)
	m.recordLog(providerID, result, err)

	switch {
	case err == nil:
		msg := "sync completed"
		if len(result.Warnings) > 0 || len(result.Errors) > 0 {
			msg = "sync completed with warnings"
		}
		m.setState(providerID, StateConnected, msg)
	case errors.Is(err, context.Canceled):
		m.setState(providerID, StateConnected, "sync cancelled")
	default:
		m.setState(providerID, StateError, err.Error())
	}
	return result, err
}

// ForceSyncNow syncs every connected provider immediately, bypassing the
// timer. Providers run in parallel; failures surface on the status stream.
func (m *Manager) ForceSyncNow(ctx context.Context) {
	m.SyncAll(ctx)
}

// SyncAll runs a sync pass over every connected provider and waits for all
// of them to finish.
func (m *Manager) SyncAll(ctx context.Context) {
	var ids []string
	m.mu.Lock()
	for id, rt := range m.states {
		if rt.state == StateConnected {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	var wg gosync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := m.SyncProvider(ctx, id); err != nil {
				// Already reflected on the status stream; the timer
				// caller has nothing to rethrow to.
				m.log.WithField("provider", id).Warnf("sync failed: %v", err)
			}
		}(id)
	}
	wg.Wait()
}

// Start launches the auto-sync timer. It stops when ctx is cancelled or
// Stop is called.
func (m *Manager) Start(ctx context.Context) {
	if m.interval <= 0 {
		m.log.Info("auto-sync disabled")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancelAuto = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		m.log.Infof("auto-sync every %s", m.interval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SyncAll(ctx)
			}
		}
	}()
}

// Stop halts the auto-sync timer and waits for a running tick to finish.
func (m *Manager) Stop() {
	if m.cancelAuto != nil {
		m.cancelAuto()
	}
	m.wg.Wait()
}

// RecentLogs returns the newest sync log records.
func (m *Manager) RecentLogs(limit int) ([]database.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []database.SyncLog
	if err := m.db.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return logs, nil
}

func (m *Manager) recordLog(providerID string, result *Result, err error) {
	status := "success"
	msg := strings.Join(result.Errors, "; ")
	switch {
	case err != nil:
		status = "failed"
		if msg == "" {
			msg = err.Error()
		}
	case len(result.Warnings) > 0 || len(result.Errors) > 0:
		status = "partial"
		if msg == "" {
			msg = strings.Join(result.Warnings, "; ")
		}
	}
	entry := &database.SyncLog{
		ProviderID: providerID,
		Status:     status,
		Uploaded:   result.Uploaded,
		Downloaded: result.Downloaded,
		Skipped:    result.Skipped,
		ErrorMsg:   msg,
		DurationMs: result.Duration.Milliseconds(),
	}
	if err := m.db.Create(entry).Error; err != nil {
		m.log.Warnf("failed to record sync log: %v", err)
	}
}

func (m *Manager) loadState(providerID string) (*database.SyncState, error) {
	var state database.SyncState
	err := m.db.First(&state, "provider_id = ?", providerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &database.SyncState{ProviderID: providerID}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return &state, nil
}

func (m *Manager) saveState(state *database.SyncState) error {
	if err := m.db.Save(state).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return nil
}

func (m *Manager) loadShadows(providerID string) (map[string]time.Time, error) {
	var rows []database.SyncShadow
	if err := m.db.Find(&rows, "provider_id = ?", providerID).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	shadows := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		shadows[row.NoteID] = row.SyncedUpdatedAt
	}
	return shadows, nil
}

func (m *Manager) saveShadow(providerID, noteID string, syncedUpdatedAt time.Time) error {
	shadow := &database.SyncShadow{
		ProviderID:      providerID,
		NoteID:          noteID,
		SyncedUpdatedAt: syncedUpdatedAt.UTC(),
	}
	if err := m.db.Save(shadow).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return nil
}
