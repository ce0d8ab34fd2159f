package sync

import (
	"time"

	"github.com/mikaelkraft/quicknote-pro/internal/provider"
)

// ProviderState is one step of the per-provider lifecycle:
//
//	notConfigured → disconnected → connecting → connected ⇄ syncing
//	                                          ↘ error (recoverable via connect)
type ProviderState string

// Provider lifecycle states.
const (
	StateNotConfigured ProviderState = "notConfigured"
	StateDisconnected  ProviderState = "disconnected"
	StateConnecting    ProviderState = "connecting"
	StateConnected     ProviderState = "connected"
	StateSyncing       ProviderState = "syncing"
	StateError         ProviderState = "error"
)

// StatusEvent is emitted on every provider state transition.
type StatusEvent struct {
	ProviderID string        `json:"providerId"`
	State      ProviderState `json:"state"`
	Message    string        `json:"message"`
	Timestamp  time.Time     `json:"timestamp"`
}

// ProgressEvent is emitted during an active sync pass.
type ProgressEvent struct {
	ProviderID       string  `json:"providerId"`
	FractionComplete float64 `json:"fractionComplete"`
	Message          string  `json:"message"`
}

// ProviderStatus is the point-in-time view of one provider, served to the
// trigger surface.
type ProviderStatus struct {
	ProviderID   string                `json:"provider_id"`
	DisplayName  string                `json:"display_name"`
	Kind         string                `json:"kind"`
	Advanced     bool                  `json:"advanced"`
	State        ProviderState         `json:"state"`
	Message      string                `json:"message,omitempty"`
	IsConfigured bool                  `json:"is_configured"`
	Capabilities provider.Capabilities `json:"capabilities"`
	LastSyncTime *time.Time            `json:"last_sync_time,omitempty"`
}
