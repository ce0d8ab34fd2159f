package provider

import (
	"github.com/mikaelkraft/quicknote-pro/internal/database"
)

// primaryKinds are the consumer cloud drives surfaced first in the UI.
// Everything else (self-hosted object storage, WebDAV, git) is advanced.
var primaryKinds = map[string]bool{
	database.ProviderTencent: true,
	database.ProviderQiniu:   true,
}

// IsPrimaryKind reports whether a provider kind is a consumer cloud drive.
func IsPrimaryKind(kind string) bool {
	return primaryKinds[kind]
}

// Entry pairs a built client with the kind it was configured from.
type Entry struct {
	Client Client
	Kind   string
}

// Registry holds the configured provider clients. It carries no mutable sync
// state; it is rebuilt at initialization from the persisted provider
// configuration and only answers lookups and classification.
type Registry struct {
	entries []Entry
	byID    map[string]Entry
}

// NewRegistry builds a registry preserving the given order.
func NewRegistry(entries []Entry) *Registry {
	r := &Registry{
		entries: entries,
		byID:    make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		r.byID[e.Client.ID()] = e
	}
	return r
}

// All returns every configured client in registration order.
func (r *Registry) All() []Client {
	clients := make([]Client, 0, len(r.entries))
	for _, e := range r.entries {
		clients = append(clients, e.Client)
	}
	return clients
}

// Primary returns the consumer cloud drive clients.
func (r *Registry) Primary() []Client {
	var clients []Client
	for _, e := range r.entries {
		if IsPrimaryKind(e.Kind) {
			clients = append(clients, e.Client)
		}
	}
	return clients
}

// Advanced returns the self-hosted clients.
func (r *Registry) Advanced() []Client {
	var clients []Client
	for _, e := range r.entries {
		if !IsPrimaryKind(e.Kind) {
			clients = append(clients, e.Client)
		}
	}
	return clients
}

// ByID looks a client up by its stable provider id.
func (r *Registry) ByID(id string) (Client, bool) {
	e, ok := r.byID[id]
	return e.Client, ok
}

// KindOf returns the configured kind for a provider id.
func (r *Registry) KindOf(id string) (string, bool) {
	e, ok := r.byID[id]
	return e.Kind, ok
}

// IsAdvanced reports whether the provider id belongs to the advanced group.
func (r *Registry) IsAdvanced(id string) bool {
	e, ok := r.byID[id]
	return ok && !IsPrimaryKind(e.Kind)
}
