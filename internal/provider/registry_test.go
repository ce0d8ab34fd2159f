package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikaelkraft/quicknote-pro/internal/database"
)

func testEntry(id, kind string) Entry {
	return Entry{
		Client: NewMemoryClient(id, id, "quicknote", NewMemoryStore()),
		Kind:   kind,
	}
}

func TestRegistryPartition(t *testing.T) {
	registry := NewRegistry([]Entry{
		testEntry("drive-cos", database.ProviderTencent),
		testEntry("drive-qiniu", database.ProviderQiniu),
		testEntry("self-s3", database.ProviderS3),
		testEntry("self-webdav", database.ProviderWebDAV),
		testEntry("self-git", database.ProviderGit),
	})

	assert.Len(t, registry.All(), 5)

	var primary []string
	for _, c := range registry.Primary() {
		primary = append(primary, c.ID())
	}
	assert.Equal(t, []string{"drive-cos", "drive-qiniu"}, primary)

	var advanced []string
	for _, c := range registry.Advanced() {
		advanced = append(advanced, c.ID())
	}
	assert.Equal(t, []string{"self-s3", "self-webdav", "self-git"}, advanced)

	assert.False(t, registry.IsAdvanced("drive-cos"))
	assert.True(t, registry.IsAdvanced("self-git"))

	kind, ok := registry.KindOf("self-webdav")
	require.True(t, ok)
	assert.Equal(t, database.ProviderWebDAV, kind)

	_, ok = registry.ByID("missing")
	assert.False(t, ok)
}

func TestRegistryOrderPreserved(t *testing.T) {
	registry := NewRegistry([]Entry{
		testEntry("z", database.ProviderMemory),
		testEntry("a", database.ProviderMemory),
	})

	clients := registry.All()
	require.Len(t, clients, 2)
	assert.Equal(t, "z", clients[0].ID())
	assert.Equal(t, "a", clients[1].ID())
}
