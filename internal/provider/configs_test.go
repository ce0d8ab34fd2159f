package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
)

func newTestConfigService(t *testing.T) *ConfigService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return NewConfigService(db)
}

func TestConfigSaveUpsertsByProviderID(t *testing.T) {
	svc := newTestConfigService(t)

	cfg := &database.ProviderConfig{
		ProviderID: "mem-1",
		Kind:       database.ProviderMemory,
		Name:       "first",
	}
	require.NoError(t, svc.Save(cfg))

	update := &database.ProviderConfig{
		ProviderID: "mem-1",
		Kind:       database.ProviderMemory,
		Name:       "renamed",
	}
	require.NoError(t, svc.Save(update))

	configs, err := svc.List()
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "renamed", configs[0].Name)

	// provider_id and kind are mandatory.
	err = svc.Save(&database.ProviderConfig{Kind: database.ProviderMemory})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidParams, apperrors.CodeOf(err))
}

func TestConfigDelete(t *testing.T) {
	svc := newTestConfigService(t)

	require.NoError(t, svc.Save(&database.ProviderConfig{
		ProviderID: "mem-1",
		Kind:       database.ProviderMemory,
	}))
	require.NoError(t, svc.Delete("mem-1"))

	err := svc.Delete("mem-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestBuildRegistrySkipsDisabled(t *testing.T) {
	svc := newTestConfigService(t)

	require.NoError(t, svc.Save(&database.ProviderConfig{
		ProviderID: "mem-on",
		Kind:       database.ProviderMemory,
		Enabled:    true,
	}))

	off := &database.ProviderConfig{
		ProviderID: "mem-off",
		Kind:       database.ProviderMemory,
	}
	require.NoError(t, svc.Save(off))
	off.Enabled = false
	require.NoError(t, svc.Save(off))

	registry, err := svc.BuildRegistry(Options{})
	require.NoError(t, err)
	require.Len(t, registry.All(), 1)
	assert.Equal(t, "mem-on", registry.All()[0].ID())
}

func TestNewClientRejectsUnknownKind(t *testing.T) {
	_, err := NewClient(&database.ProviderConfig{
		ProviderID: "x",
		Kind:       "carrier-pigeon",
	}, Options{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrProviderUnsupported, apperrors.CodeOf(err))
}
