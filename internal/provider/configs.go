package provider

import (
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
	"github.com/mikaelkraft/quicknote-pro/internal/logger"
)

// ConfigService manages the persisted provider configurations the registry
// is rebuilt from.
type ConfigService struct {
	db  *gorm.DB
	log *logrus.Entry
}

// NewConfigService creates a provider config service.
func NewConfigService(db *gorm.DB) *ConfigService {
	return &ConfigService{
		db:  db,
		log: logger.WithComponent("provider-config"),
	}
}

// List returns every stored provider configuration.
func (s *ConfigService) List() ([]database.ProviderConfig, error) {
	var configs []database.ProviderConfig
	if err := s.db.Order("id").Find(&configs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return configs, nil
}

// Get returns the configuration for one provider id.
func (s *ConfigService) Get(providerID string) (*database.ProviderConfig, error) {
	var cfg database.ProviderConfig
	err := s.db.First(&cfg, "provider_id = ?", providerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "provider config %s", providerID)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreQuery, err)
	}
	return &cfg, nil
}

// Save creates or updates a configuration keyed by provider id.
func (s *ConfigService) Save(cfg *database.ProviderConfig) error {
	if cfg.ProviderID == "" || cfg.Kind == "" {
		return apperrors.Newf(apperrors.ErrInvalidParams, "provider_id and kind are required")
	}

	var existing database.ProviderConfig
	err := s.db.First(&existing, "provider_id = ?", cfg.ProviderID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(cfg).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrStoreQuery, err)
		}
	case err != nil:
		return apperrors.Wrap(apperrors.ErrStoreQuery, err)
	default:
		cfg.ID = existing.ID
		cfg.CreatedAt = existing.CreatedAt
		if err := s.db.Save(cfg).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrStoreQuery, err)
		}
	}

	s.log.WithField("provider", cfg.ProviderID).Info("provider configuration saved")
	return nil
}

// Delete removes a provider configuration.
func (s *ConfigService) Delete(providerID string) error {
	res := s.db.Where("provider_id = ?", providerID).Delete(&database.ProviderConfig{})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrStoreQuery, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "provider config %s", providerID)
	}
	return nil
}

// BuildRegistry loads every enabled configuration and constructs the client
// registry. A backend whose client cannot be built (for example a malformed
// endpoint) is skipped with a warning so one bad config does not take down
// the rest.
func (s *ConfigService) BuildRegistry(opts Options) (*Registry, error) {
	configs, err := s.List()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for i := range configs {
		cfg := &configs[i]
		if !cfg.Enabled {
			continue
		}
		client, err := NewClient(cfg, opts)
		if err != nil {
			s.log.WithField("provider", cfg.ProviderID).
				Warnf("skipping provider, client construction failed: %v", err)
			continue
		}
		entries = append(entries, Entry{Client: client, Kind: cfg.Kind})
	}
	return NewRegistry(entries), nil
}
