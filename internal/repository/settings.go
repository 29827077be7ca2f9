package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	apperrors "github.com/anime-shed/image-inspector-go/internal/errors"
	"github.com/anime-shed/image-inspector-go/internal/logger"
	"github.com/anime-shed/image-inspector-go/internal/storage"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

// SettingsKey is the storage key of the serialized preferences
const SettingsKey = "settings"

// SettingsRepository stores user preferences
type SettingsRepository interface {
	// Get never fails; unreadable settings yield the defaults
	Get(ctx context.Context) models.Settings
	Save(ctx context.Context, settings models.Settings) error
	Reset(ctx context.Context) (models.Settings, error)
}

type settingsRepository struct {
	store storage.KeyValueStore

	mu sync.RWMutex
	// current holds the last saved settings, kept even when the write failed
	current *models.Settings
}

// NewSettingsRepository creates a settings repository over store
func NewSettingsRepository(store storage.KeyValueStore) SettingsRepository {
	return &settingsRepository{store: store}
}

func (r *settingsRepository) Get(ctx context.Context) models.Settings {
	r.mu.RLock()
	current := r.current
	r.mu.RUnlock()
	if current != nil {
		return *current
	}

	data, err := r.store.Get(ctx, SettingsKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return models.DefaultSettings()
	}
	if err == nil {
		// start from defaults so fields missing from older saves stay on
		settings := models.DefaultSettings()
		if err = json.Unmarshal(data, &settings); err == nil {
			return settings
		}
	}

	perr := apperrors.NewPersistenceError("failed to load settings", err)
	logger.WithComponent("settings").WithError(perr).Error("Using default settings")
	return models.DefaultSettings()
}

func (r *settingsRepository) Save(ctx context.Context, settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return apperrors.NewPersistenceError("failed to encode settings", err)
	}

	r.mu.Lock()
	r.current = &settings
	r.mu.Unlock()

	if err := r.store.Set(ctx, SettingsKey, data); err != nil {
		perr := apperrors.NewPersistenceError("failed to save settings", err)
		logger.WithComponent("settings").WithError(perr).Error("Settings not saved")
		return perr
	}
	return nil
}

func (r *settingsRepository) Reset(ctx context.Context) (models.Settings, error) {
	defaults := models.DefaultSettings()
	return defaults, r.Save(ctx, defaults)
}
