// Package settings provides database operations for runtime settings that
// administrators can toggle without a restart.
//
// # Usage
//
//	repo := settings.NewRepository(db)
//	ignore := repo.GetBool(entities.SettingKeyWatcherIgnoreModify, false)
//	lastScan, ok := repo.GetTime(entities.SettingKeyLastScanAt)
package settings

import (
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/comicshelf/internal/entities"
)

// Repository handles all settings database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new settings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetSetting retrieves a setting by key.
func (r *Repository) GetSetting(key string) (*entities.Setting, error) {
	var setting entities.Setting
	if err := r.db.Where("key = ?", key).First(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

// SetSetting stores value under key, replacing any previous value.
func (r *Repository) SetSetting(key, value string) error {
	setting := entities.Setting{Key: key, Value: value}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
}

// GetBool returns a boolean setting, or def when it is unset or malformed.
func (r *Repository) GetBool(key string, def bool) bool {
	setting, err := r.GetSetting(key)
	if err != nil {
		return def
	}
	v, err := strconv.ParseBool(setting.Value)
	if err != nil {
		return def
	}
	return v
}

func (r *Repository) SetBool(key string, value bool) error {
	return r.SetSetting(key, strconv.FormatBool(value))
}

// GetTime returns a timestamp setting. ok is false when it is unset or malformed.
func (r *Repository) GetTime(key string) (t time.Time, ok bool) {
	setting, err := r.GetSetting(key)
	if err != nil {
		return time.Time{}, false
	}
	t, err = time.Parse(time.RFC3339, setting.Value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetTime stores t in UTC with second precision.
func (r *Repository) SetTime(key string, t time.Time) error {
	return r.SetSetting(key, t.UTC().Format(time.RFC3339))
}
