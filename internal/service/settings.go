package service

import (
	"context"
	"strings"

	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

// SettingsService reads and writes the preferences row. Settings never
// leave the device.
type SettingsService struct {
	*deps
}

// Get returns the current settings.
func (s *SettingsService) Get(ctx context.Context) (*types.Settings, error) {
	return s.db.GetSettings(ctx)
}

// Update applies patch and returns the saved settings.
func (s *SettingsService) Update(ctx context.Context, patch types.SettingsPatch) (*types.Settings, error) {
	if patch.MaxAttachmentSize != nil && *patch.MaxAttachmentSize <= 0 {
		return nil, invalid("maxAttachmentSize", "must be positive")
	}
	for field, v := range map[string]*string{"theme": patch.Theme, "mode": patch.Mode} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return nil, invalid(field, "must not be empty")
		}
	}

	var saved *types.Settings
	err := s.db.RunInTransaction(ctx, []store.Table{store.TableSettings}, func(tx *store.Tx) error {
		current, err := tx.GetSettings(ctx)
		if err != nil {
			return err
		}
		patch.Apply(current)
		current.UpdatedAt = s.timestamp()
		if err := tx.SaveSettings(ctx, current); err != nil {
			return err
		}
		saved = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}
