package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DaveSongnata/BitTask/internal/types"
)

// GetSettings returns the singleton settings row.
func (r reader) GetSettings(ctx context.Context) (*types.Settings, error) {
	var s types.Settings
	var updatedAt int64
	err := r.q.QueryRowContext(ctx, `
		SELECT theme, mode, max_attachment_size, image_compression, thumbnails, link_previews, updated_at
		FROM settings WHERE id = 1
	`).Scan(&s.Theme, &s.Mode, &s.MaxAttachmentSize, &s.ImageCompression, &s.Thumbnails, &s.LinkPreviews, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	s.UpdatedAt = fromMillis(updatedAt)
	return &s, nil
}

// SaveSettings overwrites the singleton settings row.
func (tx *Tx) SaveSettings(ctx context.Context, s *types.Settings) error {
	_, err := tx.tx.ExecContext(ctx, `
		UPDATE settings SET
			theme = ?, mode = ?, max_attachment_size = ?,
			image_compression = ?, thumbnails = ?, link_previews = ?, updated_at = ?
		WHERE id = 1
	`, s.Theme, s.Mode, s.MaxAttachmentSize, s.ImageCompression, s.Thumbnails, s.LinkPreviews, toMillis(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetSyncState returns the value stored under key, or "" if unset.
func (r reader) GetSyncState(ctx context.Context, key string) (string, error) {
	var v string
	err := r.q.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read sync state %s: %w", key, err)
	}
	return v, nil
}

// SetSyncState stores value under key.
func (tx *Tx) SetSyncState(ctx context.Context, key, value string, at time.Time) error {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, toMillis(at))
	if err != nil {
		return fmt.Errorf("failed to write sync state %s: %w", key, err)
	}
	return nil
}
