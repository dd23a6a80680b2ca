package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DaveSongnata/BitTask/internal/types"
)

// Listing never loads payloads; has_thumbnail stands in for the blob.
const attachmentMetaColumns = `id, task_id, type, filename, mime_type, size, url, metadata, created_at,
	thumbnail IS NOT NULL`

func scanAttachment(s scanner, extra ...any) (*types.Attachment, error) {
	var (
		a         types.Attachment
		typ       string
		url       sql.NullString
		metaJSON  string
		createdAt int64
	)
	dest := []any{&a.ID, &a.TaskID, &typ, &a.Filename, &a.MimeType, &a.Size, &url, &metaJSON, &createdAt, &a.HasThumbnail}
	dest = append(dest, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	a.Type = types.AttachmentType(typ)
	a.URL = url.String
	a.CreatedAt = fromMillis(createdAt)
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachment metadata: %w", err)
		}
	}
	return &a, nil
}

// GetAttachment returns attachment metadata, or nil.
func (r reader) GetAttachment(ctx context.Context, id int64) (*types.Attachment, error) {
	a, err := scanAttachment(r.q.QueryRowContext(ctx,
		`SELECT `+attachmentMetaColumns+` FROM attachments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %d: %w", id, err)
	}
	return a, nil
}

// GetAttachmentWithData returns the attachment including its payload and
// thumbnail, or nil.
func (r reader) GetAttachmentWithData(ctx context.Context, id int64) (*types.Attachment, error) {
	var data, thumb []byte
	a, err := scanAttachment(r.q.QueryRowContext(ctx,
		`SELECT `+attachmentMetaColumns+`, data, thumbnail FROM attachments WHERE id = ?`, id),
		&data, &thumb)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %d: %w", id, err)
	}
	a.Data = data
	a.Thumbnail = thumb
	return a, nil
}

// ListAttachments returns metadata for every attachment of taskID in
// creation order.
func (r reader) ListAttachments(ctx context.Context, taskID int64) ([]*types.Attachment, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+attachmentMetaColumns+` FROM attachments WHERE task_id = ? ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	out := []*types.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}
	return out, nil
}

// CountAttachments returns how many attachments taskID owns.
func (r reader) CountAttachments(ctx context.Context, taskID int64) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM attachments WHERE task_id = ?`, taskID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attachments: %w", err)
	}
	return n, nil
}

// InsertAttachment stores a, including Data and Thumbnail, and sets a.ID.
func (tx *Tx) InsertAttachment(ctx context.Context, a *types.Attachment) error {
	metaJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal attachment metadata: %w", err)
	}

	var thumb any
	if len(a.Thumbnail) > 0 {
		thumb = a.Thumbnail
	}

	res, err := tx.tx.ExecContext(ctx, `
		INSERT INTO attachments (
			task_id, type, filename, mime_type, size, data, url, thumbnail, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.TaskID,
		string(a.Type),
		a.Filename,
		a.MimeType,
		a.Size,
		a.Data,
		nullString(a.URL),
		thumb,
		string(metaJSON),
		toMillis(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read attachment id: %w", err)
	}
	a.ID = id
	a.HasThumbnail = thumb != nil
	return nil
}

// UpdateAttachmentMeta writes filename and metadata.
func (tx *Tx) UpdateAttachmentMeta(ctx context.Context, a *types.Attachment) error {
	metaJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal attachment metadata: %w", err)
	}
	_, err = tx.tx.ExecContext(ctx,
		`UPDATE attachments SET filename = ?, metadata = ? WHERE id = ?`,
		a.Filename, string(metaJSON), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update attachment %d: %w", a.ID, err)
	}
	return nil
}

// DeleteAttachment removes one attachment and its payloads.
func (tx *Tx) DeleteAttachment(ctx context.Context, id int64) (bool, error) {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete attachment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteAttachmentsByTask removes every attachment of taskID and returns
// the count.
func (tx *Tx) DeleteAttachmentsByTask(ctx context.Context, taskID int64) (int64, error) {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM attachments WHERE task_id = ?`, taskID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete attachments of task %d: %w", taskID, err)
	}
	return res.RowsAffected()
}
