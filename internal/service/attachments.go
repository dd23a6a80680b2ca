package service

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/DaveSongnata/BitTask/internal/media"
	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

var attachmentTables = []store.Table{store.TableAttachments, store.TableOfflineOps}

// linkMIME is recorded as the MIME type of link attachments.
const linkMIME = "text/uri-list"

// AttachmentService manages files and links attached to tasks.
type AttachmentService struct {
	*deps
}

// CreateAttachmentInput describes an uploaded file. An empty Type is
// inferred from MimeType.
type CreateAttachmentInput struct {
	TaskID   int64
	Type     types.AttachmentType
	Filename string
	MimeType string
	Data     []byte
	Metadata types.AttachmentMeta
}

// CreateAttachment validates and stores a file attachment and queues a
// create without the binary payload. Images are recompressed and get a
// thumbnail when the settings ask for it. It returns nil when the task
// does not exist.
func (s *AttachmentService) CreateAttachment(ctx context.Context, in CreateAttachmentInput) (*types.Attachment, error) {
	filename, err := requireText("filename", in.Filename)
	if err != nil {
		return nil, err
	}

	typ := in.Type
	if typ == "" {
		inferred, ok := media.TypeForMIME(in.MimeType)
		if !ok {
			return nil, invalid("mimeType", "unsupported file type %q", in.MimeType)
		}
		typ = inferred
	}

	settings, err := s.db.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if res := media.ValidateFile(typ, in.MimeType, int64(len(in.Data)), settings.MaxAttachmentSize); !res.OK {
		return nil, invalid("file", "%s", res.Reason)
	}

	a := &types.Attachment{
		TaskID:   in.TaskID,
		Type:     typ,
		Filename: filename,
		MimeType: in.MimeType,
		Data:     in.Data,
		Metadata: in.Metadata,
	}
	if typ == types.AttachmentImage && (settings.ImageCompression || settings.Thumbnails) {
		s.prepareImage(a, settings)
	}
	a.Size = int64(len(a.Data))

	return s.insert(ctx, a)
}

// prepareImage applies the image settings to a. Images the decoder cannot
// read are kept as uploaded.
func (s *AttachmentService) prepareImage(a *types.Attachment, settings *types.Settings) {
	out, err := media.ProcessImage(a.Data, a.MimeType, media.ImageOptions{
		Compress:  settings.ImageCompression,
		Thumbnail: settings.Thumbnails,
	})
	if err != nil {
		s.logger.Warn("storing image unprocessed",
			zap.String("filename", a.Filename),
			zap.Error(err))
		return
	}
	a.Data = out.Data
	a.Thumbnail = out.Thumbnail
	a.Metadata.Width = out.Width
	a.Metadata.Height = out.Height
}

// CreateLinkAttachment validates rawURL and stores it as a link. og carries
// the preview fields; they are dropped when link previews are off.
func (s *AttachmentService) CreateLinkAttachment(ctx context.Context, taskID int64, rawURL string, og types.AttachmentMeta) (*types.Attachment, error) {
	rawURL = strings.TrimSpace(rawURL)
	if res := media.ValidateURL(rawURL); !res.OK {
		return nil, invalid("url", "%s", res.Reason)
	}

	settings, err := s.db.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.LinkPreviews {
		og = types.AttachmentMeta{}
	}

	filename := og.OGTitle
	if filename == "" {
		if u, err := url.Parse(rawURL); err == nil {
			filename = u.Host
		}
	}

	return s.insert(ctx, &types.Attachment{
		TaskID:   taskID,
		Type:     types.AttachmentLink,
		Filename: filename,
		MimeType: linkMIME,
		URL:      rawURL,
		Metadata: og,
	})
}

func (s *AttachmentService) insert(ctx context.Context, a *types.Attachment) (*types.Attachment, error) {
	a.CreatedAt = s.timestamp()

	var stored bool
	err := s.db.RunInTransaction(ctx, attachmentTables, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, a.TaskID)
		if err != nil || task == nil {
			return err
		}
		if err := tx.InsertAttachment(ctx, a); err != nil {
			return err
		}

		record := *a
		record.Data, record.Thumbnail = nil, nil
		if _, err := s.queue.Enqueue(ctx, tx, types.OpCreate, types.EntityAttachment, a.ID, types.AttachmentRecord{Attachment: record}); err != nil {
			return err
		}
		stored = true
		return nil
	})
	if err != nil || !stored {
		return nil, err
	}

	s.logger.Debug("attachment created",
		zap.Int64("id", a.ID),
		zap.Int64("task", a.TaskID),
		zap.String("type", string(a.Type)),
		zap.Int64("size", a.Size))
	return a, nil
}

// UpdateAttachment changes filename or metadata and queues the patch. It
// returns nil when the attachment does not exist.
func (s *AttachmentService) UpdateAttachment(ctx context.Context, id int64, patch types.AttachmentPatch) (*types.Attachment, error) {
	if patch.Filename != nil {
		name, err := requireText("filename", *patch.Filename)
		if err != nil {
			return nil, err
		}
		patch.Filename = &name
	}

	var a *types.Attachment
	err := s.db.RunInTransaction(ctx, attachmentTables, func(tx *store.Tx) error {
		current, err := tx.GetAttachment(ctx, id)
		if err != nil || current == nil {
			return err
		}
		if patch.Filename != nil {
			current.Filename = *patch.Filename
		}
		if patch.Metadata != nil {
			current.Metadata = *patch.Metadata
		}
		if err := tx.UpdateAttachmentMeta(ctx, current); err != nil {
			return err
		}
		if _, err := s.queue.Enqueue(ctx, tx, types.OpUpdate, types.EntityAttachment, id, types.AttachmentDelta{AttachmentPatch: patch}); err != nil {
			return err
		}
		a = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAttachment removes the attachment and queues a delete.
func (s *AttachmentService) DeleteAttachment(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.db.RunInTransaction(ctx, attachmentTables, func(tx *store.Tx) error {
		var err error
		if deleted, err = tx.DeleteAttachment(ctx, id); err != nil || !deleted {
			return err
		}
		_, err = s.queue.Enqueue(ctx, tx, types.OpDelete, types.EntityAttachment, id, nil)
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// GetAttachment returns attachment metadata or nil.
func (s *AttachmentService) GetAttachment(ctx context.Context, id int64) (*types.Attachment, error) {
	return s.db.GetAttachment(ctx, id)
}

// ListAttachments returns metadata for taskID's attachments.
func (s *AttachmentService) ListAttachments(ctx context.Context, taskID int64) ([]*types.Attachment, error) {
	return s.db.ListAttachments(ctx, taskID)
}

// GetAttachmentData returns the attachment with its payload and thumbnail,
// or nil.
func (s *AttachmentService) GetAttachmentData(ctx context.Context, id int64) (*types.Attachment, error) {
	return s.db.GetAttachmentWithData(ctx, id)
}
