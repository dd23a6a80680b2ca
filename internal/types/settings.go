package types

import "time"

// DefaultMaxAttachmentSize is the attachment ceiling used until the user
// changes it.
const DefaultMaxAttachmentSize int64 = 10 << 20

// Settings is the singleton preferences row. The core only consumes
// MaxAttachmentSize and the feature toggles.
type Settings struct {
	Theme             string    `json:"theme" yaml:"theme"`
	Mode              string    `json:"mode" yaml:"mode"`
	MaxAttachmentSize int64     `json:"maxAttachmentSize" yaml:"maxAttachmentSize"`
	ImageCompression  bool      `json:"imageCompression" yaml:"imageCompression"`
	Thumbnails        bool      `json:"thumbnails" yaml:"thumbnails"`
	LinkPreviews      bool      `json:"linkPreviews" yaml:"linkPreviews"`
	UpdatedAt         time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// SettingsPatch is a partial settings update.
type SettingsPatch struct {
	Theme             *string
	Mode              *string
	MaxAttachmentSize *int64
	ImageCompression  *bool
	Thumbnails        *bool
	LinkPreviews      *bool
}

// Apply merges the patch into s.
func (p SettingsPatch) Apply(s *Settings) {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.Mode != nil {
		s.Mode = *p.Mode
	}
	if p.MaxAttachmentSize != nil {
		s.MaxAttachmentSize = *p.MaxAttachmentSize
	}
	if p.ImageCompression != nil {
		s.ImageCompression = *p.ImageCompression
	}
	if p.Thumbnails != nil {
		s.Thumbnails = *p.Thumbnails
	}
	if p.LinkPreviews != nil {
		s.LinkPreviews = *p.LinkPreviews
	}
}
