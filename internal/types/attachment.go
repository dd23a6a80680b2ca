package types

import (
	"fmt"
	"time"
)

// AttachmentType is the category an attachment is validated against.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentAudio AttachmentType = "audio"
	AttachmentPDF   AttachmentType = "pdf"
	AttachmentLink  AttachmentType = "link"
)

// Valid reports whether t is a known attachment type.
func (t AttachmentType) Valid() bool {
	switch t {
	case AttachmentImage, AttachmentAudio, AttachmentPDF, AttachmentLink:
		return true
	}
	return false
}

// ParseAttachmentType validates a user-supplied type name.
func ParseAttachmentType(s string) (AttachmentType, error) {
	t := AttachmentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown attachment type %q", s)
	}
	return t, nil
}

// AttachmentMeta holds optional per-type metadata. Only the fields relevant
// to the attachment's type are set.
type AttachmentMeta struct {
	Width           int     `json:"width,omitempty" yaml:"width,omitempty"`
	Height          int     `json:"height,omitempty" yaml:"height,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty" yaml:"durationSeconds,omitempty"`
	PageCount       int     `json:"pageCount,omitempty" yaml:"pageCount,omitempty"`

	// OpenGraph fields for links.
	OGTitle       string `json:"ogTitle,omitempty" yaml:"ogTitle,omitempty"`
	OGDescription string `json:"ogDescription,omitempty" yaml:"ogDescription,omitempty"`
	OGImage       string `json:"ogImage,omitempty" yaml:"ogImage,omitempty"`
	SiteName      string `json:"siteName,omitempty" yaml:"siteName,omitempty"`
}

// IsZero reports whether no metadata field is set.
func (m AttachmentMeta) IsZero() bool {
	return m == AttachmentMeta{}
}

// Attachment is a file or link owned by a task. Data and Thumbnail belong
// exclusively to the attachment and are removed with it. They are never
// serialized into offline operation payloads.
type Attachment struct {
	ID        int64          `json:"id" yaml:"id"`
	TaskID    int64          `json:"taskId" yaml:"taskId"`
	Type      AttachmentType `json:"type" yaml:"type"`
	Filename  string         `json:"filename" yaml:"filename"`
	MimeType  string         `json:"mimeType" yaml:"mimeType"`
	Size      int64          `json:"size" yaml:"size"`
	URL       string         `json:"url,omitempty" yaml:"url,omitempty"`
	Metadata  AttachmentMeta `json:"metadata" yaml:"metadata"`
	CreatedAt time.Time      `json:"createdAt" yaml:"createdAt"`

	HasThumbnail bool   `json:"hasThumbnail" yaml:"hasThumbnail"`
	Data         []byte `json:"-" yaml:"-"`
	Thumbnail    []byte `json:"-" yaml:"-"`
}

// AttachmentPatch is a partial attachment update.
type AttachmentPatch struct {
	Filename *string         `json:"filename,omitempty"`
	Metadata *AttachmentMeta `json:"metadata,omitempty"`
}
