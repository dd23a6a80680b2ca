// Package media validates attachment input and prepares image payloads.
package media

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/DaveSongnata/BitTask/internal/types"
)

// Result is the outcome of a validation. Reason is human-readable and only
// set when OK is false.
type Result struct {
	OK     bool
	Reason string
}

func ok() Result { return Result{OK: true} }

func reject(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

var allowedMIME = map[types.AttachmentType][]string{
	types.AttachmentImage: {"image/jpeg", "image/png", "image/gif", "image/webp"},
	types.AttachmentAudio: {"audio/mpeg", "audio/mp4", "audio/aac", "audio/wav", "audio/x-wav", "audio/ogg", "audio/webm"},
	types.AttachmentPDF:   {"application/pdf"},
}

// AllowedMIMETypes returns the accepted MIME types for t. Links have none.
func AllowedMIMETypes(t types.AttachmentType) []string {
	return append([]string(nil), allowedMIME[t]...)
}

// normalizeMIME lowercases and drops parameters ("image/png; q=1").
func normalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// TypeForMIME returns the attachment category mimeType belongs to.
func TypeForMIME(mimeType string) (types.AttachmentType, bool) {
	m := normalizeMIME(mimeType)
	for t, allowed := range allowedMIME {
		for _, a := range allowed {
			if a == m {
				return t, true
			}
		}
	}
	return "", false
}

// ValidateFile checks a file attachment's MIME type against the allow-list
// for t and its size against maxSize (bytes; <= 0 disables the ceiling).
func ValidateFile(t types.AttachmentType, mimeType string, size, maxSize int64) Result {
	if !t.Valid() || t == types.AttachmentLink {
		return reject("%q is not a file attachment type", t)
	}
	if size <= 0 {
		return reject("file is empty")
	}
	if maxSize > 0 && size > maxSize {
		return reject("file is %s, the limit is %s", FormatSize(size), FormatSize(maxSize))
	}

	m := normalizeMIME(mimeType)
	for _, a := range allowedMIME[t] {
		if a == m {
			return ok()
		}
	}
	return reject("%s files of type %q are not supported (allowed: %s)",
		t, mimeType, strings.Join(allowedMIME[t], ", "))
}

// ValidateURL checks that raw is an absolute http(s) URL with a host.
func ValidateURL(raw string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return reject("URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return reject("URL is malformed: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return reject("URL must start with http:// or https://")
	}
	if u.Host == "" {
		return reject("URL has no host")
	}
	return ok()
}

// FormatSize renders a byte count for messages ("1.5 MB").
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
