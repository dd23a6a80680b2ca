package media

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// ImageOptions controls ProcessImage. Zero values take the defaults below.
type ImageOptions struct {
	// Compress re-encodes the image and fits it inside MaxDimension.
	Compress     bool
	MaxDimension int
	Quality      int

	// Thumbnail derives a JPEG preview fitting ThumbnailSize.
	Thumbnail     bool
	ThumbnailSize int
}

const (
	defaultMaxDimension  = 1920
	defaultQuality       = 82
	defaultThumbnailSize = 256

	// ThumbnailMIME is the format of every derived thumbnail.
	ThumbnailMIME = "image/jpeg"
)

// ProcessedImage is the result of ProcessImage.
type ProcessedImage struct {
	Data      []byte
	Width     int
	Height    int
	Thumbnail []byte
}

// ProcessImage decodes data, optionally downscales and recompresses it and
// optionally derives a thumbnail. When recompression does not make the
// image smaller and no resize was needed, the original bytes are kept.
func ProcessImage(data []byte, mimeType string, opts ImageOptions) (*ProcessedImage, error) {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = defaultMaxDimension
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = defaultQuality
	}
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = defaultThumbnailSize
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	out := &ProcessedImage{
		Data:   data,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}

	if opts.Compress {
		format, encOpts := encoderFor(mimeType, opts.Quality)
		resized := out.Width > opts.MaxDimension || out.Height > opts.MaxDimension
		work := img
		if resized {
			work = imaging.Fit(img, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, work, format, encOpts...); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		if resized || buf.Len() < len(data) {
			out.Data = buf.Bytes()
			out.Width = work.Bounds().Dx()
			out.Height = work.Bounds().Dy()
		}
	}

	if opts.Thumbnail {
		thumb := imaging.Fit(img, opts.ThumbnailSize, opts.ThumbnailSize, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(75)); err != nil {
			return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
		}
		out.Thumbnail = buf.Bytes()
	}

	return out, nil
}

// encoderFor keeps the input's format where imaging can write it and falls
// back to JPEG otherwise.
func encoderFor(mimeType string, quality int) (imaging.Format, []imaging.EncodeOption) {
	switch normalizeMIME(mimeType) {
	case "image/png":
		return imaging.PNG, nil
	case "image/gif":
		return imaging.GIF, nil
	default:
		return imaging.JPEG, []imaging.EncodeOption{imaging.JPEGQuality(quality)}
	}
}
