// Package export converts generated artifacts to PNG and bundles them for download.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/webp"

	"eagle-studio/internal/media"
)

var ErrNothingToExport = errors.New("no generated artifacts to export")

// ToPNG re-encodes img as PNG. PNG input is returned as is.
func ToPNG(img media.Image) (media.Image, error) {
	if img.IsZero() {
		return media.Image{}, ErrNothingToExport
	}
	if media.NormalizeMIME(img.MIMEType, img.Data) == "image/png" && bytes.HasPrefix(img.Data, pngMagic) {
		return img, nil
	}

	decoded, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return media.Image{}, fmt.Errorf("decode %s: %w", img.MIMEType, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return media.Image{}, fmt.Errorf("encode png from %s: %w", format, err)
	}
	return media.New(buf.Bytes(), "image/png"), nil
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")
