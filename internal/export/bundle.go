package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"

	"eagle-studio/internal/media"
	"eagle-studio/internal/workflow"
)

// Entry is one file of an export bundle.
type Entry struct {
	Name  string
	Image media.Image
}

// Entries lists every generated artifact in data with its bundle name. Numbering is 1-based and
// counts only generated artifacts, in list order.
func Entries(data workflow.Data) []Entry {
	var out []Entry

	n := 0
	for _, shot := range data.Shots {
		if !shot.Generated() {
			continue
		}
		n++
		out = append(out, Entry{Name: fmt.Sprintf("storyboard-%03d.png", n), Image: *shot.Image})
	}

	n = 0
	for _, slot := range data.AmazonSlots {
		if !slot.Generated() {
			continue
		}
		n++
		out = append(out, Entry{Name: fmt.Sprintf("listing-asset-%s-%d.png", slot.Type, n), Image: *slot.Image})
	}

	for i, logo := range data.Storefront.Logos {
		if logo.IsZero() {
			continue
		}
		out = append(out, Entry{Name: fmt.Sprintf("storefront-logo-%d.png", i+1), Image: logo})
	}
	for _, canvas := range data.Storefront.Canvases {
		for i, img := range canvas.Candidates {
			if img.IsZero() {
				continue
			}
			out = append(out, Entry{Name: fmt.Sprintf("storefront-%s-%d.png", canvas.ID, i+1), Image: img})
		}
	}
	return out
}

// WriteZip writes entries as a deflated zip archive. Every image is converted to PNG first.
func WriteZip(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		return ErrNothingToExport
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	for _, e := range entries {
		img, err := ToPNG(e.Image)
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("%s: %w", e.Name, err)
		}
		f, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate})
		if err != nil {
			_ = zw.Close()
			return err
		}
		if _, err := f.Write(img.Data); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

// Bundle builds the zip archive of every generated artifact in data.
func Bundle(data workflow.Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteZip(&buf, Entries(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BundleName is the archive file name for a session's mode.
func BundleName(mode workflow.Mode, stamp int64) string {
	prefix := "eagle_storyboard_pack"
	switch mode {
	case workflow.ModeAmazon:
		prefix = "eagle_listing_pack"
	case workflow.ModeStorefront:
		prefix = "eagle_storefront_pack"
	}
	return fmt.Sprintf("%s_%d.zip", prefix, stamp)
}

// SingleName is the download name for one artifact.
func SingleName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "artifact"
	}
	if strings.HasSuffix(strings.ToLower(name), ".png") {
		return name
	}
	return name + ".png"
}
