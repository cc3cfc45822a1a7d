// Package media holds the inline image artifact shared by every stage of the pipeline.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const defaultMIME = "image/png"

var ErrEmptyDataURL = errors.New("empty data url")

// Image is an inline artifact: raw bytes plus MIME type. Generated frames, uploaded references and
// masks all travel as Image values.
type Image struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

func New(data []byte, mimeType string) Image {
	return Image{MIMEType: NormalizeMIME(mimeType, data), Data: data}
}

func (i Image) IsZero() bool {
	return len(i.Data) == 0
}

func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

func (i Image) DataURL() string {
	if i.IsZero() {
		return ""
	}
	mimeType := i.MIMEType
	if mimeType == "" {
		mimeType = defaultMIME
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, i.Base64())
}

// Ptr returns nil for an empty image so optional attachments can be passed around as *Image.
func (i Image) Ptr() *Image {
	if i.IsZero() {
		return nil
	}
	return &i
}

// ParseDataURL decodes `data:<mime>;base64,<payload>`. A bare base64 payload is accepted and sniffed.
func ParseDataURL(value string) (Image, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Image{}, ErrEmptyDataURL
	}

	mimeType := ""
	payload := value
	if strings.HasPrefix(value, "data:") {
		parts := strings.SplitN(value, ",", 2)
		if len(parts) != 2 {
			return Image{}, errors.New("invalid data url")
		}
		meta := strings.Split(strings.TrimPrefix(parts[0], "data:"), ";")
		mimeType = strings.TrimSpace(meta[0])
		payload = parts[1]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return Image{}, ErrEmptyDataURL
	}
	return New(data, mimeType), nil
}

// FromBase64 builds an Image from a raw base64 payload as returned by the generation API.
func FromBase64(payload, mimeType string) (Image, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return Image{}, fmt.Errorf("decode base64: %w", err)
	}
	return New(data, mimeType), nil
}

// NormalizeMIME drops parameters and falls back to content sniffing for empty or generic types.
func NormalizeMIME(mimeType string, data []byte) string {
	mimeType = strings.TrimSpace(mimeType)
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if (mimeType == "" || mimeType == "application/octet-stream") && len(data) > 0 {
		mimeType = http.DetectContentType(data)
		if strings.Contains(mimeType, ";") {
			mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
		}
	}
	if mimeType == "" || mimeType == "application/octet-stream" || mimeType == "text/plain" {
		mimeType = defaultMIME
	}
	return strings.ToLower(mimeType)
}

func IsVideo(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "video/")
}
