package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataURL(t *testing.T) {
	img, err := ParseDataURL("data:image/jpeg;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)
	assert.Equal(t, []byte("hello"), img.Data)
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", img.DataURL())
}

func TestParseDataURL_Errors(t *testing.T) {
	_, err := ParseDataURL("")
	assert.ErrorIs(t, err, ErrEmptyDataURL)

	_, err = ParseDataURL("data:image/png;base64")
	assert.Error(t, err)

	_, err = ParseDataURL("data:image/png;base64,!!!")
	assert.Error(t, err)
}

func TestNormalizeMIME(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	assert.Equal(t, "image/png", NormalizeMIME("", png))
	assert.Equal(t, "image/webp", NormalizeMIME("image/webp; q=1", nil))
	assert.Equal(t, "image/png", NormalizeMIME("application/octet-stream", nil))
}

func TestPtr(t *testing.T) {
	assert.Nil(t, Image{}.Ptr())
	assert.NotNil(t, New([]byte{1}, "image/png").Ptr())
}
