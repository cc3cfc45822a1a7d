package export

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eagle-studio/internal/media"
	"eagle-studio/internal/workflow"
)

func solid(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 40, B: 10, A: 255})
		}
	}
	return img
}

func pngImage(t *testing.T) media.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(4, 3)))
	return media.New(buf.Bytes(), "image/png")
}

func jpegImage(t *testing.T) media.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(8, 6), nil))
	return media.New(buf.Bytes(), "image/jpeg")
}

func TestToPNG(t *testing.T) {
	src := pngImage(t)
	out, err := ToPNG(src)
	require.NoError(t, err)
	assert.Equal(t, src.Data, out.Data)

	out, err = ToPNG(jpegImage(t))
	require.NoError(t, err)
	assert.Equal(t, "image/png", out.MIMEType)
	decoded, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), decoded.Bounds())

	_, err = ToPNG(media.Image{})
	assert.ErrorIs(t, err, ErrNothingToExport)

	_, err = ToPNG(media.New([]byte("not an image"), "image/jpeg"))
	assert.Error(t, err)
}

func TestEntries_NumbersGeneratedOnly(t *testing.T) {
	img := pngImage(t)
	data := workflow.Data{
		Shots: []workflow.RemappedShot{
			{ID: "a", Image: img.Ptr()},
			{ID: "b"},
			{ID: "c", Image: img.Ptr()},
		},
		AmazonSlots: []workflow.AmazonImageConfig{
			{ID: "main-0", Type: workflow.SlotMain, Image: img.Ptr()},
			{ID: "sec-0", Type: workflow.SlotSecondary},
			{ID: "sec-1", Type: workflow.SlotSecondary, Image: img.Ptr()},
		},
	}

	var names []string
	for _, e := range Entries(data) {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{
		"storyboard-001.png",
		"storyboard-002.png",
		"listing-asset-MAIN-1.png",
		"listing-asset-SECONDARY-2.png",
	}, names)
}

func TestBundle(t *testing.T) {
	data := workflow.Data{Shots: []workflow.RemappedShot{
		{ID: "a", Image: jpegImage(t).Ptr()},
		{ID: "b", Image: pngImage(t).Ptr()},
	}}

	archive, err := Bundle(data)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "storyboard-001.png", zr.File[0].Name)
	assert.Equal(t, zip.Deflate, zr.File[0].Method)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(body))
	assert.NoError(t, err)
}

func TestBundle_Empty(t *testing.T) {
	_, err := Bundle(workflow.Data{Shots: []workflow.RemappedShot{{ID: "a"}}})
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "eagle_storyboard_pack_42.zip", BundleName(workflow.ModePlot, 42))
	assert.Equal(t, "eagle_listing_pack_42.zip", BundleName(workflow.ModeAmazon, 42))
	assert.Equal(t, "shot.png", SingleName("shot"))
	assert.Equal(t, "shot.PNG", SingleName("shot.PNG"))
	assert.Equal(t, "artifact.png", SingleName(" "))
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	loc, err := DirSink{Dir: dir}.Put(context.Background(), "../pack.zip", []byte("zip"), "application/zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pack.zip"), loc)

	got, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("zip"), got)
}

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink(t *testing.T) {
	fake := &fakePutter{}
	sink := NewS3SinkWithClient(fake, "assets", "/exports/", nil)

	loc, err := sink.Put(context.Background(), "pack.zip", []byte("zip"), "application/zip")
	require.NoError(t, err)
	assert.Equal(t, "s3://assets/exports/pack.zip", loc)

	require.Len(t, fake.inputs, 1)
	assert.Equal(t, "assets", aws.ToString(fake.inputs[0].Bucket))
	assert.Equal(t, "exports/pack.zip", aws.ToString(fake.inputs[0].Key))
	assert.Equal(t, "application/zip", aws.ToString(fake.inputs[0].ContentType))
	assert.Equal(t, []byte("zip"), fake.bodies[0])
}
