package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eagle-studio/internal/credential"
	"eagle-studio/internal/export"
	"eagle-studio/internal/media"
	"eagle-studio/internal/workflow"
)

func testPNG(t *testing.T) media.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return media.New(buf.Bytes(), "image/png")
}

func TestPrintPlan(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printPlan(&out, workflow.PlanConfig{Main: 1, Secondary: 2}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "main-0"))
	assert.True(t, strings.HasPrefix(lines[2], "sec-1"))
	assert.Equal(t, "3 slots", lines[3])

	assert.Error(t, printPlan(&out, workflow.PlanConfig{Main: 99}))
}

func TestPrintCredential(t *testing.T) {
	ctx := context.Background()
	store := credential.NewMemoryStore()

	var out bytes.Buffer
	require.NoError(t, printCredential(ctx, &out, store))
	assert.Equal(t, "not set\n", out.String())

	require.NoError(t, store.Set(ctx, "AIzaSyTestKey1234"))
	out.Reset()
	require.NoError(t, printCredential(ctx, &out, store))
	assert.True(t, strings.HasPrefix(out.String(), "set "))
	assert.NotContains(t, out.String(), "TestKey")
}

func TestExportState(t *testing.T) {
	img := testPNG(t)
	state := workflow.State{
		Mode: workflow.ModeCreative,
		Data: workflow.Data{Shots: []workflow.RemappedShot{
			{ID: "a", Image: &img},
			{ID: "b"},
			{ID: "c", Image: &img},
		}},
	}
	raw, err := json.Marshal(state)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	loaded, err := readState(path)
	require.NoError(t, err)

	dir := t.TempDir()
	location, err := exportState(context.Background(), export.DirSink{Dir: dir}, loaded, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "eagle_storyboard_pack_1700000000.zip"), location)

	zr, err := zip.OpenReader(location)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"storyboard-001.png", "storyboard-002.png"}, names)
}

func TestExportState_NothingGenerated(t *testing.T) {
	_, err := exportState(context.Background(), export.DirSink{Dir: t.TempDir()}, workflow.State{}, 1)
	assert.ErrorIs(t, err, export.ErrNothingToExport)
}
