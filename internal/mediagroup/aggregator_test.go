package mediagroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_DebouncesAlbum(t *testing.T) {
	flushed := make(chan Album, 1)
	agg := New(Options{Debounce: 20 * time.Millisecond, OnFlush: func(a Album) { flushed <- a }})

	assert.True(t, agg.Add(Item{ChatID: 7, MediaGroupID: "g", FileID: "f1"}))
	assert.True(t, agg.Add(Item{ChatID: 7, MediaGroupID: "g", FileID: "f2", Caption: "bottle"}))
	assert.False(t, agg.Add(Item{ChatID: 7, FileID: "single"}))

	select {
	case album := <-flushed:
		assert.Equal(t, int64(7), album.ChatID)
		assert.Equal(t, []string{"f1", "f2"}, album.FileIDs)
		assert.Equal(t, "bottle", album.Caption)
	case <-time.After(time.Second):
		t.Fatal("album was not flushed")
	}
}

func TestAggregator_CapsFilesAndFlushesOnClose(t *testing.T) {
	var got []Album
	agg := New(Options{Debounce: time.Hour, MaxFiles: 2, OnFlush: func(a Album) { got = append(got, a) }})

	for _, id := range []string{"a", "b", "c"} {
		agg.Add(Item{ChatID: 1, MediaGroupID: "g", FileID: id})
	}
	agg.Close()

	require.Len(t, got, 1)
	assert.Equal(t, []string{"a", "b"}, got[0].FileIDs)
	assert.False(t, agg.Add(Item{ChatID: 1, MediaGroupID: "g", FileID: "late"}))
}
