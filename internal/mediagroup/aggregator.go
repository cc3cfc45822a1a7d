// Package mediagroup collects the photos of a Telegram album so they reach the product anchor step
// as one upload.
package mediagroup

import (
	"fmt"
	"sync"
	"time"
)

const (
	defaultDebounce = 1200 * time.Millisecond
	defaultMaxFiles = 10
)

type Item struct {
	ChatID       int64
	MediaGroupID string
	Caption      string
	FileID       string
}

// Album is a flushed media group, files in arrival order.
type Album struct {
	ChatID  int64
	Caption string
	FileIDs []string
}

type Options struct {
	Debounce time.Duration
	// MaxFiles caps the album; extra photos are ignored.
	MaxFiles int
	OnFlush  func(Album)
}

type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	maxFiles int
	onFlush  func(Album)
	pending  map[string]*pendingAlbum
	closed   bool
}

type pendingAlbum struct {
	album Album
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}

	return &Aggregator{
		debounce: debounce,
		maxFiles: maxFiles,
		onFlush:  opts.OnFlush,
		pending:  make(map[string]*pendingAlbum),
	}
}

// Add queues one photo. It reports false for items that are not part of an album or arrive after
// Close.
func (a *Aggregator) Add(item Item) bool {
	if item.MediaGroupID == "" || item.FileID == "" {
		return false
	}

	key := albumKey(item.ChatID, item.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}

	pa, ok := a.pending[key]
	if !ok {
		pa = &pendingAlbum{album: Album{ChatID: item.ChatID, Caption: item.Caption}}
		a.pending[key] = pa
	}
	if len(pa.album.FileIDs) < a.maxFiles {
		pa.album.FileIDs = append(pa.album.FileIDs, item.FileID)
	}
	if item.Caption != "" {
		pa.album.Caption = item.Caption
	}

	if pa.timer != nil {
		pa.timer.Stop()
	}
	pa.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
	return true
}

// Close flushes every pending album immediately and rejects further items.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.closed = true
	keys := make([]string, 0, len(a.pending))
	for key, pa := range a.pending {
		if pa.timer != nil {
			pa.timer.Stop()
		}
		keys = append(keys, key)
	}
	a.mu.Unlock()

	for _, key := range keys {
		a.flush(key)
	}
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pa, ok := a.pending[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.pending, key)
	album := pa.album
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(album)
	}
}

func albumKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
