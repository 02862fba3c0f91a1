package watch

import (
	"time"

	"photobooth/internal/fsutil"
)

// Batcher groups arriving files into fixed-size batches once the folder has
// been quiet for the settle period. A path is pending at most once.
type Batcher struct {
	size    int
	settle  time.Duration
	pending []string
	seen    map[string]struct{}
	last    time.Time
}

// NewBatcher returns a Batcher emitting groups of size.
func NewBatcher(size int, settle time.Duration) *Batcher {
	return &Batcher{size: size, settle: settle, seen: make(map[string]struct{})}
}

// Add records a created file. It reports whether the path was accepted.
func (b *Batcher) Add(path string, now time.Time) bool {
	if !fsutil.IsImageFile(path) {
		return false
	}
	if _, ok := b.seen[path]; ok {
		return false
	}
	b.seen[path] = struct{}{}
	b.pending = append(b.pending, path)
	b.last = now
	return true
}

// Touch restarts the settle period when a pending file is still being written.
func (b *Batcher) Touch(path string, now time.Time) {
	for _, p := range b.pending {
		if p == path {
			b.last = now
			return
		}
	}
}

// Remove forgets a pending file that disappeared before it was batched.
func (b *Batcher) Remove(path string) {
	for i, p := range b.pending {
		if p == path {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			delete(b.seen, path)
			return
		}
	}
}

// Ready pops every complete batch, in arrival order, once settled. Batched
// paths are forgotten, so a file dropped again under the same name counts as new.
func (b *Batcher) Ready(now time.Time) [][]string {
	if len(b.pending) < b.size || now.Sub(b.last) < b.settle {
		return nil
	}
	var out [][]string
	for len(b.pending) >= b.size {
		batch := append([]string(nil), b.pending[:b.size]...)
		b.pending = b.pending[b.size:]
		for _, p := range batch {
			delete(b.seen, p)
		}
		out = append(out, batch)
	}
	return out
}

// Pending is the number of files waiting for a full batch.
func (b *Batcher) Pending() int {
	return len(b.pending)
}
