package camera

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"photobooth/internal/codec"
	"photobooth/internal/fsutil"
)

func init() {
	Register("folder", func(dir string) (Device, error) { return NewFolder(dir) })
}

// Folder replays the images in a directory as camera frames, in name order,
// looping when it runs out. It stands in for a webcam on headless machines.
type Folder struct {
	dir   string
	files []string
}

// NewFolder lists the images under dir.
func NewFolder(dir string) (*Folder, error) {
	files, err := fsutil.ListImages(dir)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	sort.Strings(files)
	return &Folder{dir: dir, files: files}, nil
}

func (f *Folder) Open(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.files) == 0 {
		return nil, fmt.Errorf("%w: no frames in %s", ErrNoDevice, f.dir)
	}
	return &folderStream{files: f.files}, nil
}

type folderStream struct {
	mu      sync.Mutex
	files   []string
	next    int
	stopped bool
}

func (s *folderStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}
	path := s.files[s.next%len(s.files)]
	s.next++
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", path, err)
	}
	return codec.Decode(data)
}

func (s *folderStream) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
