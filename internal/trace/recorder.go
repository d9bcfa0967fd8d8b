// Package trace records a run as an animated GIF, one frame per executed
// step, and keeps a PNG of the page when a step fails.
package trace

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/executor"
)

// Options configures a Recorder.
type Options struct {
	FPS      int
	MaxWidth uint
}

// Recorder collects frames as an executor.Observer.
type Recorder struct {
	dir    string
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	frames  []image.Image
	failure string
}

// NewRecorder creates dir and returns a recorder writing into it.
func NewRecorder(dir string, opts Options, logger *zap.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	return &Recorder{dir: dir, opts: opts, logger: logger.Named("trace")}, nil
}

// Observe captures the window after a step. Capture problems are logged and
// never affect the run.
func (r *Recorder) Observe(ctx context.Context, ev executor.Event) {
	if ev.Window == nil {
		return
	}
	data, err := ev.Window.Screenshot(ctx)
	if err != nil {
		r.logger.Warn("Failed to capture frame.", zap.Int("step", ev.Index), zap.Error(err))
		return
	}
	frame, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		r.logger.Warn("Failed to decode frame.", zap.Int("step", ev.Index), zap.Error(err))
		return
	}

	var marked image.Image = frame
	if ev.Element != nil {
		if x, y, err := ev.Element.Center(ctx); err == nil {
			marked = Mark(frame, x, y, ev.Err != nil)
		}
	}

	r.mu.Lock()
	r.frames = append(r.frames, marked)
	r.mu.Unlock()

	if ev.Err != nil {
		path := filepath.Join(r.dir, "failure.png")
		if err := writePNG(path, marked); err != nil {
			r.logger.Warn("Failed to write failure snapshot.", zap.Error(err))
			return
		}
		r.mu.Lock()
		r.failure = path
		r.mu.Unlock()
		r.logger.Info("Wrote failure snapshot.", zap.String("path", path), zap.Int("step", ev.Index))
	}
}

// Frames returns the number of captured frames.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// FailurePath returns the failure snapshot path, or "" if none was written.
func (r *Recorder) FailurePath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure
}

// Finish writes run.gif and returns its path. With no frames it writes
// nothing and returns "".
func (r *Recorder) Finish() (string, error) {
	r.mu.Lock()
	frames := append([]image.Image(nil), r.frames...)
	r.mu.Unlock()
	if len(frames) == 0 {
		return "", nil
	}

	path := filepath.Join(r.dir, "run.gif")
	size, err := EncodeGIF(frames, path, r.opts.FPS, r.opts.MaxWidth)
	if err != nil {
		return "", err
	}
	r.logger.Info("Wrote run trace.", zap.String("path", path), zap.Int("frames", len(frames)), zap.Int64("bytes", size))
	return path, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
