package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

var ErrNotAvailable = errors.New("ffmpeg not available")

// Engine owns the ffmpeg/ffprobe binaries and a scratch directory. The
// binaries are resolved once; extraction runs are serialized because each
// session stages input/output files in the shared scratch area.
type Engine struct {
	scratchDir string

	initOnce sync.Once
	initErr  error
	ffmpeg   string
	ffprobe  string

	// Capacity 1: one extraction in flight per engine instance.
	slot chan struct{}
}

func New(scratchDir string) *Engine {
	return &Engine{
		scratchDir: scratchDir,
		slot:       make(chan struct{}, 1),
	}
}

func (e *Engine) init() error {
	e.initOnce.Do(func() {
		ffmpeg, err := exec.LookPath("ffmpeg")
		if err != nil {
			e.initErr = fmt.Errorf("%w: %v", ErrNotAvailable, err)
			return
		}
		ffprobe, err := exec.LookPath("ffprobe")
		if err != nil {
			e.initErr = fmt.Errorf("%w: %v", ErrNotAvailable, err)
			return
		}
		if err := os.MkdirAll(e.scratchDir, 0o755); err != nil {
			e.initErr = fmt.Errorf("scratch dir: %w", err)
			return
		}
		e.ffmpeg = ffmpeg
		e.ffprobe = ffprobe
	})
	return e.initErr
}

// Session is exclusive access to the engine plus a private temp directory.
// Release must be called on every path; it frees the slot and removes all
// staged files.
type Session struct {
	engine *Engine
	dir    string

	releaseOnce sync.Once
}

// Acquire blocks until the engine is free or ctx is done.
func (e *Engine) Acquire(ctx context.Context) (*Session, error) {
	if err := e.init(); err != nil {
		return nil, err
	}
	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	dir, err := os.MkdirTemp(e.scratchDir, "session-*")
	if err != nil {
		<-e.slot
		return nil, fmt.Errorf("session dir: %w", err)
	}
	return &Session{engine: e, dir: dir}, nil
}

func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		os.RemoveAll(s.dir)
		<-s.engine.slot
	})
}

// Path returns an absolute path inside the session's temp directory.
func (s *Session) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// RunFFmpeg executes ffmpeg with the given args, capturing combined output
// for diagnostics on failure.
func (s *Session) RunFFmpeg(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	cmd := exec.CommandContext(ctx, s.engine.ffmpeg, full...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("ffmpeg: %s", msg)
	}
	return nil
}

// Probe returns the container duration of a media file in seconds.
func (e *Engine) Probe(ctx context.Context, path string) (float64, error) {
	if err := e.init(); err != nil {
		return 0, err
	}
	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: bad duration %q", strings.TrimSpace(string(out)))
	}
	return dur, nil
}

// ProbeFrame returns (width, height) of the first video stream.
func (e *Engine) ProbeFrame(ctx context.Context, path string) (int, int, error) {
	if err := e.init(); err != nil {
		return 0, 0, err
	}
	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe: %w", err)
	}
	parts := strings.Split(strings.TrimSpace(string(out)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("ffprobe: bad stream info %q", strings.TrimSpace(string(out)))
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("ffprobe: bad dimensions %q", strings.TrimSpace(string(out)))
	}
	return w, h, nil
}
