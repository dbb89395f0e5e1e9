package clips

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/matchframe/mf-clips/internal/engine"
	"github.com/matchframe/mf-clips/internal/extract"
	"github.com/matchframe/mf-clips/internal/thumbnail"
	"github.com/matchframe/mf-clips/internal/timing"
)

// MediaPipeline is the ffmpeg-backed Pipeline.
type MediaPipeline struct {
	Engine     *engine.Engine
	Client     *http.Client
	StagingDir string
}

func NewMediaPipeline(eng *engine.Engine, stagingDir string) *MediaPipeline {
	return &MediaPipeline{
		Engine:     eng,
		Client:     http.DefaultClient,
		StagingDir: stagingDir,
	}
}

func (p *MediaPipeline) Fetch(ctx context.Context, sourceURL string) (string, func(), error) {
	if err := os.MkdirAll(p.StagingDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("%w: %v", extract.ErrDownload, err)
	}
	tmp, err := os.CreateTemp(p.StagingDir, "source-*.mp4")
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", extract.ErrDownload, err)
	}
	tmpName := tmp.Name()
	tmp.Close()

	path, err := extract.Fetch(ctx, p.Client, sourceURL, tmpName)
	if err != nil {
		os.Remove(tmpName)
		return "", nil, err
	}
	if path != tmpName {
		// Local source used in place: drop the unused temp file and leave
		// the original alone.
		os.Remove(tmpName)
		return path, func() {}, nil
	}
	return path, func() { os.Remove(path) }, nil
}

// Cut releases the engine before returning: the clip is moved out of the
// session scratch area so the thumbnail pass can acquire its own session.
func (p *MediaPipeline) Cut(ctx context.Context, sourcePath string, w timing.Window, caption *extract.Caption) (string, func(), error) {
	sess, err := p.Engine.Acquire(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", extract.ErrExtraction, err)
	}
	defer sess.Release()

	x := &extract.Extractor{Engine: p.Engine}
	clipPath, err := x.Extract(ctx, sess, sourcePath, w, caption)
	if err != nil {
		return "", nil, err
	}

	staged, err := os.CreateTemp(p.StagingDir, "clip-*.mp4")
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", extract.ErrExtraction, err)
	}
	stagedName := staged.Name()
	staged.Close()
	if err := moveFile(clipPath, stagedName); err != nil {
		os.Remove(stagedName)
		return "", nil, fmt.Errorf("%w: %v", extract.ErrExtraction, err)
	}
	return stagedName, func() { os.Remove(stagedName) }, nil
}

// moveFile renames across the scratch/staging boundary, copying when they
// sit on different filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (p *MediaPipeline) Thumbnail(ctx context.Context, clipPath string, meta thumbnail.Meta) []byte {
	synth := &thumbnail.Synthesizer{Engine: p.Engine}
	return synth.Synthesize(ctx, clipPath, meta)
}
