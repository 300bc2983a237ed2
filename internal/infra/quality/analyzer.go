// Package quality implements the skip-evidence side-channel: a PSNR-style
// similarity score between each source frame and its successor, computed on
// downscaled luma. Scores are capped to the metric range [0, 60], so
// identical neighbors score exactly 60.
package quality

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/framewise/rife-interpolation-service/internal/domain/port"
	"github.com/framewise/rife-interpolation-service/internal/infra/frames"
	"github.com/framewise/rife-interpolation-service/internal/scheduler"
)

// maxDim bounds the comparison resolution; scoring does not need full-size
// frames and the downscale keeps the cost per boundary flat.
const maxDim = 512

type Analyzer struct {
	paths       []string
	outstanding atomic.Int64
}

func NewAnalyzer(framePaths []string) (*Analyzer, error) {
	if len(framePaths) == 0 {
		return nil, fmt.Errorf("quality analyzer needs at least one frame path")
	}
	return &Analyzer{paths: framePaths}, nil
}

// Outstanding reports the number of unreleased score leases.
func (a *Analyzer) Outstanding() int64 {
	return a.outstanding.Load()
}

func (a *Analyzer) RequestScore(ctx context.Context, sourceIndex int) port.QualityFuture {
	a.outstanding.Add(1)
	fut := &future{analyzer: a, done: make(chan struct{})}
	go fut.compute(sourceIndex)
	return fut
}

type future struct {
	analyzer *Analyzer
	done     chan struct{}
	score    float64
	err      error
	once     sync.Once
}

func (f *future) compute(sourceIndex int) {
	defer close(f.done)
	defer func() {
		if r := recover(); r != nil {
			f.err = fmt.Errorf("score source frame %d: %v", sourceIndex, r)
		}
	}()

	paths := f.analyzer.paths
	if sourceIndex < 0 || sourceIndex >= len(paths) {
		f.err = fmt.Errorf("source index %d out of range [0, %d)", sourceIndex, len(paths))
		return
	}

	// The final boundary has no successor; it compares the last frame
	// with itself and scores the cap, which always reads as "skip".
	next := sourceIndex + 1
	if next >= len(paths) {
		next = sourceIndex
	}

	f.score, f.err = Score(paths[sourceIndex], paths[next])
}

func (f *future) Await(ctx context.Context) (float64, error) {
	select {
	case <-f.done:
		return f.score, f.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *future) Release() {
	f.once.Do(func() { f.analyzer.outstanding.Add(-1) })
}

// Score computes the capped luma PSNR between two frame files.
func Score(pathA, pathB string) (float64, error) {
	a, err := frames.Decode(pathA)
	if err != nil {
		return 0, err
	}
	b, err := frames.Decode(pathB)
	if err != nil {
		return 0, err
	}
	if a.Width != b.Width || a.Height != b.Height {
		return 0, fmt.Errorf("frame size mismatch: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}

	_, _, la := frames.DownscaledLuma(a, maxDim)
	_, _, lb := frames.DownscaledLuma(b, maxDim)

	var mse float64
	for i := range la {
		d := float64(la[i] - lb[i])
		mse += d * d
	}
	mse /= float64(len(la))

	if mse == 0 {
		return scheduler.MaxQualityScore, nil
	}
	psnr := 10 * math.Log10(1/mse)
	if psnr > scheduler.MaxQualityScore {
		psnr = scheduler.MaxQualityScore
	}
	if psnr < 0 {
		psnr = 0
	}
	return psnr, nil
}
