// Package frames serves extracted source frames to the scheduler as
// asynchronous futures: a request starts the decode immediately, awaiting
// consumes the result, releasing returns the lease. The outstanding-lease
// counter exists so tests and shutdown paths can prove nothing leaked.
package frames

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
	"github.com/framewise/rife-interpolation-service/internal/domain/port"
)

const (
	defaultSceneThreshold = 0.2
	sceneDetectMaxDim     = 256
)

type SourceConfig struct {
	FramePaths []string

	// FrameDuration is attached to every served frame; nil serves frames
	// without timing metadata.
	FrameDuration *entity.Rational

	// SceneDetect annotates each frame's SceneChangeNext flag from the
	// mean absolute luma difference against its successor.
	SceneDetect    bool
	SceneThreshold float64
}

type Source struct {
	paths          []string
	duration       *entity.Rational
	sceneDetect    bool
	sceneThreshold float64

	outstanding atomic.Int64
}

func NewSource(cfg SourceConfig) (*Source, error) {
	if len(cfg.FramePaths) == 0 {
		return nil, fmt.Errorf("frame source needs at least one frame path")
	}
	threshold := cfg.SceneThreshold
	if threshold <= 0 {
		threshold = defaultSceneThreshold
	}
	return &Source{
		paths:          cfg.FramePaths,
		duration:       cfg.FrameDuration,
		sceneDetect:    cfg.SceneDetect,
		sceneThreshold: threshold,
	}, nil
}

func (s *Source) FrameCount() int {
	return len(s.paths)
}

// Outstanding reports the number of unreleased frame leases.
func (s *Source) Outstanding() int64 {
	return s.outstanding.Load()
}

func (s *Source) RequestFrame(ctx context.Context, index int) port.FrameFuture {
	s.outstanding.Add(1)
	fut := &future{src: s, done: make(chan struct{})}
	go fut.load(index)
	return fut
}

type future struct {
	src   *Source
	done  chan struct{}
	frame *entity.Frame
	err   error
	once  sync.Once
}

func (f *future) load(index int) {
	defer close(f.done)
	defer func() {
		if r := recover(); r != nil {
			f.err = fmt.Errorf("load source frame %d: %v", index, r)
		}
	}()

	if index < 0 || index >= len(f.src.paths) {
		f.err = fmt.Errorf("source index %d out of range [0, %d)", index, len(f.src.paths))
		return
	}

	frame, err := Decode(f.src.paths[index])
	if err != nil {
		f.err = err
		return
	}
	frame.SourceIndex = index

	if f.src.duration != nil {
		d := *f.src.duration
		frame.Duration = &d
	}

	if f.src.sceneDetect && index+1 < len(f.src.paths) {
		next, err := Decode(f.src.paths[index+1])
		if err != nil {
			f.err = fmt.Errorf("decode next frame for scene detection: %w", err)
			return
		}
		frame.SceneChangeNext = sceneChanged(frame, next, f.src.sceneThreshold)
	}

	f.frame = frame
}

func (f *future) Await(ctx context.Context) (*entity.Frame, error) {
	select {
	case <-f.done:
		return f.frame, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *future) Release() {
	f.once.Do(func() { f.src.outstanding.Add(-1) })
}

// sceneChanged reports whether the mean absolute luma difference between
// two downscaled frames crosses the cut threshold.
func sceneChanged(a, b *entity.Frame, threshold float64) bool {
	if a.Width != b.Width || a.Height != b.Height {
		return true
	}
	_, _, la := DownscaledLuma(a, sceneDetectMaxDim)
	_, _, lb := DownscaledLuma(b, sceneDetectMaxDim)

	var sum float64
	for i := range la {
		d := float64(la[i] - lb[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum/float64(len(la)) >= threshold
}
