// Package scheduler implements the frame-rate conversion core: index
// mapping between the output and source timelines, the admission gate that
// bounds concurrent GPU inference, the skip decision, and the per-frame
// orchestration that ties them together.
//
// The scheduler holds no mutable state across output frames beyond the
// gate's permit pool and operational counters, so any number of output
// indices may be produced concurrently by the caller.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
	"github.com/framewise/rife-interpolation-service/internal/domain/port"
	"github.com/framewise/rife-interpolation-service/internal/infra/metrics"
)

// Config is the construction-time surface of one scheduler instance. All
// fields are validated eagerly by New; an invalid configuration prevents
// construction outright rather than degrading at runtime.
type Config struct {
	// Multiplier/Divisor define the conversion ratio. Multiplier must be
	// at least 2, Divisor at least 1, and ratios other than 2/1 require
	// an interpolator whose model family supports arbitrary rates.
	Multiplier int
	Divisor    int

	// Lanes bounds concurrent interpolator invocations. It must be at
	// least 1 and no greater than the device's compute queue count when
	// the interpolator reports one.
	Lanes int

	// SceneChangeSkip copies instead of blending across detected cuts.
	SceneChangeSkip bool

	// QualitySkip copies when the neighboring frames score at or above
	// QualityThreshold; it requires a quality analyzer.
	QualitySkip      bool
	QualityThreshold float64
}

// Stats is a snapshot of the scheduler's per-path output counters.
type Stats struct {
	Interpolated uint64
	Passthrough  uint64
	Skipped      uint64
}

// Scheduler maps output frame indices onto source frames and drives the
// passthrough / skip / interpolate decision for each one.
type Scheduler struct {
	rate   ConversionRate
	gate   *Gate
	policy SkipPolicy

	source  port.FrameSource
	quality port.QualityAnalyzer
	interp  port.Interpolator

	outputFrames int
	log          *zap.Logger

	interpolated atomic.Uint64
	passthrough  atomic.Uint64
	skipped      atomic.Uint64
}

// New validates cfg against the collaborators and builds a scheduler. The
// conversion rate and the gate's permit count are fixed for the returned
// instance's lifetime.
func New(cfg Config, source port.FrameSource, quality port.QualityAnalyzer, interp port.Interpolator, log *zap.Logger) (*Scheduler, error) {
	if cfg.Multiplier < 2 {
		return nil, fmt.Errorf("multiplier must be greater than 1, got %d", cfg.Multiplier)
	}
	if cfg.Divisor < 1 {
		return nil, fmt.Errorf("divisor must be greater than 0, got %d", cfg.Divisor)
	}
	if (cfg.Multiplier != 2 || cfg.Divisor != 1) && !interp.ArbitraryRate() {
		return nil, fmt.Errorf("model family only supports 2/1 conversion, got %d/%d", cfg.Multiplier, cfg.Divisor)
	}
	if cfg.QualityThreshold < 0 || cfg.QualityThreshold > MaxQualityScore {
		return nil, fmt.Errorf("quality threshold must be between 0 and %g, got %g", MaxQualityScore, cfg.QualityThreshold)
	}
	if cfg.QualitySkip && quality == nil {
		return nil, fmt.Errorf("quality analyzer is required when quality skip is enabled")
	}

	sourceFrames := source.FrameCount()
	if sourceFrames < 2 {
		return nil, fmt.Errorf("source must have at least 2 frames, got %d", sourceFrames)
	}

	rate := ConversionRate{Multiplier: cfg.Multiplier, Divisor: cfg.Divisor}
	if err := rate.checkOverflow(sourceFrames); err != nil {
		return nil, err
	}

	if q := interp.QueueCount(); q > 0 && cfg.Lanes > q {
		return nil, fmt.Errorf("lane count must be between 1 and %d, got %d", q, cfg.Lanes)
	}
	gate, err := NewGate(cfg.Lanes)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		rate:         rate,
		gate:         gate,
		policy:       SkipPolicy{SceneChange: cfg.SceneChangeSkip, Quality: cfg.QualitySkip, Threshold: cfg.QualityThreshold},
		source:       source,
		quality:      quality,
		interp:       interp,
		outputFrames: rate.OutputFrames(sourceFrames),
		log:          log,
	}, nil
}

// OutputFrames is the converted stream's total frame count.
func (s *Scheduler) OutputFrames() int {
	return s.outputFrames
}

// Rate returns the fixed conversion rate.
func (s *Scheduler) Rate() ConversionRate {
	return s.rate
}

// Stats returns a snapshot of the per-path output counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Interpolated: s.interpolated.Load(),
		Passthrough:  s.passthrough.Load(),
		Skipped:      s.skipped.Load(),
	}
}

// ProduceFrame produces the output frame at outputIndex.
//
// Phase 1 declares every dependency up front: the anchor source frame,
// the next source frame when the index falls between two sources and the
// stream still has one, and the quality evidence when quality skip is
// enabled. Evidence is requested unconditionally before the decision is
// made, since waiting to know whether it is needed would cost a second
// round-trip.
//
// Phase 2 consumes the dependencies and produces either a passthrough
// duplicate, a skip duplicate, or a gated interpolation. A failure in any
// dependency or in the interpolator fails this frame's production only;
// there is no fallback duplicate.
func (s *Scheduler) ProduceFrame(ctx context.Context, outputIndex int) (*entity.Frame, error) {
	if outputIndex < 0 || outputIndex >= s.outputFrames {
		return nil, fmt.Errorf("output index %d out of range [0, %d)", outputIndex, s.outputFrames)
	}

	sourceIndex, remainder := s.rate.Map(outputIndex)
	interpolable := remainder != 0 && outputIndex < s.outputFrames-s.rate.Multiplier

	// Phase 1: declare all dependencies before consuming any.
	first := s.source.RequestFrame(ctx, sourceIndex)
	defer first.Release()

	var second port.FrameFuture
	if interpolable {
		second = s.source.RequestFrame(ctx, sourceIndex+1)
		defer second.Release()
	}

	var evidence port.QualityFuture
	if s.policy.Quality {
		evidence = s.quality.RequestScore(ctx, sourceIndex)
		defer evidence.Release()
	}

	// Phase 2: everything below may block until dependencies are ready.
	src0, err := first.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch source frame %d: %w", sourceIndex, err)
	}

	var out *entity.Frame
	switch {
	case !interpolable:
		out = src0.Clone()
		s.passthrough.Add(1)
		metrics.OutputFramesTotal.WithLabelValues("passthrough").Inc()

	default:
		ev := SkipEvidence{}
		if s.policy.SceneChange {
			ev.SceneChange = src0.SceneChangeNext
		}
		if s.policy.Quality {
			score, err := evidence.Await(ctx)
			if err != nil {
				return nil, fmt.Errorf("fetch quality evidence for frame %d: %w", sourceIndex, err)
			}
			ev.Quality, ev.HasQuality = score, true
		}

		if s.policy.ShouldSkip(ev) {
			out = src0.Clone()
			s.skipped.Add(1)
			metrics.OutputFramesTotal.WithLabelValues("skipped").Inc()
			s.log.Debug("skipping interpolation",
				zap.Int("output_index", outputIndex),
				zap.Int("source_index", sourceIndex),
				zap.Bool("scene_change", ev.SceneChange),
				zap.Float64("quality", ev.Quality),
			)
			break
		}

		src1, err := second.Await(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch source frame %d: %w", sourceIndex+1, err)
		}
		out, err = s.interpolate(ctx, src0, src1, remainder)
		if err != nil {
			return nil, err
		}
		s.interpolated.Add(1)
		metrics.OutputFramesTotal.WithLabelValues("interpolated").Inc()
	}

	if d := out.Duration; d != nil {
		rd := s.rate.RescaleDuration(*d)
		out.Duration = &rd
	}
	return out, nil
}

// interpolate invokes the interpolator under an admission permit. The
// permit is released on every exit path; output metadata is anchored to
// the earlier source frame.
func (s *Scheduler) interpolate(ctx context.Context, src0, src1 *entity.Frame, remainder int) (*entity.Frame, error) {
	waitStart := time.Now()
	if err := s.gate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire gpu lane: %w", err)
	}
	defer s.gate.Release()
	metrics.GateWaitSeconds.Observe(time.Since(waitStart).Seconds())

	metrics.ActiveLanes.Inc()
	defer metrics.ActiveLanes.Dec()

	out, err := s.interp.Process(ctx, src0, src1, s.rate.Timestep(remainder))
	if err != nil {
		return nil, fmt.Errorf("interpolate frame %d at t=%g: %w", src0.SourceIndex, s.rate.Timestep(remainder), err)
	}

	out.CopyMetadataFrom(src0)
	return out, nil
}
