package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
	"github.com/framewise/rife-interpolation-service/internal/domain/port"
)

// Extractor decodes every frame of a video into a numbered image sequence
// and probes the stream's nominal frame rate.
type Extractor struct {
	format string
	logger *zap.Logger
}

func NewExtractor(format string, logger *zap.Logger) *Extractor {
	return &Extractor{format: format, logger: logger}
}

func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, outputDir string) (*port.FrameExtractionResult, error) {
	frameRate, err := e.probeFrameRate(ctx, videoPath)
	if err != nil {
		e.logger.Warn("could not probe frame rate", zap.Error(err))
	}

	duration, err := e.probeDuration(ctx, videoPath)
	if err != nil {
		e.logger.Warn("could not probe video duration", zap.Error(err))
	}

	framePattern := filepath.Join(outputDir, fmt.Sprintf("frame_%%06d.%s", e.format))
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-fps_mode", "passthrough",
		"-y",
		framePattern,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}

	globPattern := filepath.Join(outputDir, fmt.Sprintf("*.%s", e.format))
	frames, err := filepath.Glob(globPattern)
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted from video")
	}

	e.logger.Info("frames extracted",
		zap.Int("count", len(frames)),
		zap.Float64("video_duration", duration),
	)

	return &port.FrameExtractionResult{
		FramePaths:    frames,
		FrameCount:    len(frames),
		FrameRate:     frameRate,
		VideoDuration: duration,
	}, nil
}

// probeFrameRate reads the stream's rational frame rate, e.g. "24000/1001".
func (e *Extractor) probeFrameRate(ctx context.Context, videoPath string) (*entity.Rational, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	return parseRational(strings.TrimSpace(string(output)))
}

func (e *Extractor) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

func parseRational(s string) (*entity.Rational, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		den = "1"
		num = s
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	d, err := strconv.ParseInt(den, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	if n <= 0 || d <= 0 {
		return nil, fmt.Errorf("non-positive frame rate %q", s)
	}
	return &entity.Rational{Num: n, Den: d}, nil
}
