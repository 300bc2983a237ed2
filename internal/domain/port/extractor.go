package port

import (
	"context"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
)

type FrameExtractionResult struct {
	FramePaths    []string
	FrameCount    int
	FrameRate     *entity.Rational
	VideoDuration float64
}

type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string, outputDir string) (*FrameExtractionResult, error)
}
