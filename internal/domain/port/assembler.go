package port

import (
	"context"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
)

// VideoAssembler encodes a numbered frame sequence into a video at the
// given frame rate.
type VideoAssembler interface {
	Assemble(ctx context.Context, framePattern string, frameRate *entity.Rational, outputPath string) error
}
