package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
)

// Assembler encodes a numbered frame sequence into an H.264 video at the
// converted frame rate.
type Assembler struct {
	logger *zap.Logger
}

func NewAssembler(logger *zap.Logger) *Assembler {
	return &Assembler{logger: logger}
}

func (a *Assembler) Assemble(ctx context.Context, framePattern string, frameRate *entity.Rational, outputPath string) error {
	args := []string{}
	if frameRate != nil {
		args = append(args, "-framerate", fmt.Sprintf("%d/%d", frameRate.Num, frameRate.Den))
	}
	args = append(args,
		"-i", framePattern,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-y",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}

	a.logger.Info("output video assembled", zap.String("path", outputPath))
	return nil
}
