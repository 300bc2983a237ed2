// Package rife adapts the rife-ncnn-vulkan binary as the interpolation
// kernel. The adapter only shuttles frames in and out of the process; all
// scheduling and concurrency control stays with the caller.
package rife

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
	"github.com/framewise/rife-interpolation-service/internal/infra/frames"
)

type Config struct {
	// ModelDir points at one model directory (e.g. .../rife-v4.6). The
	// directory name determines the model family: only rife-v4 models
	// support arbitrary conversion rates, and v4 does not support TTA.
	ModelDir string
	UHD      bool
	TTA      bool
	TempDir  string
}

type Interpolator struct {
	rt        *Runtime
	modelDir  string
	uhd       bool
	tta       bool
	arbitrary bool
	tempDir   string
	logger    *zap.Logger
}

func NewInterpolator(rt *Runtime, cfg Config, logger *zap.Logger) (*Interpolator, error) {
	if _, err := os.Stat(filepath.Join(cfg.ModelDir, "flownet.param")); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	name := filepath.Base(cfg.ModelDir)
	var arbitrary bool
	switch {
	case strings.Contains(name, "rife-v4"):
		arbitrary = true
	case strings.Contains(name, "rife-v2"), strings.Contains(name, "rife-v3"):
	case strings.Contains(name, "rife"):
	default:
		return nil, fmt.Errorf("unknown model dir type %q", name)
	}
	if arbitrary && cfg.TTA {
		return nil, fmt.Errorf("rife-v4 models do not support TTA mode")
	}

	return &Interpolator{
		rt:        rt,
		modelDir:  cfg.ModelDir,
		uhd:       cfg.UHD,
		tta:       cfg.TTA,
		arbitrary: arbitrary,
		tempDir:   cfg.TempDir,
		logger:    logger,
	}, nil
}

func (i *Interpolator) ArbitraryRate() bool {
	return i.arbitrary
}

func (i *Interpolator) QueueCount() int {
	return i.rt.QueueCount()
}

// Process writes both frames to a scratch dir, runs the binary and reads
// the synthesized frame back.
func (i *Interpolator) Process(ctx context.Context, a, b *entity.Frame, timestep float64) (*entity.Frame, error) {
	if a.Width != b.Width || a.Height != b.Height || a.Stride != b.Stride {
		return nil, fmt.Errorf("frame geometry mismatch: %dx%d/%d vs %dx%d/%d",
			a.Width, a.Height, a.Stride, b.Width, b.Height, b.Stride)
	}

	workDir, err := os.MkdirTemp(i.tempDir, "rife-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	in0 := filepath.Join(workDir, "in0.png")
	in1 := filepath.Join(workDir, "in1.png")
	outPath := filepath.Join(workDir, "out.png")

	if err := frames.Encode(a, in0); err != nil {
		return nil, err
	}
	if err := frames.Encode(b, in1); err != nil {
		return nil, err
	}

	args := []string{
		"-0", in0,
		"-1", in1,
		"-o", outPath,
		"-m", i.modelDir,
		"-g", strconv.Itoa(i.rt.gpuID),
		"-j", "1:1:1",
	}
	if i.arbitrary {
		args = append(args, "-s", strconv.FormatFloat(timestep, 'g', -1, 64))
	}
	if i.uhd {
		args = append(args, "-u")
	}
	if i.tta {
		args = append(args, "-x")
	}

	cmd := exec.CommandContext(ctx, i.rt.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("rife error: %w, output: %s", err, string(output))
	}

	out, err := frames.Decode(outPath)
	if err != nil {
		return nil, fmt.Errorf("read interpolated frame: %w", err)
	}
	if out.Width != a.Width || out.Height != a.Height {
		return nil, fmt.Errorf("interpolated frame geometry mismatch: got %dx%d, want %dx%d",
			out.Width, out.Height, a.Width, a.Height)
	}
	return out, nil
}
