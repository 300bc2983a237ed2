package quality

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
	"github.com/framewise/rife-interpolation-service/internal/infra/frames"
	"github.com/framewise/rife-interpolation-service/internal/scheduler"
)

func writeGradientFrame(t *testing.T, path string, w, h int, offset float32) string {
	t.Helper()
	frame := entity.NewFrame(w, h)
	for i := range frame.R {
		v := float32(i)/float32(len(frame.R)) + offset
		if v > 1 {
			v = 1
		}
		frame.R[i], frame.G[i], frame.B[i] = v, v, v
	}
	require.NoError(t, frames.Encode(frame, path))
	return path
}

func TestScoreIdenticalFramesHitsCap(t *testing.T) {
	dir := t.TempDir()
	a := writeGradientFrame(t, filepath.Join(dir, "a.png"), 16, 16, 0)
	b := writeGradientFrame(t, filepath.Join(dir, "b.png"), 16, 16, 0)

	score, err := Score(a, b)
	require.NoError(t, err)
	assert.Equal(t, scheduler.MaxQualityScore, score)
}

func TestScoreDifferentFramesBelowCap(t *testing.T) {
	dir := t.TempDir()
	a := writeGradientFrame(t, filepath.Join(dir, "a.png"), 16, 16, 0)
	b := writeGradientFrame(t, filepath.Join(dir, "b.png"), 16, 16, 0.5)

	score, err := Score(a, b)
	require.NoError(t, err)
	assert.Less(t, score, scheduler.MaxQualityScore)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestScoreExtremeAspectFrames(t *testing.T) {
	dir := t.TempDir()
	a := writeGradientFrame(t, filepath.Join(dir, "a.png"), 1, 1024, 0)
	b := writeGradientFrame(t, filepath.Join(dir, "b.png"), 1, 1024, 0)

	score, err := Score(a, b)
	require.NoError(t, err)
	assert.Equal(t, scheduler.MaxQualityScore, score)
}

func TestScoreRejectsSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	a := writeGradientFrame(t, filepath.Join(dir, "a.png"), 16, 16, 0)
	b := writeGradientFrame(t, filepath.Join(dir, "b.png"), 8, 8, 0)

	_, err := Score(a, b)
	assert.ErrorContains(t, err, "size mismatch")
}

func TestAnalyzerScoresBoundaries(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeGradientFrame(t, filepath.Join(dir, "f0.png"), 16, 16, 0),
		writeGradientFrame(t, filepath.Join(dir, "f1.png"), 16, 16, 0.5),
	}

	a, err := NewAnalyzer(paths)
	require.NoError(t, err)

	fut := a.RequestScore(context.Background(), 0)
	score, err := fut.Await(context.Background())
	require.NoError(t, err)
	assert.Less(t, score, scheduler.MaxQualityScore)

	assert.Equal(t, int64(1), a.Outstanding())
	fut.Release()
	fut.Release()
	assert.Equal(t, int64(0), a.Outstanding())
}

func TestAnalyzerFinalBoundaryScoresCap(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeGradientFrame(t, filepath.Join(dir, "f0.png"), 16, 16, 0),
		writeGradientFrame(t, filepath.Join(dir, "f1.png"), 16, 16, 0.5),
	}

	a, err := NewAnalyzer(paths)
	require.NoError(t, err)

	fut := a.RequestScore(context.Background(), 1)
	defer fut.Release()
	score, err := fut.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scheduler.MaxQualityScore, score)
}

func TestAnalyzerOutOfRangeIndex(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writeGradientFrame(t, filepath.Join(dir, "f0.png"), 8, 8, 0)}

	a, err := NewAnalyzer(paths)
	require.NoError(t, err)

	fut := a.RequestScore(context.Background(), 3)
	defer fut.Release()
	_, err = fut.Await(context.Background())
	assert.ErrorContains(t, err, "out of range")
}
