package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkipPolicy_sceneChangeWins(t *testing.T) {
	p := SkipPolicy{SceneChange: true, Quality: true, Threshold: 40}

	// A detected cut skips regardless of how dissimilar the frames are.
	assert.True(t, p.ShouldSkip(SkipEvidence{SceneChange: true, Quality: 0, HasQuality: true}))
	assert.True(t, p.ShouldSkip(SkipEvidence{SceneChange: true}))
}

func TestSkipPolicy_qualityThresholdInclusive(t *testing.T) {
	p := SkipPolicy{Quality: true, Threshold: 40}

	assert.True(t, p.ShouldSkip(SkipEvidence{Quality: 40, HasQuality: true}), "score == threshold must skip")
	assert.True(t, p.ShouldSkip(SkipEvidence{Quality: 40.5, HasQuality: true}))
	assert.False(t, p.ShouldSkip(SkipEvidence{Quality: 39.999, HasQuality: true}))
}

func TestSkipPolicy_disabledSignalsIgnored(t *testing.T) {
	// Scene-change skip off: the flag is ignored.
	p := SkipPolicy{Quality: true, Threshold: 40}
	assert.False(t, p.ShouldSkip(SkipEvidence{SceneChange: true, Quality: 10, HasQuality: true}))

	// Quality skip off: the score is ignored.
	p = SkipPolicy{SceneChange: true, Threshold: 40}
	assert.False(t, p.ShouldSkip(SkipEvidence{Quality: 60, HasQuality: true}))

	// Both off degenerates to always-interpolate.
	p = SkipPolicy{}
	assert.False(t, p.ShouldSkip(SkipEvidence{SceneChange: true, Quality: 60, HasQuality: true}))
}

func TestSkipPolicy_missingQualityEvidence(t *testing.T) {
	p := SkipPolicy{Quality: true, Threshold: 0}
	assert.False(t, p.ShouldSkip(SkipEvidence{}), "absent evidence must not satisfy the threshold")
}
