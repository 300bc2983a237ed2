package scheduler

// MaxQualityScore is the upper bound of the quality metric. Identical
// neighboring frames score exactly this value, so an inclusive threshold
// of MaxQualityScore skips only perfect duplicates.
const MaxQualityScore = 60.0

// SkipPolicy decides whether a candidate interpolated frame should instead
// be a direct copy of its preceding source frame. Scene-change and quality
// signals are independent; either, both, or neither may be enabled.
type SkipPolicy struct {
	SceneChange bool
	Quality     bool
	Threshold   float64
}

// SkipEvidence is the per-boundary signal gathered from the two source
// frames surrounding a candidate frame.
type SkipEvidence struct {
	SceneChange bool
	Quality     float64
	HasQuality  bool
}

// ShouldSkip evaluates the evidence. A detected scene change wins outright:
// blending across a hard cut produces ghosting, so the boundary is copied
// instead. Otherwise a quality score at or above the threshold (inclusive)
// means the neighboring frames are similar enough that a copy is visually
// indistinguishable from true interpolation.
func (p SkipPolicy) ShouldSkip(ev SkipEvidence) bool {
	if p.SceneChange && ev.SceneChange {
		return true
	}
	if p.Quality && ev.HasQuality && ev.Quality >= p.Threshold {
		return true
	}
	return false
}
