package port

import "context"

// QualityFuture is the handle for one requested quality score, mirroring
// FrameFuture's request/consume split.
type QualityFuture interface {
	Await(ctx context.Context) (float64, error)
	Release()
}

// QualityAnalyzer is the side-channel that scores the similarity between
// source frame index and its successor. Scores live in [0, 60]; higher
// means more similar.
type QualityAnalyzer interface {
	RequestScore(ctx context.Context, sourceIndex int) QualityFuture
}
