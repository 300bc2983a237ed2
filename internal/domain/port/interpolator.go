package port

import (
	"context"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
)

// Interpolator synthesizes the in-between frame for two aligned source
// frames. Implementations must be safe for concurrent Process calls up to
// the number of GPU lanes; the scheduler serializes access beyond that.
type Interpolator interface {
	// Process returns a new frame at blend position timestep in (0, 1)
	// between a and b. Both inputs must share width, height and stride.
	Process(ctx context.Context, a, b *entity.Frame, timestep float64) (*entity.Frame, error)

	// ArbitraryRate reports whether the loaded model family supports
	// conversion ratios other than 2/1.
	ArbitraryRate() bool

	// QueueCount reports the compute queue count of the selected device,
	// or 0 when unknown.
	QueueCount() int
}
