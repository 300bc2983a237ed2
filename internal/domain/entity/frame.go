package entity

// Rational is an exact numerator/denominator pair, used for frame durations
// and frame rates.
type Rational struct {
	Num int64
	Den int64
}

// Reduce returns the rational in lowest terms.
func (r Rational) Reduce() Rational {
	if g := gcd(r.Num, r.Den); g > 1 {
		return Rational{Num: r.Num / g, Den: r.Den / g}
	}
	return r
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Frame is a planar single-precision RGB frame plus per-frame metadata.
//
// The R, G and B planes each hold Stride*Height samples; only the first
// Width samples of each row are meaningful. Pixel values are normalized
// to [0, 1].
type Frame struct {
	Width  int
	Height int
	Stride int

	R []float32
	G []float32
	B []float32

	// Duration is the frame's display duration as an exact rational,
	// or nil when the source carries no timing metadata.
	Duration *Rational

	// SceneChangeNext is set by an upstream detector when a hard cut
	// follows this frame.
	SceneChangeNext bool

	// SourceIndex is the position of the frame in the source timeline.
	SourceIndex int
}

// NewFrame allocates a frame with tightly packed planes (Stride == Width).
func NewFrame(width, height int) *Frame {
	n := width * height
	return &Frame{
		Width:  width,
		Height: height,
		Stride: width,
		R:      make([]float32, n),
		G:      make([]float32, n),
		B:      make([]float32, n),
	}
}

// Clone returns a deep copy of the frame, pixel data and metadata included.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		Width:  f.Width,
		Height: f.Height,
		Stride: f.Stride,
		R:      append([]float32(nil), f.R...),
		G:      append([]float32(nil), f.G...),
		B:      append([]float32(nil), f.B...),
	}
	c.CopyMetadataFrom(f)
	return c
}

// CopyMetadataFrom overwrites the frame's metadata with src's, leaving
// pixel data untouched.
func (f *Frame) CopyMetadataFrom(src *Frame) {
	if src.Duration != nil {
		d := *src.Duration
		f.Duration = &d
	} else {
		f.Duration = nil
	}
	f.SceneChangeNext = src.SceneChangeNext
	f.SourceIndex = src.SourceIndex
}
