package frames

import (
	"fmt"
	"image"
	"image/png"
	"os"

	_ "image/jpeg"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
)

// Decode reads an image file into a planar float32 RGB frame with values
// normalized to [0, 1].
func Decode(path string) (*entity.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}

	bounds := img.Bounds()
	frame := entity.NewFrame(bounds.Dx(), bounds.Dy())

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			frame.R[i] = float32(r) / 65535
			frame.G[i] = float32(g) / 65535
			frame.B[i] = float32(b) / 65535
			i++
		}
	}
	return frame, nil
}

// Encode writes a frame as an 8-bit PNG.
func Encode(frame *entity.Frame, path string) error {
	img := image.NewNRGBA(image.Rect(0, 0, frame.Width, frame.Height))

	for y := 0; y < frame.Height; y++ {
		row := y * frame.Stride
		for x := 0; x < frame.Width; x++ {
			o := img.PixOffset(x, y)
			img.Pix[o+0] = quantize(frame.R[row+x])
			img.Pix[o+1] = quantize(frame.G[row+x])
			img.Pix[o+2] = quantize(frame.B[row+x])
			img.Pix[o+3] = 0xff
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encode frame %s: %w", path, err)
	}
	return nil
}

func quantize(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// DownscaledLuma reduces the frame to fit within maxDim on its longer side
// by box averaging and returns the BT.709 luma plane of the result. Blocks
// at the right and bottom edges may be partial; they average only the
// samples the frame actually has.
func DownscaledLuma(frame *entity.Frame, maxDim int) (width, height int, luma []float32) {
	factor := 1
	longer := frame.Width
	if frame.Height > longer {
		longer = frame.Height
	}
	for longer/factor > maxDim {
		factor++
	}

	width = (frame.Width + factor - 1) / factor
	height = (frame.Height + factor - 1) / factor
	luma = make([]float32, width*height)

	for by := 0; by < height; by++ {
		yEnd := (by + 1) * factor
		if yEnd > frame.Height {
			yEnd = frame.Height
		}
		for bx := 0; bx < width; bx++ {
			xEnd := (bx + 1) * factor
			if xEnd > frame.Width {
				xEnd = frame.Width
			}
			var sum float32
			for y := by * factor; y < yEnd; y++ {
				row := y * frame.Stride
				for x := bx * factor; x < xEnd; x++ {
					sum += 0.2126*frame.R[row+x] + 0.7152*frame.G[row+x] + 0.0722*frame.B[row+x]
				}
			}
			n := (yEnd - by*factor) * (xEnd - bx*factor)
			luma[by*width+bx] = sum / float32(n)
		}
	}
	return width, height, luma
}
