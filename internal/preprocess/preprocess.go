// Package preprocess prepares receipt photos for OCR with deterministic
// pixel-level transforms. Every function returns a new buffer; callers'
// images are never mutated.
package preprocess

import (
	"image"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/disintegration/imaging"
)

// DefaultMaxDimension caps the longer side of a scaled image. Receipts
// larger than this cost OCR time without gaining accuracy.
const DefaultMaxDimension = 2000

// EnhanceOptions tunes the enhancement pipeline.
type EnhanceOptions struct {
	// SkipThreshold leaves the image as stretched grayscale. Clean,
	// well-lit photos OCR better without binarization; low-contrast
	// photos better with it, so both variants are usually produced.
	SkipThreshold bool
	// BlockSize is the side of the square neighborhood for adaptive
	// thresholding. Zero selects the default.
	BlockSize int
	// Bias is subtracted from each block mean before comparison; a
	// positive bias pushes faint print toward ink.
	Bias int
}

const (
	defaultBlockSize = 31
	defaultBias      = 8
)

// Scale bounds the longer side of img at maxDim, preserving aspect
// ratio. Images already within bounds are returned as a copy.
func Scale(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return imaging.Clone(img)
	}
	if w >= h {
		return imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxDim, imaging.Lanczos)
}

// Enhance runs the fixed pipeline: luminance grayscale, histogram
// stretch, 3x3 sharpen, and (unless skipped) adaptive local
// thresholding.
func Enhance(img image.Image, opts EnhanceOptions) *image.Gray {
	gray := toGray(img)
	stretchContrast(gray)
	gray = sharpen(gray)
	if !opts.SkipThreshold {
		blockSize := opts.BlockSize
		if blockSize <= 0 {
			blockSize = defaultBlockSize
		}
		bias := opts.Bias
		if bias == 0 {
			bias = defaultBias
		}
		gray = adaptiveThreshold(gray, blockSize, bias)
	}
	return gray
}

// toGray converts to 8-bit grayscale with Rec.601 luminance weights.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			lum := (299*r + 587*g + 114*bl) / 1000
			gray.Pix[gray.PixOffset(x-b.Min.X, y-b.Min.Y)] = uint8(lum >> 8)
		}
	}
	return gray
}

// stretchContrast normalizes the histogram so the darkest pixel maps to
// 0 and the brightest to 255. Flat images are left alone.
func stretchContrast(gray *image.Gray) {
	lo, hi := uint8(255), uint8(0)
	for _, p := range gray.Pix {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	if hi <= lo {
		return
	}
	span := int(hi) - int(lo)
	for i, p := range gray.Pix {
		gray.Pix[i] = uint8((int(p) - int(lo)) * 255 / span)
	}
}

// sharpenKernel is the standard 3x3 unsharp convolution.
var sharpenKernel = convolution.Kernel{
	Matrix: []float64{
		0, -1, 0,
		-1, 5, -1,
		0, -1, 0,
	},
	Width:  3,
	Height: 3,
}

func sharpen(gray *image.Gray) *image.Gray {
	sharpened := convolution.Convolve(gray, &sharpenKernel, &convolution.Options{Bias: 0, Wrap: false})
	return toGray(sharpened)
}

// adaptiveThreshold binarizes against the mean of each pixel's local
// block, computed from an integral image so the pass stays linear in
// pixel count. Pixels darker than blockMean-bias become ink.
func adaptiveThreshold(gray *image.Gray, blockSize, bias int) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	integral := make([]int64, (w+1)*(h+1))
	stride := w + 1
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(gray.Pix[y*gray.Stride+x])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	half := blockSize / 2
	for y := 0; y < h; y++ {
		y0 := max(0, y-half)
		y1 := min(h-1, y+half)
		for x := 0; x < w; x++ {
			x0 := max(0, x-half)
			x1 := min(w-1, x+half)
			count := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
			mean := sum / count
			if int64(gray.Pix[y*gray.Stride+x]) < mean-int64(bias) {
				out.Pix[y*out.Stride+x] = 0
			} else {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}
