package normalizer

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "go-ocr-extractor/internal/errors"
)

// NormalizedImage is the canonical raster the recognition engine
// consumes: single-channel grayscale, orientation corrected, denoised.
// It is owned by one request and never shared.
type NormalizedImage struct {
	Raster       *image.Gray
	Width        int
	Height       int
	ColorMode    string
	RotationDeg  int
	Denoised     bool
	SourceFormat string
}

// Normalizer decodes an uploaded byte blob into a NormalizedImage.
type Normalizer interface {
	Normalize(data []byte, contentType string) (*NormalizedImage, error)
}

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/webp": true,
}

type imageNormalizer struct{}

// New creates a Normalizer for raster image formats.
func New() Normalizer {
	return &imageNormalizer{}
}

// Normalize decodes, orientation-corrects and denoises the input. The
// input slice is never mutated.
func (n *imageNormalizer) Normalize(data []byte, contentType string) (*NormalizedImage, error) {
	ct := canonicalContentType(data, contentType)
	if !supportedTypes[ct] {
		return nil, apperrors.NewUnsupportedFormatError("unsupported content type: "+ct, nil)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewDecodeError("cannot decode "+ct+" payload", err)
	}

	gray := toGray(img)

	rotation := 0
	if format == "jpeg" {
		if orient := jpegOrientation(data); orient != orientationTopLeft {
			gray, rotation = applyOrientation(gray, orient)
		}
	}

	gray = medianDenoise(gray)

	bounds := gray.Bounds()
	return &NormalizedImage{
		Raster:       gray,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		ColorMode:    "gray",
		RotationDeg:  rotation,
		Denoised:     true,
		SourceFormat: format,
	}, nil
}

// canonicalContentType strips parameters from the declared type and
// falls back to sniffing when the client declared nothing useful.
func canonicalContentType(data []byte, declared string) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
		if i := strings.Index(ct, ";"); i >= 0 {
			ct = strings.TrimSpace(ct[:i])
		}
	}
	return ct
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		// Re-anchor at the origin so downstream coordinates start at (0,0).
		if g.Bounds().Min == (image.Point{}) {
			return g
		}
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// medianDenoise applies a deterministic 3x3 median filter. Border
// pixels are copied unchanged.
func medianDenoise(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	copy(dst.Pix, src.Pix)
	if w < 3 || h < 3 {
		return dst
	}

	var window [9]uint8
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := 0
			for dy := -1; dy <= 1; dy++ {
				row := (y+dy)*src.Stride + x - 1
				window[i] = src.Pix[row]
				window[i+1] = src.Pix[row+1]
				window[i+2] = src.Pix[row+2]
				i += 3
			}
			dst.Pix[y*dst.Stride+x] = median9(window)
		}
	}
	return dst
}

// median9 selects the median of nine values via insertion sort.
func median9(v [9]uint8) uint8 {
	for i := 1; i < 9; i++ {
		for j := i; j > 0 && v[j-1] > v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
	return v[4]
}

// Downscale returns a copy scaled by factor in both dimensions,
// preserving orientation and denoise metadata. Used for the
// reduced-resolution recognition retry.
func (ni *NormalizedImage) Downscale(factor float64) *NormalizedImage {
	if factor <= 0 || factor >= 1 {
		return ni
	}
	w := int(float64(ni.Width) * factor)
	h := int(float64(ni.Height) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), ni.Raster, ni.Raster.Bounds(), xdraw.Src, nil)
	return &NormalizedImage{
		Raster:       dst,
		Width:        w,
		Height:       h,
		ColorMode:    ni.ColorMode,
		RotationDeg:  ni.RotationDeg,
		Denoised:     ni.Denoised,
		SourceFormat: ni.SourceFormat,
	}
}
