package normalizer

import (
	"encoding/binary"
	"image"
)

// EXIF orientation values (tag 0x0112).
const (
	orientationTopLeft     = 1 // no transform
	orientationTopRight    = 2 // mirror horizontal
	orientationBottomRight = 3 // rotate 180
	orientationBottomLeft  = 4 // mirror vertical
	orientationLeftTop     = 5 // mirror horizontal, rotate 270 CW
	orientationRightTop    = 6 // rotate 90 CW
	orientationRightBottom = 7 // mirror horizontal, rotate 90 CW
	orientationLeftBottom  = 8 // rotate 270 CW
)

// jpegOrientation scans JPEG segment markers for an APP1/Exif block and
// returns the orientation tag, or 1 when absent or malformed.
func jpegOrientation(data []byte) int {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return orientationTopLeft
	}
	offset := 2
	for offset+4 <= len(data) {
		if data[offset] != 0xFF {
			return orientationTopLeft
		}
		marker := data[offset+1]
		// Start-of-scan: no APP1 follows image data.
		if marker == 0xDA {
			return orientationTopLeft
		}
		segLen := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		if segLen < 2 || offset+2+segLen > len(data) {
			return orientationTopLeft
		}
		if marker == 0xE1 {
			seg := data[offset+4 : offset+2+segLen]
			if o := exifOrientation(seg); o != 0 {
				return o
			}
		}
		offset += 2 + segLen
	}
	return orientationTopLeft
}

// exifOrientation parses a TIFF structure inside an APP1 payload and
// extracts tag 0x0112 from IFD0. Returns 0 when not found.
func exifOrientation(seg []byte) int {
	if len(seg) < 14 || string(seg[:6]) != "Exif\x00\x00" {
		return 0
	}
	tiff := seg[6:]

	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0
	}
	if order.Uint16(tiff[2:4]) != 42 {
		return 0
	}

	ifdOffset := int(order.Uint32(tiff[4:8]))
	if ifdOffset < 8 || ifdOffset+2 > len(tiff) {
		return 0
	}
	count := int(order.Uint16(tiff[ifdOffset : ifdOffset+2]))
	for i := 0; i < count; i++ {
		entry := ifdOffset + 2 + i*12
		if entry+12 > len(tiff) {
			return 0
		}
		tag := order.Uint16(tiff[entry : entry+2])
		if tag != 0x0112 {
			continue
		}
		typ := order.Uint16(tiff[entry+2 : entry+4])
		if typ != 3 { // SHORT
			return 0
		}
		val := int(order.Uint16(tiff[entry+8 : entry+10]))
		if val >= orientationTopLeft && val <= orientationLeftBottom {
			return val
		}
		return 0
	}
	return 0
}

// applyOrientation maps the raster back to its upright position and
// reports the rotation component in degrees clockwise.
func applyOrientation(src *image.Gray, orientation int) (*image.Gray, int) {
	switch orientation {
	case orientationTopRight:
		return flipHorizontal(src), 0
	case orientationBottomRight:
		return rotate180(src), 180
	case orientationBottomLeft:
		return flipVertical(src), 0
	case orientationLeftTop:
		return flipHorizontal(rotate270(src)), 270
	case orientationRightTop:
		return rotate90(src), 90
	case orientationRightBottom:
		return flipHorizontal(rotate90(src)), 90
	case orientationLeftBottom:
		return rotate270(src), 270
	default:
		return src, 0
	}
}

func rotate90(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetGray(h-1-y, x, src.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotate180(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetGray(w-1-x, h-1-y, src.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotate270(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetGray(y, w-1-x, src.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func flipHorizontal(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetGray(w-1-x, y, src.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func flipVertical(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetGray(x, h-1-y, src.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
