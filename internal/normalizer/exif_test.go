package normalizer

import (
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildAPP1 assembles an Exif APP1 payload with a single IFD0 entry
// carrying the orientation tag.
func buildAPP1(orientation uint16, littleEndian bool) []byte {
	var order binary.ByteOrder = binary.BigEndian
	mark := "MM"
	if littleEndian {
		order = binary.LittleEndian
		mark = "II"
	}

	tiff := make([]byte, 8+2+12+4)
	copy(tiff[0:2], mark)
	order.PutUint16(tiff[2:4], 42)
	order.PutUint32(tiff[4:8], 8) // IFD0 offset
	order.PutUint16(tiff[8:10], 1)
	order.PutUint16(tiff[10:12], 0x0112) // orientation tag
	order.PutUint16(tiff[12:14], 3)      // SHORT
	order.PutUint32(tiff[14:18], 1)
	order.PutUint16(tiff[18:20], orientation)

	return append([]byte("Exif\x00\x00"), tiff...)
}

// buildJPEG wraps an APP1 payload in minimal JPEG framing.
func buildJPEG(app1 []byte) []byte {
	data := []byte{0xFF, 0xD8} // SOI
	if app1 != nil {
		seg := make([]byte, 4+len(app1))
		seg[0] = 0xFF
		seg[1] = 0xE1
		binary.BigEndian.PutUint16(seg[2:4], uint16(len(app1)+2))
		copy(seg[4:], app1)
		data = append(data, seg...)
	}
	data = append(data, 0xFF, 0xDA, 0x00, 0x02) // SOS
	return data
}

func TestJPEGOrientation(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		expected     int
	}{
		{"big endian rotate 90", buildJPEG(buildAPP1(6, false)), 6},
		{"little endian rotate 180", buildJPEG(buildAPP1(3, true)), 3},
		{"orientation 8", buildJPEG(buildAPP1(8, false)), 8},
		{"no app1 segment", buildJPEG(nil), 1},
		{"not a jpeg", []byte("plain bytes"), 1},
		{"truncated", []byte{0xFF, 0xD8, 0xFF}, 1},
		{"out of range value", buildJPEG(buildAPP1(9, false)), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, jpegOrientation(tt.data))
		})
	}
}

func TestExifOrientation_RejectsBadTIFF(t *testing.T) {
	assert.Equal(t, 0, exifOrientation([]byte("Exif\x00\x00XX")))
	assert.Equal(t, 0, exifOrientation([]byte("not exif at all")))
}

func quad(tl, tr, bl, br uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: tl})
	img.SetGray(1, 0, color.Gray{Y: tr})
	img.SetGray(0, 1, color.Gray{Y: bl})
	img.SetGray(1, 1, color.Gray{Y: br})
	return img
}

func corners(img *image.Gray) [4]uint8 {
	return [4]uint8{
		img.GrayAt(0, 0).Y, img.GrayAt(1, 0).Y,
		img.GrayAt(0, 1).Y, img.GrayAt(1, 1).Y,
	}
}

func TestApplyOrientation(t *testing.T) {
	src := quad(10, 20, 30, 40)

	tests := []struct {
		name        string
		orientation int
		expected    [4]uint8
		rotation    int
	}{
		{"identity", orientationTopLeft, [4]uint8{10, 20, 30, 40}, 0},
		{"mirror horizontal", orientationTopRight, [4]uint8{20, 10, 40, 30}, 0},
		{"rotate 180", orientationBottomRight, [4]uint8{40, 30, 20, 10}, 180},
		{"mirror vertical", orientationBottomLeft, [4]uint8{30, 40, 10, 20}, 0},
		{"rotate 90 cw", orientationRightTop, [4]uint8{30, 10, 40, 20}, 90},
		{"rotate 270 cw", orientationLeftBottom, [4]uint8{20, 40, 10, 30}, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, rotation := applyOrientation(src, tt.orientation)
			assert.Equal(t, tt.expected, corners(out))
			assert.Equal(t, tt.rotation, rotation)
		})
	}
}

func TestRotate90_SwapsDimensions(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 2))
	out := rotate90(img)
	assert.Equal(t, 2, out.Bounds().Dx())
	assert.Equal(t, 4, out.Bounds().Dy())
}
