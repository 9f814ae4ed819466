// Package pdftext extracts positioned text from digital PDFs that
// carry a text layer, bypassing OCR entirely for such uploads.
package pdftext

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/ledongthuc/pdf"

	apperrors "go-ocr-extractor/internal/errors"
	"go-ocr-extractor/pkg/models"
)

const defaultPageHeight = 792 // US Letter points, used when MediaBox is absent

// Extractor pulls text spans out of a PDF byte blob.
type Extractor interface {
	Extract(data []byte) ([]models.RecognizedSpan, error)
}

type pdfExtractor struct{}

func New() Extractor {
	return &pdfExtractor{}
}

// Extract returns one span per text line across all pages, ordered by
// reading order with page offsets applied so bounding boxes never
// collide between pages. Spans from a text layer carry confidence 1.
func (e *pdfExtractor) Extract(data []byte) (spans []models.RecognizedSpan, err error) {
	// The underlying parser panics on malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			spans = nil
			err = apperrors.NewDecodeError("malformed PDF document", fmt.Errorf("pdf parser panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.NewDecodeError("cannot parse PDF document", err)
	}

	var verticalOffset float64
	order := 0
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageHeight := mediaBoxHeight(page)
		lines := groupLines(page.Content().Text)
		for _, line := range lines {
			span := line.toSpan(pageHeight, verticalOffset)
			span.Order = order
			order++
			spans = append(spans, span)
		}
		verticalOffset += pageHeight
	}
	return spans, nil
}

// mediaBoxHeight walks the page tree for an inherited MediaBox.
func mediaBoxHeight(page pdf.Page) float64 {
	v := page.V
	for i := 0; i < 32 && !v.IsNull(); i++ {
		box := v.Key("MediaBox")
		if !box.IsNull() && box.Len() == 4 {
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if h > 0 {
				return h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageHeight
}

// textLine is a group of PDF text items sharing a baseline.
type textLine struct {
	y        float64
	fontSize float64
	items    []pdf.Text
}

// groupLines buckets text items by baseline (descending Y, PDF origin
// is bottom-left) and orders items within a line by X.
func groupLines(texts []pdf.Text) []textLine {
	if len(texts) == 0 {
		return nil
	}
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []textLine
	for _, t := range sorted {
		if t.S == "" {
			continue
		}
		tolerance := math.Max(t.FontSize/2, 1)
		if n := len(lines); n > 0 && math.Abs(lines[n-1].y-t.Y) <= tolerance {
			line := &lines[n-1]
			line.items = append(line.items, t)
			if t.FontSize > line.fontSize {
				line.fontSize = t.FontSize
			}
			continue
		}
		lines = append(lines, textLine{y: t.Y, fontSize: t.FontSize, items: []pdf.Text{t}})
	}
	return lines
}

// toSpan flattens a line into a single span in top-left page
// coordinates. A space is inserted between items separated by more
// than a third of the font size.
func (l textLine) toSpan(pageHeight, verticalOffset float64) models.RecognizedSpan {
	var buf bytes.Buffer
	minX := l.items[0].X
	maxX := l.items[0].X + l.items[0].W
	prevEnd := math.Inf(-1)
	for _, item := range l.items {
		if buf.Len() > 0 && item.X-prevEnd > l.fontSize/3 {
			buf.WriteByte(' ')
		}
		buf.WriteString(item.S)
		prevEnd = item.X + item.W
		if item.X < minX {
			minX = item.X
		}
		if end := item.X + item.W; end > maxX {
			maxX = end
		}
	}

	height := l.fontSize
	if height <= 0 {
		height = 1
	}
	topY := pageHeight - l.y - height
	if topY < 0 {
		topY = 0
	}
	return models.RecognizedSpan{
		Text:       buf.String(),
		Confidence: 1,
		BBox: models.BoundingBox{
			X: int(math.Round(minX)),
			Y: int(math.Round(topY + verticalOffset)),
			W: int(math.Ceil(maxX - minX)),
			H: int(math.Ceil(height)),
		},
	}
}
