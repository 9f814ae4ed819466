package ocr

import (
	"sort"

	"go-ocr-extractor/pkg/models"
)

// sortReadingOrder orders spans top-to-bottom, then left-to-right
// within a line, ties broken by ascending x, and assigns contiguous
// zero-based order indices. Spans whose vertical centers fall inside
// the running line band belong to the same line.
func sortReadingOrder(spans []models.RecognizedSpan) []models.RecognizedSpan {
	if len(spans) == 0 {
		return spans
	}

	sorted := make([]models.RecognizedSpan, len(spans))
	copy(sorted, spans)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BBox.Y != sorted[j].BBox.Y {
			return sorted[i].BBox.Y < sorted[j].BBox.Y
		}
		return sorted[i].BBox.X < sorted[j].BBox.X
	})

	// Bucket spans into lines by vertical-center containment, then
	// order each line horizontally.
	lines := make([]int, len(sorted))
	line := 0
	lineBottom := sorted[0].BBox.Y + sorted[0].BBox.H
	for i, s := range sorted {
		center := s.BBox.Y + s.BBox.H/2
		if center > lineBottom {
			line++
			lineBottom = s.BBox.Y + s.BBox.H
		} else if bottom := s.BBox.Y + s.BBox.H; bottom > lineBottom {
			lineBottom = bottom
		}
		lines[i] = line
	}

	type keyed struct {
		span models.RecognizedSpan
		line int
	}
	ordered := make([]keyed, len(sorted))
	for i, s := range sorted {
		ordered[i] = keyed{span: s, line: lines[i]}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].line != ordered[j].line {
			return ordered[i].line < ordered[j].line
		}
		if ordered[i].span.BBox.X != ordered[j].span.BBox.X {
			return ordered[i].span.BBox.X < ordered[j].span.BBox.X
		}
		return ordered[i].span.BBox.Y < ordered[j].span.BBox.Y
	})

	for i := range ordered {
		ordered[i].span.Order = i
		sorted[i] = ordered[i].span
	}
	return sorted
}
