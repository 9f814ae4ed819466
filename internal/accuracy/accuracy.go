// Package accuracy scores extracted text against caller-supplied
// expected text using word and character error rates.
package accuracy

import (
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"

	"go-ocr-extractor/pkg/models"
)

// Score compares extracted text with the expected text. Returns nil
// when there is nothing to compare against.
func Score(expected, extracted string) *models.AccuracyReport {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return nil
	}
	extracted = strings.TrimSpace(extracted)

	refWords := strings.Fields(expected)
	hypWords := strings.Fields(extracted)

	charDist := levenshtein.Distance(expected, extracted)
	refRunes := len([]rune(expected))

	wordErrRate, _ := wer.WER(refWords, hypWords)
	report := &models.AccuracyReport{
		WER: wordErrRate,
		CER: float64(charDist) / float64(refRunes),
	}
	report.MatchScore = matchScore(charDist, refRunes, len([]rune(extracted)))
	return report
}

// matchScore maps edit distance to a [0,1] similarity over the longer
// of the two strings.
func matchScore(dist, refLen, hypLen int) float64 {
	longest := refLen
	if hypLen > longest {
		longest = hypLen
	}
	if longest == 0 {
		return 1
	}
	score := 1 - float64(dist)/float64(longest)
	if score < 0 {
		return 0
	}
	return score
}
