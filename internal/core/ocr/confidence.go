package ocr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Confidence scores OCR output quality on 0..100. Empty text scores 0.
//
//	-30 when shorter than 50 characters
//	-20 when more than 30% of characters are neither word nor space characters
//	-25 when more than half of the tokens are at most 2 characters (garbling)
func Confidence(text string) float64 {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}

	score := 100.0
	if n < 50 {
		score -= 30
	}

	nonWord := 0
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && !unicode.IsSpace(r) {
			nonWord++
		}
	}
	if float64(nonWord)/float64(n) > 0.30 {
		score -= 20
	}

	tokens := strings.Fields(text)
	short := 0
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) <= 2 {
			short++
		}
	}
	if len(tokens) > 0 && short*2 > len(tokens) {
		score -= 25
	}

	if score < 0 {
		score = 0
	}
	return score
}
