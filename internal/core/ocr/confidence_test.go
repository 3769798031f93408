package ocr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidence(t *testing.T) {
	wellFormed := strings.Repeat("Shipment of machinery parts from Hamburg ", 13)[:500]

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"well formed", wellFormed, 100},
		{"short", "VIN 1HGCM82633A123456 Antwerp", 70},
		{"mostly symbols", "a!@#$%^&*(", 50},
		{"garbled tokens", strings.Repeat("ab c d ef gh ", 10), 75},
		{"everything wrong", "a ! @ # b", 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Confidence(tt.text))
		})
	}
}

func TestConfidence_Monotonicity(t *testing.T) {
	noisy := "a!@#$%^&*("
	clean := strings.Repeat("Please quote RoRo shipping for a sedan ", 20)[:500]
	assert.Less(t, Confidence(noisy), Confidence(clean))
}

func TestClean(t *testing.T) {
	in := "Line one\t\twith   tabs\r\n\r\n\r\n\r\n_____\nLine ¦ two ||||| end\x00\n"
	assert.Equal(t, "Line one with tabs\n\nLine two end", Clean(in))
}
