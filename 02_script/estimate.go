package script

import (
	"math"
	"strings"
	"unicode"
)

const (
	DefaultUnitsPerSecond = 5.0
	DefaultEmphasisFactor = 1.10
	DefaultCommaFactor    = 1.05
	DefaultFloorSec       = 1.0
)

// Estimator approximates spoken length from text alone. It never touches the
// network or disk; the measured speech duration replaces it later.
type Estimator struct {
	UnitsPerSecond float64
	EmphasisFactor float64
	CommaFactor    float64
	FloorSec       float64
}

// DefaultEstimator returns an Estimator with the default rate, factors and floor
func DefaultEstimator() Estimator {
	return Estimator{
		UnitsPerSecond: DefaultUnitsPerSecond,
		EmphasisFactor: DefaultEmphasisFactor,
		CommaFactor:    DefaultCommaFactor,
		FloorSec:       DefaultFloorSec,
	}
}

// Estimate returns the expected spoken seconds for text. Rates and factors
// that are not positive fall back to the defaults.
func (e Estimator) Estimate(text string) float64 {
	rate := e.UnitsPerSecond
	if rate <= 0 {
		rate = DefaultUnitsPerSecond
	}
	emphasis := e.EmphasisFactor
	if emphasis <= 0 {
		emphasis = DefaultEmphasisFactor
	}
	comma := e.CommaFactor
	if comma <= 0 {
		comma = DefaultCommaFactor
	}
	sec := float64(Units(text)) / rate
	if strings.ContainsAny(text, "!?！？") {
		sec *= emphasis
	}
	if commas := strings.Count(text, ",") + strings.Count(text, "，"); commas > 0 {
		sec *= math.Pow(comma, float64(commas))
	}
	if sec < e.FloorSec {
		sec = e.FloorSec
	}
	return sec
}

// Units counts phonetic units: one per Hangul syllable, kana or ideograph,
// one per digit, and the vowel groups of each Latin word (at least one).
func Units(text string) int {
	units := 0
	var word []rune
	flush := func() {
		if len(word) > 0 {
			units += vowelGroups(word)
			word = word[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Hangul, r), unicode.Is(unicode.Hiragana, r),
			unicode.Is(unicode.Katakana, r), unicode.Is(unicode.Han, r):
			flush()
			units++
		case unicode.IsDigit(r):
			flush()
			units++
		case unicode.IsLetter(r):
			word = append(word, unicode.ToLower(r))
		case r == '\'' && len(word) > 0:
			// contractions stay one word
		default:
			flush()
		}
	}
	flush()
	return units
}

func vowelGroups(word []rune) int {
	groups := 0
	inVowel := false
	for _, r := range word {
		v := strings.ContainsRune("aeiouyàáâäèéêëìíîïòóôöùúûü", r)
		if v && !inVowel {
			groups++
		}
		inVowel = v
	}
	if groups == 0 {
		return 1
	}
	return groups
}
