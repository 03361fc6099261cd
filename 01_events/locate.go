package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"crash-review-pipeline/types"
)

// DefaultVocabulary marks the moment of contact in English and Korean event logs.
var DefaultVocabulary = []string{
	"impact", "collision", "collide", "crash", "crossing", "intrusion",
	"contact", "hit", "strike", "rear-end",
	"충돌", "추돌", "접촉", "충격", "침범", "횡단", "부딪",
}

var ErrBadTimecode = errors.New("malformed timecode")

// Locate returns the start offset of the first event whose description
// mentions a vocabulary keyword. Events with unreadable timecodes are skipped.
func Locate(evts []types.Event, vocabulary []string) (float64, bool) {
	if len(vocabulary) == 0 {
		vocabulary = DefaultVocabulary
	}
	keys := make([]string, 0, len(vocabulary))
	for _, v := range vocabulary {
		if k := Fold(v); k != "" {
			keys = append(keys, k)
		}
	}
	for _, ev := range evts {
		desc := Fold(ev.Description)
		if !containsAny(desc, keys) {
			continue
		}
		sec, err := ParseTimecode(ev.Start)
		if err != nil {
			continue
		}
		return sec, true
	}
	return 0, false
}

// Match is Locate plus the event that matched
func Match(evts []types.Event, vocabulary []string) (types.Event, float64, bool) {
	for i := range evts {
		if off, ok := Locate(evts[i:i+1], vocabulary); ok {
			return evts[i], off, true
		}
	}
	return types.Event{}, 0, false
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if containsKeyword(s, k) {
			return true
		}
	}
	return false
}

// containsKeyword requires Latin keywords to start a word ("hits" matches
// "hit", "white" does not). Other scripts match anywhere.
func containsKeyword(s, k string) bool {
	if !isLatin(k) {
		return strings.Contains(s, k)
	}
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], k)
		if i < 0 {
			return false
		}
		i += from
		if i == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(s[:i])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		from = i + len(k)
	}
	return false
}

func isLatin(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// Fold lowercases s and strips combining marks, so "Collisión" matches "collision".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// ParseTimecode accepts "SS", "MM:SS" and "HH:MM:SS"; the last field may be fractional.
func ParseTimecode(tc string) (float64, error) {
	tc = strings.TrimSpace(tc)
	if tc == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadTimecode)
	}
	parts := strings.Split(tc, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadTimecode, tc)
	}
	var total float64
	for i, p := range parts {
		last := i == len(parts)-1
		var v float64
		if last {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrBadTimecode, tc)
			}
			v = f
		} else {
			n, err := strconv.Atoi(p)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrBadTimecode, tc)
			}
			v = float64(n)
		}
		if v < 0 {
			return 0, fmt.Errorf("%w: negative field in %q", ErrBadTimecode, tc)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("%w: field out of range in %q", ErrBadTimecode, tc)
		}
		total = total*60 + v
	}
	return total, nil
}

// FormatTimecode renders seconds as MM:SS
func FormatTimecode(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	s := int(sec + 0.5)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
