package script

import (
	"math"
	"strings"
	"testing"
)

func TestUnits(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"자, 가보겠습니다", 7},
		{"hello world", 3},
		{"rhythm", 1},
		{"100대 빵!", 5},
		{"ひらがなカタカナ", 8},
		{"  ...  ", 0},
	}
	for _, tt := range tests {
		if got := Units(tt.text); got != tt.want {
			t.Errorf("Units(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestEstimateDeterministic(t *testing.T) {
	e := DefaultEstimator()
	text := "여러분 안녕하십니까, 오늘 함께 보실 영상은요!"
	first := e.Estimate(text)
	for i := 0; i < 5; i++ {
		if got := e.Estimate(text); got != first {
			t.Fatalf("run %d: %v != %v", i, got, first)
		}
	}
}

func TestEstimateFactors(t *testing.T) {
	e := DefaultEstimator()
	plain := strings.Repeat("가", 30)
	if got := e.Estimate(plain); got != 6.0 {
		t.Errorf("30 syllables = %v, want 6.0", got)
	}
	if got, want := e.Estimate(plain+"!"), 6.0*1.10; math.Abs(got-want) > 1e-9 {
		t.Errorf("emphasis = %v, want %v", got, want)
	}
	withCommas := strings.Repeat("가", 15) + "," + strings.Repeat("가", 15) + "，"
	if got, want := e.Estimate(withCommas), 6.0*1.05*1.05; math.Abs(got-want) > 1e-9 {
		t.Errorf("commas = %v, want %v", got, want)
	}
}

func TestEstimateFloor(t *testing.T) {
	e := DefaultEstimator()
	for _, s := range []string{"", "네", "!!"} {
		if got := e.Estimate(s); got != 1.0 {
			t.Errorf("Estimate(%q) = %v, want floor 1.0", s, got)
		}
	}
}

func TestEstimateZeroFactorsUseDefaults(t *testing.T) {
	var e Estimator
	text := strings.Repeat("가", 10) + ", 정말!"
	want := DefaultEstimator()
	want.FloorSec = 0
	if got := e.Estimate(text); got <= 0 || math.Abs(got-want.Estimate(text)) > 1e-9 {
		t.Errorf("zero-valued estimator = %v, want %v", got, want.Estimate(text))
	}
}
