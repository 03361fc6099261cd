package events

import (
	"errors"
	"testing"

	"crash-review-pipeline/types"
)

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"00:05", 5, false},
		{"01:30", 90, false},
		{"01:02:03", 3723, false},
		{"00:04.5", 4.5, false},
		{"7", 7, false},
		{"", 0, true},
		{"aa:bb", 0, true},
		{"00:75", 0, true},
		{"1:2:3:4", 0, true},
		{"-1:00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimecode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrBadTimecode) {
				t.Errorf("ParseTimecode(%q) err = %v, want ErrBadTimecode", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseTimecode(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestLocateFirstCollision(t *testing.T) {
	evts := []types.Event{
		{Start: "00:00", End: "00:02", Description: "Dashcam vehicle departs"},
		{Start: "00:05", End: "00:06", Description: "Collision with crossing bicycle"},
		{Start: "00:09", End: "00:10", Description: "Second impact"},
	}
	off, ok := Locate(evts, nil)
	if !ok || off != 5.0 {
		t.Fatalf("Locate = %v, %v; want 5.0, true", off, ok)
	}
}

func TestLocateSkipsMalformedTimecode(t *testing.T) {
	evts := []types.Event{
		{Start: "", End: "", Description: "crash but no time"},
		{Start: "00:12", End: "00:13", Description: "전방 차량과 추돌합니다."},
	}
	off, ok := Locate(evts, nil)
	if !ok || off != 12 {
		t.Fatalf("Locate = %v, %v; want 12, true", off, ok)
	}
}

func TestLocateCaseAndDiacritics(t *testing.T) {
	evts := []types.Event{{Start: "00:03", Description: "COLLISIÓN at junction"}}
	if _, ok := Locate(evts, []string{"collision"}); !ok {
		t.Fatal("expected folded match")
	}
}

func TestLocateNoMatch(t *testing.T) {
	evts := []types.Event{{Start: "00:01", Description: "white vehicle turns right"}}
	if _, ok := Locate(evts, nil); ok {
		t.Fatal("expected no match")
	}
	if _, ok := Locate(nil, nil); ok {
		t.Fatal("expected no match on empty list")
	}
}

func TestMatchReturnsEvent(t *testing.T) {
	evts := []types.Event{
		{Start: "00:01", Description: "departs"},
		{Start: "00:04", Description: "bicycle contact"},
	}
	ev, off, ok := Match(evts, nil)
	if !ok || off != 4 || ev.Description != "bicycle contact" {
		t.Fatalf("Match = %+v, %v, %v", ev, off, ok)
	}
}

func TestDecodeBothShapes(t *testing.T) {
	wrapped := []byte(`{"events":[{"start":"00:01","end":"00:02","description":"a"}]}`)
	bare := []byte(` [{"start":"00:01","end":"00:02","description":"a"}]`)
	for _, in := range [][]byte{wrapped, bare} {
		evts, err := Decode(in)
		if err != nil || len(evts) != 1 || evts[0].Start != "00:01" {
			t.Errorf("Decode(%s) = %+v, %v", in, evts, err)
		}
	}
}

func TestFormatTimecode(t *testing.T) {
	if got := FormatTimecode(65.2); got != "01:05" {
		t.Errorf("FormatTimecode = %q", got)
	}
}
