package llm

import (
	"errors"
	"testing"
)

func TestCleanJSON(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```":          `{"a":1}`,
		"here you go:\n```json\n{}\n``` ok": `{}`,
		"```\n{\"b\":2}\n```":              `{"b":2}`,
		`  {"c":3}  `:                      `{"c":3}`,
	}
	for in, want := range tests {
		if got := CleanJSON(in); got != want {
			t.Errorf("CleanJSON(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	if got := ExtractFirstJSONObject(`Sure! {"x": {"y": 1}} hope that helps`); got != `{"x": {"y": 1}}` {
		t.Errorf("got %q", got)
	}
	if got := ExtractFirstJSONObject("no braces"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{Model: "m"}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
	c, err := New(Config{APIKey: "k", Model: "gemini-2.5-pro"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Model() != "gemini-2.5-pro" {
		t.Errorf("model = %q", c.Model())
	}
	var _ Completer = c
}
