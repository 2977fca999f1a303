package moderation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassifyKeywords(t *testing.T) {
	t.Parallel()

	c, err := NewSpamClassifier(nil, nil)
	if err != nil {
		t.Fatalf("new spam classifier: %v", err)
	}

	tests := []struct {
		name     string
		text     string
		spam     bool
		category string
	}{
		{name: "exact", text: "guaranteed profit", spam: true, category: "crypto_scam"},
		{name: "case insensitive", text: "Get GUARANTEED PROFIT today", spam: true, category: "crypto_scam"},
		{name: "phishing", text: "Please verify your account now", spam: true, category: "phishing"},
		{name: "near miss", text: "guaranteed xprofit", spam: false},
		{name: "cyrillic lookalikes", text: "Plеase vеrify yоur ассоunt", spam: true, category: "phishing"},
		{name: "armenian lookalikes", text: "send bսy followers", spam: true, category: "promotion"},
		{name: "russian text", text: "сделал тренировку сегодня", spam: false},
		{name: "clean", text: "did my workout today", spam: false},
		{name: "empty", text: "", spam: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := c.Classify(tt.text)
			if got.IsSpam != tt.spam || got.Category != tt.category {
				t.Fatalf("Classify(%q) = %+v, want spam=%v category=%q", tt.text, got, tt.spam, tt.category)
			}
		})
	}
}

func TestClassifyFirstCategoryWins(t *testing.T) {
	t.Parallel()

	c, err := NewSpamClassifier(KeywordTable{
		{Name: "first", Triggers: []string{"promo"}},
		{Name: "second", Triggers: []string{"promo code"}},
	}, []string{})
	if err != nil {
		t.Fatalf("new spam classifier: %v", err)
	}
	got := c.Classify("use my PROMO CODE")
	if got.Category != "first" || got.Trigger != "promo" {
		t.Fatalf("expected first category to win, got %+v", got)
	}
	if c.IsSuspicious("https://example.com") {
		t.Fatalf("empty pattern set must never match")
	}
}

func TestSuspiciousPatterns(t *testing.T) {
	t.Parallel()

	c, err := NewSpamClassifier(nil, nil)
	if err != nil {
		t.Fatalf("new spam classifier: %v", err)
	}
	tests := []struct {
		text string
		want bool
	}{
		{"check https://example.com/x", true},
		{"visit www.example.com", true},
		{"ask @someone", true},
		{"ask @abc", false},
		{"call 1234567890", true},
		{"call 123456789", false},
		{"token abcdefghijABCDEFGHIJ", true},
		{"just a normal sentence", false},
	}
	for _, tt := range tests {
		if got := c.IsSuspicious(tt.text); got != tt.want {
			t.Fatalf("IsSuspicious(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestLoadSpamClassifierFromYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keywords.yml")
	content := []byte(`
categories:
  - name: custom
    triggers:
      - "Magic Beans"
patterns:
  - "beans\\d+"
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write keywords file: %v", err)
	}

	c, err := LoadSpamClassifier(path)
	if err != nil {
		t.Fatalf("load spam classifier: %v", err)
	}
	if got := c.Classify("selling magic beans"); !got.IsSpam || got.Category != "custom" {
		t.Fatalf("custom category not applied: %+v", got)
	}
	if got := c.Classify("guaranteed profit"); got.IsSpam {
		t.Fatalf("file table replaces defaults: %+v", got)
	}
	if pattern, ok := c.MatchPattern("beans42"); !ok || pattern != `beans\d+` {
		t.Fatalf("custom pattern not applied: %q %v", pattern, ok)
	}

	if _, err := LoadSpamClassifier(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNewSpamClassifierRejectsBadPattern(t *testing.T) {
	t.Parallel()

	if _, err := NewSpamClassifier(nil, []string{"("}); err == nil {
		t.Fatalf("expected compile error")
	}
}
