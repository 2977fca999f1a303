package moderation

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/hustlebot/internal/utils/text"
)

type (
	KeywordCategory struct {
		Name     string   `yaml:"name"`
		Triggers []string `yaml:"triggers"`
	}

	// KeywordTable is evaluated in order, the first matching category wins.
	KeywordTable []KeywordCategory

	KeywordVerdict struct {
		IsSpam   bool
		Category string
		Trigger  string
	}

	keywordFile struct {
		Categories KeywordTable `yaml:"categories"`
		Patterns   []string     `yaml:"patterns"`
	}
)

var DefaultKeywordTable = KeywordTable{
	{Name: "crypto_scam", Triggers: []string{
		"double your bitcoin", "double your crypto", "guaranteed profit", "crypto giveaway",
		"send btc", "send usdt", "airdrop claim", "investment opportunity with guaranteed",
	}},
	{Name: "phishing", Triggers: []string{
		"verify your account", "your account will be suspended", "claim your prize",
		"free nitro", "login to claim", "confirm your wallet",
	}},
	{Name: "adult", Triggers: []string{
		"onlyfans.com", "hot singles", "xxx videos", "18+ content",
	}},
	{Name: "financial_scam", Triggers: []string{
		"earn $500 a day", "earn 500$ daily", "make money fast", "passive income guaranteed",
		"100% returns", "forex signals group",
	}},
	{Name: "promotion", Triggers: []string{
		"join my channel", "subscribe to my channel", "dm me for promo", "buy followers",
		"cheap followers",
	}},
}

var DefaultSuspiciousPatterns = []string{
	`[a-zA-Z0-9]{20,}`,
	`(?i)https?://\S+|www\.\S+`,
	`@\w{5,}`,
	`\d{10,}`,
}

// SpamClassifier is a pure function of its input and static tables.
type SpamClassifier struct {
	table    KeywordTable
	patterns []*regexp.Regexp
}

func NewSpamClassifier(table KeywordTable, patterns []string) (*SpamClassifier, error) {
	if table == nil {
		table = DefaultKeywordTable
	}
	if patterns == nil {
		patterns = DefaultSuspiciousPatterns
	}

	c := &SpamClassifier{table: make(KeywordTable, 0, len(table))}
	for _, category := range table {
		lowered := KeywordCategory{Name: category.Name, Triggers: make([]string, 0, len(category.Triggers))}
		for _, trigger := range category.Triggers {
			trigger = strings.ToLower(strings.TrimSpace(trigger))
			if trigger == "" {
				continue
			}
			lowered.Triggers = append(lowered.Triggers, trigger)
		}
		c.table = append(c.table, lowered)
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// LoadSpamClassifier builds a classifier from a YAML file, empty path means defaults.
// Sections missing from the file fall back to the defaults.
func LoadSpamClassifier(path string) (*SpamClassifier, error) {
	if path == "" {
		return NewSpamClassifier(nil, nil)
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand keywords path: %w", err)
	}
	raw, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}
	var f keywordFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("unmarshal keywords file: %w", err)
	}
	return NewSpamClassifier(f.Categories, f.Patterns)
}

// Classify matches the lowercased content against the keyword table. Content mixing in
// lookalike letters from other scripts is matched a second time in its folded form.
func (c *SpamClassifier) Classify(content string) KeywordVerdict {
	lowered := strings.ToLower(content)
	if strings.TrimSpace(lowered) == "" {
		return KeywordVerdict{}
	}
	if v := c.match(lowered); v.IsSpam {
		return v
	}
	if text.HasHomoglyphs(lowered) {
		return c.match(text.FoldHomoglyphs(lowered))
	}
	return KeywordVerdict{}
}

func (c *SpamClassifier) match(lowered string) KeywordVerdict {
	for _, category := range c.table {
		for _, trigger := range category.Triggers {
			if strings.Contains(lowered, trigger) {
				return KeywordVerdict{IsSpam: true, Category: category.Name, Trigger: trigger}
			}
		}
	}
	return KeywordVerdict{}
}

func (c *SpamClassifier) IsSuspicious(content string) bool {
	_, ok := c.MatchPattern(content)
	return ok
}

// MatchPattern returns the first matching suspicious pattern.
func (c *SpamClassifier) MatchPattern(content string) (string, bool) {
	for _, re := range c.patterns {
		if re.MatchString(content) {
			return re.String(), true
		}
	}
	return "", false
}
