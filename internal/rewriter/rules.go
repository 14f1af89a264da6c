package rewriter

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Topic maps a label to the keywords that select it. Keywords are matched as
// lowercase substrings of the last exchange.
type Topic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Rules is the data driving the rewriter. Topics and cues are checked in
// slice order and the first match wins.
type Rules struct {
	// ShortQueryTokens is the token count at or below which a query is
	// treated as vague unless it contains a self-contained phrase.
	ShortQueryTokens     int      `yaml:"short_query_tokens"`
	SelfContainedPhrases []string `yaml:"self_contained_phrases"`
	ContextCues          []string `yaml:"context_cues"`
	Topics               []Topic  `yaml:"topics"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		ShortQueryTokens: 3,
		SelfContainedPhrases: []string{
			"help", "hello", "hi", "thanks", "bye", "what do you do", "who are you",
		},
		ContextCues: []string{
			"it", "that", "this", "they", "them", "those", "these",
			"the same", "what about", "how about", "and if", "what if", "but what",
			"also", "too", "instead", "another",
		},
		Topics: []Topic{
			{Name: "returns and refunds", Keywords: []string{"return", "refund", "send back", "exchange"}},
			{Name: "shipping and delivery", Keywords: []string{"ship", "deliver", "track", "arrival", "arrive"}},
			{Name: "payments and billing", Keywords: []string{"pay", "charge", "bill", "credit", "price", "cost"}},
			{Name: "account management", Keywords: []string{"account", "password", "login", "sign", "profile"}},
			{Name: "orders", Keywords: []string{"order", "purchase", "buy", "cancel"}},
			{Name: "product information", Keywords: []string{"product", "item", "size", "color", "stock"}},
		},
	}
}

// LoadRules reads a YAML rules file. Sections left out of the file keep
// their defaults.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rules over the defaults.
func ParseRules(data []byte) (Rules, error) {
	var parsed Rules
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}

	rules := DefaultRules()
	if parsed.ShortQueryTokens > 0 {
		rules.ShortQueryTokens = parsed.ShortQueryTokens
	}
	if parsed.SelfContainedPhrases != nil {
		rules.SelfContainedPhrases = parsed.SelfContainedPhrases
	}
	if parsed.ContextCues != nil {
		rules.ContextCues = parsed.ContextCues
	}
	if parsed.Topics != nil {
		rules.Topics = parsed.Topics
	}

	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate rejects rule sets that cannot be applied.
func (r Rules) Validate() error {
	var errs []error
	for i, topic := range r.Topics {
		if topic.Name == "" {
			errs = append(errs, fmt.Errorf("topic %d: name is required", i))
		}
		if len(topic.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("topic %q: at least one keyword is required", topic.Name))
		}
	}
	for _, cue := range r.ContextCues {
		if cue == "" {
			errs = append(errs, errors.New("context cue must not be empty"))
			break
		}
	}
	return errors.Join(errs...)
}
