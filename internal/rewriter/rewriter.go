// Package rewriter augments follow-up questions with the topic of the
// previous exchange so that similarity search sees a self-contained query.
//
// The heuristic is rule based and deterministic:
//
//  1. A query of ShortQueryTokens or fewer whitespace tokens is self-contained
//     only if it contains one of the stock phrases ("help", "hi", ...).
//  2. A longer query needs context if any cue word or phrase appears on word
//     boundaries (pronouns such as "it" and "those", markers such as
//     "what about").
//  3. A query that needs context is suffixed with " (regarding <topic>)",
//     where topic is the first bucket whose keyword occurs in the last
//     user/assistant exchange, or the prior user question when none match.
package rewriter

import (
	"regexp"
	"strings"

	"github.com/capitalize-ai/faqbot/internal/model"
)

// Rewriter applies a fixed rule set.
type Rewriter struct {
	rules Rules
	cues  []*regexp.Regexp
}

// New compiles the cue patterns of rules.
func New(rules Rules) *Rewriter {
	cues := make([]*regexp.Regexp, 0, len(rules.ContextCues))
	for _, cue := range rules.ContextCues {
		cues = append(cues, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(cue)+`\b`))
	}
	return &Rewriter{rules: rules, cues: cues}
}

// NewDefault returns a rewriter using DefaultRules.
func NewDefault() *Rewriter {
	return New(DefaultRules())
}

// IsSelfContained reports whether query can be searched without history.
func (r *Rewriter) IsSelfContained(query string) bool {
	lowered := strings.ToLower(strings.TrimSpace(query))

	if len(strings.Fields(lowered)) <= r.rules.ShortQueryTokens {
		for _, phrase := range r.rules.SelfContainedPhrases {
			if strings.Contains(lowered, phrase) {
				return true
			}
		}
		return false
	}

	for _, cue := range r.cues {
		if cue.MatchString(lowered) {
			return false
		}
	}
	return true
}

// RewriteWithContext returns query unchanged when it is self-contained or
// there is no usable exchange in history, otherwise the augmented query.
func (r *Rewriter) RewriteWithContext(query string, history []model.Message) string {
	if len(history) == 0 || r.IsSelfContained(query) {
		return query
	}

	userQuery, botResponse, ok := lastExchange(history)
	if !ok {
		return query
	}

	topic := r.topicOf(userQuery, botResponse)
	if topic == "" {
		return query
	}
	return query + " (regarding " + topic + ")"
}

func (r *Rewriter) topicOf(userQuery, botResponse string) string {
	combined := strings.ToLower(userQuery + " " + botResponse)
	for _, topic := range r.rules.Topics {
		for _, kw := range topic.Keywords {
			if strings.Contains(combined, strings.ToLower(kw)) {
				return topic.Name
			}
		}
	}
	return userQuery
}

// lastExchange finds the most recent assistant message and the latest user
// message before it.
func lastExchange(history []model.Message) (userQuery, botResponse string, ok bool) {
	botIdx := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleAssistant {
			botIdx = i
			break
		}
	}
	if botIdx < 0 {
		return "", "", false
	}

	for i := botIdx - 1; i >= 0; i-- {
		if history[i].Role == model.RoleUser {
			return history[i].Content, history[botIdx].Content, true
		}
	}
	return "", "", false
}
