package synth

import (
	"regexp"
	"unicode/utf8"

	"github.com/capitalize-ai/faqbot/internal/model"
)

var injectionPatterns = compileAll(
	`(?i)ignore\s+(all\s+)?(the\s+)?(previous|prior|above)\s+instructions?`,
	`(?i)disregard\s+(all\s+)?(the\s+)?(above|previous|prior)`,
	`(?i)forget\s+(everything|all|what)\s`,
	`(?i)override\s+(your\s+)?instructions?`,
	`(?i)(reveal|show|print|repeat|tell\s+me)\s+(me\s+)?(your|the)\s+(system\s+)?(prompt|instructions)`,
	`(?i)new\s+system\s+prompt`,
	`(?i)you\s+are\s+now\s+(a|an|in)\s`,
	`(?i)from\s+now\s+on\s+you\s+(are|will)`,
	`(?i)pretend\s+(to\s+be|you\s+are)`,
	`(?i)\bjailbreak`,
	`(?i)\[/?INST\]|<</?SYS>>|<\|im_start\|>`,
)

var unsafeOutputPatterns = compileAll(
	`(?i)\bas an ai\b`,
	`(?i)\bi(\s+am|'m)\s+(just\s+)?an?\s+(ai|artificial intelligence|language model)`,
	`(?i)\blarge language model\b`,
	`(?i)\bsystem prompt\b`,
	`(?i)\bmy (instructions|programming)\b`,
	`(?i)\bi (was|have been) (instructed|programmed|told) to\b`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// IsInjection reports whether query looks like a prompt-injection attempt.
func IsInjection(query string) bool {
	return matchesAny(injectionPatterns, query)
}

// IsUnsafeOutput reports whether text contains AI meta-commentary or prompt leakage.
func IsUnsafeOutput(text string) bool {
	return matchesAny(unsafeOutputPatterns, text)
}

// truncate cuts s to at most max runes. A non-positive max leaves s intact.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// fitContext keeps the highest-ranked candidates whose question and answer
// fit in max runes, dropping from the bottom. When even the top candidate is
// too large its answer is truncated.
func fitContext(faqs []model.SearchCandidate, max int) []model.SearchCandidate {
	if max <= 0 || len(faqs) == 0 {
		return faqs
	}

	out := make([]model.SearchCandidate, 0, len(faqs))
	used := 0
	for _, faq := range faqs {
		size := utf8.RuneCountInString(faq.Question) + utf8.RuneCountInString(faq.Answer)
		if used+size > max {
			break
		}
		used += size
		out = append(out, faq)
	}

	if len(out) == 0 {
		top := faqs[0]
		room := max - utf8.RuneCountInString(top.Question)
		if room <= 0 {
			return out
		}
		top.Answer = truncate(top.Answer, room)
		out = append(out, top)
	}
	return out
}
