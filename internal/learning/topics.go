package learning

import (
	"strings"

	"github.com/nvandessel/evolab/internal/constants"
)

// TopicExtractor classifies a piece of text into a single topic.
type TopicExtractor interface {
	// Extract returns the topic whose keywords match the text most often,
	// or the fallback topic when no keyword matches.
	Extract(text string) string
}

// TopicRule maps a topic to the keywords that signal it.
type TopicRule struct {
	Name     string
	Keywords []string
}

// DefaultTopicRules returns the built-in keyword table.
func DefaultTopicRules() []TopicRule {
	return []TopicRule{
		{Name: "research", Keywords: []string{"research", "literature", "paper", "hypothesis", "study"}},
		{Name: "analysis", Keywords: []string{"analysis", "analyze", "measurement", "data", "statistics"}},
		{Name: "safety", Keywords: []string{"safety", "hazard", "protection", "precaution", "risk"}},
		{Name: "experimentation", Keywords: []string{"experiment", "trial", "test", "sample", "result"}},
		{Name: "procedure", Keywords: []string{"equipment", "procedure", "protocol", "setup", "step"}},
		{Name: "documentation", Keywords: []string{"document", "report", "record", "notes", "log"}},
	}
}

// keywordExtractor is the concrete implementation of TopicExtractor.
type keywordExtractor struct {
	// rules are matched in order; earlier rules win ties
	rules    []TopicRule
	fallback string
}

// NewTopicExtractor creates a keyword-counting TopicExtractor. Nil rules use
// DefaultTopicRules; an empty fallback uses constants.DefaultTopic.
func NewTopicExtractor(rules []TopicRule, fallback string) TopicExtractor {
	if rules == nil {
		rules = DefaultTopicRules()
	}
	if fallback == "" {
		fallback = constants.DefaultTopic
	}

	normalized := make([]TopicRule, 0, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			continue
		}
		kw := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kw = append(kw, k)
			}
		}
		normalized = append(normalized, TopicRule{Name: r.Name, Keywords: kw})
	}
	return &keywordExtractor{rules: normalized, fallback: fallback}
}

// Extract implements TopicExtractor.
func (e *keywordExtractor) Extract(text string) string {
	text = strings.ToLower(text)

	best, bestHits := e.fallback, 0
	for _, r := range e.rules {
		hits := 0
		for _, k := range r.Keywords {
			if strings.Contains(text, k) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = r.Name, hits
		}
	}
	return best
}
