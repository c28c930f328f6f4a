// ABOUTME: Post-processes generated text before it is persisted
// ABOUTME: Strips code fences, leading labels, summary trailers and banned meta phrases
package cleaner

import (
	"regexp"
	"strings"
)

// DefaultBannedPhrases are summary or meta phrasings never allowed in refined prose
var DefaultBannedPhrases = []string{
	"in this chapter",
	"this chapter tells",
	"to be continued",
	"in conclusion",
	"to sum up",
	"本章讲述了",
	"本章主要讲述",
	"欲知后事如何",
	"请看下回分解",
	"且听下回分解",
	"综上所述",
	"总而言之",
	"本章完",
	"未完待续",
}

// defaultPrefixes are labels models like to put before the answer
var defaultPrefixes = []string{
	"优化后的内容：",
	"优化后：",
	"【优化后】",
	"refined text:",
	"refined version:",
	"optimized:",
	"refined:",
	"---",
	"```",
}

// trailerLead matches the opening of a summary paragraph
var trailerLead = regexp.MustCompile(
	`^(?:【本章总结】|本章讲述了|综上所述|(?i:chapter summary|in summary|in conclusion|to sum up))`,
)

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

var blankRuns = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)

// Cleaner applies the output rules with a configurable banned-phrase list
type Cleaner struct {
	banned   []string
	patterns []*regexp.Regexp
}

// New creates a cleaner for the given banned phrases; nil means DefaultBannedPhrases
func New(banned []string) *Cleaner {
	if banned == nil {
		banned = DefaultBannedPhrases
	}
	c := &Cleaner{}
	for _, phrase := range banned {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		c.banned = append(c.banned, phrase)
		// The whole sentence holding the phrase goes, up to and including its terminator
		c.patterns = append(c.patterns, regexp.MustCompile(
			`[^。！？.!?\n]*(?i:`+regexp.QuoteMeta(phrase)+`)[^。！？.!?\n]*[。！？.!?…]*[”"」]?`,
		))
	}
	return c
}

// BannedPhrases returns the phrases this cleaner removes
func (c *Cleaner) BannedPhrases() []string {
	return append([]string(nil), c.banned...)
}

// Segment cleans one segment's raw output: unwraps a code fence and trims
func (c *Cleaner) Segment(text string) string {
	return strings.TrimSpace(StripFence(text))
}

// Closing cleans the final segment, additionally removing banned phrasing
func (c *Cleaner) Closing(text string) string {
	return c.RemoveBanned(c.Segment(text))
}

// Unit cleans merged unit content: leading labels, summary trailers, banned phrases
func (c *Cleaner) Unit(text string) string {
	text = stripPrefixes(strings.TrimSpace(text))
	text = stripTrailers(text)
	return c.RemoveBanned(text)
}

// stripTrailers drops closing summary paragraphs. Only the last paragraph is
// ever considered, and a text with a single paragraph is kept whole.
func stripTrailers(text string) string {
	for {
		breaks := paragraphBreak.FindAllStringIndex(text, -1)
		if len(breaks) == 0 {
			return text
		}
		last := breaks[len(breaks)-1]
		if !trailerLead.MatchString(strings.TrimSpace(text[last[1]:])) {
			return text
		}
		text = strings.TrimRight(text[:last[0]], " \t\n")
	}
}

// RemoveBanned deletes every sentence containing a banned phrase
func (c *Cleaner) RemoveBanned(text string) string {
	if len(c.patterns) == 0 {
		return text
	}
	for range 3 {
		for _, re := range c.patterns {
			text = re.ReplaceAllString(text, "")
		}
		if c.FindBanned(text) == "" {
			break
		}
	}
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// FindBanned returns the first banned phrase present in text, or ""
func (c *Cleaner) FindBanned(text string) string {
	lower := strings.ToLower(text)
	for _, phrase := range c.banned {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return phrase
		}
	}
	return ""
}

// StripFence removes a ``` wrapper around the whole answer
func StripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	lines := strings.Split(trimmed, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

func stripPrefixes(text string) string {
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(text)
		for _, p := range defaultPrefixes {
			if strings.HasPrefix(lower, p) {
				text = strings.TrimSpace(text[len(p):])
				changed = true
				break
			}
		}
	}
	return text
}
