// Package detect scans inbound chat text against the configured keyword set.
package detect

import "strings"

// Matcher holds the ordered keyword list. Matching is exact substring
// containment: case-sensitive, no tokenization. The keyword set is small and
// the group language is not whitespace-delimited, so anything smarter would
// buy nothing.
type Matcher struct {
	keywords []string
}

// NewMatcher copies the keyword list so later config mutation cannot change
// matching behavior mid-flight.
func NewMatcher(keywords []string) *Matcher {
	kws := make([]string, len(keywords))
	copy(kws, keywords)
	return &Matcher{keywords: kws}
}

// Detect returns the first keyword, by list order, contained in text. The
// position of the keyword inside the text does not influence which keyword
// wins.
func (m *Matcher) Detect(text string) (string, bool) {
	for _, kw := range m.keywords {
		if kw != "" && strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// Keywords returns the configured keyword list.
func (m *Matcher) Keywords() []string {
	kws := make([]string, len(m.keywords))
	copy(kws, m.keywords)
	return kws
}
