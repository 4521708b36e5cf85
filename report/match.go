package report

import (
	"regexp"
	"strings"

	"conserva/ingest"
	"conserva/internal/chartpool"
	"conserva/internal/chartxml"
	"conserva/internal/headermap"
)

// ScanState is the context the paragraph scanner carries between paragraphs.
// It is a plain value so every step is independently testable.
type ScanState struct {
	Source   ingest.SourceType
	Heading  string
	Awaiting bool
}

func NewScanState() ScanState {
	return ScanState{Source: ingest.SourcePaved}
}

// StepAction reports what a paragraph meant to the scanner.
type StepAction int

const (
	StepNone StepAction = iota
	StepContext
	StepHeading
	StepCaption
)

var (
	// BR-153, MG-050, LMG-808: two or three letter network prefixes
	headingPattern = regexp.MustCompile(`rodovia\s+[a-z]{2,3}\s?[0-9]+`)
	routeToken     = regexp.MustCompile(`(?i)rodovia`)
	// dot leaders, page numbers and PAGEREF field debris bleed in from
	// tables of contents
	pagerefField   = regexp.MustCompile(`(?i)\s*pageref\s+\S+.*$`)
	trailingLeader = regexp.MustCompile(`\.{3,}\s*[0-9]*\s*$`)
	trailingPage   = regexp.MustCompile(`\t\s*[0-9]+\s*$`)
)

// Step folds one paragraph's text into the state. Recognition happens on the
// normalized text; the stored heading keeps its original casing.
func Step(state ScanState, text string) (ScanState, StepAction) {
	n := headermap.Normalize(text)
	if n == "" {
		return state, StepNone
	}

	if source, ok := contextSource(n); ok {
		state.Source = source
		return state, StepContext
	}
	if headingPattern.MatchString(n) {
		state.Heading = sanitizeHeading(text)
		return state, StepHeading
	}
	if isChartCaption(n) {
		state.Awaiting = true
		return state, StepCaption
	}
	return state, StepNone
}

// contextSource recognizes the two fixed report sections that flip the
// scanner between paved and unpaved context. The unpaved phrase is checked
// first since it contains the paved one.
func contextSource(normalized string) (ingest.SourceType, bool) {
	if !strings.Contains(normalized, "rodovias") {
		return "", false
	}
	switch {
	case strings.Contains(normalized, "1 6 2") && strings.Contains(normalized, "nao pavimentadas"):
		return ingest.SourceUnpaved, true
	case strings.Contains(normalized, "1 6 1") && strings.Contains(normalized, "pavimentadas"):
		return ingest.SourcePaved, true
	}
	return "", false
}

func isChartCaption(normalized string) bool {
	return strings.Contains(normalized, "avaliacao do consorcio supervisor") &&
		strings.Contains(normalized, "condicoes de pista") &&
		strings.Contains(normalized, "extrapista")
}

// sanitizeHeading keeps the heading from the route token onward, so outline
// numbering like "3.1 " never pollutes the match key, then strips the
// table-of-contents debris after the route name.
func sanitizeHeading(text string) string {
	if loc := routeToken.FindStringIndex(text); loc != nil {
		text = text[loc[0]:]
	}
	s := pagerefField.ReplaceAllString(text, "")
	s = trailingLeader.ReplaceAllString(s, "")
	s = trailingPage.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Anchor is one unmatched placeholder: the context it was encountered under.
type Anchor struct {
	Source  ingest.SourceType
	Heading string
}

// Fallback records a cross-type salvage: the placeholder sat under From but
// its chart was found pooled under To.
type Fallback struct {
	From       ingest.SourceType
	To         ingest.SourceType
	Heading    string
	MatchedKey string
}

// PooledChart is one chart waiting for a placeholder, with enough group
// context to trace it back.
type PooledChart struct {
	Sheet   string
	Ordinal int
	Section string
	Chart   chartxml.Chart
}

// Matcher owns the per-source chart pools and the two audit lists. Missing
// and Fallbacks are independently inspectable so exact matches can be told
// apart from salvaged ones.
type Matcher struct {
	pools     map[ingest.SourceType]*chartpool.Pool[PooledChart]
	Missing   []Anchor
	Fallbacks []Fallback
}

func NewMatcher(paved, unpaved []ChartGroup) *Matcher {
	m := &Matcher{pools: map[ingest.SourceType]*chartpool.Pool[PooledChart]{
		ingest.SourcePaved:   chartpool.New[PooledChart](),
		ingest.SourceUnpaved: chartpool.New[PooledChart](),
	}}
	m.fill(ingest.SourcePaved, paved)
	m.fill(ingest.SourceUnpaved, unpaved)
	return m
}

func (m *Matcher) fill(source ingest.SourceType, groups []ChartGroup) {
	for _, group := range groups {
		key := headermap.Normalize(group.Section)
		for _, chart := range group.Charts {
			m.pools[source].Push(key, PooledChart{
				Sheet:   group.Sheet,
				Ordinal: group.Ordinal,
				Section: group.Section,
				Chart:   chart,
			})
		}
	}
}

// Match runs the tier ladder for the current anchor: exact under the current
// source, substring under it, then both tiers under the other source. A
// cross-type hit flips the state's source. A full miss is recorded and
// reported false.
func (m *Matcher) Match(state *ScanState) (PooledChart, bool) {
	key := headermap.Normalize(state.Heading)

	if chart, ok := m.popFrom(state.Source, key); ok {
		return chart, true
	}

	other := otherSource(state.Source)
	if chart, matchedKey, ok := m.popWithKey(other, key); ok {
		m.Fallbacks = append(m.Fallbacks, Fallback{
			From:       state.Source,
			To:         other,
			Heading:    state.Heading,
			MatchedKey: matchedKey,
		})
		state.Source = other
		return chart, true
	}

	m.Missing = append(m.Missing, Anchor{Source: state.Source, Heading: state.Heading})
	return PooledChart{}, false
}

func (m *Matcher) popFrom(source ingest.SourceType, key string) (PooledChart, bool) {
	chart, _, ok := m.popWithKey(source, key)
	return chart, ok
}

func (m *Matcher) popWithKey(source ingest.SourceType, key string) (PooledChart, string, bool) {
	pool := m.pools[source]
	if chart, ok := pool.PopFront(key); ok {
		return chart, key, true
	}
	return pool.PopSubstring(key)
}

// Remaining counts charts never claimed by any placeholder.
func (m *Matcher) Remaining() int {
	return m.pools[ingest.SourcePaved].Len() + m.pools[ingest.SourceUnpaved].Len()
}

func otherSource(source ingest.SourceType) ingest.SourceType {
	if source == ingest.SourcePaved {
		return ingest.SourceUnpaved
	}
	return ingest.SourcePaved
}
