// Package rank scores stored connection profiles against free-text queries
// and orders them by a weighted combination of match quality, usage
// frequency, recency, and historical success rate.
package rank

import "strings"

// Tier is the match-quality class the scorer assigns to a candidate.
type Tier int

const (
	// TierNone means the candidate did not match at all. Candidates at this
	// tier are excluded from results, never scored as zero.
	TierNone Tier = iota
	// TierExact is a case-insensitive match on the full display name
	TierExact
	// TierPrefix is a prefix match on the name or its smushed form
	TierPrefix
	// TierWordBoundary matches a whole token of the name or host
	TierWordBoundary
	// TierContains is a substring match on the smushed name, host, or a tag
	TierContains
)

// tierWeight is the likelihood contribution of each tier.
var tierWeight = map[Tier]float64{
	TierExact:        1.0,
	TierPrefix:       0.8,
	TierWordBoundary: 0.6,
	TierContains:     0.4,
}

// Weight returns the tier's likelihood contribution in [0,1].
func (t Tier) Weight() float64 {
	return tierWeight[t]
}

// String returns the tier name used in output.
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierPrefix:
		return "prefix"
	case TierWordBoundary:
		return "word"
	case TierContains:
		return "contains"
	default:
		return "none"
	}
}

// Candidate carries the text fields of a connection the scorer matches
// against.
type Candidate struct {
	Name string
	Host string
	Tags []string
}

// Match is the scorer's verdict for one candidate.
type Match struct {
	Tier   Tier
	Weight float64
}

// separators are the characters stripped when building the smushed form and
// used as token boundaries for word matches.
const separators = "-_. \t"

// Score classifies how well a candidate matches a query. Tiers are evaluated
// in descending priority and the first hit wins. The second return value is
// false when the candidate does not match at all.
//
// The query must already be trimmed; matching is case-insensitive
// throughout. Compound names are compared through their "smushed" form, the
// lower-cased text with separator characters removed, so "webprod" finds
// "web-prod-server".
func Score(query string, c Candidate) (Match, bool) {
	q := strings.ToLower(query)
	if q == "" {
		return Match{}, false
	}

	name := strings.ToLower(c.Name)
	host := strings.ToLower(c.Host)
	smushedQuery := smush(q)
	smushedName := smush(name)

	switch {
	case name == q:
		return Match{Tier: TierExact, Weight: TierExact.Weight()}, true

	case strings.HasPrefix(name, q),
		smushedQuery != "" && strings.HasPrefix(smushedName, smushedQuery):
		return Match{Tier: TierPrefix, Weight: TierPrefix.Weight()}, true

	case isToken(q, name), isToken(q, host):
		return Match{Tier: TierWordBoundary, Weight: TierWordBoundary.Weight()}, true

	case smushedQuery != "" && strings.Contains(smushedName, smushedQuery),
		strings.Contains(host, q),
		tagContains(c.Tags, q):
		return Match{Tier: TierContains, Weight: TierContains.Weight()}, true
	}

	return Match{}, false
}

// smush lower-cases s and strips separator characters, producing the form
// used for compound-name comparison.
func smush(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if !strings.ContainsRune(separators, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isToken reports whether q equals one of the tokens obtained by splitting s
// on the separator set.
func isToken(q, s string) bool {
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(separators, r)
	}) {
		if tok == q {
			return true
		}
	}
	return false
}

// tagContains reports whether any tag contains q as a substring.
func tagContains(tags []string, q string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
