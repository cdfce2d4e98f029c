package classification

import (
	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
)

// KeywordEngine is the offline classifier. Exact keyword hits are found
// with Aho-Corasick in one pass; if nothing matches, a fuzzy pass catches
// near misses before giving up to the fallback category.
type KeywordEngine struct {
	matcher  *ahocorasick.Matcher
	keywords []string
	category []string // index-aligned with keywords
	tax      *Taxonomy
}

func NewKeywordEngine(tax *Taxonomy) *KeywordEngine {
	e := &KeywordEngine{tax: tax}
	for _, c := range tax.Categories {
		for _, kw := range c.Keywords {
			if kw == "" {
				continue
			}
			e.keywords = append(e.keywords, kw)
			e.category = append(e.category, c.Name)
		}
	}
	e.matcher = ahocorasick.NewStringMatcher(e.keywords)
	return e
}

// Classify always produces a suggestion; unmatched descriptions land in
// the taxonomy's fallback category.
func (e *KeywordEngine) Classify(description string) *expense.Suggestion {
	if description != "" && len(e.keywords) > 0 {
		if hits := e.matcher.Match([]byte(description)); len(hits) > 0 {
			// Prefer the longest matched keyword.
			best := hits[0]
			for _, h := range hits[1:] {
				if len(e.keywords[h]) > len(e.keywords[best]) {
					best = h
				}
			}
			return &expense.Suggestion{L1: e.category[best]}
		}

		if idx := e.fuzzyMatch(description); idx >= 0 {
			return &expense.Suggestion{L1: e.category[idx]}
		}
	}
	return &expense.Suggestion{L1: e.tax.Fallback}
}

// fuzzyMatch returns the index of the best fuzzy keyword hit, or -1.
func (e *KeywordEngine) fuzzyMatch(description string) int {
	bestIdx := -1
	bestRank := -1
	for i, kw := range e.keywords {
		rank := fuzzy.RankMatchNormalizedFold(kw, description)
		if rank < 0 {
			continue
		}
		if bestIdx < 0 || rank < bestRank {
			bestIdx = i
			bestRank = rank
		}
	}
	return bestIdx
}
