package extract

import (
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "this": true,
	"that": true, "from": true, "your": true, "you": true, "are": true,
	"was": true, "were": true, "has": true, "have": true, "not": true,
	"all": true, "any": true, "per": true, "our": true, "out": true,
}

// Keywords returns the most frequent meaningful terms in the text, used for
// later search over stored documents.
func Keywords(text string, limit int) []string {
	counts := make(map[string]int)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, token := range tokens {
		if len(token) < 3 || stopwords[token] {
			continue
		}
		if numericNamePattern.MatchString(token) {
			continue
		}
		counts[token]++
	}

	type freq struct {
		word  string
		count int
	}
	ranked := make([]freq, 0, len(counts))
	for word, count := range counts {
		ranked = append(ranked, freq{word, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	if limit > len(ranked) {
		limit = len(ranked)
	}
	keywords := make([]string, 0, limit)
	for _, f := range ranked[:limit] {
		keywords = append(keywords, f.word)
	}
	return keywords
}
