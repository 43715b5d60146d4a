package memory

import (
	"sort"
	"strings"
	"unicode"
)

// Terms splits text into unique lowercase words, in first-seen order
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// Distance is the share of query terms missing from text
func Distance(queryTerms []string, text string) float64 {
	if len(queryTerms) == 0 {
		return 1
	}

	words := make(map[string]struct{})
	for _, t := range Terms(text) {
		words[t] = struct{}{}
	}

	matched := 0
	for _, q := range queryTerms {
		if _, ok := words[q]; ok {
			matched++
		}
	}
	return 1 - float64(matched)/float64(len(queryTerms))
}

type scored struct {
	note  Note
	score float64
}

// rank scores notes against the query terms, drops notes that match
// nothing and returns the best limit hits. Ties go to the newest note.
func rank(notes []Note, terms []string, limit int) []Result {
	hits := make([]scored, 0, len(notes))
	for _, n := range notes {
		if d := Distance(terms, n.Text); d < 1 {
			hits = append(hits, scored{note: n, score: d})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score < hits[j].score
		}
		return hits[i].note.CreatedAt.After(hits[j].note.CreatedAt)
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		meta := h.note.Metadata
		if meta == nil {
			meta = map[string]interface{}{}
		}
		results = append(results, Result{Text: h.note.Text, Score: h.score, Metadata: meta})
	}
	return results
}
