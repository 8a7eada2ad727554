// Package nlp holds the small text-processing pieces the retrieval path
// needs: cleanup before embedding, tokenization, keyword overlap scoring,
// and the keyword classifier that feeds workflow routing.
package nlp

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]+`)

// stopwords is a compact English list; enough to keep boilerplate words out
// of embeddings and keyword scores without dragging in a corpus dependency.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "i": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "its": {}, "me": {}, "my": {}, "no": {},
	"not": {}, "of": {}, "on": {}, "or": {}, "our": {}, "she": {}, "so": {},
	"that": {}, "the": {}, "their": {}, "them": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "to": {}, "was": {}, "we": {},
	"were": {}, "what": {}, "when": {}, "which": {}, "who": {}, "will": {},
	"with": {}, "you": {}, "your": {},
}

// CleanText lowercases, strips punctuation, removes stopwords and collapses
// whitespace.  It prepares text for the embedder; stored document content is
// never modified.
func CleanText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	text = strings.ToLower(text)
	text = nonAlnum.ReplaceAllString(text, " ")

	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// Tokenize splits text into lowercase alphanumeric tokens.  Stopwords are
// kept; keyword scoring wants the raw token sets.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = nonAlnum.ReplaceAllString(text, " ")
	return strings.Fields(text)
}

// KeywordScore returns the fraction of query tokens that appear in doc,
// in [0, 1].  An empty query scores 0.
func KeywordScore(query, doc string) float32 {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}

	docSet := make(map[string]struct{})
	for _, tok := range Tokenize(doc) {
		docSet[tok] = struct{}{}
	}

	seen := make(map[string]struct{}, len(queryTokens))
	overlap := 0
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := docSet[tok]; ok {
			overlap++
		}
	}
	return float32(overlap) / float32(len(seen))
}
