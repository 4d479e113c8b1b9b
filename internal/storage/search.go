package storage

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
)

var (
	separatorPattern = regexp.MustCompile(`[_\.\-\s/]+`)
	camelPattern     = regexp.MustCompile(`([a-z])([A-Z])`)
	letterDigit      = regexp.MustCompile(`(\p{L})(\d)`)
	digitLetter      = regexp.MustCompile(`(\d)(\p{L})`)
)

// tokenize splits a node name into searchable tokens.
// Handles separators, camelCase and letter/digit boundaries, so
// "3F Elevator-Entrance" yields "3", "f", "3f", "elevator", "entrance".
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	tokens := make(map[string]bool)
	tokens[strings.ToLower(text)] = true

	for _, part := range separatorPattern.Split(text, -1) {
		if part == "" {
			continue
		}
		tokens[strings.ToLower(part)] = true

		split := camelPattern.ReplaceAllString(part, "$1 $2")
		split = letterDigit.ReplaceAllString(split, "$1 $2")
		split = digitLetter.ReplaceAllString(split, "$1 $2")
		for _, sub := range strings.Fields(split) {
			tokens[strings.ToLower(sub)] = true
		}
	}

	result := make([]string, 0, len(tokens))
	for token := range tokens {
		result = append(result, token)
	}
	sort.Strings(result)
	return result
}

// rankNodes scores nodes against query. An exact name match scores highest,
// then the fraction of query tokens found in the name, then substring hits.
func rankNodes(nodes []floorplan.Node, query string, limit int) []SearchResult {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return []SearchResult{}
	}
	lowerQuery := strings.ToLower(query)

	results := make([]SearchResult, 0)
	for _, node := range nodes {
		score := 0.0
		if node.Name == query {
			score += 10
		} else if strings.EqualFold(node.Name, query) {
			score += 5
		}

		nameTokens := make(map[string]bool)
		for _, token := range tokenize(node.Name) {
			nameTokens[token] = true
		}
		matched := 0
		for _, token := range queryTokens {
			if nameTokens[token] {
				matched++
			}
		}
		score += float64(matched) / float64(len(queryTokens))

		if score == 0 && strings.Contains(strings.ToLower(node.Name), lowerQuery) {
			score = 0.1
		}
		if score <= 0 {
			continue
		}

		results = append(results, SearchResult{
			NodeID:   node.ID,
			NodeName: node.Name,
			Score:    score,
		})
	}

	// Sort by score descending; keep declared order on ties
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
