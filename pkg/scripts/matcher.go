package scripts

import (
	"sort"
	"strings"
)

// DefaultTopK is how many ranked candidates Rank returns when the caller
// does not say.
const DefaultTopK = 5

// Match pairs a descriptor with its relevance score for one query.
type Match struct {
	Script ScriptDescriptor `json:"script"`
	Score  int              `json:"score"`
}

// Rank scores catalog entries against a free-text query and returns the
// topK best, highest first. A script scores when the whole query appears
// in its name, description or display, or when individual query tokens do.
// Ties break by shorter display name, then by (module, name), so identical
// input always yields identical output. No match above zero means an empty
// result, not an error.
func Rank(catalog []ScriptDescriptor, query string, topK int) []Match {
	if topK <= 0 {
		topK = DefaultTopK
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	tokens := queryTokens(q)

	var matches []Match
	for _, desc := range catalog {
		score := scoreScript(&desc, q, tokens)
		if score > 0 {
			matches = append(matches, Match{Script: desc, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Script.Display) != len(b.Script.Display) {
			return len(a.Script.Display) < len(b.Script.Display)
		}
		if a.Script.Module != b.Script.Module {
			return a.Script.Module < b.Script.Module
		}
		return a.Script.Name < b.Script.Name
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func scoreScript(desc *ScriptDescriptor, q string, tokens []string) int {
	name := strings.ToLower(desc.Name)
	description := strings.ToLower(desc.Description)
	display := strings.ToLower(desc.Display)

	score := 0
	if strings.Contains(name, q) {
		score += 10
	}
	if strings.Contains(description, q) {
		score += 5
	}
	if strings.Contains(display, q) {
		score += 3
	}
	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			score += 2
		}
		if strings.Contains(description, tok) {
			score += 1
		}
	}
	return score
}

// queryTokens splits a query into searchable tokens, skipping very short
// words that would match everything.
func queryTokens(q string) []string {
	var tokens []string
	for _, tok := range strings.Fields(q) {
		if len(tok) > 2 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
