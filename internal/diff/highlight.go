// Package diff computes highlighted story text: spans that are new relative
// to the previous revision are wrapped in <mark> tags, everything else is
// emitted verbatim.
package diff

import (
	"strings"
	"unicode"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

// HighlightAdditions aligns oldText and newText and returns newText with
// every newly introduced run of tokens wrapped in a highlight marker. Content
// present only in oldText is dropped. The result always strips back to
// exactly newText.
//
// An empty oldText is a first write, not a revision: the new text is returned
// unmarked.
func HighlightAdditions(oldText, newText string) string {
	if newText == "" {
		return ""
	}
	if oldText == "" {
		return newText
	}

	oldTokens := tokenize(oldText)
	newTokens := tokenize(newText)
	matched := lcsMatchedNew(oldTokens, newTokens)

	var b strings.Builder
	b.Grow(len(newText) + 64)

	i := 0
	for i < len(newTokens) {
		if matched[i] {
			b.WriteString(newTokens[i])
			i++
			continue
		}
		// Contiguous run of added tokens. Whitespace at the run edges stays
		// outside the marker; whitespace-only runs are not marked at all.
		j := i
		for j < len(newTokens) && !matched[j] {
			j++
		}
		writeMarkedRun(&b, newTokens[i:j])
		i = j
	}
	return b.String()
}

// RawText strips all highlight markers, recovering the raw story text.
func RawText(formatted string) string {
	if formatted == "" {
		return ""
	}
	formatted = strings.ReplaceAll(formatted, markOpen, "")
	return strings.ReplaceAll(formatted, markClose, "")
}

func writeMarkedRun(b *strings.Builder, run []string) {
	first, last := 0, len(run)-1
	for first <= last && isSpaceToken(run[first]) {
		b.WriteString(run[first])
		first++
	}
	trailing := 0
	for last >= first && isSpaceToken(run[last]) {
		last--
		trailing++
	}
	if first <= last {
		b.WriteString(markOpen)
		for _, tok := range run[first : last+1] {
			b.WriteString(tok)
		}
		b.WriteString(markClose)
	}
	for _, tok := range run[len(run)-trailing:] {
		b.WriteString(tok)
	}
}

// tokenize splits text into alternating runs of whitespace and non-whitespace.
// Keeping whitespace runs as tokens means the concatenation of all tokens is
// the original text, which is what makes marking lossless.
func tokenize(s string) []string {
	var tokens []string
	start := 0
	inSpace := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i == 0 {
			inSpace = space
			continue
		}
		if space != inSpace {
			tokens = append(tokens, s[start:i])
			start = i
			inSpace = space
		}
	}
	if len(s) > 0 {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

func isSpaceToken(tok string) bool {
	return tok != "" && unicode.IsSpace([]rune(tok)[0])
}

// lcsMatchedNew reports, per token of newTokens, whether it is part of a
// longest common subsequence with oldTokens. Unmatched tokens are the
// additions.
func lcsMatchedNew(oldTokens, newTokens []string) []bool {
	n, m := len(oldTokens), len(newTokens)
	// dp[i][j] = LCS length of oldTokens[i:] and newTokens[j:]
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if oldTokens[i] == newTokens[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	matched := make([]bool, m)
	i, j := 0, 0
	for i < n && j < m {
		if oldTokens[i] == newTokens[j] {
			matched[j] = true
			i++
			j++
		} else if dp[i+1][j] >= dp[i][j+1] {
			i++
		} else {
			j++
		}
	}
	return matched
}
