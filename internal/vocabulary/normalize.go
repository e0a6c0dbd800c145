package vocabulary

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// span records, for one rune of the normalized view, the byte range in
// the original text it was produced from.
type span struct {
	origStart, origEnd int
}

// NormalizedText pairs a normalized "view" string with a map back to the
// original text's byte offsets, so VocabularyCorrector can run matching
// against the view while emitting substitutions against the original —
// spec section 4.6.3 step 1.
type NormalizedText struct {
	View  string
	spans []span // one entry per rune of View
}

// OriginalRange converts a [start,end) rune range in View to a [start,end)
// byte range in the original text.
func (n NormalizedText) OriginalRange(start, end int) (int, int) {
	if start >= end || start < 0 || end > len(n.spans) {
		return 0, 0
	}
	return n.spans[start].origStart, n.spans[end-1].origEnd
}

// RuneLen reports how many runes View has (convenience for bounds checks).
func (n NormalizedText) RuneLen() int { return len(n.spans) }

// RuneAt supports the word-boundary check of spec section 4.6.3
// step 2: the caller needs the raw rune immediately outside a match.
func (n NormalizedText) RuneAt(viewIdx int) rune {
	r := []rune(n.View)
	if viewIdx < 0 || viewIdx >= len(r) {
		return 0
	}
	return r[viewIdx]
}

type rawChar struct {
	r         rune
	origStart int
	origEnd   int
}

// Normalize applies the matching-time normalization of spec section 4.6.2
// step 1: NFKC, lowercase, whitespace-run collapse, and short single-letter
// token joining (so "a p i" and "a.p.i" both normalize toward "api"). It
// returns the view string and, per view rune, the byte offset in s where
// that rune's source starts; callers needing the full [start,end) map
// should use NormalizeWithSpans.
func Normalize(s string) (string, []int) {
	nt := NormalizeWithSpans(s)
	starts := make([]int, len(nt.spans))
	for i, sp := range nt.spans {
		starts[i] = sp.origStart
	}
	return nt.View, starts
}

// NormalizeWithSpans is the full normalization entry point used by the
// corrector; Normalize is a thin convenience wrapper used when building
// the automaton (where only the view string and alias priority matter).
func NormalizeWithSpans(s string) NormalizedText {
	var raw []rawChar
	for i, r := range s {
		width := utf8.RuneLen(r)
		folded := norm.NFKC.String(string(r))
		for _, fr := range folded {
			raw = append(raw, rawChar{r: unicode.ToLower(fr), origStart: i, origEnd: i + width})
		}
	}

	raw = collapseWhitespace(raw)
	raw = collapseLetterRuns(raw)

	viewRunes := make([]rune, len(raw))
	spans := make([]span, len(raw))
	for i, rc := range raw {
		viewRunes[i] = rc.r
		spans[i] = span{origStart: rc.origStart, origEnd: rc.origEnd}
	}
	return NormalizedText{View: string(viewRunes), spans: spans}
}

func isSpaceRune(r rune) bool { return unicode.IsSpace(r) }

func collapseWhitespace(in []rawChar) []rawChar {
	out := make([]rawChar, 0, len(in))
	prevSpace := false
	for _, rc := range in {
		if isSpaceRune(rc.r) {
			if prevSpace {
				// extend the previous space's original end to cover this one
				out[len(out)-1].origEnd = rc.origEnd
				continue
			}
			out = append(out, rawChar{r: ' ', origStart: rc.origStart, origEnd: rc.origEnd})
			prevSpace = true
			continue
		}
		out = append(out, rc)
		prevSpace = false
	}
	// trim leading/trailing single space introduced at text edges is
	// intentionally left alone: callers match against the view as-is and
	// edge spaces never participate in a pattern.
	return out
}

func isLetter(r rune) bool { return unicode.IsLetter(r) }

func isJoinSep(r rune) bool {
	return r == ' ' || r == '.' || r == '-' || r == '_'
}

// collapseLetterRuns implements spec section 4.6.2 step 1's "collapse
// sequences of 2-5 single-letter tokens into a joined form" and
// "standardize separators between letters within a short token": a run
// of 2 to 5 isolated single-letter tokens separated by space/./-/_ is
// rewritten as the bare concatenation of those letters, e.g. "a p i" and
// "a.p.i" both become "api". This is what makes the spec's documented
// "claude m d" -> "CLAUDE.md" case matchable: each letter keeps its own
// original-text span, so the eventual match's original range still
// covers the whole separated phrase.
func collapseLetterRuns(in []rawChar) []rawChar {
	out := make([]rawChar, 0, len(in))
	i := 0
	isSingleLetterAt := func(idx int) bool {
		if idx < 0 || idx >= len(in) || !isLetter(in[idx].r) {
			return false
		}
		beforeOK := idx == 0 || !isLetter(in[idx-1].r)
		afterOK := idx+1 >= len(in) || !isLetter(in[idx+1].r)
		return beforeOK && afterOK
	}

	for i < len(in) {
		if !isSingleLetterAt(i) {
			out = append(out, in[i])
			i++
			continue
		}
		run := []rawChar{in[i]}
		j := i + 1
		for j < len(in) {
			k := j
			for k < len(in) && isJoinSep(in[k].r) {
				k++
			}
			if k == j || !isSingleLetterAt(k) {
				break
			}
			run = append(run, in[k])
			j = k + 1
		}
		if len(run) >= 2 && len(run) <= 5 {
			out = append(out, run...)
			i = j
			continue
		}
		out = append(out, in[i])
		i++
	}
	return out
}
