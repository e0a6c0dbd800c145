package vocabulary

import (
	"strings"
	"sync/atomic"
	"unicode"
)

// Corrector applies the deterministic, code-region-aware vocabulary
// rewrite of spec section 4.6.3 against whatever Automaton is currently
// installed. The automaton field is an atomic handle: Load publishes a
// new build, in-flight Correct calls keep using whichever automaton they
// loaded at entry, per spec section 3's Automaton-atomicity invariant.
type Corrector struct {
	automaton atomic.Pointer[Automaton]
}

// NewCorrector returns a Corrector with an empty automaton installed, so
// Correct is always safe to call even before the first successful load.
func NewCorrector() *Corrector {
	c := &Corrector{}
	c.automaton.Store(Build(nil))
	return c
}

// Load builds a new automaton from entries and atomically installs it.
func (c *Corrector) Load(entries []Entry) {
	c.automaton.Store(Build(entries))
}

// Correct runs the full phase-2 pipeline of spec section 4.6.3 against
// text and returns the corrected result. It is safe to call
// concurrently and is idempotent: Correct(Correct(t)) == Correct(t),
// since a canonical form that matches an alias again after
// normalization (e.g. "API" normalizes to the alias "api") is rendered
// back to the same form, and the code-region guard leaves code bytes
// untouched on every pass.
func (c *Corrector) Correct(text string) string {
	automaton := c.automaton.Load()
	if automaton == nil || len(automaton.payloads) == 0 {
		return text
	}

	nt := NormalizeWithSpans(text)
	candidates := automaton.Scan(nt.View)

	boundaryOK := make([]Match, 0, len(candidates))
	for _, m := range candidates {
		if !m.Payload.Boundaries {
			boundaryOK = append(boundaryOK, m)
			continue
		}
		before := nt.RuneAt(m.Start - 1)
		after := nt.RuneAt(m.End)
		if !isWordRune(before) && !isWordRune(after) {
			boundaryOK = append(boundaryOK, m)
		}
	}

	accepted := resolveOverlaps(boundaryOK)

	regions := codeRegions(text)
	kept := accepted[:0]
	for _, m := range accepted {
		os, oe := nt.OriginalRange(m.Start, m.End)
		if inCodeRegion(regions, os, oe) {
			continue
		}
		kept = append(kept, m)
	}

	if len(kept) == 0 {
		return text
	}

	var b strings.Builder
	cursor := 0
	substituted := false
	for _, m := range kept {
		os, oe := nt.OriginalRange(m.Start, m.End)
		if os < cursor {
			continue // defensive: overlapping original ranges from adjacent joined tokens
		}
		b.WriteString(text[cursor:os])
		entry := automaton.Canonical(m.Payload.CanonicalIdx)
		b.WriteString(renderCase(entry.Canonical, entry.CaseMode))
		cursor = oe
		substituted = true
	}
	b.WriteString(text[cursor:])

	result := b.String()
	if substituted {
		result = collapseDoubleSpaces(result)
	}
	return result
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// resolveOverlaps implements spec section 4.6.3 step 3: matches arrive
// already sorted by (start asc, end desc, priority desc); walking left
// to right and keeping the first match whose start is not before the
// previous match's end is exactly "leftmost-longest-highest-priority".
func resolveOverlaps(matches []Match) []Match {
	var kept []Match
	lastEnd := -1
	for _, m := range matches {
		if m.Start < lastEnd {
			continue
		}
		kept = append(kept, m)
		lastEnd = m.End
	}
	return kept
}

func renderCase(canonical string, mode CaseMode) string {
	switch mode {
	case CaseUpper:
		return strings.ToUpper(canonical)
	case CaseMixed, CaseCamel, CaseExact:
		return canonical
	default:
		return canonical
	}
}

// collapseDoubleSpaces removes runs of 2+ plain spaces that substitution
// can introduce when an alias's original span absorbed separators a
// single-word canonical replacement does not need to preserve. Applied
// only when at least one substitution occurred, so ordinary text with
// intentional multi-space runs is left untouched.
func collapseDoubleSpaces(s string) string {
	var b strings.Builder
	spaceRun := 0
	for _, r := range s {
		if r == ' ' {
			spaceRun++
			if spaceRun > 1 {
				continue
			}
		} else {
			spaceRun = 0
		}
		b.WriteRune(r)
	}
	return b.String()
}

// codeRegions finds inline-backtick and fenced-code-block byte ranges in
// the original (pre-normalization) text, per spec section 4.6.3 step 4.
func codeRegions(text string) [][2]int {
	var regions [][2]int
	fenced := false
	fenceStart := -1
	pos := 0

	for pos <= len(text) {
		nl := strings.IndexByte(text[pos:], '\n')
		lineEnd := len(text)
		hasNL := nl != -1
		if hasNL {
			lineEnd = pos + nl
		}
		line := text[pos:lineEnd]
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "```"):
			if fenced {
				regions = append(regions, [2]int{fenceStart, lineEnd})
				fenced = false
			} else {
				fenced = true
				fenceStart = pos
			}
		case !fenced:
			var ticks []int
			idx := 0
			for {
				bt := strings.IndexByte(line[idx:], '`')
				if bt == -1 {
					break
				}
				ticks = append(ticks, pos+idx+bt)
				idx += bt + 1
			}
			for k := 0; k+1 < len(ticks); k += 2 {
				regions = append(regions, [2]int{ticks[k], ticks[k+1] + 1})
			}
		}

		if !hasNL {
			break
		}
		pos = lineEnd + 1
	}

	if fenced {
		regions = append(regions, [2]int{fenceStart, len(text)})
	}
	return regions
}

func inCodeRegion(regions [][2]int, start, end int) bool {
	for _, r := range regions {
		if start < r[1] && end > r[0] {
			return true
		}
	}
	return false
}
