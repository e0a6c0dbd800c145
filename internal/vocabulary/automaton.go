package vocabulary

import (
	"sort"
)

// Payload is carried by every pattern inserted into the automaton:
// which canonical it resolves to, its priority for overlap resolution,
// and whether matches must sit on word boundaries.
type Payload struct {
	CanonicalIdx int
	Priority     int
	MatchLen     int // in runes, for the priority-ordering rule (longer alias wins)
	Boundaries   bool
}

type node struct {
	children map[rune]int
	fail     int
	output   []int // indices into automaton.payloads ending at this node
}

// Automaton is an immutable, precomputed Aho-Corasick state machine over
// a fixed alias set. Once built it is never mutated — callers swap the
// whole structure through Corrector's atomic pointer, per spec section 3's Automaton invariant
// and section 9's "atomic handle (read-copy-update style)" design note.
type Automaton struct {
	nodes      []node
	payloads   []Payload
	canonicals []Entry
}

// Build constructs an Automaton from entries. Cost is linear in total
// alias character count, satisfying spec section 4.6.2's "well under
// 50ms for 500 canonicals x 3 aliases" budget.
func Build(entries []Entry) *Automaton {
	a := &Automaton{
		nodes:      []node{{children: make(map[rune]int)}}, // root
		canonicals: entries,
	}

	type insertion struct {
		pattern    []rune
		payloadIdx int
	}
	var insertions []insertion

	for ci, e := range entries {
		boundaries := requiresWordBoundaries(e.Canonical)
		for _, alias := range e.Aliases {
			view, _ := Normalize(alias)
			pattern := []rune(view)
			if len(pattern) == 0 {
				continue
			}
			priority := aliasTokenCount(view)
			payloadIdx := len(a.payloads)
			a.payloads = append(a.payloads, Payload{
				CanonicalIdx: ci,
				Priority:     priority,
				MatchLen:     len(pattern),
				Boundaries:   boundaries,
			})
			insertions = append(insertions, insertion{pattern: pattern, payloadIdx: payloadIdx})
		}
	}

	for _, ins := range insertions {
		cur := 0
		for _, r := range ins.pattern {
			next, ok := a.nodes[cur].children[r]
			if !ok {
				a.nodes = append(a.nodes, node{children: make(map[rune]int)})
				next = len(a.nodes) - 1
				a.nodes[cur].children[r] = next
			}
			cur = next
		}
		a.nodes[cur].output = append(a.nodes[cur].output, ins.payloadIdx)
	}

	a.buildFailureLinks()
	return a
}

// buildFailureLinks runs the standard BFS construction of Aho-Corasick
// failure links and propagates output sets along them so a match at a
// deep node also reports any shorter suffix patterns ending there.
func (a *Automaton) buildFailureLinks() {
	queue := make([]int, 0, len(a.nodes))
	for r, child := range a.nodes[0].children {
		a.nodes[child].fail = 0
		queue = append(queue, child)
		_ = r
	}

	for i := 0; i < len(queue); i++ {
		u := queue[i]
		for r, v := range a.nodes[u].children {
			queue = append(queue, v)
			f := a.nodes[u].fail
			for {
				if next, ok := a.nodes[f].children[r]; ok && next != v {
					a.nodes[v].fail = next
					break
				}
				if f == 0 {
					a.nodes[v].fail = 0
					break
				}
				f = a.nodes[f].fail
			}
			a.nodes[v].output = append(a.nodes[v].output, a.nodes[a.nodes[v].fail].output...)
		}
	}
}

// Match is one occurrence found by Scan: a half-open rune range [Start,
// End) in the normalized view, plus the payload describing how to
// resolve and render it.
type Match struct {
	Start, End int
	Payload    Payload
}

// Scan runs the automaton once over view (already-normalized text) and
// returns every accepting match, unfiltered by word-boundary or overlap
// rules — those are applied by the caller (see correct.go), since they
// need the original-text code-region information the automaton itself
// has no knowledge of.
func (a *Automaton) Scan(view string) []Match {
	runes := []rune(view)
	var matches []Match
	cur := 0
	for i, r := range runes {
		for {
			if next, ok := a.nodes[cur].children[r]; ok {
				cur = next
				break
			}
			if cur == 0 {
				break
			}
			cur = a.nodes[cur].fail
		}
		for _, pIdx := range a.nodes[cur].output {
			p := a.payloads[pIdx]
			start := i + 1 - p.MatchLen
			if start < 0 {
				continue
			}
			matches = append(matches, Match{Start: start, End: i + 1, Payload: p})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		if matches[i].End != matches[j].End {
			return matches[i].End > matches[j].End // longer first
		}
		return matches[i].Payload.Priority > matches[j].Payload.Priority
	})
	return matches
}

// Canonical returns the Entry a payload's CanonicalIdx points to.
func (a *Automaton) Canonical(idx int) Entry { return a.canonicals[idx] }

// aliasTokenCount counts whitespace-delimited tokens in an already
// normalized alias view, used as the primary priority tiebreak per spec
// section 4.6.2 step 2 ("more alias tokens > longer alias > declaration
// order").
func aliasTokenCount(view string) int {
	count := 0
	inToken := false
	for _, r := range view {
		if r == ' ' {
			inToken = false
			continue
		}
		if !inToken {
			count++
			inToken = true
		}
	}
	if count == 0 {
		return 1
	}
	return count
}
