package vocabulary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustCorrector(t *testing.T, jsonc string) *Corrector {
	t.Helper()
	entries, err := ParseEntries([]byte(jsonc))
	require.NoError(t, err)
	c := NewCorrector()
	c.Load(entries)
	return c
}

func TestS1_SingleWordAlias(t *testing.T) {
	c := mustCorrector(t, `{"terms":{"API":{"aliases":["a p i"],"caseMode":"upper"}}}`)
	got := c.Correct("please call the a p i now")
	assert.Equal(t, "please call the API now", got)
}

func TestS2_TrailingPunctuationPreserved(t *testing.T) {
	c := mustCorrector(t, `{"terms":{"API":{"aliases":["api"],"caseMode":"upper"}}}`)
	got := c.Correct("hit the api.")
	assert.Equal(t, "hit the API.", got)
}

func TestS3_InternalPunctuationCanonicalNoSpuriousMatch(t *testing.T) {
	c := mustCorrector(t, `{"terms":{"CLAUDE.md":{"aliases":["claude md","claude m d"],"caseMode":"exact"}}}`)
	got := c.Correct("open CLAUDE.md now")
	assert.Equal(t, "open CLAUDE.md now", got)
}

func TestS4_CodeRegionGuard(t *testing.T) {
	c := mustCorrector(t, `{"terms":{"API":{"aliases":["api"],"caseMode":"upper"}}}`)

	guarded := c.Correct("run `the api` in the terminal")
	assert.Equal(t, "run `the api` in the terminal", guarded)

	unguarded := c.Correct("run the api now")
	assert.Equal(t, "run the API now", unguarded)
}

func TestS5_LeftmostLongest(t *testing.T) {
	c := mustCorrector(t, `{"terms":{
		"Claude":{"aliases":["claude"],"caseMode":"mixed"},
		"CLAUDE.md":{"aliases":["claude md"],"caseMode":"exact"}
	}}`)
	got := c.Correct("open claude md please")
	assert.Equal(t, "open CLAUDE.md please", got)
}

func TestFencedCodeBlockGuard(t *testing.T) {
	c := mustCorrector(t, `{"terms":{"API":{"aliases":["api"],"caseMode":"upper"}}}`)
	text := "before\n```\nthe api call\n```\nafter the api\n"
	got := c.Correct(text)
	assert.Contains(t, got, "the api call")
	assert.Contains(t, got, "after the API")
}

func TestEmptyVocabularyIsIdentity(t *testing.T) {
	c := NewCorrector()
	assert.Equal(t, "nothing changes here", c.Correct("nothing changes here"))
}

func TestNoAliasSubstringIsIdentity(t *testing.T) {
	c := mustCorrector(t, `{"terms":{"API":{"aliases":["api"],"caseMode":"upper"}}}`)
	assert.Equal(t, "completely unrelated text", c.Correct("completely unrelated text"))
}

func TestIdempotence(t *testing.T) {
	c := mustCorrector(t, `{"terms":{
		"API":{"aliases":["api","a p i"],"caseMode":"upper"},
		"CLAUDE.md":{"aliases":["claude md"],"caseMode":"exact"}
	}}`)
	inputs := []string{
		"please call the a p i now",
		"open claude md please",
		"hit the api.",
		"run `the api` in the terminal",
	}
	for _, in := range inputs {
		once := c.Correct(in)
		twice := c.Correct(once)
		assert.Equal(t, once, twice, "correct() must be idempotent for %q", in)
	}
}

func TestCodeRegionBytesUnchanged(t *testing.T) {
	c := mustCorrector(t, `{"terms":{"API":{"aliases":["api"],"caseMode":"upper"}}}`)
	text := "see `api usage` and also the api elsewhere"
	got := c.Correct(text)
	assert.Contains(t, got, "`api usage`")
}

// Property: for any alias-free input built from a fixed word bank, correct
// returns it unchanged, and running correct twice is idempotent.
func TestProperty_IdentityAndIdempotence(t *testing.T) {
	c := mustCorrector(t, `{"terms":{"API":{"aliases":["api"],"caseMode":"upper"}}}`)
	words := []string{"hello", "world", "widget", "banana", "please", "call", "later"}

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "n")
		parts := make([]string, n)
		for i := range parts {
			parts[i] = rapid.SampledFrom(words).Draw(rt, "word")
		}
		text := parts[0]
		for _, p := range parts[1:] {
			text += " " + p
		}
		once := c.Correct(text)
		assert.Equal(rt, text, once)
		twice := c.Correct(once)
		assert.Equal(rt, once, twice)
	})
}
