package vocabulary

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ParseEntries decodes the comment-stripped JSON body of vocabulary.jsonc
// (see config.Manager, which performs the comment-stripping step) into a
// deterministically ordered slice of Entry. Unknown top-level keys are
// ignored rather than rejected, per spec section 6.1's forward-compatibility
// requirement.
func ParseEntries(raw []byte) ([]Entry, error) {
	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("vocabulary: parsing terms: %w", err)
	}

	canonicals := make([]string, 0, len(fc.Terms))
	for canonical := range fc.Terms {
		canonicals = append(canonicals, canonical)
	}
	sort.Strings(canonicals) // declaration order isn't preserved by map iteration; this keeps builds reproducible

	entries := make([]Entry, 0, len(canonicals))
	for _, canonical := range canonicals {
		t := fc.Terms[canonical]
		mode := CaseMode(t.CaseMode)
		switch mode {
		case CaseExact, CaseUpper, CaseMixed, CaseCamel:
		case "":
			mode = CaseExact
		default:
			return nil, fmt.Errorf("vocabulary: term %q: unknown caseMode %q", canonical, t.CaseMode)
		}
		entries = append(entries, Entry{
			Canonical: canonical,
			Aliases:   t.Aliases,
			CaseMode:  mode,
			Category:  t.Category,
		})
	}
	return entries, nil
}
