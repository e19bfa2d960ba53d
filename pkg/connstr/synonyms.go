package connstr

import (
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Synonyms maps a lower-cased keyword alias to its canonical keyword.
//
// A nil table lets every key through as its own canonical form. A non-nil
// table is a whitelist: keys missing from it are rejected by Parse.
type Synonyms map[string]string

// Keyword declares a canonical keyword together with its aliases.
type Keyword struct {
	Name    string
	Aliases []string
}

// NewSynonyms builds a table from canonical keywords. Every name maps to
// itself and every alias maps to its name; all entries are lower-cased.
func NewSynonyms(keywords ...Keyword) Synonyms {
	fold := newFolder()
	s := make(Synonyms, len(keywords))
	for _, kw := range keywords {
		name := fold.String(kw.Name)
		s[name] = name
		for _, alias := range kw.Aliases {
			s[fold.String(alias)] = name
		}
	}
	return s
}

// Resolve returns the canonical keyword for a case-folded key.
func (s Synonyms) Resolve(key string) (string, bool) {
	if s == nil {
		return key, true
	}
	canonical, ok := s[key]
	return canonical, ok
}

// Canonical returns the distinct canonical keywords of the table, sorted.
func (s Synonyms) Canonical() []string {
	seen := make(map[string]struct{}, len(s))
	var out []string
	for _, canonical := range s {
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out
}

// newFolder returns an invariant-culture lower-caser. Casers keep state,
// so each parse gets its own.
func newFolder() cases.Caser {
	return cases.Lower(language.Und)
}

// FoldKey lower-cases a keyword the same way Parse does.
func FoldKey(key string) string {
	return newFolder().String(key)
}
