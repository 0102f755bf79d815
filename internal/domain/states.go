package domain

import (
	"sort"
	"strings"
)

// StateEntry is one line of the reference abbreviations file.
type StateEntry struct {
	Name string // full state name, may be empty for single-column files
	Code string // canonical code, usually the USPS two-letter abbreviation
}

// StateSet is the canonical, deduplicated set of valid state identifiers.
// Lookup accepts either the code or the full name; the code is the canonical
// form used as the reconciliation key.
type StateSet struct {
	codes      map[string]string // upper code -> canonical code as listed
	nameToCode map[string]string // lower full name -> canonical code
	ordered    []string
}

// NewStateSet builds a StateSet from reference entries. Blank codes are
// skipped; duplicate codes collapse to the first occurrence.
func NewStateSet(entries []StateEntry) StateSet {
	s := StateSet{
		codes:      make(map[string]string, len(entries)),
		nameToCode: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			continue
		}
		key := strings.ToUpper(code)
		if _, ok := s.codes[key]; !ok {
			s.codes[key] = code
			s.ordered = append(s.ordered, code)
		}
		if name := strings.ToLower(strings.TrimSpace(e.Name)); name != "" {
			s.nameToCode[name] = code
		}
	}
	sort.Strings(s.ordered)
	return s
}

// Resolve maps a raw state identifier to its canonical code. It accepts the
// code itself (any case) or the full state name from the reference file.
func (s StateSet) Resolve(value string) (string, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", false
	}
	if code, ok := s.codes[strings.ToUpper(v)]; ok {
		return code, true
	}
	if code, ok := s.nameToCode[strings.ToLower(v)]; ok {
		return code, true
	}
	return "", false
}

// Codes returns the canonical codes in sorted order.
func (s StateSet) Codes() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len reports the number of canonical codes.
func (s StateSet) Len() int { return len(s.ordered) }
