package core

// status.go maps free-text status cells onto the closed Status set.
//
// Keys are folded before lookup: trimmed, lower-cased and stripped of
// diacritics, so "PASSOU", " Passou " and "pássou" all resolve alike.
// Normalize never fails; anything unknown becomes PENDING.

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

var defaultSynonyms = map[string]Status{
	"passou":    StatusPass,
	"pass":      StatusPass,
	"falhou":    StatusFail,
	"fail":      StatusFail,
	"bloqueado": StatusBlocked,
	"blocked":   StatusBlocked,
	"pendente":  StatusPending,
	"pending":   StatusPending,
}

// StatusTable resolves status synonyms. It is read-only after construction
// and safe for concurrent use.
type StatusTable struct {
	synonyms map[string]Status
}

// DefaultStatusTable returns the built-in Portuguese and English synonyms.
func DefaultStatusTable() *StatusTable {
	t := &StatusTable{synonyms: make(map[string]Status, len(defaultSynonyms)+len(Statuses))}
	for k, v := range defaultSynonyms {
		t.synonyms[foldKey(k)] = v
	}
	for _, s := range Statuses {
		t.synonyms[foldKey(string(s))] = s
	}
	return t
}

// WithSynonyms returns a copy of t with extra synonyms merged on top.
// Keys are statuses ("PASS", "fail", ...), values the words mapping to them.
func (t *StatusTable) WithSynonyms(extra map[string][]string) (*StatusTable, error) {
	merged := &StatusTable{synonyms: make(map[string]Status, len(t.synonyms))}
	for k, v := range t.synonyms {
		merged.synonyms[k] = v
	}
	for key, words := range extra {
		status := Status(strings.ToUpper(strings.TrimSpace(key)))
		if !status.Valid() {
			return nil, fmt.Errorf("%w: %q in synonym table", ErrInvalidStatus, key)
		}
		for _, w := range words {
			folded := foldKey(w)
			if folded == "" {
				continue
			}
			merged.synonyms[folded] = status
		}
	}
	return merged, nil
}

// LoadStatusTable reads a YAML synonym file and merges it over the defaults.
// An empty path yields the defaults.
//
// File format:
//
//	PASS: [ok, aprovado]
//	FAIL: [reprovado]
func LoadStatusTable(path string) (*StatusTable, error) {
	base := DefaultStatusTable()
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read status synonyms: %w", err)
	}

	var extra map[string][]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse status synonyms %s: %w", path, err)
	}

	return base.WithSynonyms(extra)
}

// Normalize maps any cell value to exactly one Status.
func (t *StatusTable) Normalize(raw string) Status {
	if s, ok := t.synonyms[foldKey(raw)]; ok {
		return s
	}
	return StatusPending
}

// Len returns the number of known synonyms.
func (t *StatusTable) Len() int {
	return len(t.synonyms)
}

// ParseStatus is the strict form used for manual edits: blank means
// PENDING, otherwise the value must name a status exactly (any case).
func ParseStatus(raw string) (Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StatusPending, nil
	}
	s := Status(strings.ToUpper(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

func foldKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
