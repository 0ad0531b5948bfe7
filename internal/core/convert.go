package core

// convert.go holds the small cleanup helpers shared by the import path and
// the query filters: cell cleanup, header keys, and calendar dates.

import (
	"bytes"
	"strings"
	"time"
	"unicode/utf8"
)

// ISODate is the only layout accepted for date filters and report dates.
const ISODate = "2006-01-02"

// CleanCell trims whitespace and unwraps Excel's ="..." text-forcing
// formula prefix. Quotes inside free text are kept.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}

	return s
}

// headerKey normalizes a header cell for column matching: case, accents
// and inner whitespace runs are ignored.
func headerKey(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return foldKey(strings.Join(strings.Fields(CleanCell(s)), " "))
}

// HeaderIndex maps normalized header names to their column position.
// When a name repeats, the first occurrence wins.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := headerKey(h)
		if key == "" {
			continue
		}
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

// ParseISODate parses a YYYY-MM-DD calendar date at UTC midnight.
func ParseISODate(s string) (time.Time, bool) {
	t, err := time.Parse(ISODate, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DateOnly truncates t to its calendar date at UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
