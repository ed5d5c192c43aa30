// ABOUTME: Flat text codec for nested lists stored in single SQLite columns.
// ABOUTME: Records of key:value pairs joined by ',' and ';' with backslash escaping.
package codec

import (
	"errors"
	"strings"
)

const (
	recordSep = ';'
	pairSep   = ','
	kvSep     = ':'
	escape    = '\\'
)

// ErrDanglingEscape is returned when an encoded string ends in a lone backslash.
var ErrDanglingEscape = errors.New("codec: dangling escape")

// ErrMalformedPair is returned when a pair is missing its ':' separator.
var ErrMalformedPair = errors.New("codec: malformed pair")

// Pair is a single key:value entry within a record.
type Pair struct {
	Key   string
	Value string
}

// Escape backslash-escapes every delimiter character in s.
func Escape(s string) string {
	if !strings.ContainsAny(s, `\;:,`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case escape, recordSep, pairSep, kvSep:
			b.WriteRune(escape)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EncodeRecords joins records with ';', pairs with ',' and key/value with ':'.
func EncodeRecords(records [][]Pair) string {
	var b strings.Builder
	for i, rec := range records {
		if i > 0 {
			b.WriteByte(recordSep)
		}
		for j, p := range rec {
			if j > 0 {
				b.WriteByte(pairSep)
			}
			b.WriteString(Escape(p.Key))
			b.WriteByte(kvSep)
			b.WriteString(Escape(p.Value))
		}
	}
	return b.String()
}

// DecodeRecords is the inverse of EncodeRecords. An empty string decodes to nil.
func DecodeRecords(s string) ([][]Pair, error) {
	if s == "" {
		return nil, nil
	}

	recs, err := split(s, recordSep)
	if err != nil {
		return nil, err
	}

	out := make([][]Pair, 0, len(recs))
	for _, rec := range recs {
		var pairs []Pair
		if rec != "" {
			raw, err := split(rec, pairSep)
			if err != nil {
				return nil, err
			}
			for _, p := range raw {
				kv, err := split(p, kvSep)
				if err != nil {
					return nil, err
				}
				if len(kv) != 2 {
					return nil, ErrMalformedPair
				}
				pairs = append(pairs, Pair{Key: unescape(kv[0]), Value: unescape(kv[1])})
			}
		}
		out = append(out, pairs)
	}
	return out, nil
}

// EncodeList joins items with ','.
func EncodeList(items []string) string {
	escaped := make([]string, len(items))
	for i, it := range items {
		escaped[i] = Escape(it)
	}
	return strings.Join(escaped, string(pairSep))
}

// DecodeList is the inverse of EncodeList. An empty string decodes to nil.
func DecodeList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	parts, err := split(s, pairSep)
	if err != nil {
		return nil, err
	}
	for i := range parts {
		parts[i] = unescape(parts[i])
	}
	return parts, nil
}

// split cuts s on unescaped occurrences of sep, leaving escapes in place.
func split(s string, sep byte) ([]string, error) {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case escape:
			if i+1 >= len(s) {
				return nil, ErrDanglingEscape
			}
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:]), nil
}

func unescape(s string) string {
	if !strings.ContainsRune(s, escape) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == escape && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
