package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sigmatch/sigmatch/sigerr"
)

// Hex pattern syntax mirrors the PRONOM/DROID byte-sequence convention:
// a run of hex digit pairs, "??" wildcards, "[n-m]"/"[n]"/"[-]" gaps of
// unknown bytes, and "(aa|bb|??)" single-position alternations. Loader
// DSL authors write these instead of hand-rolled regex for the common
// case, and the loader lowers them to the same RE2 dialect pattern.Compile
// accepts.

type hexToken interface{ hexToken() }

type hexByte struct{ value byte }

func (hexByte) hexToken() {}

type hexWildcard struct{}

func (hexWildcard) hexToken() {}

// hexJump represents a gap of min..max unknown bytes. nil bounds are
// unbounded in that direction.
type hexJump struct{ min, max *int }

func (hexJump) hexToken() {}

type hexAltItem struct {
	b        *byte
	wildcard bool
}

type hexAlt struct{ items []hexAltItem }

func (hexAlt) hexToken() {}

// parseHexTokens parses a PRONOM-style hex byte sequence into tokens.
func parseHexTokens(s string) ([]hexToken, error) {
	var toks []hexToken
	i := 0
	for i < len(s) {
		switch {
		case s[i] == ' ' || s[i] == '\t':
			i++
		case s[i] == '?':
			if i+1 < len(s) && s[i+1] == '?' {
				toks = append(toks, hexWildcard{})
				i += 2
				continue
			}
			return nil, sigerr.Newf(sigerr.CatalogInvalid, "hex pattern %q: lone '?' at offset %d", s, i)
		case s[i] == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, sigerr.Newf(sigerr.CatalogInvalid, "hex pattern %q: unterminated '[' at offset %d", s, i)
			}
			j, err := parseJump(s[i+1 : i+end])
			if err != nil {
				return nil, fmt.Errorf("hex pattern %q: %w", s, err)
			}
			toks = append(toks, j)
			i += end + 1
		case s[i] == '(':
			end := strings.IndexByte(s[i:], ')')
			if end < 0 {
				return nil, sigerr.Newf(sigerr.CatalogInvalid, "hex pattern %q: unterminated '(' at offset %d", s, i)
			}
			alt, err := parseAlt(s[i+1 : i+end])
			if err != nil {
				return nil, fmt.Errorf("hex pattern %q: %w", s, err)
			}
			toks = append(toks, alt)
			i += end + 1
		case isHexDigit(s[i]):
			if i+1 >= len(s) || !isHexDigit(s[i+1]) {
				return nil, sigerr.Newf(sigerr.CatalogInvalid, "hex pattern %q: odd number of hex digits at offset %d", s, i)
			}
			v, _ := strconv.ParseUint(s[i:i+2], 16, 8)
			toks = append(toks, hexByte{value: byte(v)})
			i += 2
		default:
			return nil, sigerr.Newf(sigerr.CatalogInvalid, "hex pattern %q: unexpected character %q at offset %d", s, s[i], i)
		}
	}
	return toks, nil
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func parseJump(body string) (hexJump, error) {
	if body == "-" {
		return hexJump{}, nil
	}
	parts := strings.SplitN(body, "-", 2)
	min, err := atoiPtr(parts[0])
	if err != nil {
		return hexJump{}, err
	}
	if len(parts) == 1 {
		return hexJump{min: min, max: min}, nil
	}
	max, err := atoiPtr(parts[1])
	if err != nil {
		return hexJump{}, err
	}
	return hexJump{min: min, max: max}, nil
}

func atoiPtr(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	return &n, nil
}

func parseAlt(body string) (hexAlt, error) {
	var alt hexAlt
	for _, part := range strings.Split(body, "|") {
		part = strings.TrimSpace(part)
		if part == "??" {
			alt.items = append(alt.items, hexAltItem{wildcard: true})
			continue
		}
		if len(part) != 2 || !isHexDigit(part[0]) || !isHexDigit(part[1]) {
			return hexAlt{}, sigerr.Newf(sigerr.CatalogInvalid, "alternation item %q must be two hex digits or '??'", part)
		}
		v, _ := strconv.ParseUint(part, 16, 8)
		b := byte(v)
		alt.items = append(alt.items, hexAltItem{b: &b})
	}
	return alt, nil
}

// hexTokensToRegex lowers hex tokens to an RE2 source, coalescing runs of
// wildcards into a single ".{n}" rather than n separate dots.
func hexTokensToRegex(toks []hexToken) string {
	var sb strings.Builder
	i := 0
	for i < len(toks) {
		switch t := toks[i].(type) {
		case hexByte:
			fmt.Fprintf(&sb, "\\x%02x", t.value)
			i++
		case hexWildcard:
			count := 1
			for i+count < len(toks) {
				if _, ok := toks[i+count].(hexWildcard); ok {
					count++
				} else {
					break
				}
			}
			if count == 1 {
				sb.WriteByte('.')
			} else {
				fmt.Fprintf(&sb, ".{%d}", count)
			}
			i += count
		case hexJump:
			writeJump(&sb, t)
			i++
		case hexAlt:
			writeAlt(&sb, t)
			i++
		default:
			i++
		}
	}
	return sb.String()
}

func writeJump(sb *strings.Builder, j hexJump) {
	switch {
	case j.min == nil && j.max == nil:
		sb.WriteString(".*")
	case j.min != nil && j.max != nil && *j.min == *j.max:
		fmt.Fprintf(sb, ".{%d}", *j.min)
	case j.min != nil && j.max != nil:
		fmt.Fprintf(sb, ".{%d,%d}", *j.min, *j.max)
	case j.min != nil:
		fmt.Fprintf(sb, ".{%d,}", *j.min)
	case j.max != nil:
		fmt.Fprintf(sb, ".{0,%d}", *j.max)
	}
}

func writeAlt(sb *strings.Builder, a hexAlt) {
	sb.WriteString("(?:")
	for i, item := range a.items {
		if i > 0 {
			sb.WriteByte('|')
		}
		if item.wildcard {
			sb.WriteByte('.')
		} else if item.b != nil {
			fmt.Fprintf(sb, "\\x%02x", *item.b)
		}
	}
	sb.WriteByte(')')
}
