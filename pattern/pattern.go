// Package pattern compiles and evaluates the anchored byte-regexes that
// make up a Signature (spec.md C1). A Pattern is built once, at catalog
// load time, and is read-only thereafter: the compiled regex is never
// mutated after construction, unlike the mutable after-the-fact attribute
// the source system attached to its pattern objects.
package pattern

import (
	"github.com/wasilibs/go-re2/experimental"

	"github.com/sigmatch/sigmatch/sigerr"
)

// Anchor is where a Pattern is tested against a Sample.
type Anchor int

const (
	// BOF tests the pattern starting at offset 0 of the head buffer.
	BOF Anchor = iota
	// EOF tests the pattern at any offset within the tail buffer; a
	// pattern that must end at end-of-object says so itself (e.g. "$").
	EOF
	// Variable tests the pattern at any offset within the head buffer.
	Variable
)

func (a Anchor) String() string {
	switch a {
	case BOF:
		return "BOF"
	case EOF:
		return "EOF"
	case Variable:
		return "Variable"
	default:
		return "Unknown"
	}
}

// re is the subset of *regexp.Regexp (wasilibs/go-re2) a Pattern needs.
type re interface {
	FindIndex(b []byte) []int
	String() string
}

// Pattern is one compiled, anchored byte-regex. Immutable after Compile.
type Pattern struct {
	anchor Anchor
	source string
	re     re
}

// Anchor returns where this Pattern is tested.
func (p *Pattern) Anchor() Anchor { return p.anchor }

// Source returns the original regex source text, retained for diagnostics.
func (p *Pattern) Source() string { return p.source }

// Compile builds a Pattern from an anchor and a byte-regex source. The
// dialect is RE2 over raw bytes (Latin-1): '.' matches any byte including
// newline, arbitrary 8-bit literals (including 0x00) are legal, and
// repetition/alternation are unbounded unless the source bounds them.
func Compile(anchor Anchor, source string) (*Pattern, error) {
	if anchor != BOF && anchor != EOF && anchor != Variable {
		return nil, sigerr.Newf(sigerr.BadAnchor, "pattern %q: anchor %d is not one of BOF, EOF, Variable", source, int(anchor))
	}
	compiled, err := experimental.CompileLatin1("(?s)" + source)
	if err != nil {
		return nil, sigerr.Wrap(sigerr.PatternCompile, "compiling pattern "+quote(source), err)
	}
	return &Pattern{anchor: anchor, source: source, re: compiled}, nil
}

// Test evaluates the Pattern against a Sample's head and tail buffers
// according to its anchor. It never inspects bytes outside the buffer its
// anchor designates: a Variable pattern never matches into tail, BOF only
// matches when the match starts at offset 0 of head, and EOF matches
// anywhere in tail.
func (p *Pattern) Test(head, tail []byte) bool {
	switch p.anchor {
	case BOF:
		loc := p.re.FindIndex(head)
		return loc != nil && loc[0] == 0
	case EOF:
		// The pattern source itself encodes the end-anchoring (e.g. a
		// trailing "$"); Test only needs to confirm a match exists
		// somewhere in tail, not that it starts at offset 0.
		return p.re.FindIndex(tail) != nil
	case Variable:
		return p.re.FindIndex(head) != nil
	default:
		// Unreachable: Compile validates the anchor before this Pattern
		// can exist.
		return false
	}
}

func quote(s string) string {
	return "\"" + s + "\""
}
