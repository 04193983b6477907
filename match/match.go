// Package match implements the Matcher (spec.md C6): the two-pass
// priority-reduction algorithm that turns a Sample and a Catalog into
// the set of surviving (Format, Signature) Pairs. An Aho-Corasick
// automaton over literal atoms pulled from Pattern regex sources
// prefilters which Formats are even worth testing, keeping per-object
// cost close to the size of the buffers rather than the size of the
// Catalog.
package match

import (
	"time"

	"github.com/sigmatch/sigmatch/ahocorasick"
	"github.com/sigmatch/sigmatch/catalog"
	"github.com/sigmatch/sigmatch/pattern"
)

// Pair is one surviving match: a Format together with the Signature
// that matched it (spec.md §4.3 — a Format contributes at most one
// Signature per object).
type Pair struct {
	Format    *catalog.Format
	Signature *catalog.Signature
}

// Result is everything Match produces for one object.
type Result struct {
	Pairs   []Pair
	Timings []Timing // nil unless the Matcher was built with instrumentation
}

// patternFilter is the prefilter state computed for a single Pattern:
// which automaton (head- or tail-scanned) owns its atoms, and the atom
// ids a match must contain at least one of. Filterable is false when
// extractAtoms found nothing usable, meaning the pattern can never be
// ruled out and must always be evaluated.
type patternFilter struct {
	filterable bool
	onTail     bool
	atomIDs    []int
}

// Matcher holds one Catalog's compiled prefilter state. Build once per
// Catalog and reuse across every object (spec.md §5: a Matcher is safe
// for concurrent use by multiple goroutines, since Match never mutates
// Matcher state).
type Matcher struct {
	catalog *catalog.Catalog

	headAC ahocorasick.AhoCorasick
	tailAC ahocorasick.AhoCorasick

	// filters[formatIdx][sigIdx][patIdx] mirrors the Catalog's own
	// nesting so a pattern's filter can be looked up by position.
	filters [][][]patternFilter

	instrument       bool
	disablePrefilter bool
}

// SetPrefilterDisabled forces every Format to be tested directly,
// bypassing the Aho-Corasick atom prefilter. It exists for benchmark
// comparison (cmd/sigbench) and should not be used outside of it —
// disabling the prefilter never changes MatchResult, only its cost.
func (m *Matcher) SetPrefilterDisabled(disabled bool) {
	m.disablePrefilter = disabled
}

// New builds a Matcher for a Catalog. When instrument is true, Match
// also returns per-Format and per-Signature Timings.
func New(cat *catalog.Catalog, instrument bool) *Matcher {
	m := &Matcher{catalog: cat, instrument: instrument}

	var headAtoms, tailAtoms [][]byte
	headIDs := make(map[string]int)
	tailIDs := make(map[string]int)

	internAtom := func(ids map[string]int, atoms *[][]byte, atom []byte) int {
		key := string(atom)
		if id, ok := ids[key]; ok {
			return id
		}
		id := len(*atoms)
		ids[key] = id
		*atoms = append(*atoms, atom)
		return id
	}

	formats := cat.Formats()
	m.filters = make([][][]patternFilter, len(formats))
	for fi, f := range formats {
		sigs := f.Signatures()
		m.filters[fi] = make([][]patternFilter, len(sigs))
		for si, sig := range sigs {
			pats := sig.Patterns()
			m.filters[fi][si] = make([]patternFilter, len(pats))
			for pi, p := range pats {
				pf := patternFilter{}
				if p.Anchor() == pattern.EOF {
					pf.onTail = true
					if atoms, ok := extractAtoms(p.Source(), minAtomLength); ok {
						pf.filterable = true
						for _, a := range atoms {
							pf.atomIDs = append(pf.atomIDs, internAtom(tailIDs, &tailAtoms, a))
						}
					}
				} else {
					if atoms, ok := extractAtoms(p.Source(), minAtomLength); ok {
						pf.filterable = true
						for _, a := range atoms {
							pf.atomIDs = append(pf.atomIDs, internAtom(headIDs, &headAtoms, a))
						}
					}
				}
				m.filters[fi][si][pi] = pf
			}
		}
	}

	headBuilder := ahocorasick.NewAhoCorasickBuilder()
	m.headAC = headBuilder.BuildByte(headAtoms)
	tailBuilder := ahocorasick.NewAhoCorasickBuilder()
	m.tailAC = tailBuilder.BuildByte(tailAtoms)

	return m
}

// foundSet scans buf for atoms via ac and returns the set of atom ids
// that occurred at least once.
func foundSet(ac ahocorasick.AhoCorasick, buf []byte) map[int]bool {
	found := make(map[int]bool)
	iter := ac.IterOverlappingByte(buf)
	for {
		mt := iter.Next()
		if mt == nil {
			break
		}
		found[mt.Pattern()] = true
	}
	return found
}

// patternPossible reports whether pf's pattern could still match given
// the atoms actually observed in the relevant buffer. An unfilterable
// pattern is always possible.
func patternPossible(pf patternFilter, foundHead, foundTail map[int]bool) bool {
	if !pf.filterable {
		return true
	}
	found := foundHead
	if pf.onTail {
		found = foundTail
	}
	for _, id := range pf.atomIDs {
		if found[id] {
			return true
		}
	}
	return false
}

// Match runs the Matcher against one object's Sample buffers and
// returns the surviving Pairs after priority reduction (spec.md §4.6).
func (m *Matcher) Match(head, tail []byte) Result {
	return m.match(head, tail, nil)
}

// MatchHinted restricts which Formats are even considered before the
// priority reduction runs. It exists for the extension-hint
// optimization (spec.md §9's recovered fido behavior): callers opt in
// explicitly, and a nil allow predicate is identical to Match.
// Formats the predicate excludes are never tested and never
// contribute to priority reduction, the same way the default matching
// path would if they simply weren't in the Catalog.
func (m *Matcher) MatchHinted(head, tail []byte, allow func(*catalog.Format) bool) Result {
	return m.match(head, tail, allow)
}

func (m *Matcher) match(head, tail []byte, allow func(*catalog.Format) bool) Result {
	foundHead := foundSet(m.headAC, head)
	foundTail := foundSet(m.tailAC, tail)

	type candidate struct {
		f   *catalog.Format
		sig *catalog.Signature
	}

	var candidates []candidate
	var timings []Timing

	formats := m.catalog.Formats()
	for fi, f := range formats {
		if allow != nil && !allow(f) {
			continue
		}
		var start time.Time
		if m.instrument {
			start = time.Now()
		}
		sig, ok := m.testFormat(fi, f, head, tail, foundHead, foundTail)
		if m.instrument {
			timings = append(timings, Timing{Label: f.PUID(), Duration: time.Since(start)})
		}
		if ok {
			candidates = append(candidates, candidate{f: f, sig: sig})
		}
	}

	// Pass 1: insert in catalog order, dropping a candidate dominated by
	// anything already retained, and evicting any retained candidate the
	// new arrival dominates.
	retained := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		dominated := false
		for _, r := range retained {
			if r.f.Dominates(c.f.ID()) {
				dominated = true
				break
			}
		}
		if dominated {
			continue
		}
		kept := retained[:0]
		for _, r := range retained {
			if !c.f.Dominates(r.f.ID()) {
				kept = append(kept, r)
			}
		}
		retained = append(kept, c)
	}

	// Pass 2: order-dependent insertion can leave a retained entry that
	// is dominated by another retained entry added after it (its
	// dominator wasn't present yet at insertion time). O(|R|^2) but R is
	// the surviving-match set, not the Catalog — see spec.md's Open
	// Questions.
	final := make([]Pair, 0, len(retained))
	for i, r := range retained {
		dominated := false
		for j, other := range retained {
			if i == j {
				continue
			}
			if other.f.Dominates(r.f.ID()) {
				dominated = true
				break
			}
		}
		if !dominated {
			final = append(final, Pair{Format: r.f, Signature: r.sig})
		}
	}

	return Result{Pairs: final, Timings: timings}
}

func (m *Matcher) testFormat(fi int, f *catalog.Format, head, tail []byte, foundHead, foundTail map[int]bool) (*catalog.Signature, bool) {
	for si, sig := range f.Signatures() {
		if m.signaturePossible(fi, si, foundHead, foundTail) && sig.Test(head, tail) {
			return sig, true
		}
	}
	return nil, false
}

func (m *Matcher) signaturePossible(fi, si int, foundHead, foundTail map[int]bool) bool {
	if m.disablePrefilter {
		return true
	}
	for _, pf := range m.filters[fi][si] {
		if !patternPossible(pf, foundHead, foundTail) {
			return false
		}
	}
	return true
}
