// Package catalog holds the compiled, immutable format catalog (spec.md
// C2, C3, C4): Signatures, Formats, and the Catalog that resolves
// priority references and precompiles every Pattern once at load.
package catalog

import (
	"errors"
	"fmt"

	"github.com/sigmatch/sigmatch/pattern"
	"github.com/sigmatch/sigmatch/sigerr"
)

// PatternSpec is the uncompiled shape of a Pattern, as a loader hands it
// to Compile.
type PatternSpec struct {
	Anchor pattern.Anchor
	Source string
}

// SignatureSpec is the uncompiled shape of a Signature.
type SignatureSpec struct {
	ID       string
	Name     string
	Patterns []PatternSpec
}

// FormatSpec is the uncompiled shape of a Format, as produced by an
// external loader (spec.md §6) and handed to Compile.
type FormatSpec struct {
	PUID         string
	Name         string
	Signatures   []SignatureSpec
	PriorityOver []string // PUIDs this format has priority over
	Extensions   []string // lower-case file extensions, no leading dot
}

// Signature is a conjunction of Patterns: it matches iff all of its
// Patterns match (spec.md C2).
type Signature struct {
	id       string
	name     string
	patterns []*pattern.Pattern
}

// ID returns the Signature's stable identifier.
func (s *Signature) ID() string { return s.id }

// Name returns the Signature's display name.
func (s *Signature) Name() string { return s.name }

// Patterns returns the Signature's Patterns in declared order.
func (s *Signature) Patterns() []*pattern.Pattern { return s.patterns }

// Test evaluates every Pattern in order, short-circuiting on first
// failure (spec.md §4.2).
func (s *Signature) Test(head, tail []byte) bool {
	for _, p := range s.patterns {
		if !p.Test(head, tail) {
			return false
		}
	}
	return true
}

// Format is a named format with one or more Signatures and a set of
// priority targets (spec.md C3).
type Format struct {
	id         int
	puid       string
	name       string
	signatures []*Signature
	extensions []string

	priorityTargets map[int]bool // format ids this Format dominates
}

// ID returns the catalog-assigned numeric key.
func (f *Format) ID() int { return f.id }

// PUID returns the public identifier string, e.g. "x-fmt/263".
func (f *Format) PUID() string { return f.puid }

// Name returns the display name.
func (f *Format) Name() string { return f.name }

// Signatures returns the Format's Signatures in declared order.
func (f *Format) Signatures() []*Signature { return f.signatures }

// Extensions returns the lower-case file extension hints for this
// Format, or nil if none were declared.
func (f *Format) Extensions() []string { return f.extensions }

// Test iterates Signatures in declared order and returns the first one
// that matches (spec.md §4.3). A Format produces at most one match per
// object.
func (f *Format) Test(head, tail []byte) (*Signature, bool) {
	for _, s := range f.signatures {
		if s.Test(head, tail) {
			return s, true
		}
	}
	return nil, false
}

// Dominates reports whether this Format has declared priority over the
// Format with the given id (spec.md §4.6: a ≻ b).
func (f *Format) Dominates(id int) bool {
	return f.priorityTargets[id]
}

// Catalog is the immutable, compiled collection of Formats (spec.md C4).
type Catalog struct {
	formats []*Format
	byPUID  map[string]*Format
}

// Formats returns the Catalog's Formats in declared order.
func (c *Catalog) Formats() []*Format { return c.formats }

// Lookup resolves a Format by its public identifier.
func (c *Catalog) Lookup(puid string) (*Format, bool) {
	f, ok := c.byPUID[puid]
	return f, ok
}

// Compile builds a Catalog from FormatSpecs: it compiles every Pattern,
// resolves priority references by identifier, and rejects a priority
// graph that isn't a DAG (spec.md §4.4).
func Compile(specs []FormatSpec) (*Catalog, error) {
	formats := make([]*Format, 0, len(specs))
	byPUID := make(map[string]*Format, len(specs))

	var errs []error

	for i, spec := range specs {
		if _, dup := byPUID[spec.PUID]; dup {
			errs = append(errs, sigerr.Newf(sigerr.CatalogInvalid, "duplicate format identifier %q", spec.PUID))
			continue
		}
		if len(spec.Signatures) == 0 {
			errs = append(errs, sigerr.Newf(sigerr.CatalogInvalid, "format %q: has no signatures", spec.PUID))
			continue
		}

		f := &Format{id: i, puid: spec.PUID, name: spec.Name, extensions: spec.Extensions}
		for _, sigSpec := range spec.Signatures {
			sig, err := compileSignature(spec.PUID, sigSpec)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			f.signatures = append(f.signatures, sig)
		}

		formats = append(formats, f)
		byPUID[spec.PUID] = f
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := resolvePriorities(specs, formats, byPUID); err != nil {
		return nil, err
	}

	if err := checkAcyclic(formats); err != nil {
		return nil, err
	}

	return &Catalog{formats: formats, byPUID: byPUID}, nil
}

func compileSignature(formatPUID string, spec SignatureSpec) (*Signature, error) {
	if len(spec.Patterns) == 0 {
		return nil, sigerr.Newf(sigerr.CatalogInvalid, "format %q signature %q: has no patterns", formatPUID, spec.ID)
	}
	sig := &Signature{id: spec.ID, name: spec.Name}
	var errs []error
	for _, ps := range spec.Patterns {
		p, err := pattern.Compile(ps.Anchor, ps.Source)
		if err != nil {
			errs = append(errs, fmt.Errorf("format %q signature %q: %w", formatPUID, spec.ID, err))
			continue
		}
		sig.patterns = append(sig.patterns, p)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return sig, nil
}

func resolvePriorities(specs []FormatSpec, formats []*Format, byPUID map[string]*Format) error {
	var errs []error
	for i, spec := range specs {
		if i >= len(formats) {
			break
		}
		f := formats[i]
		f.priorityTargets = make(map[int]bool, len(spec.PriorityOver))
		for _, targetPUID := range spec.PriorityOver {
			target, ok := byPUID[targetPUID]
			if !ok {
				errs = append(errs, sigerr.Newf(sigerr.UnknownPriorityTarget, "format %q: priority target %q is not in this catalog", spec.PUID, targetPUID))
				continue
			}
			f.priorityTargets[target.id] = true
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// checkAcyclic validates the "has priority over" relation is a DAG via
// recursive DFS with three-color marking.
func checkAcyclic(formats []*Format) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(formats))

	var visit func(id int) error
	visit = func(id int) error {
		color[id] = gray
		for target := range formats[id].priorityTargets {
			switch color[target] {
			case gray:
				return sigerr.Newf(sigerr.PriorityCycle, "priority cycle involving format %q", formats[id].puid)
			case white:
				if err := visit(target); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for _, f := range formats {
		if color[f.id] == white {
			if err := visit(f.id); err != nil {
				return err
			}
		}
	}
	return nil
}
