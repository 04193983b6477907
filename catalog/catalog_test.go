package catalog

import (
	"testing"

	"github.com/sigmatch/sigmatch/pattern"
	"github.com/sigmatch/sigmatch/sigerr"
)

func sig(id, src string, anchor pattern.Anchor) SignatureSpec {
	return SignatureSpec{ID: id, Name: id, Patterns: []PatternSpec{{Anchor: anchor, Source: src}}}
}

func TestCompile_Basic(t *testing.T) {
	specs := []FormatSpec{
		{PUID: "fmt/1", Name: "Plain Text", Signatures: []SignatureSpec{sig("sig_0", ".", pattern.BOF)}},
	}
	cat, err := Compile(specs)
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Formats()) != 1 {
		t.Fatalf("expected 1 format, got %d", len(cat.Formats()))
	}
	f, ok := cat.Lookup("fmt/1")
	if !ok || f.PUID() != "fmt/1" {
		t.Fatal("expected to find fmt/1")
	}
}

func TestCompile_DuplicateIdentifier(t *testing.T) {
	specs := []FormatSpec{
		{PUID: "fmt/1", Name: "A", Signatures: []SignatureSpec{sig("s", "a", pattern.BOF)}},
		{PUID: "fmt/1", Name: "B", Signatures: []SignatureSpec{sig("s", "b", pattern.BOF)}},
	}
	_, err := Compile(specs)
	if err == nil {
		t.Fatal("expected duplicate-identifier error")
	}
	if !sigerr.Is(err, sigerr.CatalogInvalid) {
		t.Errorf("expected CatalogInvalid, got %v", err)
	}
}

func TestCompile_UnknownPriorityTarget(t *testing.T) {
	specs := []FormatSpec{
		{PUID: "fmt/1", Name: "A", Signatures: []SignatureSpec{sig("s", "a", pattern.BOF)}, PriorityOver: []string{"fmt/nope"}},
	}
	_, err := Compile(specs)
	if err == nil {
		t.Fatal("expected error")
	}
	if !sigerr.Is(err, sigerr.UnknownPriorityTarget) {
		t.Errorf("expected UnknownPriorityTarget, got %v", err)
	}
}

func TestCompile_PriorityCycle(t *testing.T) {
	specs := []FormatSpec{
		{PUID: "fmt/1", Name: "A", Signatures: []SignatureSpec{sig("s", "a", pattern.BOF)}, PriorityOver: []string{"fmt/2"}},
		{PUID: "fmt/2", Name: "B", Signatures: []SignatureSpec{sig("s", "b", pattern.BOF)}, PriorityOver: []string{"fmt/1"}},
	}
	_, err := Compile(specs)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !sigerr.Is(err, sigerr.PriorityCycle) {
		t.Errorf("expected PriorityCycle, got %v", err)
	}
}

func TestCompile_PatternCompileError(t *testing.T) {
	specs := []FormatSpec{
		{PUID: "fmt/1", Name: "A", Signatures: []SignatureSpec{sig("s", "(unterminated", pattern.BOF)}},
	}
	_, err := Compile(specs)
	if err == nil {
		t.Fatal("expected error")
	}
	if !sigerr.Is(err, sigerr.PatternCompile) {
		t.Errorf("expected PatternCompile, got %v", err)
	}
}

func TestFormat_Dominates(t *testing.T) {
	specs := []FormatSpec{
		{PUID: "x-fmt/generic", Name: "Generic Zip", Signatures: []SignatureSpec{sig("s", `PK\x03\x04`, pattern.BOF)}},
		{PUID: "fmt/docx", Name: "DOCX", Signatures: []SignatureSpec{sig("s", `PK\x03\x04`, pattern.BOF)}, PriorityOver: []string{"x-fmt/generic"}},
	}
	cat, err := Compile(specs)
	if err != nil {
		t.Fatal(err)
	}
	docx, _ := cat.Lookup("fmt/docx")
	generic, _ := cat.Lookup("x-fmt/generic")
	if !docx.Dominates(generic.ID()) {
		t.Error("expected docx to dominate generic")
	}
	if generic.Dominates(docx.ID()) {
		t.Error("generic must not dominate docx")
	}
}
