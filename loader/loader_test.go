package loader

import (
	"testing"

	"github.com/sigmatch/sigmatch/catalog"
	"github.com/sigmatch/sigmatch/pattern"
)

func TestParse_Basic(t *testing.T) {
	src := `
format "x-fmt/111" "Plain Text File" {
	extensions "txt" "text"
	signature "sig_0" {
		pattern BOF regex "."
	}
}
`
	specs, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected 1 format, got %d", len(specs))
	}
	f := specs[0]
	if f.PUID != "x-fmt/111" || f.Name != "Plain Text File" {
		t.Errorf("unexpected format: %+v", f)
	}
	if len(f.Extensions) != 2 || f.Extensions[0] != "txt" || f.Extensions[1] != "text" {
		t.Errorf("unexpected extensions: %v", f.Extensions)
	}
	if len(f.Signatures) != 1 || len(f.Signatures[0].Patterns) != 1 {
		t.Fatalf("unexpected signatures: %+v", f.Signatures)
	}
	p := f.Signatures[0].Patterns[0]
	if p.Anchor != pattern.BOF || p.Source != "." {
		t.Errorf("unexpected pattern: %+v", p)
	}
}

func TestParse_PriorityAndHex(t *testing.T) {
	src := `
format "x-fmt/generic-zip" "Generic ZIP" {
	signature "sig_0" {
		pattern BOF hex "504B0304"
	}
}
format "fmt/docx" "Microsoft Word (OOXML)" {
	signature "sig_0" {
		pattern BOF hex "504B0304"
		pattern VAR hex "776F72642F"
	}
	priority over "x-fmt/generic-zip"
}
`
	specs, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 formats, got %d", len(specs))
	}
	docx := specs[1]
	if len(docx.PriorityOver) != 1 || docx.PriorityOver[0] != "x-fmt/generic-zip" {
		t.Errorf("unexpected priority targets: %v", docx.PriorityOver)
	}
	if docx.Signatures[0].Patterns[0].Source != `(?s)\x50\x4b\x03\x04` {
		t.Errorf("unexpected hex-derived regex: %q", docx.Signatures[0].Patterns[0].Source)
	}

	cat, err := catalog.Compile(specs)
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Formats()) != 2 {
		t.Fatalf("expected catalog to compile 2 formats, got %d", len(cat.Formats()))
	}
}

func TestParse_InvalidSyntax(t *testing.T) {
	_, err := New().Parse(`format "fmt/1" {`)
	if err == nil {
		t.Fatal("expected parse error for malformed document")
	}
}

func TestParse_HexWildcardAndJump(t *testing.T) {
	src := `
format "fmt/1" "Test" {
	signature "sig_0" {
		pattern BOF hex "50??[2-4]04"
	}
}
`
	specs, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	got := specs[0].Signatures[0].Patterns[0].Source
	want := `(?s)\x50..{2,4}\x04`
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
