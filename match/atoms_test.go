package match

import "testing"

func TestExtractAtoms_Literal(t *testing.T) {
	atoms, ok := extractAtoms(`\x50\x4b\x03\x04`, minAtomLength)
	if !ok {
		t.Fatal("expected atoms")
	}
	if len(atoms) != 1 || string(atoms[0]) != "\x50\x4b\x03\x04" {
		t.Errorf("unexpected atoms: %v", atoms)
	}
}

func TestExtractAtoms_TopLevelAlternation(t *testing.T) {
	atoms, ok := extractAtoms(`\x41\x41\x41|\x42\x42\x42`, minAtomLength)
	if !ok {
		t.Fatal("expected atoms")
	}
	if len(atoms) != 2 {
		t.Fatalf("expected 2 branch atoms, got %d", len(atoms))
	}
}

func TestExtractAtoms_NoQualifyingRun(t *testing.T) {
	_, ok := extractAtoms(`..`, minAtomLength)
	if ok {
		t.Fatal("expected no atoms for a pattern with no literal run")
	}
}

func TestExtractAtoms_OptionalGroupSkipped(t *testing.T) {
	atoms, ok := extractAtoms(`\x50\x4b\x03\x04(\x45\x58\x54)?`, minAtomLength)
	if !ok {
		t.Fatal("expected atoms")
	}
	found := false
	for _, a := range atoms {
		if string(a) == "\x50\x4b\x03\x04" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the required prefix atom among %v", atoms)
	}
}

func TestExtractAtoms_OnlyOptionalRunIsUnfilterable(t *testing.T) {
	// The only run long enough to qualify, "HELLO", sits inside an
	// optional group and need not appear in a match at all: the
	// pattern must be reported unfilterable rather than handing back
	// an atom that can cause a prefilter false negative.
	_, ok := extractAtoms(`x(HELLO)?`, minAtomLength)
	if ok {
		t.Fatal("expected no atoms: the only qualifying run is optional")
	}
}

func TestAtomQuality_PrefersDiverseBytes(t *testing.T) {
	diverse := atomQuality([]byte("\x50\x4b\x03\x04"))
	repeated := atomQuality([]byte("\x00\x00\x00\x00"))
	if diverse <= repeated {
		t.Errorf("expected diverse atom to score higher: diverse=%d repeated=%d", diverse, repeated)
	}
}

func TestIsCommonToken(t *testing.T) {
	if !isCommonToken([]byte("\x00\x00\x00")) {
		t.Error("expected NUL run to be a common token")
	}
	if isCommonToken([]byte("\x50\x4b\x03")) {
		t.Error("did not expect a distinctive run to be a common token")
	}
}
