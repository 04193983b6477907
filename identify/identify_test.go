package identify

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sigmatch/sigmatch/catalog"
	"github.com/sigmatch/sigmatch/pattern"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	specs := []catalog.FormatSpec{
		{
			PUID: "x-fmt/111",
			Name: "Plain Text",
			Signatures: []catalog.SignatureSpec{{
				ID:   "sig_0",
				Name: "any byte",
				Patterns: []catalog.PatternSpec{{Anchor: pattern.BOF, Source: "."}},
			}},
		},
		{
			PUID: "fmt/18",
			Name: "ZIP",
			Signatures: []catalog.SignatureSpec{{
				ID:   "sig_0",
				Name: "zip magic",
				Patterns: []catalog.PatternSpec{{Anchor: pattern.BOF, Source: `PK\x03\x04`}},
			}},
			Extensions: []string{"zip"},
		},
	}
	cat, err := catalog.Compile(specs)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

type collectSink struct {
	records []Record
}

func (s *collectSink) Emit(r Record) error {
	s.records = append(s.records, r)
	return nil
}

func TestDriver_RunEmitsMatchRecord(t *testing.T) {
	cat := testCatalog(t)
	d := New(cat, Config{BufferSize: 16, Concurrency: 2}, time.Millisecond)

	objects := []Object{
		{Name: "a.bin", Size: 4, ReaderAt: bytes.NewReader([]byte("PK\x03\x04"))},
	}

	sink := &collectSink{}
	summary, err := d.Run(context.Background(), objects, sink)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.ObjectsScanned != 1 {
		t.Errorf("expected 1 object scanned, got %d", summary.ObjectsScanned)
	}
	if len(sink.records) == 0 {
		t.Fatal("expected at least one record")
	}

	var sawZip bool
	for _, r := range sink.records {
		if r.Kind == MatchRecord && r.FormatPUID == "fmt/18" {
			sawZip = true
		}
	}
	if !sawZip {
		t.Errorf("expected a MatchRecord for fmt/18, got %+v", sink.records)
	}
}

func TestDriver_StreamingReader(t *testing.T) {
	cat := testCatalog(t)
	d := New(cat, Config{BufferSize: 16}, 0)

	objects := []Object{
		{Name: "b.bin", Size: 4, Reader: strings.NewReader("PK\x03\x04")},
	}

	sink := &collectSink{}
	if _, err := d.Run(context.Background(), objects, sink); err != nil {
		t.Fatal(err)
	}
	// Both x-fmt/111 (any byte) and fmt/18 match: one record per pair.
	if len(sink.records) != 2 || sink.records[0].Kind != MatchRecord || sink.records[1].Kind != MatchRecord {
		t.Fatalf("unexpected records: %+v", sink.records)
	}
}

func TestDriver_SamplerErrorDoesNotAbortBatch(t *testing.T) {
	cat := testCatalog(t)
	d := New(cat, Config{BufferSize: 16}, 0)

	objects := []Object{
		{Name: "unknown-size.bin", Size: -1, ReaderAt: bytes.NewReader([]byte("PK\x03\x04"))},
		{Name: "a.bin", Size: 4, ReaderAt: bytes.NewReader([]byte("PK\x03\x04"))},
	}

	sink := &collectSink{}
	summary, err := d.Run(context.Background(), objects, sink)
	if err != nil {
		t.Fatalf("a per-object error must not abort the batch: %v", err)
	}
	if summary.ObjectsScanned != 2 {
		t.Errorf("expected both objects counted, got %d", summary.ObjectsScanned)
	}

	var sawError, sawMatch bool
	for _, r := range sink.records {
		switch r.Kind {
		case ErrorRecord:
			sawError = true
		case MatchRecord:
			sawMatch = true
		}
	}
	if !sawError || !sawMatch {
		t.Errorf("expected an error record and a match record, got %+v", sink.records)
	}
}

func TestDriver_CancellationBetweenObjects(t *testing.T) {
	cat := testCatalog(t)
	d := New(cat, Config{BufferSize: 16, Concurrency: 1}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	objects := []Object{
		{Name: "a.bin", Size: 4, ReaderAt: bytes.NewReader([]byte("PK\x03\x04"))},
	}

	sink := &collectSink{}
	_, err := d.Run(ctx, objects, sink)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
}

func TestDriver_ExtensionHintRestrictsCandidates(t *testing.T) {
	cat := testCatalog(t)
	d := New(cat, Config{BufferSize: 16, ExtensionHint: true}, 0)

	objects := []Object{
		{Name: "mystery.zip", Size: 4, ReaderAt: bytes.NewReader([]byte("PK\x03\x04"))},
	}

	sink := &collectSink{}
	if _, err := d.Run(context.Background(), objects, sink); err != nil {
		t.Fatal(err)
	}

	for _, r := range sink.records {
		if r.Kind == MatchRecord && r.FormatPUID == "x-fmt/111" {
			t.Errorf("extension hint should have excluded the extensionless generic format, got %+v", sink.records)
		}
	}
}
