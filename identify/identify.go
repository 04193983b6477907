// Package identify implements the Driver (spec.md C7): it orchestrates
// sampling and matching per object and emits Records to an abstract
// Sink (one per surviving match, or one NoMatch or Error record), the way the teacher's scanner orchestrated
// ScanMem/ScanFile calls and collected MatchRules.
package identify

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sigmatch/sigmatch/catalog"
	"github.com/sigmatch/sigmatch/match"
	"github.com/sigmatch/sigmatch/sample"
	"github.com/sigmatch/sigmatch/sigerr"
)

// Object is one unit of work handed to the Driver: a name (used only
// for output), a size, and an I/O handle. Exactly one of ReaderAt or
// Reader should be set; ReaderAt is preferred (random-access Sampler
// mode) when both are present.
type Object struct {
	Name     string
	Size     int64
	ReaderAt io.ReaderAt
	Reader   io.Reader
}

// Kind discriminates a Record's shape (spec.md §6).
type Kind int

const (
	// MatchRecord reports one surviving (Format, Signature) pair.
	MatchRecord Kind = iota
	// NoMatchRecord reports that no Format matched the object.
	NoMatchRecord
	// ErrorRecord reports a per-object failure (Sampler Io/UnknownSize).
	// The batch continues; only Driver.Run's returned error can abort it,
	// and only on Cancelled.
	ErrorRecord
)

// Record is one line of Driver output (spec.md §6).
type Record struct {
	Kind      Kind
	Object    string
	Timestamp time.Time
	Elapsed   time.Duration

	// Match fields.
	FormatID      int
	FormatPUID    string
	FormatName    string
	SignatureID   string
	SignatureName string
	MatchCount    int // total surviving pairs for this object

	// NoMatch fields.
	Size int64

	// Error fields.
	Err error
}

// Sink receives Records. Emit is called once per Record in Driver.Run,
// serialized so a Sink implementation never needs its own locking.
type Sink interface {
	Emit(Record) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Record) error

// Emit calls f.
func (f SinkFunc) Emit(r Record) error { return f(r) }

// Config configures one Driver.Run. There is no global/process-wide
// default: every knob is explicit (spec.md §9's Design Note on global
// state).
type Config struct {
	// BufferSize is the Sampler's head/tail buffer size B.
	BufferSize int
	// Concurrency is the number of objects processed in parallel.
	// Values < 1 are treated as 1.
	Concurrency int
	// Instrument enables per-Format/per-Signature timing accumulation.
	Instrument bool
	// ExtensionHint opts into fido-style extension-based prefiltering:
	// when an Object's Name has a recognized extension, only Formats
	// declaring that extension are tested. Off by default; enabling it
	// can change results relative to the unhinted path (a Format whose
	// real signature matches but whose Extensions list omits the file's
	// actual extension will be missed), so it must be opted into per
	// spec.md §9's supplemented feature.
	ExtensionHint bool
}

// Summary is the optional end-of-batch diagnostic report (spec.md §6).
type Summary struct {
	FormatsLoaded  int
	CompileTime    time.Duration
	ObjectsScanned int
	WallTime       time.Duration
	ObjectsPerSec  float64
	TopFormats     []match.Entry
	TopSignatures  []match.Entry
}

// Driver orchestrates Sampler + Matcher over a batch of Objects.
type Driver struct {
	cat     *catalog.Catalog
	matcher *match.Matcher
	cfg     Config

	compileTime time.Duration

	formatAcc    *match.Accumulator
	signatureAcc *match.Accumulator
}

// New builds a Driver for a compiled Catalog. compileTime is recorded
// for the batch Summary and should be the wall time the caller spent in
// catalog.Compile.
func New(cat *catalog.Catalog, cfg Config, compileTime time.Duration) *Driver {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	d := &Driver{
		cat:         cat,
		matcher:     match.New(cat, cfg.Instrument),
		cfg:         cfg,
		compileTime: compileTime,
	}
	if cfg.Instrument {
		d.formatAcc = match.NewAccumulator()
		d.signatureAcc = match.NewAccumulator()
	}
	return d
}

// extensionHint extracts a lower-case extension (no leading dot) from
// an object name, or "" if it has none.
func extensionHint(name string) string {
	dot := -1
	for i := len(name) - 1; i >= 0; i-- {
		c := name[i]
		if c == '/' || c == '\\' {
			return ""
		}
		if c == '.' {
			dot = i
			break
		}
	}
	if dot < 0 || dot == len(name)-1 {
		return ""
	}
	ext := name[dot+1:]
	out := make([]byte, len(ext))
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func hasExtension(f *catalog.Format, ext string) bool {
	for _, e := range f.Extensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// hasFormatsFor reports whether any Format in the Catalog declares ext
// as a hint. A fido-style extension hint only narrows the candidate set
// when it would actually narrow it; an unrecognized extension (or no
// extension at all) falls back to matching the full Catalog.
func (d *Driver) hasFormatsFor(ext string) bool {
	if ext == "" {
		return false
	}
	for _, f := range d.cat.Formats() {
		if hasExtension(f, ext) {
			return true
		}
	}
	return false
}

// Run processes every Object, emitting its Records via sink: one per
// surviving (Format, Signature) pair, or one NoMatch or Error record.
// Processing is cancellable between objects: once ctx is done, Run
// stops dispatching new objects, waits for in-flight ones to finish,
// and returns ctx.Err() wrapped with kind=Cancelled. Records already
// emitted are preserved.
func (d *Driver) Run(ctx context.Context, objects []Object, sink Sink) (Summary, error) {
	start := time.Now()

	var sinkMu sync.Mutex
	emit := func(r Record) error {
		sinkMu.Lock()
		defer sinkMu.Unlock()
		return sink.Emit(r)
	}

	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex
	var processed int64

	for _, obj := range objects {
		select {
		case <-ctx.Done():
			wg.Wait()
			return d.summary(processed, time.Since(start)), sigerr.Wrap(sigerr.Cancelled, "batch cancelled", ctx.Err())
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(obj Object) {
			defer wg.Done()
			defer func() { <-sem }()

			recs := d.processObject(obj)
			for _, rec := range recs {
				if err := emit(rec); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					break
				}
			}
			atomic.AddInt64(&processed, 1)
		}(obj)
	}

	wg.Wait()

	summary := d.summary(processed, time.Since(start))
	if firstErr != nil {
		return summary, firstErr
	}
	return summary, nil
}

func (d *Driver) processObject(obj Object) []Record {
	start := time.Now()

	var samp sample.Sample
	var err error
	switch {
	case obj.ReaderAt != nil:
		samp, err = sample.FromReaderAt(obj.ReaderAt, obj.Size, d.cfg.BufferSize)
	case obj.Reader != nil:
		samp, err = sample.FromReader(obj.Reader, obj.Size, d.cfg.BufferSize)
	default:
		err = sigerr.New(sigerr.IO, "object has neither a ReaderAt nor a Reader")
	}
	if err != nil {
		return []Record{{Kind: ErrorRecord, Object: obj.Name, Timestamp: start, Elapsed: time.Since(start), Err: err}}
	}

	var result match.Result
	ext := extensionHint(obj.Name)
	if d.cfg.ExtensionHint && d.hasFormatsFor(ext) {
		result = d.matcher.MatchHinted(samp.Head, samp.Tail, func(f *catalog.Format) bool {
			return hasExtension(f, ext)
		})
	} else {
		result = d.matcher.Match(samp.Head, samp.Tail)
	}

	if d.cfg.Instrument {
		d.formatAcc.Add(result.Timings)
	}

	elapsed := time.Since(start)
	if len(result.Pairs) == 0 {
		return []Record{{Kind: NoMatchRecord, Object: obj.Name, Timestamp: start, Elapsed: elapsed, Size: obj.Size}}
	}

	if d.cfg.Instrument {
		for _, p := range result.Pairs {
			d.signatureAcc.Add([]match.Timing{{Label: p.Format.PUID() + "#" + p.Signature.ID(), Duration: elapsed}})
		}
	}

	// One Record per surviving (Format, Signature) pair (spec.md §6).
	recs := make([]Record, len(result.Pairs))
	for i, p := range result.Pairs {
		recs[i] = Record{
			Kind:          MatchRecord,
			Object:        obj.Name,
			Timestamp:     start,
			Elapsed:       elapsed,
			FormatID:      p.Format.ID(),
			FormatPUID:    p.Format.PUID(),
			FormatName:    p.Format.Name(),
			SignatureID:   p.Signature.ID(),
			SignatureName: p.Signature.Name(),
			MatchCount:    len(result.Pairs),
		}
	}
	return recs
}

func (d *Driver) summary(objects int64, wall time.Duration) Summary {
	s := Summary{
		FormatsLoaded:  len(d.cat.Formats()),
		CompileTime:    d.compileTime,
		ObjectsScanned: int(objects),
		WallTime:       wall,
	}
	if wall > 0 {
		s.ObjectsPerSec = float64(objects) / wall.Seconds()
	}
	if d.cfg.Instrument {
		s.TopFormats = d.formatAcc.Top(10)
		s.TopSignatures = d.signatureAcc.Top(10)
	}
	return s
}
