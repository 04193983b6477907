// Package sample implements the Sampler (spec.md C5): reading a fixed
// head buffer and fixed tail buffer from an object of known size, so the
// rest of the engine never has to hold a whole object in memory.
package sample

import (
	"errors"
	"io"

	"github.com/sigmatch/sigmatch/sigerr"
)

// Sample is the (head, tail, size) triple derived from one object.
type Sample struct {
	Head []byte
	Tail []byte
	Size int64
}

// UnknownSize is the sentinel an Object reports when its size cannot be
// determined in advance. Sampling such a source fails with kind=UnknownSize.
const UnknownSize int64 = -1

// FromReaderAt samples a seekable (random-access) source: spec.md's
// "Random-access mode". It reads min(size, bufSize) bytes from offset 0
// into head, and, if size > bufSize, reads the last bufSize bytes
// directly via ReadAt at offset size-bufSize.
func FromReaderAt(ra io.ReaderAt, size int64, bufSize int) (Sample, error) {
	if err := validate(size, bufSize); err != nil {
		return Sample{}, err
	}

	headLen := minI64(size, int64(bufSize))
	head := make([]byte, headLen)
	if headLen > 0 {
		if err := readAtFull(ra, head, 0); err != nil {
			return Sample{}, sigerr.Wrap(sigerr.IO, "reading head buffer", err)
		}
	}

	if size <= int64(bufSize) {
		return Sample{Head: head, Tail: head, Size: size}, nil
	}

	tail := make([]byte, bufSize)
	if err := readAtFull(ra, tail, size-int64(bufSize)); err != nil {
		return Sample{}, sigerr.Wrap(sigerr.IO, "reading tail buffer", err)
	}
	return Sample{Head: head, Tail: tail, Size: size}, nil
}

// FromReader samples a forward-only source of known size: spec.md's
// "Streaming mode", used for archive entries that cannot be re-read from
// the start. It reads head, then advances to the tail's start offset
// without ever seeking backward.
//
// When size < 2*bufSize, the tail's start offset falls inside the region
// already captured by head; those bytes are reused directly from head
// instead of attempting to re-read them, which is where a naive
// forward-only implementation undershoots (spec.md §9, second Open
// Question).
func FromReader(r io.Reader, size int64, bufSize int) (Sample, error) {
	if err := validate(size, bufSize); err != nil {
		return Sample{}, err
	}

	B := int64(bufSize)
	headLen := minI64(size, B)
	head := make([]byte, headLen)
	if headLen > 0 {
		if _, err := io.ReadFull(r, head); err != nil {
			return Sample{}, sigerr.Wrap(sigerr.IO, "reading head buffer", err)
		}
	}

	if size <= B {
		return Sample{Head: head, Tail: head, Size: size}, nil
	}

	tail := make([]byte, B)
	remainder := size - 2*B // bytes to skip between head's end and tail's start; negative means overlap
	if remainder >= 0 {
		if remainder > 0 {
			if _, err := io.CopyN(io.Discard, r, remainder); err != nil {
				return Sample{}, sigerr.Wrap(sigerr.IO, "skipping to tail offset", err)
			}
		}
		if _, err := io.ReadFull(r, tail); err != nil {
			return Sample{}, sigerr.Wrap(sigerr.IO, "reading tail buffer", err)
		}
	} else {
		overlap := -remainder // == 2B - size, the number of tail bytes already sitting in head
		copy(tail[:overlap], head[B-overlap:])
		if _, err := io.ReadFull(r, tail[overlap:]); err != nil {
			return Sample{}, sigerr.Wrap(sigerr.IO, "reading tail buffer", err)
		}
	}

	return Sample{Head: head, Tail: tail, Size: size}, nil
}

func validate(size int64, bufSize int) error {
	if size == UnknownSize || size < 0 {
		return sigerr.New(sigerr.UnknownSize, "object size must be known in advance")
	}
	if bufSize < 1 {
		return sigerr.Newf(sigerr.IO, "buffer size must be >= 1, got %d", bufSize)
	}
	return nil
}

func readAtFull(ra io.ReaderAt, buf []byte, off int64) error {
	n, err := ra.ReadAt(buf, off)
	if n == len(buf) && (err == nil || errors.Is(err, io.EOF)) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
