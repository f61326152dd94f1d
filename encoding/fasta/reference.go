package fasta

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Reference provides random access to an indexed FASTA file. Coordinates are
// 1-based and inclusive. Each worker should open its own Reference; the
// methods are nevertheless thread-safe.
type Reference struct {
	path      string
	indexPath string
	index     Index

	mu sync.Mutex
	in file.File
	r  io.ReadSeeker
}

// IndexPath returns the conventional .fai path for a FASTA file.
func IndexPath(path string) string { return path + ".fai" }

// OpenReference opens path and its .fai index. Both must exist; otherwise an
// *IndexFileError is returned.
func OpenReference(ctx context.Context, path string) (*Reference, error) {
	ref := &Reference{path: path, indexPath: IndexPath(path)}
	if _, err := file.Stat(ctx, path); err != nil {
		return nil, &IndexFileError{Path: path, Err: err}
	}
	idxIn, err := file.Open(ctx, ref.indexPath)
	if err != nil {
		return nil, &IndexFileError{Path: ref.indexPath, Err: err}
	}
	ref.index, err = ReadIndex(idxIn.Reader(ctx), ref.indexPath)
	if e := idxIn.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, &IndexFileError{Path: ref.indexPath, Err: err}
	}
	if len(ref.index) == 0 {
		log.Printf("fasta.OpenReference: warning: %s has no usable entries", ref.indexPath)
	}
	if ref.in, err = file.Open(ctx, path); err != nil {
		return nil, &IndexFileError{Path: path, Err: err}
	}
	ref.r = ref.in.Reader(ctx)
	return ref, nil
}

// Index returns the parsed .fai index. The caller must not modify it.
func (ref *Reference) Index() Index { return ref.index }

// Fetch returns the uppercased bases of chrom in [start, end]. start is
// clamped to 1, an end before start means end == start, and end is clamped to
// the sequence length. An unknown chrom yields an error of kind
// errors.NotExist. A read that runs past the end of the file is logged and
// yields "".
func (ref *Reference) Fetch(chrom string, start, end int) (string, error) {
	ent, ok := ref.index[chrom]
	if !ok {
		return "", errors.E(errors.NotExist, fmt.Sprintf("fasta.Fetch: sequence %s not found in index %s", chrom, ref.indexPath))
	}
	if start < 1 {
		start = 1
	}
	if end < start {
		end = start
	}
	if end > ent.Length {
		end = ent.Length
	}
	if start > end {
		return "", nil
	}
	startOff, endOff := ent.ByteOffset(start), ent.ByteOffset(end)
	buf := make([]byte, endOff-startOff+1)

	ref.mu.Lock()
	defer ref.mu.Unlock()
	if _, err := ref.r.Seek(startOff-1, io.SeekStart); err != nil {
		log.Error.Printf("fasta.Fetch: %s:%d-%d: seek %d: %v", chrom, start, end, startOff-1, err)
		return "", nil
	}
	if _, err := io.ReadFull(ref.r, buf); err != nil {
		log.Error.Printf("fasta.Fetch: %s:%d-%d: read %d bytes at %d: %v", chrom, start, end, len(buf), startOff-1, err)
		return "", nil
	}
	return cleanBases(buf), nil
}

// cleanBases drops line terminators and uppercases in place.
func cleanBases(buf []byte) string {
	n := 0
	for _, c := range buf {
		if c == '\n' || c == '\r' {
			continue
		}
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		buf[n] = c
		n++
	}
	return string(buf[:n])
}

// Base returns the base at pos, or "" if pos is outside the sequence.
func (ref *Reference) Base(chrom string, pos int) (string, error) {
	if pos < 1 {
		return "", nil
	}
	if ent, ok := ref.index[chrom]; ok && pos > ent.Length {
		return "", nil
	}
	return ref.Fetch(chrom, pos, pos)
}

// Context returns the bases in [pos-flank, pos+flank]. A negative flank is
// treated as 0.
func (ref *Reference) Context(chrom string, pos, flank int) (string, error) {
	if flank < 0 {
		flank = 0
	}
	return ref.Fetch(chrom, pos-flank, pos+flank)
}

// Get implements Fasta.Get().
func (ref *Reference) Get(seqName string, start, end uint64) (string, error) {
	if end <= start {
		return "", fmt.Errorf("start must be less than end")
	}
	ent, ok := ref.index[seqName]
	if !ok {
		return "", fmt.Errorf("sequence not found in index: %s", seqName)
	}
	if end > uint64(ent.Length) {
		return "", fmt.Errorf("end is past end of sequence %s: %d", seqName, ent.Length)
	}
	return ref.Fetch(seqName, int(start)+1, int(end))
}

// Len implements Fasta.Len().
func (ref *Reference) Len(seqName string) (uint64, error) {
	ent, ok := ref.index[seqName]
	if !ok {
		return 0, fmt.Errorf("sequence not found in index: %s", seqName)
	}
	return uint64(ent.Length), nil
}

// SeqNames implements Fasta.SeqNames().
func (ref *Reference) SeqNames() []string { return ref.index.SeqNames() }

// Close releases the underlying file.
func (ref *Reference) Close(ctx context.Context) error {
	ref.mu.Lock()
	defer ref.mu.Unlock()
	if ref.in == nil {
		return nil
	}
	err := ref.in.Close(ctx)
	ref.in, ref.r = nil, nil
	return err
}
