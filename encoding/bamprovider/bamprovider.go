package bamprovider

import (
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/posinfo/pileup"
	"v.io/x/lib/vlog"
)

// BAMProvider implements Provider for BAM files. The BAM and its index are
// opened through grailbio/base/file on first use. Thread safe.
type BAMProvider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	// Index is the pathname of *.bam.bai file. If "", Path + ".bai"
	Index string
	err   errors.Once

	mu     sync.Mutex
	closed bool
	header *sam.Header
	in     file.File
	reader *bam.Reader
	index  *bam.Index
}

func (b *BAMProvider) indexPath() string {
	index := b.Index
	if index == "" {
		index = b.Path + ".bai"
	}
	return index
}

// open opens the BAM file and its index, if that hasn't happened already.
//
// REQUIRES: b.mu is held.
func (b *BAMProvider) open() error {
	if b.closed {
		vlog.Fatalf("bamprovider: %s: use after Close", b.Path)
	}
	if err := b.err.Err(); err != nil {
		return err
	}
	if b.reader != nil {
		return nil
	}
	ctx := vcontext.Background()
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		b.err.Set(err)
		return err
	}
	indexIn, err := file.Open(ctx, b.indexPath())
	if err != nil {
		in.Close(ctx) // nolint: errcheck
		b.err.Set(err)
		return err
	}
	defer indexIn.Close(ctx) // nolint: errcheck
	idx, err := bam.ReadIndex(indexIn.Reader(ctx))
	if err != nil {
		in.Close(ctx) // nolint: errcheck
		b.err.Set(fmt.Errorf("bamprovider: read index %s: %v", b.indexPath(), err))
		return b.err.Err()
	}
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		in.Close(ctx) // nolint: errcheck
		b.err.Set(err)
		return err
	}
	b.in, b.reader, b.index = in, reader, idx
	b.header = reader.Header()
	return nil
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.open(); err != nil {
		return nil, err
	}
	return b.header, nil
}

// Column implements the pileup.Source interface. A chromosome missing from
// the header, or a position with no indexed reads, yields an empty column.
func (b *BAMProvider) Column(chrom string, pos int) (pileup.Column, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	col := pileup.Column{Chrom: chrom, Pos: pos}
	if err := b.open(); err != nil {
		return col, err
	}
	ref := RefByName(b.header, chrom)
	pos0 := pos - 1
	if ref == nil || pos0 < 0 || pos0 >= ref.Len() {
		return col, nil
	}
	chunks, err := b.index.Chunks(ref, pos0, pos0+1)
	if err == index.ErrInvalid || len(chunks) == 0 {
		return col, nil
	}
	if err != nil {
		b.err.Set(err)
		return col, err
	}
	if err := b.reader.Seek(chunks[0].Begin); err != nil {
		b.err.Set(err)
		return col, err
	}
	var recs []*sam.Record
	for {
		rec, err := b.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			b.err.Set(err)
			return col, err
		}
		if rec.Ref == nil || rec.Ref.ID() > ref.ID() || (rec.Ref.ID() == ref.ID() && rec.Pos > pos0) {
			break
		}
		if rec.Ref.ID() < ref.ID() || rec.End() <= pos0 {
			continue
		}
		recs = append(recs, rec)
	}
	return pileup.NewColumn(chrom, pos, recs), nil
}

// Close implements the Provider interface. It returns the first error
// encountered by the provider.
func (b *BAMProvider) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		vlog.Fatalf("bamprovider: %s: closed twice", b.Path)
	}
	b.closed = true
	if b.reader != nil {
		b.err.Set(b.reader.Close())
		b.reader = nil
	}
	if b.in != nil {
		b.err.Set(b.in.Close(vcontext.Background()))
		b.in = nil
	}
	return b.err.Err()
}
