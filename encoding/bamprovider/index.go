package bamprovider

import (
	"context"
	"io"

	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
)

// WriteIndex reads a coordinate-sorted .bam file from r, and writes the
// corresponding .bai index to w.
func WriteIndex(w io.Writer, r io.Reader) error {
	reader, err := bam.NewReader(r, 1)
	if err != nil {
		return err
	}
	defer reader.Close() // nolint: errcheck
	var idx bam.Index
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := idx.Add(rec, reader.LastChunk()); err != nil {
			return err
		}
	}
	return bam.WriteIndex(w, &idx)
}

// BuildIndex writes the .bai index of bamPath to indexPath. If indexPath is
// "", it defaults to bamPath + ".bai".
func BuildIndex(ctx context.Context, bamPath, indexPath string) (err error) {
	if indexPath == "" {
		indexPath = bamPath + ".bai"
	}
	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	return WriteIndex(out.Writer(ctx), in.Reader(ctx))
}
