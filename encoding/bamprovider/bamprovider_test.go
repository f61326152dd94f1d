package bamprovider_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/posinfo/encoding/bamprovider"
	"github.com/grailbio/posinfo/pileup"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"
)

var (
	chr1, _   = sam.NewReference("chr1", "", "", 1000, nil, nil)
	chr2, _   = sam.NewReference("chr2", "", "", 1000, nil, nil)
	header, _ = sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
)

func newRecord(name string, ref *sam.Reference, pos int, flags sam.Flags, seq string) sam.Record {
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 30
	}
	return sam.Record{
		Name:    name,
		Ref:     ref,
		Pos:     pos,
		MapQ:    60,
		Cigar:   []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, len(seq))},
		Flags:   flags,
		MatePos: -1,
		Seq:     sam.NewSeq([]byte(seq)),
		Qual:    qual,
	}
}

var testRecords = []sam.Record{
	newRecord("r1", chr1, 10, 0, "AC"),
	newRecord("r2", chr1, 11, sam.Reverse, "GTA"),
	newRecord("r3", chr1, 500, 0, "TT"),
	newRecord("r4", chr2, 10, 0, "T"),
}

// writeBAM writes recs to path, along with a .bai index next to it.
func writeBAM(ctx context.Context, t *testing.T, path string, recs []sam.Record) {
	out, err := file.Create(ctx, path)
	require.NoError(t, err)
	w, err := bam.NewWriter(out.Writer(ctx), header, 1)
	require.NoError(t, err)
	for i := range recs {
		require.NoError(t, w.Write(&recs[i]))
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close(ctx))
	require.NoError(t, bamprovider.BuildIndex(ctx, path, ""))
}

func readNames(col pileup.Column) []string {
	names := []string{}
	for _, r := range col.Reads {
		names = append(names, r.Name)
	}
	return names
}

func TestBAMColumn(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	bamPath := filepath.Join(tmpdir, "test.bam")
	writeBAM(ctx, t, bamPath, testRecords)

	p := bamprovider.NewProvider(bamPath)
	h, err := p.GetHeader()
	require.NoError(t, err)
	require.Equal(t, 2, len(h.Refs()))

	for _, test := range []struct {
		chrom string
		pos   int
		names []string
	}{
		{"chr1", 11, []string{"r1"}},
		{"chr1", 12, []string{"r1", "r2"}},
		{"chr1", 14, []string{"r2"}},
		{"chr1", 100, []string{}},
		{"chr1", 501, []string{"r3"}},
		{"chr2", 11, []string{"r4"}},
		{"chr2", 12, []string{}},
		{"chrX", 5, []string{}},
		{"chr1", 2000, []string{}},
		// Revisiting earlier positions must work.
		{"chr1", 12, []string{"r1", "r2"}},
	} {
		col, err := p.Column(test.chrom, test.pos)
		require.NoError(t, err)
		require.Equal(t, test.chrom, col.Chrom)
		require.Equal(t, test.pos, col.Pos)
		require.Equal(t, test.names, readNames(col), "%s:%d", test.chrom, test.pos)
	}

	col, err := p.Column("chr1", 12)
	require.NoError(t, err)
	require.Equal(t, byte('C'), col.Reads[0].Symbol)
	require.Equal(t, byte('G'), col.Reads[1].Symbol)
	require.Equal(t, pileup.RevRead1, col.Reads[1].Category)
	require.Equal(t, 3, col.Reads[1].Cycle)
	require.NoError(t, p.Close())
}

func TestBAMExplicitIndex(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	bamPath := filepath.Join(tmpdir, "test.bam")
	writeBAM(ctx, t, bamPath, testRecords)
	indexPath := filepath.Join(tmpdir, "other.bai")
	require.NoError(t, bamprovider.BuildIndex(ctx, bamPath, indexPath))

	p := bamprovider.NewProvider(bamPath, bamprovider.ProviderOpts{Index: indexPath})
	col, err := p.Column("chr2", 11)
	require.NoError(t, err)
	require.Equal(t, []string{"r4"}, readNames(col))
	require.NoError(t, p.Close())
}

func TestBAMError(t *testing.T) {
	p := bamprovider.NewProvider("/nonexistent/test.bam")
	_, err := p.Column("chr1", 1)
	require.Error(t, err)
	_, err = p.GetHeader()
	require.Error(t, err)
	require.Error(t, p.Close())
}

func TestFakeProvider(t *testing.T) {
	var recs []*sam.Record
	for i := range testRecords {
		recs = append(recs, &testRecords[i])
	}
	p := bamprovider.NewFakeProvider(header, recs)
	h, err := p.GetHeader()
	require.NoError(t, err)
	require.Equal(t, header, h)
	col, err := p.Column("chr1", 12)
	require.NoError(t, err)
	require.Equal(t, []string{"r1", "r2"}, readNames(col))
	col, err = p.Column("chr2", 1)
	require.NoError(t, err)
	require.Equal(t, []string{}, readNames(col))
	require.NoError(t, p.Close())
}
