// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package truthset

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVCF = `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	SAMPLE
chr1	100	.	A	G	50	PASS	.	GT	0/1
chr1	200	.	T	TAC	50	PASS	.	GT:DP	1|1:30
chr1	300	.	TACG	T	50	PASS	.	GT	0/1
chr1	301	.	A	C	50	PASS	.	GT	1/1
chr1	400	.	A	C	50	LowQual	.	GT	1/1
chr1	450	.	A	C	50	PASS	.	DP	30
chr1	500	.	A	C,T	50	PASS	.	GT	2/1
`

func testVCFSet() Set {
	return Set{
		{"chr1", 100}: {"A", "G"},
		{"chr1", 200}: {"T", "+2AC"},
		{"chr1", 300}: {"T", "T", "-3NNN"},
		{"chr1", 301}: {"A", "*", "C"},
		{"chr1", 302}: {"C", "*"},
		{"chr1", 303}: {"G", "*"},
		{"chr1", 500}: {"C", "T"},
	}
}

func TestIndelAllele(t *testing.T) {
	for _, tt := range []struct {
		pos        int
		ref, alt   string
		wantPos    int
		wantAllele string
		wantOK     bool
	}{
		{34513115, "T", "TAC", 34513115, "+2AC", true},
		{2540473, "TACACACACACACAC", "TACACACACAC", 2540483, "-4NNNN", true},
		{199570773, "TG", "AGTAAATTAT", 199570774, "+8TAAATTAT", true},
		{100, "A", "G", 0, "", false},
		{100, "AT", "GC", 0, "", false},
	} {
		pos, allele, ok := IndelAllele(tt.pos, tt.ref, tt.alt)
		assert.Equal(t, tt.wantOK, ok, "%d %s %s", tt.pos, tt.ref, tt.alt)
		assert.Equal(t, tt.wantPos, pos)
		assert.Equal(t, tt.wantAllele, allele)
	}
}

func TestDeriveAlleles(t *testing.T) {
	rows := deriveAlleles(vcfRecord{
		chrom:    "chr1",
		pos:      2540473,
		ref:      "TACACACACACACAC",
		alts:     []string{"TACACACACAC"},
		genotype: []int{1},
	})
	got := Set{}
	for _, row := range rows {
		got.add(row.key, row.alleles...)
	}
	want := Set{}
	for i, c := range "TACACACACACACAC" {
		if i < 11 {
			want[Key{"chr1", 2540473 + i}] = []string{string(c)}
		} else {
			want[Key{"chr1", 2540473 + i}] = []string{"*"}
		}
	}
	want[Key{"chr1", 2540483}] = append(want[Key{"chr1", 2540483}], "-4NNNN")
	assert.Equal(t, want, got)

	// The anchor base and the insertion share one row.
	rows = deriveAlleles(vcfRecord{chrom: "chr2", pos: 10, ref: "T", alts: []string{"TAC"}, genotype: []int{0, 1}})
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"T", "T", "+2AC"}, rows[0].alleles)
}

func TestParseVCFLine(t *testing.T) {
	for _, tt := range []struct {
		line    string
		opts    Opts
		wantGT  []int
		wantErr bool
	}{
		{"c\t1\t.\tA\tG\t50\tPASS\t.\tGT\t0/1", DefaultOpts, []int{0, 1}, false},
		{"c\t1\t.\tA\tG\t50\tPASS\t.\tGT\t1|0", DefaultOpts, []int{0, 1}, false},
		{"c\t1\t.\tA\tG\t50\tPASS\t.\tGT\t./1", DefaultOpts, []int{1}, false},
		{"c\t1\t.\tA\tG,T\t50.5\tPASS\t.\tGT\t2/2", DefaultOpts, []int{2}, false},
		{"c\t1\t.\tA\tG\t.\tPASS\t.\tGT\t0/1", DefaultOpts, []int{0, 1}, false},
		{"c\t1\t.\tA\tG\t.\tPASS\t.\tGT\t0/1", Opts{MinQual: 10}, nil, true},
		{"c\t1\t.\tA\tG\t5\tPASS\t.\tGT\t0/1", Opts{MinQual: 10}, nil, true},
		{"c\t1\t.\tA\tG\t50\tq10\t.\tGT\t0/1", DefaultOpts, nil, true},
		{"c\t1\t.\tA\tG\t50\tq10\t.\tGT\t0/1", Opts{}, []int{0, 1}, false},
		{"c\t1\t.\tA\tG\t50\tPASS\t.\tDP\t10", DefaultOpts, nil, true},
		{"c\t1\t.\tA\tG\t50\tPASS\t.\tGT\t1", DefaultOpts, nil, true},
		{"c\t1\t.\tA\tG\t50\tPASS\t.\tGT\t0/2", DefaultOpts, nil, true},
		{"c\t1\t.\tA\tG\t50\tPASS\t.\tGT\t./.", DefaultOpts, nil, true},
		{"c\t1\t.\tA\t<DEL>\t50\tPASS\t.\tGT\t0/1", DefaultOpts, nil, true},
		{"c\tx\t.\tA\tG\t50\tPASS\t.\tGT\t0/1", DefaultOpts, nil, true},
		{"c\t1\t.\tA\tG\t50\tPASS", DefaultOpts, nil, true},
	} {
		rec, err := parseVCFLine(tt.line, tt.opts)
		if tt.wantErr {
			assert.Error(t, err, tt.line)
			continue
		}
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.wantGT, rec.genotype, tt.line)
	}
}

func TestAlleles(t *testing.T) {
	set := testVCFSet()
	snp, indel := set.Alleles("chr1", 300)
	assert.Equal(t, []string{"T", "T"}, snp)
	assert.Equal(t, []string{"-3NNN"}, indel)

	snp, indel = set.Alleles("chr1", 999)
	assert.NotNil(t, snp)
	assert.NotNil(t, indel)
	assert.Empty(t, snp)
	assert.Empty(t, indel)
}

func writeGzip(t *testing.T, path, data string) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, ioutil.WriteFile(path, buf.Bytes(), 0644))
}

func TestBuild(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	for _, name := range []string{"plain.vcf", "zipped.vcf.gz"} {
		path := filepath.Join(tmpdir, name)
		if filepath.Ext(name) == ".gz" {
			writeGzip(t, path, testVCF)
		} else {
			require.NoError(t, ioutil.WriteFile(path, []byte(testVCF), 0644))
		}
		set, err := Build(ctx, path, DefaultOpts)
		require.NoError(t, err)
		assert.Equal(t, testVCFSet(), set, name)

		cachePath := CachePath(path)
		_, err = os.Stat(cachePath)
		require.NoError(t, err, "cache for %s", name)

		// The second build must come from the cache alone.
		require.NoError(t, os.Remove(path))
		cached, err := Build(ctx, path, DefaultOpts)
		require.NoError(t, err)
		assert.Equal(t, set, cached, name)

		loaded, err := Load(ctx, cachePath, DefaultOpts)
		require.NoError(t, err)
		assert.Equal(t, set, loaded, name)
	}
	assert.Equal(t, filepath.Join(tmpdir, "zipped.vcf.truth.tsv"), CachePath(filepath.Join(tmpdir, "zipped.vcf.gz")))
}

func TestBuildMissingVCF(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	_, err := Build(vcontext.Background(), filepath.Join(tmpdir, "missing.vcf"), DefaultOpts)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownSource(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "truth.bed")
	require.NoError(t, ioutil.WriteFile(path, []byte("chr1\t1\t2\n"), 0644))
	_, err := Load(vcontext.Background(), path, DefaultOpts)
	require.Error(t, err)
	assert.True(t, errors.Is(errors.Invalid, err), "got %v", err)
}
