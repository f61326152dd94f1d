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

package locus_test

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/posinfo/locus"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"VCF", "vcf", "BED", "Pos"} {
		f, err := locus.ParseFormat(name)
		expect.NoError(t, err)
		expect.True(t, f.String() == "VCF" || f.String() == "BED" || f.String() == "POS")
	}
	_, err := locus.ParseFormat("GFF")
	expect.True(t, errors.Is(errors.Invalid, err), "got %v", err)
}

func TestReadAll(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	tests := []struct {
		name   string
		format locus.Format
		data   string
		want   []locus.Locus
	}{
		{
			name:   "loci.vcf",
			format: locus.VCF,
			data: "##fileformat=VCFv4.2\n" +
				"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
				"chr1\t100\trs1\tA\tG\t50\tPASS\tDP=3\n" +
				"chr1\t150\t.\tA\tG\t50\tLowQual\tDP=3\n" +
				"chr1\tx\t.\tA\tG\t50\tPASS\tDP=3\n" +
				"\n" +
				"chr2\t7\t.\tC\tT\t.\tPASS\t.\n" +
				"chr1\t100\trs1\tA\tG\t50\tPASS\tDP=3\n",
			want: []locus.Locus{
				{"chr1", 100, "rs1\tA\tG\t50\tPASS\tDP=3"},
				{"chr2", 7, ".\tC\tT\t.\tPASS\t."},
				{"chr1", 100, "rs1\tA\tG\t50\tPASS\tDP=3"},
			},
		},
		{
			name:   "loci.bed",
			format: locus.BED,
			data: "chr1\t10\t12\tgeneA\texon1\n" +
				"chr1\t20\t19\n" +
				"# comment\n" +
				"chr2\t5\t5\n" +
				"chr2\tfive\t6\n",
			want: []locus.Locus{
				{"chr1", 10, "geneA\texon1"},
				{"chr1", 11, "geneA\texon1"},
				{"chr1", 12, "geneA\texon1"},
				{"chr2", 5, ""},
			},
		},
		{
			name:   "loci.pos",
			format: locus.POS,
			data:   "chr3 30 a b\nchr3\nchr3\t31\nchr3\t-\n",
			want: []locus.Locus{
				{"chr3", 30, "a\tb"},
				{"chr3", 31, ""},
			},
		},
	}
	for _, tt := range tests {
		path := filepath.Join(tmpdir, tt.name)
		assert.NoError(t, ioutil.WriteFile(path, []byte(tt.data), 0644))
		got, err := locus.ReadAll(ctx, path, tt.format)
		assert.NoError(t, err)
		expect.EQ(t, got, tt.want, tt.name)

		// The same data, gzipped.
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		_, err = w.Write([]byte(tt.data))
		assert.NoError(t, err)
		assert.NoError(t, w.Close())
		gzPath := path + ".gz"
		assert.NoError(t, ioutil.WriteFile(gzPath, buf.Bytes(), 0644))
		got, err = locus.ReadAll(ctx, gzPath, tt.format)
		assert.NoError(t, err)
		expect.EQ(t, got, tt.want, tt.name+".gz")
	}
}

func TestScannerIsLazy(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	path := filepath.Join(tmpdir, "big.bed")
	assert.NoError(t, ioutil.WriteFile(path, []byte("chr1\t1\t1000000000\n"), 0644))
	s, err := locus.NewScanner(ctx, path, locus.BED)
	assert.NoError(t, err)
	for i := 1; i <= 3; i++ {
		assert.True(t, s.Scan())
		expect.EQ(t, s.Locus(), locus.Locus{Chrom: "chr1", Pos: i})
	}
	assert.NoError(t, s.Close(ctx))
}

func TestMissingFile(t *testing.T) {
	_, err := locus.ReadAll(vcontext.Background(), "/nonexistent/loci.vcf", locus.VCF)
	expect.NotNil(t, err)
}
