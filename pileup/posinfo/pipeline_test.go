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

package posinfo

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/posinfo/locus"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestScatter(t *testing.T) {
	expect.EQ(t, Scatter(7, 3), [][]int{{0, 3, 6}, {1, 4}, {2, 5}})
	expect.EQ(t, Scatter(2, 10), [][]int{{0}, {1}})
	expect.EQ(t, len(Scatter(0, 4)), 0)
	expect.EQ(t, len(Scatter(5, 0)), 0)
}

// testHandler echoes loci; every locus whose position is a multiple of 5
// fails.
type testHandler struct {
	closed *int32
}

func (h testHandler) Handle(l locus.Locus) (string, error) {
	if l.Pos%5 == 0 {
		return "", fmt.Errorf("bad locus %v", l.Pos)
	}
	return fmt.Sprintf("%s\t%d\n", l.Chrom, l.Pos), nil
}

func (h testHandler) Close() error {
	atomic.AddInt32(h.closed, 1)
	return nil
}

func testLoci(n int) []locus.Locus {
	loci := make([]locus.Locus, n)
	for i := range loci {
		loci[i] = locus.Locus{Chrom: "chr1", Pos: i + 1}
	}
	return loci
}

func expectedLines(loci []locus.Locus) []string {
	var lines []string
	for _, l := range loci {
		if l.Pos%5 != 0 {
			lines = append(lines, fmt.Sprintf("%s\t%d", l.Chrom, l.Pos))
		}
	}
	return lines
}

func TestPipeline(t *testing.T) {
	ctx := context.Background()
	loci := testLoci(2503)
	for _, ordered := range []bool{false, true} {
		for _, parallelism := range []int{0, 1, 4, 16} {
			var (
				closed   int32
				buf      bytes.Buffer
				progress = &Progress{Interval: 100}
			)
			p := Pipeline{
				Parallelism: parallelism,
				Ordered:     ordered,
				Header:      "chrom\tpos\n",
				Progress:    progress,
			}
			err := p.Run(ctx, loci, func(int) (LocusHandler, error) { return testHandler{&closed}, nil }, &buf)
			assert.NoError(t, err)

			lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
			assert.EQ(t, lines[0], "chrom\tpos")
			got := lines[1:]
			want := expectedLines(loci)
			if !ordered {
				sort.Strings(got)
				sort.Strings(want)
			}
			expect.EQ(t, got, want, "ordered=%v parallelism=%d", ordered, parallelism)
			expect.EQ(t, progress.N(), len(loci))

			wantShards := parallelism
			if wantShards <= 0 {
				wantShards = 1
			}
			expect.EQ(t, int(closed), wantShards)
		}
	}
}

func TestPipelineNoHeader(t *testing.T) {
	var (
		closed int32
		buf    bytes.Buffer
	)
	p := Pipeline{Parallelism: 3, Ordered: true}
	err := p.Run(context.Background(), testLoci(4), func(int) (LocusHandler, error) { return testHandler{&closed}, nil }, &buf)
	assert.NoError(t, err)
	expect.EQ(t, buf.String(), "chr1\t1\nchr1\t2\nchr1\t3\nchr1\t4\n")
}

func TestPipelineHandlerError(t *testing.T) {
	for _, ordered := range []bool{false, true} {
		var (
			closed int32
			buf    bytes.Buffer
		)
		p := Pipeline{Parallelism: 4, Ordered: ordered, Header: "h\n"}
		err := p.Run(context.Background(), testLoci(5000), func(shard int) (LocusHandler, error) {
			if shard == 2 {
				return nil, errors.E(errors.NotExist, "no such thing")
			}
			return testHandler{&closed}, nil
		}, &buf)
		expect.True(t, errors.Is(errors.NotExist, err), "ordered=%v: %v", ordered, err)
	}
}
