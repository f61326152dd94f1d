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
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// CacheSuffix is appended to a VCF path (minus any ".gz") to name its cache.
const CacheSuffix = ".truth.tsv"

// CachePath returns the cache file path for a VCF.
func CachePath(vcfPath string) string {
	return strings.TrimSuffix(vcfPath, ".gz") + CacheSuffix
}

// The cache has one line per (VCF record, touched position):
//
//   chrom <tab> pos <tab> allele [<tab> allele ...]
//
// Lines for the same position are concatenated on load, so loading the cache
// reproduces the set that Build derived from the VCF.

// LoadCache reads a cache file.
func LoadCache(ctx context.Context, path string) (set Set, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	set = Set{}
	scanner := bufio.NewScanner(in.Reader(ctx))
	scanner.Buffer(nil, 64<<20)
	lineno := 0
	for scanner.Scan() {
		lineno++
		cols := strings.Fields(scanner.Text())
		if len(cols) == 0 {
			continue
		}
		if len(cols) < 3 {
			log.Printf("truthset.LoadCache: %s:%d: skipping line with %d columns", path, lineno, len(cols))
			continue
		}
		pos, err := strconv.Atoi(cols[1])
		if err != nil {
			log.Printf("truthset.LoadCache: %s:%d: skipping line: bad position %q", path, lineno, cols[1])
			continue
		}
		set.add(Key{cols[0], pos}, cols[2:]...)
		if lineno%progressInterval == 0 {
			log.Printf("truthset.LoadCache: %s: read %d lines", path, lineno)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "truthset.LoadCache", path)
	}
	log.Printf("truthset.LoadCache: %s: read %d lines, %d positions", path, lineno, len(set))
	return set, nil
}

// writeCache writes rows to path. For local paths file.Create publishes the
// file on Close, so an interrupted write leaves no partial cache behind.
func writeCache(ctx context.Context, path string, rows []cacheRow) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := out.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	w := tsv.NewWriter(out.Writer(ctx))
	for _, row := range rows {
		w.WriteString(row.key.Chrom)
		w.WriteInt64(int64(row.key.Pos))
		for _, a := range row.alleles {
			w.WriteString(a)
		}
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
