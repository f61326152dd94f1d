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
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// Opts controls which VCF records contribute to a truth set.
type Opts struct {
	// PassOnly drops records whose FILTER is not PASS.
	PassOnly bool
	// MinQual drops records whose QUAL is below this value. A missing QUAL
	// (".") passes only when MinQual <= 0.
	MinQual float64
}

// DefaultOpts are the options used when none are given.
var DefaultOpts = Opts{
	PassOnly: true,
	MinQual:  0,
}

const progressInterval = 100000

// vcfRecord holds the columns of a VCF data line that the truth set needs.
type vcfRecord struct {
	chrom    string
	pos      int
	ref      string
	alts     []string
	genotype []int // distinct allele indices, ascending
}

// cacheRow is the set of alleles one VCF record contributed to one position.
type cacheRow struct {
	key     Key
	alleles []string
}

func parseVCF(ctx context.Context, path string, opts Opts) (set Set, rows []cacheRow, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "truthset: open", path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, errors.E(err, "truthset: gunzip", path)
		}
		defer gz.Close()
		r = gz
	}

	set = Set{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 64<<20)
	var nLine, nUsed, nSkipped int
	for scanner.Scan() {
		nLine++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		rec, err := parseVCFLine(line, opts)
		if err != nil {
			nSkipped++
			log.Printf("truthset: %s:%d: skipping record: %v", path, nLine, err)
			continue
		}
		for _, row := range deriveAlleles(rec) {
			set.add(row.key, row.alleles...)
			rows = append(rows, row)
		}
		nUsed++
		if nUsed%progressInterval == 0 {
			log.Printf("truthset: %s: read %d records (%s:%d)", path, nUsed, rec.chrom, rec.pos)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.E(err, "truthset: read", path)
	}
	log.Printf("truthset: %s: read %d records, skipped %d, %d positions", path, nUsed, nSkipped, len(set))
	return set, rows, nil
}

// parseVCFLine extracts the fields of a data line and applies the filters in
// opts. Records that should not contribute return an error describing why.
func parseVCFLine(line string, opts Opts) (rec vcfRecord, err error) {
	cols := strings.Fields(line)
	if len(cols) < 10 {
		return rec, fmt.Errorf("expected at least 10 columns, got %d", len(cols))
	}
	rec.chrom = cols[0]
	if rec.pos, err = strconv.Atoi(cols[1]); err != nil {
		return rec, fmt.Errorf("bad POS %q", cols[1])
	}
	rec.ref = strings.ToUpper(cols[3])
	rec.alts = strings.Split(strings.ToUpper(cols[4]), ",")
	if opts.PassOnly && cols[6] != "PASS" {
		return rec, fmt.Errorf("FILTER is %s, not PASS", cols[6])
	}
	if cols[5] == "." {
		if opts.MinQual > 0 {
			return rec, fmt.Errorf("QUAL is missing")
		}
	} else {
		qual, err := strconv.ParseFloat(cols[5], 64)
		if err != nil {
			return rec, fmt.Errorf("bad QUAL %q", cols[5])
		}
		if qual < opts.MinQual {
			return rec, fmt.Errorf("QUAL %v is less than %v", qual, opts.MinQual)
		}
	}
	gt, err := genotypeField(cols[8], cols[9])
	if err != nil {
		return rec, err
	}
	if rec.genotype, err = parseGenotype(gt, len(rec.alts)); err != nil {
		return rec, err
	}
	for _, g := range rec.genotype {
		if g > 0 && strings.HasPrefix(rec.alts[g-1], "<") {
			return rec, fmt.Errorf("symbolic allele %s", rec.alts[g-1])
		}
	}
	return rec, nil
}

// genotypeField returns the GT value of a sample column.
func genotypeField(format, sample string) (string, error) {
	gtIndex := -1
	for i, key := range strings.Split(format, ":") {
		if key == "GT" {
			gtIndex = i
			break
		}
	}
	if gtIndex < 0 {
		return "", fmt.Errorf("FORMAT %s has no GT tag", format)
	}
	values := strings.Split(sample, ":")
	if gtIndex >= len(values) {
		return "", fmt.Errorf("sample %s has no GT value", sample)
	}
	return values[gtIndex], nil
}

// parseGenotype splits a GT value on '/' or '|' and returns the distinct
// allele indices in ascending order. Missing calls (".") are dropped.
func parseGenotype(gt string, nAlt int) ([]int, error) {
	var sep string
	switch {
	case strings.Contains(gt, "/"):
		sep = "/"
	case strings.Contains(gt, "|"):
		sep = "|"
	default:
		return nil, fmt.Errorf("GT %s is neither unphased nor phased", gt)
	}
	seen := map[int]bool{}
	var indices []int
	for _, s := range strings.Split(gt, sep) {
		if s == "." {
			continue
		}
		g, err := strconv.Atoi(s)
		if err != nil || g < 0 {
			return nil, fmt.Errorf("bad allele index %q in GT %s", s, gt)
		}
		if g > nAlt {
			return nil, fmt.Errorf("allele index %d in GT %s exceeds %d ALT alleles", g, gt, nAlt)
		}
		if !seen[g] {
			seen[g] = true
			indices = append(indices, g)
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("GT %s has no called alleles", gt)
	}
	sort.Ints(indices)
	return indices, nil
}

// deriveAlleles returns the alleles rec contributes, one row per touched
// position in the order the positions were first touched.
//
// Every called allele is padded with spaces to the length of REF, and the
// i-th character of each is recorded at pos+i, a space becoming '*'. Then each
// called non-reference allele whose length differs from REF adds an indel
// allele (see IndelAllele).
func deriveAlleles(rec vcfRecord) []cacheRow {
	var (
		alleles = append([]string{rec.ref}, rec.alts...)
		rows    []cacheRow
		index   = map[int]int{}
	)
	add := func(pos int, allele string) {
		i, ok := index[pos]
		if !ok {
			i = len(rows)
			index[pos] = i
			rows = append(rows, cacheRow{key: Key{rec.chrom, pos}})
		}
		rows[i].alleles = append(rows[i].alleles, allele)
	}
	for i := 0; i < len(rec.ref); i++ {
		for _, g := range rec.genotype {
			add(rec.pos+i, pointAllele(alleles[g], i))
		}
	}
	for _, g := range rec.genotype {
		if g == 0 {
			continue
		}
		if pos, allele, ok := IndelAllele(rec.pos, rec.ref, alleles[g]); ok {
			add(pos, allele)
		}
	}
	return rows
}

// pointAllele returns the i-th character of allele padded with spaces, with a
// space rendered as '*'.
func pointAllele(allele string, i int) string {
	if i >= len(allele) || allele[i] == ' ' {
		return "*"
	}
	return allele[i : i+1]
}

// IndelAllele returns the anchored position and samtools-style notation of
// the length difference between ref and alt at pos. ok is false when the two
// have the same length.
//
//   IndelAllele(34513115, "T", "TAC")                          = 34513115, "+2AC"
//   IndelAllele(199570773, "TG", "AGTAAATTAT")                 = 199570774, "+8TAAATTAT"
//   IndelAllele(2540473, "TACACACACACACAC", "TACACACACAC")     = 2540483, "-4NNNN"
func IndelAllele(pos int, ref, alt string) (anchor int, allele string, ok bool) {
	switch {
	case len(ref) < len(alt):
		ins := alt[len(ref):]
		return pos + len(ref) - 1, "+" + strconv.Itoa(len(ins)) + ins, true
	case len(ref) > len(alt):
		n := len(ref) - len(alt)
		return pos + len(alt) - 1, "-" + strconv.Itoa(n) + strings.Repeat("N", n), true
	}
	return 0, "", false
}
