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

// Package truthset derives the alleles expected at each reference position
// from a gold-standard VCF.
//
// Alleles use the vocabulary of samtools pileup: a point allele is one of
// A/C/G/T/N or '*' (the position is deleted in that haplotype), an insertion
// is "+<n><bases>" anchored at the base preceding the inserted sequence, and a
// deletion is "-<n>" followed by n 'N's, anchored at the base preceding the
// deleted sequence. For example, the record
//
//   chr1  2540473  .  TACACACACACACAC  TACACACACAC  ...  GT  1/1
//
// yields '*' at 2540484..2540487 and "-4NNNN" at 2540483.
package truthset

import (
	"context"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Key identifies a 1-based reference position.
type Key struct {
	Chrom string
	Pos   int
}

// Set maps positions to the truth alleles observed there, in derivation order.
// The same allele may appear more than once. A Set is read-only once built and
// may be shared between goroutines.
type Set map[Key][]string

// IsIndel reports whether allele uses the insertion/deletion notation.
func IsIndel(allele string) bool {
	return strings.ContainsAny(allele, "+-")
}

// Alleles splits the alleles at chrom:pos into point and indel alleles. Both
// results are non-nil, so a position absent from the set compares as "no
// expected allele" rather than "no truth set".
func (s Set) Alleles(chrom string, pos int) (snp, indel []string) {
	snp, indel = []string{}, []string{}
	for _, a := range s[Key{chrom, pos}] {
		if IsIndel(a) {
			indel = append(indel, a)
		} else {
			snp = append(snp, a)
		}
	}
	return snp, indel
}

func (s Set) add(k Key, alleles ...string) {
	s[k] = append(s[k], alleles...)
}

// Load returns the truth set for path. path may name a cache file written by
// Build, or a VCF (plain or gzip). A VCF whose cache already exists is read
// from the cache.
func Load(ctx context.Context, path string, opts Opts) (Set, error) {
	switch {
	case strings.HasSuffix(path, CacheSuffix):
		return LoadCache(ctx, path)
	case strings.HasSuffix(path, ".vcf"), strings.HasSuffix(path, ".vcf.gz"):
		return Build(ctx, path, opts)
	}
	cachePath := CachePath(path)
	if _, err := file.Stat(ctx, cachePath); err == nil {
		return LoadCache(ctx, cachePath)
	}
	return nil, errors.E(errors.Invalid, "truthset.Load: truth source must be a .vcf, .vcf.gz or "+CacheSuffix+" file:", path)
}

// Build derives the truth set from the VCF at vcfPath. If the cache at
// CachePath(vcfPath) is readable it is used instead of the VCF; otherwise the
// cache is written after the VCF has been parsed. Failing to write the cache
// is logged, not returned.
func Build(ctx context.Context, vcfPath string, opts Opts) (Set, error) {
	cachePath := CachePath(vcfPath)
	if _, err := file.Stat(ctx, cachePath); err == nil {
		set, err := LoadCache(ctx, cachePath)
		if err == nil {
			return set, nil
		}
		log.Error.Printf("truthset.Build: ignoring unreadable cache %s: %v", cachePath, err)
	}
	set, rows, err := parseVCF(ctx, vcfPath, opts)
	if err != nil {
		return nil, err
	}
	if err := writeCache(ctx, cachePath, rows); err != nil {
		log.Error.Printf("truthset.Build: could not write cache %s: %v", cachePath, err)
	}
	return set, nil
}
