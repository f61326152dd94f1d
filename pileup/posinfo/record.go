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
	"github.com/grailbio/base/log"
	"github.com/grailbio/posinfo/pileup"
)

// Counts is a per-category read count, indexed by pileup.Category.
type Counts [pileup.NCategory]int

// Total returns the sum over all categories.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Truth holds the expected alleles at one position.
type Truth struct {
	// SNP alleles: A, T, C, G or '*'.
	SNP []string
	// Indel alleles in samtools notation.
	Indel []string
}

// Classified holds the statistics of the reads that agree (or disagree) with
// the truth alleles.
type Classified struct {
	SNPCount  Counts
	SNPQuals  []int
	SNPMapQs  []int
	SNPCycles []int

	IndelCount  Counts
	InsQuals    []int
	IndelMapQs  []int
	IndelCycles []int
}

// Record is the per-position statistics for one locus. It is filled in by
// Aggregate, then by Finalize, then formatted once.
type Record struct {
	Chrom string
	// Pos is 1-based.
	Pos        int
	Reference  string
	Context    string
	Annotation string

	// Coverage is the number of classified reads.
	Coverage int
	// Counts[base][category] counts reads by called base (or miss).
	Counts [pileup.NBaseEnum]Counts
	// Quals, MapQs and Cycles hold one entry per read, by base. Quals has no
	// miss bucket.
	Quals  [pileup.NBase][]int
	MapQs  [pileup.NBaseEnum][]int
	Cycles [pileup.NBaseEnum][]int
	// Background counts every classified read.
	Background Counts

	InsCount  Counts
	InsQuals  []int
	InsMapQs  []int
	InsCycles []int
	DelCount  Counts
	DelMapQs  []int
	DelCycles []int

	// HasTruth is set if the record was classified against a truth set. The
	// fields below are meaningful only then.
	HasTruth   bool
	TruthSNP   []string
	TruthIndel []string
	Matched    Classified
	Unmatched  Classified

	// IndelLengths has the pending indel length of every classified read,
	// zeros included.
	IndelLengths []int
	// QuerySNP has the symbol of every classified read ('*' for a miss).
	QuerySNP []string
	// QueryIndel has the indel allele of every read with a pending indel.
	QueryIndel []string

	// Set by Finalize.
	finalized          bool
	means              map[string]float64
	IndelLengthCounter Counter
	QuerySNPCounter    Counter
	QueryIndelCounter  Counter
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func qualInts(quals []byte) []int {
	v := make([]int, 0, len(quals))
	for _, q := range quals {
		if q != 0xff {
			v = append(v, int(q))
		}
	}
	return v
}

// Aggregate computes the statistics of col. If truth is non-nil each read is
// also classified as matched or unmatched. Reads on a reference skip, and
// reads whose strand/mate category cannot be decided, are logged and left
// out.
func Aggregate(col pileup.Column, truth *Truth) *Record {
	r := &Record{Chrom: col.Chrom, Pos: col.Pos}
	if truth != nil {
		r.HasTruth = true
		r.TruthSNP, r.TruthIndel = truth.SNP, truth.Indel
	}
	for i := range col.Reads {
		obs := &col.Reads[i]
		if obs.RefSkip {
			log.Printf("posinfo: %s:%d: read %s (flags %v) is a reference skip here; ignoring it", col.Chrom, col.Pos, obs.Name, obs.Flags)
			continue
		}
		if obs.Category == pileup.Indeterminate {
			log.Printf("posinfo: %s:%d: cannot tell the strand of read %s (flags %v); ignoring it", col.Chrom, col.Pos, obs.Name, obs.Flags)
			continue
		}
		r.add(obs, truth)
	}
	return r
}

// add records one classified read.
func (r *Record) add(obs *pileup.ReadObservation, truth *Truth) {
	cat := obs.Category
	mapq, cycle := int(obs.MapQ), obs.Cycle
	r.Coverage++
	r.Background[cat]++
	r.IndelLengths = append(r.IndelLengths, obs.Indel)

	b := obs.Base
	called := b != pileup.BaseMiss
	r.Counts[b][cat]++
	if called && obs.HasQual {
		r.Quals[b] = append(r.Quals[b], int(obs.Qual))
	}
	r.MapQs[b] = append(r.MapQs[b], mapq)
	r.Cycles[b] = append(r.Cycles[b], cycle)
	symbol := string(obs.Symbol)
	r.QuerySNP = append(r.QuerySNP, symbol)

	if truth != nil {
		c := &r.Unmatched
		if contains(truth.SNP, symbol) {
			c = &r.Matched
		}
		c.SNPCount[cat]++
		c.SNPMapQs = append(c.SNPMapQs, mapq)
		c.SNPCycles = append(c.SNPCycles, cycle)
		if called && obs.HasQual {
			c.SNPQuals = append(c.SNPQuals, int(obs.Qual))
		}
	}

	if obs.Indel == 0 {
		return
	}
	r.QueryIndel = append(r.QueryIndel, obs.IndelAllele)
	var insQuals []int
	if obs.Indel > 0 {
		insQuals = qualInts(obs.InsertionQuals)
		r.InsCount[cat]++
		r.InsQuals = append(r.InsQuals, insQuals...)
		r.InsMapQs = append(r.InsMapQs, mapq)
		r.InsCycles = append(r.InsCycles, cycle)
	} else {
		r.DelCount[cat]++
		r.DelMapQs = append(r.DelMapQs, mapq)
		r.DelCycles = append(r.DelCycles, cycle)
	}
	if truth != nil {
		c := &r.Unmatched
		if contains(truth.Indel, obs.IndelAllele) {
			c = &r.Matched
		}
		c.IndelCount[cat]++
		c.InsQuals = append(c.InsQuals, insQuals...)
		c.IndelMapQs = append(c.IndelMapQs, mapq)
		c.IndelCycles = append(c.IndelCycles, cycle)
	}
}
