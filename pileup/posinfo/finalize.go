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
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/posinfo/pileup"
)

// Per-read statistic kinds; these are the suffixes of the sequence column
// names.
const (
	statQual  = "seq_quality"
	statMapQ  = "MAPQ"
	statCycle = "cycle"
)

// sequence is one per-read integer sequence of a Record. Its column name is
// prefix + "_" + stat, and its mean's is prefix + "_mean_" + stat.
type sequence struct {
	prefix string
	stat   string
	get    func(r *Record) []int
}

func (s sequence) name() string     { return s.prefix + "_" + s.stat }
func (s sequence) meanName() string { return s.prefix + "_mean_" + s.stat }

// sequences lists every per-read sequence of a Record, in output order.
var sequences = func() []sequence {
	var seqs []sequence
	for b := pileup.Base(0); b < pileup.NBase; b++ {
		b := b
		seqs = append(seqs, sequence{pileup.BaseNames[b], statQual, func(r *Record) []int { return r.Quals[b] }})
	}
	seqs = append(seqs,
		sequence{"ins", statQual, func(r *Record) []int { return r.InsQuals }},
		sequence{"matched_snp", statQual, func(r *Record) []int { return r.Matched.SNPQuals }},
		sequence{"unmatched_snp", statQual, func(r *Record) []int { return r.Unmatched.SNPQuals }},
		sequence{"matched_ins", statQual, func(r *Record) []int { return r.Matched.InsQuals }},
		sequence{"unmatched_ins", statQual, func(r *Record) []int { return r.Unmatched.InsQuals }},
	)
	for b := pileup.Base(0); b < pileup.NBaseEnum; b++ {
		b := b
		seqs = append(seqs, sequence{pileup.BaseNames[b], statMapQ, func(r *Record) []int { return r.MapQs[b] }})
	}
	seqs = append(seqs,
		sequence{"del", statMapQ, func(r *Record) []int { return r.DelMapQs }},
		sequence{"ins", statMapQ, func(r *Record) []int { return r.InsMapQs }},
		sequence{"matched_snp", statMapQ, func(r *Record) []int { return r.Matched.SNPMapQs }},
		sequence{"unmatched_snp", statMapQ, func(r *Record) []int { return r.Unmatched.SNPMapQs }},
		sequence{"matched_indel", statMapQ, func(r *Record) []int { return r.Matched.IndelMapQs }},
		sequence{"unmatched_indel", statMapQ, func(r *Record) []int { return r.Unmatched.IndelMapQs }},
	)
	for b := pileup.Base(0); b < pileup.NBaseEnum; b++ {
		b := b
		seqs = append(seqs, sequence{pileup.BaseNames[b], statCycle, func(r *Record) []int { return r.Cycles[b] }})
	}
	seqs = append(seqs,
		sequence{"del", statCycle, func(r *Record) []int { return r.DelCycles }},
		sequence{"ins", statCycle, func(r *Record) []int { return r.InsCycles }},
		sequence{"matched_snp", statCycle, func(r *Record) []int { return r.Matched.SNPCycles }},
		sequence{"unmatched_snp", statCycle, func(r *Record) []int { return r.Unmatched.SNPCycles }},
		sequence{"matched_indel", statCycle, func(r *Record) []int { return r.Matched.IndelCycles }},
		sequence{"unmatched_indel", statCycle, func(r *Record) []int { return r.Unmatched.IndelCycles }},
	)
	return seqs
}()

// CounterEntry is one distinct value of a Counter.
type CounterEntry struct {
	Key   string
	Count int
}

// Counter is a frequency table, most frequent first. Values with equal counts
// keep the order in which they were first seen.
type Counter []CounterEntry

// NewCounter tallies values.
func NewCounter(values []string) Counter {
	var c Counter
	index := make(map[string]int)
	for _, v := range values {
		if i, ok := index[v]; ok {
			c[i].Count++
			continue
		}
		index[v] = len(c)
		c = append(c, CounterEntry{v, 1})
	}
	sort.SliceStable(c, func(i, j int) bool { return c[i].Count > c[j].Count })
	return c
}

// String renders the counter as "key: n, key: n".
func (c Counter) String() string {
	var b strings.Builder
	for i, e := range c {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.Key)
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(e.Count))
	}
	return b.String()
}

func mean(v []int) float64 {
	sum := 0
	for _, x := range v {
		sum += x
	}
	return float64(sum) / float64(len(v))
}

// Finalize computes the derived statistics: the mean of every non-empty
// per-read sequence, and the frequency tables of indel lengths, SNP symbols
// and indel alleles. Calling it again is a no-op.
func (r *Record) Finalize() {
	if r.finalized {
		return
	}
	r.finalized = true
	r.means = make(map[string]float64)
	for _, s := range sequences {
		if v := s.get(r); len(v) > 0 {
			r.means[s.meanName()] = mean(v)
		}
	}
	lengths := make([]string, len(r.IndelLengths))
	for i, n := range r.IndelLengths {
		lengths[i] = strconv.Itoa(n)
	}
	r.IndelLengthCounter = NewCounter(lengths)
	r.QuerySNPCounter = NewCounter(r.QuerySNP)
	r.QueryIndelCounter = NewCounter(r.QueryIndel)
}

// Mean returns the mean of the named sequence, e.g. "A_mean_MAPQ". ok is false
// if the sequence was empty.
//
// REQUIRES: Finalize has been called.
func (r *Record) Mean(name string) (m float64, ok bool) {
	m, ok = r.means[name]
	return m, ok
}
