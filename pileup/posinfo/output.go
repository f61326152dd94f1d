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
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/posinfo/pileup"
)

type column struct {
	name   string
	format func(r *Record) string
}

// formatCounts renders a count vector as "a, b, c, d", or "" if it is all
// zeros.
func formatCounts(c Counts) string {
	if c == (Counts{}) {
		return ""
	}
	return formatInts(c[:])
}

// formatInts renders v as "v1, v2, ...".
func formatInts(v []int) string {
	var b strings.Builder
	for i, x := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(x))
	}
	return b.String()
}

// formatStrings renders the distinct values of v, sorted, as "a, b".
func formatStrings(v []string) string {
	if len(v) == 0 {
		return ""
	}
	distinct := make([]string, 0, len(v))
	seen := make(map[string]bool, len(v))
	for _, s := range v {
		if !seen[s] {
			seen[s] = true
			distinct = append(distinct, s)
		}
	}
	sort.Strings(distinct)
	return strings.Join(distinct, ", ")
}

func formatMean(r *Record, name string) string {
	m, ok := r.Mean(name)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(m, 'f', 1, 64)
}

// columns lists the output vocabulary in a fixed order.
var columns = func() []column {
	cols := []column{
		{"chrom", func(r *Record) string { return r.Chrom }},
		{"pos", func(r *Record) string { return strconv.Itoa(r.Pos) }},
		{"reference", func(r *Record) string { return r.Reference }},
		{"context", func(r *Record) string { return r.Context }},
		{"coverage", func(r *Record) string { return strconv.Itoa(r.Coverage) }},
		{"other", func(r *Record) string { return r.Annotation }},
	}
	for b := pileup.Base(0); b < pileup.NBaseEnum; b++ {
		b := b
		cols = append(cols, column{pileup.BaseNames[b] + "_count", func(r *Record) string { return formatCounts(r.Counts[b]) }})
	}
	cols = append(cols,
		column{"del_count", func(r *Record) string { return formatCounts(r.DelCount) }},
		column{"ins_count", func(r *Record) string { return formatCounts(r.InsCount) }},
		column{"background_count", func(r *Record) string { return formatCounts(r.Background) }},
		column{"matched_snp_count", func(r *Record) string { return formatCounts(r.Matched.SNPCount) }},
		column{"unmatched_snp_count", func(r *Record) string { return formatCounts(r.Unmatched.SNPCount) }},
		column{"matched_indel_count", func(r *Record) string { return formatCounts(r.Matched.IndelCount) }},
		column{"unmatched_indel_count", func(r *Record) string { return formatCounts(r.Unmatched.IndelCount) }},
	)
	for _, s := range sequences {
		s := s
		cols = append(cols, column{s.name(), func(r *Record) string { return formatInts(s.get(r)) }})
	}
	cols = append(cols,
		column{"indel_length", func(r *Record) string { return formatInts(r.IndelLengths) }},
		column{"query_snp", func(r *Record) string { return formatStrings(r.QuerySNP) }},
		column{"query_indel", func(r *Record) string { return formatStrings(r.QueryIndel) }},
		column{"real_allele_snp", func(r *Record) string { return formatStrings(r.TruthSNP) }},
		column{"real_allele_indel", func(r *Record) string { return formatStrings(r.TruthIndel) }},
	)
	for _, s := range sequences {
		name := s.meanName()
		cols = append(cols, column{name, func(r *Record) string { return formatMean(r, name) }})
	}
	cols = append(cols,
		column{"indel_length_counter", func(r *Record) string { return r.IndelLengthCounter.String() }},
		column{"query_snp_counter", func(r *Record) string { return r.QuerySNPCounter.String() }},
		column{"query_indel_counter", func(r *Record) string { return r.QueryIndelCounter.String() }},
	)
	return cols
}()

var columnsByName = func() map[string]func(r *Record) string {
	m := make(map[string]func(r *Record) string, len(columns))
	for _, c := range columns {
		m[c.name] = c.format
	}
	return m
}()

// Columns returns the names of every output column.
func Columns() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// IsColumn reports whether name is an output column.
func IsColumn(name string) bool {
	_, ok := columnsByName[name]
	return ok
}

// DefaultColumns returns the columns written when -cols is not given.
// reference and context are included only if a reference is available, and
// the truth comparison columns only if a truth set is.
func DefaultColumns(hasReference, hasTruth bool) []string {
	cols := []string{"chrom", "pos"}
	if hasReference {
		cols = append(cols, "reference", "context")
	}
	cols = append(cols, "coverage", "A_count", "T_count", "C_count", "G_count", "N_count",
		"miss_count", "background_count", "query_snp_counter")
	if hasTruth {
		return append(cols, "real_allele_snp", "matched_snp_count", "unmatched_snp_count",
			"query_indel_counter", "real_allele_indel", "matched_indel_count", "unmatched_indel_count")
	}
	return append(cols, "query_indel_counter")
}

func writeLine(fields []string) (string, error) {
	var buf bytes.Buffer
	w := tsv.NewWriter(&buf)
	for _, f := range fields {
		w.WriteString(f)
	}
	if err := w.EndLine(); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Header returns the tab-separated header line for cols, newline included.
func Header(cols []string) (string, error) {
	return writeLine(cols)
}

// Format renders the given columns of r as one tab-separated line, newline
// included.
//
// REQUIRES: every name in cols is a column, and Finalize has been called.
func Format(r *Record, cols []string) (string, error) {
	fields := make([]string, len(cols))
	for i, name := range cols {
		fields[i] = columnsByName[name](r)
	}
	return writeLine(fields)
}
