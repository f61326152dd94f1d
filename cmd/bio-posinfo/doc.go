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

/*
Given a coordinate-sorted, indexed BAM and a list of genomic positions (VCF,
BED or POS), bio-posinfo reports per-position alignment statistics: base
composition by strand and mate, base and mapping qualities, read cycles, and
insertion/deletion evidence. When a truth VCF is given, each read is also
classified as matching or not matching the expected alleles, which makes the
output usable for benchmarking a sequencer or aligner against a
gold-standard call set.

The output is a TSV file with one row per locus. The default columns are
chrom, pos, reference, context, coverage, the per-base counts and the
frequency tables of the observed alleles; -cols appends further columns, or
patches the defaults when every term is prefixed with + or -.

Sample usage:
bio-posinfo \
    -reference ref.fa \
    -truth giab.vcf.gz \
    -locus-format BED \
    -cols +A_mean_seq_quality,+indel_length_counter \
    my.bam \
    regions.bed
*/
package main
