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

// Package posinfo reports per-position read statistics for a list of loci.
//
// For every locus the reads covering it are split by strand and mate
// (forward/reverse, first/second of pair), and the called base, base quality,
// mapping quality, sequencing cycle and any indel starting right after the
// position are tallied. With a truth set, each read is also classified as
// matching or not matching the expected alleles. The results are written as
// one TSV line per locus; Columns lists the available fields.
//
// Loci are processed by a fixed pool of workers, each with its own BAM and
// reference handles. Output lines are written as they are produced, or in
// input order if Opts.Ordered is set.
package posinfo
