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
package main

/*
bio-posinfo reports per-position alignment statistics of a BAM at a list of
loci.
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/posinfo/pileup/posinfo"
)

var (
	bamIndexPath  = flag.String("index", posinfo.DefaultOpts.BamIndexPath, "Input BAM index path. Defaults to bampath + .bai")
	locusFormat   = flag.String("locus-format", posinfo.DefaultOpts.LocusFormat, "Locus file format: VCF, BED or POS")
	outPath       = flag.String("out", posinfo.DefaultOpts.OutPath, "Output TSV path. Defaults to <bam name>_<locus name>.tsv")
	referencePath = flag.String("reference", posinfo.DefaultOpts.ReferencePath, "faidx-indexed reference FASTA. Without it the reference and context columns are empty")
	truthPath     = flag.String("truth", posinfo.DefaultOpts.TruthPath, "Truth VCF (.vcf or .vcf.gz) or truth cache file. Enables the matched/unmatched columns")
	contextFlank  = flag.Int("context", posinfo.DefaultOpts.ContextFlank, "Number of reference bases on each side of the locus in the context column")
	cols          = flag.String("cols", posinfo.DefaultOpts.Cols, "Comma-separated extra output columns, e.g. matched_snp_cycle,unmatched_snp_cycle; if every term starts with + or -, the default column list is patched instead")
	noHeader      = flag.Bool("no-header", posinfo.DefaultOpts.NoHeader, "Don't write a header line")
	locusAsTruth  = flag.Bool("locus-as-truth", posinfo.DefaultOpts.LocusAsTruth, "If the locus file is a VCF, use it as the truth set")
	parallelism   = flag.Int("parallelism", posinfo.DefaultOpts.Parallelism, "Number of loci processed in parallel")
	truthPassOnly = flag.Bool("truth-pass-only", posinfo.DefaultOpts.TruthPassOnly, "Only use truth VCF records whose FILTER is PASS")
	truthMinQual  = flag.Float64("truth-min-qual", posinfo.DefaultOpts.TruthMinQual, "Skip truth VCF records with QUAL below this value")
	ordered       = flag.Bool("ordered", posinfo.DefaultOpts.Ordered, "Write rows in locus-file order instead of completion order")
	listCols      = flag.Bool("list-cols", false, "Print the names of all output columns and exit")
)

func bioPosinfoUsage() {
	fmt.Printf("Usage: %s [OPTIONS] bampath locuspath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioPosinfoUsage
	shutdown := grail.Init()
	defer shutdown()

	if *listCols {
		fmt.Println(strings.Join(posinfo.Columns(), "\n"))
		return
	}
	allArgs := flag.Args()
	nPositionalArgs := flag.NArg()
	positionalArgs := allArgs[len(allArgs)-nPositionalArgs:]
	if nPositionalArgs != 2 {
		if nPositionalArgs < 2 {
			log.Fatalf("Missing positional arguments (bampath and locuspath required); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		} else {
			log.Fatalf("Too many positional arguments (only bampath and locuspath expected); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		}
	}
	ctx := vcontext.Background()
	opts := posinfo.Opts{
		BamIndexPath:  *bamIndexPath,
		LocusFormat:   *locusFormat,
		OutPath:       *outPath,
		ReferencePath: *referencePath,
		TruthPath:     *truthPath,
		ContextFlank:  *contextFlank,
		Cols:          *cols,
		NoHeader:      *noHeader,
		LocusAsTruth:  *locusAsTruth,
		Parallelism:   *parallelism,
		TruthPassOnly: *truthPassOnly,
		TruthMinQual:  *truthMinQual,
		Ordered:       *ordered,
	}
	if err := posinfo.Run(ctx, positionalArgs[0], positionalArgs[1], &opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
