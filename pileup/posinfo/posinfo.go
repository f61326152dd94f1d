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
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/posinfo/encoding/bamprovider"
	"github.com/grailbio/posinfo/encoding/fasta"
	"github.com/grailbio/posinfo/locus"
	"github.com/grailbio/posinfo/pileup"
	"github.com/grailbio/posinfo/truthset"
)

type Opts struct {
	// Commandline options.
	BamIndexPath  string
	LocusFormat   string
	OutPath       string
	ReferencePath string
	TruthPath     string
	ContextFlank  int
	Cols          string
	NoHeader      bool
	LocusAsTruth  bool
	Parallelism   int
	TruthPassOnly bool
	TruthMinQual  float64
	Ordered       bool

	// newSource, if set, replaces the BAM provider. For tests.
	newSource func(bamPath string) pileup.Source
}

var DefaultOpts = Opts{
	LocusFormat:   "VCF",
	ContextFlank:  5,
	Parallelism:   10,
	TruthPassOnly: true,
	TruthMinQual:  0,
}

func isVCF(path string) bool {
	return strings.HasSuffix(path, ".vcf") || strings.HasSuffix(path, ".vcf.gz")
}

// DefaultOutPath returns "<bam base>_<locus base>.tsv", where each base is
// the file name with its last extension removed.
func DefaultOutPath(bamPath, locusPath string) string {
	base := func(path string) string {
		name := filepath.Base(path)
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return base(bamPath) + "_" + base(locusPath) + ".tsv"
}

// locusHandler computes the output line of a locus. One per worker.
type locusHandler struct {
	ctx    context.Context
	source pileup.Source
	// ref is nil if no reference was given.
	ref      *fasta.Reference
	truth    truthset.Set
	hasTruth bool
	cols     []string
	flank    int
}

// Handle implements LocusHandler.
func (h *locusHandler) Handle(l locus.Locus) (string, error) {
	var refBase, refContext string
	if h.ref != nil {
		var err error
		if refBase, err = h.ref.Base(l.Chrom, l.Pos); err != nil {
			return "", err
		}
		if refContext, err = h.ref.Context(l.Chrom, l.Pos, h.flank); err != nil {
			return "", err
		}
	}
	var truth *Truth
	if h.hasTruth {
		snp, indel := h.truth.Alleles(l.Chrom, l.Pos)
		truth = &Truth{SNP: snp, Indel: indel}
	}
	col, err := h.source.Column(l.Chrom, l.Pos)
	if err != nil {
		return "", err
	}
	r := Aggregate(col, truth)
	r.Reference, r.Context, r.Annotation = refBase, refContext, l.Annotation
	r.Finalize()
	return Format(r, h.cols)
}

// Close implements LocusHandler.
func (h *locusHandler) Close() error {
	err := h.source.Close()
	if h.ref != nil {
		if e := h.ref.Close(h.ctx); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// Run computes per-position statistics of the reads in bamPath at every locus
// in locusPath, and writes them as a TSV file. Configuration errors (an
// unknown locus format or column, an unreadable BAM, reference or truth
// source) are returned before any locus is processed.
func Run(ctx context.Context, bamPath, locusPath string, opts *Opts) (err error) {
	format, err := locus.ParseFormat(opts.LocusFormat)
	if err != nil {
		return err
	}
	truthPath := opts.TruthPath
	if opts.LocusAsTruth && isVCF(locusPath) {
		truthPath = locusPath
	}
	hasRef := opts.ReferencePath != ""
	hasTruth := truthPath != ""
	cols, err := pileup.ParseCols(opts.Cols, IsColumn, DefaultColumns(hasRef, hasTruth))
	if err != nil {
		return errors.E(errors.Invalid, "posinfo.Run", err)
	}
	if len(cols) == 0 {
		return errors.E(errors.Invalid, "posinfo.Run: no output columns")
	}
	flank := opts.ContextFlank
	if flank < 0 {
		flank = 0
	}

	newSource := opts.newSource
	if newSource == nil {
		newSource = func(bamPath string) pileup.Source {
			return bamprovider.NewProvider(bamPath, bamprovider.ProviderOpts{Index: opts.BamIndexPath})
		}
	}
	// Check the inputs each worker will open, so that a bad path fails the run
	// right away.
	if p, ok := newSource(bamPath).(bamprovider.Provider); ok {
		_, err = p.GetHeader()
		if e := p.Close(); e != nil && err == nil {
			err = e
		}
		if err != nil {
			return fmt.Errorf("posinfo.Run: %s: %v", bamPath, err)
		}
	}
	if hasRef {
		ref, err := fasta.OpenReference(ctx, opts.ReferencePath)
		if err != nil {
			return err
		}
		if err := ref.Close(ctx); err != nil {
			return err
		}
	}

	var truth truthset.Set
	if hasTruth {
		log.Printf("posinfo: loading truth set from %s", truthPath)
		if truth, err = truthset.Load(ctx, truthPath, truthset.Opts{PassOnly: opts.TruthPassOnly, MinQual: opts.TruthMinQual}); err != nil {
			return err
		}
	}

	log.Printf("posinfo: reading loci from %s", locusPath)
	loci, err := locus.ReadAll(ctx, locusPath, format)
	if err != nil {
		return err
	}

	outPath := opts.OutPath
	if outPath == "" {
		outPath = DefaultOutPath(bamPath, locusPath)
	}
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)

	var header string
	if !opts.NoHeader {
		if header, err = Header(cols); err != nil {
			return err
		}
	}
	progress := &Progress{}
	pipeline := Pipeline{
		Parallelism: opts.Parallelism,
		Ordered:     opts.Ordered,
		Header:      header,
		Progress:    progress,
	}
	newHandler := func(shard int) (LocusHandler, error) {
		h := &locusHandler{
			ctx:      ctx,
			source:   newSource(bamPath),
			truth:    truth,
			hasTruth: hasTruth,
			cols:     cols,
			flank:    flank,
		}
		if hasRef {
			ref, err := fasta.OpenReference(ctx, opts.ReferencePath)
			if err != nil {
				h.source.Close() // nolint: errcheck
				return nil, err
			}
			h.ref = ref
		}
		return h, nil
	}
	if err = pipeline.Run(ctx, loci, newHandler, out.Writer(ctx)); err != nil {
		return err
	}
	log.Printf("posinfo: %d loci done, output in %s", progress.N(), outPath)
	return nil
}
