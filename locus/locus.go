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

// Package locus reads lists of genomic positions from VCF, BED and POS files.
//
// VCF:  data lines with FILTER == PASS; the annotation is the text from the ID
//       column on.
// BED:  "chrom start end [rest]"; one locus per position in [start, end],
//       using the numbers as written; the annotation is "rest".
// POS:  "chrom pos [rest]"; the annotation is "rest".
//
// Annotation columns are joined with tabs. Blank lines and lines starting
// with '#' are ignored, and malformed lines are logged and skipped. Any of the
// formats may be gzip-compressed. Loci are returned in file order and
// duplicates are kept.
package locus

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Locus is one requested position. Pos is 1-based.
type Locus struct {
	Chrom      string
	Pos        int
	Annotation string
}

func (l Locus) String() string { return fmt.Sprintf("%s:%d", l.Chrom, l.Pos) }

// Format is a locus file format.
type Format int

const (
	// VCF is the variant call format.
	VCF Format = iota
	// BED is the browser extensible data format.
	BED
	// POS is a two-column "chrom pos" list.
	POS
)

var formatNames = [...]string{"VCF", "BED", "POS"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// ParseFormat parses a format name, ignoring case.
func ParseFormat(name string) (Format, error) {
	for i, n := range formatNames {
		if strings.EqualFold(name, n) {
			return Format(i), nil
		}
	}
	return 0, errors.E(errors.Invalid, fmt.Sprintf("locus.ParseFormat: unknown locus format %q; must be one of VCF, BED, POS", name))
}

// Scanner reads loci lazily. BED intervals are expanded one position at a
// time. Thread compatible.
type Scanner struct {
	path   string
	format Format
	in     file.File
	rc     io.ReadCloser
	sc     *bufio.Scanner
	lineno int

	// Remaining positions of the current BED interval.
	bedChrom, bedAnnotation string
	bedNext, bedEnd         int
	inBED                   bool

	cur      Locus
	err      error
	nSkipped int
}

// NewScanner opens path for reading loci in the given format.
func NewScanner(ctx context.Context, path string, format Format) (*Scanner, error) {
	if format < VCF || format > POS {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("locus.NewScanner: bad format %v", format))
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	rc, _ := compress.NewReader(in.Reader(ctx))
	sc := bufio.NewScanner(rc)
	sc.Buffer(nil, 64<<20)
	return &Scanner{path: path, format: format, in: in, rc: rc, sc: sc}, nil
}

// Scan advances to the next locus. It returns false at the end of the file or
// on a read error; see Err.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for {
		if s.inBED {
			if s.bedNext <= s.bedEnd {
				s.cur = Locus{Chrom: s.bedChrom, Pos: s.bedNext, Annotation: s.bedAnnotation}
				s.bedNext++
				return true
			}
			s.inBED = false
		}
		if !s.sc.Scan() {
			s.err = s.sc.Err()
			return false
		}
		s.lineno++
		line := s.sc.Text()
		if strings.TrimSpace(line) == "" || line[0] == '#' {
			continue
		}
		ok, reason := s.parseLine(strings.Fields(line))
		if reason != "" {
			s.nSkipped++
			log.Printf("locus: %s:%d: skipping malformed %v line %q: %s", s.path, s.lineno, s.format, line, reason)
			continue
		}
		if ok {
			return true
		}
	}
}

// parseLine sets s.cur (or starts a BED interval) from the columns of one
// line. ok is true if s.cur holds a new locus. A non-empty reason means the
// line is malformed.
func (s *Scanner) parseLine(cols []string) (ok bool, reason string) {
	switch s.format {
	case VCF:
		if len(cols) < 7 {
			return false, "expected at least 7 columns"
		}
		pos, err := strconv.Atoi(cols[1])
		if err != nil {
			return false, err.Error()
		}
		if cols[6] != "PASS" {
			return false, ""
		}
		s.cur = Locus{Chrom: cols[0], Pos: pos, Annotation: strings.Join(cols[2:], "\t")}
		return true, ""
	case BED:
		if len(cols) < 3 {
			return false, "expected at least 3 columns"
		}
		start, err := strconv.Atoi(cols[1])
		if err != nil {
			return false, err.Error()
		}
		end, err := strconv.Atoi(cols[2])
		if err != nil {
			return false, err.Error()
		}
		if end < start {
			return false, "end precedes start"
		}
		s.bedChrom, s.bedNext, s.bedEnd = cols[0], start, end
		s.bedAnnotation = strings.Join(cols[3:], "\t")
		s.inBED = true
		return false, ""
	default:
		if len(cols) < 2 {
			return false, "expected at least 2 columns"
		}
		pos, err := strconv.Atoi(cols[1])
		if err != nil {
			return false, err.Error()
		}
		s.cur = Locus{Chrom: cols[0], Pos: pos, Annotation: strings.Join(cols[2:], "\t")}
		return true, ""
	}
}

// Locus returns the current locus.
//
// REQUIRES: the last call to Scan returned true.
func (s *Scanner) Locus() Locus { return s.cur }

// Err returns the first read error, if any.
func (s *Scanner) Err() error { return s.err }

// Skipped returns the number of malformed lines seen so far.
func (s *Scanner) Skipped() int { return s.nSkipped }

// Close releases the file. It returns Err() if that is non-nil.
func (s *Scanner) Close(ctx context.Context) error {
	err := s.err
	if e := s.rc.Close(); e != nil && err == nil {
		err = e
	}
	if e := s.in.Close(ctx); e != nil && err == nil {
		err = e
	}
	return err
}

// ReadAll returns every locus in path.
func ReadAll(ctx context.Context, path string, format Format) (loci []Locus, err error) {
	s, err := NewScanner(ctx, path, format)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := s.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	for s.Scan() {
		loci = append(loci, s.Locus())
	}
	if s.nSkipped > 0 {
		log.Printf("locus.ReadAll: %s: skipped %d malformed lines", path, s.nSkipped)
	}
	return loci, s.Err()
}
