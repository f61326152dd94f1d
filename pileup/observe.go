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

package pileup

import (
	"strconv"
	"strings"

	"github.com/grailbio/hts/sam"
)

// missingQual is the .bam encoding of an absent base quality.
const missingQual = 0xff

// ReadObservation is what one read shows at one reference position.
type ReadObservation struct {
	Name     string
	Flags    sam.Flags
	Category Category
	// Base is BaseMiss when the position is deleted in the read.
	Base Base
	// Symbol is the uppercase base letter, 'N' for any non-ACGT code, or '*'
	// for a miss.
	Symbol byte
	// Qual is the base quality; meaningful only if HasQual.
	Qual    byte
	HasQual bool
	MapQ    byte
	// Cycle is the 1-based sequencing cycle of the base, or of the next
	// aligned base for a miss.
	Cycle int
	// Indel is the length of an insertion (> 0) or deletion (< 0) that
	// immediately follows this position in the read, or 0.
	Indel int
	// IndelAllele is Indel in samtools notation ("+2AC", "-3NNN").
	IndelAllele string
	// InsertionQuals are the qualities of the inserted bases.
	InsertionQuals []byte
	// RefSkip is set if the position falls in an 'N' CIGAR operation. Nothing
	// else is filled in for such reads.
	RefSkip bool
}

// Column holds the observations of every read aligned over one position.
type Column struct {
	Chrom string
	// Pos is 1-based.
	Pos   int
	Reads []ReadObservation
}

// Source produces pileup columns.
type Source interface {
	// Column returns the observations at chrom:pos (1-based).
	Column(chrom string, pos int) (Column, error)
	// Close releases the source. It returns any error encountered by the
	// source.
	Close() error
}

// NewColumn builds the column at chrom:pos from candidate records. Records
// that do not cover the position are ignored.
func NewColumn(chrom string, pos int, recs []*sam.Record) Column {
	col := Column{Chrom: chrom, Pos: pos}
	for _, r := range recs {
		if obs, ok := Observe(r, pos-1); ok {
			col.Reads = append(col.Reads, obs)
		}
	}
	return col
}

// InferredReadLength returns the read length implied by the CIGAR, hard clips
// included.
func InferredReadLength(cigar sam.Cigar) int {
	n := 0
	for _, co := range cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarInsertion, sam.CigarSoftClipped, sam.CigarEqual, sam.CigarMismatch, sam.CigarHardClipped:
			n += co.Len()
		}
	}
	return n
}

func seqNibble(seq sam.Seq, i int) byte {
	d := byte(seq.Seq[i>>1])
	if i&1 == 0 {
		return d >> 4
	}
	return d & 0xf
}

// Observe returns what r shows at the 0-based reference position pos0. ok is
// false if r is unmapped or not aligned over pos0.
func Observe(r *sam.Record, pos0 int) (obs ReadObservation, ok bool) {
	if r.Flags&sam.Unmapped != 0 || pos0 < r.Pos {
		return obs, false
	}
	refPos := r.Pos
	qpos := 0
	for k, co := range r.Cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if pos0 < refPos+n {
				qpos += pos0 - refPos
				obs = newObservation(r, qpos)
				obs.setCalledBase(r, qpos)
				if pos0 == refPos+n-1 {
					obs.setIndel(r, r.Cigar[k:], qpos+1)
				}
				return obs, true
			}
			refPos += n
			qpos += n
		case sam.CigarDeletion:
			if pos0 < refPos+n {
				obs = newObservation(r, qpos)
				obs.Base = BaseMiss
				obs.Symbol = EnumToASCIITable[BaseMiss]
				if pos0 == refPos+n-1 {
					obs.setIndel(r, r.Cigar[k:], qpos)
				}
				return obs, true
			}
			refPos += n
		case sam.CigarSkipped:
			if pos0 < refPos+n {
				return ReadObservation{Name: r.Name, Flags: r.Flags, Category: Classify(r.Flags), RefSkip: true}, true
			}
			refPos += n
		case sam.CigarInsertion, sam.CigarSoftClipped:
			qpos += n
		}
	}
	return obs, false
}

// newObservation fills the per-read fields. qpos is the query offset of the
// aligned base, or of the next aligned base for a miss.
func newObservation(r *sam.Record, qpos int) ReadObservation {
	obs := ReadObservation{
		Name:     r.Name,
		Flags:    r.Flags,
		Category: Classify(r.Flags),
		MapQ:     r.MapQ,
	}
	if r.Flags&sam.Reverse != 0 {
		obs.Cycle = InferredReadLength(r.Cigar) - qpos
	} else {
		obs.Cycle = qpos + 1
	}
	return obs
}

func (obs *ReadObservation) setCalledBase(r *sam.Record, qpos int) {
	obs.Base = BaseN
	if qpos < r.Seq.Length {
		obs.Base = Seq8ToEnumTable[seqNibble(r.Seq, qpos)]
	}
	obs.Symbol = EnumToASCIITable[obs.Base]
	if qpos < len(r.Qual) && r.Qual[qpos] != missingQual {
		obs.Qual = r.Qual[qpos]
		obs.HasQual = true
	}
}

// setIndel looks at the operations after cigar[0], which ends at the current
// position, for an insertion or deletion. insStart is the query offset of the
// first inserted base.
func (obs *ReadObservation) setIndel(r *sam.Record, cigar sam.Cigar, insStart int) {
	inDeletion := cigar[0].Type() == sam.CigarDeletion
	ins, del := 0, 0
loop:
	for _, co := range cigar[1:] {
		switch co.Type() {
		case sam.CigarPadded:
		case sam.CigarInsertion:
			if del > 0 {
				break loop
			}
			ins += co.Len()
		case sam.CigarDeletion:
			if ins > 0 || inDeletion {
				break loop
			}
			del += co.Len()
		default:
			break loop
		}
	}
	switch {
	case ins > 0:
		obs.Indel = ins
		var b strings.Builder
		b.WriteByte('+')
		b.WriteString(strconv.Itoa(ins))
		for i := insStart; i < insStart+ins && i < r.Seq.Length; i++ {
			b.WriteByte(Seq8ToASCIITable[seqNibble(r.Seq, i)])
		}
		obs.IndelAllele = b.String()
		for i := insStart; i < insStart+ins && i < len(r.Qual); i++ {
			obs.InsertionQuals = append(obs.InsertionQuals, r.Qual[i])
		}
	case del > 0:
		obs.Indel = -del
		obs.IndelAllele = "-" + strconv.Itoa(del) + strings.Repeat("N", del)
	}
}
