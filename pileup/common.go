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
	"fmt"
	"strings"

	"github.com/grailbio/hts/sam"
)

// Common pileup components.

// Base is the per-position bucket a read is counted under. The order matches
// the column order of the per-base output fields.
type Base byte

const (
	// BaseA represents an A base.
	BaseA Base = iota
	// BaseT represents a T base.
	BaseT
	// BaseC represents a C base.
	BaseC
	// BaseG represents a G base.
	BaseG
	// BaseN is a catch-all for N and the other IUPAC codes.
	BaseN
	// BaseMiss means the read has no base aligned to the position (it is
	// inside a deletion).
	BaseMiss
)

const (
	// NBase is the number of called-base buckets.
	NBase = 5
	// NBaseEnum counts BaseMiss as well as the called-base buckets.
	NBaseEnum = 6
)

// BaseNames are the field-name prefixes of each bucket.
var BaseNames = [NBaseEnum]string{"A", "T", "C", "G", "N", "miss"}

// Seq8ToEnumTable is the .bam seq nibble -> A/T/C/G/N enum mapping.
var Seq8ToEnumTable = [...]Base{BaseN, BaseA, BaseC, BaseN, BaseG, BaseN, BaseN, BaseN, BaseT, BaseN, BaseN, BaseN, BaseN, BaseN, BaseN, BaseN}

// EnumToASCIITable is the enum -> ASCII mapping, with a miss rendered as '*'.
var EnumToASCIITable = [...]byte{'A', 'T', 'C', 'G', 'N', '*'}

// Seq8ToASCIITable is the .bam seq nibble -> ASCII mapping.
var Seq8ToASCIITable = [...]byte{'=', 'A', 'C', 'M', 'G', 'R', 'S', 'V', 'T', 'W', 'Y', 'H', 'K', 'D', 'B', 'N'}

// Category is the strand/mate class of a read.
type Category int

const (
	// Indeterminate means the strand/mate class cannot be decided; such reads
	// are not counted.
	Indeterminate Category = -1
	// FwdRead1 is a forward-strand first mate, or a forward-strand unpaired
	// read.
	FwdRead1 Category = 0
	// FwdRead2 is a forward-strand second mate.
	FwdRead2 Category = 1
	// RevRead1 is a reverse-strand first mate, or a reverse-strand unpaired
	// read.
	RevRead1 Category = 2
	// RevRead2 is a reverse-strand second mate.
	RevRead2 Category = 3
)

// NCategory is the number of determinate categories.
const NCategory = 4

// CategoryNames is the Category -> label mapping.
var CategoryNames = [NCategory]string{"F1", "F2", "R1", "R2"}

func (c Category) String() string {
	if c < 0 || c >= NCategory {
		return "indeterminate"
	}
	return CategoryNames[c]
}

// Classify returns the strand/mate category for a read with the given flags.
// A read with either mate flag set is treated as paired; an unmapped read has
// no strand and is Indeterminate.
func Classify(flags sam.Flags) Category {
	if flags&sam.Unmapped != 0 {
		return Indeterminate
	}
	reverse := flags&sam.Reverse != 0
	switch {
	case flags&sam.Read1 != 0:
		if reverse {
			return RevRead1
		}
		return FwdRead1
	case flags&sam.Read2 != 0:
		if reverse {
			return RevRead2
		}
		return FwdRead2
	case reverse:
		return RevRead1
	}
	return FwdRead1
}

// ParseCols parses a column-list descriptor given on the command line
// (colsParam) against the known column names and returns the ordered list of
// output columns.
func ParseCols(colsParam string, known func(name string) bool, defaultCols []string) (cols []string, err error) {
	cols = append([]string{}, defaultCols...)
	if colsParam == "" {
		return cols, nil
	}

	colsParamParts := strings.Split(colsParam, ",")
	// Two cases:
	// 1. Each part has a '+' or a '-' in front.  Treat these as patches to the
	//    default column list.
	// 2. No part has a '+' or a '-' in front.  Append them to the default
	//    list.
	isPatch := func(part string) bool {
		return part != "" && (part[0] == '+' || part[0] == '-')
	}
	patch := isPatch(strings.TrimSpace(colsParamParts[0]))
	for _, part := range colsParamParts {
		part = strings.TrimSpace(part)
		if isPatch(part) != patch {
			return nil, fmt.Errorf("parseCols: either all terms in column set descriptor must be preceded by +/-, or none can be")
		}
		name := part
		if patch {
			name = part[1:]
		}
		if !known(name) {
			return nil, fmt.Errorf("parseCols: %v not found", name)
		}
		switch {
		case !patch:
			cols = append(cols, name)
		case part[0] == '+':
			if indexOf(cols, name) < 0 {
				cols = append(cols, name)
			}
		default:
			if i := indexOf(cols, name); i >= 0 {
				cols = append(cols[:i], cols[i+1:]...)
			}
		}
	}
	return cols, nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
