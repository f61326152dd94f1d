package fasta

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// Index files consist of one tab-separated line per sequence in the associated
// FASTA file.  The format is: "<sequence name>\t<length>\t<byte
// offset>\t<bases per line>\t<bytes per line>".
// For example: "chr3\t12345\t9000\t80\t81".
var indexRegExp = regexp.MustCompile(`^(\S+)\t(\d+)\t(\d+)\t(\d+)\t(\d+)`)

// IndexEntry is one line of a .fai file.
type IndexEntry struct {
	Name string
	// Length is the number of bases in the sequence.
	Length int
	// Offset is the byte offset of the first base.
	Offset int64
	// LineBases is the number of bases on each full line.
	LineBases int
	// LineWidth is the number of bytes on each full line, terminator included.
	LineWidth int
}

// ByteOffset returns the 1-based file offset of the 1-based position pos:
// reading the file from ByteOffset(pos)-1 yields the base at pos.
//
// A position that is a multiple of LineBases is the last base of its line,
// so it is addressed from the start of that line rather than from the start of
// the next one.
func (e IndexEntry) ByteOffset(pos int) int64 {
	var (
		p  = int64(pos)
		lb = int64(e.LineBases)
		lw = int64(e.LineWidth)
	)
	if p%lb == 0 {
		return (p/lb-1)*lw + lb + e.Offset
	}
	return (p/lb)*lw + p%lb + e.Offset
}

// Index maps sequence names to their .fai entries.
type Index map[string]IndexEntry

// SeqNames returns the sequence names in file order.
func (idx Index) SeqNames() []string {
	names := make([]string, 0, len(idx))
	for name := range idx {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return idx[names[i]].Offset < idx[names[j]].Offset
	})
	return names
}

// ReadIndex parses a .fai index. path is used only in diagnostics.
//
// Malformed lines are reported as ReferenceCorruptionError to the error log
// and skipped; the remaining entries are still returned. Only a failure to
// read r is returned as an error.
func ReadIndex(r io.Reader, path string) (Index, error) {
	idx := Index{}
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		ent, reason := parseIndexLine(line)
		if reason != "" {
			log.Error.Printf("%v", &ReferenceCorruptionError{Path: path, Line: lineno, Text: line, Reason: reason})
			continue
		}
		idx[ent.Name] = ent
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "fasta.ReadIndex", path)
	}
	return idx, nil
}

func parseIndexLine(line string) (ent IndexEntry, reason string) {
	matches := indexRegExp.FindStringSubmatch(line)
	if len(matches) != 6 {
		return ent, "expected name, length, offset, bases per line, bytes per line"
	}
	var (
		vals [4]int64
		err  error
	)
	for i := range vals {
		if vals[i], err = strconv.ParseInt(matches[i+2], 10, 64); err != nil {
			return ent, err.Error()
		}
	}
	ent = IndexEntry{
		Name:      matches[1],
		Length:    int(vals[0]),
		Offset:    vals[1],
		LineBases: int(vals[2]),
		LineWidth: int(vals[3]),
	}
	if ent.LineBases <= 0 || ent.LineWidth < ent.LineBases {
		return ent, "line width must be at least bases per line, which must be positive"
	}
	return ent, ""
}

// GenerateIndex generates an index (*.fai) from FASTA.  The index can be later
// passed to ReadIndex() to random-access the FASTA file quickly.
//
// The index format is defined by "samtool faidx"
// (http://www.htslib.org/doc/faidx.html).
func GenerateIndex(out io.Writer, in io.Reader) (err error) {
	var (
		tsvOut      = tsv.NewWriter(out)
		r           = bufio.NewReader(in)
		seqName     string
		seqStartOff int64
		totalBases  int
		lineBases   int
		lineWidth   int
		cumByte     int64
		eof         bool
	)

	setErr := func(e error) {
		if e != nil && err == nil {
			err = e
		}
	}
	flush := func() {
		tsvOut.WriteString(seqName)
		tsvOut.WriteInt64(int64(totalBases))
		tsvOut.WriteInt64(seqStartOff)
		tsvOut.WriteInt64(int64(lineBases))
		tsvOut.WriteInt64(int64(lineWidth))
		setErr(tsvOut.EndLine())
	}
	for !eof && err == nil {
		fullLine, e := r.ReadBytes('\n')
		if e == io.EOF { // Process fullLine, then exit the loop
			eof = true
		} else if e != nil {
			setErr(e)
		}
		cumByte += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			if lineWidth != 0 {
				if seqName == "" {
					setErr(errors.E("malformed FASTA file"))
				}
				flush()
			}
			seqName = strings.Split(string(line[1:]), " ")[0]
			seqStartOff = cumByte
			lineWidth = 0
			lineBases = 0
			totalBases = 0
			continue
		}
		if lineWidth == 0 {
			lineWidth = len(fullLine)
			lineBases = len(line)
		}
		totalBases += len(line)
	}
	flush()
	setErr(tsvOut.Flush())
	if cumByte == 0 {
		setErr(errors.E("empty FASTA file"))
	}
	return
}
