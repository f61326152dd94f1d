package fasta

import "fmt"

// IndexFileError is returned by OpenReference when the FASTA file or its .fai
// index cannot be opened or read.
type IndexFileError struct {
	Path string
	Err  error
}

func (e *IndexFileError) Error() string {
	return fmt.Sprintf("fasta: cannot use reference %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *IndexFileError) Unwrap() error { return e.Err }

// ReferenceCorruptionError describes a malformed .fai line. ReadIndex logs
// these instead of returning them.
type ReferenceCorruptionError struct {
	Path   string
	Line   int
	Text   string
	Reason string
}

func (e *ReferenceCorruptionError) Error() string {
	return fmt.Sprintf("fasta: %s:%d: skipping corrupted index line %q: %s", e.Path, e.Line, e.Text, e.Reason)
}
