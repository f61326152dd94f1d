// Package bamprovider reads pileup columns out of an indexed BAM file.
//
// The Provider is an interface for looking up the reads aligned over single
// reference positions. A Provider is not meant to be shared between
// goroutines that issue lookups at a high rate; open one Provider per worker.
package bamprovider
