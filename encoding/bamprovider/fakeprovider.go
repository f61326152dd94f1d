package bamprovider

import (
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/posinfo/pileup"
)

// fakeProvider is only for unittests. It yields columns built from the given
// records.
type fakeProvider struct {
	header *sam.Header
	recs   []*sam.Record
}

// NewFakeProvider creates a provider that returns "header" in response to a
// GetHeader() call, and builds columns out of recs in response to Column
// calls. recs need not be sorted.
func NewFakeProvider(header *sam.Header, recs []*sam.Record) Provider {
	return &fakeProvider{header, recs}
}

// GetHeader implements the Provider interface. It returns the header passed to
// the constructor.
func (b *fakeProvider) GetHeader() (*sam.Header, error) {
	return b.header, nil
}

// Column implements the pileup.Source interface.
func (b *fakeProvider) Column(chrom string, pos int) (pileup.Column, error) {
	var recs []*sam.Record
	for _, r := range b.recs {
		if r.Ref != nil && r.Ref.Name() == chrom {
			// Copy so that the code under test cannot alter the original test
			// input data.
			copy := *r
			recs = append(recs, &copy)
		}
	}
	return pileup.NewColumn(chrom, pos, recs), nil
}

// Close implements the Provider interface.
func (b *fakeProvider) Close() error {
	return nil
}
