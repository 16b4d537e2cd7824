package bamprovider

import (
	"github.com/grailbio/hts/sam"
	gbam "github.com/hugs314/CIRIquant/encoding/bam"
)

// fakeProvider is only for unittests. It yields the given records.
type fakeProvider struct {
	header *sam.Header
	recs   []*sam.Record
}

type fakeIterator struct {
	recs []*sam.Record
	rec  *sam.Record

	// Start-position range, as in the real shard iterator.
	start, limit gbam.Coord
	// Overlap mode, as in the real overlap iterator.
	overlap          bool
	ovRef            *sam.Reference
	ovStart, ovLimit int
}

// NewFakeProvider creates a provider that returns header from GetHeader
// and serves recs through its iterators.
func NewFakeProvider(header *sam.Header, recs []*sam.Record) Provider {
	return &fakeProvider{header, recs}
}

// GetHeader implements the Provider interface.
func (b *fakeProvider) GetHeader() (*sam.Header, error) {
	return b.header, nil
}

// Close implements the Provider interface.
func (b *fakeProvider) Close() error {
	return nil
}

// NewIterator implements the Provider interface.
func (b *fakeProvider) NewIterator(shard gbam.Shard) Iterator {
	return &fakeIterator{
		recs:  b.recs,
		start: shard.StartCoord(),
		limit: shard.EndCoord(),
	}
}

// NewOverlapIterator implements the Provider interface.
func (b *fakeProvider) NewOverlapIterator(ref *sam.Reference, start, limit int) Iterator {
	return &fakeIterator{
		recs:    b.recs,
		overlap: true,
		ovRef:   ref,
		ovStart: start,
		ovLimit: limit,
	}
}

// Err implements the Iterator interface.
func (i *fakeIterator) Err() error {
	return nil
}

// Close implements the Iterator interface.
func (i *fakeIterator) Close() error {
	return nil
}

func (i *fakeIterator) Scan() bool {
	for len(i.recs) > 0 {
		i.rec = i.recs[0]
		i.recs = i.recs[1:]
		if i.overlap {
			if i.rec.Ref == nil || i.ovRef == nil || i.rec.Ref.ID() != i.ovRef.ID() {
				continue
			}
			if i.rec.Pos >= i.ovLimit || i.rec.End() <= i.ovStart {
				continue
			}
			return true
		}
		addr := gbam.CoordFromRecord(i.rec)
		if addr.GE(i.start) && addr.LT(i.limit) {
			return true
		}
	}
	return false
}

func (i *fakeIterator) Record() *sam.Record {
	// Return a copy so that the code under test cannot alter the
	// original test input data.
	r := sam.GetFromFreePool()
	*r = *i.rec
	return r
}
