package bamprovider

import (
	"fmt"

	"github.com/grailbio/hts/sam"
	gbam "github.com/hugs314/CIRIquant/encoding/bam"
)

// RefByName finds the sam.Reference with the given name. It returns nil
// if the header has no such reference.
func RefByName(h *sam.Header, refName string) *sam.Reference {
	for _, ref := range h.Refs() {
		if ref.Name() == refName {
			return ref
		}
	}
	return nil
}

// NewRefIterator creates an iterator for the half-open, 0-based range
// [refName:start, refName:limit). It yields reads whose start positions
// are in the range.
func NewRefIterator(p Provider, refName string, start, limit int) Iterator {
	h, err := p.GetHeader()
	if err != nil {
		return NewErrorIterator(err)
	}
	ref := RefByName(h, refName)
	if ref == nil {
		return NewErrorIterator(fmt.Errorf("bamprovider.NewRefIterator: reference %q not found", refName))
	}
	return p.NewIterator(gbam.Shard{
		StartRef: ref,
		EndRef:   ref,
		Start:    start,
		End:      limit,
	})
}
