package bam

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
)

func TestCoordFromRecord(t *testing.T) {
	ref, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	assert.Nil(t, err)
	_, err = sam.NewHeader(nil, []*sam.Reference{ref})
	assert.Nil(t, err)

	mapped := &sam.Record{Name: "r", Ref: ref, Pos: 42}
	assert.Equal(t, Coord{0, 42}, CoordFromRecord(mapped))

	unmapped := &sam.Record{Name: "u", Ref: nil, Pos: -1}
	assert.Equal(t, Coord{UnmappedRefID, 0}, CoordFromRecord(unmapped))
	// The position of an unmapped record is ignored.
	assert.Equal(t, CoordFromRecord(unmapped), NewCoord(nil, 12345))
}

func TestCoordOrdering(t *testing.T) {
	tests := []struct {
		a, b Coord
		want int
	}{
		{Coord{0, 0}, Coord{0, 0}, 0},
		{Coord{0, 5}, Coord{0, 9}, -1},
		{Coord{0, 9}, Coord{1, 0}, -1},
		{Coord{1, 100}, Coord{UnmappedRefID, 0}, -1},
		{Coord{UnmappedRefID, 0}, Coord{UnmappedRefID, 7}, -1},
		{Coord{UnmappedRefID, 7}, Coord{UnmappedRefID, 7}, 0},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, test.a.Compare(test.b), "Compare(%v, %v)", test.a, test.b)
		assert.Equal(t, -test.want, test.b.Compare(test.a), "Compare(%v, %v)", test.b, test.a)
	}
}
