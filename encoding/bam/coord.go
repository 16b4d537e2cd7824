package bam

import (
	"math"

	"github.com/grailbio/hts/sam"
)

const (
	// InfinityPos is 1 + the largest possible alignment position.
	InfinityPos = math.MaxInt32
	// UnmappedRefID is the reference ID of records without a reference.
	// Unmapped records sort after all mapped records.
	UnmappedRefID = int32(-1)
)

// Coord identifies a position in a BAM file: a reference ID and a 0-based
// position on that reference.
type Coord struct {
	RefID int32
	Pos   int32
}

func sortableRefID(id int32) int32 {
	if id == UnmappedRefID {
		return math.MaxInt32
	}
	return id
}

// NewCoord returns the Coord for position pos on ref. A nil ref means
// unmapped; the position of an unmapped record is treated as zero.
func NewCoord(ref *sam.Reference, pos int) Coord {
	if ref == nil {
		return Coord{UnmappedRefID, 0}
	}
	return Coord{int32(ref.ID()), int32(pos)}
}

// CoordFromRecord returns the start Coord of r.
func CoordFromRecord(r *sam.Record) Coord {
	if r.Ref == nil {
		return Coord{UnmappedRefID, 0}
	}
	return Coord{int32(r.Ref.ID()), int32(r.Pos)}
}

// Compare returns a negative value, zero, or a positive value if c sorts
// before, equal to, or after o.
func (c Coord) Compare(o Coord) int {
	r0, r1 := sortableRefID(c.RefID), sortableRefID(o.RefID)
	if r0 != r1 {
		if r0 < r1 {
			return -1
		}
		return 1
	}
	switch {
	case c.Pos < o.Pos:
		return -1
	case c.Pos > o.Pos:
		return 1
	}
	return 0
}

// LT returns true if c sorts before o.
func (c Coord) LT(o Coord) bool { return c.Compare(o) < 0 }

// GE returns true if c sorts at or after o.
func (c Coord) GE(o Coord) bool { return c.Compare(o) >= 0 }
