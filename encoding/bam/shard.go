package bam

import (
	"fmt"
	"math"

	"github.com/grailbio/hts/sam"
)

// Shard represents a half-open, 0-based genomic interval
// [<StartRef,Start>, <EndRef,End>). An iterator for a shard yields records
// whose start positions fall within the interval. StartRef and EndRef may
// differ, in which case the shard covers every position on the references
// between them in header order. A nil EndRef extends the shard past the
// last reference, so it also covers unmapped records.
//
// Padding expands the iterated range to [PaddedStart, PaddedEnd) without
// changing shard ownership of the padded regions.
//
// Shards are ordered as in the BAM file; ShardIdx is the index in that
// ordering.
type Shard struct {
	StartRef *sam.Reference
	EndRef   *sam.Reference
	Start    int
	End      int

	Padding  int
	ShardIdx int
}

// UniversalShard returns a Shard covering the whole file: every mapped
// record and the unmapped records after them.
func UniversalShard(header *sam.Header) Shard {
	var startRef *sam.Reference
	if len(header.Refs()) > 0 {
		startRef = header.Refs()[0]
	}
	return Shard{
		StartRef: startRef,
		EndRef:   nil,
		Start:    0,
		End:      math.MaxInt32,
	}
}

// RefShards returns one shard per reference sequence, in header order.
func RefShards(header *sam.Header) []Shard {
	refs := header.Refs()
	shards := make([]Shard, 0, len(refs))
	for i, ref := range refs {
		shards = append(shards, Shard{
			StartRef: ref,
			EndRef:   ref,
			Start:    0,
			End:      ref.Len(),
			ShardIdx: i,
		})
	}
	return shards
}

// ContigShards partitions the reference sequences into runs of up to
// refsPerShard consecutive contigs and returns one shard per run. Each run
// covers its contigs in full.
func ContigShards(header *sam.Header, refsPerShard int) []Shard {
	if refsPerShard <= 0 {
		refsPerShard = 1
	}
	refs := header.Refs()
	var shards []Shard
	for i := 0; i < len(refs); i += refsPerShard {
		j := i + refsPerShard - 1
		if j >= len(refs) {
			j = len(refs) - 1
		}
		shards = append(shards, Shard{
			StartRef: refs[i],
			EndRef:   refs[j],
			Start:    0,
			End:      refs[j].Len(),
			ShardIdx: len(shards),
		})
	}
	return shards
}

// PadStart returns max(s.Start-padding, 0).
func (s *Shard) PadStart(padding int) int {
	return max(0, s.Start-padding)
}

// PaddedStart is the effective start of the range to read, including
// s.Padding.
func (s *Shard) PaddedStart() int {
	return s.PadStart(s.Padding)
}

// PadEnd returns min(s.End+padding, length of s.EndRef). With a nil EndRef
// the limit only needs to stay positive, since unmapped records all sit at
// position zero.
func (s *Shard) PadEnd(padding int) int {
	if s.EndRef == nil {
		return min(math.MaxInt32, s.End+padding)
	}
	return min(s.EndRef.Len(), s.End+padding)
}

// PaddedEnd is the effective limit of the range to read, including
// s.Padding.
func (s *Shard) PaddedEnd() int {
	return s.PadEnd(s.Padding)
}

// StartCoord returns the padded start of s as a Coord.
func (s *Shard) StartCoord() Coord {
	return NewCoord(s.StartRef, s.PaddedStart())
}

// EndCoord returns the padded limit of s as a Coord.
func (s *Shard) EndCoord() Coord {
	if s.EndRef == nil {
		return Coord{UnmappedRefID, int32(s.PaddedEnd())}
	}
	return NewCoord(s.EndRef, s.PaddedEnd())
}

// RecordInShard returns true if the start position of r lies in s
// (ignoring padding).
func (s *Shard) RecordInShard(r *sam.Record) bool {
	coord := CoordFromRecord(r)
	if coord.LT(NewCoord(s.StartRef, s.Start)) {
		return false
	}
	if s.EndRef == nil {
		return coord.LT(Coord{UnmappedRefID, int32(s.End)})
	}
	return coord.LT(NewCoord(s.EndRef, s.End))
}

// String returns a debug string for s.
func (s *Shard) String() string {
	return fmt.Sprintf("%d:(%s,%d(%d))-(%s,%d(%d))",
		s.ShardIdx, refName(s.StartRef), s.Start, s.PaddedStart(),
		refName(s.EndRef), s.End, s.PaddedEnd())
}

func refName(ref *sam.Reference) string {
	if ref == nil {
		return "*"
	}
	return ref.Name()
}

func min(x, y int) int {
	if y < x {
		return y
	}
	return x
}

func max(x, y int) int {
	if y > x {
		return y
	}
	return x
}
