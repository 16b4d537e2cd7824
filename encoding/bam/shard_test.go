package bam_test

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
	gbam "github.com/hugs314/CIRIquant/encoding/bam"
)

func newHeader(t *testing.T, lengths ...int) *sam.Header {
	refs := make([]*sam.Reference, 0, len(lengths))
	for i, n := range lengths {
		ref, err := sam.NewReference(string(rune('a'+i)), "", "", n, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		refs = append(refs, ref)
	}
	header, err := sam.NewHeader(nil, refs)
	if err != nil {
		t.Fatal(err)
	}
	return header
}

func TestCoordCompare(t *testing.T) {
	header := newHeader(t, 100, 200)
	refs := header.Refs()
	c00 := gbam.NewCoord(refs[0], 0)
	c05 := gbam.NewCoord(refs[0], 5)
	c10 := gbam.NewCoord(refs[1], 0)
	unmapped := gbam.NewCoord(nil, 0)

	expect.True(t, c00.LT(c05))
	expect.True(t, c05.LT(c10))
	expect.True(t, c10.LT(unmapped))
	expect.False(t, unmapped.LT(c00))
	expect.True(t, unmapped.GE(c10))
	expect.EQ(t, c05.Compare(c05), 0)
}

func TestUniversalShard(t *testing.T) {
	header := newHeader(t, 100, 200)
	shard := gbam.UniversalShard(header)
	refs := header.Refs()

	for _, rec := range []*sam.Record{
		{Ref: refs[0], Pos: 0},
		{Ref: refs[0], Pos: 99},
		{Ref: refs[1], Pos: 150},
		{Ref: nil, Pos: -1},
	} {
		expect.True(t, shard.RecordInShard(rec), "rec %v", rec)
	}
}

func TestRefShards(t *testing.T) {
	header := newHeader(t, 100, 200)
	shards := gbam.RefShards(header)
	expect.EQ(t, len(shards), 2)
	refs := header.Refs()

	expect.True(t, shards[0].RecordInShard(&sam.Record{Ref: refs[0], Pos: 99}))
	expect.False(t, shards[0].RecordInShard(&sam.Record{Ref: refs[1], Pos: 0}))
	expect.False(t, shards[0].RecordInShard(&sam.Record{Ref: nil, Pos: -1}))
	expect.True(t, shards[1].RecordInShard(&sam.Record{Ref: refs[1], Pos: 0}))
	expect.EQ(t, shards[1].ShardIdx, 1)
}

func TestContigShards(t *testing.T) {
	header := newHeader(t, 100, 200, 300, 400, 500)
	shards := gbam.ContigShards(header, 2)
	expect.EQ(t, len(shards), 3)
	refs := header.Refs()

	// First shard spans refs 0-1, second 2-3, third only ref 4.
	expect.True(t, shards[0].RecordInShard(&sam.Record{Ref: refs[1], Pos: 199}))
	expect.False(t, shards[0].RecordInShard(&sam.Record{Ref: refs[2], Pos: 0}))
	expect.True(t, shards[1].RecordInShard(&sam.Record{Ref: refs[2], Pos: 0}))
	expect.True(t, shards[1].RecordInShard(&sam.Record{Ref: refs[3], Pos: 399}))
	expect.True(t, shards[2].RecordInShard(&sam.Record{Ref: refs[4], Pos: 250}))
	expect.EQ(t, shards[2].StartRef.Name(), "e")
	expect.EQ(t, shards[2].EndRef.Name(), "e")

	one := gbam.ContigShards(header, 100)
	expect.EQ(t, len(one), 1)
	expect.EQ(t, one[0].End, 500)
}

func TestPadding(t *testing.T) {
	header := newHeader(t, 100)
	ref := header.Refs()[0]
	shard := gbam.Shard{StartRef: ref, EndRef: ref, Start: 10, End: 90, Padding: 20}
	expect.EQ(t, shard.PaddedStart(), 0)
	expect.EQ(t, shard.PaddedEnd(), 100)
	expect.EQ(t, shard.PadStart(5), 5)
	expect.EQ(t, shard.PadEnd(5), 95)
}
