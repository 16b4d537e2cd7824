package junction

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
	gbam "github.com/hugs314/CIRIquant/encoding/bam"
	"github.com/hugs314/CIRIquant/encoding/bamprovider"
)

// minScanChunk bounds the number of scan shards: tiny pseudo-contigs
// are grouped at least this many per iterator.
const minScanChunk = 500

// ScanPseudo scans the pseudo-circular alignment for reads crossing the
// back-splice junction. Every pseudo-contig is a doubled circRNA
// sequence, so its junction sits at the contig midpoint; a read is a
// candidate when its aligned bases fully cover the window of threshold
// bases on both sides of the midpoint. Unmapped and supplementary
// records are ignored.
func ScanPseudo(provider bamprovider.Provider, threshold, parallelism int) (CandidateSet, error) {
	log.Printf("detecting back-splice candidates in the pseudo alignment")
	header, err := provider.GetHeader()
	if err != nil {
		return nil, err
	}
	if parallelism < 1 {
		parallelism = 1
	}
	chunk := len(header.Refs())/parallelism + 1
	if chunk < minScanChunk {
		chunk = minScanChunk
	}
	shards := gbam.ContigShards(header, chunk)
	parts := make([][]candHit, len(shards))
	if err := traverse.Each(len(shards), func(i int) error {
		var hits []candHit
		iter := provider.NewIterator(shards[i])
		for iter.Scan() {
			rec := iter.Record()
			if hit, ok := scanRecord(rec, threshold); ok {
				hits = append(hits, hit)
			}
			sam.PutInFreePool(rec)
		}
		parts[i] = hits
		return iter.Close()
	}); err != nil {
		return nil, err
	}

	cands := CandidateSet{}
	n := 0
	for _, hits := range parts {
		for _, h := range hits {
			cands.set(h.name, h.mate, h.circ)
			n++
		}
	}
	log.Printf("%d candidate alignments on %d pseudo-contigs", n, len(header.Refs()))
	return cands, nil
}

func scanRecord(rec *sam.Record, threshold int) (candHit, bool) {
	if rec.Flags&(sam.Unmapped|sam.Supplementary) != 0 {
		return candHit{}, false
	}
	mid := rec.Ref.Len() / 2
	if alignedOverlap(rec, mid-threshold, mid+threshold) < 2*threshold {
		return candHit{}, false
	}
	return candHit{name: rec.Name, mate: MateOf(rec.Flags), circ: rec.Ref.Name()}, true
}

// alignedOverlap counts the reference positions in [start, end) covered
// by match-consuming CIGAR ops of rec.
func alignedOverlap(rec *sam.Record, start, end int) int {
	pos := rec.Pos
	n := 0
	for _, co := range rec.Cigar {
		t := co.Type()
		switch t {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			lo, hi := pos, pos+co.Len()
			if lo < start {
				lo = start
			}
			if hi > end {
				hi = end
			}
			if hi > lo {
				n += hi - lo
			}
		}
		if t.Consumes().Reference == 1 {
			pos += co.Len()
		}
	}
	return n
}
