package junction

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
	"github.com/hugs314/CIRIquant/circ"
	"github.com/hugs314/CIRIquant/encoding/bamprovider"
)

// ReconcileGenome checks back-splice candidates against the genome
// alignment and collects forward-splice junction reads.
//
// Genome contigs carrying no circRNA records are skipped outright. On
// each remaining contig two passes run: every record whose (name, mate)
// is a candidate and whose alignment is linear at both ends (outermost
// CIGAR ops match, length >= 5) marks that candidate false-positive;
// then for every circRNA, reads overlapping a junction point whose
// aligned bases cover exactly threshold positions of the flanking
// window and whose ends are unambiguous (outermost ops match or
// length <= 10) are recorded as forward-splice reads for that circRNA,
// last writer wins.
func ReconcileGenome(provider bamprovider.Provider, table *circ.Table, cands CandidateSet, threshold, parallelism int) (PairFlagSet, CandidateSet, error) {
	log.Printf("detecting forward-splice reads in the genome alignment")
	header, err := provider.GetHeader()
	if err != nil {
		return nil, nil, err
	}
	refs := header.Refs()
	if parallelism < 1 {
		parallelism = 1
	}

	type contigResult struct {
		fp  []pairKey
		fsj []candHit
	}
	results := make([]contigResult, len(refs))
	if err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(refs)) / parallelism
		endIdx := ((jobIdx + 1) * len(refs)) / parallelism
		for refIdx := startIdx; refIdx < endIdx; refIdx++ {
			ref := refs[refIdx]
			circs := table.ByContig(ref.Name())
			if len(circs) == 0 {
				continue
			}
			fp, fsj, err := reconcileContig(provider, ref, circs, cands, threshold)
			if err != nil {
				return err
			}
			results[refIdx] = contigResult{fp: fp, fsj: fsj}
		}
		return nil
	}); err != nil {
		return nil, nil, err
	}

	fp := PairFlagSet{}
	fsj := CandidateSet{}
	for _, res := range results {
		for _, k := range res.fp {
			fp.set(k.name, k.mate)
		}
		for _, h := range res.fsj {
			fsj.set(h.name, h.mate, h.circ)
		}
	}
	return fp, fsj, nil
}

func reconcileContig(provider bamprovider.Provider, ref *sam.Reference, circs map[string]*circ.Record, cands CandidateSet, threshold int) ([]pairKey, []candHit, error) {
	var fp []pairKey
	iter := bamprovider.NewRefIterator(provider, ref.Name(), 0, ref.Len())
	for iter.Scan() {
		rec := iter.Record()
		key, bad, err := checkLinear(rec, cands)
		sam.PutInFreePool(rec)
		if err != nil {
			iter.Close() // nolint: errcheck
			return nil, nil, err
		}
		if bad {
			fp = append(fp, key)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, nil, err
	}

	// Junction points in genomic order so that repeated reads resolve
	// the same way on every run.
	recs := make([]*circ.Record, 0, len(circs))
	for _, r := range circs {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Compare(recs[j]) < 0 })

	var fsj []candHit
	for _, rec := range recs {
		windows := []struct{ point, lo, hi int }{
			{rec.Start - 1, rec.Start - 1, rec.Start + threshold - 1},
			{rec.End - 1, rec.End - threshold, rec.End},
		}
		for _, w := range windows {
			hits, err := fsjAtPoint(provider, ref, w.point, w.lo, w.hi, rec.ID, threshold)
			if err != nil {
				return nil, nil, err
			}
			fsj = append(fsj, hits...)
		}
	}
	return fp, fsj, nil
}

// checkLinear reports whether rec disqualifies its back-splice
// candidate by aligning linearly to the genome. Only unmapped records
// are exempt; secondary and supplementary alignments count.
func checkLinear(rec *sam.Record, cands CandidateSet) (pairKey, bool, error) {
	if rec.Flags&sam.Unmapped != 0 {
		return pairKey{}, false, nil
	}
	mate := MateOf(rec.Flags)
	if _, ok := cands[rec.Name][mate]; !ok {
		return pairKey{}, false, nil
	}
	first, last, err := outerOps(rec)
	if err != nil {
		return pairKey{}, false, err
	}
	if linearEnd(first) && linearEnd(last) {
		return pairKey{name: rec.Name, mate: mate}, true, nil
	}
	return pairKey{}, false, nil
}

// fsjAtPoint collects forward-splice reads overlapping the junction
// point, a 0-based reference position. The aligned bases must cover
// exactly threshold positions of the window [lo, hi).
func fsjAtPoint(provider bamprovider.Provider, ref *sam.Reference, point, lo, hi int, circID string, threshold int) ([]candHit, error) {
	var hits []candHit
	iter := provider.NewOverlapIterator(ref, point, point+1)
	for iter.Scan() {
		rec := iter.Record()
		hit, ok, err := checkForward(rec, lo, hi, circID, threshold)
		sam.PutInFreePool(rec)
		if err != nil {
			iter.Close() // nolint: errcheck
			return nil, err
		}
		if ok {
			hits = append(hits, hit)
		}
	}
	return hits, iter.Close()
}

func checkForward(rec *sam.Record, lo, hi int, circID string, threshold int) (candHit, bool, error) {
	if rec.Flags&(sam.Unmapped|sam.Supplementary) != 0 {
		return candHit{}, false, nil
	}
	if alignedOverlap(rec, lo, hi) != threshold {
		return candHit{}, false, nil
	}
	first, last, err := outerOps(rec)
	if err != nil {
		return candHit{}, false, err
	}
	if !mappedEnd(first) || !mappedEnd(last) {
		return candHit{}, false, nil
	}
	return candHit{name: rec.Name, mate: MateOf(rec.Flags), circ: circID}, true, nil
}

func outerOps(rec *sam.Record) (first, last sam.CigarOp, err error) {
	if len(rec.Cigar) == 0 {
		return 0, 0, errors.E(fmt.Sprintf("mapped record %q on %s has no CIGAR", rec.Name, rec.Ref.Name()))
	}
	return rec.Cigar[0], rec.Cigar[len(rec.Cigar)-1], nil
}

// linearEnd reports a fully aligned segment end: a match op of at
// least five bases.
func linearEnd(op sam.CigarOp) bool {
	return op.Type() == sam.CigarMatch && op.Len() >= 5
}

// mappedEnd reports an unambiguous segment end: a match op of any
// length, or any op of at most ten bases. Forward-splice reads may
// carry short clips, so this is looser than linearEnd.
func mappedEnd(op sam.CigarOp) bool {
	return op.Type() == sam.CigarMatch || op.Len() <= 10
}
