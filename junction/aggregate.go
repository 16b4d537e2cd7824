package junction

// Aggregate folds the per-read junction calls into per-circRNA pair
// evidence.
//
// Every candidate (name, mate) that survived the genome check adds its
// pair to the back-splice evidence of its circRNA. Every forward-splice
// (name, mate) adds its pair to the forward-splice evidence unless the
// same (name, mate) is still a valid back-splice candidate; the two
// roles are mutually exclusive per read.
func Aggregate(cands CandidateSet, fp PairFlagSet, fsj CandidateSet) (Evidence, Evidence) {
	bsjEv := Evidence{}
	for name, mates := range cands {
		for mate, circID := range mates {
			if fp[name][mate] {
				continue
			}
			bsjEv.add(circID, PairPrefix(name))
		}
	}
	fsjEv := Evidence{}
	for name, mates := range fsj {
		for mate, circID := range mates {
			if _, ok := cands[name][mate]; ok && !fp[name][mate] {
				continue
			}
			fsjEv.add(circID, PairPrefix(name))
		}
	}
	return bsjEv, fsjEv
}

// CircReads returns the number of reads giving back-splice evidence,
// counting both mates of every supporting pair.
func CircReads(bsjEv Evidence) int64 {
	var n int64
	for _, pairs := range bsjEv {
		n += int64(len(pairs))
	}
	return 2 * n
}
