package junction

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/hugs314/CIRIquant/circ"
	"github.com/hugs314/CIRIquant/encoding/bamprovider"
)

func reconcileTable() *circ.Table {
	tbl := circ.NewTable()
	tbl.Insert(&circ.Record{Chrom: "chr1", Start: 1001, End: 2000, ID: "circA", Strand: '+'})
	tbl.Insert(&circ.Record{Chrom: "chr2", Start: 501, End: 700, ID: "circB", Strand: '-'})
	return tbl
}

func TestReconcileGenome(t *testing.T) {
	// With threshold 5, circA's junction windows are [1000,1005) and
	// [1995,2000); circB's start window is [500,505).
	recs := []*sam.Record{
		// Candidates re-checked against the genome.
		newRecord("p1", genomeChr1, 1500, r1, ops(sam.CigarMatch, 50)),
		newRecord("p2", genomeChr1, 1500, r1, ops(sam.CigarSoftClipped, 6, sam.CigarMatch, 20, sam.CigarSoftClipped, 4)),
		newRecord("p9", genomeChr1, 1600, r1|sam.Secondary, ops(sam.CigarMatch, 50)),
		newRecord("p10", genomeChr1, 1700, r1|sam.Unmapped, nil),
		// Reads around circA's start junction.
		newRecord("f1", genomeChr1, 990, r1, ops(sam.CigarMatch, 20)),
		newRecord("f2", genomeChr1, 998, r2, ops(sam.CigarMatch, 3, sam.CigarInsertion, 10, sam.CigarMatch, 2)),
		newRecord("f3", genomeChr1, 1000, r1, ops(sam.CigarSoftClipped, 12, sam.CigarMatch, 30)),
		newRecord("f4", genomeChr1, 995, r1, ops(sam.CigarSoftClipped, 8, sam.CigarMatch, 10)),
		// Reads around circA's end junction.
		newRecord("f5", genomeChr1, 1990, r2, ops(sam.CigarMatch, 15)),
		newRecord("f6", genomeChr1, 1990, r2|sam.Supplementary, ops(sam.CigarMatch, 15)),
		// Reads on the other contigs.
		newRecord("g1", genomeChr2, 498, r1, ops(sam.CigarMatch, 10)),
		newRecord("p11", genomeChrM, 100, r1, ops(sam.CigarMatch, 50)),
	}
	cands := CandidateSet{
		"p1":  {1: "circA"},
		"p2":  {1: "circA"},
		"p9":  {1: "circA"},
		"p10": {1: "circA"},
		"p11": {1: "circA"},
	}
	provider := bamprovider.NewFakeProvider(genomeHdr, recs)
	fp, fsj, err := ReconcileGenome(provider, reconcileTable(), cands, 5, 2)
	assert.NoError(t, err)

	// p1 aligns linearly, and so does p9 even though its alignment is
	// secondary. p2's ends are clipped, p10 is unmapped, and p11 only
	// aligns to a contig without circRNAs.
	expect.EQ(t, fp, PairFlagSet{
		"p1": {1: true},
		"p9": {1: true},
	})
	expect.EQ(t, fsj, CandidateSet{
		"f1": {1: "circA"},
		"f4": {1: "circA"},
		"f5": {-1: "circA"},
		"g1": {1: "circB"},
	})
}

func TestReconcileGenomeNoCigar(t *testing.T) {
	recs := []*sam.Record{
		newRecord("px", genomeChr1, 10, r1, nil),
	}
	cands := CandidateSet{"px": {1: "circA"}}
	provider := bamprovider.NewFakeProvider(genomeHdr, recs)
	_, _, err := ReconcileGenome(provider, reconcileTable(), cands, 5, 1)
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "no CIGAR")
}
