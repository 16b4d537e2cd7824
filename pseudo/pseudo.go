// Package pseudo builds the pseudo-circular reference used for
// back-splice alignment. Each circRNA sequence appears twice in
// tandem, so a read spanning the back-splice junction aligns linearly
// across the middle of its pseudo-contig.
package pseudo

import (
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/hugs314/CIRIquant/circ"
	"github.com/hugs314/CIRIquant/encoding/fasta"
)

// BuildFasta writes the doubled sequence of every circRNA in table to
// w as FASTA, one record per circRNA, named by its ID. Records whose
// sequence is empty or more than half masked bases are skipped.
// Sequences are uppercased so that soft-masked regions count toward
// the mask fraction. Returns the number of sequences written.
func BuildFasta(genome fasta.Fasta, table *circ.Table, w io.Writer) (n int, err error) {
	log.Printf("extracting circular sequences for %d circRNAs", table.Len())
	lens := map[string]uint64{}
	table.Do(func(rec *circ.Record) bool {
		chromLen, ok := lens[rec.Chrom]
		if !ok {
			chromLen, err = genome.Len(rec.Chrom)
			if err != nil {
				err = errors.E(err, fmt.Sprintf("circRNA contig %s is not in the reference", rec.Chrom))
				return true
			}
			lens[rec.Chrom] = chromLen
		}
		start, end := uint64(rec.Start-1), uint64(rec.End)
		if start >= chromLen {
			return false
		}
		if end > chromLen {
			end = chromLen
		}
		var seq string
		if seq, err = genome.Get(rec.Chrom, start, end); err != nil {
			return true
		}
		seq = strings.ToUpper(seq)
		if 2*strings.Count(seq, "N") > len(seq) {
			return false
		}
		if _, err = fmt.Fprintf(w, ">%s\n%s%s\n", rec.ID, seq, seq); err != nil {
			return true
		}
		n++
		return false
	})
	if err != nil {
		return n, err
	}
	log.Printf("pseudo reference holds %d sequences", n)
	return n, nil
}
