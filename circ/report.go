package circ

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// Annotation carries the classification attributes reported for a
// circRNA. Empty fields are omitted from the output.
type Annotation struct {
	CircType string
	GeneID   string
	GeneName string
	GeneType string
}

// WriteExpression writes the expression table to path. Each circRNA with
// back-splice junction evidence becomes one GTF-style row
//
//	chrom  circRNA  ID  start  end  bsj  strand  .  attributes
//
// in genomic order. The attribute column always reports the bsj and fsj
// read-pair counts and the junction ratio 2*bsj/(2*bsj+fsj); the fields
// of annotate(rec) follow when non-empty. annotate may be nil.
func WriteExpression(ctx context.Context, path string, t *Table, bsj, fsj map[string]int, annotate func(*Record) Annotation) (err error) {
	log.Printf("writing circRNA expression values to %s", path)
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return errors.E(err, path)
	}
	defer file.CloseAndReport(ctx, dst, &err)
	w := tsv.NewWriter(dst.Writer(ctx))
	t.Do(func(rec *Record) bool {
		nBSJ := bsj[rec.ID]
		if nBSJ <= 0 {
			return false
		}
		var ann Annotation
		if annotate != nil {
			ann = annotate(rec)
		}
		w.WriteString(rec.Chrom)
		w.WriteString("circRNA")
		w.WriteString(rec.ID)
		w.WriteInt64(int64(rec.Start))
		w.WriteInt64(int64(rec.End))
		w.WriteInt64(int64(nBSJ))
		w.WriteByte(rec.Strand)
		w.WriteString(".")
		w.WriteString(attrColumn(nBSJ, fsj[rec.ID], ann))
		if err = w.EndLine(); err != nil {
			return true
		}
		return false
	})
	if err != nil {
		return err
	}
	return w.Flush()
}

func attrColumn(nBSJ, nFSJ int, ann Annotation) string {
	ratio := 0.0
	if denom := 2*nBSJ + nFSJ; denom > 0 {
		ratio = 2 * float64(nBSJ) / float64(denom)
	}
	attr := fmt.Sprintf("bsj %.1f; fsj %.1f; junc_ratio %.3f;", float64(nBSJ), float64(nFSJ), ratio)
	for _, kv := range []struct{ key, val string }{
		{"circ_type", ann.CircType},
		{"gene_id", ann.GeneID},
		{"gene_name", ann.GeneName},
		{"gene_type", ann.GeneType},
	} {
		if kv.val != "" {
			attr += fmt.Sprintf(" %s \"%s\";", kv.key, kv.val)
		}
	}
	return attr
}
