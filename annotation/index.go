package annotation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/hugs314/CIRIquant/circ"
)

// binSize is the width of the coordinate bins used to shard features
// within a contig.
const binSize = 500

// Index holds gene and exon features binned by contig and coordinate. A
// feature appears in every bin its span touches.
type Index struct {
	bins map[string]map[int][]*Feature
}

func (x *Index) add(f *Feature) {
	m, ok := x.bins[f.Chrom]
	if !ok {
		m = make(map[int][]*Feature)
		x.bins[f.Chrom] = m
	}
	for b := f.Start / binSize; b <= f.End/binSize; b++ {
		m[b] = append(m[b], f)
	}
}

// gtfRow mirrors the nine columns of a GTF line.
type gtfRow struct {
	Chrom  string
	Source string
	Kind   string
	Start  int
	End    int
	Score  string
	Strand string
	Frame  string
	Attrs  string
}

// LoadIndex reads a GTF file and indexes its gene and exon rows. Lines
// starting with '#' are skipped, other feature kinds are ignored, and a
// ".gz" path is decompressed transparently.
func LoadIndex(ctx context.Context, path string) (idx *Index, err error) {
	log.Printf("loading annotation from %s", path)
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = errors.E(e, path)
		}
	}()
	var inr io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		inr = u
	}
	sc := tsv.NewReader(bufio.NewReaderSize(inr, 64<<10))
	sc.Comment = '#'
	sc.LazyQuotes = true

	idx = &Index{bins: make(map[string]map[int][]*Feature)}
	nFeatures := 0
	var row gtfRow
	for n := 1; ; n++ {
		if err = sc.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(err, path)
		}
		if row.Kind != "gene" && row.Kind != "exon" {
			continue
		}
		if msg := validateRow(&row); msg != "" {
			return nil, &circ.FormatError{Path: path, Line: n, Msg: msg}
		}
		idx.add(&Feature{
			Chrom:  row.Chrom,
			Source: row.Source,
			Kind:   row.Kind,
			Start:  row.Start,
			End:    row.End,
			Strand: row.Strand[0],
			Attrs:  parseAttributes(row.Attrs),
		})
		nFeatures++
	}
	err = nil
	log.Printf("indexed %d gene and exon features from %s", nFeatures, path)
	return idx, nil
}

func validateRow(row *gtfRow) string {
	if row.Start < 1 {
		return fmt.Sprintf("start position %d is not 1-based", row.Start)
	}
	if row.End < row.Start {
		return fmt.Sprintf("end %d before start %d", row.End, row.Start)
	}
	if len(row.Strand) != 1 {
		return fmt.Sprintf("bad strand %q", row.Strand)
	}
	return ""
}

// Classify annotates one circRNA interval against the index.
//
// Host genes are the gene features overlapping [Start, End] on either
// strand, deduplicated by gene_id in first-seen order. When host genes
// exist and no coordinate bin in the interval is empty, each same-strand
// host gene marks the circRNA exonic (both junction sites inside
// same-strand exons and genes), intronic (both sites inside same-strand
// genes only) or gene-internal intergenic, and each opposite-strand host
// gene marks it antisense. Otherwise the circRNA is intergenic. When
// several labels accumulate the strongest wins, in the order exon,
// intron, intergenic (gene-internal), antisense, intergenic.
//
// The reported gene fields comma-join the same-strand host genes and
// stay empty when there are none.
func (x *Index) Classify(rec *circ.Record) (circ.Annotation, error) {
	chromBins, ok := x.bins[rec.Chrom]
	if !ok {
		return circ.Annotation{}, &AttrError{Msg: fmt.Sprintf("contig %q not present in the annotation", rec.Chrom)}
	}

	var (
		hostGenes  []*Feature
		seen       = map[string]bool{}
		startKinds = map[string]bool{}
		endKinds   = map[string]bool{}
		single     = true
	)
	for b := rec.Start / binSize; b <= rec.End/binSize; b++ {
		feats, ok := chromBins[b]
		if !ok {
			single = false
			continue
		}
		for _, f := range feats {
			if f.Strand == rec.Strand {
				if f.Start <= rec.Start && rec.Start <= f.End {
					startKinds[f.Kind] = true
				}
				if f.Start <= rec.End && rec.End <= f.End {
					endKinds[f.Kind] = true
				}
			}
			if f.Kind != "gene" {
				continue
			}
			if f.End < rec.Start || rec.End < f.Start {
				continue
			}
			id, err := f.Attrs.GeneID()
			if err != nil {
				return circ.Annotation{}, err
			}
			if !seen[id] {
				seen[id] = true
				hostGenes = append(hostGenes, f)
			}
		}
	}

	var exon, intron, geneInternal, antisense bool
	var forward []*Feature
	if len(hostGenes) > 0 && single {
		for _, g := range hostGenes {
			if g.Strand != rec.Strand {
				antisense = true
				continue
			}
			forward = append(forward, g)
			switch {
			case !startKinds["gene"] || !endKinds["gene"]:
				geneInternal = true
			case startKinds["exon"] && endKinds["exon"]:
				exon = true
			default:
				intron = true
			}
		}
	}

	ann := circ.Annotation{}
	switch {
	case exon:
		ann.CircType = "exon"
	case intron:
		ann.CircType = "intron"
	case geneInternal:
		ann.CircType = "intergenic"
	case antisense:
		ann.CircType = "antisense"
	default:
		ann.CircType = "intergenic"
	}
	if len(forward) == 0 {
		return ann, nil
	}

	ids := make([]string, 0, len(forward))
	names := make([]string, 0, len(forward))
	types := make([]string, 0, len(forward))
	for _, g := range forward {
		id, err := g.Attrs.GeneID()
		if err != nil {
			return circ.Annotation{}, err
		}
		name, err := g.Attrs.GeneName()
		if err != nil {
			return circ.Annotation{}, err
		}
		typ, err := g.Attrs.GeneType()
		if err != nil {
			return circ.Annotation{}, err
		}
		ids = append(ids, id)
		names = append(names, name)
		types = append(types, typ)
	}
	ann.GeneID = strings.Join(ids, ",")
	ann.GeneName = strings.Join(names, ",")
	ann.GeneType = strings.Join(types, ",")
	return ann, nil
}
