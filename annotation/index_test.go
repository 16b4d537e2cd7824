package annotation

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/hugs314/CIRIquant/circ"
	"github.com/klauspost/compress/gzip"
)

const gtfData = `##provider: test
chr1	HAVANA	gene	1000	5000	.	+	.	gene_id "G1"; gene_name "ALPHA"; gene_type "protein_coding";
chr1	HAVANA	exon	1000	1200	.	+	.	gene_id "G1";
chr1	HAVANA	exon	2900	3100	.	+	.	gene_id "G1";
chr1	HAVANA	transcript	1000	5000	.	+	.	gene_id "G1";
chr1	HAVANA	gene	8000	9000	.	-	.	gene_id "G2"; gene_name "BETA"; gene_biotype "lincRNA";
chr2	ENSEMBL	gene	10	400	.	+	.	gene_id "G3"; gene_name "GAMMA"; gene_type "misc";
chr2	ENSEMBL	exon	10	400	.	+	.	gene_id "G3";
chr2	ENSEMBL	gene	350	900	.	+	.	gene_id "G4"; gene_name "DELTA"; gene_type "misc2";
chr2	ENSEMBL	exon	350	900	.	+	.	gene_id "G4";
`

func loadTestIndex(t *testing.T, data string) *Index {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "test.gtf")
	assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0600))
	idx, err := LoadIndex(ctx, path)
	assert.NoError(t, err)
	return idx
}

func TestLoadIndexGzip(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(tempDir, "test.gtf.gz")
	f, err := os.Create(path)
	assert.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(gtfData))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	assert.NoError(t, f.Close())

	idx, err := LoadIndex(ctx, path)
	assert.NoError(t, err)
	ann, err := idx.Classify(&circ.Record{Chrom: "chr1", Start: 1100, End: 3000, ID: "c", Strand: '+'})
	assert.NoError(t, err)
	expect.EQ(t, ann.CircType, "exon")
}

func TestLoadIndexErrors(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	for _, tc := range []struct {
		name   string
		line   string
		format bool
	}{
		{"inverted", "chr1\tx\tgene\t200\t100\t.\t+\t.\tgene_id \"G\";", true},
		{"zerostart", "chr1\tx\tgene\t0\t100\t.\t+\t.\tgene_id \"G\";", true},
		{"strand", "chr1\tx\texon\t100\t200\t.\t++\t.\tgene_id \"G\";", true},
		{"columns", "chr1\tx\tgene\t100\t200\t.\t+\t.", false},
		{"start", "chr1\tx\tgene\tzzz\t200\t.\t+\t.\tgene_id \"G\";", false},
	} {
		path := filepath.Join(tempDir, tc.name+".gtf")
		assert.NoError(t, ioutil.WriteFile(path, []byte(tc.line+"\n"), 0600))
		_, err := LoadIndex(ctx, path)
		assert.NotNil(t, err, "case %s", tc.name)
		_, ok := err.(*circ.FormatError)
		expect.EQ(t, ok, tc.format, "case %s: %v", tc.name, err)
	}
}

func TestClassify(t *testing.T) {
	idx := loadTestIndex(t, gtfData)
	for _, tc := range []struct {
		name string
		rec  circ.Record
		want circ.Annotation
	}{
		{
			// Both junction sites inside same-strand exons of G1.
			"exon",
			circ.Record{Chrom: "chr1", Start: 1100, End: 3000, Strand: '+'},
			circ.Annotation{CircType: "exon", GeneID: "G1", GeneName: "ALPHA", GeneType: "protein_coding"},
		},
		{
			// Both sites inside G1 but outside its exons.
			"intron",
			circ.Record{Chrom: "chr1", Start: 1500, End: 4000, Strand: '+'},
			circ.Annotation{CircType: "intron", GeneID: "G1", GeneName: "ALPHA", GeneType: "protein_coding"},
		},
		{
			// End site runs past G1, but the host gene is still reported.
			"gene internal",
			circ.Record{Chrom: "chr1", Start: 4500, End: 5200, Strand: '+'},
			circ.Annotation{CircType: "intergenic", GeneID: "G1", GeneName: "ALPHA", GeneType: "protein_coding"},
		},
		{
			// Host gene on the opposite strand only.
			"antisense",
			circ.Record{Chrom: "chr1", Start: 8100, End: 8900, Strand: '+'},
			circ.Annotation{CircType: "antisense"},
		},
		{
			// Same-strand host with gene_biotype instead of gene_type.
			"biotype fallback",
			circ.Record{Chrom: "chr1", Start: 8100, End: 8900, Strand: '-'},
			circ.Annotation{CircType: "intron", GeneID: "G2", GeneName: "BETA", GeneType: "lincRNA"},
		},
		{
			// No features anywhere near the interval.
			"intergenic",
			circ.Record{Chrom: "chr1", Start: 6000, End: 6400, Strand: '+'},
			circ.Annotation{CircType: "intergenic"},
		},
		{
			// G1 overlaps the start, but the interval crosses a bin with
			// no features at all.
			"bin gap",
			circ.Record{Chrom: "chr1", Start: 4900, End: 6100, Strand: '+'},
			circ.Annotation{CircType: "intergenic"},
		},
		{
			// Junction sites in exons of two different host genes.
			"two hosts",
			circ.Record{Chrom: "chr2", Start: 100, End: 800, Strand: '+'},
			circ.Annotation{CircType: "exon", GeneID: "G3,G4", GeneName: "GAMMA,DELTA", GeneType: "misc,misc2"},
		},
	} {
		rec := tc.rec
		rec.ID = tc.name
		ann, err := idx.Classify(&rec)
		assert.NoError(t, err, "case %s", tc.name)
		expect.EQ(t, ann, tc.want, "case %s", tc.name)
	}
}

func TestClassifyUnknownContig(t *testing.T) {
	idx := loadTestIndex(t, gtfData)
	_, err := idx.Classify(&circ.Record{Chrom: "chrZ", Start: 1, End: 2, ID: "c", Strand: '+'})
	assert.NotNil(t, err)
	_, ok := err.(*AttrError)
	assert.True(t, ok, "want AttrError, got %v", err)
	expect.HasSubstr(t, err.Error(), "chrZ")
}
