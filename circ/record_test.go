package circ

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

func TestChromCompare(t *testing.T) {
	for _, tc := range []struct {
		a, b string
		want int
	}{
		{"chr1", "chr2", -1},
		{"chr2", "chr10", -1},
		{"chr10", "chrX", -1},
		{"chrX", "chrY", -1},
		{"1", "chr2", -1},
		{"chr1", "1", 0},
		{"chr22", "chrM", -1},
		{"chrM", "chrX", 1},
		{"chr3", "chr3", 0},
		{"GL000225.1", "chr12", 1},
	} {
		expect.EQ(t, sign(ChromCompare(tc.a, tc.b)), tc.want, "compare(%s, %s)", tc.a, tc.b)
		expect.EQ(t, sign(ChromCompare(tc.b, tc.a)), -tc.want, "compare(%s, %s)", tc.b, tc.a)
	}
}

func TestTableOrder(t *testing.T) {
	tbl := NewTable()
	tbl.Insert(&Record{Chrom: "chrX", Start: 5, End: 9, ID: "d", Strand: '-'})
	tbl.Insert(&Record{Chrom: "chr2", Start: 100, End: 200, ID: "b", Strand: '+'})
	tbl.Insert(&Record{Chrom: "chr10", Start: 50, End: 80, ID: "c", Strand: '-'})
	tbl.Insert(&Record{Chrom: "chr2", Start: 100, End: 150, ID: "a", Strand: '+'})

	expect.EQ(t, tbl.Len(), 4)
	expect.EQ(t, tbl.Contigs(), []string{"chr2", "chr10", "chrX"})

	var ids []string
	tbl.Do(func(r *Record) bool {
		ids = append(ids, r.ID)
		return false
	})
	expect.EQ(t, ids, []string{"a", "b", "c", "d"})

	// Re-inserting an ID replaces the old interval everywhere.
	tbl.Insert(&Record{Chrom: "chr2", Start: 300, End: 400, ID: "a", Strand: '-'})
	expect.EQ(t, tbl.Len(), 4)
	expect.EQ(t, tbl.ByContig("chr2")["a"].Start, 300)
	ids = ids[:0]
	tbl.Do(func(r *Record) bool {
		ids = append(ids, r.ID)
		return false
	})
	expect.EQ(t, ids, []string{"b", "a", "c", "d"})
}

const bedData = "chr1\t100\t200\tcirc_a\t.\t+\n" +
	"\n" +
	"chr2\t5\t5\tcirc_b\t13\t-\textra\tcolumns\n" +
	"chr1\t150\t300\tcirc_a\t.\t-\n"

func TestLoadBED(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(tempDir, "circ.bed")
	assert.NoError(t, ioutil.WriteFile(path, []byte(bedData), 0600))

	tbl, err := LoadBED(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, tbl.Len(), 2)
	// The second circ_a line wins.
	a := tbl.ByContig("chr1")["circ_a"]
	expect.EQ(t, *a, Record{Chrom: "chr1", Start: 150, End: 300, ID: "circ_a", Strand: '-'})
	expect.EQ(t, a.Length(), 151)
	b := tbl.ByContig("chr2")["circ_b"]
	expect.EQ(t, *b, Record{Chrom: "chr2", Start: 5, End: 5, ID: "circ_b", Strand: '-'})
	expect.EQ(t, b.Length(), 1)
}

func TestLoadBEDGzip(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(tempDir, "circ.bed.gz")
	f, err := os.Create(path)
	assert.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(bedData))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	assert.NoError(t, f.Close())

	tbl, err := LoadBED(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, tbl.Len(), 2)
	expect.EQ(t, tbl.Contigs(), []string{"chr1", "chr2"})
}

func TestLoadBEDErrors(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	for _, tc := range []struct {
		name string
		line string
	}{
		{"columns", "chr1\t100\t200\tcirc_a\t."},
		{"start", "chr1\tx\t200\tcirc_a\t.\t+"},
		{"end", "chr1\t100\ty\tcirc_a\t.\t+"},
		{"zerostart", "chr1\t0\t200\tcirc_a\t.\t+"},
		{"inverted", "chr1\t200\t100\tcirc_a\t.\t+"},
		{"noid", "chr1\t100\t200\t\t.\t+"},
		{"strand", "chr1\t100\t200\tcirc_a\t.\t"},
	} {
		path := filepath.Join(tempDir, tc.name+".bed")
		assert.NoError(t, ioutil.WriteFile(path, []byte("chr9\t1\t2\tok\t.\t+\n"+tc.line+"\n"), 0600))
		_, err := LoadBED(ctx, path)
		assert.NotNil(t, err, "case %s", tc.name)
		fe, ok := err.(*FormatError)
		assert.True(t, ok, "case %s: %v", tc.name, err)
		expect.EQ(t, fe.Line, 2, "case %s", tc.name)
	}
}
