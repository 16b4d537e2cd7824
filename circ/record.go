// Package circ holds the circRNA record table and its text formats: BED
// input of back-splice junction sites, GTF-style expression output, and
// the JSON alignment summary.
package circ

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// Record describes one candidate circRNA: a 1-based, inclusive interval
// on a contig, with an identifier and a strand.
type Record struct {
	Chrom  string
	Start  int
	End    int
	ID     string
	Strand byte
}

// Length returns the length of the circular sequence.
func (r *Record) Length() int {
	return r.End - r.Start + 1
}

// Compare implements llrb.Comparable. Records order by contig
// (ChromCompare), then start, then end, then ID.
func (r *Record) Compare(c llrb.Comparable) int {
	o := c.(*Record)
	if v := ChromCompare(r.Chrom, o.Chrom); v != 0 {
		return v
	}
	if r.Start != o.Start {
		return r.Start - o.Start
	}
	if r.End != o.End {
		return r.End - o.End
	}
	return strings.Compare(r.ID, o.ID)
}

// chromKey strips one leading "chr" and reports whether the remainder is
// a plain non-negative integer.
func chromKey(s string) (key string, num int, isNum bool) {
	key = strings.TrimPrefix(s, "chr")
	if key == "" {
		return key, 0, false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return key, 0, false
		}
	}
	v, err := strconv.Atoi(key)
	if err != nil {
		return key, 0, false
	}
	return key, v, true
}

// ChromCompare orders contig names the way coordinate-sorted genome files
// do: an optional "chr" prefix is ignored, numeric names compare
// numerically and sort before non-numeric ones, and anything else
// compares bytewise. chr2 < chr10 < chrX.
func ChromCompare(a, b string) int {
	ka, na, aNum := chromKey(a)
	kb, nb, bNum := chromKey(b)
	switch {
	case aNum && bNum:
		return na - nb
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(ka, kb)
}

// ChromLess reports whether contig a sorts before contig b.
func ChromLess(a, b string) bool {
	return ChromCompare(a, b) < 0
}

// Table holds circRNA records grouped by contig, with a tree over all
// records so they can be traversed in genomic order.
type Table struct {
	byContig map[string]map[string]*Record
	tree     llrb.Tree
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{byContig: make(map[string]map[string]*Record)}
}

// Insert adds r to the table. A record with the same ID on the same
// contig is replaced.
func (t *Table) Insert(r *Record) {
	m, ok := t.byContig[r.Chrom]
	if !ok {
		m = make(map[string]*Record)
		t.byContig[r.Chrom] = m
	}
	if old, ok := m[r.ID]; ok {
		t.tree.Delete(old)
	}
	m[r.ID] = r
	t.tree.Insert(r)
}

// Len returns the number of records.
func (t *Table) Len() int {
	return t.tree.Len()
}

// ByContig returns the records on the named contig, keyed by ID, or nil.
func (t *Table) ByContig(name string) map[string]*Record {
	return t.byContig[name]
}

// Contigs returns the contig names in ChromLess order.
func (t *Table) Contigs() []string {
	names := make([]string, 0, len(t.byContig))
	for name := range t.byContig {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return ChromLess(names[i], names[j]) })
	return names
}

// Do calls f for every record in genomic order (ChromCompare by contig,
// then start, end, ID) until f returns true or the records run out. It
// returns true if f stopped the traversal.
func (t *Table) Do(f func(*Record) bool) bool {
	return t.tree.Do(func(c llrb.Comparable) bool {
		return f(c.(*Record))
	})
}

// FormatError describes a malformed line in a text input.
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// LoadBED reads back-splice junction sites from a BED-style file with at
// least six columns: contig, start (1-based), end (inclusive), ID, score
// (ignored), strand. Extra columns are ignored and a ".gz" path is
// decompressed transparently.
func LoadBED(ctx context.Context, path string) (t *Table, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = errors.E(e, path)
		}
	}()
	reader := io.Reader(in.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return nil, errors.E(err, path)
		}
		reader = gz
	}
	t = NewTable()
	sc := bufio.NewScanner(reader)
	for lineno := 1; sc.Scan(); lineno++ {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}
		rec, msg := parseBEDLine(line)
		if msg != "" {
			return nil, &FormatError{Path: path, Line: lineno, Msg: msg}
		}
		t.Insert(rec)
	}
	if err = sc.Err(); err != nil {
		return nil, errors.E(err, path)
	}
	log.Printf("loaded %d circRNA records from %s", t.Len(), path)
	return t, nil
}

func parseBEDLine(line string) (*Record, string) {
	cols := strings.Split(line, "\t")
	if len(cols) < 6 {
		return nil, fmt.Sprintf("expected at least 6 columns, got %d", len(cols))
	}
	start, err := strconv.Atoi(cols[1])
	if err != nil {
		return nil, fmt.Sprintf("bad start position %q", cols[1])
	}
	end, err := strconv.Atoi(cols[2])
	if err != nil {
		return nil, fmt.Sprintf("bad end position %q", cols[2])
	}
	if start < 1 {
		return nil, fmt.Sprintf("start position %d is not 1-based", start)
	}
	if end < start {
		return nil, fmt.Sprintf("end %d before start %d", end, start)
	}
	if cols[3] == "" {
		return nil, "empty circRNA ID"
	}
	if len(cols[5]) != 1 {
		return nil, fmt.Sprintf("bad strand %q", cols[5])
	}
	return &Record{
		Chrom:  cols[0],
		Start:  start,
		End:    end,
		ID:     cols[3],
		Strand: cols[5][0],
	}, ""
}
