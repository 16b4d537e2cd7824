package fasta

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// faiEntry is one line of a samtools .fai index: sequence length in bases,
// byte offset of the first base, bases per data line, bytes per data line
// (including the line terminator).
type faiEntry struct {
	bases        uint64
	start        uint64
	basesPerLine uint64
	bytesPerLine uint64
}

type faiFasta struct {
	entries map[string]faiEntry
	names   []string

	mu  sync.Mutex
	r   io.ReadSeeker
	buf []byte
}

// NewIndexed returns a Fasta that serves Get from fasta using the .fai
// index read from index, without loading sequence data into memory.
func NewIndexed(fasta io.ReadSeeker, index io.Reader) (Fasta, error) {
	f := &faiFasta{entries: make(map[string]faiEntry), r: fasta}
	sc := bufio.NewScanner(index)
	for lineno := 1; sc.Scan(); lineno++ {
		line := sc.Text()
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 5 {
			return nil, errors.Errorf("fasta index line %d: expected 5 columns, got %d", lineno, len(cols))
		}
		var (
			ent  faiEntry
			err  error
			name = cols[0]
		)
		if name == "" {
			return nil, errors.Errorf("fasta index line %d: empty sequence name", lineno)
		}
		if _, ok := f.entries[name]; ok {
			return nil, errors.Errorf("fasta index line %d: duplicate sequence %q", lineno, name)
		}
		if ent.bases, err = strconv.ParseUint(cols[1], 10, 64); err == nil {
			if ent.start, err = strconv.ParseUint(cols[2], 10, 64); err == nil {
				if ent.basesPerLine, err = strconv.ParseUint(cols[3], 10, 64); err == nil {
					ent.bytesPerLine, err = strconv.ParseUint(cols[4], 10, 64)
				}
			}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "fasta index line %d", lineno)
		}
		if ent.basesPerLine == 0 || ent.bytesPerLine < ent.basesPerLine {
			return nil, errors.Errorf("fasta index line %d: invalid line geometry %d/%d",
				lineno, ent.basesPerLine, ent.bytesPerLine)
		}
		f.entries[name] = ent
		f.names = append(f.names, name)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "fasta index: read")
	}
	sort.SliceStable(f.names, func(i, j int) bool {
		return f.entries[f.names[i]].start < f.entries[f.names[j]].start
	})
	return f, nil
}

func (f *faiFasta) Get(seq string, start, end uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ent, ok := f.entries[seq]
	if !ok {
		return "", errors.Errorf("fasta: sequence %q not found", seq)
	}
	if end <= start {
		return "", errors.New("fasta: start must be less than end")
	}
	if end > ent.bases {
		return "", errors.Errorf("fasta: range [%d,%d) past end of %q (length %d)",
			start, end, seq, ent.bases)
	}

	// Byte offsets of the first and last requested base, accounting for
	// line terminators between data lines.
	gap := ent.bytesPerLine - ent.basesPerLine
	off := ent.start + start + gap*(start/ent.basesPerLine)
	last := ent.start + (end - 1) + gap*((end-1)/ent.basesPerLine)
	n := last - off + 1

	if pos, err := f.r.Seek(int64(off), io.SeekStart); err != nil || pos != int64(off) {
		return "", errors.Errorf("fasta: seek to %d failed: %d, %v", off, pos, err)
	}
	if uint64(cap(f.buf)) < n {
		f.buf = make([]byte, n)
	}
	f.buf = f.buf[:n]
	if _, err := io.ReadFull(f.r, f.buf); err != nil {
		return "", errors.Wrapf(err, "fasta: short read for %q [%d,%d) (truncated file or stale index?)",
			seq, start, end)
	}

	out := make([]byte, 0, end-start)
	col := (off - ent.start) % ent.bytesPerLine
	for _, c := range f.buf {
		if col < ent.basesPerLine {
			out = append(out, c)
		}
		if col++; col == ent.bytesPerLine {
			col = 0
		}
	}
	return string(out), nil
}

func (f *faiFasta) Len(seq string) (uint64, error) {
	ent, ok := f.entries[seq]
	if !ok {
		return 0, errors.Errorf("fasta: sequence %q not found", seq)
	}
	return ent.bases, nil
}

func (f *faiFasta) SeqNames() []string {
	return f.names
}
