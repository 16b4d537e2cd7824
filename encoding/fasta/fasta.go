// Package fasta provides random access to FASTA-formatted sequence data,
// either fully in memory or through a samtools-style .fai index
// (http://www.htslib.org/doc/faidx.html).
//
// A FASTA file holds named sequences, each introduced by a '>' header line
// and wrapped over any number of data lines:
//
// >chr7
// ACGTAC
// GAGGAC
// >chr8
// ACGT
//
// The sequence name is the text between '>' and the first space; anything
// after the space is ignored.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// maxLineBytes caps the scanner token size when reading unindexed FASTA.
// Single-line genome FASTA files can carry whole chromosomes on one line.
const maxLineBytes = 1024 * 1024 * 512

// Fasta is a set of named sequences.
type Fasta interface {
	// Get returns the bases of seq in the 0-based half-open interval
	// [start, end). Get is safe for concurrent use.
	Get(seq string, start, end uint64) (string, error)

	// Len returns the length of seq in bases.
	Len(seq string) (uint64, error)

	// SeqNames returns all sequence names in file order.
	SeqNames() []string
}

type memFasta struct {
	seqs  map[string]string
	names []string
}

// New reads all sequences from r into memory.
func New(r io.Reader) (Fasta, error) {
	f := &memFasta{seqs: make(map[string]string)}
	var (
		name string
		seq  strings.Builder
		seen bool
	)
	flush := func() error {
		if !seen {
			return nil
		}
		if name == "" {
			return errors.New("fasta: sequence with empty name")
		}
		if _, ok := f.seqs[name]; ok {
			return errors.Errorf("fasta: duplicate sequence %q", name)
		}
		f.seqs[name] = seq.String()
		f.names = append(f.names, name)
		seq.Reset()
		return nil
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineBytes)
	for sc.Scan() {
		line := sc.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.SplitN(line[1:], " ", 2)[0]
			seen = true
			continue
		}
		if !seen {
			return nil, errors.Errorf("fasta: data before first header: %q", line)
		}
		seq.WriteString(line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "fasta: read")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *memFasta) Get(seq string, start, end uint64) (string, error) {
	s, ok := f.seqs[seq]
	if !ok {
		return "", errors.Errorf("fasta: sequence %q not found", seq)
	}
	if end <= start {
		return "", errors.New("fasta: start must be less than end")
	}
	if end > uint64(len(s)) {
		return "", errors.Errorf("fasta: range [%d,%d) past end of %q (length %d)",
			start, end, seq, len(s))
	}
	return s[start:end], nil
}

func (f *memFasta) Len(seq string) (uint64, error) {
	s, ok := f.seqs[seq]
	if !ok {
		return 0, errors.Errorf("fasta: sequence %q not found", seq)
	}
	return uint64(len(s)), nil
}

func (f *memFasta) SeqNames() []string {
	return f.names
}
