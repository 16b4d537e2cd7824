package fasta

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// GenerateIndex writes a samtools-compatible .fai index for the FASTA data
// read from in. The output can be passed to NewIndexed.
//
// Every data line of a sequence must have the same width except the last;
// a ragged sequence cannot be random-accessed and is rejected.
func GenerateIndex(out io.Writer, in io.Reader) (err error) {
	var (
		w         = tsv.NewWriter(out)
		r         = bufio.NewReader(in)
		seen      = map[string]bool{}
		name      string
		startOff  int64
		bases     int
		lineBases int
		lineWidth int
		sawShort  bool
		cumByte   int64
		eof       bool
	)
	setErr := func(e error) {
		if e != nil && err == nil {
			err = e
		}
	}
	flush := func() {
		w.WriteString(name)
		w.WriteInt64(int64(bases))
		w.WriteInt64(startOff)
		w.WriteInt64(int64(lineBases))
		w.WriteInt64(int64(lineWidth))
		setErr(w.EndLine())
	}
	for !eof && err == nil {
		fullLine, e := r.ReadBytes('\n')
		if e == io.EOF {
			eof = true
		} else if e != nil {
			setErr(e)
		}
		cumByte += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if lineWidth != 0 {
				flush()
			} else if name != "" {
				setErr(errors.E("malformed FASTA file: sequence " + name + " has no data"))
			}
			name = strings.SplitN(string(line[1:]), " ", 2)[0]
			if name == "" {
				setErr(errors.E("malformed FASTA file: empty sequence name"))
			} else if seen[name] {
				setErr(errors.E("malformed FASTA file: duplicate sequence " + name))
			}
			seen[name] = true
			startOff = cumByte
			lineWidth = 0
			lineBases = 0
			bases = 0
			sawShort = false
			continue
		}
		if name == "" {
			setErr(errors.E("malformed FASTA file: data before first header"))
			continue
		}
		if sawShort {
			// A line narrower than the first one must be the last of
			// its sequence.
			setErr(errors.E("malformed FASTA file: ragged line width in sequence " + name))
			continue
		}
		if lineWidth == 0 {
			lineWidth = len(fullLine)
			lineBases = len(line)
		} else if len(line) != lineBases {
			if len(line) > lineBases {
				setErr(errors.E("malformed FASTA file: ragged line width in sequence " + name))
				continue
			}
			sawShort = true
		}
		bases += len(line)
	}
	if lineWidth != 0 {
		flush()
	} else if name != "" {
		setErr(errors.E("malformed FASTA file: sequence " + name + " has no data"))
	}
	setErr(w.Flush())
	if cumByte == 0 {
		setErr(errors.E("empty FASTA file"))
	}
	return
}
