// Package junction extracts back-splice and forward-splice junction
// evidence from a pseudo-circular alignment and a genome alignment of
// the same library.
package junction

import (
	"github.com/grailbio/hts/sam"
)

// Mate distinguishes the two reads of a pair: +1 for read1, -1 for
// read2, 0 for unpaired records.
type Mate int8

// MateOf derives the mate of a record from its flags.
func MateOf(flags sam.Flags) Mate {
	var m Mate
	if flags&sam.Read1 != 0 {
		m++
	}
	if flags&sam.Read2 != 0 {
		m--
	}
	return m
}

// CandidateSet maps query name to mate to a circRNA ID. Set keeps the
// last writer.
type CandidateSet map[string]map[Mate]string

func (s CandidateSet) set(name string, mate Mate, circID string) {
	m, ok := s[name]
	if !ok {
		m = make(map[Mate]string)
		s[name] = m
	}
	m[mate] = circID
}

// PairFlagSet marks (query name, mate) pairs.
type PairFlagSet map[string]map[Mate]bool

func (s PairFlagSet) set(name string, mate Mate) {
	m, ok := s[name]
	if !ok {
		m = make(map[Mate]bool)
		s[name] = m
	}
	m[mate] = true
}

// Evidence maps a circRNA ID to the set of read pairs supporting it.
type Evidence map[string]map[string]bool

func (e Evidence) add(circID, pair string) {
	m, ok := e[circID]
	if !ok {
		m = make(map[string]bool)
		e[circID] = m
	}
	m[pair] = true
}

// Counts returns the number of supporting pairs per circRNA ID.
func (e Evidence) Counts() map[string]int {
	c := make(map[string]int, len(e))
	for id, pairs := range e {
		c[id] = len(pairs)
	}
	return c
}

// PairPrefix strips one trailing read-pair marker like "/1", "_2" or
// "-1" from a query name, so that the two mates of a pair share one
// key.
func PairPrefix(name string) string {
	if n := len(name); n >= 2 && (name[n-1] == '1' || name[n-1] == '2') {
		switch name[n-2] {
		case '/', '_', '-':
			return name[:n-2]
		}
	}
	return name
}

// pairKey identifies one read of a pair.
type pairKey struct {
	name string
	mate Mate
}

// candHit records one junction-crossing alignment.
type candHit struct {
	name string
	mate Mate
	circ string
}
