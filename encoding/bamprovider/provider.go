// Package bamprovider provides thread-safe access to a BAM file: a shared
// Provider hands out independent iterators, each owning its own file and
// index handles, so callers can scan disjoint genomic ranges in parallel.
package bamprovider

import (
	"github.com/grailbio/hts/sam"
	gbam "github.com/hugs314/CIRIquant/encoding/bam"
)

// ProviderOpts defines options for NewProvider.
type ProviderOpts struct {
	// Index is the pathname of the BAM index file. If "", it defaults to
	// the BAM path + ".bai".
	Index string
}

// Provider allows reading a BAM file in parallel. Thread safe.
type Provider interface {
	// GetHeader returns the BAM header. The caller must not modify the
	// returned object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// NewIterator returns an iterator over the records whose start
	// position lies in the shard range. The shard is usually built with
	// the helpers in encoding/bam, but the caller may construct it
	// manually.
	//
	// REQUIRES: Close has not been called.
	NewIterator(shard gbam.Shard) Iterator

	// NewOverlapIterator returns an iterator over the records on ref that
	// overlap the half-open, 0-based range [start, limit): records whose
	// alignment covers at least one position in the range, including
	// records starting before it.
	//
	// REQUIRES: Close has not been called.
	NewOverlapIterator(ref *sam.Reference, start, limit int) Iterator

	// Close must be called exactly once. It returns any error encountered
	// by the provider or by an iterator it created.
	//
	// REQUIRES: All iterators created by the provider have been closed.
	Close() error
}

// Iterator iterates over sam.Records in a genomic range, in coordinate
// order. Thread compatible.
type Iterator interface {
	// Scan advances the iterator to the next record and returns true if
	// one exists. It returns false at the end of the range or on error;
	// the error is available through Err.
	//
	// REQUIRES: Close has not been called.
	Scan() bool

	// Record returns the current record. It must be called only after a
	// call to Scan returns true.
	//
	// REQUIRES: Close has not been called.
	Record() *sam.Record

	// Err returns the error encountered during iteration, or nil. io.EOF
	// is translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

func mergeOpts(optList []ProviderOpts) ProviderOpts {
	opts := ProviderOpts{}
	for _, o := range optList {
		if o.Index != "" {
			opts.Index = o.Index
		}
	}
	return opts
}

// NewProvider creates a Provider for the BAM file at path.
func NewProvider(path string, optList ...ProviderOpts) Provider {
	opts := mergeOpts(optList)
	return &BAMProvider{Path: path, Index: opts.Index}
}
