package bamprovider

import (
	"io"
	"sync"

	"github.com/grailbio/base/errorreporter"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
	gbam "github.com/hugs314/CIRIquant/encoding/bam"
	"v.io/x/lib/vlog"
)

// BAMProvider implements Provider for BAM files. Both the BAM and the
// index pathnames may be S3 URLs, in which case the data is read from S3;
// otherwise they are read from the local filesystem.
type BAMProvider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	// Index is the pathname of the *.bam.bai file. If "", Path + ".bai".
	Index string
	err   errorreporter.T

	mu        sync.Mutex
	nActive   int
	freeIters []*bamIterator
	header    *sam.Header
}

type bamIterator struct {
	provider *BAMProvider
	in       file.File
	reader   *bam.Reader
	index    *bam.Index
	// Offset of the first record in the file.
	firstRecord bgzf.Offset

	// Half-open coordinate range to scan. Records are matched by start
	// position.
	startAddr, limitAddr gbam.Coord
	// In overlap mode records are instead matched by span against
	// [ovStart, ovLimit) on ovRef.
	overlap          bool
	ovRef            *sam.Reference
	ovStart, ovLimit int

	active bool
	err    error
	next   *sam.Record
}

func (b *BAMProvider) indexPath() string {
	if b.Index == "" {
		return b.Path + ".bai"
	}
	return b.Index
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}

	ctx := vcontext.Background()
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer in.Close(ctx)
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer reader.Close()
	b.header = reader.Header()
	return b.header, nil
}

// Close implements the Provider interface.
func (b *BAMProvider) Close() error {
	if b.nActive > 0 {
		vlog.Fatalf("%d iterators still active for %+v", b.nActive, b)
	}
	for _, iter := range b.freeIters {
		iter.internalClose()
	}
	b.freeIters = nil
	return b.err.Err()
}

func (b *BAMProvider) freeIterator(i *bamIterator) {
	if !i.active {
		vlog.Fatal(i)
	}
	i.active = false
	if i.Err() != nil {
		// The iterator may be in a bad state. Don't reuse it.
		i.internalClose() // Will set b.err
		i = nil
	}
	b.mu.Lock()
	if i != nil {
		b.freeIters = append(b.freeIters, i)
	}
	b.nActive--
	if b.nActive < 0 {
		vlog.Fatalf("negative active count for %+v", b)
	}
	b.mu.Unlock()
}

// allocateIterator returns an unused iterator, reusing one from freeIters
// when possible and otherwise opening fresh file and index handles. On
// error it returns an iterator with a non-nil err field.
func (b *BAMProvider) allocateIterator() *bamIterator {
	b.mu.Lock()
	b.nActive++
	if n := len(b.freeIters); n > 0 {
		iter := b.freeIters[n-1]
		b.freeIters = b.freeIters[:n-1]
		b.mu.Unlock()
		iter.active = true
		iter.err = nil
		iter.next = nil
		iter.overlap = false
		iter.ovRef = nil
		return iter
	}
	b.mu.Unlock()

	iter := bamIterator{
		provider: b,
		active:   true,
	}
	ctx := vcontext.Background()
	if iter.in, iter.err = file.Open(ctx, b.Path); iter.err != nil {
		return &iter
	}
	var indexIn file.File
	if indexIn, iter.err = file.Open(ctx, b.indexPath()); iter.err != nil {
		return &iter
	}
	defer indexIn.Close(ctx)
	if iter.index, iter.err = bam.ReadIndex(indexIn.Reader(ctx)); iter.err != nil {
		return &iter
	}
	if iter.reader, iter.err = bam.NewReader(iter.in.Reader(ctx), 1); iter.err != nil {
		return &iter
	}
	iter.firstRecord = iter.reader.LastChunk().End
	return &iter
}

// NewIterator implements the Provider interface.
func (b *BAMProvider) NewIterator(shard gbam.Shard) Iterator {
	iter := b.allocateIterator()
	if iter.err != nil {
		return iter
	}
	iter.reset(shard)
	return iter
}

// NewOverlapIterator implements the Provider interface.
func (b *BAMProvider) NewOverlapIterator(ref *sam.Reference, start, limit int) Iterator {
	iter := b.allocateIterator()
	if iter.err != nil {
		return iter
	}
	iter.resetOverlap(ref, start, limit)
	return iter
}

// reset prepares the iterator to scan the shard range by start position.
func (i *bamIterator) reset(shard gbam.Shard) {
	i.startAddr = shard.StartCoord()
	i.limitAddr = shard.EndCoord()
	if i.startAddr.GE(i.limitAddr) {
		i.err = io.EOF
		return
	}

	// Find the file offset of the first record at or after the start
	// coordinate.
	header := i.reader.Header()
	var (
		offset bgzf.Offset
		err    error
	)
	ref := shard.StartRef
	for {
		if ref == nil {
			offset, err = i.findUnmappedOffset()
			break
		}
		start := 0
		if ref.ID() == shard.StartRef.ID() {
			start = shard.PaddedStart()
		}
		end := ref.Len()
		if shard.EndRef != nil && ref.ID() == shard.EndRef.ID() {
			end = shard.PaddedEnd()
		}
		var found bool
		found, offset, err = i.findRecordOffset(ref, start, end)
		if err != nil || found {
			break
		}
		// No index entry for this ref. Move to the next one in range.
		if shard.EndRef != nil && ref.ID() == shard.EndRef.ID() {
			i.err = io.EOF
			return
		}
		if next := ref.ID() + 1; next < len(header.Refs()) {
			ref = header.Refs()[next]
			continue
		}
		if shard.EndRef == nil {
			offset, err = i.findUnmappedOffset()
			break
		}
		i.err = io.EOF
		return
	}
	if err != nil {
		i.err = err
		return
	}
	i.err = i.reader.Seek(offset)
}

// resetOverlap prepares the iterator to yield records overlapping
// [start, limit) on ref.
func (i *bamIterator) resetOverlap(ref *sam.Reference, start, limit int) {
	i.overlap = true
	i.ovRef = ref
	i.ovStart = start
	i.ovLimit = limit
	if ref == nil {
		i.err = io.EOF
		return
	}
	if limit > ref.Len() {
		limit = ref.Len()
	}
	if start >= limit {
		i.err = io.EOF
		return
	}
	found, offset, err := i.findRecordOffset(ref, start, limit)
	if err != nil {
		i.err = err
		return
	}
	if !found {
		i.err = io.EOF
		return
	}
	i.err = i.reader.Seek(offset)
}

// Err implements the Iterator interface.
func (i *bamIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close implements the Iterator interface.
func (i *bamIterator) Close() error {
	err := i.Err()
	i.provider.freeIterator(i)
	return err
}

// findUnmappedOffset returns a file offset at or before the first unmapped
// record. It is conservative; it may return an offset smaller than
// strictly necessary.
func (i *bamIterator) findUnmappedOffset() (bgzf.Offset, error) {
	// The unmapped records follow the last indexed chunk of the last
	// reference that has one.
	header := i.reader.Header()
	var lastOffset bgzf.Offset
	foundRefs := false
	for _, r := range header.Refs() {
		chunks, err := i.index.Chunks(r, 0, r.Len())
		if err == index.ErrInvalid {
			// No reads on this reference.
			continue
		}
		if err != nil {
			return lastOffset, err
		}
		foundRefs = true
		c := chunks[len(chunks)-1]
		if c.End.File > lastOffset.File ||
			(c.End.File == lastOffset.File && c.End.Block > lastOffset.Block) {
			lastOffset = c.End
		}
	}
	if !foundRefs {
		return i.firstRecord, nil
	}
	return lastOffset, nil
}

// findRecordOffset returns the file offset of the first record that may
// overlap [startPos, endPos) on ref. It is conservative; it may return an
// offset smaller than strictly necessary.
func (i *bamIterator) findRecordOffset(ref *sam.Reference, startPos, endPos int) (bool, bgzf.Offset, error) {
	chunks, err := i.index.Chunks(ref, startPos, endPos)
	if err == index.ErrInvalid || len(chunks) == 0 {
		// No reads in this interval.
		return false, bgzf.Offset{}, nil
	}
	if err != nil {
		return false, bgzf.Offset{}, err
	}
	return true, chunks[0].Begin, nil
}

func (i *bamIterator) Scan() bool {
	if !i.active {
		vlog.Fatal("reusing a closed iterator")
	}
	if i.err != nil {
		return false
	}
	for {
		i.next, i.err = i.reader.Read()
		if i.err != nil {
			return false
		}
		if i.overlap {
			if i.next.Ref == nil || i.next.Ref.ID() != i.ovRef.ID() || i.next.Pos >= i.ovLimit {
				i.err = io.EOF
				return false
			}
			if i.next.End() <= i.ovStart {
				continue
			}
			return true
		}
		recAddr := gbam.CoordFromRecord(i.next)
		if recAddr.LT(i.startAddr) {
			continue
		}
		if recAddr.GE(i.limitAddr) {
			i.err = io.EOF
			return false
		}
		return true
	}
}

func (i *bamIterator) Record() *sam.Record {
	return i.next
}

func (i *bamIterator) internalClose() {
	if i.reader != nil {
		if err := i.reader.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.reader = nil
	}
	if i.in != nil {
		if err := i.in.Close(vcontext.Background()); err != nil && i.err == nil {
			i.err = err
		}
		i.in = nil
	}
	i.provider.err.Set(i.Err())
}
