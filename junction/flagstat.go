package junction

import (
	"github.com/grailbio/hts/sam"
	gbam "github.com/hugs314/CIRIquant/encoding/bam"
	"github.com/hugs314/CIRIquant/encoding/bamprovider"
)

// Flagstat counts the reads of an alignment in one pass, including the
// unmapped tail. Secondary and supplementary records are excluded from
// both counts. A record is unmapped when its own segment is unmapped,
// or when it is paired and its mate is; mapped = total - unmapped.
func Flagstat(provider bamprovider.Provider) (total, mapped int64, err error) {
	header, err := provider.GetHeader()
	if err != nil {
		return 0, 0, err
	}
	var unmapped int64
	iter := provider.NewIterator(gbam.UniversalShard(header))
	for iter.Scan() {
		rec := iter.Record()
		flags := rec.Flags
		sam.PutInFreePool(rec)
		if flags&(sam.Secondary|sam.Supplementary) != 0 {
			continue
		}
		total++
		if flags&sam.Unmapped != 0 || (flags&sam.Paired != 0 && flags&sam.MateUnmapped != 0) {
			unmapped++
		}
	}
	if err := iter.Close(); err != nil {
		return 0, 0, err
	}
	return total, total - unmapped, nil
}
