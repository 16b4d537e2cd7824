package circ

import (
	"context"
	"encoding/json"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// Stat summarizes the genome alignment of one library. Read counts
// exclude secondary and supplementary alignments.
type Stat struct {
	TotalReads  int64 `json:"Total_Reads"`
	MappedReads int64 `json:"Mapped_Reads"`
	CircReads   int64 `json:"Circ_Reads"`
}

// WriteStat writes s to path as a single JSON object.
func WriteStat(ctx context.Context, path string, s Stat) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return errors.E(err, path)
	}
	defer file.CloseAndReport(ctx, dst, &err)
	return json.NewEncoder(dst.Writer(ctx)).Encode(&s)
}
