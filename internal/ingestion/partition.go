package ingestion

import (
	"context"

	"github.com/nishad/bdp/internal/blobstore"
	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/nishad/bdp/internal/parser"
)

// DefaultPartitionSize is the target record count per Work Unit (spec
// §4.3.2: "default 1000 records").
const DefaultPartitionSize = 1000

// partition creates Work Units covering [start, end) ordinal ranges sized
// by partitionSize, one set per raw file with file_purpose "data" (the
// teacher's single-stream-per-file assumption carries over: every source
// type ingests exactly one primary data file per job). Partitioning is
// idempotent: if the job already has work units, this is a no-op.
func partition(ctx context.Context, db *catalog.DB, blobs blobstore.Store, job *catalog.IngestionJob, p parser.Parser, blobKey string, partitionSize int) error {
	existing, err := db.ListWorkUnits(job.ID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	if partitionSize <= 0 {
		partitionSize = DefaultPartitionSize
	}

	r, err := blobs.Get(ctx, blobKey)
	if err != nil {
		return bdperrors.WrapKind("ingestion.partition", bdperrors.KindTransient, "open raw file for counting", err)
	}
	defer r.Close()

	count, ok, err := p.Count(r)
	if err != nil {
		return bdperrors.WrapKind("ingestion.partition", bdperrors.KindIngestion, "count records", err)
	}
	if !ok || count == 0 {
		return db.InsertWorkUnit(&catalog.WorkUnit{
			JobID:       job.ID,
			UnitType:    "byte_range",
			BatchNumber: 0,
			StartOffset: 0,
			EndOffset:   0,
		})
	}

	batch := 0
	for start := int64(0); start < count; start += int64(partitionSize) {
		end := start + int64(partitionSize)
		if end > count {
			end = count
		}
		if err := db.InsertWorkUnit(&catalog.WorkUnit{
			JobID:       job.ID,
			UnitType:    "ordinal_range",
			BatchNumber: batch,
			StartOffset: start,
			EndOffset:   end,
		}); err != nil {
			return err
		}
		batch++
	}
	return nil
}
