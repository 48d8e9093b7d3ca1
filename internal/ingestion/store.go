package ingestion

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/nishad/bdp/internal/blobstore"
	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/nishad/bdp/internal/parser"
)

// DefaultStoreBatchSize is a Store-phase batch size of 100 staged records.
// storeRecords does not read it: it lists each work unit's staged records in
// one query and stores them one at a time, each record's writes running as
// separate statements rather than inside one transaction.
const DefaultStoreBatchSize = 100

// storeRecords drives the Store phase: for every staged-but-not-yet-stored
// record belonging to job's completed work units, it writes the typed row,
// uploads each of the parser's declared formats under the permanent
// {source_type}/{entry_slug}/{internal_version}/ key, records a Version
// File row per format, and marks the staged record stored. Storage is
// idempotent per record (CommitTypedRecord's INSERT OR IGNORE, spec
// §4.3.3), so replaying after a crash only repeats already-safe writes.
func storeRecords(ctx context.Context, db *catalog.DB, blobs blobstore.Store, job *catalog.IngestionJob, p parser.Parser, sourceType catalog.SourceType, orgID, entrySlug string, version *catalog.Version) error {
	units, err := db.ListWorkUnits(job.ID)
	if err != nil {
		return err
	}

	for _, unit := range units {
		staged, err := db.ListStagedRecords(unit.ID)
		if err != nil {
			return err
		}
		for _, rec := range staged {
			if rec.Status == catalog.RecordStored {
				continue
			}
			if err := storeOne(ctx, db, blobs, p, sourceType, orgID, entrySlug, version, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func storeOne(ctx context.Context, db *catalog.DB, blobs blobstore.Store, p parser.Parser, sourceType catalog.SourceType, orgID, entrySlug string, version *catalog.Version, staged *catalog.StagedRecord) error {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(staged.RecordData), &data); err != nil {
		return bdperrors.WrapKind("ingestion.storeOne", bdperrors.KindInternal, "unmarshal staged record data", err)
	}
	rec := parser.Record{
		RecordType:       staged.RecordType,
		RecordIdentifier: staged.RecordIdentifier,
		RecordData:       data,
		ContentMD5:       staged.ContentMD5,
		SequenceMD5:      staged.SequenceMD5,
	}

	if err := db.CommitTypedRecord(sourceType, orgID, staged.RecordIdentifier, version.String(), staged.SequenceMD5, staged.RecordData); err != nil {
		return err
	}

	for _, format := range p.RecordFormats() {
		payload, _, err := p.Format(rec, format)
		if err != nil {
			return bdperrors.WrapKind("ingestion.storeOne", bdperrors.KindInternal, "render "+format+" format", err)
		}
		key := blobstore.RecordKey(string(sourceType), entrySlug, version.String(), staged.RecordIdentifier, format)
		checksum, err := blobs.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)))
		if err != nil {
			return bdperrors.WrapKind("ingestion.storeOne", bdperrors.KindTransient, "upload "+format+" artifact", err)
		}
		if err := db.InsertVersionFile(&catalog.VersionFile{
			VersionID:   version.ID,
			Format:      format,
			BlobKey:     key,
			Checksum:    checksum,
			SizeBytes:   int64(len(payload)),
			Compression: "none",
		}); err != nil && !bdperrors.IsKind(err, bdperrors.KindConflict) {
			return err
		}
	}

	return db.MarkRecordStored(staged.ID)
}
