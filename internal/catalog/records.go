package catalog

import (
	"database/sql"
	"time"

	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/google/uuid"
)

// StageRecord persists a parsed record to the staging area. (job_id,
// record_identifier) is unique: re-parsing after a crash is a harmless
// duplicate insert attempt, caught here (spec §4.3.3 idempotence).
func (db *DB) StageRecord(r *StagedRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = RecordStaged
	}
	_, err := db.Exec(`
		INSERT OR IGNORE INTO staged_records (id, job_id, work_unit_id, record_type, record_identifier, record_data, content_md5, sequence_md5, status, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.JobID, r.WorkUnitID, r.RecordType, r.RecordIdentifier, r.RecordData, r.ContentMD5, r.SequenceMD5, string(r.Status), r.StoredAt)
	if err != nil {
		return bdperrors.WrapKind("catalog.StageRecord", bdperrors.KindInternal, "stage record", err)
	}
	return nil
}

// StageRecordsBatch stages many records in one transaction, grounded on the
// teacher's batch-insert idiom. A duplicate record_identifier within the
// same job is treated as already-staged and silently skipped rather than
// aborting the batch.
func (db *DB) StageRecordsBatch(records []*StagedRecord) (staged int, err error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := db.Begin()
	if err != nil {
		return 0, bdperrors.WrapKind("catalog.StageRecordsBatch", bdperrors.KindInternal, "begin tx", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, prepErr := tx.Prepare(`
		INSERT OR IGNORE INTO staged_records (id, job_id, work_unit_id, record_type, record_identifier, record_data, content_md5, sequence_md5, status, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if prepErr != nil {
		err = bdperrors.WrapKind("catalog.StageRecordsBatch", bdperrors.KindInternal, "prepare batch insert", prepErr)
		return 0, err
	}
	defer stmt.Close()

	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Status == "" {
			r.Status = RecordStaged
		}
		res, execErr := stmt.Exec(r.ID, r.JobID, r.WorkUnitID, r.RecordType, r.RecordIdentifier, r.RecordData, r.ContentMD5, r.SequenceMD5, string(r.Status), r.StoredAt)
		if execErr != nil {
			err = bdperrors.WrapKind("catalog.StageRecordsBatch", bdperrors.KindInternal, "insert staged record", execErr)
			return 0, err
		}
		n, _ := res.RowsAffected()
		staged += int(n)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = bdperrors.WrapKind("catalog.StageRecordsBatch", bdperrors.KindInternal, "commit batch", commitErr)
		return 0, err
	}
	return staged, nil
}

// ListStagedRecords returns every record staged for a work unit, the input
// to the Store phase's typed commit.
func (db *DB) ListStagedRecords(workUnitID string) ([]*StagedRecord, error) {
	rows, err := db.Query(`
		SELECT id, job_id, work_unit_id, record_type, record_identifier, record_data, content_md5, sequence_md5, status, stored_at
		FROM staged_records WHERE work_unit_id = ?`, workUnitID)
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ListStagedRecords", bdperrors.KindInternal, "query staged records", err)
	}
	defer rows.Close()

	var out []*StagedRecord
	for rows.Next() {
		var r StagedRecord
		var status string
		if err := rows.Scan(&r.ID, &r.JobID, &r.WorkUnitID, &r.RecordType, &r.RecordIdentifier, &r.RecordData, &r.ContentMD5, &r.SequenceMD5, &status, &r.StoredAt); err != nil {
			continue
		}
		r.Status = RecordStatus(status)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// MarkRecordStored flips a staged record to stored once its typed row and
// blob artifact are committed.
func (db *DB) MarkRecordStored(recordID string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE staged_records SET status = ?, stored_at = ? WHERE id = ?`,
		string(RecordStored), now, recordID)
	if err != nil {
		return bdperrors.WrapKind("catalog.MarkRecordStored", bdperrors.KindInternal, "mark record stored", err)
	}
	return nil
}

// CommitTypedRecord inserts a parsed record into its typed table
// (proteins, taxonomy_nodes, genomic_sequences, go_terms,
// interpro_entries), selected dynamically via RecordTableForSourceType.
// Re-committing the same (organization_id, record_identifier,
// internal_version) is a no-op: the Store phase may safely replay after a
// crash (spec §4.3.3).
func (db *DB) CommitTypedRecord(sourceType SourceType, orgID, recordIdentifier, internalVersion, sequenceMD5, data string) error {
	table, err := RecordTableForSourceType(string(sourceType))
	if err != nil {
		return err
	}

	var query string
	var args []interface{}
	switch table {
	case "proteins", "genomic_sequences":
		query = `INSERT OR IGNORE INTO ` + table + ` (organization_id, record_identifier, internal_version, sequence_md5, data) VALUES (?, ?, ?, ?, ?)`
		args = []interface{}{orgID, recordIdentifier, internalVersion, sequenceMD5, data}
	default:
		query = `INSERT OR IGNORE INTO ` + table + ` (organization_id, record_identifier, internal_version, data) VALUES (?, ?, ?, ?)`
		args = []interface{}{orgID, recordIdentifier, internalVersion, data}
	}

	if _, err := db.Exec(query, args...); err != nil {
		return bdperrors.WrapKind("catalog.CommitTypedRecord", bdperrors.KindInternal, "commit typed record", err)
	}
	return nil
}

// GetTypedRecord fetches a single committed record by its natural key.
func (db *DB) GetTypedRecord(sourceType SourceType, orgID, recordIdentifier, internalVersion string) (string, error) {
	table, err := RecordTableForSourceType(string(sourceType))
	if err != nil {
		return "", err
	}
	row := db.QueryRow(`SELECT data FROM `+table+` WHERE organization_id = ? AND record_identifier = ? AND internal_version = ?`,
		orgID, recordIdentifier, internalVersion)
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return "", bdperrors.WrapKind("catalog.GetTypedRecord", bdperrors.KindNotFound, recordIdentifier, err)
		}
		return "", bdperrors.WrapKind("catalog.GetTypedRecord", bdperrors.KindInternal, "scan typed record", err)
	}
	return data, nil
}

// CountTypedRecords counts committed records for a given internal version,
// the basis for §4.4.4 change detection entry counts.
func (db *DB) CountTypedRecords(sourceType SourceType, orgID, internalVersion string) (int, error) {
	table, err := RecordTableForSourceType(string(sourceType))
	if err != nil {
		return 0, err
	}
	row := db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE organization_id = ? AND internal_version = ?`, orgID, internalVersion)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, bdperrors.WrapKind("catalog.CountTypedRecords", bdperrors.KindInternal, "count typed records", err)
	}
	return count, nil
}

// ListRecordIdentifiers returns every record_identifier committed for an
// internal version, used to diff two versions for change detection.
func (db *DB) ListRecordIdentifiers(sourceType SourceType, orgID, internalVersion string) ([]string, error) {
	table, err := RecordTableForSourceType(string(sourceType))
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(`SELECT record_identifier FROM `+table+` WHERE organization_id = ? AND internal_version = ?`, orgID, internalVersion)
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ListRecordIdentifiers", bdperrors.KindInternal, "query record identifiers", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
