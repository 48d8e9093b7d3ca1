package catalog

import (
	"database/sql"
	"time"

	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/google/uuid"
)

// InsertWorkUnit registers a batch of record offsets produced by the
// Partition phase. (job_id, unit_type, batch_number) is unique.
func (db *DB) InsertWorkUnit(w *WorkUnit) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Status == "" {
		w.Status = WorkUnitPending
	}
	if w.MaxRetries == 0 {
		w.MaxRetries = 3
	}
	_, err := db.Exec(`
		INSERT INTO work_units (id, job_id, unit_type, batch_number, start_offset, end_offset, status, worker_id, claimed_at, heartbeat_at, retry_count, max_retries, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.JobID, w.UnitType, w.BatchNumber, w.StartOffset, w.EndOffset, string(w.Status), w.WorkerID, w.ClaimedAt, w.HeartbeatAt, w.RetryCount, w.MaxRetries, w.LastError)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertWorkUnit", bdperrors.KindConflict, "insert work unit", err)
	}
	return nil
}

// ClaimNextWorkUnit atomically claims one pending (or stale-reclaimable)
// work unit for jobID and assigns it to workerID. The UPDATE's subquery
// selects at most one row; SQLite serializes writers so this single
// statement gives the same effect as SELECT ... FOR UPDATE SKIP LOCKED
// would under a true multi-writer engine (spec §5's claim requirement).
// Returns (nil, nil) when no claimable unit exists.
func (db *DB) ClaimNextWorkUnit(jobID, workerID string, staleBefore time.Time) (*WorkUnit, error) {
	now := time.Now().UTC()
	res, err := db.Exec(`
		UPDATE work_units SET status = ?, worker_id = ?, claimed_at = ?, heartbeat_at = ?
		WHERE id = (
			SELECT id FROM work_units
			WHERE job_id = ?
			  AND (status = ? OR (status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?))
			ORDER BY batch_number
			LIMIT 1
		)`,
		string(WorkUnitProcessing), workerID, now, now,
		jobID, string(WorkUnitPending), string(WorkUnitProcessing), staleBefore)
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ClaimNextWorkUnit", bdperrors.KindInternal, "claim work unit", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ClaimNextWorkUnit", bdperrors.KindInternal, "claim rows affected", err)
	}
	if n == 0 {
		return nil, nil
	}

	row := db.QueryRow(`
		SELECT id, job_id, unit_type, batch_number, start_offset, end_offset, status, worker_id, claimed_at, heartbeat_at, retry_count, max_retries, last_error
		FROM work_units WHERE job_id = ? AND worker_id = ? AND claimed_at = ?`, jobID, workerID, now)
	return scanWorkUnit(row)
}

func scanWorkUnit(row *sql.Row) (*WorkUnit, error) {
	var w WorkUnit
	var status string
	if err := row.Scan(&w.ID, &w.JobID, &w.UnitType, &w.BatchNumber, &w.StartOffset, &w.EndOffset, &status, &w.WorkerID, &w.ClaimedAt, &w.HeartbeatAt, &w.RetryCount, &w.MaxRetries, &w.LastError); err != nil {
		if err == sql.ErrNoRows {
			return nil, bdperrors.WrapKind("catalog.scanWorkUnit", bdperrors.KindNotFound, "work unit", err)
		}
		return nil, bdperrors.WrapKind("catalog.scanWorkUnit", bdperrors.KindInternal, "scan work unit", err)
	}
	w.Status = WorkUnitStatus(status)
	return &w, nil
}

// Heartbeat refreshes a claimed work unit's liveness timestamp. Workers
// call this periodically (default every WORKER_HEARTBEAT_SECS); a unit
// whose heartbeat goes stale past T_stale becomes reclaimable again.
func (db *DB) Heartbeat(workUnitID string) error {
	_, err := db.Exec(`UPDATE work_units SET heartbeat_at = ? WHERE id = ? AND status = ?`,
		time.Now().UTC(), workUnitID, string(WorkUnitProcessing))
	if err != nil {
		return bdperrors.WrapKind("catalog.Heartbeat", bdperrors.KindInternal, "heartbeat work unit", err)
	}
	return nil
}

// CompleteWorkUnit marks a work unit done.
func (db *DB) CompleteWorkUnit(workUnitID string) error {
	_, err := db.Exec(`UPDATE work_units SET status = ? WHERE id = ?`, string(WorkUnitCompleted), workUnitID)
	if err != nil {
		return bdperrors.WrapKind("catalog.CompleteWorkUnit", bdperrors.KindInternal, "complete work unit", err)
	}
	return nil
}

// FailWorkUnit records a failure. If retries remain it returns the unit to
// pending for reclaim; once max_retries is exhausted it is marked failed
// (spec §4.3.4: Transient errors retry with backoff, then escalate).
func (db *DB) FailWorkUnit(workUnitID string, reason string) error {
	row := db.QueryRow(`SELECT retry_count, max_retries FROM work_units WHERE id = ?`, workUnitID)
	var retryCount, maxRetries int
	if err := row.Scan(&retryCount, &maxRetries); err != nil {
		if err == sql.ErrNoRows {
			return bdperrors.WrapKind("catalog.FailWorkUnit", bdperrors.KindNotFound, "work unit", err)
		}
		return bdperrors.WrapKind("catalog.FailWorkUnit", bdperrors.KindInternal, "read work unit", err)
	}

	retryCount++
	nextStatus := WorkUnitPending
	if retryCount >= maxRetries {
		nextStatus = WorkUnitFailed
	}
	_, err := db.Exec(`
		UPDATE work_units SET status = ?, retry_count = ?, last_error = ?, worker_id = '', claimed_at = NULL, heartbeat_at = NULL
		WHERE id = ?`, string(nextStatus), retryCount, reason, workUnitID)
	if err != nil {
		return bdperrors.WrapKind("catalog.FailWorkUnit", bdperrors.KindInternal, "fail work unit", err)
	}
	return nil
}

// ListWorkUnits returns every work unit for a job, ordered by batch number.
func (db *DB) ListWorkUnits(jobID string) ([]*WorkUnit, error) {
	rows, err := db.Query(`
		SELECT id, job_id, unit_type, batch_number, start_offset, end_offset, status, worker_id, claimed_at, heartbeat_at, retry_count, max_retries, last_error
		FROM work_units WHERE job_id = ? ORDER BY batch_number`, jobID)
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ListWorkUnits", bdperrors.KindInternal, "query work units", err)
	}
	defer rows.Close()

	var out []*WorkUnit
	for rows.Next() {
		var w WorkUnit
		var status string
		if err := rows.Scan(&w.ID, &w.JobID, &w.UnitType, &w.BatchNumber, &w.StartOffset, &w.EndOffset, &status, &w.WorkerID, &w.ClaimedAt, &w.HeartbeatAt, &w.RetryCount, &w.MaxRetries, &w.LastError); err != nil {
			continue
		}
		w.Status = WorkUnitStatus(status)
		out = append(out, &w)
	}
	return out, rows.Err()
}

// AllWorkUnitsComplete reports whether every unit for a job has completed,
// the condition the Coordinator polls before transitioning storing -> completed.
func (db *DB) AllWorkUnitsComplete(jobID string) (bool, error) {
	row := db.QueryRow(`
		SELECT COUNT(*) FROM work_units WHERE job_id = ? AND status != ?`,
		jobID, string(WorkUnitCompleted))
	var remaining int
	if err := row.Scan(&remaining); err != nil {
		return false, bdperrors.WrapKind("catalog.AllWorkUnitsComplete", bdperrors.KindInternal, "count remaining units", err)
	}
	return remaining == 0, nil
}
