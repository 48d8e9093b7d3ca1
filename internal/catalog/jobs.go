package catalog

import (
	"database/sql"
	"encoding/json"
	"time"

	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/google/uuid"
)

// validJobTransitions enforces the forward-only state machine of spec
// §4.3.1. The Coordinator is the only caller permitted to transition a job;
// workers never mutate status directly.
var validJobTransitions = map[JobStatus][]JobStatus{
	JobPending:          {JobDownloading, JobFailed},
	JobDownloading:      {JobDownloadVerified, JobFailed},
	JobDownloadVerified: {JobParsing, JobFailed},
	JobParsing:          {JobStoring, JobFailed},
	JobStoring:          {JobCompleted, JobFailed},
	JobCompleted:        {},
	JobFailed:           {},
}

// CanTransition reports whether a job may move from `from` to `to`.
func CanTransition(from, to JobStatus) bool {
	for _, allowed := range validJobTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InsertJob creates an ingestion job in the pending state. (organization_id,
// job_type, external_version) is unique: re-ingesting an already-known
// external version is a no-op caught by this constraint (idempotence,
// spec §4.3.3).
func (db *DB) InsertJob(j *IngestionJob) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = JobPending
	}
	counters, err := json.Marshal(j.Counters)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertJob", bdperrors.KindInternal, "marshal counters", err)
	}

	_, err = db.Exec(`
		INSERT INTO ingestion_jobs (id, organization_id, job_type, external_version, internal_version_id, status, counters, source_metadata, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.OrganizationID, j.JobType, j.ExternalVersion, j.InternalVersionID, string(j.Status), string(counters), j.SourceMetadata, j.CreatedAt, j.UpdatedAt, j.CompletedAt)
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertJob", bdperrors.KindConflict, "insert job", err)
	}
	return nil
}

// GetJob fetches an existing job for (org, job_type, external_version), the
// key a resumed ingestion run looks up first.
func (db *DB) GetJob(orgID, jobType, externalVersion string) (*IngestionJob, error) {
	row := db.QueryRow(`
		SELECT id, organization_id, job_type, external_version, internal_version_id, status, counters, source_metadata, created_at, updated_at, completed_at
		FROM ingestion_jobs WHERE organization_id = ? AND job_type = ? AND external_version = ?`,
		orgID, jobType, externalVersion)
	return scanJob(row)
}

// GetJobByID fetches a job by primary key.
func (db *DB) GetJobByID(id string) (*IngestionJob, error) {
	row := db.QueryRow(`
		SELECT id, organization_id, job_type, external_version, internal_version_id, status, counters, source_metadata, created_at, updated_at, completed_at
		FROM ingestion_jobs WHERE id = ?`, id)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*IngestionJob, error) {
	var j IngestionJob
	var status, counters string
	if err := row.Scan(&j.ID, &j.OrganizationID, &j.JobType, &j.ExternalVersion, &j.InternalVersionID, &status, &counters, &j.SourceMetadata, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, bdperrors.WrapKind("catalog.GetJob", bdperrors.KindNotFound, "job", err)
		}
		return nil, bdperrors.WrapKind("catalog.GetJob", bdperrors.KindInternal, "scan job", err)
	}
	j.Status = JobStatus(status)
	if err := json.Unmarshal([]byte(counters), &j.Counters); err != nil {
		return nil, bdperrors.WrapKind("catalog.GetJob", bdperrors.KindInternal, "unmarshal counters", err)
	}
	return &j, nil
}

// TransitionJob moves a job to a new status, rejecting transitions the
// state machine forbids. Reaching completed or failed stamps completed_at.
// A non-nil internalVersionID is recorded on the job; a nil one keeps any
// version already persisted (e.g. by SetJobVersion).
func (db *DB) TransitionJob(jobID string, to JobStatus, internalVersionID *string) error {
	job, err := db.GetJobByID(jobID)
	if err != nil {
		return err
	}
	if !CanTransition(job.Status, to) {
		return bdperrors.E("catalog.TransitionJob", bdperrors.KindValidation,
			"invalid job transition "+string(job.Status)+" -> "+string(to))
	}

	now := time.Now().UTC()
	var completedAt interface{}
	if to == JobCompleted || to == JobFailed {
		completedAt = now
	}
	_, err = db.Exec(`
		UPDATE ingestion_jobs SET status = ?, internal_version_id = COALESCE(?, internal_version_id), updated_at = ?, completed_at = ?
		WHERE id = ?`, string(to), internalVersionID, now, completedAt, jobID)
	if err != nil {
		return bdperrors.WrapKind("catalog.TransitionJob", bdperrors.KindInternal, "transition job", err)
	}
	return nil
}

// SetJobVersion persists the Version a JobStoring job has allocated without
// transitioning status, so a crash between allocation and the final
// Completed transition resumes against the same version instead of
// allocating (and then re-storing records under) a second one (spec
// §4.3.3, §8 idempotence).
func (db *DB) SetJobVersion(jobID, versionID string) error {
	_, err := db.Exec(`UPDATE ingestion_jobs SET internal_version_id = ?, updated_at = ? WHERE id = ?`,
		versionID, time.Now().UTC(), jobID)
	if err != nil {
		return bdperrors.WrapKind("catalog.SetJobVersion", bdperrors.KindInternal, "set job version", err)
	}
	return nil
}

// UpdateJobCounters persists progress counters for a running job.
func (db *DB) UpdateJobCounters(jobID string, counters JobCounters) error {
	encoded, err := json.Marshal(counters)
	if err != nil {
		return bdperrors.WrapKind("catalog.UpdateJobCounters", bdperrors.KindInternal, "marshal counters", err)
	}
	_, err = db.Exec(`UPDATE ingestion_jobs SET counters = ?, updated_at = ? WHERE id = ?`,
		string(encoded), time.Now().UTC(), jobID)
	if err != nil {
		return bdperrors.WrapKind("catalog.UpdateJobCounters", bdperrors.KindInternal, "update counters", err)
	}
	return nil
}

// ListJobsByStatus returns every job in a given status, used by the
// Coordinator to find work to resume after a restart.
func (db *DB) ListJobsByStatus(status JobStatus) ([]*IngestionJob, error) {
	rows, err := db.Query(`
		SELECT id, organization_id, job_type, external_version, internal_version_id, status, counters, source_metadata, created_at, updated_at, completed_at
		FROM ingestion_jobs WHERE status = ? ORDER BY created_at`, string(status))
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ListJobsByStatus", bdperrors.KindInternal, "query jobs", err)
	}
	defer rows.Close()

	scanner := bdperrors.NewRowScanner("list_jobs_by_status")
	var out []*IngestionJob
	for rows.Next() {
		var j IngestionJob
		var st, counters string
		if err := rows.Scan(&j.ID, &j.OrganizationID, &j.JobType, &j.ExternalVersion, &j.InternalVersionID, &st, &counters, &j.SourceMetadata, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt); err != nil {
			scanner.RecordSkip(err, "job row")
			continue
		}
		j.Status = JobStatus(st)
		if err := json.Unmarshal([]byte(counters), &j.Counters); err != nil {
			scanner.RecordSkip(err, j.ID)
			continue
		}
		scanner.RecordScan()
		out = append(out, &j)
	}
	scanner.Report()
	return out, rows.Err()
}

// InsertRawFile registers an upstream artifact pending download.
func (db *DB) InsertRawFile(f *RawFile) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = RawFilePending
	}
	_, err := db.Exec(`
		INSERT INTO raw_files (id, job_id, file_purpose, blob_key, expected_md5, computed_md5, verified_md5, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.JobID, f.FilePurpose, f.BlobKey, f.ExpectedMD5, f.ComputedMD5, f.VerifiedMD5, string(f.Status))
	if err != nil {
		return bdperrors.WrapKind("catalog.InsertRawFile", bdperrors.KindConflict, "insert raw file", err)
	}
	return nil
}

// UpdateRawFileStatus records a raw file's download/verification outcome.
func (db *DB) UpdateRawFileStatus(id string, status RawFileStatus, computedMD5 string) error {
	_, err := db.Exec(`UPDATE raw_files SET status = ?, computed_md5 = ? WHERE id = ?`,
		string(status), computedMD5, id)
	if err != nil {
		return bdperrors.WrapKind("catalog.UpdateRawFileStatus", bdperrors.KindInternal, "update raw file", err)
	}
	return nil
}

// ListRawFiles returns every raw file registered for a job.
func (db *DB) ListRawFiles(jobID string) ([]*RawFile, error) {
	rows, err := db.Query(`
		SELECT id, job_id, file_purpose, blob_key, expected_md5, computed_md5, verified_md5, status
		FROM raw_files WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, bdperrors.WrapKind("catalog.ListRawFiles", bdperrors.KindInternal, "query raw files", err)
	}
	defer rows.Close()

	var out []*RawFile
	for rows.Next() {
		var f RawFile
		var status string
		if err := rows.Scan(&f.ID, &f.JobID, &f.FilePurpose, &f.BlobKey, &f.ExpectedMD5, &f.ComputedMD5, &f.VerifiedMD5, &status); err != nil {
			continue
		}
		f.Status = RawFileStatus(status)
		out = append(out, &f)
	}
	return out, rows.Err()
}
