package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type jobResponse struct {
	ID              string             `json:"id"`
	OrganizationID  string             `json:"organization_id"`
	JobType         string             `json:"job_type"`
	ExternalVersion string             `json:"external_version"`
	Status          string             `json:"status"`
	Counters        jobCountersPayload `json:"counters"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

type jobCountersPayload struct {
	RecordsStaged int `json:"records_staged"`
	RecordsStored int `json:"records_stored"`
	RecordsFailed int `json:"records_failed"`
}

// handleGetJob reports an ingestion job's current state-machine position
// and progress counters (spec §4.3.1).
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := s.db.GetJobByID(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{
		ID:              job.ID,
		OrganizationID:  job.OrganizationID,
		JobType:         job.JobType,
		ExternalVersion: job.ExternalVersion,
		Status:          string(job.Status),
		Counters: jobCountersPayload{
			RecordsStaged: job.Counters.RecordsStaged,
			RecordsStored: job.Counters.RecordsStored,
			RecordsFailed: job.Counters.RecordsFailed,
		},
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	})
}

type versionResponse struct {
	Org             string            `json:"org"`
	Slug            string            `json:"slug"`
	InternalVersion string            `json:"internal_version"`
	ExternalVersion string            `json:"external_version"`
	ReleaseDate     time.Time         `json:"release_date"`
	SizeBytes       int64             `json:"size_bytes"`
	DependencyCount int               `json:"dependency_count"`
	Files           []versionFilePart `json:"files"`
}

type versionFilePart struct {
	Format   string `json:"format"`
	BlobKey  string `json:"blob_key"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// handleGetVersion reports an entry's latest committed version, the same
// lookup the Resolution Engine performs for an unpinned "latest" spec.
func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	org, err := s.db.GetOrganizationBySlug(vars["org"])
	if err != nil {
		writeError(w, err)
		return
	}
	entry, err := s.db.GetEntry(org.ID, vars["slug"])
	if err != nil {
		writeError(w, err)
		return
	}
	version, err := s.db.LatestVersion(entry.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	files, err := s.db.ListVersionFiles(version.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	parts := make([]versionFilePart, 0, len(files))
	for _, f := range files {
		parts = append(parts, versionFilePart{Format: f.Format, BlobKey: f.BlobKey, Checksum: f.Checksum, Size: f.SizeBytes})
	}

	writeJSON(w, http.StatusOK, versionResponse{
		Org:             org.Slug,
		Slug:            entry.Slug,
		InternalVersion: version.String(),
		ExternalVersion: version.ExternalVersion,
		ReleaseDate:     version.ReleaseDate,
		SizeBytes:       version.SizeBytes,
		DependencyCount: version.DependencyCount,
		Files:           parts,
	})
}

// handleGetBlob redirects to a time-limited presigned URL rather than
// proxying bytes through this process (spec §4.7).
func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	exists, err := s.blobs.Exists(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "blob not found: " + key})
		return
	}

	url, err := s.blobs.PresignedRead(r.Context(), key, 15*time.Minute)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
