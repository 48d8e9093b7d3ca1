package catalog

import "time"

// JobStatus is the Ingestion Job state machine (spec §4.3.1):
//
//	pending -> downloading -> download_verified -> parsing -> storing -> completed
//	                        \_ failed            \_ failed  \_ failed
type JobStatus string

const (
	JobPending           JobStatus = "pending"
	JobDownloading       JobStatus = "downloading"
	JobDownloadVerified  JobStatus = "download_verified"
	JobParsing           JobStatus = "parsing"
	JobStoring           JobStatus = "storing"
	JobCompleted         JobStatus = "completed"
	JobFailed            JobStatus = "failed"
)

// JobCounters tracks record-level outcomes for a job, persisted as JSON.
type JobCounters struct {
	RecordsStaged int `json:"records_staged"`
	RecordsStored int `json:"records_stored"`
	RecordsFailed int `json:"records_failed"`
}

// IngestionJob is the unit of work the Coordinator drives through the
// state machine. Keyed by (organization, job_type, external_version).
type IngestionJob struct {
	ID                 string
	OrganizationID     string
	JobType            string
	ExternalVersion    string
	InternalVersionID  *string
	Status             JobStatus
	Counters           JobCounters
	SourceMetadata     string // opaque JSON, upstream manifest details
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

// RawFileStatus tracks download/verification progress for a Raw File.
type RawFileStatus string

const (
	RawFilePending    RawFileStatus = "pending"
	RawFileDownloaded RawFileStatus = "downloaded"
	RawFileVerified   RawFileStatus = "verified"
	RawFileFailed     RawFileStatus = "failed"
)

// RawFile is an upstream artifact staged into the Blob Store under the
// ingest/ namespace, verified against an upstream-declared MD5.
type RawFile struct {
	ID           string
	JobID        string
	FilePurpose  string
	BlobKey      string
	ExpectedMD5  string
	ComputedMD5  string
	VerifiedMD5  string
	Status       RawFileStatus
}

// Verified reports whether the computed MD5 matches the expected one.
func (f RawFile) Verified() bool {
	return f.ComputedMD5 != "" && f.ComputedMD5 == f.ExpectedMD5
}

// WorkUnitStatus tracks a Work Unit's claim lifecycle.
type WorkUnitStatus string

const (
	WorkUnitPending    WorkUnitStatus = "pending"
	WorkUnitProcessing WorkUnitStatus = "processing"
	WorkUnitCompleted  WorkUnitStatus = "completed"
	WorkUnitFailed     WorkUnitStatus = "failed"
)

// WorkUnit is a batch of record offsets [start, end) within a raw file, the
// atomic unit of parallel parsing (spec §3, GLOSSARY).
type WorkUnit struct {
	ID           string
	JobID        string
	UnitType     string
	BatchNumber  int
	StartOffset  int64
	EndOffset    int64
	Status       WorkUnitStatus
	WorkerID     string
	ClaimedAt    *time.Time
	HeartbeatAt  *time.Time
	RetryCount   int
	MaxRetries   int
	LastError    string
}

// RecordStatus tracks a Staged Record's lifecycle from staging to commit.
type RecordStatus string

const (
	RecordStaged RecordStatus = "staged"
	RecordStored RecordStatus = "stored"
)

// StagedRecord is a parsed record persisted in a staging area before its
// final typed insert and blob upload.
type StagedRecord struct {
	ID               string
	JobID            string
	WorkUnitID       string
	RecordType       string
	RecordIdentifier string
	RecordData       string // opaque structured payload, JSON-encoded
	ContentMD5       string
	SequenceMD5      string
	Status           RecordStatus
	StoredAt         *time.Time
}

// BumpType classifies a version bump as MAJOR or MINOR.
type BumpType string

const (
	BumpMajor BumpType = "major"
	BumpMinor BumpType = "minor"
)

// ChangelogTrigger records why a Changelog was created.
type ChangelogTrigger string

const (
	TriggerUpstreamDependency ChangelogTrigger = "upstream_dependency"
	TriggerNewRelease         ChangelogTrigger = "new_release"
	TriggerManual             ChangelogTrigger = "manual"
)

// ChangeSummary is the structured summary a Changelog records (spec
// §4.4.5): entry counts before/after, and the added/removed/modified sets.
type ChangeSummary struct {
	EntriesBefore int      `json:"entries_before"`
	EntriesAfter  int      `json:"entries_after"`
	Added         []string `json:"added"`
	Removed       []string `json:"removed"`
	Modified      []string `json:"modified"`
}

// Changelog records what changed between two consecutive internal versions
// of an entry. Every non-initial version has exactly one.
type Changelog struct {
	ID                   string
	VersionID            string
	BumpType             BumpType
	Entries              []Change
	Summary              ChangeSummary
	SummaryText           string
	TriggeredByVersionID *string
	Trigger              ChangelogTrigger
	CreatedAt            time.Time
}

// Change is a single detected difference between a prior and new version
// (spec §4.4.4).
type Change struct {
	ChangeType string `json:"change_type"` // added | removed | modified
	Category   string `json:"category"`
	Count      int    `json:"count"`
	Detail     string `json:"detail,omitempty"`
}
