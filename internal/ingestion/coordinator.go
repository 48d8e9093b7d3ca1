package ingestion

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nishad/bdp/internal/blobstore"
	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/nishad/bdp/internal/parser"
	"golang.org/x/sync/errgroup"
)

// StagedRecordSummary is the minimal view of a staged record the
// Versioning Engine needs to diff against the prior committed version —
// just enough to classify a bump without re-reading the full record_data
// payload.
type StagedRecordSummary struct {
	RecordIdentifier string
	ContentMD5       string
}

// VersionAllocator diffs newly staged records against an entry's latest
// committed version, classifies the resulting bump per the organization's
// policy, and inserts the new immutable Version row. Implemented by
// internal/versioning (C4); declared here so the Ingestion Engine has no
// import-time dependency on it.
type VersionAllocator interface {
	AllocateVersion(ctx context.Context, orgID, entryID, externalVersion string, sourceType catalog.SourceType, staged []StagedRecordSummary) (version *catalog.Version, changes []catalog.Change, bump catalog.BumpType, err error)
}

// ChangelogWriter records the Changelog for a newly allocated version and
// schedules its cascade to dependents (spec §4.3.2 Complete phase, §4.4.3).
type ChangelogWriter interface {
	WriteChangelog(ctx context.Context, version *catalog.Version, bump catalog.BumpType, changes []catalog.Change) error
	Cascade(ctx context.Context, entryID string, version *catalog.Version, bump catalog.BumpType) error
}

// JobSpec names the entry an ingestion run targets. JobType (the job
// store's (org, job_type, external_version) key component) is always the
// entry's source_type string — one parser, one job type, per spec §4.2.
type JobSpec struct {
	OrganizationID  string
	OrgSlug         string
	EntryID         string
	EntrySlug       string
	SourceType      catalog.SourceType
	ExternalVersion string
	Resolver        Resolver
}

func (s JobSpec) jobType() string { return string(s.SourceType) }

// Coordinator drives a single Ingestion Job through its state machine
// (spec §4.3.1), owning phase transitions; Workers never mutate job
// status (spec §4.3: "The Coordinator drives transitions; workers do not
// mutate status").
type Coordinator struct {
	DB         *catalog.DB
	Blobs      blobstore.Store
	HTTPClient *http.Client
	PoolSize   int
	Metrics    Metrics
	Versions   VersionAllocator
	Changelogs ChangelogWriter
}

func (c *Coordinator) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Coordinator) poolSize() int {
	if c.PoolSize > 0 {
		return c.PoolSize
	}
	return 4
}

func (c *Coordinator) metrics() Metrics {
	if c.Metrics != nil {
		return c.Metrics
	}
	return NoopMetrics{}
}

// StartOrResumeJob fetches the existing job for spec's key, or creates a
// new pending one — the (organization_id, job_type, external_version)
// uniqueness constraint is what makes re-ingesting an already-known
// external version a safe no-op (spec §4.3.3).
func (c *Coordinator) StartOrResumeJob(spec JobSpec) (*catalog.IngestionJob, error) {
	job, err := c.DB.GetJob(spec.OrganizationID, spec.jobType(), spec.ExternalVersion)
	if err == nil {
		return job, nil
	}
	if !bdperrors.IsKind(err, bdperrors.KindNotFound) {
		return nil, err
	}
	job = &catalog.IngestionJob{
		OrganizationID:  spec.OrganizationID,
		JobType:         spec.jobType(),
		ExternalVersion: spec.ExternalVersion,
	}
	if err := c.DB.InsertJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Run drives job through every remaining phase to completion or failure.
// Each phase checks persisted state before acting, so Run is safe to call
// again after a crash at any point (spec §4.3.3).
func (c *Coordinator) Run(ctx context.Context, job *catalog.IngestionJob, spec JobSpec) error {
	p, err := parser.Get(string(spec.SourceType))
	if err != nil {
		return err
	}

	if job.Status == catalog.JobPending {
		if err := c.DB.TransitionJob(job.ID, catalog.JobDownloading, nil); err != nil {
			return err
		}
		job.Status = catalog.JobDownloading
	}

	if job.Status == catalog.JobDownloading {
		if err := downloadAndVerify(ctx, c.DB, c.Blobs, c.httpClient(), job, spec.OrgSlug, spec.Resolver); err != nil {
			c.failJob(job, err)
			return err
		}
		if err := c.DB.TransitionJob(job.ID, catalog.JobDownloadVerified, nil); err != nil {
			return err
		}
		job.Status = catalog.JobDownloadVerified
	}

	rawFiles, err := c.DB.ListRawFiles(job.ID)
	if err != nil {
		return err
	}
	blobKey, err := primaryRawFileKey(rawFiles)
	if err != nil {
		return err
	}

	if job.Status == catalog.JobDownloadVerified {
		if err := partition(ctx, c.DB, c.Blobs, job, p, blobKey, DefaultPartitionSize); err != nil {
			c.failJob(job, err)
			return err
		}
		if err := c.DB.TransitionJob(job.ID, catalog.JobParsing, nil); err != nil {
			return err
		}
		job.Status = catalog.JobParsing
	}

	if job.Status == catalog.JobParsing {
		if err := c.runWorkerPool(ctx, job.ID, blobKey, p); err != nil {
			c.failJob(job, err)
			return err
		}
		complete, err := c.DB.AllWorkUnitsComplete(job.ID)
		if err != nil {
			return err
		}
		if !complete {
			err := bdperrors.E("ingestion.Coordinator.Run", bdperrors.KindIngestion, "work units failed permanently")
			c.failJob(job, err)
			return err
		}
		if err := c.DB.TransitionJob(job.ID, catalog.JobStoring, nil); err != nil {
			return err
		}
		job.Status = catalog.JobStoring
	}

	if job.Status == catalog.JobStoring {
		version, changes, bump, alreadyLogged, err := c.allocateVersion(ctx, job, spec)
		if err != nil {
			c.failJob(job, err)
			return err
		}
		if err := storeRecords(ctx, c.DB, c.Blobs, job, p, spec.SourceType, spec.OrganizationID, spec.EntrySlug, version); err != nil {
			c.failJob(job, err)
			return err
		}
		if c.Changelogs != nil && !alreadyLogged {
			if err := c.Changelogs.WriteChangelog(ctx, version, bump, changes); err != nil {
				c.failJob(job, err)
				return err
			}
			if err := c.Changelogs.Cascade(ctx, spec.EntryID, version, bump); err != nil {
				c.failJob(job, err)
				return err
			}
		}
		versionID := version.ID
		if err := c.DB.TransitionJob(job.ID, catalog.JobCompleted, &versionID); err != nil {
			return err
		}
		job.Status = catalog.JobCompleted
		c.metrics().JobCompleted()
	}

	return nil
}

// allocateVersion returns the Version this job stores records under. A job
// resumed after crashing between allocation and the final Completed
// transition already has job.InternalVersionID persisted (via
// catalog.SetJobVersion, set immediately below on first allocation) and
// reuses that version instead of allocating — and re-committing staged
// records under — a second one (spec §4.3.3, §8 idempotence). alreadyLogged
// reports whether this version's Changelog was already written in a prior
// attempt, so the caller doesn't try to insert a second one.
func (c *Coordinator) allocateVersion(ctx context.Context, job *catalog.IngestionJob, spec JobSpec) (version *catalog.Version, changes []catalog.Change, bump catalog.BumpType, alreadyLogged bool, err error) {
	if job.InternalVersionID != nil && *job.InternalVersionID != "" {
		version, err = c.DB.GetVersionByID(*job.InternalVersionID)
		if err != nil {
			return nil, nil, "", false, err
		}
		_, err = c.DB.GetChangelog(version.ID)
		alreadyLogged = err == nil
		if err != nil && !bdperrors.IsKind(err, bdperrors.KindNotFound) {
			return nil, nil, "", false, err
		}
		return version, nil, "", alreadyLogged, nil
	}

	if c.Versions == nil {
		// No Versioning Engine wired: allocate a bare next-minor version so
		// Store has something to key typed records on. Tests exercise this
		// path directly; production wiring always supplies a VersionAllocator.
		latest, latestErr := c.DB.LatestVersion(spec.EntryID)
		major, minor := 1, 0
		if latestErr == nil {
			major, minor = latest.Major, latest.Minor+1
		}
		v := &catalog.Version{EntryID: spec.EntryID, Major: major, Minor: minor, ExternalVersion: job.ExternalVersion, ReleaseDate: time.Now().UTC()}
		if err = c.DB.InsertVersion(v); err != nil {
			return nil, nil, "", false, err
		}
		if err = c.DB.SetJobVersion(job.ID, v.ID); err != nil {
			return nil, nil, "", false, err
		}
		job.InternalVersionID = &v.ID
		return v, nil, catalog.BumpMinor, false, nil
	}

	units, err := c.DB.ListWorkUnits(job.ID)
	if err != nil {
		return nil, nil, "", false, err
	}
	var summaries []StagedRecordSummary
	for _, unit := range units {
		staged, err := c.DB.ListStagedRecords(unit.ID)
		if err != nil {
			return nil, nil, "", false, err
		}
		for _, s := range staged {
			summaries = append(summaries, StagedRecordSummary{RecordIdentifier: s.RecordIdentifier, ContentMD5: s.ContentMD5})
		}
	}
	version, changes, bump, err = c.Versions.AllocateVersion(ctx, spec.OrganizationID, spec.EntryID, job.ExternalVersion, spec.SourceType, summaries)
	if err != nil {
		return nil, nil, "", false, err
	}
	if err = c.DB.SetJobVersion(job.ID, version.ID); err != nil {
		return nil, nil, "", false, err
	}
	job.InternalVersionID = &version.ID
	return version, changes, bump, false, nil
}

func (c *Coordinator) failJob(job *catalog.IngestionJob, cause error) {
	c.metrics().JobFailed()
	_ = c.DB.TransitionJob(job.ID, catalog.JobFailed, nil)
	bdperrors.LogAndContinueWith("ingestion job failed", cause, job.ID)
}

// runWorkerPool runs c.poolSize() Workers concurrently against job's work
// units, bounded and error-propagated via errgroup (spec §5: "a single
// process may host many workers").
func (c *Coordinator) runWorkerPool(ctx context.Context, jobID, blobKey string, p parser.Parser) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.poolSize(); i++ {
		workerID := jobID + "-worker-" + strconv.Itoa(i)
		g.Go(func() error {
			w := &Worker{ID: workerID, DB: c.DB, Blobs: c.Blobs, Metrics: c.metrics()}
			return w.Run(gctx, jobID, blobKey, p)
		})
	}
	return g.Wait()
}

func primaryRawFileKey(files []*catalog.RawFile) (string, error) {
	for _, f := range files {
		if f.FilePurpose == "data" {
			return f.BlobKey, nil
		}
	}
	if len(files) > 0 {
		return files[0].BlobKey, nil
	}
	return "", bdperrors.E("ingestion.primaryRawFileKey", bdperrors.KindIngestion, "no raw files registered for job")
}
