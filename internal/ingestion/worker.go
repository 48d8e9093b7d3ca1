package ingestion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nishad/bdp/internal/blobstore"
	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
	"github.com/nishad/bdp/internal/parser"
)

// DefaultHeartbeatInterval and DefaultStaleMultiplier are T_heartbeat and
// the stale-reclaim multiplier from spec §4.3.2 step 6: a unit whose
// heartbeat is older than T_heartbeat*StaleMultiplier is reclaimable.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultStaleMultiplier   = 5
)

// Worker repeatedly claims and parses Work Units for a single job, per
// spec §4.3.2's Parse phase. Multiple Workers may run concurrently against
// the same job; claim atomicity (catalog.ClaimNextWorkUnit) is what makes
// that safe.
type Worker struct {
	ID                string
	DB                *catalog.DB
	Blobs             blobstore.Store
	HeartbeatInterval time.Duration
	StaleMultiplier   int
	Metrics           Metrics
}

func (w *Worker) heartbeatInterval() time.Duration {
	if w.HeartbeatInterval > 0 {
		return w.HeartbeatInterval
	}
	return DefaultHeartbeatInterval
}

func (w *Worker) staleMultiplier() int {
	if w.StaleMultiplier > 0 {
		return w.StaleMultiplier
	}
	return DefaultStaleMultiplier
}

func (w *Worker) staleBefore() time.Time {
	return time.Now().UTC().Add(-w.heartbeatInterval() * time.Duration(w.staleMultiplier()))
}

// startHeartbeatLoop re-heartbeats unitID every heartbeatInterval() until
// the returned stop func is called. Heartbeat errors are logged and
// swallowed rather than failing the unit: a missed tick just brings the
// unit that much closer to staleBefore(), it doesn't corrupt anything.
func (w *Worker) startHeartbeatLoop(unitID string) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(w.heartbeatInterval())
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := w.DB.Heartbeat(unitID); err != nil {
					bdperrors.LogAndContinueWith("periodic heartbeat", err, unitID)
				}
			}
		}
	}()
	return func() { close(done) }
}

// Run claims and processes units for jobID until none remain claimable,
// then returns. The Coordinator calls Run concurrently across a bounded
// worker pool (errgroup) for the Parse phase.
func (w *Worker) Run(ctx context.Context, jobID, blobKey string, p parser.Parser) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		unit, err := w.DB.ClaimNextWorkUnit(jobID, w.ID, w.staleBefore())
		if err != nil {
			return err
		}
		if unit == nil {
			return nil // no more claimable work; another worker may still be processing
		}
		if w.Metrics != nil {
			w.Metrics.WorkUnitClaimed()
		}

		if err := w.processUnit(ctx, unit, blobKey, p); err != nil {
			if failErr := w.DB.FailWorkUnit(unit.ID, err.Error()); failErr != nil {
				return failErr
			}
			if w.Metrics != nil {
				w.Metrics.WorkUnitFailed()
			}
			bdperrors.LogAndContinueWith("process work unit", err, unit.ID)
			continue
		}
	}
}

// processUnit reads the raw blob, parses its assigned ordinal range, and
// stages the resulting records in one batch. It heartbeats once before the
// parse starts and again every heartbeatInterval() while ParseRange is in
// flight, so a large unit's parse (which can run well past T_heartbeat)
// doesn't go stale and get reclaimed by a second worker out from under it
// (spec §4.3.2 step 6, §8 claim-atomicity).
func (w *Worker) processUnit(ctx context.Context, unit *catalog.WorkUnit, blobKey string, p parser.Parser) error {
	if err := w.DB.Heartbeat(unit.ID); err != nil {
		return err
	}

	r, err := w.Blobs.Get(ctx, blobKey)
	if err != nil {
		return bdperrors.WrapKind("ingestion.Worker.processUnit", bdperrors.KindTransient, "open raw file", err)
	}
	defer r.Close()

	stopHeartbeat := w.startHeartbeatLoop(unit.ID)
	end := unit.EndOffset
	if unit.UnitType == "byte_range" && end == 0 {
		end = 1<<62 - 1 // whole-file sentinel when the parser couldn't cheaply count
	}
	records, malformed, err := p.ParseRange(r, unit.StartOffset, end)
	stopHeartbeat()
	if err != nil {
		return bdperrors.WrapKind("ingestion.Worker.processUnit", bdperrors.KindIngestion, "parse range", err)
	}
	for _, m := range malformed {
		bdperrors.LogAndContinueWith("parse record", &m, unit.JobID)
	}

	staged := make([]*catalog.StagedRecord, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec.RecordData)
		if err != nil {
			return bdperrors.WrapKind("ingestion.Worker.processUnit", bdperrors.KindInternal, "marshal record data", err)
		}
		staged = append(staged, &catalog.StagedRecord{
			JobID:            unit.JobID,
			WorkUnitID:       unit.ID,
			RecordType:       rec.RecordType,
			RecordIdentifier: rec.RecordIdentifier,
			RecordData:       string(data),
			ContentMD5:       rec.ContentMD5,
			SequenceMD5:      rec.SequenceMD5,
		})
	}
	stagedCount, err := w.DB.StageRecordsBatch(staged)
	if err != nil {
		return err
	}
	if w.Metrics != nil {
		w.Metrics.RecordsStaged(stagedCount)
		w.Metrics.RecordsFailed(len(malformed))
	}

	if err := w.DB.CompleteWorkUnit(unit.ID); err != nil {
		return err
	}
	if w.Metrics != nil {
		w.Metrics.WorkUnitCompleted()
	}
	return nil
}
