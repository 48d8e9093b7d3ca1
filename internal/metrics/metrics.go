// Package metrics provides the Prometheus-backed observability surface for
// the Ingestion Engine (spec §5): per-phase counters and duration
// histograms, registered once regardless of how many Coordinators share a
// process.
package metrics

import (
	"sync"
	"time"

	"github.com/nishad/bdp/internal/ingestion"
	"github.com/prometheus/client_golang/prometheus"
)

var _ ingestion.Metrics = (*Ingestion)(nil)

// singleton holds the process-wide registration: every NewIngestion call
// returns a pointer to the same instance, so registering its counters
// against the default Prometheus registry happens exactly once no matter
// how many Coordinators a process runs (mirrors the package-level
// once-guarded metrics struct enrichment sources in the ingestion corpus
// use, rather than a per-instance registration that would panic on
// Prometheus's duplicate-registration check the second time a Coordinator
// was constructed).
var singleton Ingestion

// NewIngestion returns the process-wide Ingestion metrics instance,
// registering its counters and histograms on first call.
func NewIngestion() *Ingestion {
	singleton.init()
	return &singleton
}

// Ingestion implements ingestion.Metrics with Prometheus counters and
// histograms.
type Ingestion struct {
	once sync.Once

	workUnitsClaimed   prometheus.Counter
	workUnitsCompleted prometheus.Counter
	workUnitsFailed    prometheus.Counter
	recordsStaged      prometheus.Counter
	recordsFailed      prometheus.Counter
	jobsCompleted      prometheus.Counter
	jobsFailed         prometheus.Counter

	downloadDuration prometheus.Histogram
	parseDuration    prometheus.Histogram
	storeDuration    prometheus.Histogram
}

var defaultBuckets = []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600}

func (m *Ingestion) init() {
	m.once.Do(func() {
		m.workUnitsClaimed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bdp_work_units_claimed_total", Help: "Work units claimed by a worker."})
		m.workUnitsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bdp_work_units_completed_total", Help: "Work units parsed and staged successfully."})
		m.workUnitsFailed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bdp_work_units_failed_total", Help: "Failed work unit attempts, whether or not retries remain."})
		m.recordsStaged = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bdp_records_staged_total", Help: "Records written to staged_records."})
		m.recordsFailed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bdp_records_failed_total", Help: "Records that failed to parse and were skipped."})
		m.jobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bdp_jobs_completed_total", Help: "Ingestion jobs that reached the completed state."})
		m.jobsFailed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bdp_jobs_failed_total", Help: "Ingestion jobs that reached a terminal failed state."})

		m.downloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "bdp_phase_download_seconds", Help: "Download & Verify phase duration.", Buckets: defaultBuckets})
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "bdp_phase_parse_seconds", Help: "Parse phase duration per work unit.", Buckets: defaultBuckets})
		m.storeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "bdp_phase_store_seconds", Help: "Store phase duration.", Buckets: defaultBuckets})

		prometheus.MustRegister(
			m.workUnitsClaimed, m.workUnitsCompleted, m.workUnitsFailed,
			m.recordsStaged, m.recordsFailed,
			m.jobsCompleted, m.jobsFailed,
			m.downloadDuration, m.parseDuration, m.storeDuration,
		)
	})
}

func (m *Ingestion) WorkUnitClaimed()   { m.init(); m.workUnitsClaimed.Inc() }
func (m *Ingestion) WorkUnitCompleted() { m.init(); m.workUnitsCompleted.Inc() }
func (m *Ingestion) WorkUnitFailed()    { m.init(); m.workUnitsFailed.Inc() }
func (m *Ingestion) RecordsStaged(n int) {
	m.init()
	m.recordsStaged.Add(float64(n))
}
func (m *Ingestion) RecordsFailed(n int) {
	m.init()
	m.recordsFailed.Add(float64(n))
}
func (m *Ingestion) JobCompleted() { m.init(); m.jobsCompleted.Inc() }
func (m *Ingestion) JobFailed()    { m.init(); m.jobsFailed.Inc() }

// ObserveDownload records a Download & Verify phase duration.
func (m *Ingestion) ObserveDownload(d time.Duration) { m.init(); m.downloadDuration.Observe(d.Seconds()) }

// ObserveParse records a single work unit's Parse phase duration.
func (m *Ingestion) ObserveParse(d time.Duration) { m.init(); m.parseDuration.Observe(d.Seconds()) }

// ObserveStore records a Store phase duration.
func (m *Ingestion) ObserveStore(d time.Duration) { m.init(); m.storeDuration.Observe(d.Seconds()) }
