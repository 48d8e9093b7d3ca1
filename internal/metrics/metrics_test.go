package metrics

import (
	"testing"
	"time"
)

func TestIngestionMetricsSafeToCallRepeatedly(t *testing.T) {
	m := NewIngestion()
	for i := 0; i < 3; i++ {
		m.WorkUnitClaimed()
		m.WorkUnitCompleted()
		m.WorkUnitFailed()
		m.RecordsStaged(10)
		m.RecordsFailed(1)
		m.JobCompleted()
		m.JobFailed()
		m.ObserveDownload(50 * time.Millisecond)
		m.ObserveParse(5 * time.Millisecond)
		m.ObserveStore(20 * time.Millisecond)
	}
}
