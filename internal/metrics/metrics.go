package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics holds the collection server counters. Fields are updated with
// sync/atomic.
type Metrics struct {
	// IngestRequestsTotal counts every collector request, accepted or not
	IngestRequestsTotal int64
	// IngestRequestsRejectedTotal counts 4xx answers from the collector
	// (malformed body, missing session id, body too large)
	IngestRequestsRejectedTotal int64
	// EventsStoredTotal is the number of rows written, not requests
	EventsStoredTotal int64
	StoreErrorsTotal  int64

	// ticket and chat
	NotificationsSentTotal   int64
	NotificationsFailedTotal int64

	// ArchiveUploadsTotal counts successful objects; ArchivePutErrorsTotal
	// counts failed attempts, so one batch can add several.
	ArchiveUploadsTotal   int64
	ArchivePutErrorsTotal int64
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Inc(counter *int64) {
	atomic.AddInt64(counter, 1)
}

func (m *Metrics) Add(counter *int64, n int64) {
	atomic.AddInt64(counter, n)
}

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(256)

	fmt.Fprintf(&sb, "ingest_requests_total=%d\n", atomic.LoadInt64(&m.IngestRequestsTotal))
	fmt.Fprintf(&sb, "ingest_requests_rejected_total=%d\n", atomic.LoadInt64(&m.IngestRequestsRejectedTotal))
	fmt.Fprintf(&sb, "events_stored_total=%d\n", atomic.LoadInt64(&m.EventsStoredTotal))
	fmt.Fprintf(&sb, "store_errors_total=%d\n", atomic.LoadInt64(&m.StoreErrorsTotal))

	fmt.Fprintf(&sb, "notifications_sent_total=%d\n", atomic.LoadInt64(&m.NotificationsSentTotal))
	fmt.Fprintf(&sb, "notifications_failed_total=%d\n", atomic.LoadInt64(&m.NotificationsFailedTotal))

	fmt.Fprintf(&sb, "archive_uploads_total=%d\n", atomic.LoadInt64(&m.ArchiveUploadsTotal))
	fmt.Fprintf(&sb, "archive_put_errors_total=%d\n", atomic.LoadInt64(&m.ArchivePutErrorsTotal))

	return sb.String()
}
