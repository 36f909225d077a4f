// Package metrics keeps edit and delivery counters, mirrored into
// Prometheus collectors and a JSON snapshot.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSkipped = "skipped"
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
)

var (
	editsSkipped        int64
	editsSent           int64
	editsFailed         int64
	notificationsSent   int64
	failedRetryable     int64
	failedPermanent     int64
	threadSheetsCreated int64
	lastEdit            int64
)

var (
	promEdits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetnotify_edits_total",
			Help: "Edit events handled, by outcome",
		},
		[]string{"outcome"},
	)
	promSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetnotify_notifications_sent_total",
			Help: "Telegram notifications accepted by the Bot API",
		},
	)
	promFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetnotify_notifications_failed_total",
			Help: "Edits that did not produce a notification",
		},
		[]string{"retryable"},
	)
	promThreadSheets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetnotify_threads_sheet_created_total",
			Help: "Times the threads lookup sheet had to be created",
		},
	)
	promHandleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetnotify_handle_duration_seconds",
			Help:    "Duration of a single edit event, read to delivery",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

func init() {
	prometheus.MustRegister(
		promEdits,
		promSent,
		promFailed,
		promThreadSheets,
		promHandleDuration,
	)
}

// IncEdit counts one handled edit under its outcome.
func IncEdit(outcome string) {
	switch outcome {
	case OutcomeSkipped:
		atomic.AddInt64(&editsSkipped, 1)
	case OutcomeSent:
		atomic.AddInt64(&editsSent, 1)
	case OutcomeFailed:
		atomic.AddInt64(&editsFailed, 1)
	}
	atomic.StoreInt64(&lastEdit, time.Now().Unix())
	promEdits.WithLabelValues(outcome).Inc()
}

func IncNotificationSent() {
	atomic.AddInt64(&notificationsSent, 1)
	promSent.Inc()
}

// IncNotificationFailed counts a failed edit, split by whether a later attempt could succeed.
func IncNotificationFailed(retryable bool) {
	if retryable {
		atomic.AddInt64(&failedRetryable, 1)
		promFailed.WithLabelValues("true").Inc()
		return
	}
	atomic.AddInt64(&failedPermanent, 1)
	promFailed.WithLabelValues("false").Inc()
}

func IncThreadSheetCreated() {
	atomic.AddInt64(&threadSheetsCreated, 1)
	promThreadSheets.Inc()
}

// ObserveHandleDuration records one edit's duration in seconds.
func ObserveHandleDuration(seconds float64) {
	promHandleDuration.Observe(seconds)
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	EditsSkipped        int64  `json:"edits_skipped"`
	EditsSent           int64  `json:"edits_sent"`
	EditsFailed         int64  `json:"edits_failed"`
	NotificationsSent   int64  `json:"notifications_sent"`
	FailedRetryable     int64  `json:"failed_retryable"`
	FailedPermanent     int64  `json:"failed_permanent"`
	ThreadSheetsCreated int64  `json:"threads_sheet_created"`
	LastEdit            int64  `json:"last_edit_timestamp"`
	LastEditHuman       string `json:"last_edit_human,omitempty"`
}

func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastEdit)
	var human string
	if ts > 0 {
		human = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return StatsSnapshot{
		EditsSkipped:        atomic.LoadInt64(&editsSkipped),
		EditsSent:           atomic.LoadInt64(&editsSent),
		EditsFailed:         atomic.LoadInt64(&editsFailed),
		NotificationsSent:   atomic.LoadInt64(&notificationsSent),
		FailedRetryable:     atomic.LoadInt64(&failedRetryable),
		FailedPermanent:     atomic.LoadInt64(&failedPermanent),
		ThreadSheetsCreated: atomic.LoadInt64(&threadSheetsCreated),
		LastEdit:            ts,
		LastEditHuman:       human,
	}
}

// PromHandler exposes the default Prometheus registry.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler serves GetSnapshot as JSON.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}
