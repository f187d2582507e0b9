package cloudstore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the adapter's transfer instrumentation. A nil *metrics is
// valid and records nothing, so call sites never branch on whether metrics
// were enabled.
type metrics struct {
	bytesUploaded   prometheus.Counter
	objectsUploaded prometheus.Counter
	objectsDeleted  prometheus.Counter
	deleteFailures  prometheus.Counter
	uploadDuration  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		bytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cloudstore",
			Name:      "uploaded_bytes_total",
			Help:      "Total bytes uploaded to object storage.",
		}),
		objectsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cloudstore",
			Name:      "uploaded_objects_total",
			Help:      "Total objects uploaded.",
		}),
		objectsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cloudstore",
			Name:      "deleted_objects_total",
			Help:      "Total objects deleted.",
		}),
		deleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cloudstore",
			Name:      "delete_failures_total",
			Help:      "Total per-key failures in bulk deletes.",
		}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cloudstore",
			Name:      "upload_duration_seconds",
			Help:      "Wall time of upload operations.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
	}
	reg.MustRegister(m.bytesUploaded, m.objectsUploaded, m.objectsDeleted, m.deleteFailures, m.uploadDuration)
	return m
}

func (m *metrics) observeUpload(bytes int64, seconds float64) {
	if m == nil {
		return
	}
	m.bytesUploaded.Add(float64(bytes))
	m.objectsUploaded.Inc()
	m.uploadDuration.Observe(seconds)
}

func (m *metrics) observeDeletes(succeeded, failed int) {
	if m == nil {
		return
	}
	m.objectsDeleted.Add(float64(succeeded))
	m.deleteFailures.Add(float64(failed))
}
