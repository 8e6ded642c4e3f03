package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it registers its collectors there", func() {
				So(manager, ShouldNotBeNil)
				manager.techniciansTotal.Set(3)

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.techniciansTotal.Set(1)

			Convey("Then names and labels follow them", func() {
				expected := `
# HELP test_unit_technicians_total Number of technicians in the store
# TYPE test_unit_technicians_total gauge
test_unit_technicians_total{env="test"} 1
`
				err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_unit_technicians_total")
				So(err, ShouldBeNil)
			})
		})

		Convey("When options carry empty values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithConstLabels(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "techrank")
				So(manager.subsystem, ShouldEqual, "service")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When updating domain gauges", func() {
			UpdateTechniciansTotal(8)
			UpdateServiceRecordsTotal(42)

			So(testutil.ToFloat64(globalManager.techniciansTotal), ShouldEqual, 8)
			So(testutil.ToFloat64(globalManager.serviceRecordsTotal), ShouldEqual, 42)
		})

		Convey("When counting records by source", func() {
			before := testutil.ToFloat64(globalManager.recordsAdded.WithLabelValues("api"))
			RecordServiceRecordAdded("api")
			RecordServiceRecordDuplicate("api")

			So(testutil.ToFloat64(globalManager.recordsAdded.WithLabelValues("api")), ShouldEqual, before+1)
			So(testutil.ToFloat64(globalManager.recordsDuplicate.WithLabelValues("api")), ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("When recording a ranking pass", func() {
			before := testutil.ToFloat64(globalManager.rankingsComputed.WithLabelValues("rating"))
			RecordRankingComputed("rating", 1.5)

			So(testutil.ToFloat64(globalManager.rankingsComputed.WithLabelValues("rating")), ShouldEqual, before+1)
		})

		Convey("When recording transfers and ingest outcomes", func() {
			RecordTransfer("export", "ok")
			RecordIngestMessage("malformed")
			UpdateIngestWorkerCount(4)
			UpdateIngestQueueSize(2)

			So(testutil.ToFloat64(globalManager.transfers.WithLabelValues("export", "ok")), ShouldBeGreaterThanOrEqualTo, 1)
			So(testutil.ToFloat64(globalManager.ingestMessages.WithLabelValues("malformed")), ShouldBeGreaterThanOrEqualTo, 1)
			So(testutil.ToFloat64(globalManager.ingestWorkerCount), ShouldEqual, 4)
			So(testutil.ToFloat64(globalManager.ingestQueueSize), ShouldEqual, 2)
		})

		Convey("When recording HTTP and error metrics", func() {
			So(func() {
				RecordHTTPRequest("/rankings", "GET", "200")
				RecordHTTPRequestDuration("/rankings", "GET", "200", 12.5)
				RecordErrorByComponent("api", "bad_request")
				RecordErrorByEndpoint("/records", "POST", "bad_request")
				RecordStoreLatency("list_records", 0.4)
			}, ShouldNotPanic)

			So(testutil.ToFloat64(globalManager.httpRequests.WithLabelValues("/rankings", "GET", "200")), ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("When recording system metrics", func() {
			UpdateSystemMemoryUsage(1024)
			UpdateSystemGoroutineCount(12)
			RecordSystemGCPauseTime(0.3)

			So(testutil.ToFloat64(globalManager.systemMemoryUsage), ShouldEqual, 1024)
			So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldEqual, 12)
		})

		Convey("When reading the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
