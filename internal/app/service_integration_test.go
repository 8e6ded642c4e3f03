package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	service "github.com/okian/techrank/internal/app"
	"github.com/okian/techrank/internal/adapters/repository"
	"github.com/okian/techrank/internal/adapters/transfer"
	"github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"
)

type memArchiver struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (a *memArchiver) Archive(_ context.Context, name string, body []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := "exports/" + name
	a.objects[key] = body
	return key, nil
}

type chanReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed int
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed += len(msgs)
	return nil
}

func (r *chanReader) Close() error { return nil }

func (r *chanReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}

func TestServiceIntegration_ExportImport(t *testing.T) {
	Convey("Given a sqlite backed service with data", t, func() {
		ctx := context.Background()
		svc := newStarted(service.WithStoreDriver(repository.DriverSQLite, ":memory:"))
		defer svc.Stop(ctx)

		a, err := svc.AddTechnician(ctx, "Victor Santos")
		So(err, ShouldBeNil)
		b, err := svc.AddTechnician(ctx, "João Rangel")
		So(err, ShouldBeNil)
		for i := 0; i < 4; i++ {
			_, _, err := svc.AddServiceRecord(ctx, "", input(a.ID, epoch.AddDate(0, 0, -i), 30+float64(i), 5, 4))
			So(err, ShouldBeNil)
		}
		_, _, err = svc.AddServiceRecord(ctx, "", input(b.ID, epoch, 10, 2, 5))
		So(err, ShouldBeNil)

		file, err := svc.Export(ctx)
		So(err, ShouldBeNil)
		So(file.Name, ShouldEqual, "technician-rankings-export-2025-01-01.json")

		Convey("When the export is imported into a fresh service", func() {
			other := newStarted()
			defer other.Stop(ctx)
			So(other.Import(ctx, bytes.NewReader(file.Body)), ShouldBeNil)

			Convey("Then it exports the same dataset", func() {
				again, err := other.Export(ctx)
				So(err, ShouldBeNil)
				So(string(again.Body), ShouldEqual, string(file.Body))
			})
		})

		Convey("When an import is missing an array", func() {
			err := svc.Import(ctx, strings.NewReader(`{"technicians":[]}`))

			Convey("Then it is rejected and nothing changes", func() {
				So(errors.Is(err, transfer.ErrInvalidPayload), ShouldBeTrue)
				stats, err := svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(stats.Technicians, ShouldEqual, 2)
				So(stats.ServiceRecords, ShouldEqual, 5)
			})
		})

		Convey("When an import carries an out of range record", func() {
			payload := `{
				"technicians":[{"id":"t1","name":"Leonardo"}],
				"serviceRecords":[
					{"id":"r1","technicianId":"t1","date":"2025-01-15T09:00:00Z","serviceTime":45,"firstResponseTime":10,"rating":4},
					{"id":"r2","technicianId":"t1","date":"2025-01-16T09:00:00Z","serviceTime":-10,"firstResponseTime":10,"rating":42}
				]
			}`
			err := svc.Import(ctx, strings.NewReader(payload))

			Convey("Then the whole payload is rejected and nothing changes", func() {
				So(errors.Is(err, transfer.ErrInvalidPayload), ShouldBeTrue)
				stats, err := svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(stats.Technicians, ShouldEqual, 2)
				So(stats.ServiceRecords, ShouldEqual, 5)

				ov, err := svc.Overview(ctx, nil)
				So(err, ShouldBeNil)
				So(ov.AvgRating, ShouldBeLessThanOrEqualTo, 5)
			})
		})

		Convey("When an import carries stale cached metrics", func() {
			payload := fmt.Sprintf(`{
				"technicians":[{"id":"t1","name":"Leonardo","totalCalls":42,"rating":1}],
				"serviceRecords":[{"id":"r1","technicianId":"t1","date":"2025-01-15T10:30:00.000Z","serviceTime":45,"firstResponseTime":10,"rating":%g}]
			}`, 4.5)
			So(svc.Import(ctx, strings.NewReader(payload)), ShouldBeNil)

			Convey("Then the caches are recomputed and old data is replaced", func() {
				file, err := svc.Export(ctx)
				So(err, ShouldBeNil)
				So(string(file.Body), ShouldContainSubstring, `"totalCalls": 1`)
				So(string(file.Body), ShouldNotContainSubstring, a.ID)
			})
		})

		Convey("When everything is cleared", func() {
			So(svc.Clear(ctx), ShouldBeNil)
			techs, err := svc.Technicians(ctx, nil)
			So(err, ShouldBeNil)
			So(techs, ShouldBeEmpty)
		})
	})
}

func TestServiceIntegration_Archive(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()

		Convey("When no archiver is configured", func() {
			svc := newStarted()
			defer svc.Stop(ctx)
			_, err := svc.ArchiveExport(ctx)
			So(errors.Is(err, transfer.ErrArchiveDisabled), ShouldBeTrue)
		})

		Convey("When an archiver is configured", func() {
			arch := &memArchiver{objects: map[string][]byte{}}
			svc := newStarted(service.WithArchiver(arch))
			defer svc.Stop(ctx)
			_, err := svc.AddTechnician(ctx, "Leonardo")
			So(err, ShouldBeNil)

			key, err := svc.ArchiveExport(ctx)

			Convey("Then the export is uploaded under its file name", func() {
				So(err, ShouldBeNil)
				So(key, ShouldEqual, "exports/technician-rankings-export-2025-01-01.json")
				So(string(arch.objects[key]), ShouldContainSubstring, "Leonardo")
			})
		})
	})
}

func TestServiceIntegration_Ingest(t *testing.T) {
	Convey("Given a service consuming a topic", t, func() {
		ctx := context.Background()
		reader := &chanReader{msgs: make(chan kafka.Message, 8)}
		svc := newStarted(
			service.WithIngestReader(reader, 2),
			service.WithSeedTechnicians([]string{"Leonardo"}),
		)

		techs, err := svc.Technicians(ctx, nil)
		So(err, ShouldBeNil)
		id := techs[0].ID

		body := func(event string) []byte {
			return []byte(fmt.Sprintf(`{"event_id":%q,"technician_id":%q,"date":"2025-01-15","service_time":30,"first_response_time":5,"rating":4}`, event, id))
		}
		reader.msgs <- kafka.Message{Offset: 1, Value: body("ev-1")}
		reader.msgs <- kafka.Message{Offset: 2, Value: body("ev-2")}
		reader.msgs <- kafka.Message{Offset: 3, Value: body("ev-1")}

		deadline := time.Now().Add(2 * time.Second)
		for reader.commits() < 3 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		stats, err := svc.GetStats(ctx)
		So(err, ShouldBeNil)
		So(svc.Stop(ctx), ShouldBeNil)

		Convey("Then redelivered events are stored once", func() {
			So(reader.commits(), ShouldEqual, 3)
			So(stats.ServiceRecords, ShouldEqual, 2)
			So(stats.Ingest, ShouldNotBeNil)
			So(stats.Ingest.Processed, ShouldEqual, 2)
			So(stats.Ingest.Duplicates, ShouldEqual, 1)
		})
	})
}

func TestServiceIntegration_StatsDuringStop(t *testing.T) {
	Convey("Given a service that owns a sqlite store and is polled for stats", t, func() {
		ctx := context.Background()
		svc := newStarted(service.WithStoreDriver(repository.DriverSQLite, ":memory:"))
		_, err := svc.AddTechnician(ctx, "Victor Santos")
		So(err, ShouldBeNil)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			failures []error
		)
		done := make(chan struct{})
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-done:
						return
					default:
					}
					if _, err := svc.GetStats(ctx); err != nil {
						mu.Lock()
						failures = append(failures, err)
						mu.Unlock()
					}
				}
			}()
		}

		time.Sleep(10 * time.Millisecond)
		stopErr := svc.Stop(ctx)
		time.Sleep(10 * time.Millisecond)
		close(done)
		wg.Wait()

		Convey("Then Stop succeeds and no poll sees a closed store", func() {
			So(stopErr, ShouldBeNil)
			So(failures, ShouldBeEmpty)

			stats, err := svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(stats.Started, ShouldBeFalse)
		})
	})
}
