package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/techrank/internal/app"
	"github.com/okian/techrank/internal/adapters/repository"
	"github.com/okian/techrank/internal/domain/model"
	"github.com/okian/techrank/internal/domain/ranking"
	"github.com/okian/techrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// sequence returns an id generator producing prefix-1, prefix-2, ...
func sequence(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

func newStarted(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithLogger(logger.NewNop()),
		service.WithClock(func() time.Time { return epoch }),
		service.WithIDGenerator(sequence("id")),
	}
	svc := service.New(append(base, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func input(tech string, date time.Time, minutes, resp, rating float64) model.RecordInput {
	return model.RecordInput{
		TechnicianID:      tech,
		Date:              date,
		ServiceTime:       minutes,
		FirstResponseTime: resp,
		Rating:            rating,
	}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithLogger(logger.NewNop()))

		Convey("Then operations report it is not started", func() {
			_, err := svc.AddTechnician(ctx, "Leonardo")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Rankings(ctx, ranking.Query{})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			stats, err := svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(stats.Started, ShouldBeFalse)
		})

		Convey("When started and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats, err := svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(stats.Started, ShouldBeTrue)
			So(stats.Technicians, ShouldEqual, 0)

			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it is marked as stopped", func() {
				stats, err := svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(stats.Started, ShouldBeFalse)
			})
		})
	})
}

func TestService_Seed(t *testing.T) {
	Convey("Given seeding is enabled", t, func() {
		ctx := context.Background()

		Convey("When the store is empty", func() {
			svc := newStarted(service.WithSeedTechnicians(service.DefaultTechnicians))
			defer svc.Stop(ctx)

			Convey("Then the default technicians exist in order with zero metrics", func() {
				techs, err := svc.Technicians(ctx, nil)
				So(err, ShouldBeNil)
				So(len(techs), ShouldEqual, 8)
				So(techs[0].Name, ShouldEqual, "Victor Santos")
				So(techs[7].Name, ShouldEqual, "Matheus Medina")
				So(techs[3].Metrics(), ShouldResemble, model.Metrics{})
			})
		})

		Convey("When the injected store already has data", func() {
			store := repository.NewMemoryStore()
			So(store.CreateTechnician(ctx, model.Technician{ID: "x", Name: "Existing"}), ShouldBeNil)
			svc := newStarted(
				service.WithStore(store),
				service.WithSeedTechnicians(service.DefaultTechnicians),
			)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then nothing is added and the store stays open", func() {
				techs, err := store.ListTechnicians(ctx)
				So(err, ShouldBeNil)
				So(len(techs), ShouldEqual, 1)
			})
		})
	})
}

func TestService_Technicians(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newStarted()
		defer svc.Stop(ctx)

		Convey("When a technician is added", func() {
			tech, err := svc.AddTechnician(ctx, "  Fabricio  ")
			So(err, ShouldBeNil)

			Convey("Then the name is trimmed and metrics are zero", func() {
				So(tech.ID, ShouldEqual, "id-1")
				So(tech.Name, ShouldEqual, "Fabricio")
				So(tech.Metrics(), ShouldResemble, model.Metrics{})
				So(tech.CreatedAt, ShouldEqual, epoch)
			})

			Convey("And renaming keeps metrics and creation time", func() {
				_, _, err := svc.AddServiceRecord(ctx, "", input(tech.ID, epoch, 30, 5, 4))
				So(err, ShouldBeNil)

				renamed, err := svc.UpdateTechnician(ctx, tech.ID, "Fabricio S.")
				So(err, ShouldBeNil)
				So(renamed.Name, ShouldEqual, "Fabricio S.")
				So(renamed.TotalCalls, ShouldEqual, 1)
				So(renamed.CreatedAt, ShouldEqual, epoch)
			})
		})

		Convey("When the name is blank or too long", func() {
			_, err := svc.AddTechnician(ctx, "   ")
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)

			long := make([]rune, 101)
			for i := range long {
				long[i] = 'a'
			}
			_, err = svc.AddTechnician(ctx, string(long))
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When an unknown technician is touched", func() {
			_, err := svc.UpdateTechnician(ctx, "ghost", "Name")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(errors.Is(svc.DeleteTechnician(ctx, "ghost"), repository.ErrNotFound), ShouldBeTrue)
			_, err = svc.Technician(ctx, "ghost", nil)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = svc.TechnicianHistory(ctx, "ghost", nil)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a technician with records is deleted", func() {
			a, _ := svc.AddTechnician(ctx, "Marcel Neves")
			b, _ := svc.AddTechnician(ctx, "Leonardo")
			_, _, err := svc.AddServiceRecord(ctx, "", input(a.ID, epoch, 30, 5, 4))
			So(err, ShouldBeNil)
			_, _, err = svc.AddServiceRecord(ctx, "", input(b.ID, epoch, 20, 2, 5))
			So(err, ShouldBeNil)

			So(svc.DeleteTechnician(ctx, a.ID), ShouldBeNil)

			Convey("Then only its records are gone", func() {
				stats, err := svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(stats.Technicians, ShouldEqual, 1)
				So(stats.ServiceRecords, ShouldEqual, 1)

				hist, err := svc.TechnicianHistory(ctx, b.ID, nil)
				So(err, ShouldBeNil)
				So(len(hist), ShouldEqual, 1)
			})
		})
	})
}

func TestService_AddServiceRecord(t *testing.T) {
	Convey("Given a technician", t, func() {
		ctx := context.Background()
		svc := newStarted()
		defer svc.Stop(ctx)
		tech, err := svc.AddTechnician(ctx, "Victor Santos")
		So(err, ShouldBeNil)

		Convey("When two records are added", func() {
			_, _, err := svc.AddServiceRecord(ctx, "", input(tech.ID, epoch.AddDate(0, 0, -5), 30, 5, 4))
			So(err, ShouldBeNil)
			_, _, err = svc.AddServiceRecord(ctx, "", input(tech.ID, epoch, 60, 15, 5))
			So(err, ShouldBeNil)

			Convey("Then the cached metrics match a full recomputation", func() {
				snapshot, err := svc.Export(ctx)
				So(err, ShouldBeNil)
				So(string(snapshot.Body), ShouldContainSubstring, `"totalCalls": 2`)

				live, err := svc.Technician(ctx, tech.ID, nil)
				So(err, ShouldBeNil)
				So(live.Metrics(), ShouldResemble, model.Metrics{
					TotalCalls:           2,
					AvgServiceTime:       45,
					AvgFirstResponseTime: 10,
					AvgRating:            4.5,
				})
			})

			Convey("And a window narrows the live metrics", func() {
				w := &model.DateWindow{Start: epoch.AddDate(0, 0, -1), End: epoch}
				live, err := svc.Technician(ctx, tech.ID, w)
				So(err, ShouldBeNil)
				So(live.TotalCalls, ShouldEqual, 1)
				So(live.AvgRating, ShouldEqual, 5)
			})

			Convey("And history lists newest first", func() {
				hist, err := svc.TechnicianHistory(ctx, tech.ID, nil)
				So(err, ShouldBeNil)
				So(len(hist), ShouldEqual, 2)
				So(hist[0].Date, ShouldEqual, epoch)
			})
		})

		Convey("When the input is invalid", func() {
			_, _, err := svc.AddServiceRecord(ctx, "", input(tech.ID, epoch, 30, 5, 6))
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			_, _, err = svc.AddServiceRecord(ctx, "", input(tech.ID, epoch, 0, 5, 4))
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			_, _, err = svc.AddServiceRecord(ctx, "", input(tech.ID, time.Time{}, 30, 5, 4))
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When the same key is submitted twice", func() {
			first, replayed, err := svc.AddServiceRecord(ctx, "submit-1", input(tech.ID, epoch, 30, 5, 4))
			So(err, ShouldBeNil)
			So(replayed, ShouldBeFalse)

			second, replayed, err := svc.AddServiceRecord(ctx, "submit-1", input(tech.ID, epoch, 99, 9, 1))

			Convey("Then the first record is returned and stored once", func() {
				So(err, ShouldBeNil)
				So(replayed, ShouldBeTrue)
				So(second, ShouldResemble, first)

				stats, _ := svc.GetStats(ctx)
				So(stats.ServiceRecords, ShouldEqual, 1)
				So(stats.DedupeSize, ShouldEqual, 1)
			})
		})

		Convey("When a keyed submission fails", func() {
			_, _, err := svc.AddServiceRecord(ctx, "submit-2", input("ghost", epoch, 30, 5, 4))
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			Convey("Then the key can be used again", func() {
				_, replayed, err := svc.AddServiceRecord(ctx, "submit-2", input(tech.ID, epoch, 30, 5, 4))
				So(err, ShouldBeNil)
				So(replayed, ShouldBeFalse)
			})
		})

		Convey("When the record behind a key was deleted with its technician", func() {
			_, _, err := svc.AddServiceRecord(ctx, "submit-3", input(tech.ID, epoch, 30, 5, 4))
			So(err, ShouldBeNil)
			So(svc.DeleteTechnician(ctx, tech.ID), ShouldBeNil)
			other, _ := svc.AddTechnician(ctx, "João Rangel")

			Convey("Then the key is reclaimed by a new record", func() {
				rec, replayed, err := svc.AddServiceRecord(ctx, "submit-3", input(other.ID, epoch, 30, 5, 4))
				So(err, ShouldBeNil)
				So(replayed, ShouldBeFalse)
				So(rec.TechnicianID, ShouldEqual, other.ID)
			})
		})
	})
}

func TestService_DedupeSize(t *testing.T) {
	Convey("Given keyed submissions beyond a small key window", t, func() {
		ctx := context.Background()
		submit := func(svc *service.Service) bool {
			tech, err := svc.AddTechnician(ctx, "Victor Santos")
			So(err, ShouldBeNil)
			for _, key := range []string{"k1", "k2", "k3"} {
				_, _, err := svc.AddServiceRecord(ctx, key, input(tech.ID, epoch, 30, 5, 4))
				So(err, ShouldBeNil)
			}
			_, replayed, err := svc.AddServiceRecord(ctx, "k1", input(tech.ID, epoch, 30, 5, 4))
			So(err, ShouldBeNil)
			return replayed
		}

		Convey("When two keys are kept the oldest is forgotten", func() {
			svc := newStarted(service.WithDedupeSize(2))
			defer svc.Stop(ctx)
			So(submit(svc), ShouldBeFalse)
		})

		Convey("When the size is zero every key is kept", func() {
			svc := newStarted(service.WithDedupeSize(2), service.WithDedupeSize(0))
			defer svc.Stop(ctx)
			So(submit(svc), ShouldBeTrue)
		})

		Convey("When the size is negative the previous size stays", func() {
			svc := newStarted(service.WithDedupeSize(2), service.WithDedupeSize(-1))
			defer svc.Stop(ctx)
			So(submit(svc), ShouldBeFalse)
		})
	})
}

func TestService_RankingsAndOverview(t *testing.T) {
	Convey("Given technicians with different records", t, func() {
		ctx := context.Background()
		svc := newStarted()
		defer svc.Stop(ctx)

		a, _ := svc.AddTechnician(ctx, "Felipe Lopes")
		b, _ := svc.AddTechnician(ctx, "Matheus Carvalho")
		_, _ = svc.AddTechnician(ctx, "Matheus Medina")
		for i := 0; i < 3; i++ {
			_, _, err := svc.AddServiceRecord(ctx, "", input(a.ID, epoch, 40, 10, 3))
			So(err, ShouldBeNil)
		}
		_, _, err := svc.AddServiceRecord(ctx, "", input(b.ID, epoch, 20, 4, 5))
		So(err, ShouldBeNil)

		Convey("When ranked by the default key", func() {
			out, err := svc.Rankings(ctx, ranking.Query{})
			So(err, ShouldBeNil)

			Convey("Then the busiest technician is first and ranks are numbered", func() {
				So(len(out), ShouldEqual, 3)
				So(out[0].ID, ShouldEqual, a.ID)
				So(out[0].Rank, ShouldEqual, 1)
				So(out[2].Rank, ShouldEqual, 3)
			})
		})

		Convey("When ranked by rating with a search", func() {
			out, err := svc.Rankings(ctx, ranking.Query{Sort: model.SortByRating, Search: "matheus"})
			So(err, ShouldBeNil)
			So(len(out), ShouldEqual, 2)
			So(out[0].ID, ShouldEqual, b.ID)
		})

		Convey("When the overview is computed", func() {
			ov, err := svc.Overview(ctx, nil)
			So(err, ShouldBeNil)

			Convey("Then averages only count active technicians", func() {
				So(ov.TotalCalls, ShouldEqual, 4)
				So(ov.AvgServiceTime, ShouldEqual, 30)
				So(ov.AvgFirstResponseTime, ShouldEqual, 7)
				So(ov.AvgRating, ShouldEqual, 4)
			})
		})

		Convey("When the overview window holds nothing", func() {
			w := &model.DateWindow{Start: epoch.AddDate(1, 0, 0), End: epoch.AddDate(1, 0, 1)}
			ov, err := svc.Overview(ctx, w)
			So(err, ShouldBeNil)
			So(ov, ShouldResemble, model.Metrics{})
		})
	})
}
