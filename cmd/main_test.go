package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	app "github.com/okian/techrank/internal/app"
	"github.com/okian/techrank/internal/config"
	"github.com/okian/techrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func TestServiceOptions(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		log := logger.Get()

		convey.Convey("When building service options", func() {
			opts, err := serviceOptions(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the service starts on the memory store with seeded technicians", func() {
				svc := app.New(opts...)
				convey.So(svc.Start(ctx), convey.ShouldBeNil)
				defer func() { _ = svc.Stop(ctx) }()

				stats, err := svc.GetStats(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(stats.Started, convey.ShouldBeTrue)
				convey.So(stats.Technicians, convey.ShouldEqual, len(app.DefaultTechnicians))
				convey.So(stats.Ingest, convey.ShouldBeNil)
			})
		})

		convey.Convey("When seeding is disabled", func() {
			cfg.SeedDefaults = false
			opts, err := serviceOptions(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)

			svc := app.New(opts...)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			convey.Convey("Then no technicians exist", func() {
				stats, err := svc.GetStats(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(stats.Technicians, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When an archive bucket is configured", func() {
			cfg.Archive.Bucket = "techrank-exports"
			cfg.Archive.Endpoint = "http://localhost:9000"
			cfg.Archive.AccessKeyID = "key"
			cfg.Archive.SecretAccessKey = "secret"

			convey.Convey("Then the archiver is built without contacting the endpoint", func() {
				opts, err := serviceOptions(ctx, cfg, log)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(opts), convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When an unknown store driver is configured", func() {
			cfg.Store.Driver = "cassandra"
			opts, err := serviceOptions(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then starting the service fails", func() {
				svc := app.New(opts...)
				convey.So(svc.Start(ctx), convey.ShouldNotBeNil)
			})
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given a started service behind the mux", t, func() {
		ctx := context.Background()
		svc := app.New(app.WithSeedTechnicians(app.DefaultTechnicians))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := newMux(ctx, svc, logger.Get())

		for _, path := range []string{"/healthz", "/stats", "/technicians", "/rankings", "/overview", "/openapi.yaml", "/api-docs"} {
			convey.Convey("Then GET "+path+" answers 200", func() {
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			})
		}
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		convey.Convey("When the system updater runs until its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})

		convey.Convey("When the service updater runs against a stopped service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			convey.So(func() { startServiceMetricsUpdater(ctx, app.New()) }, convey.ShouldNotPanic)
		})

		convey.Convey("When system metrics are sampled directly", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}
