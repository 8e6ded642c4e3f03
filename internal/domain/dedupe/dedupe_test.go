package dedupe_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/techrank/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When created with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it starts empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When a key is recorded for the first time", func() {
			d := dedupe.NewInMemoryDeduper()
			got, seen := d.SeenAndRecord(ctx, "key-1", "rec-1")

			Convey("Then it reports a new key and keeps the value", func() {
				So(seen, ShouldBeFalse)
				So(got, ShouldEqual, "rec-1")
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And the same key is submitted again with another value", func() {
				got, seen := d.SeenAndRecord(ctx, "key-1", "rec-2")

				Convey("Then the first value is returned", func() {
					So(seen, ShouldBeTrue)
					So(got, ShouldEqual, "rec-1")
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When a key is unrecorded", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "key-1", "rec-1")
			d.Unrecord(ctx, "key-1")

			Convey("Then it can be claimed again", func() {
				So(d.Size(), ShouldEqual, 0)
				got, seen := d.SeenAndRecord(ctx, "key-1", "rec-2")
				So(seen, ShouldBeFalse)
				So(got, ShouldEqual, "rec-2")
			})
		})

		Convey("When an unknown key is unrecorded", func() {
			d := dedupe.NewInMemoryDeduper()
			d.Unrecord(ctx, "nonexistent")
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When the deduper is reset", func() {
			d := dedupe.NewInMemoryDeduper()
			for i := 0; i < 5; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("key-%d", i), "v")
			}
			d.Reset(ctx)

			Convey("Then every key is forgotten", func() {
				So(d.Size(), ShouldEqual, 0)
				_, seen := d.SeenAndRecord(ctx, "key-0", "v")
				So(seen, ShouldBeFalse)
			})
		})

		Convey("When bounded and at capacity", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, k := range []string{"key-1", "key-2", "key-3"} {
				_, seen := d.SeenAndRecord(ctx, k, "v-"+k)
				So(seen, ShouldBeFalse)
			}
			_, seen := d.SeenAndRecord(ctx, "key-4", "v-key-4")

			Convey("Then the oldest key is evicted", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)

				got, seen := d.SeenAndRecord(ctx, "key-4", "other")
				So(seen, ShouldBeTrue)
				So(got, ShouldEqual, "v-key-4")

				got, seen = d.SeenAndRecord(ctx, "key-3", "other")
				So(seen, ShouldBeTrue)
				So(got, ShouldEqual, "v-key-3")

				// key-1 is gone; claiming it again evicts key-2.
				_, seen = d.SeenAndRecord(ctx, "key-1", "again")
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When unrecording the middle of the list", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			d.SeenAndRecord(ctx, "a", "1")
			d.SeenAndRecord(ctx, "b", "2")
			d.SeenAndRecord(ctx, "c", "3")
			d.Unrecord(ctx, "b")
			d.SeenAndRecord(ctx, "d", "4")
			d.SeenAndRecord(ctx, "e", "5")

			Convey("Then eviction order still follows insertion", func() {
				So(d.Size(), ShouldEqual, 3)
				_, seen := d.SeenAndRecord(ctx, "c", "x")
				So(seen, ShouldBeTrue)
				_, seen = d.SeenAndRecord(ctx, "e", "x")
				So(seen, ShouldBeTrue)
			})
		})

		Convey("When unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			const n = 1000
			for i := 0; i < n; i++ {
				_, seen := d.SeenAndRecord(ctx, fmt.Sprintf("key-%d", i), "v")
				So(seen, ShouldBeFalse)
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, int64(n))
				_, seen := d.SeenAndRecord(ctx, "key-0", "v")
				So(seen, ShouldBeTrue)
			})
		})

		Convey("When keys are unusual", func() {
			d := dedupe.NewInMemoryDeduper()
			long := strings.Repeat("a", 10000)

			_, seen := d.SeenAndRecord(ctx, long, "v")
			So(seen, ShouldBeFalse)
			_, seen = d.SeenAndRecord(ctx, long, "v")
			So(seen, ShouldBeTrue)
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper shared by many goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		ctx := context.Background()

		Convey("When they race on the same key", func() {
			var wg sync.WaitGroup
			var winners atomic.Int32
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if _, seen := d.SeenAndRecord(ctx, "shared", fmt.Sprintf("v-%d", i)); !seen {
						winners.Add(1)
					}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one claim wins", func() {
				So(winners.Load(), ShouldEqual, 1)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When they record distinct keys", func() {
			var wg sync.WaitGroup
			for g := 0; g < 10; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for j := 0; j < 100; j++ {
						d.SeenAndRecord(ctx, fmt.Sprintf("key-%d-%d", g, j), "v")
					}
				}(g)
			}
			wg.Wait()

			So(d.Size(), ShouldEqual, 1000)
		})
	})
}
