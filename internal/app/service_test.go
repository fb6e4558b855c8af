package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init(logger.WithWriter(io.Discard))
	if err != nil {
		panic(err)
	}
}

// manualClock is a test clock that only moves when told to.
type manualClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newManualClock(start time.Time) *manualClock { return &manualClock{cur: start} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

// startService starts a service on a fresh in-memory store and stops it when
// the test ends.
func startService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func sqliteStore(t *testing.T, clock func() time.Time) repository.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := repository.OpenSQLite(dsn, repository.WithGormClock(clock), repository.WithMaxRetries(64))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.DefaultTop(), ShouldEqual, 10)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithDedupeSize(25_000),
			service.WithDefaultTop(3),
			service.WithPageLimit(20),
			service.WithStoreKind(service.StoreMemory),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
			So(svc.DefaultTop(), ShouldEqual, 3)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When it is queried before starting", func() {
			_, err := svc.RecordTaskEvent(ctx, "u1", "task")

			Convey("Then it refuses", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.SeenAndRecord(ctx, "k"), ShouldBeFalse)
			})
		})

		Convey("When starting the service", func() {
			err := svc.Start(ctx)
			defer svc.Stop()

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["totalAccounts"], ShouldEqual, 0)
			})

			Convey("And starting twice is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})

		Convey("When stopping a started service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				_, err := svc.Leaderboard(ctx, 10)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unknown store kind", t, func() {
		svc := service.New(service.WithStoreKind("cassandra"))

		Convey("Then Start reports a storage error", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrStorage), ShouldBeTrue)
		})
	})

	Convey("Given the sqlite backend on an in-memory database", t, func() {
		svc := service.New(
			service.WithStoreKind(service.StoreSQLite),
			service.WithSQLitePath(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("Then task events are persisted", func() {
			res, err := svc.RecordTaskEvent(context.Background(), "sql-user", "task")
			So(err, ShouldBeNil)
			So(res.TotalPoints, ShouldEqual, 60)
			So(svc.GetStats()["store"], ShouldEqual, service.StoreSQLite)
		})
	})
}

func TestService_SeenAndRecord(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService(t)
		ctx := context.Background()

		Convey("When checking a new idempotency key", func() {
			seen := svc.SeenAndRecord(ctx, "event-123")

			Convey("Then it should not have been seen before", func() {
				So(seen, ShouldBeFalse)
				So(svc.Size(), ShouldEqual, 1)
			})
		})

		Convey("When checking the same key again", func() {
			svc.SeenAndRecord(ctx, "event-456")
			seen := svc.SeenAndRecord(ctx, "event-456")

			Convey("Then it should have been seen before", func() {
				So(seen, ShouldBeTrue)
			})

			Convey("And unrecording it allows a retry", func() {
				svc.Unrecord(ctx, "event-456")
				So(svc.SeenAndRecord(ctx, "event-456"), ShouldBeFalse)
			})
		})

		Convey("When all data is deleted", func() {
			svc.SeenAndRecord(ctx, "event-789")
			_, err := svc.DeleteAll(ctx)
			So(err, ShouldBeNil)

			Convey("Then the keys are forgotten too", func() {
				So(svc.Size(), ShouldEqual, 0)
				So(svc.SeenAndRecord(ctx, "event-789"), ShouldBeFalse)
			})
		})
	})
}
