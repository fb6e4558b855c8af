package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/adapters/http/api"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/policy"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

// newServer serves the API over a fresh in-memory service.
func newServer(t *testing.T, opts ...api.ServerOption) *httptest.Server {
	t.Helper()
	svc := service.New()
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, opts...).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv
}

func testConfig(url string) *Config {
	return &Config{
		BaseURL:        url,
		Users:          8,
		EventsPerUser:  25,
		Workers:        6,
		Timeout:        5 * time.Second,
		TopN:           8,
		DuplicateEvery: 7,
		MaxRetries:     20,
		Seed:           42,
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running server", t, func() {
		srv := newServer(t)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		Convey("When a load run completes", func() {
			cfg := testConfig(srv.URL)
			cfg.OutputFile = filepath.Join(t.TempDir(), "out", "events.json")
			report, err := Run(ctx, cfg, nil)

			Convey("Then every user matches the projected totals", func() {
				So(err, ShouldBeNil)
				So(report.EventsGenerated, ShouldEqual, 200)
				So(report.EventsSubmitted, ShouldEqual, 200+200/7)
				So(report.EventsAccepted, ShouldEqual, 200)
				So(report.EventsDuplicate, ShouldEqual, 200/7)
				So(report.EventsFailed, ShouldEqual, 0)
				So(report.UsersVerified, ShouldEqual, 8)
				So(report.UsersMismatched, ShouldEqual, 0)
				So(report.LeaderboardSize, ShouldEqual, 8)
			})

			Convey("And the events were saved", func() {
				raw, err := os.ReadFile(cfg.OutputFile)
				So(err, ShouldBeNil)
				var events []Event
				So(json.Unmarshal(raw, &events), ShouldBeNil)
				So(len(events), ShouldEqual, 200)
			})
		})

		Convey("When the server applies a different task table", func() {
			tasks := policy.NewTaskPolicy(policy.WithCenturyBonus(100, 999))
			_, err := Run(ctx, testConfig(srv.URL), tasks)

			Convey("Then verification fails", func() {
				So(errors.Is(err, ErrVerification), ShouldBeTrue)
			})
		})
	})

	Convey("Given a rate limited server", t, func() {
		srv := newServer(t, api.WithRateLimiter(api.NewRateLimiter(200, 5)))
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		Convey("When a load run completes", func() {
			cfg := testConfig(srv.URL)
			cfg.MaxRetries = 1000
			report, err := Run(ctx, cfg, nil)

			Convey("Then throttled events are retried until applied", func() {
				So(err, ShouldBeNil)
				So(report.EventsAccepted, ShouldEqual, 200)
				So(report.EventsRetried, ShouldBeGreaterThan, 0)
			})
		})
	})

	Convey("Given an unreachable server", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		Convey("Then the run stops at the health check", func() {
			_, err := Run(context.Background(), testConfig(srv.URL), nil)
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		})
	})

	Convey("Given an invalid config", t, func() {
		cfg := testConfig("http://localhost:1")
		cfg.Workers = 0

		Convey("Then the run is refused", func() {
			_, err := Run(context.Background(), cfg, nil)
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestGeneratePlan(t *testing.T) {
	Convey("Given a seeded config", t, func() {
		cfg := testConfig("http://localhost")
		plan := generatePlan(context.Background(), cfg)

		Convey("Then every user gets the configured number of events", func() {
			So(len(plan.Events), ShouldEqual, cfg.Users*cfg.EventsPerUser)
			So(len(plan.Users()), ShouldEqual, cfg.Users)
			for _, counts := range plan.Expected {
				var n int64
				for _, c := range counts {
					n += c
				}
				So(n, ShouldEqual, cfg.EventsPerUser)
			}
		})

		Convey("Then event ids are unique", func() {
			seen := make(map[string]struct{}, len(plan.Events))
			for _, e := range plan.Events {
				seen[e.EventID] = struct{}{}
			}
			So(len(seen), ShouldEqual, len(plan.Events))
		})
	})
}

func TestCompareSummary(t *testing.T) {
	Convey("Given the default task policy", t, func() {
		tasks := policy.NewTaskPolicy()
		want := map[model.TaskType]int64{model.TaskRegular: 5}

		Convey("Then matching totals pass", func() {
			got := types.UserSummary{TotalPoints: 200, Progress: types.Progress{TasksCompleted: 5}}
			So(compareSummary(got, want, tasks), ShouldBeEmpty)
		})

		Convey("Then a wrong counter is reported", func() {
			got := types.UserSummary{TotalPoints: 200, Progress: types.Progress{TasksCompleted: 4}}
			So(compareSummary(got, want, tasks), ShouldContainSubstring, "tasksCompleted")
		})

		Convey("Then a wrong total is reported", func() {
			got := types.UserSummary{TotalPoints: 100, Progress: types.Progress{TasksCompleted: 5}}
			So(compareSummary(got, want, tasks), ShouldContainSubstring, "totalPoints 100, want 200")
		})
	})
}

func TestVerifyLeaderboard(t *testing.T) {
	Convey("Given leaderboards", t, func() {
		Convey("Then competition ranks pass", func() {
			So(verifyLeaderboard([]types.Entry{
				{Rank: 1, TotalPoints: 50}, {Rank: 1, TotalPoints: 50}, {Rank: 3, TotalPoints: 30},
			}), ShouldBeNil)
		})

		Convey("Then dense ranks fail", func() {
			So(verifyLeaderboard([]types.Entry{
				{Rank: 1, TotalPoints: 50}, {Rank: 1, TotalPoints: 50}, {Rank: 2, TotalPoints: 30},
			}), ShouldNotBeNil)
		})

		Convey("Then unsorted entries fail", func() {
			So(verifyLeaderboard([]types.Entry{
				{Rank: 1, TotalPoints: 30}, {Rank: 2, TotalPoints: 50},
			}), ShouldNotBeNil)
		})
	})
}

func TestShowHelp(t *testing.T) {
	Convey("Given the help text", t, func() {
		var buf bytes.Buffer
		ShowHelp(&buf)

		Convey("Then it documents the flags", func() {
			So(strings.Contains(buf.String(), "-users"), ShouldBeTrue)
			So(strings.Contains(buf.String(), "-dup"), ShouldBeTrue)
		})
	})
}
