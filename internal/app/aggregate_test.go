package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/tally/internal/app"
)

func TestAggregation(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	Convey("Given three seeded users and one active newcomer", t, func() {
		clock := newManualClock(start)
		svc := startService(t, service.WithClock(clock.Now), service.WithLeaderboardLimit(50))

		for _, u := range []service.NewUser{
			{UserID: "ana", Username: "Ana", Email: "ana@example.com", InitialPoints: 50},
			{UserID: "ben", Username: "Ben", Email: "ben@example.com", InitialPoints: 50},
			{UserID: "cai", Username: "Cai", Email: "cai@example.com", InitialPoints: 30},
		} {
			_, err := svc.CreateUser(ctx, u)
			So(err, ShouldBeNil)
		}

		Convey("When the leaderboard is read", func() {
			top, err := svc.Leaderboard(ctx, 10)

			Convey("Then equal totals share a rank and the next one skips", func() {
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 3)
				So(top[0].UserID, ShouldEqual, "ana")
				So(top[0].Rank, ShouldEqual, 1)
				So(top[1].UserID, ShouldEqual, "ben")
				So(top[1].Rank, ShouldEqual, 1)
				So(top[2].Rank, ShouldEqual, 3)

				entry, err := svc.Rank(ctx, "cai")
				So(err, ShouldBeNil)
				So(entry.Rank, ShouldEqual, 3)
				So(entry.Username, ShouldEqual, "Cai")
			})

			Convey("And limits outside the allowed range are invalid", func() {
				_, err := svc.Leaderboard(ctx, 0)
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
				_, err = svc.Leaderboard(ctx, 51)
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})

			Convey("And unknown users have no rank", func() {
				_, err := svc.Rank(ctx, "zed")
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the aggregate summaries are read", func() {
			agg, err := svc.AggregateSummary(ctx, 2)
			So(err, ShouldBeNil)
			top, err := svc.TopUsersSummary(ctx, 0)
			So(err, ShouldBeNil)

			Convey("Then totals and averages cover every account", func() {
				So(agg.TotalUsers, ShouldEqual, 3)
				So(agg.TotalPoints, ShouldEqual, 130)
				So(agg.AveragePoints, ShouldEqual, 43.33)
				So(len(agg.TopUsers), ShouldEqual, 2)
				So(top.TotalUsers, ShouldEqual, 3)
				So(len(top.TopUsers), ShouldEqual, 3)
			})
		})

		Convey("When a newcomer completes tasks ten days later", func() {
			clock.Advance(10 * 24 * time.Hour)
			for i := 0; i < 6; i++ {
				_, err := svc.RecordTaskEvent(ctx, "dee", "task")
				So(err, ShouldBeNil)
			}
			_, err := svc.RecordTaskEvent(ctx, "dee", "highPriorityTask")
			So(err, ShouldBeNil)

			Convey("Then the detailed view explains every point", func() {
				det, err := svc.UserDetails(ctx, "dee")
				So(err, ShouldBeNil)
				So(det.TotalPoints, ShouldEqual, 310)
				So(det.Ranking, ShouldEqual, 1)
				So(det.CenturyBonusGranted, ShouldBeTrue)
				So(det.CenturyBonusPoints, ShouldEqual, 100)
				So(det.TaskTypes[0].TaskType, ShouldEqual, "task")
				So(det.TaskTypes[0].BasePoints, ShouldEqual, 60)
				So(det.TaskTypes[0].MilestonesReached, ShouldEqual, 2)
				So(det.TaskTypes[0].MilestoneBonus, ShouldEqual, 100)
				So(det.TaskTypes[1].TotalEarnedPoints, ShouldEqual, 50)
				So(det.TaskTypes[2].Completed, ShouldEqual, 0)
			})

			Convey("And the daily window only counts the newcomer", func() {
				day, err := svc.AggregateDetails(ctx, service.AccountWindow{Timeframe: "day"})
				So(err, ShouldBeNil)
				So(day.TotalUsers, ShouldEqual, 1)
				So(day.TotalPoints, ShouldEqual, 310)
				So(day.ActivitySummary.TasksCompleted, ShouldEqual, 6)
				So(day.ActivitySummary.HighPriorityTasksCompleted, ShouldEqual, 1)

				all, err := svc.AggregateDetails(ctx, service.AccountWindow{})
				So(err, ShouldBeNil)
				So(all.TotalUsers, ShouldEqual, 4)
				So(all.From, ShouldBeNil)
			})

			Convey("And an unknown timeframe is invalid", func() {
				_, err := svc.AggregateDetails(ctx, service.AccountWindow{Timeframe: "fortnight"})
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When all data is deleted", func() {
			_, err := svc.RecordActivity(ctx, service.ActivityInput{UserID: "ana", ActivityType: "learning"})
			So(err, ShouldBeNil)
			res, err := svc.DeleteAll(ctx)

			Convey("Then both ledgers are empty", func() {
				So(err, ShouldBeNil)
				So(res.AccountsDeleted, ShouldEqual, 3)
				So(res.ActivitiesDeleted, ShouldEqual, 1)
				top, err := svc.Leaderboard(ctx, 10)
				So(err, ShouldBeNil)
				So(top, ShouldBeEmpty)
				agg, err := svc.AggregateSummary(ctx, 0)
				So(err, ShouldBeNil)
				So(agg.AveragePoints, ShouldEqual, 0)
			})
		})
	})
}
