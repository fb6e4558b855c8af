package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/domain/model"
)

type storeFactory func(t *testing.T, clock func() time.Time) Store

func memoryFactory(t *testing.T, clock func() time.Time) Store {
	t.Helper()
	return NewMemoryStore(WithMemoryClock(clock), WithLockStripes(16))
}

func sqliteFactory(t *testing.T, clock func() time.Time) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := OpenSQLite(dsn, WithGormClock(clock), WithMaxRetries(64))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

func addPoints(n int64) UpdateFunc {
	return func(acc *model.Account) error {
		acc.TotalPoints += n
		acc.TasksCompleted++
		return nil
	}
}

func TestMemoryStore(t *testing.T) { runStoreContract(t, memoryFactory) }
func TestSQLiteStore(t *testing.T) { runStoreContract(t, sqliteFactory) }
func TestMemoryStoreConcurrency(t *testing.T) { runConcurrency(t, memoryFactory, 64, 50) }
func TestSQLiteStoreConcurrency(t *testing.T) { runConcurrency(t, sqliteFactory, 16, 10) }

func runStoreContract(t *testing.T, factory storeFactory) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given an empty store", t, func() {
		s := factory(t, steppingClock(base))

		Convey("When an unknown account is read", func() {
			_, err := s.GetAccount(ctx, "ghost")

			Convey("Then it is not found", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the first update arrives for a user", func() {
			acc, err := s.UpdateAccount(ctx, "alice", addPoints(60))

			Convey("Then the account is created and updated", func() {
				So(err, ShouldBeNil)
				So(acc.UserID, ShouldEqual, "alice")
				So(acc.TotalPoints, ShouldEqual, 60)
				So(acc.TasksCompleted, ShouldEqual, 1)
				So(acc.CreatedAt.IsZero(), ShouldBeFalse)

				got, err := s.GetAccount(ctx, "alice")
				So(err, ShouldBeNil)
				So(got.TotalPoints, ShouldEqual, 60)
				n, err := s.CountAccounts(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})

			Convey("And a failing update leaves it untouched", func() {
				boom := errors.New("boom")
				_, err := s.UpdateAccount(ctx, "alice", func(acc *model.Account) error {
					acc.TotalPoints += 1000
					return boom
				})
				So(errors.Is(err, boom), ShouldBeTrue)
				got, _ := s.GetAccount(ctx, "alice")
				So(got.TotalPoints, ShouldEqual, 60)
			})

			Convey("And decreasing counters is refused", func() {
				_, err := s.UpdateAccount(ctx, "alice", func(acc *model.Account) error {
					acc.TotalPoints -= 10
					return nil
				})
				So(errors.Is(err, ErrCounterDecrease), ShouldBeTrue)
			})
		})

		Convey("When accounts are created explicitly", func() {
			_, err := s.CreateAccount(ctx, model.Account{UserID: "bob", Username: "Bob", Email: "bob@example.com", TotalPoints: 20})
			So(err, ShouldBeNil)

			Convey("Then duplicate ids and emails are rejected", func() {
				_, err := s.CreateAccount(ctx, model.Account{UserID: "bob"})
				So(errors.Is(err, ErrAlreadyExists), ShouldBeTrue)
				_, err = s.CreateAccount(ctx, model.Account{UserID: "bobby", Email: "BOB@example.com"})
				So(errors.Is(err, ErrAlreadyExists), ShouldBeTrue)
			})

			Convey("And later updates keep the profile", func() {
				acc, err := s.UpdateAccount(ctx, "bob", addPoints(10))
				So(err, ShouldBeNil)
				So(acc.Username, ShouldEqual, "Bob")
				So(acc.Email, ShouldEqual, "bob@example.com")
				So(acc.TotalPoints, ShouldEqual, 30)
			})
		})

		Convey("When ranking accounts with tied totals", func() {
			_, _ = s.UpdateAccount(ctx, "first", addPoints(50))
			_, _ = s.UpdateAccount(ctx, "third", addPoints(30))
			_, _ = s.UpdateAccount(ctx, "second", addPoints(50))

			Convey("Then ties break by creation order", func() {
				top, err := s.TopAccounts(ctx, 10)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 3)
				So(top[0].UserID, ShouldEqual, "first")
				So(top[1].UserID, ShouldEqual, "second")
				So(top[2].UserID, ShouldEqual, "third")
			})

			Convey("And strictly-greater counts drive competition ranks", func() {
				above50, err := s.CountAbove(ctx, 50)
				So(err, ShouldBeNil)
				So(above50, ShouldEqual, 0)
				above30, err := s.CountAbove(ctx, 30)
				So(err, ShouldBeNil)
				So(above30, ShouldEqual, 2)
			})

			Convey("And an invalid limit is rejected", func() {
				_, err := s.TopAccounts(ctx, 0)
				So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
			})

			Convey("And totals can be windowed by creation time", func() {
				all, err := s.SumAccounts(ctx, AccountFilter{})
				So(err, ShouldBeNil)
				So(all.Accounts, ShouldEqual, 3)
				So(all.TotalPoints, ShouldEqual, 130)
				So(all.TasksCompleted, ShouldEqual, 3)

				first, _ := s.GetAccount(ctx, "first")
				from := first.CreatedAt.Add(time.Millisecond)
				later, err := s.SumAccounts(ctx, AccountFilter{CreatedFrom: &from})
				So(err, ShouldBeNil)
				So(later.Accounts, ShouldEqual, 2)
				So(later.TotalPoints, ShouldEqual, 80)
			})
		})

		Convey("When activities are appended", func() {
			day := base.Add(-48 * time.Hour)
			recs := []model.ActivityRecord{
				{ID: "a1", UserID: "alice", ActivityType: model.ActivityLearning, DifficultyLevel: model.DifficultyEasy, Points: 10, Timestamp: day},
				{ID: "a2", UserID: "alice", ActivityType: model.ActivityProject, DifficultyLevel: model.DifficultyHard, Points: 100, Timestamp: day.Add(time.Hour), Metadata: map[string]any{"repo": "tally"}},
				{ID: "a3", UserID: "alice", ActivityType: model.ActivityLearning, DifficultyLevel: model.DifficultyEasy, Points: 10, Timestamp: day.Add(24 * time.Hour)},
				{ID: "b1", UserID: "bob", ActivityType: model.ActivityMilestone, DifficultyLevel: model.DifficultyExpert, Points: 500, Timestamp: day},
			}
			for _, r := range recs {
				So(s.AppendActivity(ctx, r), ShouldBeNil)
			}

			Convey("Then a user's records come back newest first", func() {
				got, err := s.FindActivities(ctx, ActivityQuery{UserID: "alice"})
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 3)
				So(got[0].ID, ShouldEqual, "a3")
				So(got[1].ID, ShouldEqual, "a2")
				So(got[1].Metadata["repo"], ShouldEqual, "tally")
				So(got[2].ID, ShouldEqual, "a1")
			})

			Convey("And filters, paging and counts agree", func() {
				q := ActivityQuery{UserID: "alice", ActivityType: model.ActivityLearning}
				n, err := s.CountActivities(ctx, q)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)

				q.Offset, q.Limit = 1, 1
				page, err := s.FindActivities(ctx, q)
				So(err, ShouldBeNil)
				So(len(page), ShouldEqual, 1)
				So(page[0].ID, ShouldEqual, "a1")

				q.Offset = 5
				page, err = s.FindActivities(ctx, q)
				So(err, ShouldBeNil)
				So(len(page), ShouldEqual, 0)

				from, to := day.Add(30*time.Minute), day.Add(2*time.Hour)
				ranged, err := s.FindActivities(ctx, ActivityQuery{UserID: "alice", From: &from, To: &to})
				So(err, ShouldBeNil)
				So(len(ranged), ShouldEqual, 1)
				So(ranged[0].ID, ShouldEqual, "a2")
			})

			Convey("And grouping sums points per type and difficulty", func() {
				groups, err := s.GroupActivities(ctx, ActivityQuery{UserID: "alice"})
				So(err, ShouldBeNil)
				So(len(groups), ShouldEqual, 2)
				So(groups[0].ActivityType, ShouldEqual, model.ActivityLearning)
				So(groups[0].Count, ShouldEqual, 2)
				So(groups[0].Points, ShouldEqual, 20)
				So(groups[1].ActivityType, ShouldEqual, model.ActivityProject)
				So(groups[1].Points, ShouldEqual, 100)
			})

			Convey("And a bulk delete clears both ledgers", func() {
				_, _ = s.UpdateAccount(ctx, "alice", addPoints(5))
				res, err := s.DeleteAll(ctx)
				So(err, ShouldBeNil)
				So(res.Accounts, ShouldEqual, 1)
				So(res.Activities, ShouldEqual, 4)

				n, _ := s.CountActivities(ctx, ActivityQuery{})
				So(n, ShouldEqual, 0)
				accounts, _ := s.CountAccounts(ctx)
				So(accounts, ShouldEqual, 0)
			})
		})
	})
}

func runConcurrency(t *testing.T, factory storeFactory, workers, perWorker int) {
	ctx := context.Background()

	Convey("Given concurrent updates to one account", t, func() {
		s := factory(t, time.Now)
		var wg sync.WaitGroup
		errs := make(chan error, workers*perWorker)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					if _, err := s.UpdateAccount(ctx, "hot", addPoints(3)); err != nil {
						errs <- err
					}
				}
			}()
		}
		wg.Wait()
		close(errs)

		Convey("Then no update is lost", func() {
			for err := range errs {
				So(err, ShouldBeNil)
			}
			acc, err := s.GetAccount(ctx, "hot")
			So(err, ShouldBeNil)
			So(acc.TasksCompleted, ShouldEqual, workers*perWorker)
			So(acc.TotalPoints, ShouldEqual, 3*workers*perWorker)
		})
	})
}
