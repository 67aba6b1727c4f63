package repository_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	repository "github.com/craneyu/YILan-JJGAME/internal/adapters/repository"
	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStoreEvents(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		clock := now
		store := repository.NewMemoryStore(repository.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}))

		Convey("When creating an event", func() {
			e := model.Event{Name: "spring cup"}
			err := store.CreateEvent(ctx, &e)

			Convey("Then it gets an id, a pending status and a timestamp", func() {
				So(err, ShouldBeNil)
				So(e.ID, ShouldNotBeEmpty)
				So(e.Status, ShouldEqual, model.EventPending)
				So(e.CreatedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And it can be fetched back", func() {
				got, err := store.GetEvent(ctx, e.ID)
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "spring cup")
			})
		})

		Convey("When listing events", func() {
			first := model.Event{Name: "first"}
			second := model.Event{Name: "second"}
			closed := model.Event{Name: "closed", Status: model.EventClosed}
			So(store.CreateEvent(ctx, &first), ShouldBeNil)
			So(store.CreateEvent(ctx, &second), ShouldBeNil)
			So(store.CreateEvent(ctx, &closed), ShouldBeNil)

			Convey("Then they come back newest first", func() {
				events, err := store.ListEvents(ctx, false)
				So(err, ShouldBeNil)
				So(len(events), ShouldEqual, 3)
				So(events[0].Name, ShouldEqual, "closed")
				So(events[2].Name, ShouldEqual, "first")
			})

			Convey("And openOnly hides closed events", func() {
				events, err := store.ListEvents(ctx, true)
				So(err, ShouldBeNil)
				So(len(events), ShouldEqual, 2)
				for _, e := range events {
					So(e.Status, ShouldNotEqual, model.EventClosed)
				}
			})
		})

		Convey("When fetching a missing event", func() {
			_, err := store.GetEvent(ctx, "nope")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStoreTeams(t *testing.T) {
	Convey("Given a store with a three-team roster", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		teams := []*model.Team{
			{EventID: "ev1", Name: "alpha", Category: model.CategoryMale, Order: 1},
			{EventID: "ev1", Name: "beta", Category: model.CategoryFemale, Order: 2},
			{EventID: "ev1", Name: "gamma", Category: model.CategoryMixed, Order: 3},
		}
		for _, tm := range teams {
			So(store.CreateTeam(ctx, tm), ShouldBeNil)
		}

		Convey("When listing teams", func() {
			got, err := store.ListTeams(ctx, "ev1")

			Convey("Then they come back in display order", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 3)
				So(got[0].Name, ShouldEqual, "alpha")
				So(got[2].Name, ShouldEqual, "gamma")
			})
		})

		Convey("When walking by order", func() {
			next, err := store.NextTeamByOrder(ctx, "ev1", 1)
			So(err, ShouldBeNil)
			So(next.Name, ShouldEqual, "beta")

			Convey("Then past the last team ErrNotFound is returned", func() {
				_, err := store.NextTeamByOrder(ctx, "ev1", 3)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("And the first team is the lowest order", func() {
				first, err := store.FirstTeamByOrder(ctx, "ev1")
				So(err, ShouldBeNil)
				So(first.Name, ShouldEqual, "alpha")
			})
		})

		Convey("When an event has no teams", func() {
			_, err := store.FirstTeamByOrder(ctx, "empty")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestMemoryStoreScores(t *testing.T) {
	Convey("Given a score ledger", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		newScore := func(judge string, seat int) *model.Score {
			return &model.Score{
				EventID:  "ev1",
				TeamID:   "team1",
				Round:    1,
				ActionNo: "A1",
				JudgeID:  judge,
				Seat:     seat,
				Items:    model.ScoreItems{P1: 2, P2: 2, P3: 2, P4: 2},
			}
		}

		Convey("When a judge submits twice for the same action", func() {
			So(store.CreateScore(ctx, newScore("j1", 1)), ShouldBeNil)
			err := store.CreateScore(ctx, newScore("j1", 1))

			Convey("Then the second submission is rejected", func() {
				So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)
				count, _ := store.CountScores(ctx, "ev1", "team1", 1, "A1")
				So(count, ShouldEqual, 1)
			})
		})

		Convey("When the same submission races from many goroutines", func() {
			var stored, rejected int64
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := store.CreateScore(ctx, newScore("j2", 2)); err != nil {
						atomic.AddInt64(&rejected, 1)
					} else {
						atomic.AddInt64(&stored, 1)
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one record wins", func() {
				So(stored, ShouldEqual, 1)
				So(rejected, ShouldEqual, 15)
			})
		})

		Convey("When five judges submit", func() {
			for seat := 1; seat <= 5; seat++ {
				sc := newScore("judge-"+string(rune('0'+seat)), seat)
				So(store.CreateScore(ctx, sc), ShouldBeNil)
			}

			Convey("Then the count and listing reflect all five", func() {
				count, err := store.CountScores(ctx, "ev1", "team1", 1, "A1")
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 5)

				scores, err := store.ListScores(ctx, "ev1", "team1", 1, "A1")
				So(err, ShouldBeNil)
				So(len(scores), ShouldEqual, 5)
				So(scores[0].Seat, ShouldEqual, 1)
				So(scores[4].Seat, ShouldEqual, 5)
			})

			Convey("And a judge can list their own submissions", func() {
				mine, err := store.ListScoresByJudge(ctx, "ev1", "team1", 1, "judge-3")
				So(err, ShouldBeNil)
				So(len(mine), ShouldEqual, 1)
				So(mine[0].Seat, ShouldEqual, 3)
			})
		})
	})
}

func TestMemoryStoreVRScores(t *testing.T) {
	Convey("Given a variety score slot", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		vr := model.VRScore{EventID: "ev1", TeamID: "team1", Round: 2, ThrowVariety: 1, GroundVariety: 2}
		So(store.PutVRScore(ctx, vr), ShouldBeNil)

		Convey("When resubmitting for the same key", func() {
			vr.ThrowVariety = 2
			So(store.PutVRScore(ctx, vr), ShouldBeNil)

			Convey("Then the record is replaced, not duplicated", func() {
				got, err := store.GetVRScore(ctx, "ev1", "team1", 2)
				So(err, ShouldBeNil)
				So(got.ThrowVariety, ShouldEqual, 2)

				all, err := store.ListVRScores(ctx, "ev1")
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 1)
			})
		})

		Convey("When no score exists for the key", func() {
			_, err := store.GetVRScore(ctx, "ev1", "team1", 3)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestMemoryStoreFlowState(t *testing.T) {
	Convey("Given a new event's flow state", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		st, err := store.CreateFlowState(ctx, "ev1")
		So(err, ShouldBeNil)

		Convey("Then it starts idle at round one", func() {
			So(st.Round, ShouldEqual, model.MinRound)
			So(st.Status, ShouldEqual, model.StatusIdle)
			So(st.Open, ShouldBeFalse)
		})

		Convey("When creating it a second time", func() {
			_, err := store.CreateFlowState(ctx, "ev1")
			So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)
		})

		Convey("When saving with the current version", func() {
			st.Status = model.StatusActionOpen
			st.Open = true
			saved, err := store.SaveFlowState(ctx, st)

			Convey("Then the version is bumped", func() {
				So(err, ShouldBeNil)
				So(saved.Version, ShouldEqual, st.Version+1)
				got, _ := store.GetFlowState(ctx, "ev1")
				So(got.Status, ShouldEqual, model.StatusActionOpen)
			})

			Convey("And a writer holding the old version loses", func() {
				stale := st
				stale.Status = model.StatusSeriesComplete
				_, err := store.SaveFlowState(ctx, stale)
				So(errors.Is(err, repository.ErrStaleState), ShouldBeTrue)

				got, _ := store.GetFlowState(ctx, "ev1")
				So(got.Status, ShouldEqual, model.StatusActionOpen)
			})
		})
	})
}
