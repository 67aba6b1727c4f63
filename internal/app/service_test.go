package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/craneyu/YILan-JJGAME/internal/app"
	"github.com/craneyu/YILan-JJGAME/internal/domain/flow"
	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
	"github.com/craneyu/YILan-JJGAME/pkg/logger"
	"github.com/craneyu/YILan-JJGAME/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// subscriberGauge reads the per-event subscriber gauge off the
// metrics registry.
func subscriberGauge(t *testing.T, eventID string) float64 {
	t.Helper()
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != "jjgame_scoring_subscribers" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "event_id" && l.GetValue() == eventID {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

// pollFor retries cond until it holds or a short deadline passes.
func pollFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func startService(t *testing.T) *service.Service {
	t.Helper()
	svc := service.New(service.WithStreamBuffer(8))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()

		Convey("When starting twice", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()

			Convey("Then stopping twice is also safe", func() {
				svc.Stop()
			})
		})
	})
}

func TestServiceEventAdministration(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := startService(t)

		Convey("When creating an event", func() {
			event, err := svc.CreateEvent(ctx, service.CreateEventInput{Name: "winter cup"})

			Convey("Then the flow state exists alongside it", func() {
				So(err, ShouldBeNil)
				st, err := svc.FlowState(ctx, event.ID)
				So(err, ShouldBeNil)
				So(st.Status, ShouldEqual, model.StatusIdle)
				So(st.Round, ShouldEqual, model.MinRound)
			})

			Convey("And a partial update patches only given fields", func() {
				status := model.EventActive
				venue := "north hall"
				updated, err := svc.UpdateEvent(ctx, event.ID, service.UpdateEventInput{
					Status: &status,
					Venue:  &venue,
				})
				So(err, ShouldBeNil)
				So(updated.Status, ShouldEqual, model.EventActive)
				So(updated.Venue, ShouldEqual, "north hall")
				So(updated.Name, ShouldEqual, "winter cup")
			})

			Convey("And an unknown status is rejected", func() {
				bogus := model.EventStatus("archived")
				_, err := svc.UpdateEvent(ctx, event.ID, service.UpdateEventInput{Status: &bogus})
				So(errors.Is(err, flow.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When creating an event without a name", func() {
			_, err := svc.CreateEvent(ctx, service.CreateEventInput{})
			So(errors.Is(err, flow.ErrValidation), ShouldBeTrue)
		})

		Convey("When adding a team to a missing event", func() {
			_, err := svc.CreateTeam(ctx, service.CreateTeamInput{
				EventID:  "missing",
				Name:     "duo",
				Category: model.CategoryMale,
			})
			So(errors.Is(err, flow.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestServiceSummary(t *testing.T) {
	Convey("Given an event mid-action", t, func() {
		ctx := context.Background()
		svc := startService(t)

		event, err := svc.CreateEvent(ctx, service.CreateEventInput{Name: "cup"})
		So(err, ShouldBeNil)
		team, err := svc.CreateTeam(ctx, service.CreateTeamInput{
			EventID:  event.ID,
			Name:     "duo",
			Category: model.CategoryFemale,
			Order:    1,
		})
		So(err, ShouldBeNil)

		_, err = svc.OpenAction(ctx, event.ID, team.ID, 1, "A1")
		So(err, ShouldBeNil)

		submit := func(judgeID string, seat int) {
			_, _, err := svc.SubmitScore(ctx, flow.SubmitScoreInput{
				EventID:  event.ID,
				TeamID:   team.ID,
				Round:    1,
				ActionNo: "A1",
				JudgeID:  judgeID,
				Seat:     seat,
				Items:    model.ScoreItems{P1: 1, P2: 1, P3: 1, P4: 1},
			})
			So(err, ShouldBeNil)
		}
		submit("j1", 1)
		submit("j2", 2)

		Convey("When summarizing", func() {
			sum, err := svc.Summarize(ctx, event.ID)

			Convey("Then the open action's submitted seats are listed", func() {
				So(err, ShouldBeNil)
				So(sum.Flow.ActionNo, ShouldEqual, "A1")
				So(sum.SubmittedSeats, ShouldResemble, []int{1, 2})
				So(sum.CompletedActionNos, ShouldBeEmpty)
				So(sum.VRScore, ShouldBeNil)
			})
		})

		Convey("When the action reaches quorum", func() {
			submit("j3", 3)
			submit("j4", 4)
			submit("j5", 5)

			sum, err := svc.Summarize(ctx, event.ID)

			Convey("Then it moves to the completed list with its result", func() {
				So(err, ShouldBeNil)
				So(sum.CompletedActionNos, ShouldResemble, []string{"A1"})
				So(len(sum.CalculatedScores), ShouldEqual, 1)
				So(sum.CalculatedScores[0].Total, ShouldEqual, 12)
				// No action is open anymore, so no seats are pending.
				So(sum.SubmittedSeats, ShouldBeEmpty)
			})

			Convey("And the judge resync query returns their submissions", func() {
				mine, err := svc.MyScores(ctx, event.ID, "j3")
				So(err, ShouldBeNil)
				So(len(mine), ShouldEqual, 1)
				So(mine[0].Seat, ShouldEqual, 3)
			})
		})

		Convey("When summarizing a missing event", func() {
			_, err := svc.Summarize(ctx, "missing")
			So(errors.Is(err, flow.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestServiceSubscriptions(t *testing.T) {
	Convey("Given a started service with an event", t, func() {
		ctx := context.Background()
		svc := startService(t)

		event, err := svc.CreateEvent(ctx, service.CreateEventInput{Name: "cup"})
		So(err, ShouldBeNil)

		Convey("When subscribing to the event", func() {
			subCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			ch, err := svc.Subscribe(subCtx, event.ID)

			Convey("Then flow notices arrive on the channel", func() {
				So(err, ShouldBeNil)
				So(svc.Subscribers(event.ID), ShouldEqual, 1)

				team, err := svc.CreateTeam(ctx, service.CreateTeamInput{
					EventID:  event.ID,
					Name:     "duo",
					Category: model.CategoryMale,
					Order:    1,
				})
				So(err, ShouldBeNil)
				_, err = svc.OpenAction(ctx, event.ID, team.ID, 1, "A1")
				So(err, ShouldBeNil)

				select {
				case n := <-ch:
					So(n.Name, ShouldEqual, flow.NoticeActionOpened)
				case <-time.After(time.Second):
					So("timed out waiting for notice", ShouldBeEmpty)
				}
			})
		})

		Convey("When subscribing to a missing event", func() {
			_, err := svc.Subscribe(ctx, "missing")
			So(errors.Is(err, flow.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a subscriber leaves", func() {
			subCtx, cancel := context.WithCancel(ctx)
			_, err := svc.Subscribe(subCtx, event.ID)
			So(err, ShouldBeNil)
			So(subscriberGauge(t, event.ID), ShouldEqual, 1)

			cancel()

			Convey("Then the gauge follows the hub room size down", func() {
				So(pollFor(func() bool { return subscriberGauge(t, event.ID) == 0 }), ShouldBeTrue)
			})
		})

		Convey("When reading stats", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["totalEvents"], ShouldEqual, 1)
		})
	})
}
