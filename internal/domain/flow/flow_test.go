package flow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	repository "github.com/craneyu/YILan-JJGAME/internal/adapters/repository"
	flow "github.com/craneyu/YILan-JJGAME/internal/domain/flow"
	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
	"github.com/craneyu/YILan-JJGAME/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// recorder captures published notices for assertions.
type recorder struct {
	mu      sync.Mutex
	notices []recorded
}

type recorded struct {
	eventID string
	name    string
	payload any
}

func (r *recorder) Publish(_ context.Context, eventID, name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, recorded{eventID: eventID, name: name, payload: payload})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.name)
	}
	return out
}

func (r *recorder) last(name string) (recorded, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.notices) - 1; i >= 0; i-- {
		if r.notices[i].name == name {
			return r.notices[i], true
		}
	}
	return recorded{}, false
}

// fixture is a machine over a fresh store with one event and two teams.
type fixture struct {
	store   *repository.MemoryStore
	machine *flow.Machine
	pub     *recorder
	eventID string
	male    model.Team
	female  model.Team
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	pub := &recorder{}

	event := model.Event{Name: "test cup", Status: model.EventActive}
	if err := store.CreateEvent(ctx, &event); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateFlowState(ctx, event.ID); err != nil {
		t.Fatal(err)
	}

	male := model.Team{EventID: event.ID, Name: "male duo", Category: model.CategoryMale, Order: 1}
	female := model.Team{EventID: event.ID, Name: "female duo", Category: model.CategoryFemale, Order: 2}
	if err := store.CreateTeam(ctx, &male); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateTeam(ctx, &female); err != nil {
		t.Fatal(err)
	}

	return &fixture{
		store:   store,
		machine: flow.NewMachine(store, store, store, store, pub),
		pub:     pub,
		eventID: event.ID,
		male:    male,
		female:  female,
	}
}

// submitSeat sends one judge score for the open action.
func (f *fixture) submitSeat(ctx context.Context, teamID string, round int, actionNo string, seat int) (*model.ActionResult, error) {
	_, result, err := f.machine.SubmitScore(ctx, flow.SubmitScoreInput{
		EventID:  f.eventID,
		TeamID:   teamID,
		Round:    round,
		ActionNo: actionNo,
		JudgeID:  "judge-" + string(rune('0'+seat)),
		Seat:     seat,
		Items:    model.ScoreItems{P1: 2, P2: 1, P3: 2, P4: 1},
	})
	return result, err
}

// scoreAction opens an action and drives it to quorum.
func (f *fixture) scoreAction(ctx context.Context, t *testing.T, teamID string, round int, actionNo string) {
	t.Helper()
	if _, err := f.machine.OpenAction(ctx, f.eventID, teamID, round, actionNo); err != nil {
		t.Fatalf("open %s: %v", actionNo, err)
	}
	for seat := model.MinSeat; seat <= model.MaxSeat; seat++ {
		if _, err := f.submitSeat(ctx, teamID, round, actionNo, seat); err != nil {
			t.Fatalf("seat %d on %s: %v", seat, actionNo, err)
		}
	}
}

// playRound scores every action of a team's round and its variety.
func (f *fixture) playRound(ctx context.Context, t *testing.T, team model.Team, round int) {
	t.Helper()
	for _, actionNo := range model.ActionsForRound(round, team.Category) {
		f.scoreAction(ctx, t, team.ID, round, actionNo)
	}
	_, err := f.machine.SubmitVariety(ctx, flow.SubmitVarietyInput{
		EventID: f.eventID, TeamID: team.ID, Round: round, ThrowVariety: 1, GroundVariety: 1,
	})
	if err != nil {
		t.Fatalf("variety for %s round %d: %v", team.Name, round, err)
	}
}

func TestOpenAction(t *testing.T) {
	Convey("Given an idle event", t, func() {
		ctx := context.Background()
		f := newFixture(t)

		Convey("When opening a valid action", func() {
			st, err := f.machine.OpenAction(ctx, f.eventID, f.male.ID, 1, "A1")

			Convey("Then the flow enters action_open", func() {
				So(err, ShouldBeNil)
				So(st.Status, ShouldEqual, model.StatusActionOpen)
				So(st.Open, ShouldBeTrue)
				So(st.TeamID, ShouldEqual, f.male.ID)
				So(st.ActionNo, ShouldEqual, "A1")
			})

			Convey("And an action:opened notice goes out", func() {
				n, ok := f.pub.last(flow.NoticeActionOpened)
				So(ok, ShouldBeTrue)
				payload := n.payload.(flow.ActionOpenedPayload)
				So(payload.ActionNo, ShouldEqual, "A1")
			})

			Convey("And opening another action while open is rejected", func() {
				_, err := f.machine.OpenAction(ctx, f.eventID, f.male.ID, 1, "A2")
				So(errors.Is(err, flow.ErrActionAlreadyOpen), ShouldBeTrue)
				So(errors.Is(err, flow.ErrConflict), ShouldBeTrue)
			})
		})

		Convey("When the action is not in the team's schedule", func() {
			// Female teams perform three actions per round.
			_, err := f.machine.OpenAction(ctx, f.eventID, f.female.ID, 1, "A4")
			So(errors.Is(err, flow.ErrValidation), ShouldBeTrue)
		})

		Convey("When the series letter does not match the round", func() {
			_, err := f.machine.OpenAction(ctx, f.eventID, f.male.ID, 1, "B1")
			So(errors.Is(err, flow.ErrValidation), ShouldBeTrue)
		})

		Convey("When the team does not exist", func() {
			_, err := f.machine.OpenAction(ctx, f.eventID, "ghost", 1, "A1")
			So(errors.Is(err, flow.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the team belongs to another event", func() {
			other := model.Team{EventID: "other", Name: "stray", Category: model.CategoryMale, Order: 1}
			So(f.store.CreateTeam(ctx, &other), ShouldBeNil)
			_, err := f.machine.OpenAction(ctx, f.eventID, other.ID, 1, "A1")
			So(errors.Is(err, flow.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestSubmitScore(t *testing.T) {
	Convey("Given an open action", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		_, err := f.machine.OpenAction(ctx, f.eventID, f.male.ID, 1, "A1")
		So(err, ShouldBeNil)

		Convey("When four seats have submitted", func() {
			for seat := 1; seat <= 4; seat++ {
				result, err := f.submitSeat(ctx, f.male.ID, 1, "A1", seat)
				So(err, ShouldBeNil)
				So(result, ShouldBeNil)
			}

			Convey("Then the action stays open", func() {
				st, _ := f.machine.State(ctx, f.eventID)
				So(st.Open, ShouldBeTrue)
				So(st.Status, ShouldEqual, model.StatusActionOpen)
			})

			Convey("And the fifth submission closes it with a result", func() {
				result, err := f.submitSeat(ctx, f.male.ID, 1, "A1", 5)
				So(err, ShouldBeNil)
				So(result, ShouldNotBeNil)
				// All five judges gave identical items, so each item
				// aggregates to three times its value.
				So(result.Total, ShouldEqual, 3*(2+1+2+1))

				st, _ := f.machine.State(ctx, f.eventID)
				So(st.Open, ShouldBeFalse)
				So(st.Status, ShouldEqual, model.StatusActionClosed)

				n, ok := f.pub.last(flow.NoticeScoreCalculated)
				So(ok, ShouldBeTrue)
				payload := n.payload.(flow.ScoreCalculatedPayload)
				So(payload.Total, ShouldEqual, result.Total)

				Convey("And scoring the closed action is rejected", func() {
					_, err := f.submitSeat(ctx, f.male.ID, 1, "A1", 5)
					So(errors.Is(err, flow.ErrActionNotOpen), ShouldBeTrue)
				})
			})
		})

		Convey("When a judge submits twice", func() {
			_, err := f.submitSeat(ctx, f.male.ID, 1, "A1", 1)
			So(err, ShouldBeNil)
			_, err = f.submitSeat(ctx, f.male.ID, 1, "A1", 1)

			Convey("Then the duplicate is rejected as a conflict", func() {
				So(errors.Is(err, flow.ErrDuplicateScore), ShouldBeTrue)
				So(errors.Is(err, flow.ErrConflict), ShouldBeTrue)
			})
		})

		Convey("When the submission targets a different action", func() {
			_, err := f.submitSeat(ctx, f.male.ID, 1, "A2", 1)
			So(errors.Is(err, flow.ErrActionNotOpen), ShouldBeTrue)
		})

		Convey("When an item value is out of range", func() {
			_, _, err := f.machine.SubmitScore(ctx, flow.SubmitScoreInput{
				EventID:  f.eventID,
				TeamID:   f.male.ID,
				Round:    1,
				ActionNo: "A1",
				JudgeID:  "judge-x",
				Seat:     1,
				Items:    model.ScoreItems{P1: 4},
			})
			So(errors.Is(err, flow.ErrValidation), ShouldBeTrue)
		})

		Convey("When the seat is out of range", func() {
			_, err := f.submitSeat(ctx, f.male.ID, 1, "A1", 6)
			So(errors.Is(err, flow.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestSubmitVariety(t *testing.T) {
	Convey("Given a male team in round one", t, func() {
		ctx := context.Background()
		f := newFixture(t)

		variety := flow.SubmitVarietyInput{
			EventID: f.eventID, TeamID: f.male.ID, Round: 1, ThrowVariety: 2, GroundVariety: 1,
		}

		Convey("When not every action has quorum yet", func() {
			f.scoreAction(ctx, t, f.male.ID, 1, "A1")

			_, err := f.machine.SubmitVariety(ctx, variety)

			Convey("Then the submission is rejected", func() {
				So(errors.Is(err, flow.ErrSeriesIncomplete), ShouldBeTrue)
			})
		})

		Convey("When all four actions have quorum", func() {
			for _, actionNo := range model.ActionsForRound(1, model.CategoryMale) {
				f.scoreAction(ctx, t, f.male.ID, 1, actionNo)
			}

			vr, err := f.machine.SubmitVariety(ctx, variety)

			Convey("Then the score is stored and the series completes", func() {
				So(err, ShouldBeNil)
				So(vr.Total(), ShouldEqual, 3)

				st, _ := f.machine.State(ctx, f.eventID)
				So(st.Status, ShouldEqual, model.StatusSeriesComplete)

				_, ok := f.pub.last(flow.NoticeVRSubmitted)
				So(ok, ShouldBeTrue)
			})

			Convey("And resubmitting replaces the stored rating", func() {
				_, err := f.machine.SubmitVariety(ctx, variety)
				So(err, ShouldBeNil)

				variety.ThrowVariety = 0
				vr, err := f.machine.SubmitVariety(ctx, variety)
				So(err, ShouldBeNil)
				So(vr.ThrowVariety, ShouldEqual, 0)

				got, err := f.store.GetVRScore(ctx, f.eventID, f.male.ID, 1)
				So(err, ShouldBeNil)
				So(got.ThrowVariety, ShouldEqual, 0)
			})
		})

		Convey("When a variety value is out of range", func() {
			bad := variety
			bad.ThrowVariety = 3
			_, err := f.machine.SubmitVariety(ctx, bad)
			So(errors.Is(err, flow.ErrValidation), ShouldBeTrue)
		})

		Convey("When the team belongs to another event", func() {
			other := model.Event{Name: "other cup", Status: model.EventActive}
			So(f.store.CreateEvent(ctx, &other), ShouldBeNil)
			_, err := f.store.CreateFlowState(ctx, other.ID)
			So(err, ShouldBeNil)

			mismatched := variety
			mismatched.EventID = other.ID
			_, err = f.machine.SubmitVariety(ctx, mismatched)

			Convey("Then the submission fails validation", func() {
				So(errors.Is(err, flow.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestAdvanceGroup(t *testing.T) {
	Convey("Given the first team finished its round", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		f.playRound(ctx, t, f.male, 1)

		Convey("When advancing", func() {
			res, err := f.machine.AdvanceGroup(ctx, f.eventID)

			Convey("Then the next team in order is up, same round", func() {
				So(err, ShouldBeNil)
				So(res.NextTeamID, ShouldEqual, f.female.ID)
				So(res.Round, ShouldEqual, 1)
				So(res.Complete, ShouldBeFalse)

				st, _ := f.machine.State(ctx, f.eventID)
				So(st.TeamID, ShouldEqual, f.female.ID)
				So(st.Status, ShouldEqual, model.StatusIdle)
				So(st.ActionNo, ShouldBeEmpty)

				n, ok := f.pub.last(flow.NoticeGroupChanged)
				So(ok, ShouldBeTrue)
				So(n.payload.(flow.GroupChangedPayload).NextTeamID, ShouldEqual, f.female.ID)
			})
		})
	})

	Convey("Given the current team's variety score is missing", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		for _, actionNo := range model.ActionsForRound(1, model.CategoryMale) {
			f.scoreAction(ctx, t, f.male.ID, 1, actionNo)
		}

		Convey("When advancing", func() {
			_, err := f.machine.AdvanceGroup(ctx, f.eventID)

			Convey("Then the variety gate rejects the command", func() {
				So(errors.Is(err, flow.ErrVarietyPending), ShouldBeTrue)
			})
		})
	})

	Convey("Given the last team of round one finished", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		f.playRound(ctx, t, f.male, 1)
		_, err := f.machine.AdvanceGroup(ctx, f.eventID)
		So(err, ShouldBeNil)
		f.playRound(ctx, t, f.female, 1)

		Convey("When advancing past the last team", func() {
			res, err := f.machine.AdvanceGroup(ctx, f.eventID)

			Convey("Then round two starts with the first team", func() {
				So(err, ShouldBeNil)
				So(res.Round, ShouldEqual, 2)
				So(res.NextTeamID, ShouldEqual, f.male.ID)

				st, _ := f.machine.State(ctx, f.eventID)
				So(st.Round, ShouldEqual, 2)
				So(st.TeamID, ShouldEqual, f.male.ID)

				n, ok := f.pub.last(flow.NoticeRoundChanged)
				So(ok, ShouldBeTrue)
				So(n.payload.(flow.RoundChangedPayload).Round, ShouldEqual, 2)
			})
		})
	})

	Convey("Given no team is up yet", t, func() {
		ctx := context.Background()
		f := newFixture(t)

		Convey("When advancing", func() {
			_, err := f.machine.AdvanceGroup(ctx, f.eventID)
			So(errors.Is(err, flow.ErrNoCurrentTeam), ShouldBeTrue)
		})
	})
}

func TestEventCompletion(t *testing.T) {
	Convey("Given a full competition played to the end", t, func() {
		ctx := context.Background()
		f := newFixture(t)

		teams := []model.Team{f.male, f.female}
		for round := model.MinRound; round <= model.MaxRound; round++ {
			for i, team := range teams {
				f.playRound(ctx, t, team, round)
				res, err := f.machine.AdvanceGroup(ctx, f.eventID)
				So(err, ShouldBeNil)

				last := round == model.MaxRound && i == len(teams)-1
				So(res.Complete, ShouldEqual, last)
			}
		}

		Convey("Then the flow is terminally complete", func() {
			st, _ := f.machine.State(ctx, f.eventID)
			So(st.Status, ShouldEqual, model.StatusEventComplete)

			n, ok := f.pub.last(flow.NoticeRoundChanged)
			So(ok, ShouldBeTrue)
			So(n.payload.(flow.RoundChangedPayload).Round, ShouldEqual, 0)
		})

		Convey("And every further command is rejected", func() {
			_, err := f.machine.OpenAction(ctx, f.eventID, f.male.ID, 1, "A1")
			So(errors.Is(err, flow.ErrEventComplete), ShouldBeTrue)

			_, err = f.machine.AdvanceGroup(ctx, f.eventID)
			So(errors.Is(err, flow.ErrEventComplete), ShouldBeTrue)

			_, err = f.machine.SetAbstain(ctx, f.eventID)
			So(errors.Is(err, flow.ErrEventComplete), ShouldBeTrue)
		})
	})
}

func TestAbstain(t *testing.T) {
	Convey("Given a team with an action open", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		_, err := f.machine.OpenAction(ctx, f.eventID, f.male.ID, 1, "A1")
		So(err, ShouldBeNil)

		Convey("When the team abstains", func() {
			st, err := f.machine.SetAbstain(ctx, f.eventID)

			Convey("Then the open action is voided", func() {
				So(err, ShouldBeNil)
				So(st.Abstained, ShouldBeTrue)
				So(st.Open, ShouldBeFalse)
				So(st.ActionNo, ShouldBeEmpty)
				So(st.Status, ShouldEqual, model.StatusIdle)

				_, ok := f.pub.last(flow.NoticeTeamAbstained)
				So(ok, ShouldBeTrue)
			})

			Convey("And opening an action for the abstained team is rejected", func() {
				_, err := f.machine.OpenAction(ctx, f.eventID, f.male.ID, 1, "A1")
				So(errors.Is(err, flow.ErrTeamAbstained), ShouldBeTrue)
			})

			Convey("And advancing skips the variety gate", func() {
				res, err := f.machine.AdvanceGroup(ctx, f.eventID)
				So(err, ShouldBeNil)
				So(res.NextTeamID, ShouldEqual, f.female.ID)

				st, _ := f.machine.State(ctx, f.eventID)
				So(st.Abstained, ShouldBeFalse)
			})

			Convey("And cancelling restores normal flow", func() {
				st, err := f.machine.CancelAbstain(ctx, f.eventID)
				So(err, ShouldBeNil)
				So(st.Abstained, ShouldBeFalse)

				_, ok := f.pub.last(flow.NoticeTeamAbstainCancelled)
				So(ok, ShouldBeTrue)

				_, err = f.machine.OpenAction(ctx, f.eventID, f.male.ID, 1, "A1")
				So(err, ShouldBeNil)
			})
		})
	})
}
