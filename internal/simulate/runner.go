package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/craneyu/YILan-JJGAME/internal/adapters/http/api"
	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
	"github.com/craneyu/YILan-JJGAME/pkg/logger"
)

// tokens holds one signed token per client kind.
type tokens struct {
	admin    string
	sequence string
	vr       string
	judges   [model.Quorum]string
}

func mintTokens(secret string) (tokens, error) {
	auth := api.NewAuth(secret)
	var t tokens
	var err error
	if t.admin, err = auth.GenerateToken(api.Claims{UserID: "sim-admin", Role: api.RoleAdmin}); err != nil {
		return t, err
	}
	if t.sequence, err = auth.GenerateToken(api.Claims{UserID: "sim-seq", Role: api.RoleSequence}); err != nil {
		return t, err
	}
	if t.vr, err = auth.GenerateToken(api.Claims{UserID: "sim-vr", Role: api.RoleVR}); err != nil {
		return t, err
	}
	for seat := model.MinSeat; seat <= model.MaxSeat; seat++ {
		t.judges[seat-1], err = auth.GenerateToken(api.Claims{
			UserID: fmt.Sprintf("sim-judge-%d", seat),
			Role:   api.RoleJudge,
			Seat:   seat,
		})
		if err != nil {
			return t, err
		}
	}
	return t, nil
}

// Run plays one full competition against a live service: it creates an
// event and roster, then walks every team through all three rounds and
// prints the final rankings.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting competition simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("teams", config.Teams),
		logger.String("timeout", config.Timeout.String()),
	)

	client := newClient(config.BaseURL, config.Timeout)
	if err := client.checkHealth(); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	toks, err := mintTokens(config.Secret)
	if err != nil {
		return fmt.Errorf("minting tokens failed: %w", err)
	}

	rng := rand.New(rand.NewSource(config.Seed))

	var event model.Event
	if err := client.post("/api/events", toks.admin, map[string]any{
		"name":  fmt.Sprintf("simulated cup %d", time.Now().Unix()),
		"venue": "simulation hall",
	}, &event); err != nil {
		return fmt.Errorf("creating event failed: %w", err)
	}

	categories := []model.Category{model.CategoryMale, model.CategoryFemale, model.CategoryMixed}
	teams := make([]model.Team, 0, config.Teams)
	for i := 0; i < config.Teams; i++ {
		var team model.Team
		err := client.post("/api/teams", toks.admin, map[string]any{
			"event_id": event.ID,
			"name":     fmt.Sprintf("team-%02d", i+1),
			"members":  []string{fmt.Sprintf("tori-%02d", i+1), fmt.Sprintf("uke-%02d", i+1)},
			"category": categories[i%len(categories)],
			"order":    i + 1,
		}, &team)
		if err != nil {
			return fmt.Errorf("creating team failed: %w", err)
		}
		teams = append(teams, team)
	}

	if _, err := patchEventStatus(client, toks.admin, event.ID, model.EventActive); err != nil {
		return err
	}

	for round := model.MinRound; round <= model.MaxRound; round++ {
		for _, team := range teams {
			if err := playSeries(ctx, client, toks, rng, event.ID, team, round, stats, config.Verbose); err != nil {
				return fmt.Errorf("team %s round %d: %w", team.Name, round, err)
			}
			var advance struct {
				NextTeamID string `json:"next_team_id"`
				Round      int    `json:"round"`
				Complete   bool   `json:"complete"`
			}
			if err := client.post("/api/flow/next", toks.sequence, map[string]any{"event_id": event.ID}, &advance); err != nil {
				return fmt.Errorf("advancing failed: %w", err)
			}
			if advance.Complete {
				log.Info(ctx, "event complete", logger.String("event_id", event.ID))
			}
		}
		stats.RoundsPlayed++
	}

	var rankings []model.RankingEntry
	if err := client.get("/api/events/"+event.ID+"/rankings", toks.admin, &rankings); err != nil {
		return fmt.Errorf("fetching rankings failed: %w", err)
	}
	for _, entry := range rankings {
		log.Info(ctx, "final standing",
			logger.String("team", entry.Name),
			logger.String("category", string(entry.Category)),
			logger.Int("total", entry.Total),
		)
	}

	log.Info(ctx, "simulation finished",
		logger.Int("scores", stats.ScoresSubmitted),
		logger.Int("actionsClosed", stats.ActionsClosed),
		logger.Int("rounds", stats.RoundsPlayed),
		logger.String("elapsed", time.Since(stats.StartTime).String()),
	)
	return nil
}

// playSeries opens and scores every action of one team's round, then
// submits the variety rating.
func playSeries(ctx context.Context, client *Client, toks tokens, rng *rand.Rand, eventID string, team model.Team, round int, stats *Stats, verbose bool) error {
	log := logger.Get()
	for _, actionNo := range model.ActionsForRound(round, team.Category) {
		if err := client.post("/api/flow/open", toks.sequence, map[string]any{
			"event_id":  eventID,
			"team_id":   team.ID,
			"round":     round,
			"action_no": actionNo,
		}, nil); err != nil {
			return fmt.Errorf("opening %s failed: %w", actionNo, err)
		}
		for seat := model.MinSeat; seat <= model.MaxSeat; seat++ {
			items := map[string]any{
				"p1": rng.Intn(model.MaxItemScore + 1),
				"p2": rng.Intn(model.MaxItemScore + 1),
				"p3": rng.Intn(model.MaxItemScore + 1),
				"p4": rng.Intn(model.MaxItemScore + 1),
			}
			if err := client.post("/api/scores", toks.judges[seat-1], map[string]any{
				"event_id":  eventID,
				"team_id":   team.ID,
				"round":     round,
				"action_no": actionNo,
				"items":     items,
			}, nil); err != nil {
				return fmt.Errorf("seat %d score failed: %w", seat, err)
			}
			stats.ScoresSubmitted++
		}
		stats.ActionsClosed++
		if verbose {
			log.Debug(ctx, "action scored",
				logger.String("team", team.Name),
				logger.String("action_no", actionNo),
			)
		}
	}
	if err := client.post("/api/vr-scores", toks.vr, map[string]any{
		"event_id":       eventID,
		"team_id":        team.ID,
		"round":          round,
		"throw_variety":  rng.Intn(model.MaxVariety + 1),
		"ground_variety": rng.Intn(model.MaxVariety + 1),
	}, nil); err != nil {
		return fmt.Errorf("variety score failed: %w", err)
	}
	return nil
}

func patchEventStatus(client *Client, token, eventID string, status model.EventStatus) (model.Event, error) {
	var event model.Event
	err := client.patch("/api/events/"+eventID, token, map[string]any{"status": status}, &event)
	if err != nil {
		return model.Event{}, fmt.Errorf("activating event failed: %w", err)
	}
	return event, nil
}
