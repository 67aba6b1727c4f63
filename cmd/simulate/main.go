package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/craneyu/YILan-JJGAME/internal/simulate"
	"github.com/craneyu/YILan-JJGAME/pkg/logger"
)

// Default configuration constants.
const (
	defaultTeams      = 6
	defaultTimeout    = 10 * time.Second
	defaultRunTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		secret  = flag.String("secret", os.Getenv("JJGAME_JWT_SECRET"), "JWT secret shared with the service")
		teams   = flag.Int("teams", defaultTeams, "Number of teams to enrol")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "Random seed for generated ratings")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	if *secret == "" {
		*secret = "dev-secret"
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL: *baseURL,
		Secret:  *secret,
		Teams:   *teams,
		Timeout: *timeout,
		Seed:    *seed,
		Verbose: *verbose,
	}
	if err := simulate.Run(ctx, config); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}
