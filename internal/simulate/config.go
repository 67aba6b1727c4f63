package simulate

import "time"

// Config holds configuration for a simulated competition run.
type Config struct {
	BaseURL string        // Base URL of the service
	Secret  string        // JWT signing secret shared with the service
	Teams   int           // Number of teams to enrol
	Timeout time.Duration // HTTP request timeout
	Seed    int64         // Random seed for generated ratings
	Verbose bool          // Enable verbose logging
}

// Stats holds simulation statistics.
type Stats struct {
	StartTime       time.Time
	ScoresSubmitted int
	ActionsClosed   int
	RoundsPlayed    int
}
