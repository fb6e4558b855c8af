package loadgen

import (
	"io"
	"os"
)

// ShowHelp prints usage information for the load generator.
func ShowHelp(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	_, _ = io.WriteString(w, `Tally Load Generator
====================

Submits concurrent task events to a running tally server, then checks every
user's total against the points policy and the leaderboard's ranks.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -users int
        Number of distinct users (default 200)
  -events int
        Task events per user (default 50)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -top int
        Leaderboard entries to check (default 50)
  -dup int
        Replay every Nth event id to exercise idempotency, 0 disables (default 10)
  -retries int
        Retries of a rate limited or still in-flight event (default 8)
  -seed uint
        Seed of the task type mix (default: current time)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Write the generated events to this JSON file
  -verbose
        Log every failed event
  -help
        Show this help message

The server's task table must be the default one, or be passed with -config
pointing at the same YAML file the server reads.
`)
}
