package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/internal/domain/policy"
	"github.com/okian/tally/internal/loadgen"
	"github.com/okian/tally/pkg/logger"
)

// Default configuration constants.
const (
	defaultUsers         = 200
	defaultEventsPerUser = 50
	defaultTopN          = 50
	defaultDuplicate     = 10
	defaultRetries       = 8
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users      = flag.Int("users", defaultUsers, "Number of distinct users")
		events     = flag.Int("events", defaultEventsPerUser, "Task events per user")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		topN       = flag.Int("top", defaultTopN, "Leaderboard entries to check")
		dup        = flag.Int("dup", defaultDuplicate, "Replay every Nth event id, 0 disables")
		retries    = flag.Int("retries", defaultRetries, "Retries of a rate limited or still in-flight event")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed of the task type mix")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Write the generated events to this JSON file")
		configFile = flag.String("config", "", "Server YAML config holding the task table")
		verbose    = flag.Bool("verbose", false, "Log every failed event")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp(os.Stdout)
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	tasks, err := loadTaskPolicy(*configFile)
	if err != nil {
		os.Stderr.WriteString("failed to load task policy: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:        *baseURL,
		Users:          *users,
		EventsPerUser:  *events,
		Workers:        *workers,
		Timeout:        *timeout,
		TopN:           *topN,
		DuplicateEvery: *dup,
		MaxRetries:     *retries,
		Seed:           *seed,
		OutputFile:     *outputFile,
		Verbose:        *verbose,
	}

	if _, err := loadgen.Run(ctx, cfg, tasks); err != nil {
		os.Stderr.WriteString("load run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}

// loadTaskPolicy reads the task table the server uses. An empty path keeps
// the default table unless TALLY_CONFIG is already set.
func loadTaskPolicy(path string) (*policy.TaskPolicy, error) {
	if path != "" {
		if err := os.Setenv(config.EnvConfigFile, path); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(context.Background())
	if err != nil {
		return nil, err
	}
	return cfg.TaskPolicy()
}
