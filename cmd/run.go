package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/envdo/config"
	"github.com/projecteru2/envdo/lock"
	"github.com/projecteru2/envdo/lock/flock"
	"github.com/projecteru2/envdo/report"
	"github.com/projecteru2/envdo/runstate"
	"github.com/projecteru2/envdo/skytap"
	"github.com/projecteru2/envdo/version"
)

// runCommand wires the API client, console and engine, then applies command
// to envIDs (all environments when empty).
func runCommand(ctx context.Context, conf *config.Config, command string, envIDs []string, out io.Writer) error {
	if err := conf.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}

	client := skytap.New(conf.Endpoint, conf.Username, conf.Token,
		skytap.WithTimeout(conf.HTTPTimeout),
		skytap.WithUserAgent(version.UserAgent()),
	)
	console := report.NewConsole(out)
	poller := runstate.NewPoller(client, console, conf.PollInterval, conf.PollLimit)
	orch := runstate.NewOrchestrator(client, console, poller,
		runstate.WithPoolSize(conf.PoolSize),
		runstate.WithLocks(func(envID string) lock.Locker {
			return flock.New(conf.EnvLockPath(envID))
		}),
	)

	log.WithFunc("cmd.run").Infof(ctx, "%s on %d environment(s) via %s", command, len(envIDs), conf.Endpoint)
	if err := orch.Run(ctx, command, envIDs); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}
