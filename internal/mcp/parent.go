package mcp

import (
	"context"
	"os"
	"time"

	"imgnet/internal/logging"
)

// ParentPollInterval is how often WatchParent looks at the parent PID.
var ParentPollInterval = 2 * time.Second

// getppid is swapped in tests to simulate the launcher exiting.
var getppid = os.Getppid

// WatchParent calls stop once the launching process (an editor or agent host
// talking to us over stdio) is gone, which shows up as a new parent PID after
// reparenting. It polls and never touches stdin; the transport reads it.
// It returns immediately and gives up when ctx ends.
func WatchParent(ctx context.Context, stop context.CancelFunc) {
	launcher := getppid()
	log := logging.New("mcp")
	go func() {
		tick := time.NewTicker(ParentPollInterval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
			if now := getppid(); now != launcher {
				log.Warn("launcher exited, stopping server", "launcher_pid", launcher, "parent_pid", now)
				stop()
				return
			}
		}
	}()
}
