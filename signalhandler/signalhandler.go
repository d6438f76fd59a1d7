package signalhandler

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"dupfinder/logging"
)

// SetupHandler returns a context that is cancelled on the first SIGINT or SIGTERM.
// A second signal exits the process immediately.
func SetupHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			logging.LogWarning("received %s, stopping after running comparisons finish", sig)
			cancel()
		}
		sig := <-sigChan
		logging.LogWarning("received %s again, exiting", sig)
		os.Exit(130)
	}()

	return ctx, cancel
}

// GetOptimalProcs returns the default number of comparison workers: one per logical CPU,
// unless DUPFINDER_MAX_THREADS overrides it
func GetOptimalProcs() int {
	if v := os.Getenv("DUPFINDER_MAX_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}

	numCPU := runtime.NumCPU()
	if numCPU < 1 {
		numCPU = 1
	}
	return numCPU
}
