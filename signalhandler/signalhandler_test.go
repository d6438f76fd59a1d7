package signalhandler

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetOptimalProcs(t *testing.T) {
	t.Setenv("DUPFINDER_MAX_THREADS", "")
	assert.Equal(t, runtime.NumCPU(), GetOptimalProcs())

	t.Setenv("DUPFINDER_MAX_THREADS", "3")
	assert.Equal(t, 3, GetOptimalProcs())

	t.Setenv("DUPFINDER_MAX_THREADS", "-2")
	assert.Equal(t, runtime.NumCPU(), GetOptimalProcs())
}

func TestSetupHandlerFollowsParent(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := SetupHandler(parent)
	defer cancel()

	cancelParent()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
