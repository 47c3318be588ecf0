package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayWorkerDrainsQueue(t *testing.T) {
	strategy := &stubStrategy{name: "print-server", available: true, replayable: true}
	orchestrator, queue := newTestOrchestrator(t, []TransportStrategy{strategy})

	_, err := queue.Enqueue(&Payload{OrderID: 1, Data: []byte("cupom"), PlainText: true})
	require.NoError(t, err)

	// Long interval: only the startup drain should run
	worker := StartReplayWorker(orchestrator, time.Hour, nil)
	defer worker.Stop()

	assert.Eventually(t, func() bool {
		count, err := queue.PendingCount()
		return err == nil && count == 0
	}, 2*time.Second, 10*time.Millisecond)

	// A job queued later waits until connectivity comes back
	_, err = queue.Enqueue(&Payload{OrderID: 2, Data: []byte("cupom"), PlainText: true})
	require.NoError(t, err)

	worker.NotifyConnectivity()
	assert.Eventually(t, func() bool {
		count, err := queue.PendingCount()
		return err == nil && count == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReplayWorkerStopIsImmediateAndIdempotent(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, nil)

	// Stop right after start must not race the run goroutine
	worker := StartReplayWorker(orchestrator, time.Hour, nil)
	worker.Stop()
	assert.NotPanics(t, worker.Stop)

	// The worker no longer reacts once stopped
	assert.NotPanics(t, worker.NotifyConnectivity)
}
