package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ReplayWorker periodically drains the print retry queue. Besides the
// timer it reacts to connectivity notifications so a printer coming
// back online is picked up without waiting a full interval.
type ReplayWorker struct {
	orchestrator *PrintOrchestrator
	logger       *LoggerService
	interval     time.Duration
	stopChan     chan bool
	notifyChan   chan bool
	stopOnce     sync.Once
}

// StartReplayWorker initializes and starts the replay worker
func StartReplayWorker(orchestrator *PrintOrchestrator, interval time.Duration, logger *LoggerService) *ReplayWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	worker := &ReplayWorker{
		orchestrator: orchestrator,
		logger:       logger,
		interval:     interval,
		stopChan:     make(chan bool),
		notifyChan:   make(chan bool, 1),
	}
	go worker.run()
	if logger != nil {
		logger.LogInfo("Replay worker started", fmt.Sprintf("interval: %v", interval))
	}
	return worker
}

func (worker *ReplayWorker) run() {
	ticker := time.NewTicker(worker.interval)
	defer ticker.Stop()

	// Drain anything left over from a previous run
	worker.processOnce()

	for {
		select {
		case <-ticker.C:
			worker.processOnce()
		case <-worker.notifyChan:
			worker.processOnce()
		case <-worker.stopChan:
			if worker.logger != nil {
				worker.logger.LogInfo("Replay worker stopped")
			}
			return
		}
	}
}

func (worker *ReplayWorker) processOnce() {
	if worker.logger != nil {
		defer worker.logger.RecoverPanic()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	delivered, failed, err := worker.orchestrator.ProcessQueue(ctx)
	if err != nil {
		if worker.logger != nil {
			worker.logger.LogError("Queue replay failed", err)
		}
		return
	}
	if (delivered > 0 || failed > 0) && worker.logger != nil {
		worker.logger.LogInfo("Queue replay finished", fmt.Sprintf("delivered: %d, failed: %d", delivered, failed))
	}
}

// NotifyConnectivity wakes the worker because a printer or the print
// server became reachable again. Safe to call from any goroutine.
func (worker *ReplayWorker) NotifyConnectivity() {
	select {
	case worker.notifyChan <- true:
	default:
	}
}

// Stop shuts the worker down. Safe to call more than once and at any
// point after StartReplayWorker returns.
func (worker *ReplayWorker) Stop() {
	worker.stopOnce.Do(func() {
		close(worker.stopChan)
	})
}
