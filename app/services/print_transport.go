package services

import (
	"context"
	"time"

	"AquaPos/app/models"
)

// Transport timeouts and retry limits shared by the strategies
const (
	statusCheckTimeout = 2 * time.Second
	deliveryTimeout    = 5 * time.Second
	bridgeReplyTimeout = 5 * time.Second

	serverMaxAttempts    = 3
	serverInitialBackoff = 1 * time.Second

	rawChunkSize = 512
)

// Payload is a fully formatted receipt ready for delivery. Data holds
// either formatted text or raw ESC/POS bytes; PlainText tells which.
// Thermal payloads carry a parallel plain-text rendition in Text so
// surfaces that cannot speak ESC/POS can still show the receipt.
type Payload struct {
	OrderID   uint
	Data      []byte
	Text      string
	PlainText bool
	Test      bool
}

// ReceiptText returns the human-readable form of the payload, or ""
// when none is available (a replayed raw job has only bytes).
func (p *Payload) ReceiptText() string {
	if p.Text != "" {
		return p.Text
	}
	if p.PlainText {
		return string(p.Data)
	}
	return ""
}

// TransportStrategy is one way of getting a formatted receipt to paper.
// Strategies are tried in priority order; a failing strategy never
// aborts the chain, the next one is tried.
type TransportStrategy interface {
	// Name identifies the strategy in results and diagnostics
	Name() string
	// Available reports whether the strategy's preconditions hold.
	// It must be cheap; expensive probes belong in Attempt.
	Available() bool
	// Replayable reports whether queued jobs may be delivered through
	// this strategy without a user present
	Replayable() bool
	// Attempt tries to deliver the payload once (including any internal
	// retries the strategy owns)
	Attempt(ctx context.Context, p *Payload) (*models.PrintResult, error)
}

// retryWithBackoff runs fn up to maxAttempts times, doubling the delay
// between attempts. Returns the number of attempts made and the last
// error, or nil on success.
func retryWithBackoff(ctx context.Context, maxAttempts int, initialDelay time.Duration, fn func(attempt int) error) (int, error) {
	delay := initialDelay
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(attempt); err == nil {
			return attempt, nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return maxAttempts, err
}
