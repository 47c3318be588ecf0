package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"AquaPos/app/models"
)

// LocalPrintServerStrategy delivers receipts over HTTP to a companion
// print server running next to the printer. Transient failures are
// retried with exponential backoff before the strategy gives up.
type LocalPrintServerStrategy struct {
	baseURL     string
	authToken   string
	client      *http.Client
	logger      *LoggerService
	maxAttempts int
	backoff     time.Duration
}

func NewLocalPrintServerStrategy(baseURL, authToken string, client *http.Client, logger *LoggerService) *LocalPrintServerStrategy {
	if client == nil {
		client = http.DefaultClient
	}
	return &LocalPrintServerStrategy{
		baseURL:     baseURL,
		authToken:   authToken,
		client:      client,
		logger:      logger,
		maxAttempts: serverMaxAttempts,
		backoff:     serverInitialBackoff,
	}
}

func (s *LocalPrintServerStrategy) Name() string {
	return "print-server"
}

func (s *LocalPrintServerStrategy) Available() bool {
	return s.baseURL != ""
}

func (s *LocalPrintServerStrategy) Replayable() bool {
	return true
}

func (s *LocalPrintServerStrategy) Attempt(ctx context.Context, p *Payload) (*models.PrintResult, error) {
	attempts, err := retryWithBackoff(ctx, s.maxAttempts, s.backoff, func(attempt int) error {
		if err := s.checkStatus(ctx); err != nil {
			if s.logger != nil {
				s.logger.LogWarning("Print server not reachable", fmt.Sprintf("attempt %d: %v", attempt, err))
			}
			return err
		}
		if p.PlainText {
			return s.sendText(ctx, p)
		}
		return s.sendRawChunks(ctx, p)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Transport: s.Name(), Timeout: deliveryTimeout}
		}
		return nil, &TransportError{Transport: s.Name(), Err: err}
	}

	return &models.PrintResult{
		Success:  true,
		Method:   s.Name(),
		Message:  "Impresso via servidor local",
		Attempts: attempts,
	}, nil
}

// checkStatus probes the server health endpoint with a short timeout
// so an absent server fails fast
func (s *LocalPrintServerStrategy) checkStatus(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, statusCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, s.baseURL+"/status", nil)
	if err != nil {
		return err
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (s *LocalPrintServerStrategy) sendText(ctx context.Context, p *Payload) error {
	body, err := json.Marshal(map[string]string{"text": string(p.Data)})
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, s.baseURL+"/print", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("invalid print response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("server rejected print: %s", result.Message)
	}
	return nil
}

// sendRawChunks streams ESC/POS bytes in fixed-size chunks. The server
// assembles them by index under the transfer id and prints once the
// last chunk arrives.
func (s *LocalPrintServerStrategy) sendRawChunks(ctx context.Context, p *Payload) error {
	data := p.Data
	total := (len(data) + rawChunkSize - 1) / rawChunkSize
	if total == 0 {
		total = 1
	}
	transferID := uuid.NewString()

	for i := 0; i < total; i++ {
		start := i * rawChunkSize
		end := start + rawChunkSize
		if end > len(data) {
			end = len(data)
		}

		sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, s.baseURL+"/raw-chunk", bytes.NewReader(data[start:end]))
		if err != nil {
			cancel()
			return err
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set("X-Chunk-Index", strconv.Itoa(i))
		req.Header.Set("X-Total-Chunks", strconv.Itoa(total))
		req.Header.Set("X-Transfer-Id", transferID)
		s.authorize(req)

		resp, err := s.client.Do(req)
		cancel()
		if err != nil {
			return err
		}

		var result struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if decodeErr != nil {
			return fmt.Errorf("invalid chunk response: %w", decodeErr)
		}
		if !result.Success {
			return fmt.Errorf("server rejected chunk %d/%d: %s", i+1, total, result.Message)
		}
	}
	return nil
}

func (s *LocalPrintServerStrategy) authorize(req *http.Request) {
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}
}
