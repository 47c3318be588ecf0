package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"AquaPos/app/models"
)

// Message types exchanged with the print bridge
const (
	bridgeMsgThermalPrint = "THERMAL_PRINT"
	bridgeMsgPrintResult  = "PRINT_RESULT"
)

type bridgeMessage struct {
	Type  string `json:"type"`
	Data  string `json:"data,omitempty"` // base64 payload
	Plain bool   `json:"plain,omitempty"`
}

type bridgeReply struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// BridgeStrategy hands the receipt to a print bridge over a WebSocket
// message channel, falling back to a plain HTTP POST when the socket
// path fails. The bridge runs on the machine that owns the printer.
type BridgeStrategy struct {
	wsURL     string
	httpURL   string
	authToken string
	dialer    *websocket.Dialer
	client    *http.Client
	logger    *LoggerService
}

func NewBridgeStrategy(wsURL, httpURL, authToken string, logger *LoggerService) *BridgeStrategy {
	return &BridgeStrategy{
		wsURL:     wsURL,
		httpURL:   httpURL,
		authToken: authToken,
		dialer:    websocket.DefaultDialer,
		client:    http.DefaultClient,
		logger:    logger,
	}
}

func (s *BridgeStrategy) Name() string {
	return "bridge"
}

func (s *BridgeStrategy) Available() bool {
	return s.wsURL != "" || s.httpURL != ""
}

func (s *BridgeStrategy) Replayable() bool {
	return true
}

func (s *BridgeStrategy) Attempt(ctx context.Context, p *Payload) (*models.PrintResult, error) {
	var wsErr error
	if s.wsURL != "" {
		wsErr = s.sendWebSocket(ctx, p)
		if wsErr == nil {
			return &models.PrintResult{
				Success: true,
				Method:  s.Name(),
				Message: "Entregue via ponte WebSocket",
			}, nil
		}
		if s.logger != nil {
			s.logger.LogWarning("Bridge WebSocket path failed", wsErr.Error())
		}
	}

	if s.httpURL != "" {
		if err := s.sendHTTP(ctx, p); err != nil {
			return nil, &TransportError{Transport: s.Name(), Err: err}
		}
		return &models.PrintResult{
			Success: true,
			Method:  s.Name(),
			Message: "Entregue via ponte HTTP",
		}, nil
	}

	if wsErr == nil {
		return nil, ErrTransportUnavailable
	}
	return nil, &TransportError{Transport: s.Name(), Err: wsErr}
}

func (s *BridgeStrategy) sendWebSocket(ctx context.Context, p *Payload) error {
	dialCtx, cancel := context.WithTimeout(ctx, bridgeReplyTimeout)
	defer cancel()

	var header http.Header
	if s.authToken != "" {
		header = http.Header{"Authorization": {"Bearer " + s.authToken}}
	}
	conn, _, err := s.dialer.DialContext(dialCtx, s.wsURL, header)
	if err != nil {
		return fmt.Errorf("could not reach bridge: %w", err)
	}
	defer conn.Close()

	msg := bridgeMessage{
		Type:  bridgeMsgThermalPrint,
		Data:  base64.StdEncoding.EncodeToString(p.Data),
		Plain: p.PlainText,
	}
	conn.SetWriteDeadline(time.Now().Add(bridgeReplyTimeout))
	if err := conn.WriteJSON(&msg); err != nil {
		return fmt.Errorf("could not send print message: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(bridgeReplyTimeout))
	var reply bridgeReply
	if err := conn.ReadJSON(&reply); err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return &TimeoutError{Transport: s.Name(), Timeout: bridgeReplyTimeout}
		}
		return fmt.Errorf("no reply from bridge: %w", err)
	}
	if !reply.Success {
		return fmt.Errorf("bridge rejected print: %s", reply.Message)
	}
	return nil
}

func (s *BridgeStrategy) sendHTTP(ctx context.Context, p *Payload) error {
	body, err := json.Marshal(bridgeMessage{
		Type:  bridgeMsgThermalPrint,
		Data:  base64.StdEncoding.EncodeToString(p.Data),
		Plain: p.PlainText,
	})
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, s.httpURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reply bridgeReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("invalid bridge response: %w", err)
	}
	if !reply.Success {
		return fmt.Errorf("bridge rejected print: %s", reply.Message)
	}
	return nil
}
