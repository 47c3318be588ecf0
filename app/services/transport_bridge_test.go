package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	mu       sync.Mutex
	received []bridgeMessage
	reject   bool
	upgrader websocket.Upgrader
}

func (f *fakeBridge) wsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var msg bridgeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		f.mu.Lock()
		f.received = append(f.received, msg)
		reject := f.reject
		f.mu.Unlock()
		conn.WriteJSON(bridgeReply{Type: bridgeMsgPrintResult, Success: !reject, Message: "falha simulada"})
	}
}

func (f *fakeBridge) httpHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg bridgeMessage
		json.NewDecoder(r.Body).Decode(&msg)
		f.mu.Lock()
		f.received = append(f.received, msg)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(bridgeReply{Type: bridgeMsgPrintResult, Success: true})
	}
}

func TestBridgeStrategyWebSocketDelivery(t *testing.T) {
	fake := &fakeBridge{}
	srv := httptest.NewServer(fake.wsHandler())
	t.Cleanup(srv.Close)
	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1)

	s := NewBridgeStrategy(wsURL, "", "", nil)
	payload := &Payload{OrderID: 42, Data: []byte{ESC, '@', 'o', 'i'}, PlainText: false}

	result, err := s.Attempt(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "bridge", result.Method)

	require.Len(t, fake.received, 1)
	msg := fake.received[0]
	assert.Equal(t, bridgeMsgThermalPrint, msg.Type)
	decoded, err := base64.StdEncoding.DecodeString(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, payload.Data, decoded)
}

func TestBridgeStrategyFallsBackToHTTP(t *testing.T) {
	fake := &fakeBridge{}
	srv := httptest.NewServer(fake.httpHandler())
	t.Cleanup(srv.Close)

	// Unreachable socket forces the HTTP path
	s := NewBridgeStrategy("ws://127.0.0.1:1/ws", srv.URL, "", nil)

	result, err := s.Attempt(context.Background(), &Payload{Data: []byte("cupom"), PlainText: true})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Entregue via ponte HTTP", result.Message)
	require.Len(t, fake.received, 1)
}

func TestBridgeStrategyRejectionIsAnError(t *testing.T) {
	fake := &fakeBridge{reject: true}
	srv := httptest.NewServer(fake.wsHandler())
	t.Cleanup(srv.Close)
	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1)

	s := NewBridgeStrategy(wsURL, "", "", nil)
	_, err := s.Attempt(context.Background(), &Payload{Data: []byte("cupom")})

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "falha simulada")
}

func TestBridgeStrategyAvailability(t *testing.T) {
	assert.False(t, NewBridgeStrategy("", "", "", nil).Available())
	assert.True(t, NewBridgeStrategy("ws://localhost:3001/ws", "", "", nil).Available())
	assert.True(t, NewBridgeStrategy("", "http://localhost:3001/print", "", nil).Available())
}

func TestBridgeStrategyNoEndpointsIsUnavailableError(t *testing.T) {
	s := NewBridgeStrategy("", "", "", nil)

	_, err := s.Attempt(context.Background(), &Payload{Data: []byte("cupom"), PlainText: true})
	assert.ErrorIs(t, err, ErrTransportUnavailable)
	assert.NotContains(t, err.Error(), "<nil>")
}
