package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrintServer struct {
	mu           sync.Mutex
	statusFails  int
	statusCalls  int
	printedText  string
	rawChunks    [][]byte
	chunkHeaders [][3]string
	authToken    string
}

func (f *fakePrintServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.statusCalls++
		if f.statusCalls <= f.statusFails {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"server": "online"})
	})
	mux.HandleFunc("/print", func(w http.ResponseWriter, r *http.Request) {
		if f.authToken != "" && r.Header.Get("Authorization") != "Bearer "+f.authToken {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "unauthorized"})
			return
		}
		var req struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.printedText = req.Text
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "ok"})
	})
	mux.HandleFunc("/raw-chunk", func(w http.ResponseWriter, r *http.Request) {
		data := make([]byte, r.ContentLength)
		r.Body.Read(data)
		f.mu.Lock()
		f.rawChunks = append(f.rawChunks, data)
		f.chunkHeaders = append(f.chunkHeaders, [3]string{
			r.Header.Get("X-Chunk-Index"), r.Header.Get("X-Total-Chunks"), r.Header.Get("X-Transfer-Id"),
		})
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	})
	return mux
}

func newTestServerStrategy(t *testing.T, fake *fakePrintServer, token string) *LocalPrintServerStrategy {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	s := NewLocalPrintServerStrategy(srv.URL, token, srv.Client(), nil)
	s.backoff = 5 * time.Millisecond
	return s
}

func TestPrintServerStrategyDeliversText(t *testing.T) {
	fake := &fakePrintServer{}
	s := newTestServerStrategy(t, fake, "")

	result, err := s.Attempt(context.Background(), &Payload{Data: []byte("cupom"), PlainText: true})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "print-server", result.Method)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "cupom", fake.printedText)
}

func TestPrintServerStrategyRetriesUntilHealthy(t *testing.T) {
	fake := &fakePrintServer{statusFails: 2}
	s := newTestServerStrategy(t, fake, "")

	result, err := s.Attempt(context.Background(), &Payload{Data: []byte("cupom"), PlainText: true})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "cupom", fake.printedText)
}

func TestPrintServerStrategyGivesUpAfterMaxAttempts(t *testing.T) {
	fake := &fakePrintServer{statusFails: 100}
	s := newTestServerStrategy(t, fake, "")

	_, err := s.Attempt(context.Background(), &Payload{Data: []byte("cupom"), PlainText: true})
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "print-server", transportErr.Transport)
	assert.Equal(t, serverMaxAttempts, fake.statusCalls)
}

func TestPrintServerStrategyChunksRawPayload(t *testing.T) {
	fake := &fakePrintServer{}
	s := newTestServerStrategy(t, fake, "")

	raw := make([]byte, rawChunkSize*2+100)
	for i := range raw {
		raw[i] = byte(i % 251)
	}

	result, err := s.Attempt(context.Background(), &Payload{Data: raw, PlainText: false})
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, fake.rawChunks, 3)
	var reassembled []byte
	for _, chunk := range fake.rawChunks {
		reassembled = append(reassembled, chunk...)
	}
	assert.Equal(t, raw, reassembled)

	// All chunks of the upload carry the same transfer id
	require.NotEmpty(t, fake.chunkHeaders[0][2])
	for i, headers := range fake.chunkHeaders {
		assert.Equal(t, strconv.Itoa(i), headers[0])
		assert.Equal(t, "3", headers[1])
		assert.Equal(t, fake.chunkHeaders[0][2], headers[2])
	}
}

func TestPrintServerStrategySendsAuthToken(t *testing.T) {
	fake := &fakePrintServer{authToken: "segredo"}
	s := newTestServerStrategy(t, fake, "segredo")

	result, err := s.Attempt(context.Background(), &Payload{Data: []byte("cupom"), PlainText: true})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestPrintServerStrategyAvailability(t *testing.T) {
	assert.False(t, NewLocalPrintServerStrategy("", "", nil, nil).Available())
	assert.True(t, NewLocalPrintServerStrategy("http://localhost:3001", "", nil, nil).Available())
}
