// Package printserver implements the companion HTTP service that sits
// next to the thermal printer and accepts receipts from the app over
// the local network.
package printserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"

	"AquaPos/app/services"
)

const zeroconfService = "_thermalprint._tcp"

// Server accepts print requests over HTTP and WebSocket and spools
// them to the local printer queue
type Server struct {
	port        int
	printerName string
	authToken   string
	advertise   bool
	logger      *services.LoggerService

	// printFn sends bytes to the printer; replaced in tests
	printFn func(ctx context.Context, data []byte, plain bool) error

	httpServer *http.Server
	upgrader   websocket.Upgrader
	mdns       *zeroconf.Server

	mu     sync.Mutex
	chunks map[string]*chunkAssembly
}

type chunkAssembly struct {
	total    int
	received map[int][]byte
}

type printResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// NewServer creates a print server for the given printer
func NewServer(port int, printerName, authToken string, advertise bool, logger *services.LoggerService) *Server {
	s := &Server{
		port:        port,
		printerName: printerName,
		authToken:   authToken,
		advertise:   advertise,
		logger:      logger,
		upgrader: websocket.Upgrader{
			// Receipts come from the app on the same LAN, not browsers
			// with credentialed sessions
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		chunks: make(map[string]*chunkAssembly),
	}
	s.printFn = s.spool
	return s
}

// Handler returns the HTTP handler, exported so tests can drive the
// server through httptest
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/print", s.handlePrint)
	mux.HandleFunc("/raw-chunk", s.handleRawChunk)
	mux.HandleFunc("/test", s.handleTest)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return s.withCORS(s.withAuth(mux))
}

// Start runs the server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	if s.advertise {
		if err := s.announce(); err != nil {
			s.logWarning("Could not advertise print server", err.Error())
		}
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	s.logInfo("Print server listening", fmt.Sprintf("port %d, printer %q", s.port, s.printerName))

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown() error {
	if s.mdns != nil {
		s.mdns.Shutdown()
		s.mdns = nil
	}
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// announce registers the server on the local network so the app can
// discover it without manual configuration
func (s *Server) announce() error {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "aquapos"
	}
	mdns, err := zeroconf.Register(hostname, zeroconfService, "local.", s.port,
		[]string{"printer=" + s.printerName}, nil)
	if err != nil {
		return err
	}
	s.mdns = mdns
	return nil
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Chunk-Index, X-Total-Chunks, X-Transfer-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" && r.URL.Path != "/status" {
			header := r.Header.Get("Authorization")
			if header != "Bearer "+s.authToken {
				s.writeJSON(w, http.StatusUnauthorized, printResponse{Success: false, Message: "unauthorized"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"server": "online",
		"printer": map[string]string{
			"name": s.printerName,
		},
	})
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		s.writeJSON(w, http.StatusBadRequest, printResponse{Success: false, Message: "missing text"})
		return
	}

	if err := s.printFn(r.Context(), []byte(req.Text), true); err != nil {
		s.logError("Print request failed", err)
		s.writeJSON(w, http.StatusInternalServerError, printResponse{Success: false, Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, printResponse{Success: true, Message: "Impresso com sucesso"})
}

// handleRawChunk assembles chunked ESC/POS payloads. Chunks arrive in
// order per transfer; the payload prints once the last one lands.
// Transfers are keyed by the X-Transfer-Id header so concurrent uploads
// from one host never interleave; senders without the header fall back
// to their address.
func (s *Server) handleRawChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index, err1 := strconv.Atoi(r.Header.Get("X-Chunk-Index"))
	total, err2 := strconv.Atoi(r.Header.Get("X-Total-Chunks"))
	if err1 != nil || err2 != nil || index < 0 || total <= 0 || index >= total {
		s.writeJSON(w, http.StatusBadRequest, printResponse{Success: false, Message: "invalid chunk headers"})
		return
	}

	data := make([]byte, 0, 1024)
	buf := make([]byte, 1024)
	for {
		n, err := r.Body.Read(buf)
		data = append(data, buf[:n]...)
		if err != nil {
			break
		}
	}

	key := r.Header.Get("X-Transfer-Id")
	if key == "" {
		key = clientKey(r)
	}
	s.mu.Lock()
	assembly, ok := s.chunks[key]
	if !ok || index == 0 {
		assembly = &chunkAssembly{total: total, received: make(map[int][]byte)}
		s.chunks[key] = assembly
	}
	assembly.received[index] = data
	complete := len(assembly.received) == assembly.total
	var payload []byte
	if complete {
		for i := 0; i < assembly.total; i++ {
			payload = append(payload, assembly.received[i]...)
		}
		delete(s.chunks, key)
	}
	s.mu.Unlock()

	if !complete {
		s.writeJSON(w, http.StatusOK, printResponse{Success: true, Message: fmt.Sprintf("chunk %d/%d", index+1, total)})
		return
	}

	if err := s.printFn(r.Context(), payload, false); err != nil {
		s.logError("Raw print failed", err)
		s.writeJSON(w, http.StatusInternalServerError, printResponse{Success: false, Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, printResponse{Success: true, Message: "Impresso com sucesso"})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	text := fmt.Sprintf("TESTE DE IMPRESSAO\nServidor local ativo\nData: %s\n\n\n",
		time.Now().Format("02/01/2006 15:04:05"))
	if err := s.printFn(r.Context(), []byte(text), true); err != nil {
		s.logError("Test print failed", err)
		s.writeJSON(w, http.StatusInternalServerError, printResponse{Success: false, Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, printResponse{Success: true, Message: "Teste enviado para a impressora"})
}

// handleWebSocket serves the bridge message channel: one JSON print
// message in, one result message out
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var msg struct {
			Type  string `json:"type"`
			Data  string `json:"data"`
			Plain bool   `json:"plain"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "THERMAL_PRINT" {
			conn.WriteJSON(map[string]interface{}{
				"type": "PRINT_RESULT", "success": false, "message": "unknown message type",
			})
			continue
		}

		payload, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			conn.WriteJSON(map[string]interface{}{
				"type": "PRINT_RESULT", "success": false, "message": "invalid payload encoding",
			})
			continue
		}

		if err := s.printFn(r.Context(), payload, msg.Plain); err != nil {
			s.logError("Bridge print failed", err)
			conn.WriteJSON(map[string]interface{}{
				"type": "PRINT_RESULT", "success": false, "message": err.Error(),
			})
			continue
		}
		conn.WriteJSON(map[string]interface{}{
			"type": "PRINT_RESULT", "success": true,
		})
	}
}

// spool writes the payload to a temp file and hands it to the OS
// printer queue
func (s *Server) spool(ctx context.Context, data []byte, plain bool) error {
	if s.printerName == "" {
		return fmt.Errorf("no printer configured")
	}

	pattern := "aquapos_srv_*.prn"
	if plain {
		pattern = "aquapos_srv_*.txt"
	}
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	tmpFile.Close()

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(runCtx, "cmd", "/C", "copy", "/B", tmpPath, s.printerName)
	} else {
		args := []string{"-P", s.printerName}
		if !plain {
			args = append(args, "-l")
		}
		cmd = exec.CommandContext(runCtx, "lpr", append(args, tmpPath)...)
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("spool command failed: %w (%s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) logInfo(message string, details ...string) {
	if s.logger != nil {
		s.logger.LogInfo(message, details...)
	}
}

func (s *Server) logWarning(message string, details ...string) {
	if s.logger != nil {
		s.logger.LogWarning(message, details...)
	}
}

func (s *Server) logError(message string, err error) {
	if s.logger != nil {
		s.logger.LogError(message, err)
	}
}
