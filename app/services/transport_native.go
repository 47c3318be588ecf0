package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"AquaPos/app/models"
)

// CommandRunner executes an external command and returns its combined
// output. It exists so print spooling can be exercised without a real
// printer attached.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the host
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NativeBridgeStrategy spools the receipt straight to an OS printer
// queue. Only available when the app runs with direct access to the
// host spooler (the desktop build).
type NativeBridgeStrategy struct {
	runner      CommandRunner
	printerName string
	logger      *LoggerService
}

func NewNativeBridgeStrategy(runner CommandRunner, printerName string, logger *LoggerService) *NativeBridgeStrategy {
	return &NativeBridgeStrategy{
		runner:      runner,
		printerName: printerName,
		logger:      logger,
	}
}

func (s *NativeBridgeStrategy) Name() string {
	return "native-bridge"
}

func (s *NativeBridgeStrategy) Available() bool {
	return s.runner != nil && s.printerName != ""
}

func (s *NativeBridgeStrategy) Replayable() bool {
	return true
}

func (s *NativeBridgeStrategy) Attempt(ctx context.Context, p *Payload) (*models.PrintResult, error) {
	pattern := "aquapos_*.prn"
	if p.PlainText {
		pattern = "aquapos_*.txt"
	}
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, &TransportError{Transport: s.Name(), Err: fmt.Errorf("failed to create temp file: %w", err)}
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(p.Data); err != nil {
		tmpFile.Close()
		return nil, &TransportError{Transport: s.Name(), Err: fmt.Errorf("failed to write temp file: %w", err)}
	}
	tmpFile.Close()

	runCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	name, args := spoolCommand(s.printerName, tmpPath, p.PlainText)
	output, err := s.runner.Run(runCtx, name, args...)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Transport: s.Name(), Timeout: deliveryTimeout}
		}
		return nil, &TransportError{
			Transport: s.Name(),
			Err:       fmt.Errorf("spool command failed: %w (%s)", err, strings.TrimSpace(string(output))),
		}
	}

	if s.logger != nil {
		s.logger.LogInfo("Receipt spooled to printer", s.printerName)
	}
	return &models.PrintResult{
		Success: true,
		Method:  s.Name(),
		Message: "Enviado para " + s.printerName,
	}, nil
}

// spoolCommand builds the platform command that sends a file to the
// named printer queue
func spoolCommand(printerName, path string, plain bool) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", "copy", "/B", path, printerName}
	}
	args := []string{"-P", printerName}
	if !plain {
		// -l passes the file through untouched so ESC/POS bytes survive
		args = append(args, "-l")
	}
	return "lpr", append(args, path)
}
