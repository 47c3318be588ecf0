package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"AquaPos/app/models"
)

// FileDownloadStrategy saves the receipt to disk so it can be printed
// manually later. Last resort: it always succeeds as long as the disk
// does, but nothing reaches paper by itself.
type FileDownloadStrategy struct {
	outputDir string
	now       func() time.Time
	logger    *LoggerService
}

func NewFileDownloadStrategy(outputDir string, logger *LoggerService) *FileDownloadStrategy {
	return &FileDownloadStrategy{
		outputDir: outputDir,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *FileDownloadStrategy) Name() string {
	return "file-download"
}

func (s *FileDownloadStrategy) Available() bool {
	return true
}

func (s *FileDownloadStrategy) Replayable() bool {
	return false
}

func (s *FileDownloadStrategy) Attempt(ctx context.Context, p *Payload) (*models.PrintResult, error) {
	dir := s.outputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &TransportError{Transport: s.Name(), Err: fmt.Errorf("could not create output directory: %w", err)}
	}

	filename := ReceiptFilename(p.OrderID, p.PlainText, s.now())
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, p.Data, 0644); err != nil {
		return nil, &TransportError{Transport: s.Name(), Err: fmt.Errorf("could not write receipt file: %w", err)}
	}

	if s.logger != nil {
		s.logger.LogInfo("Receipt saved to file", path)
	}
	return &models.PrintResult{
		Success:  true,
		Method:   s.Name(),
		Message:  "Cupom salvo em arquivo, imprima manualmente",
		Filename: filename,
	}, nil
}
