package services

import (
	"context"
	"fmt"
	"os"

	"AquaPos/app/models"
)

// BrowserDialogStrategy opens the receipt in the system browser so the
// user can pick a printer from the native print dialog. Needs someone
// in front of the screen, so it never participates in queue replay.
type BrowserDialogStrategy struct {
	opener      FileOpener
	interactive bool
	logger      *LoggerService
}

func NewBrowserDialogStrategy(opener FileOpener, interactive bool, logger *LoggerService) *BrowserDialogStrategy {
	return &BrowserDialogStrategy{
		opener:      opener,
		interactive: interactive,
		logger:      logger,
	}
}

func (s *BrowserDialogStrategy) Name() string {
	return "browser-dialog"
}

func (s *BrowserDialogStrategy) Available() bool {
	return s.interactive && s.opener != nil
}

func (s *BrowserDialogStrategy) Replayable() bool {
	return false
}

func (s *BrowserDialogStrategy) Attempt(ctx context.Context, p *Payload) (*models.PrintResult, error) {
	text := p.ReceiptText()
	if text == "" {
		return nil, &TransportError{Transport: s.Name(), Err: fmt.Errorf("payload has no text rendition")}
	}

	tmpFile, err := os.CreateTemp("", "aquapos_dialog_*.html")
	if err != nil {
		return nil, &TransportError{Transport: s.Name(), Err: err}
	}
	tmpPath := tmpFile.Name()
	if _, err := tmpFile.WriteString(renderPrintHTML(text, fmt.Sprintf("pedido_%d.txt", p.OrderID), true)); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return nil, &TransportError{Transport: s.Name(), Err: err}
	}
	tmpFile.Close()

	if err := s.opener.Open(tmpPath); err != nil {
		os.Remove(tmpPath)
		return nil, &TransportError{Transport: s.Name(), Err: fmt.Errorf("could not open print dialog: %w", err)}
	}

	if s.logger != nil {
		s.logger.LogInfo("Print dialog opened", tmpPath)
	}
	return &models.PrintResult{
		Success: true,
		Method:  s.Name(),
		Message: "Dialogo de impressao aberto",
	}, nil
}
