package services

import (
	"context"
	"fmt"

	"AquaPos/app/config"
	"AquaPos/app/models"
)

// ConfigProvider supplies the current settings to the print pipeline
type ConfigProvider func() (*config.AppConfig, error)

// PrintOrchestrator runs a print request through the transport chain.
// Formatting errors abort the request; transport errors never do. When
// every transport fails the receipt goes into the retry queue and the
// caller still gets a result describing the degraded outcome.
type PrintOrchestrator struct {
	formatter  *ReceiptFormatter
	strategies []TransportStrategy
	queue      *RetryQueue
	loadConfig ConfigProvider
	logger     *LoggerService
}

func NewPrintOrchestrator(formatter *ReceiptFormatter, strategies []TransportStrategy, queue *RetryQueue, loadConfig ConfigProvider, logger *LoggerService) *PrintOrchestrator {
	return &PrintOrchestrator{
		formatter:  formatter,
		strategies: strategies,
		queue:      queue,
		loadConfig: loadConfig,
		logger:     logger,
	}
}

// PrintOrder formats the order receipt and delivers it through the
// first transport that takes it
func (o *PrintOrchestrator) PrintOrder(ctx context.Context, order *models.Order, customer *models.Customer) (*models.PrintResult, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("could not load settings: %w", err)
	}

	payload, err := o.buildPayload(order, customer, cfg)
	if err != nil {
		return nil, err
	}

	result, diagnostics := o.deliver(ctx, payload)
	if result != nil {
		result.Diagnostics = diagnostics
		return result, nil
	}

	// Every transport failed. Queue the receipt so it still reaches
	// paper once a printer comes back.
	degraded := &models.PrintResult{
		Method:      "queued",
		Message:     "Nao foi possivel imprimir agora, cupom adicionado a fila de reimpressao",
		Diagnostics: diagnostics,
	}
	if o.queue != nil {
		job, qerr := o.queue.Enqueue(payload)
		if qerr != nil {
			o.logError("Could not queue undeliverable receipt", qerr)
			degraded.Error = qerr.Error()
			return degraded, nil
		}
		degraded.Success = true
		degraded.Queued = true
		degraded.JobID = job.JobID
		return degraded, nil
	}

	degraded.Error = "nenhum transporte disponivel"
	return degraded, nil
}

// TestPrint sends a short test receipt through the transport chain.
// Test prints are never queued; failure is reported directly.
func (o *PrintOrchestrator) TestPrint(ctx context.Context) (*models.PrintResult, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("could not load settings: %w", err)
	}

	plain := cfg.Printer.ResolveMode() == config.PrinterModePlainText
	payload := &Payload{PlainText: plain, Test: true, Text: o.formatter.TestReceiptPlain(cfg)}
	if plain {
		payload.Data = []byte(payload.Text)
	} else {
		payload.Data = o.formatter.TestReceiptThermal(cfg)
	}

	result, diagnostics := o.deliver(ctx, payload)
	if result != nil {
		result.Diagnostics = diagnostics
		return result, nil
	}
	return &models.PrintResult{
		Method:      "none",
		Message:     "Nenhuma impressora respondeu ao teste",
		Diagnostics: diagnostics,
	}, nil
}

// ProcessQueue replays pending jobs through the unattended transports.
// Returns how many jobs were delivered and how many are still pending
// or were abandoned.
func (o *PrintOrchestrator) ProcessQueue(ctx context.Context) (delivered, failed int, err error) {
	if o.queue == nil {
		return 0, 0, nil
	}
	jobs, err := o.queue.Pending()
	if err != nil {
		return 0, 0, err
	}

	for i := range jobs {
		job := &jobs[i]
		payload := &Payload{
			OrderID:   job.OrderID,
			Data:      job.Payload,
			PlainText: job.PlainText,
		}

		var lastErr error
		ok := false
		for _, s := range o.strategies {
			if !s.Replayable() || !s.Available() {
				continue
			}
			if _, aerr := s.Attempt(ctx, payload); aerr != nil {
				lastErr = aerr
				continue
			}
			ok = true
			break
		}

		if ok {
			if merr := o.queue.MarkDelivered(job); merr != nil {
				o.logError("Could not mark print job delivered", merr)
			}
			delivered++
			continue
		}

		failed++
		if lastErr == nil {
			lastErr = ErrTransportUnavailable
		}
		if ferr := o.queue.RecordFailure(job, lastErr); ferr != nil && ferr != ErrJobAbandoned {
			o.logError("Could not record print job failure", ferr)
		}

		select {
		case <-ctx.Done():
			return delivered, failed, ctx.Err()
		default:
		}
	}

	return delivered, failed, nil
}

func (o *PrintOrchestrator) buildPayload(order *models.Order, customer *models.Customer, cfg *config.AppConfig) (*Payload, error) {
	// The text rendition is always produced. Raw channels send the
	// ESC/POS bytes; browser surfaces render the text.
	text, err := o.formatter.FormatPlainText(order, customer, cfg)
	if err != nil {
		return nil, err
	}

	plain := cfg.Printer.ResolveMode() == config.PrinterModePlainText
	data := []byte(text)
	if !plain {
		raw, err := o.formatter.FormatThermal(order, customer, cfg)
		if err != nil {
			return nil, err
		}
		data = raw
	}

	return &Payload{
		OrderID:   order.ID,
		Data:      data,
		Text:      text,
		PlainText: plain,
	}, nil
}

// deliver walks the strategy chain and returns the first successful
// result, plus one diagnostic line per strategy that was skipped or
// failed along the way
func (o *PrintOrchestrator) deliver(ctx context.Context, payload *Payload) (*models.PrintResult, []string) {
	var diagnostics []string
	for _, s := range o.strategies {
		if !s.Available() {
			diagnostics = append(diagnostics, s.Name()+": indisponivel")
			continue
		}

		result, err := s.Attempt(ctx, payload)
		if err != nil {
			diagnostics = append(diagnostics, err.Error())
			o.logError("Transport failed, trying next", err)
			continue
		}
		if o.logger != nil {
			o.logger.LogInfo("Receipt delivered", result.Method)
		}
		return result, diagnostics
	}
	return nil, diagnostics
}

func (o *PrintOrchestrator) logError(message string, err error) {
	if o.logger != nil {
		o.logger.LogError(message, err)
	}
}
