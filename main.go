package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"AquaPos/app/config"
	"AquaPos/app/database"
	"AquaPos/app/printserver"
	"AquaPos/app/services"
)

func main() {
	runServer := flag.Bool("print-server", false, "run the companion print server")
	testPrint := flag.Bool("test-print", false, "send a test receipt and exit")
	printOrder := flag.Uint("print-order", 0, "print the receipt for the given order id and exit")
	processQueue := flag.Bool("process-queue", false, "replay queued receipts and exit")
	flag.Parse()

	// .env is optional, settings normally come from the config file
	godotenv.Load()

	logger := services.NewLoggerService()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.LogFatal("Could not load configuration", err)
	}

	if *runServer {
		runPrintServer(cfg, logger)
		return
	}

	db, err := database.Initialize(cfg.DBPath)
	if err != nil {
		logger.LogFatal("Could not open database", err)
	}

	orchestrator := buildOrchestrator(cfg, db, logger)
	orderSvc := services.NewOrderService(db)
	ctx := context.Background()

	switch {
	case *testPrint:
		result, err := orchestrator.TestPrint(ctx)
		if err != nil {
			logger.LogFatal("Test print failed", err)
		}
		fmt.Printf("%s: %s\n", result.Method, result.Message)

	case *printOrder != 0:
		order, customer, err := orderSvc.LoadForPrint(*printOrder)
		if err != nil {
			logger.LogFatal("Could not load order", err)
		}
		result, err := orchestrator.PrintOrder(ctx, order, customer)
		if err != nil {
			logger.LogFatal("Print failed", err)
		}
		fmt.Printf("%s: %s\n", result.Method, result.Message)

	case *processQueue:
		delivered, failed, err := orchestrator.ProcessQueue(ctx)
		if err != nil {
			logger.LogFatal("Queue replay failed", err)
		}
		fmt.Printf("delivered: %d, failed: %d\n", delivered, failed)

	default:
		worker := services.StartReplayWorker(orchestrator, time.Minute, logger)
		defer worker.Stop()

		logger.LogInfo("AquaPos running", "Ctrl+C to exit")
		waitForSignal()
	}
}

// buildOrchestrator wires the transport chain in priority order:
// direct spool, local print server, WebSocket bridge, kiosk
// auto-print, browser dialog, file fallback.
func buildOrchestrator(cfg *config.AppConfig, db *gorm.DB, logger *services.LoggerService) *services.PrintOrchestrator {
	formatter := services.NewReceiptFormatter()
	queue := services.NewRetryQueue(db, logger)
	opener := services.BrowserOpener{}

	strategies := []services.TransportStrategy{
		services.NewNativeBridgeStrategy(services.ExecRunner{}, cfg.Printer.PrinterName, logger),
		services.NewLocalPrintServerStrategy(cfg.PrintServer.URL, cfg.PrintServer.AuthToken, nil, logger),
		services.NewBridgeStrategy(cfg.PrintServer.WebSocketURL, "", cfg.PrintServer.AuthToken, logger),
		services.NewAutoThermalStrategy(opener, cfg.Printer.Kiosk, logger),
		services.NewBrowserDialogStrategy(opener, hasDisplay(), logger),
		services.NewFileDownloadStrategy(cfg.Printer.OutputDir, logger),
	}

	return services.NewPrintOrchestrator(formatter, strategies, queue, config.LoadConfig, logger)
}

func runPrintServer(cfg *config.AppConfig, logger *services.LoggerService) {
	server := printserver.NewServer(
		cfg.PrintServer.Port,
		cfg.Printer.PrinterName,
		cfg.PrintServer.AuthToken,
		cfg.PrintServer.Advertise,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		waitForSignal()
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.LogFatal("Print server stopped", err)
	}
}

func hasDisplay() bool {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
}
