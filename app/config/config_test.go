package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveModeExplicitWins(t *testing.T) {
	p := PrinterConfig{PrinterName: "Generic / Text Only", Mode: PrinterModeThermal}
	assert.Equal(t, PrinterModeThermal, p.ResolveMode())

	p = PrinterConfig{PrinterName: "EPSON TM-T20", Mode: PrinterModePlainText}
	assert.Equal(t, PrinterModePlainText, p.ResolveMode())
}

func TestResolveModeNameHeuristic(t *testing.T) {
	assert.Equal(t, PrinterModePlainText, PrinterConfig{PrinterName: "Generic / Text Only"}.ResolveMode())
	assert.Equal(t, PrinterModePlainText, PrinterConfig{PrinterName: "HP Text Only Driver"}.ResolveMode())
	assert.Equal(t, PrinterModeThermal, PrinterConfig{PrinterName: "EPSON TM-T20"}.ResolveMode())
	assert.Equal(t, PrinterModeThermal, PrinterConfig{}.ResolveMode())
}

func TestWidthDefault(t *testing.T) {
	assert.Equal(t, 42, PrinterConfig{}.Width())
	assert.Equal(t, 42, PrinterConfig{PaperWidthChars: -1}.Width())
	assert.Equal(t, 32, PrinterConfig{PaperWidthChars: 32}.Width())
}

func TestCreateDefaultConfig(t *testing.T) {
	cfg := CreateDefaultConfig()
	assert.Equal(t, 42, cfg.Printer.PaperWidthChars)
	assert.True(t, cfg.Printer.AutoCut)
	assert.True(t, cfg.Printer.PrintCompanyInfo)
	assert.Equal(t, "http://localhost:3001", cfg.PrintServer.URL)
	assert.Equal(t, 3001, cfg.PrintServer.Port)
	assert.True(t, cfg.FirstRun)
}
