package services

import (
	"context"
	"fmt"
	"html"
	"os"
	"time"

	"github.com/pkg/browser"

	"AquaPos/app/models"
)

// FileOpener opens a file with the system default handler
type FileOpener interface {
	Open(path string) error
}

// BrowserOpener opens files through the host browser
type BrowserOpener struct{}

func (BrowserOpener) Open(path string) error {
	return browser.OpenFile(path)
}

// renderPrintHTML wraps receipt text in a minimal monospace page with
// print and save-as-text buttons. When autoPrint is set the page also
// triggers the print dialog on load and closes itself afterwards.
func renderPrintHTML(text, filename string, autoPrint bool) string {
	auto := ""
	if autoPrint {
		auto = "window.onload=function(){window.print();setTimeout(function(){window.close()},100)};"
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Cupom</title>
<style>
body{margin:0}
pre{font-family:monospace;font-size:12px;white-space:pre;margin:0}
.toolbar{margin-bottom:10px}
@media print{.toolbar{display:none}}
</style>
</head>
<body>
<div class="toolbar">
<button onclick="window.print()">Imprimir</button>
<button onclick="window.close()">Fechar</button>
<button onclick="downloadAsText()">Baixar TXT</button>
</div>
<pre>%s</pre>
<script>
function downloadAsText(){
var blob=new Blob([document.querySelector('pre').textContent],{type:'text/plain;charset=utf-8'});
var a=document.createElement('a');
a.href=URL.createObjectURL(blob);
a.download=%q;
document.body.appendChild(a);
a.click();
document.body.removeChild(a);
}
%s
</script>
</body>
</html>
`, html.EscapeString(text), filename, auto)
}

// AutoThermalStrategy prints without user interaction by writing a
// self-printing page and handing it to the system. Used in kiosk
// setups where the thermal printer is the system default. The caller
// is never blocked; the page is cleaned up after a grace delay.
type AutoThermalStrategy struct {
	opener       FileOpener
	enabled      bool
	cleanupDelay time.Duration
	logger       *LoggerService
}

func NewAutoThermalStrategy(opener FileOpener, enabled bool, logger *LoggerService) *AutoThermalStrategy {
	return &AutoThermalStrategy{
		opener:       opener,
		enabled:      enabled,
		cleanupDelay: 2 * time.Second,
		logger:       logger,
	}
}

func (s *AutoThermalStrategy) Name() string {
	return "auto-thermal"
}

func (s *AutoThermalStrategy) Available() bool {
	return s.enabled && s.opener != nil
}

func (s *AutoThermalStrategy) Replayable() bool {
	return false
}

func (s *AutoThermalStrategy) Attempt(ctx context.Context, p *Payload) (*models.PrintResult, error) {
	text := p.ReceiptText()
	if text == "" {
		return nil, &TransportError{Transport: s.Name(), Err: fmt.Errorf("payload has no text rendition")}
	}

	tmpFile, err := os.CreateTemp("", "aquapos_auto_*.html")
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
		return nil, &TransportError{Transport: s.Name(), Err: fmt.Errorf("could not open print surface: %w", err)}
	}

	// Give the handler time to load the page before removing it
	go func() {
		time.Sleep(s.cleanupDelay)
		if err := os.Remove(tmpPath); err != nil && s.logger != nil {
			s.logger.LogWarning("Could not clean up print surface", err.Error())
		}
	}()

	return &models.PrintResult{
		Success: true,
		Method:  s.Name(),
		Message: "Impressao automatica disparada",
	}, nil
}
