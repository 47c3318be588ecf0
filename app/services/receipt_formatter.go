package services

import (
	"fmt"
	"strings"
	"time"

	"AquaPos/app/config"
	"AquaPos/app/models"
)

// ReceiptFormatter turns an order into its printable representations:
// formatted plain text for generic drivers and raw ESC/POS bytes for
// thermal printers. Output depends only on its inputs and the clock.
type ReceiptFormatter struct {
	now func() time.Time
}

// NewReceiptFormatter creates a formatter using the system clock
func NewReceiptFormatter() *ReceiptFormatter {
	return &ReceiptFormatter{now: time.Now}
}

// NewReceiptFormatterWithClock creates a formatter with a fixed clock,
// used by test prints and file naming
func NewReceiptFormatterWithClock(now func() time.Time) *ReceiptFormatter {
	return &ReceiptFormatter{now: now}
}

// formatMoney renders an amount as Brazilian currency: R$ 5,00
func formatMoney(amount float64) string {
	return "R$ " + strings.ReplaceAll(fmt.Sprintf("%.2f", amount), ".", ",")
}

// wrapText breaks text into lines of at most width characters,
// accumulating whole words greedily. Words longer than the width are
// hard-broken so no line ever exceeds it.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		for runeLen(word) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			runes := []rune(word)
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
		}
		if word == "" {
			continue
		}
		switch {
		case current == "":
			current = word
		case runeLen(current)+1+runeLen(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// centerText pads text on the left so it appears centered on the paper
func centerText(text string, width int) string {
	pad := (width - runeLen(text)) / 2
	if pad <= 0 {
		return text
	}
	return strings.Repeat(" ", pad) + text
}

func runeLen(s string) int {
	return len([]rune(s))
}

// splitFooterLines splits configured footer text on the literal
// two-character sequence \n, the line break convention used in the
// settings screen
func splitFooterLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	for _, part := range strings.Split(text, `\n`) {
		part = strings.TrimSpace(part)
		if part != "" {
			lines = append(lines, part)
		}
	}
	return lines
}

// ReceiptFilename returns the download filename for a receipt file.
// The timestamp is UTC with colons replaced by dashes so the name is
// valid on every filesystem.
func ReceiptFilename(orderID uint, plain bool, t time.Time) string {
	ext := "prn"
	if plain {
		ext = "txt"
	}
	return fmt.Sprintf("cupom_%d_%s.%s", orderID, t.UTC().Format("2006-01-02T15-04-05"), ext)
}

func itemName(item models.OrderItem) string {
	if item.ProductName != "" {
		return item.ProductName
	}
	return fmt.Sprintf("Produto %d", item.ProductID)
}

// printableItems drops lines whose product record disappeared after the
// order was created and recomputes each subtotal and the receipt total
// from quantity and unit price. The stored order total is never trusted.
func printableItems(order *models.Order) ([]models.OrderItem, float64) {
	items := make([]models.OrderItem, 0, len(order.Items))
	var total float64
	for _, item := range order.Items {
		if item.ProductName == "" {
			continue
		}
		item.Subtotal = float64(item.Quantity) * item.UnitPrice
		total += item.Subtotal
		items = append(items, item)
	}
	return items, total
}

func validateOrder(order *models.Order) error {
	if order == nil {
		return &FormattingError{Reason: "order is nil"}
	}
	for _, item := range order.Items {
		if item.Quantity <= 0 {
			return &FormattingError{Reason: fmt.Sprintf("item %q has non-positive quantity", itemName(item))}
		}
	}
	return nil
}

// FormatPlainText renders the receipt as formatted text with no control
// bytes, for generic text-only printer drivers and file output
func (f *ReceiptFormatter) FormatPlainText(order *models.Order, customer *models.Customer, cfg *config.AppConfig) (string, error) {
	if err := validateOrder(order); err != nil {
		return "", err
	}

	width := cfg.Printer.Width()
	heavy := strings.Repeat("=", width)
	light := strings.Repeat("-", width)

	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(heavy)
	line(centerText(strings.ToUpper(cfg.Company.Name), width))
	if cfg.Printer.PrintCompanyInfo {
		for _, l := range wrapText(cfg.Company.Address, width) {
			line(centerText(l, width))
		}
		if cfg.Company.City != "" {
			line(centerText(cfg.Company.City, width))
		}
		if cfg.Company.Phone != "" {
			line(centerText("Tel: "+cfg.Company.Phone, width))
		}
		if cfg.Company.TaxID != "" {
			line(centerText("CNPJ: "+cfg.Company.TaxID, width))
		}
	}
	line(heavy)
	line("")
	line(fmt.Sprintf("Pedido: %d", order.ID))
	line("Data: " + order.CreatedAt.Format("02/01/2006 15:04"))
	line("")

	line(light)
	line("CLIENTE:")
	if customer != nil {
		line("Nome: " + customer.Name)
		if customer.Phone != "" {
			line("Telefone: " + customer.Phone)
		}
		if customer.Address != "" {
			for _, l := range wrapText("Endereco: "+customer.Address, width) {
				line(l)
			}
		}
	} else {
		line("CONSUMIDOR FINAL")
	}
	line(light)
	line("")

	items, total := printableItems(order)
	line("ITENS:")
	for _, item := range items {
		for _, l := range wrapText(fmt.Sprintf("%dx %s", item.Quantity, item.ProductName), width) {
			line(l)
		}
		line("    " + formatMoney(item.UnitPrice) + " cada")
		line("    Subtotal: " + formatMoney(item.Subtotal))
	}
	line("")

	line(light)
	line("TOTAL: " + formatMoney(total))
	line(light)

	if order.Notes != "" {
		line("")
		line("OBSERVACOES:")
		for _, l := range wrapText(order.Notes, width) {
			line(l)
		}
	}

	footer := splitFooterLines(cfg.Printer.FooterText)
	if cfg.Printer.ExtraMessage != "" {
		footer = append(footer, cfg.Printer.ExtraMessage)
	}
	if len(footer) > 0 {
		line("")
		for _, l := range footer {
			for _, wrapped := range wrapText(l, width) {
				line(centerText(wrapped, width))
			}
		}
	}

	return b.String(), nil
}

// FormatThermal renders the receipt as raw ESC/POS bytes for direct
// delivery to a thermal printer
func (f *ReceiptFormatter) FormatThermal(order *models.Order, customer *models.Customer, cfg *config.AppConfig) ([]byte, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}

	width := cfg.Printer.Width()
	esc := newESCPOSBuilder()

	esc.setAlign("center")
	esc.setEmphasize(true)
	esc.setSize(2, 2)
	esc.writeLine(strings.ToUpper(cfg.Company.Name))
	esc.setSize(1, 1)
	esc.setEmphasize(false)
	if cfg.Printer.PrintCompanyInfo {
		for _, l := range wrapText(cfg.Company.Address, width) {
			esc.writeLine(l)
		}
		if cfg.Company.City != "" {
			esc.writeLine(cfg.Company.City)
		}
		if cfg.Company.Phone != "" {
			esc.writeLine("Tel: " + cfg.Company.Phone)
		}
		if cfg.Company.TaxID != "" {
			esc.writeLine("CNPJ: " + cfg.Company.TaxID)
		}
	}
	esc.lineFeed()

	esc.setAlign("left")
	esc.setEmphasize(true)
	esc.write(fmt.Sprintf("Pedido: %d", order.ID))
	esc.setEmphasize(false)
	esc.lineFeed()
	esc.writeLine("Data: " + order.CreatedAt.Format("02/01/2006 15:04"))
	esc.writeLine(strings.Repeat("-", width))

	esc.setEmphasize(true)
	esc.writeLine("CLIENTE:")
	esc.setEmphasize(false)
	if customer != nil {
		esc.writeLine(customer.Name)
		if customer.Phone != "" {
			esc.writeLine(customer.Phone)
		}
		if customer.Address != "" {
			for _, l := range wrapText(customer.Address, width) {
				esc.writeLine(l)
			}
		}
	} else {
		esc.writeLine("CONSUMIDOR FINAL")
	}
	esc.writeLine(strings.Repeat("-", width))

	esc.setEmphasize(true)
	esc.writeLine("ITENS:")
	esc.setEmphasize(false)
	items, total := printableItems(order)
	for _, item := range items {
		for _, l := range wrapText(fmt.Sprintf("%dx %s", item.Quantity, item.ProductName), width) {
			esc.writeLine(l)
		}
		esc.writeLine("    " + formatMoney(item.UnitPrice) + " cada")
		esc.writeLine("    Subtotal: " + formatMoney(item.Subtotal))
	}
	esc.writeLine(strings.Repeat("-", width))

	esc.setEmphasize(true)
	esc.setSize(2, 1)
	esc.writeLine("TOTAL: " + formatMoney(total))
	esc.setSize(1, 1)
	esc.setEmphasize(false)

	if order.Notes != "" {
		esc.lineFeed()
		esc.setEmphasize(true)
		esc.writeLine("OBSERVACOES:")
		esc.setEmphasize(false)
		for _, l := range wrapText(order.Notes, width) {
			esc.writeLine(l)
		}
	}

	footer := splitFooterLines(cfg.Printer.FooterText)
	if cfg.Printer.ExtraMessage != "" {
		footer = append(footer, cfg.Printer.ExtraMessage)
	}
	if len(footer) > 0 {
		esc.lineFeed()
		esc.setAlign("center")
		for _, l := range footer {
			for _, wrapped := range wrapText(l, width) {
				esc.writeLine(wrapped)
			}
		}
	}

	if cfg.Printer.QRContent != "" {
		esc.setAlign("center")
		if err := esc.writeQRCode(cfg.Printer.QRContent, 200); err != nil {
			return nil, err
		}
	}

	esc.lineFeed()
	esc.lineFeed()
	esc.lineFeed()
	if cfg.Printer.AutoCut {
		esc.cut()
	}

	return esc.bytes(), nil
}

// TestReceiptPlain renders a short test receipt as plain text
func (f *ReceiptFormatter) TestReceiptPlain(cfg *config.AppConfig) string {
	width := cfg.Printer.Width()
	var b strings.Builder
	b.WriteString(strings.Repeat("=", width) + "\n")
	b.WriteString(centerText("TESTE DE IMPRESSAO", width) + "\n")
	b.WriteString(centerText(strings.ToUpper(cfg.Company.Name), width) + "\n")
	b.WriteString(strings.Repeat("=", width) + "\n")
	b.WriteString("Data: " + f.now().Format("02/01/2006 15:04:05") + "\n")
	b.WriteString(fmt.Sprintf("Largura: %d caracteres\n", width))
	b.WriteString("\nImpressora configurada corretamente!\n")
	return b.String()
}

// TestReceiptThermal renders a short test receipt as ESC/POS bytes
func (f *ReceiptFormatter) TestReceiptThermal(cfg *config.AppConfig) []byte {
	width := cfg.Printer.Width()
	esc := newESCPOSBuilder()
	esc.setAlign("center")
	esc.setEmphasize(true)
	esc.setSize(2, 2)
	esc.writeLine("TESTE DE IMPRESSAO")
	esc.setSize(1, 1)
	esc.setEmphasize(false)
	esc.writeLine(strings.ToUpper(cfg.Company.Name))
	esc.lineFeed()
	esc.setAlign("left")
	esc.writeLine("Data: " + f.now().Format("02/01/2006 15:04:05"))
	esc.writeLine(fmt.Sprintf("Largura: %d caracteres", width))
	esc.lineFeed()
	esc.writeLine("Impressora configurada corretamente!")
	esc.lineFeed()
	esc.lineFeed()
	esc.lineFeed()
	if cfg.Printer.AutoCut {
		esc.cut()
	}
	return esc.bytes()
}
