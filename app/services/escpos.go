package services

import (
	"bytes"
	"fmt"
	"image"

	qrcode "github.com/skip2/go-qrcode"
)

// ESC/POS Commands
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	SP  byte = 0x20
	NL  byte = 0x0A
)

// escposBuilder accumulates raw ESC/POS bytes for a thermal printer
type escposBuilder struct {
	buf bytes.Buffer
}

func newESCPOSBuilder() *escposBuilder {
	b := &escposBuilder{}
	b.init()
	return b
}

func (b *escposBuilder) init() {
	b.buf.Write([]byte{ESC, '@'}) // Initialize printer
	b.setCodePage()
}

func (b *escposBuilder) setCodePage() {
	// Code Page 850 (Multilingual Latin 1) for Portuguese characters
	b.buf.Write([]byte{ESC, 't', 2})
}

// removeDiacritics maps accented characters to ASCII equivalents
// as a fallback for printers with limited character sets
func removeDiacritics(text string) string {
	replacements := map[rune]rune{
		'á': 'a', 'Á': 'A', 'à': 'a', 'À': 'A',
		'â': 'a', 'Â': 'A', 'ã': 'a', 'Ã': 'A',
		'é': 'e', 'É': 'E', 'ê': 'e', 'Ê': 'E',
		'í': 'i', 'Í': 'I',
		'ó': 'o', 'Ó': 'O', 'ô': 'o', 'Ô': 'O',
		'õ': 'o', 'Õ': 'O',
		'ú': 'u', 'Ú': 'U', 'ü': 'u', 'Ü': 'U',
		'ç': 'c', 'Ç': 'C',
		'ñ': 'n', 'Ñ': 'N',
		'¿': '?', '¡': '!',
		'º': 'o', 'ª': 'a',
	}

	var result []rune
	for _, r := range text {
		if r < 128 {
			result = append(result, r)
		} else if replacement, ok := replacements[r]; ok {
			result = append(result, replacement)
		} else {
			result = append(result, ' ')
		}
	}
	return string(result)
}

func (b *escposBuilder) write(text string) {
	b.buf.WriteString(removeDiacritics(text))
}

func (b *escposBuilder) writeLine(text string) {
	b.write(text)
	b.lineFeed()
}

func (b *escposBuilder) lineFeed() {
	b.buf.WriteByte(NL)
}

func (b *escposBuilder) setAlign(align string) {
	var a byte = 0
	switch align {
	case "center":
		a = 1
	case "right":
		a = 2
	}
	b.buf.Write([]byte{ESC, 'a', a})
}

func (b *escposBuilder) setEmphasize(on bool) {
	var e byte = 0
	if on {
		e = 1
	}
	b.buf.Write([]byte{ESC, 'E', e})
}

func (b *escposBuilder) setSize(width, height byte) {
	size := ((width - 1) << 4) | (height - 1)
	b.buf.Write([]byte{GS, '!', size})
}

func (b *escposBuilder) cut() {
	b.buf.Write([]byte{GS, 'V', 66, 0})
}

func (b *escposBuilder) bytes() []byte {
	return b.buf.Bytes()
}

// writeQRCode renders content as a QR code and embeds it as a raster bitmap
func (b *escposBuilder) writeQRCode(content string, size int) error {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("could not generate QR code: %w", err)
	}
	return b.writeImage(qr.Image(size))
}

// writeImage converts an image to an ESC/POS raster bitmap.
// Uses GS v 0 which is the most widely supported raster command.
func (b *escposBuilder) writeImage(img image.Image) error {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return fmt.Errorf("empty image")
	}

	// 8 pixels per byte, 1 bit per pixel
	widthBytes := (width + 7) / 8

	b.lineFeed()

	// GS v 0 m xL xH yL yH d1...dk
	b.buf.WriteByte(GS)
	b.buf.WriteByte('v')
	b.buf.WriteByte('0')
	b.buf.WriteByte(0) // m = 0 (normal)
	b.buf.WriteByte(byte(widthBytes % 256))
	b.buf.WriteByte(byte(widthBytes / 256))
	b.buf.WriteByte(byte(height % 256))
	b.buf.WriteByte(byte(height / 256))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x += 8 {
			var packed byte
			for bit := 0; bit < 8; bit++ {
				px := x + bit
				if px >= width {
					continue
				}
				r, g, bl, _ := img.At(bounds.Min.X+px, bounds.Min.Y+y).RGBA()
				r8 := uint32(r >> 8)
				g8 := uint32(g >> 8)
				b8 := uint32(bl >> 8)

				// Standard luminance, threshold at mid-gray.
				// bit=1 prints black, bit=0 leaves white.
				gray := (299*r8 + 587*g8 + 114*b8) / 1000
				if gray < 128 {
					packed |= 1 << uint(7-bit)
				}
			}
			b.buf.WriteByte(packed)
		}
	}

	b.lineFeed()
	b.lineFeed()

	return nil
}
