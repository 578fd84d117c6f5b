// Package parser provides document parsing adapters.
// Clean Architecture: Adapter implementing ports.DocumentParser.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts plain text from PDF bytes.
type PDFParser struct{}

// NewPDFParser creates a PDF text extractor.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse extracts the plain text of every page. Malformed input is reported as an
// error rather than a panic.
func (p *PDFParser) Parse(ctx context.Context, data []byte, filename string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("parse %s: empty file", filename)
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse %s: malformed pdf: %v", filename, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filename, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("parse %s: read text: %w", filename, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("parse %s: read text: %w", filename, err)
	}
	return cleanText(buf.String()), nil
}

// SupportedFormats returns formats this parser handles.
func (p *PDFParser) SupportedFormats() []string {
	return []string{"pdf"}
}

// cleanText drops control garbage and collapses runs of blank lines.
func cleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	newlines := 0
	for _, r := range s {
		switch {
		case r == '\n':
			newlines++
			if newlines <= 2 {
				b.WriteRune(r)
			}
			continue
		case r == '\t':
			b.WriteRune(' ')
		case unicode.IsPrint(r):
			b.WriteRune(r)
		default:
			continue
		}
		newlines = 0
	}
	return strings.TrimSpace(b.String())
}
