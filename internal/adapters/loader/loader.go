// Package loader provides document loading adapters.
package loader

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/varvet/trove-advisor/internal/domain/entities"
	"github.com/varvet/trove-advisor/internal/domain/ports"
)

// TextLoader loads plain text documents (.txt, .md).
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path.
func (l *TextLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	data, info, err := readFile(path)
	if err != nil {
		return nil, err
	}

	doc := newDocument(path, data, info)
	doc.Text = strings.TrimSpace(string(data))
	return doc, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// PDFLoader loads PDF documents and extracts their text with a DocumentParser.
type PDFLoader struct {
	parser ports.DocumentParser
	logger *zap.Logger
}

// NewPDFLoader creates a PDF loader backed by parser.
func NewPDFLoader(parser ports.DocumentParser, logger *zap.Logger) *PDFLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFLoader{parser: parser, logger: logger}
}

// Load reads a PDF. A text extraction failure keeps the document with empty Text;
// only a read failure is an error.
func (l *PDFLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	data, info, err := readFile(path)
	if err != nil {
		return nil, err
	}

	doc := newDocument(path, data, info)
	text, err := l.parser.Parse(ctx, data, doc.FileName)
	if err != nil {
		l.logger.Warn("pdf text extraction failed", zap.String("file", doc.FileName), zap.Error(err))
		return doc, nil
	}
	doc.Text = text
	return doc, nil
}

// SupportedExtensions returns file extensions.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{".pdf"}
}

// MultiLoader combines multiple loaders.
type MultiLoader struct {
	loaders  map[string]ports.DocumentLoader
	fallback ports.DocumentLoader
}

// NewMultiLoader creates a loader that handles PDF and text files.
func NewMultiLoader(parser ports.DocumentParser, logger *zap.Logger) *MultiLoader {
	m := &MultiLoader{
		loaders:  make(map[string]ports.DocumentLoader),
		fallback: NewTextLoader(),
	}
	m.Register(NewTextLoader())
	m.Register(NewPDFLoader(parser, logger))
	return m
}

// Register maps every extension of l to l.
func (m *MultiLoader) Register(l ports.DocumentLoader) {
	for _, ext := range l.SupportedExtensions() {
		m.loaders[strings.ToLower(ext)] = l
	}
}

// Load dispatches to the appropriate loader based on extension.
func (m *MultiLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := m.loaders[ext]
	if !ok {
		loader = m.fallback
	}
	return loader.Load(ctx, path)
}

// SupportedExtensions returns all supported extensions, sorted.
func (m *MultiLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(m.loaders))
	for ext := range m.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func readFile(path string) ([]byte, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, info, nil
}

func newDocument(path string, data []byte, info os.FileInfo) *entities.Document {
	fileName := filepath.Base(path)
	return &entities.Document{
		Name:         strings.TrimSuffix(fileName, filepath.Ext(fileName)),
		FileName:     fileName,
		Path:         path,
		SizeBytes:    info.Size(),
		Content:      data,
		LastModified: info.ModTime(),
	}
}
