// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
package usecases

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/varvet/trove-advisor/internal/domain/entities"
	"github.com/varvet/trove-advisor/internal/domain/ports"
)

const (
	DefaultReloadDebounce = time.Second

	largeDocumentBytes = 10 << 20
	largeLibraryBytes  = 20 << 20
)

// documentSet is an immutable snapshot. Readers never observe a partial reload.
type documentSet struct {
	docs      []entities.Document
	loadedAt  time.Time
	totalSize int64
}

// DocumentStore loads reference documents from a directory and keeps them in memory.
type DocumentStore struct {
	dir        string
	extensions []string
	loader     ports.DocumentLoader
	debounce   time.Duration
	logger     *zap.Logger

	current  atomic.Pointer[documentSet]
	reloadMu sync.Mutex
}

// DocumentStoreConfig configures a DocumentStore.
type DocumentStoreConfig struct {
	Dir        string
	Extensions []string      // default [".pdf"]
	Debounce   time.Duration // default 1s
}

// NewDocumentStore creates an empty store. Call LoadAll to populate it.
func NewDocumentStore(cfg DocumentStoreConfig, loader ports.DocumentLoader, logger *zap.Logger) *DocumentStore {
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".pdf"}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultReloadDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	exts := make([]string, len(cfg.Extensions))
	for i, e := range cfg.Extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[i] = e
	}

	s := &DocumentStore{
		dir:        cfg.Dir,
		extensions: exts,
		loader:     loader,
		debounce:   cfg.Debounce,
		logger:     logger.Named("documents"),
	}
	s.current.Store(&documentSet{})
	return s
}

// LoadAll scans the directory (non-recursively), loads every matching file and
// swaps the new set in. A missing directory is created and yields an empty set.
// Documents that fail to load are logged and skipped.
func (s *DocumentStore) LoadAll(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create documents directory %s: %w", s.dir, err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read documents directory %s: %w", s.dir, err)
	}

	next := &documentSet{loadedAt: time.Now()}
	for _, entry := range entries {
		if entry.IsDir() || !s.matches(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(s.dir, entry.Name())
		doc, err := s.loader.Load(ctx, path)
		if err != nil {
			s.logger.Warn("skipping document", zap.Error(&entities.DocumentLoadError{Path: path, Err: err}))
			continue
		}
		next.docs = append(next.docs, *doc)
		next.totalSize += doc.SizeBytes

		if doc.SizeBytes > largeDocumentBytes {
			s.logger.Warn("large document may exceed the model context",
				zap.String("file", doc.FileName),
				zap.String("size", humanize.IBytes(uint64(doc.SizeBytes))))
		}
	}

	sort.Slice(next.docs, func(i, j int) bool { return next.docs[i].FileName < next.docs[j].FileName })
	s.current.Store(next)

	if next.totalSize > largeLibraryBytes {
		s.logger.Warn("document library is large",
			zap.Int("documents", len(next.docs)),
			zap.String("total", humanize.IBytes(uint64(next.totalSize))))
	}
	s.logger.Info("documents loaded",
		zap.String("dir", s.dir),
		zap.Int("count", len(next.docs)),
		zap.Strings("names", next.names()))
	return nil
}

// Reload re-runs LoadAll.
func (s *DocumentStore) Reload(ctx context.Context) error {
	return s.LoadAll(ctx)
}

// Watch subscribes to directory changes and reloads after the debounce interval has
// passed without further events. It blocks until ctx is done.
func (s *DocumentStore) Watch(ctx context.Context, watcher ports.FileWatcher) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create documents directory %s: %w", s.dir, err)
	}

	events, err := watcher.Watch(ctx, s.dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	defer watcher.Stop()

	timer := time.NewTimer(s.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.logger.Debug("document change",
				zap.String("file", filepath.Base(ev.Path)),
				zap.Stringer("op", ev.Operation))
			timer.Reset(s.debounce)
		case <-timer.C:
			if err := s.Reload(ctx); err != nil {
				s.logger.Error("document reload failed", zap.Error(err))
			}
		}
	}
}

// List returns the current documents, sorted by file name.
func (s *DocumentStore) List() []entities.Document {
	docs := s.current.Load().docs
	return docs[:len(docs):len(docs)]
}

// Count returns the number of loaded documents.
func (s *DocumentStore) Count() int {
	return len(s.current.Load().docs)
}

// HasAny reports whether at least one document is loaded.
func (s *DocumentStore) HasAny() bool {
	return s.Count() > 0
}

// Names returns the display names of the loaded documents.
func (s *DocumentStore) Names() []string {
	return s.current.Load().names()
}

// Get returns the document with the given file name.
func (s *DocumentStore) Get(fileName string) (entities.Document, bool) {
	for _, d := range s.current.Load().docs {
		if d.FileName == fileName {
			return d, true
		}
	}
	return entities.Document{}, false
}

// Metadata returns the public view of every loaded document.
func (s *DocumentStore) Metadata() []entities.DocumentMetadata {
	docs := s.current.Load().docs
	out := make([]entities.DocumentMetadata, len(docs))
	for i, d := range docs {
		out[i] = entities.DocumentMetadata{
			Name:         d.Name,
			FileName:     d.FileName,
			Size:         humanize.IBytes(uint64(d.SizeBytes)),
			SizeBytes:    d.SizeBytes,
			LastModified: d.LastModified,
		}
	}
	return out
}

// Directory returns the configured documents directory.
func (s *DocumentStore) Directory() string {
	return s.dir
}

// LoadedAt returns when the current set was loaded. Zero before the first load.
func (s *DocumentStore) LoadedAt() time.Time {
	return s.current.Load().loadedAt
}

func (s *DocumentStore) matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range s.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (ds *documentSet) names() []string {
	names := make([]string, len(ds.docs))
	for i, d := range ds.docs {
		names[i] = d.Name
	}
	return names
}
