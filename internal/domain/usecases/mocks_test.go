package usecases

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/varvet/trove-advisor/internal/domain/entities"
	"github.com/varvet/trove-advisor/internal/domain/ports"
)

// mockLoader implements ports.DocumentLoader; the file body becomes the text.
// Files whose name starts with "bad" fail to load.
type mockLoader struct{}

func (mockLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, "bad") {
		return nil, errors.New("corrupt file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &entities.Document{
		Name:         strings.TrimSuffix(name, filepath.Ext(name)),
		FileName:     name,
		Path:         path,
		SizeBytes:    int64(len(data)),
		Content:      data,
		Text:         string(data),
		LastModified: time.Now(),
	}, nil
}

func (mockLoader) SupportedExtensions() []string { return []string{".pdf"} }

// stubDocs implements ports.DocumentSource over a fixed slice.
type stubDocs struct {
	docs []entities.Document
}

func (s *stubDocs) List() []entities.Document { return s.docs }
func (s *stubDocs) Count() int                { return len(s.docs) }
func (s *stubDocs) HasAny() bool              { return len(s.docs) > 0 }
func (s *stubDocs) Names() []string {
	out := make([]string, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.Name
	}
	return out
}

func troveDocs() *stubDocs {
	return &stubDocs{docs: []entities.Document{{
		Name:         "Trove Overview",
		FileName:     "Trove Overview.pdf",
		SizeBytes:    2048,
		Text:         "Phase 1 User Experience Sep-Oct. Phase 4 Build Dec-March.",
		LastModified: time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC),
	}}}
}

// mockProvider implements ports.CompletionProvider with scripted results.
type mockProvider struct {
	mu      sync.Mutex
	results []providerResult
	calls   []entities.CompletionRequest
}

type providerResult struct {
	text string
	err  error
}

func (m *mockProvider) Complete(ctx context.Context, req entities.CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if len(m.results) == 0 {
		return "mocked answer", nil
	}
	r := m.results[0]
	m.results = m.results[1:]
	return r.text, r.err
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Calls() []entities.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.CompletionRequest(nil), m.calls...)
}

func classified(class entities.ErrorClass) error {
	return &entities.CompletionError{Class: class, Provider: "mock", Err: errors.New(class.String())}
}

// mockWatcher implements ports.FileWatcher over a channel the test drives.
type mockWatcher struct {
	events  chan ports.FileEvent
	stopped chan struct{}
	once    sync.Once
}

func newMockWatcher() *mockWatcher {
	return &mockWatcher{events: make(chan ports.FileEvent, 16), stopped: make(chan struct{})}
}

func (w *mockWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	return w.events, nil
}

func (w *mockWatcher) Stop() error {
	w.once.Do(func() { close(w.stopped) })
	return nil
}

// mockResponder implements Responder.
type mockResponder struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []string
}

func (m *mockResponder) Respond(ctx context.Context, userID, text string) (Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	if m.err != nil {
		return Reply{}, m.err
	}
	return Reply{Text: m.text}, nil
}

func (m *mockResponder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type post struct {
	target entities.ReplyTarget
	text   string
}

type commandResponse struct {
	url       string
	text      string
	ephemeral bool
}

// mockMessenger implements ports.Messenger.
type mockMessenger struct {
	mu        sync.Mutex
	posts     []post
	responses []commandResponse
}

func (m *mockMessenger) PostMessage(ctx context.Context, target entities.ReplyTarget, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, post{target: target, text: text})
	return nil
}

func (m *mockMessenger) RespondToCommand(ctx context.Context, responseURL, text string, ephemeral bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, commandResponse{url: responseURL, text: text, ephemeral: ephemeral})
	return nil
}

// mockIdentity implements ports.IdentityResolver.
type mockIdentity struct {
	id  string
	err error
}

func (m mockIdentity) BotUserID(ctx context.Context) (string, error) { return m.id, m.err }
