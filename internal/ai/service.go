package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/xnote/internal/apperr"
	"github.com/starford/xnote/internal/models"
	"github.com/starford/xnote/internal/store"
)

const (
	// DefaultModel is used for content generation when neither the request
	// nor the config names one.
	DefaultModel = "gemini-2.5-flash"
	// DefaultTitleModel is used for title generation.
	DefaultTitleModel = "gemini-2.5-flash"

	titlePrompt     = "Generate a concise, descriptive title (2-5 words) for this note. Return ONLY the title, nothing else:\n\n"
	titleInputLimit = 500

	defaultSystemPrompt = "You are a writing assistant inside a personal note-taking app. " +
		"Answer in Markdown unless asked otherwise. Keep answers focused on the user's note."
)

// ErrStreamConsumed is reported when a generation stream is iterated twice.
var ErrStreamConsumed = errors.New("ai: stream already consumed")

// Config holds generation defaults.
type Config struct {
	Model      string
	TitleModel string
	// APIKey is used when the stored AI settings carry no key.
	APIKey  string
	Timeout time.Duration
}

// Message is one prior chat turn supplied by the UI.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one content generation.
type Request struct {
	Content string    `json:"content"`
	Model   string    `json:"model,omitempty"`
	Images  []string  `json:"images,omitempty"`
	History []Message `json:"history,omitempty"`
	Inline  bool      `json:"inline,omitempty"`
}

// EventKind identifies a stream event.
type EventKind string

// Event kinds. A stream ends with exactly one KindDone or KindError.
const (
	KindText  EventKind = "text"
	KindImage EventKind = "image"
	KindDone  EventKind = "done"
	KindError EventKind = "error"
)

// Event is one item of a generation stream.
type Event struct {
	Kind EventKind
	// Text is the delta for KindText.
	Text string
	// Image is the saved file path for KindImage.
	Image  string
	Result Result
	Err    error
}

// Result is the aggregated outcome of a generation.
type Result struct {
	OK     bool     `json:"ok"`
	Text   string   `json:"text,omitempty"`
	Images []string `json:"images,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithProviderFactory replaces the Gemini provider, mainly for tests.
func WithProviderFactory(f ProviderFactory) Option {
	return func(s *Service) { s.newProvider = f }
}

// WithClock sets the clock used for fallback titles.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service generates titles and content. Settings are read from the store on
// every call.
type Service struct {
	cfg         Config
	store       *store.Store
	images      *ImageStore
	newProvider ProviderFactory
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates an AI service.
func NewService(cfg Config, st *store.Store, images *ImageStore, logger *slog.Logger, opts ...Option) *Service {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.TitleModel == "" {
		cfg.TitleModel = DefaultTitleModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:         cfg,
		store:       st,
		images:      images,
		newProvider: NewGemini,
		logger:      logger,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Settings returns the stored AI settings, or zero settings when absent.
func (s *Service) Settings() (models.AISettings, error) {
	doc, err := s.store.Load()
	if err != nil {
		return models.AISettings{}, err
	}
	st, err := doc.AISettings()
	if err != nil || st == nil {
		return models.AISettings{}, err
	}
	return *st, nil
}

// SaveSettings validates and stores AI settings.
func (s *Service) SaveSettings(settings models.AISettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	_, err := s.store.Update(func(doc *store.Document) error {
		return doc.SetAISettings(&settings)
	})
	return err
}

func (s *Service) apiKey(settings models.AISettings) string {
	if settings.APIKey != "" {
		return settings.APIKey
	}
	return s.cfg.APIKey
}

// FallbackTitle is the title used when no AI title can be produced.
func (s *Service) FallbackTitle() string {
	return "Note " + s.now().UTC().Format("2006-01-02")
}

// GenerateTitle asks the model for a short title for content. It never
// fails: without a key, on any provider error, or on an empty answer it
// returns FallbackTitle.
func (s *Service) GenerateTitle(ctx context.Context, content string) string {
	settings, err := s.Settings()
	if err != nil {
		s.logger.Warn("ai: title: load settings", slog.String("error", err.Error()))
		return s.FallbackTitle()
	}
	key := s.apiKey(settings)
	if key == "" {
		return s.FallbackTitle()
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	p, err := s.newProvider(ctx, key)
	if err != nil {
		s.logger.Warn("ai: title: provider", slog.String("error", err.Error()))
		return s.FallbackTitle()
	}
	chunk, err := p.Generate(ctx, s.cfg.TitleModel, Prompt{
		Turns: []Turn{{Role: RoleUser, Parts: []Part{{Text: titlePrompt + truncateRunes(content, titleInputLimit)}}}},
	})
	if err != nil {
		s.logger.Warn("ai: title: generate", slog.String("error", err.Error()))
		return s.FallbackTitle()
	}
	if title := cleanTitle(chunk.Text); title != "" {
		return title
	}
	return s.FallbackTitle()
}

// Stream returns the lazy event sequence for req. Nothing is sent to the
// provider until the sequence is ranged over. The sequence can be consumed
// once; breaking out of the loop or cancelling ctx stops the provider stream.
func (s *Service) Stream(ctx context.Context, req Request) iter.Seq[Event] {
	var used atomic.Bool
	return func(yield func(Event) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(Event{Kind: KindError, Err: ErrStreamConsumed})
			return
		}
		s.run(ctx, req, yield)
	}
}

// Generate drains Stream, forwarding every event to sink (which may be nil),
// and returns the aggregated result. Failures are reported in the result.
func (s *Service) Generate(ctx context.Context, req Request, sink func(Event)) Result {
	res := Result{Error: "generation ended without a result"}
	for ev := range s.Stream(ctx, req) {
		if sink != nil {
			sink(ev)
		}
		switch ev.Kind {
		case KindDone:
			res = ev.Result
		case KindError:
			res = Result{Error: ev.Err.Error()}
		}
	}
	return res
}

func (s *Service) run(ctx context.Context, req Request, yield func(Event) bool) {
	fail := func(err error) {
		yield(Event{Kind: KindError, Err: err})
	}

	settings, err := s.Settings()
	if err != nil {
		fail(fmt.Errorf("ai: load settings: %w", err))
		return
	}
	key := s.apiKey(settings)
	if key == "" {
		fail(fmt.Errorf("ai: no API key configured: %w", apperr.ErrNotConfigured))
		return
	}

	prompt, err := s.buildPrompt(req, settings)
	if err != nil {
		fail(err)
		return
	}
	model := req.Model
	if model == "" {
		model = s.cfg.Model
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	p, err := s.newProvider(ctx, key)
	if err != nil {
		fail(err)
		return
	}

	if req.Inline {
		s.runInline(ctx, p, model, prompt, yield)
		return
	}

	var res Result
	var text strings.Builder
	for chunk, err := range p.Stream(ctx, model, prompt) {
		if err != nil {
			fail(err)
			return
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			if !yield(Event{Kind: KindText, Text: chunk.Text}) {
				return
			}
		}
		for _, img := range chunk.Images {
			path, err := s.images.Save(img.MIMEType, img.Data)
			if err != nil {
				s.logger.Warn("ai: drop image", slog.String("error", err.Error()))
				continue
			}
			res.Images = append(res.Images, path)
			if !yield(Event{Kind: KindImage, Image: path}) {
				return
			}
		}
	}
	if err := ctx.Err(); err != nil {
		fail(fmt.Errorf("ai: stream: %w", err))
		return
	}

	res.OK = true
	res.Text = text.String()
	yield(Event{Kind: KindDone, Result: res})
}

func (s *Service) runInline(ctx context.Context, p Provider, model string, prompt Prompt, yield func(Event) bool) {
	// The API rejects tools combined with a JSON response schema.
	prompt.ContentField = true
	prompt.Images = false
	prompt.Search = false
	chunk, err := p.Generate(ctx, model, prompt)
	if err != nil {
		yield(Event{Kind: KindError, Err: err})
		return
	}
	var out struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal([]byte(chunk.Text), &out); err != nil || out.Content == nil {
		if err == nil {
			err = errors.New("missing content field")
		}
		yield(Event{Kind: KindError, Err: fmt.Errorf("ai: parse inline response: %w", err)})
		return
	}
	if !yield(Event{Kind: KindText, Text: *out.Content}) {
		return
	}
	yield(Event{Kind: KindDone, Result: Result{OK: true, Text: *out.Content}})
}

func (s *Service) buildPrompt(req Request, settings models.AISettings) (Prompt, error) {
	system := strings.TrimSpace(settings.SystemPrompt)
	if system == "" {
		system = defaultSystemPrompt
	}
	model := req.Model
	if model == "" {
		model = s.cfg.Model
	}
	prompt := Prompt{
		System: system,
		Search: settings.EnableSearch,
		Images: strings.Contains(strings.ToLower(model), "image"),
	}

	for _, m := range req.History {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := RoleUser
		if m.Role == RoleModel || m.Role == "assistant" {
			role = RoleModel
		}
		prompt.Turns = append(prompt.Turns, Turn{Role: role, Parts: []Part{{Text: m.Content}}})
	}

	user := Turn{Role: RoleUser, Parts: []Part{{Text: req.Content}}}
	for i, src := range req.Images {
		mimeType, data, err := DecodeImage(src)
		if err != nil {
			return Prompt{}, fmt.Errorf("image %d: %w", i, err)
		}
		user.Parts = append(user.Parts, Part{MIMEType: mimeType, Data: data})
	}
	prompt.Turns = append(prompt.Turns, user)
	return prompt, nil
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, `'`} {
		if strings.HasPrefix(s, q) {
			s = s[1:]
			break
		}
	}
	for _, q := range []string{`"`, `'`} {
		if strings.HasSuffix(s, q) {
			s = s[:len(s)-1]
			break
		}
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
