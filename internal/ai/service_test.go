package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/xnote/internal/apperr"
	"github.com/starford/xnote/internal/models"
	"github.com/starford/xnote/internal/storage"
	"github.com/starford/xnote/internal/store"
)

type fakeProvider struct {
	chunks    []Chunk
	streamErr error
	answer    string
	genErr    error

	gotModel  string
	gotPrompt Prompt
	streamed  int
	stopped   bool
}

func (f *fakeProvider) Generate(_ context.Context, model string, p Prompt) (Chunk, error) {
	f.gotModel, f.gotPrompt = model, p
	if f.genErr != nil {
		return Chunk{}, f.genErr
	}
	return Chunk{Text: f.answer}, nil
}

func (f *fakeProvider) Stream(_ context.Context, model string, p Prompt) iter.Seq2[Chunk, error] {
	f.gotModel, f.gotPrompt = model, p
	return func(yield func(Chunk, error) bool) {
		for _, c := range f.chunks {
			f.streamed++
			if !yield(c, nil) {
				f.stopped = true
				return
			}
		}
		if f.streamErr != nil {
			yield(Chunk{}, f.streamErr)
		}
	}
}

func testService(t *testing.T, p *fakeProvider, settings *models.AISettings) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(fs, logger)
	if settings != nil {
		if _, err := st.Update(func(doc *store.Document) error { return doc.SetAISettings(settings) }); err != nil {
			t.Fatal(err)
		}
	}
	clock := func() time.Time { return time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC) }
	svc := NewService(Config{}, st, NewImageStore(fs), logger,
		WithProviderFactory(func(context.Context, string) (Provider, error) { return p, nil }),
		WithClock(clock))
	return svc, dir
}

func collect(seq iter.Seq[Event]) []Event {
	var out []Event
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

func TestGenerateTitleCleansQuotes(t *testing.T) {
	p := &fakeProvider{answer: "  \"Weekly Grocery Plan\"\n"}
	svc, _ := testService(t, p, &models.AISettings{APIKey: "k"})

	if got := svc.GenerateTitle(context.Background(), "eggs, milk"); got != "Weekly Grocery Plan" {
		t.Errorf("title = %q", got)
	}
	if p.gotModel != DefaultTitleModel {
		t.Errorf("model = %q", p.gotModel)
	}
	if !strings.HasPrefix(p.gotPrompt.Turns[0].Parts[0].Text, titlePrompt) {
		t.Errorf("prompt = %q", p.gotPrompt.Turns[0].Parts[0].Text)
	}
}

func TestGenerateTitleTruncatesInput(t *testing.T) {
	p := &fakeProvider{answer: "Long"}
	svc, _ := testService(t, p, &models.AISettings{APIKey: "k"})
	svc.GenerateTitle(context.Background(), strings.Repeat("é", 800))

	body := strings.TrimPrefix(p.gotPrompt.Turns[0].Parts[0].Text, titlePrompt)
	if n := len([]rune(body)); n != 500 {
		t.Errorf("prompt content = %d runes, want 500", n)
	}
}

func TestGenerateTitleFallbacks(t *testing.T) {
	const want = "Note 2024-03-09"
	cases := []struct {
		name     string
		p        *fakeProvider
		settings *models.AISettings
	}{
		{"no settings", &fakeProvider{answer: "x"}, nil},
		{"empty key", &fakeProvider{answer: "x"}, &models.AISettings{}},
		{"provider error", &fakeProvider{genErr: errors.New("boom")}, &models.AISettings{APIKey: "k"}},
		{"blank answer", &fakeProvider{answer: "  "}, &models.AISettings{APIKey: "k"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := testService(t, tc.p, tc.settings)
			if got := svc.GenerateTitle(context.Background(), "content"); got != want {
				t.Errorf("title = %q, want %q", got, want)
			}
		})
	}
}

func TestConfigKeyIsFallback(t *testing.T) {
	p := &fakeProvider{answer: "From Config"}
	svc, _ := testService(t, p, nil)
	svc.cfg.APIKey = "env-key"
	if got := svc.GenerateTitle(context.Background(), "x"); got != "From Config" {
		t.Errorf("title = %q", got)
	}
}

func TestStreamTextImageDone(t *testing.T) {
	png := []byte("\x89PNG fake")
	p := &fakeProvider{chunks: []Chunk{
		{Text: "Hello "},
		{Text: "world"},
		{Images: []Part{{MIMEType: "image/png", Data: png}}},
	}}
	svc, dir := testService(t, p, &models.AISettings{APIKey: "k", SystemPrompt: "be brief", EnableSearch: true})

	events := collect(svc.Stream(context.Background(), Request{Content: "hi", Model: "gemini-2.5-flash-image"}))
	var kinds []EventKind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	if diff := cmp.Diff([]EventKind{KindText, KindText, KindImage, KindDone}, kinds); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}

	img := events[2].Image
	if filepath.Dir(img) != filepath.Join(dir, ImageDir) || !strings.HasSuffix(img, ".png") {
		t.Errorf("image path = %q", img)
	}
	if data, err := os.ReadFile(img); err != nil || string(data) != string(png) {
		t.Errorf("image content = %q, %v", data, err)
	}

	res := events[3].Result
	if !res.OK || res.Text != "Hello world" || len(res.Images) != 1 || res.Images[0] != img {
		t.Errorf("result = %+v", res)
	}
	if p.gotPrompt.System != "be brief" || !p.gotPrompt.Search || !p.gotPrompt.Images {
		t.Errorf("prompt = %+v", p.gotPrompt)
	}
}

func TestStreamIsNotRestartable(t *testing.T) {
	p := &fakeProvider{chunks: []Chunk{{Text: "a"}}}
	svc, _ := testService(t, p, &models.AISettings{APIKey: "k"})

	seq := svc.Stream(context.Background(), Request{Content: "x"})
	collect(seq)
	again := collect(seq)
	if len(again) != 1 || again[0].Kind != KindError || !errors.Is(again[0].Err, ErrStreamConsumed) {
		t.Errorf("second iteration = %+v", again)
	}
}

func TestStreamBreakStopsProvider(t *testing.T) {
	p := &fakeProvider{chunks: []Chunk{{Text: "a"}, {Text: "b"}, {Text: "c"}}}
	svc, _ := testService(t, p, &models.AISettings{APIKey: "k"})

	for ev := range svc.Stream(context.Background(), Request{Content: "x"}) {
		if ev.Kind == KindText {
			break
		}
	}
	if !p.stopped || p.streamed != 1 {
		t.Errorf("provider not stopped: streamed=%d stopped=%v", p.streamed, p.stopped)
	}
}

func TestStreamProviderError(t *testing.T) {
	p := &fakeProvider{chunks: []Chunk{{Text: "partial"}}, streamErr: errors.New("quota exceeded")}
	svc, _ := testService(t, p, &models.AISettings{APIKey: "k"})

	var sunk []EventKind
	res := svc.Generate(context.Background(), Request{Content: "x"}, func(ev Event) { sunk = append(sunk, ev.Kind) })
	if res.OK || !strings.Contains(res.Error, "quota exceeded") {
		t.Errorf("result = %+v", res)
	}
	if diff := cmp.Diff([]EventKind{KindText, KindError}, sunk); diff != "" {
		t.Errorf("sink mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateUnconfigured(t *testing.T) {
	svc, _ := testService(t, &fakeProvider{}, nil)
	events := collect(svc.Stream(context.Background(), Request{Content: "x"}))
	if len(events) != 1 || !errors.Is(events[0].Err, apperr.ErrNotConfigured) {
		t.Fatalf("events = %+v", events)
	}
	if res := svc.Generate(context.Background(), Request{Content: "x"}, nil); res.OK || res.Error == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestInlineMode(t *testing.T) {
	p := &fakeProvider{answer: `{"content":"rewritten text"}`}
	svc, _ := testService(t, p, &models.AISettings{APIKey: "k", EnableSearch: true})

	res := svc.Generate(context.Background(), Request{Content: "rewrite", Inline: true}, nil)
	if !res.OK || res.Text != "rewritten text" {
		t.Errorf("result = %+v", res)
	}
	if !p.gotPrompt.ContentField {
		t.Error("inline request did not ask for the content field")
	}
	if p.gotPrompt.Search || p.gotPrompt.Images {
		t.Errorf("inline request enabled tools: Search=%v Images=%v", p.gotPrompt.Search, p.gotPrompt.Images)
	}
}

func TestInlineModeBadJSON(t *testing.T) {
	p := &fakeProvider{answer: `not json`}
	svc, _ := testService(t, p, &models.AISettings{APIKey: "k"})

	res := svc.Generate(context.Background(), Request{Content: "x", Inline: true}, nil)
	if res.OK || !strings.Contains(res.Error, "parse inline response") {
		t.Errorf("result = %+v", res)
	}
}

func TestHistoryAndImagesInPrompt(t *testing.T) {
	p := &fakeProvider{}
	svc, _ := testService(t, p, &models.AISettings{APIKey: "k"})
	img := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpg"))

	res := svc.Generate(context.Background(), Request{
		Content: "and now?",
		History: []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		Images:  []string{img},
	}, nil)
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}

	turns := p.gotPrompt.Turns
	if len(turns) != 3 || turns[1].Role != RoleModel || turns[2].Role != RoleUser {
		t.Fatalf("turns = %+v", turns)
	}
	last := turns[2].Parts
	if len(last) != 2 || last[1].MIMEType != "image/jpeg" || string(last[1].Data) != "jpg" {
		t.Errorf("user parts = %+v", last)
	}
	if p.gotPrompt.System != defaultSystemPrompt {
		t.Errorf("system = %q", p.gotPrompt.System)
	}
}

func TestInvalidImageFailsBeforeProvider(t *testing.T) {
	p := &fakeProvider{}
	svc, _ := testService(t, p, &models.AISettings{APIKey: "k"})
	res := svc.Generate(context.Background(), Request{Content: "x", Images: []string{"%%%"}}, nil)
	if res.OK || p.gotModel != "" {
		t.Errorf("result = %+v, provider called with %q", res, p.gotModel)
	}
}

func TestSaveSettingsValidates(t *testing.T) {
	svc, _ := testService(t, &fakeProvider{}, nil)
	if err := svc.SaveSettings(models.AISettings{APIKey: "has space"}); err == nil {
		t.Error("expected validation error")
	}
	want := models.AISettings{APIKey: "k", SystemPrompt: "p", EnableSearch: true}
	if err := svc.SaveSettings(want); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := svc.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeImage(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte("abc"))
	mt, data, err := DecodeImage(raw)
	if err != nil || mt != "image/png" || string(data) != "abc" {
		t.Errorf("bare = %q %q %v", mt, data, err)
	}
	mt, _, err = DecodeImage("data:image/webp;base64," + raw)
	if err != nil || mt != "image/webp" {
		t.Errorf("data uri = %q %v", mt, err)
	}
	if _, _, err := DecodeImage("data:image/png;base64"); err == nil {
		t.Error("expected error for data uri without payload")
	}
}
