package share

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/xnote/internal/apperr"
	"github.com/starford/xnote/internal/noteservice"
	"github.com/starford/xnote/internal/testutil"
)

type fakeGists struct {
	created   []string
	updated   []string
	deleted   []string
	updateErr error
	deleteErr error
	next      Gist
}

func (f *fakeGists) Create(_ context.Context, filename, content, _ string, _ bool) (Gist, error) {
	f.created = append(f.created, filename+":"+content)
	return f.next, nil
}

func (f *fakeGists) Update(_ context.Context, id, _, content string) error {
	f.updated = append(f.updated, id+":"+content)
	return f.updateErr
}

func (f *fakeGists) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func testSharer(t *testing.T, g *fakeGists) (*Sharer, *noteservice.Service) {
	t.Helper()
	_, st := testutil.TestStore(t)
	notes := noteservice.NewService(st)
	if _, err := notes.CreateOrReplace(context.Background(), "Plan", "step one", true); err != nil {
		t.Fatal(err)
	}
	return NewSharer(notes, g, testutil.Logger()), notes
}

func TestShareCreatesAndRecords(t *testing.T) {
	g := &fakeGists{next: Gist{ID: "g1", URL: "https://gist.github.com/u/g1"}}
	s, notes := testSharer(t, g)
	ctx := context.Background()

	res, err := s.Share(ctx, "plan", false)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if !res.Created || res.ID != "g1" {
		t.Errorf("result = %+v", res)
	}
	if len(g.created) != 1 || g.created[0] != "Plan.md:step one" {
		t.Errorf("created = %v", g.created)
	}
	n, _, _ := notes.FindByName(ctx, "Plan")
	if n.GistID != "g1" || n.GistURL != res.URL {
		t.Errorf("note not updated: %+v", n)
	}

	res, err = s.Share(ctx, "Plan", false)
	if err != nil {
		t.Fatalf("second Share: %v", err)
	}
	if res.Created || len(g.updated) != 1 || g.updated[0] != "g1:step one" {
		t.Errorf("expected update, got result=%+v updated=%v", res, g.updated)
	}
}

func TestShareRecreatesStaleGist(t *testing.T) {
	g := &fakeGists{next: Gist{ID: "old", URL: "u-old"}}
	s, notes := testSharer(t, g)
	ctx := context.Background()
	if _, err := s.Share(ctx, "Plan", false); err != nil {
		t.Fatal(err)
	}

	g.updateErr = apperr.ErrGistNotFound
	g.next = Gist{ID: "new", URL: "u-new"}
	res, err := s.Share(ctx, "Plan", false)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if !res.Created || res.ID != "new" {
		t.Errorf("result = %+v", res)
	}
	n, _, _ := notes.FindByName(ctx, "Plan")
	if n.GistID != "new" {
		t.Errorf("gist id = %q, want new", n.GistID)
	}
}

func TestShareOtherUpdateErrorKeepsRecord(t *testing.T) {
	g := &fakeGists{next: Gist{ID: "g1", URL: "u"}}
	s, notes := testSharer(t, g)
	ctx := context.Background()
	_, _ = s.Share(ctx, "Plan", false)

	g.updateErr = ErrTimeout
	if _, err := s.Share(ctx, "Plan", false); !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	n, _, _ := notes.FindByName(ctx, "Plan")
	if n.GistID != "g1" || len(g.created) != 1 {
		t.Errorf("record changed on transient failure: %+v", n)
	}
}

func TestShareMissingNote(t *testing.T) {
	s, _ := testSharer(t, &fakeGists{})
	if _, err := s.Share(context.Background(), "nope", false); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUnshare(t *testing.T) {
	g := &fakeGists{next: Gist{ID: "g1", URL: "u"}}
	s, notes := testSharer(t, g)
	ctx := context.Background()

	if err := s.Unshare(ctx, "Plan"); !errors.Is(err, apperr.ErrGistNotFound) {
		t.Errorf("unshare of unshared note: err = %v", err)
	}

	_, _ = s.Share(ctx, "Plan", false)
	g.deleteErr = apperr.ErrGistNotFound
	if err := s.Unshare(ctx, "Plan"); err != nil {
		t.Fatalf("Unshare: %v", err)
	}
	n, _, _ := notes.FindByName(ctx, "Plan")
	if n.GistID != "" || n.GistURL != "" {
		t.Errorf("record not cleared: %+v", n)
	}
	if len(g.deleted) != 1 || g.deleted[0] != "g1" {
		t.Errorf("deleted = %v", g.deleted)
	}
}

func TestCopyURL(t *testing.T) {
	var got string
	orig := writeClipboard
	writeClipboard = func(s string) error { got = s; return nil }
	t.Cleanup(func() { writeClipboard = orig })

	if err := CopyURL("https://gist.github.com/u/g1"); err != nil {
		t.Fatal(err)
	}
	if got != "https://gist.github.com/u/g1" {
		t.Errorf("clipboard = %q", got)
	}

	writeClipboard = func(string) error { return errors.New("no display") }
	if err := CopyURL("x"); err == nil {
		t.Error("expected error")
	}
}
