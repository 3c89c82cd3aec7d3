package deck

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/conorfennell/geolingo/internal/domain"
	"github.com/conorfennell/geolingo/internal/storage"
)

type fakeGit struct {
	dir string
	err error
}

func (f fakeGit) Sync(context.Context, string) (string, error) {
	return f.dir, f.err
}

func newTestImporter(t *testing.T, git GitSyncer) (*Importer, *storage.DB) {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "deck.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewImporter(db, git, zap.NewNop()), db
}

func writeDeck(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAddSource(t *testing.T) {
	ctx := context.Background()
	im, _ := newTestImporter(t, nil)

	dir := t.TempDir()
	src, err := im.AddSource(ctx, dir)
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if src.Type != SourceLocal || src.Path != dir {
		t.Errorf("source = %+v", src)
	}

	git, err := im.AddSource(ctx, "git@github.com:acme/city-words.git")
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if git.Type != SourceGit {
		t.Errorf("Type = %q, want git", git.Type)
	}

	if _, err := im.AddSource(ctx, dir); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("duplicate AddSource err = %v, want ErrDuplicate", err)
	}
	if _, err := im.AddSource(ctx, "  "); err == nil {
		t.Error("expected an error for an empty path")
	}
}

func TestSyncInsertsAndKeepsState(t *testing.T) {
	ctx := context.Background()
	im, db := newTestImporter(t, nil)

	dir := t.TempDir()
	writeDeck(t, dir, "city.md", "F: crosswalk\nB: a place to cross\n---\nF: bakery\nB: sells bread\n")
	writeDeck(t, filepath.Join(dir, "grammar"), "perfect.md", "F: I have went\nB: I have gone\nT: grammar\n")
	writeDeck(t, dir, "notes.txt", "F: ignored\nB: not markdown\n")

	if _, err := im.AddSource(ctx, dir); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	results, err := im.SyncAll(ctx)
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if r := results[0]; r.Parsed != 3 || r.Inserted != 3 || r.Deleted != 0 || len(r.Errors) != 0 {
		t.Errorf("first sync = %+v", r)
	}

	cards, err := db.ListCards(ctx)
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	var grammar int
	for _, c := range cards {
		if c.ReviewCount != 0 || c.EaseFactor != domain.DefaultEaseFactor || c.Interval != 0 || c.SourceID == nil {
			t.Errorf("imported card not in initial state: %+v", c)
		}
		if c.Type == domain.Grammar {
			grammar++
		}
	}
	if grammar != 1 {
		t.Errorf("grammar cards = %d, want 1", grammar)
	}

	// Simulate a review, then resync: state must survive.
	reviewed := cards[0]
	reviewed.ReviewCount = 1
	reviewed.Interval = 1
	if err := db.SaveReview(ctx, reviewed, domain.ReviewLog{ID: "r1", CardID: reviewed.ID, Quality: 4, ReviewedAt: reviewed.CreatedAt}); err != nil {
		t.Fatalf("SaveReview: %v", err)
	}

	results, err = im.SyncAll(ctx)
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if r := results[0]; r.Inserted != 0 || r.Deleted != 0 {
		t.Errorf("resync = %+v, want no changes", r)
	}
	got, err := db.GetCard(ctx, reviewed.ID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got.ReviewCount != 1 || got.Interval != 1 {
		t.Errorf("review state lost on resync: %+v", got)
	}
}

func TestSyncDeletesOrphans(t *testing.T) {
	ctx := context.Background()
	im, db := newTestImporter(t, nil)

	dir := t.TempDir()
	writeDeck(t, dir, "city.md", "F: crosswalk\nB: a place to cross\n---\nF: bakery\nB: sells bread\n")
	src, err := im.AddSource(ctx, dir)
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if _, err := im.SyncSource(ctx, src); err != nil {
		t.Fatalf("SyncSource: %v", err)
	}

	// An in-game card must never be treated as an orphan.
	own := domain.NewFlashcard("own", domain.Vocabulary, "fountain", "", "", im.now())
	if err := db.InsertCard(ctx, own); err != nil {
		t.Fatalf("InsertCard: %v", err)
	}

	writeDeck(t, dir, "city.md", "F: crosswalk\nB: a place to cross\n")
	res, err := im.SyncSource(ctx, src)
	if err != nil {
		t.Fatalf("SyncSource: %v", err)
	}
	if res.Deleted != 1 || res.Inserted != 0 {
		t.Errorf("result = %+v, want one deletion", res)
	}

	cards, err := db.ListCards(ctx)
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if len(cards) != 2 {
		t.Errorf("cards = %+v, want crosswalk and the in-game card", cards)
	}
}

func TestSyncGitSource(t *testing.T) {
	ctx := context.Background()
	checkout := t.TempDir()
	writeDeck(t, checkout, "deck.md", "F: platform\nB: where you wait for trains\n")
	writeDeck(t, filepath.Join(checkout, ".git"), "ignored.md", "F: not a card\n")

	im, _ := newTestImporter(t, fakeGit{dir: checkout})
	src, err := im.AddSource(ctx, "https://github.com/acme/transport.git")
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	res, err := im.SyncSource(ctx, src)
	if err != nil {
		t.Fatalf("SyncSource: %v", err)
	}
	if res.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", res.Inserted)
	}
}

func TestSyncAllReportsFailingSource(t *testing.T) {
	ctx := context.Background()
	im, _ := newTestImporter(t, fakeGit{err: errors.New("network down")})

	if _, err := im.AddSource(ctx, "https://github.com/acme/transport.git"); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	good := t.TempDir()
	writeDeck(t, good, "deck.md", "F: museum\n")
	if _, err := im.AddSource(ctx, good); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	results, err := im.SyncAll(ctx)
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if len(results[0].Errors) == 0 || !strings.Contains(results[0].Errors[0], "network down") {
		t.Errorf("git source errors = %v", results[0].Errors)
	}
	if results[1].Inserted != 1 {
		t.Errorf("local source = %+v, want one inserted card", results[1])
	}
}

func TestSyncReportsParseErrors(t *testing.T) {
	ctx := context.Background()
	im, _ := newTestImporter(t, nil)

	dir := t.TempDir()
	writeDeck(t, dir, "bad.md", "F: hello\nT: idiom\n")
	writeDeck(t, dir, "good.md", "F: goodbye\n")
	src, err := im.AddSource(ctx, dir)
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	res, err := im.SyncSource(ctx, src)
	if err != nil {
		t.Fatalf("SyncSource: %v", err)
	}
	if len(res.Errors) != 1 || res.Inserted != 1 {
		t.Errorf("result = %+v, want one error and one card", res)
	}
}

func TestSyncKeepsCardsOfUnparsableFile(t *testing.T) {
	ctx := context.Background()
	im, db := newTestImporter(t, nil)

	dir := t.TempDir()
	content := "F: crosswalk\nB: where you cross\n---\nF: bakery\nB: bread shop\n"
	writeDeck(t, dir, "street.md", content)
	src, err := im.AddSource(ctx, dir)
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if _, err := im.SyncSource(ctx, src); err != nil {
		t.Fatalf("SyncSource: %v", err)
	}

	// A typo in one card makes the whole file unparsable.
	writeDeck(t, dir, "street.md", content+"---\nF: tram\nT: vocab\n")
	res, err := im.SyncSource(ctx, src)
	if err != nil {
		t.Fatalf("SyncSource: %v", err)
	}
	if len(res.Errors) != 1 || res.Deleted != 0 {
		t.Errorf("Expected one error and no deletions but got %+v", res)
	}
	cards, err := db.ListCardsBySource(ctx, src.ID)
	if err != nil {
		t.Fatalf("ListCardsBySource: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("Expected 2 cards after sync with a typo but got %d", len(cards))
	}

	// Once fixed, the new card arrives and nothing is lost.
	writeDeck(t, dir, "street.md", content+"---\nF: tram\nT: vocabulary\n")
	res, err = im.SyncSource(ctx, src)
	if err != nil {
		t.Fatalf("SyncSource: %v", err)
	}
	if len(res.Errors) != 0 || res.Inserted != 1 || res.Deleted != 0 {
		t.Errorf("Expected one insert but got %+v", res)
	}
}

func TestAddSourceRejectsBlankPath(t *testing.T) {
	im, _ := newTestImporter(t, nil)
	for _, path := range []string{"", "   ", "\t\n"} {
		if _, err := im.AddSource(context.Background(), path); !errors.Is(err, ErrInvalidSource) {
			t.Errorf("AddSource(%q): expected ErrInvalidSource but got %v", path, err)
		}
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	im, db := newTestImporter(t, nil)

	dir := t.TempDir()
	writeDeck(t, dir, "deck.md", "F: receipt\nB: proof of payment\nC: at the cafe\n")
	src, err := im.AddSource(ctx, dir)
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if _, err := im.SyncSource(ctx, src); err != nil {
		t.Fatalf("SyncSource: %v", err)
	}

	var buf bytes.Buffer
	if err := Export(ctx, db, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	var out backup
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("exported YAML does not parse: %v\n%s", err, buf.String())
	}
	if len(out.Cards) != 1 || out.Cards[0].Front != "receipt" || out.Cards[0].Context != "at the cafe" {
		t.Errorf("exported cards = %+v", out.Cards)
	}
}
