// Package deck imports flashcards from markdown deck sources into the store.
package deck

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conorfennell/geolingo/internal/domain"
	"github.com/conorfennell/geolingo/internal/gitsource"
	"github.com/conorfennell/geolingo/internal/knol"
	"github.com/conorfennell/geolingo/internal/parser"
	"github.com/conorfennell/geolingo/internal/storage"
)

const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// GitSyncer fetches a remote deck and returns the local checkout path.
type GitSyncer interface {
	Sync(ctx context.Context, repoURL string) (string, error)
}

// Importer reconciles deck sources with the store. Cards that appear in a
// source are inserted as new cards; cards that disappeared from it are
// deleted. Cards already in the store keep their scheduling state.
type Importer struct {
	store storage.Store
	git   GitSyncer
	log   *zap.Logger
	now   func() time.Time
}

func NewImporter(store storage.Store, git GitSyncer, log *zap.Logger) *Importer {
	return &Importer{
		store: store,
		git:   git,
		log:   log,
		now:   func() time.Time { return time.Now().Truncate(time.Millisecond) },
	}
}

// Result summarises one source's reconciliation.
type Result struct {
	Source   domain.Source `json:"source"`
	Parsed   int           `json:"parsed"`
	Inserted int           `json:"inserted"`
	Deleted  int           `json:"deleted"`
	Errors   []string      `json:"errors,omitempty"`
}

var ErrInvalidSource = errors.New("invalid deck source")

// AddSource registers a local directory or git URL.
func (im *Importer) AddSource(ctx context.Context, path string) (domain.Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.Source{}, fmt.Errorf("%w: path cannot be empty", ErrInvalidSource)
	}

	sourceType := SourceLocal
	if gitsource.IsGitURL(path) {
		sourceType = SourceGit
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return domain.Source{}, fmt.Errorf("resolve %s: %w", path, err)
		}
		path = abs
	}

	id, err := im.store.InsertSource(ctx, path, sourceType)
	if err != nil {
		return domain.Source{}, err
	}
	im.log.Info("deck source added", zap.Int64("id", id), zap.String("type", sourceType), zap.String("path", path))
	return domain.Source{ID: id, Path: path, Type: sourceType}, nil
}

// SyncAll reconciles every registered source. A failing source is reported
// in its Result and does not stop the others.
func (im *Importer) SyncAll(ctx context.Context) ([]Result, error) {
	sources, err := im.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	if len(sources) == 0 {
		im.log.Info("no deck sources configured")
		return nil, nil
	}

	results := make([]Result, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := im.SyncSource(ctx, src)
		if err != nil {
			im.log.Error("deck sync failed", zap.Int64("source_id", src.ID), zap.String("path", src.Path), zap.Error(err))
			res.Errors = append(res.Errors, err.Error())
		}
		results = append(results, res)
	}
	return results, nil
}

// SyncSource reconciles a single source.
func (im *Importer) SyncSource(ctx context.Context, src domain.Source) (Result, error) {
	res := Result{Source: src}

	dir := src.Path
	if src.Type == SourceGit {
		if im.git == nil {
			return res, fmt.Errorf("source %d is a git repository but git sync is disabled", src.ID)
		}
		local, err := im.git.Sync(ctx, src.Path)
		if err != nil {
			return res, err
		}
		dir = local
	}

	found := make(map[string]bool)
	parseFailed := false
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}

		cards, err := parser.ParseFile(path)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("parse %s: %v", path, err))
			parseFailed = true
			return nil
		}
		for _, c := range cards {
			res.Parsed++
			inserted, err := im.importCard(ctx, src.ID, c, found)
			if err != nil {
				res.Errors = append(res.Errors, err.Error())
				continue
			}
			if inserted {
				res.Inserted++
			}
		}
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("walk %s: %w", dir, walkErr)
	}

	// The cards of an unparsable file are unknown, so nothing can be called
	// an orphan until the file is fixed.
	if parseFailed {
		im.log.Warn("skipping orphan cleanup after parse errors", zap.Int64("source_id", src.ID), zap.String("path", src.Path))
		im.touch(ctx, src.ID)
		return res, nil
	}

	existing, err := im.store.ListCardsBySource(ctx, src.ID)
	if err != nil {
		return res, err
	}
	for _, c := range existing {
		if found[c.ID] {
			continue
		}
		im.log.Info("deleting orphaned card", zap.String("id", c.ID), zap.Int64("source_id", src.ID))
		if err := im.store.DeleteCard(ctx, c.ID); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("delete %s: %v", c.ID, err))
			continue
		}
		res.Deleted++
	}

	im.touch(ctx, src.ID)

	im.log.Info("deck reconciliation complete",
		zap.String("path", src.Path),
		zap.Int("parsed", res.Parsed),
		zap.Int("inserted", res.Inserted),
		zap.Int("deleted", res.Deleted),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (im *Importer) touch(ctx context.Context, sourceID int64) {
	if err := im.store.TouchSource(ctx, sourceID, im.now()); err != nil {
		im.log.Warn("failed to update last scanned", zap.Int64("source_id", sourceID), zap.Error(err))
	}
}

func (im *Importer) importCard(ctx context.Context, sourceID int64, parsed domain.Flashcard, found map[string]bool) (bool, error) {
	id := knol.Hash(parsed)
	found[id] = true

	card := domain.NewFlashcard(id, parsed.Type, parsed.Front, parsed.Back, parsed.Context, im.now())
	card.SourceID = &sourceID

	err := im.store.InsertCard(ctx, card)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrDuplicate):
		return false, nil
	default:
		return false, err
	}
}
