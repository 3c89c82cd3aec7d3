package storage

import (
	"context"
	"errors"
	"time"

	"github.com/conorfennell/geolingo/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Store persists flashcards, their review history and deck sources.
// Writes to the same card are last-write-wins.
type Store interface {
	InsertCard(ctx context.Context, card domain.Flashcard) error
	GetCard(ctx context.Context, id string) (domain.Flashcard, error)
	// ListCards returns every card in creation order.
	ListCards(ctx context.Context) ([]domain.Flashcard, error)
	ListCardsBySource(ctx context.Context, sourceID int64) ([]domain.Flashcard, error)
	// SaveReview stores the reviewed card and appends log in one transaction.
	SaveReview(ctx context.Context, card domain.Flashcard, log domain.ReviewLog) error
	DeleteCard(ctx context.Context, id string) error
	ListReviewLogs(ctx context.Context, cardID string) ([]domain.ReviewLog, error)

	InsertSource(ctx context.Context, path, sourceType string) (int64, error)
	GetSourceByPath(ctx context.Context, path string) (domain.Source, error)
	ListSources(ctx context.Context) ([]domain.Source, error)
	TouchSource(ctx context.Context, id int64, scannedAt time.Time) error
	// DeleteSource removes the source together with the cards it imported.
	DeleteSource(ctx context.Context, id int64) error

	Close() error
}

// Millis converts t to epoch milliseconds, the resolution cards are stored at.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis is the inverse of Millis. The result is in UTC.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
