package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/geolingo/internal/domain"
	"github.com/conorfennell/geolingo/internal/storage"
)

// Runs only against a real server: GEOLINGO_TEST_POSTGRES_URL=postgres://...
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GEOLINGO_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("GEOLINGO_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, dsn, PoolConfig{MaxConns: 2})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	s, err := New(ctx, pool)
	if err != nil {
		pool.Close()
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReviewRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	id := uuid.NewString()
	card := domain.NewFlashcard(id, domain.Vocabulary, "lighthouse", "a tower with a light", "", now)
	if err := s.InsertCard(ctx, card); err != nil {
		t.Fatalf("InsertCard: %v", err)
	}
	t.Cleanup(func() { _ = s.DeleteCard(ctx, id) })

	if err := s.InsertCard(ctx, card); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("duplicate InsertCard err = %v, want ErrDuplicate", err)
	}

	q := 4
	card.ReviewCount = 1
	card.Interval = 1
	card.LastReviewDate = &now
	card.NextReviewDate = now.Add(24 * time.Hour)
	card.Quality = &q
	log := domain.ReviewLog{ID: uuid.NewString(), CardID: id, Quality: q, ReviewedAt: now, PrevEase: 2.5, EaseFactor: 2.5, Interval: 1}
	if err := s.SaveReview(ctx, card, log); err != nil {
		t.Fatalf("SaveReview: %v", err)
	}

	got, err := s.GetCard(ctx, id)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got.ReviewCount != 1 || got.Quality == nil || *got.Quality != 4 || !got.NextReviewDate.Equal(card.NextReviewDate) {
		t.Errorf("card = %+v", got)
	}

	logs, err := s.ListReviewLogs(ctx, id)
	if err != nil || len(logs) != 1 {
		t.Fatalf("ListReviewLogs = %v, %v", logs, err)
	}
}

func TestGetCardNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetCard(context.Background(), uuid.NewString()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetCard err = %v, want ErrNotFound", err)
	}
}
