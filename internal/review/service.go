// Package review runs the scheduler against the stored card collection and
// commits the results.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conorfennell/geolingo/internal/domain"
	"github.com/conorfennell/geolingo/internal/srs"
	"github.com/conorfennell/geolingo/internal/storage"
)

var ErrInvalidCard = errors.New("invalid card")

// NewCardInput is an item the learner saves during a dialogue or challenge.
type NewCardInput struct {
	Type    domain.CardType `json:"type" validate:"required,oneof=vocabulary grammar"`
	Front   string          `json:"front" validate:"required,max=500"`
	Back    string          `json:"back" validate:"max=2000"`
	Context string          `json:"context" validate:"max=2000"`
}

// Service owns the read-compute-commit cycle of a review.
type Service struct {
	store    storage.Store
	sched    *srs.Scheduler
	now      srs.Clock
	validate *validator.Validate
	log      *zap.Logger
}

type Option func(*Service)

// WithClock sets the clock for both the service and its scheduler.
func WithClock(c srs.Clock) Option {
	return func(s *Service) {
		s.now = c
	}
}

func NewService(store storage.Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		// Cards are stored at millisecond resolution.
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sched = srs.New(srs.WithClock(s.now))
	return s
}

// CreateCard saves a new card that is due immediately.
func (s *Service) CreateCard(ctx context.Context, in NewCardInput) (domain.Flashcard, error) {
	in.Front = strings.TrimSpace(in.Front)
	in.Back = strings.TrimSpace(in.Back)
	in.Context = strings.TrimSpace(in.Context)
	if err := s.validate.Struct(in); err != nil {
		return domain.Flashcard{}, fmt.Errorf("%w: %v", ErrInvalidCard, err)
	}

	card := domain.NewFlashcard(uuid.NewString(), in.Type, in.Front, in.Back, in.Context, s.now())
	if err := s.store.InsertCard(ctx, card); err != nil {
		return domain.Flashcard{}, err
	}
	s.log.Info("card created", zap.String("id", card.ID), zap.String("type", string(card.Type)))
	return card, nil
}

// Review schedules card id after a recall rated q and persists the card
// together with a review log entry.
func (s *Service) Review(ctx context.Context, id string, q srs.Quality) (domain.Flashcard, error) {
	card, err := s.store.GetCard(ctx, id)
	if err != nil {
		return domain.Flashcard{}, err
	}

	res := s.sched.NextReview(card, q)
	updated := srs.Apply(card, q, res)

	entry := domain.ReviewLog{
		ID:           uuid.NewString(),
		CardID:       id,
		Quality:      *updated.Quality,
		ReviewedAt:   res.LastReviewDate,
		PrevInterval: card.Interval,
		PrevEase:     card.EaseFactor,
		Interval:     res.Interval,
		EaseFactor:   res.EaseFactor,
	}
	if err := s.store.SaveReview(ctx, updated, entry); err != nil {
		return domain.Flashcard{}, err
	}

	s.log.Debug("card reviewed",
		zap.String("id", id),
		zap.Int("quality", entry.Quality),
		zap.Int("interval", res.Interval),
		zap.Float64("ease", res.EaseFactor),
	)
	return updated, nil
}

// Preview shows what each answer button would do to card id.
func (s *Service) Preview(ctx context.Context, id string) (map[srs.Quality]srs.Result, error) {
	card, err := s.store.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.sched.Preview(card), nil
}

func (s *Service) Card(ctx context.Context, id string) (domain.Flashcard, error) {
	return s.store.GetCard(ctx, id)
}

func (s *Service) DeleteCard(ctx context.Context, id string) error {
	return s.store.DeleteCard(ctx, id)
}

func (s *Service) History(ctx context.Context, id string) ([]domain.ReviewLog, error) {
	if _, err := s.store.GetCard(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListReviewLogs(ctx, id)
}

// Due returns due cards in creation order.
func (s *Service) Due(ctx context.Context) ([]domain.Flashcard, error) {
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	return s.sched.DueCards(cards), nil
}

// New returns never-reviewed cards. They usually show up in Due as well.
func (s *Service) New(ctx context.Context) ([]domain.Flashcard, error) {
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	return s.sched.NewCards(cards), nil
}

// Queue returns every card, most overdue first.
func (s *Service) Queue(ctx context.Context) ([]domain.Flashcard, error) {
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	return s.sched.SortByPriority(cards), nil
}

func (s *Service) Stats(ctx context.Context) (srs.Stats, error) {
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return srs.Stats{}, err
	}
	return s.sched.Stats(cards), nil
}
