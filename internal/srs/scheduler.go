// Package srs schedules flashcard reviews with an SM-2 derived algorithm.
//
// The scheduler is pure: it reads the clock once per call and returns new
// values. Persisting them is the caller's job.
package srs

import (
	"math"
	"slices"
	"time"

	"github.com/conorfennell/geolingo/internal/domain"
)

const (
	MinEaseFactor     = 1.3
	DefaultEaseFactor = domain.DefaultEaseFactor

	// Day is the unit of Interval.
	Day = 24 * time.Hour

	// MaxInterval caps Interval so that it stays an int and the review date
	// stays representable.
	MaxInterval = math.MaxInt32
)

// Clock returns the current time.
type Clock func() time.Time

// Result is the scheduling state produced by a review.
type Result struct {
	EaseFactor     float64   `json:"easeFactor"`
	Interval       int       `json:"interval"`
	NextReviewDate time.Time `json:"nextReviewDate"`
	LastReviewDate time.Time `json:"lastReviewDate"`
}

// Stats are counts over a card collection at one instant.
// New and Learned partition Total; Due may overlap with New.
type Stats struct {
	Total   int `json:"total"`
	Due     int `json:"due"`
	New     int `json:"new"`
	Learned int `json:"learned"`
}

// Scheduler computes review intervals. The zero value is not usable; use New.
type Scheduler struct {
	now Clock
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.now = c
	}
}

// New creates a Scheduler reading time.Now unless overridden.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextReview computes the state that follows reviewing card with quality q.
// Out-of-range qualities are clamped. card is not modified.
func (s *Scheduler) NextReview(card domain.Flashcard, q Quality) Result {
	return nextReview(card, q, s.now())
}

func nextReview(card domain.Flashcard, q Quality, now time.Time) Result {
	q = q.Clamp()

	// EF' = EF + (0.1 - (5-q)*(0.08 + (5-q)*0.02))
	d := float64(MaxQuality - q)
	ef := math.Max(MinEaseFactor, card.EaseFactor+(0.1-d*(0.08+d*0.02)))

	var interval int
	switch {
	case q < 3:
		interval = 0
	case card.Interval == 0:
		interval = 1
	case card.Interval == 1:
		interval = 6
	default:
		// Grows by the updated ease, not the previous one.
		interval = int(math.Min(math.Round(float64(card.Interval)*ef), MaxInterval))
	}

	return Result{
		EaseFactor:     ef,
		Interval:       interval,
		NextReviewDate: addDays(now, interval),
		LastReviewDate: now,
	}
}

// Preview returns what each answer button would do to card right now.
func (s *Scheduler) Preview(card domain.Flashcard) map[Quality]Result {
	now := s.now()
	out := make(map[Quality]Result, len(Buttons))
	for _, q := range Buttons {
		out[q] = nextReview(card, q, now)
	}
	return out
}

// Apply merges r into a copy of card and records the review itself:
// ReviewCount goes up by one and Quality is set to the clamped q.
func Apply(card domain.Flashcard, q Quality, r Result) domain.Flashcard {
	last := r.LastReviewDate
	quality := int(q.Clamp())

	card.EaseFactor = r.EaseFactor
	card.Interval = r.Interval
	card.NextReviewDate = r.NextReviewDate
	card.LastReviewDate = &last
	card.ReviewCount++
	card.Quality = &quality
	return card
}

// DueCards returns the cards whose next review is not in the future,
// in their original order.
func (s *Scheduler) DueCards(cards []domain.Flashcard) []domain.Flashcard {
	now := s.now()
	return filter(cards, func(c domain.Flashcard) bool { return isDue(c, now) })
}

// NewCards returns the cards that have never been reviewed. A new card is
// usually due as well.
func (s *Scheduler) NewCards(cards []domain.Flashcard) []domain.Flashcard {
	return filter(cards, isNew)
}

// SortByPriority returns a copy of cards ordered most overdue first.
// Cards with equal dates keep their relative order.
func (s *Scheduler) SortByPriority(cards []domain.Flashcard) []domain.Flashcard {
	out := slices.Clone(cards)
	slices.SortStableFunc(out, func(a, b domain.Flashcard) int {
		return a.NextReviewDate.Compare(b.NextReviewDate)
	})
	return out
}

// Stats counts cards by bucket.
func (s *Scheduler) Stats(cards []domain.Flashcard) Stats {
	now := s.now()
	st := Stats{Total: len(cards)}
	for _, c := range cards {
		if isDue(c, now) {
			st.Due++
		}
		if isNew(c) {
			st.New++
		} else {
			st.Learned++
		}
	}
	return st
}

// addDays adds whole 24h days. time.Duration overflows past ~292 years,
// so the date arithmetic is done in UTC, where every day is 24h long.
func addDays(t time.Time, days int) time.Time {
	return t.In(time.UTC).AddDate(0, 0, days).In(t.Location())
}

func isDue(c domain.Flashcard, now time.Time) bool {
	return !c.NextReviewDate.After(now)
}

func isNew(c domain.Flashcard) bool {
	return c.ReviewCount == 0
}

func filter(cards []domain.Flashcard, keep func(domain.Flashcard) bool) []domain.Flashcard {
	out := make([]domain.Flashcard, 0, len(cards))
	for _, c := range cards {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
