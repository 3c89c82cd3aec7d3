package domain

import "time"

// CardType tags what a flashcard teaches. It is informational only.
type CardType string

const (
	Vocabulary CardType = "vocabulary"
	Grammar    CardType = "grammar"
)

// Valid reports whether t is a known card type.
func (t CardType) Valid() bool {
	return t == Vocabulary || t == Grammar
}

// DefaultEaseFactor is the ease every card starts with.
const DefaultEaseFactor = 2.5

// Flashcard is a vocabulary or grammar item saved by the learner.
type Flashcard struct {
	ID             string     `json:"id" yaml:"id"`
	Type           CardType   `json:"type" yaml:"type"`
	Front          string     `json:"front" yaml:"front"`
	Back           string     `json:"back" yaml:"back"`
	Context        string     `json:"context,omitempty" yaml:"context,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" yaml:"created_at"`
	ReviewCount    int        `json:"reviewCount" yaml:"review_count"`
	EaseFactor     float64    `json:"easeFactor" yaml:"ease_factor"`
	Interval       int        `json:"interval" yaml:"interval"` // days
	NextReviewDate time.Time  `json:"nextReviewDate" yaml:"next_review_date"`
	LastReviewDate *time.Time `json:"lastReviewDate,omitempty" yaml:"last_review_date,omitempty"` // nil until first review
	Quality        *int       `json:"quality,omitempty" yaml:"quality,omitempty"`
	SourceID       *int64     `json:"sourceId,omitempty" yaml:"source_id,omitempty"` // nil for cards saved in-game
}

// NewFlashcard returns a never-reviewed card that is due immediately.
func NewFlashcard(id string, t CardType, front, back, context string, now time.Time) Flashcard {
	return Flashcard{
		ID:             id,
		Type:           t,
		Front:          front,
		Back:           back,
		Context:        context,
		CreatedAt:      now,
		EaseFactor:     DefaultEaseFactor,
		NextReviewDate: now,
	}
}

// ReviewLog records a single review event for a card.
type ReviewLog struct {
	ID           string    `json:"id"`
	CardID       string    `json:"cardId"`
	Quality      int       `json:"quality"`
	ReviewedAt   time.Time `json:"reviewedAt"`
	PrevInterval int       `json:"prevInterval"`
	PrevEase     float64   `json:"prevEase"`
	Interval     int       `json:"interval"`
	EaseFactor   float64   `json:"easeFactor"`
}

// Source is where imported cards come from: a local directory or a git URL.
type Source struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"` // "local" or "git"
	LastScanned *time.Time `json:"lastScanned,omitempty"`
}
