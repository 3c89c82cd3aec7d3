package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/conorfennell/geolingo/internal/domain"
)

func TestNormalize(t *testing.T) {
	card := domain.Flashcard{
		Type:    domain.Vocabulary,
		Front:   "  Crosswalk \r\n",
		Back:    "A marked place to cross the street.",
		Context: "Downtown checkpoint",
	}
	expected := "vocabulary\ncrosswalk\na marked place to cross the street.\ndowntown checkpoint"
	if got := Normalize(card); got != expected {
		t.Errorf("Expected normalized string to be %q, but got %q", expected, got)
	}
}

func TestHash(t *testing.T) {
	t.Run("is sha256 of the normalized form", func(t *testing.T) {
		card := domain.Flashcard{Type: domain.Grammar, Front: "F", Back: "B", Context: "C"}
		sum := sha256.Sum256([]byte("grammar\nf\nb\nc"))
		if got, want := Hash(card), hex.EncodeToString(sum[:]); got != want {
			t.Errorf("Expected hash %q, but got %q", want, got)
		}
	})

	t.Run("hash is deterministic", func(t *testing.T) {
		card1 := domain.Flashcard{Front: "ticket"}
		card2 := domain.Flashcard{Front: "ticket"}
		if Hash(card1) != Hash(card2) {
			t.Error("Expected hashes for identical cards to be the same")
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		card1 := domain.Flashcard{Front: "  bakery ", Back: "A shop that sells bread."}
		card2 := domain.Flashcard{Front: "Bakery", Back: "A shop that sells bread."}
		if Hash(card1) != Hash(card2) {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("type is part of identity", func(t *testing.T) {
		card1 := domain.Flashcard{Type: domain.Vocabulary, Front: "used to"}
		card2 := domain.Flashcard{Type: domain.Grammar, Front: "used to"}
		if Hash(card1) == Hash(card2) {
			t.Error("Expected vocabulary and grammar cards to hash differently")
		}
	})

	t.Run("scheduling state is not part of identity", func(t *testing.T) {
		card1 := domain.Flashcard{Front: "map", ReviewCount: 0}
		card2 := domain.Flashcard{Front: "map", ReviewCount: 7, Interval: 15}
		if Hash(card1) != Hash(card2) {
			t.Error("Expected review history not to change the hash")
		}
	})
}
