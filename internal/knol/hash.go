package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/geolingo/internal/domain"
)

// Normalize joins the card's text fields after lowercasing, trimming and
// unifying line endings in each. The card type takes part so that the same
// text saved as vocabulary and as grammar stays two cards.
func Normalize(card domain.Flashcard) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.TrimSpace(p)
	}

	// Newline separated so "ab"+"c" and "a"+"bc" differ.
	return strings.Join([]string{
		normalizePart(string(card.Type)),
		normalizePart(card.Front),
		normalizePart(card.Back),
		normalizePart(card.Context),
	}, "\n")
}

// Hash returns the hex SHA-256 of the normalized card. Imported cards use it
// as their ID, so editing a card in its deck file makes it a new card.
func Hash(card domain.Flashcard) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}
