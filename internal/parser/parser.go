// Package parser reads flashcard decks written in markdown.
//
// A deck is a sequence of cards:
//
//	F: crosswalk
//	B: a marked place where people cross the street
//	C: Wait at the crosswalk near the library.
//	T: vocabulary
//	---
//
// F starts a card. B and C may span several lines. T is optional and
// defaults to vocabulary. A line of three dashes ends the current card.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/geolingo/internal/domain"
)

type field int

const (
	none field = iota
	front
	back
	context
)

var prefixes = map[string]field{
	"F:": front,
	"B:": back,
	"C:": context,
}

const typePrefix = "T:"

// ParseFile reads a deck file and returns its cards.
func ParseFile(path string) ([]domain.Flashcard, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

type builder struct {
	cards   []domain.Flashcard
	current domain.Flashcard
	field   field
	lines   []string
}

func (b *builder) flushField() {
	if b.field == none {
		return
	}
	content := strings.Join(b.lines, "\n")
	switch b.field {
	case front:
		b.current.Front = content
	case back:
		b.current.Back = content
	case context:
		b.current.Context = content
	}
	b.lines = nil
}

func (b *builder) finishCard() {
	b.flushField()
	if b.current.Front != "" {
		if b.current.Type == "" {
			b.current.Type = domain.Vocabulary
		}
		b.cards = append(b.cards, b.current)
	}
	b.current = domain.Flashcard{}
	b.field = none
}

// Parse reads a deck from r. Cards without a front are dropped.
func Parse(r io.Reader) ([]domain.Flashcard, error) {
	scanner := bufio.NewScanner(r)
	var b builder

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Text()

		if line == "---" {
			b.finishCard()
			continue
		}

		if v, ok := cutPrefix(line, typePrefix); ok {
			t := domain.CardType(strings.ToLower(strings.TrimSpace(v)))
			if !t.Valid() {
				return nil, fmt.Errorf("line %d: unknown card type %q", lineNo, v)
			}
			b.flushField()
			b.field = none
			b.current.Type = t
			continue
		}

		if f, v, ok := fieldLine(line); ok {
			if f == front && (b.current.Front != "" || b.field != none) {
				// A new front always starts a new card.
				b.finishCard()
			} else {
				b.flushField()
			}
			b.field = f
			b.lines = append(b.lines, v)
			continue
		}

		if b.field != none {
			b.lines = append(b.lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	b.finishCard()

	for i := range b.cards {
		c := &b.cards[i]
		c.Front = strings.TrimSpace(c.Front)
		c.Back = strings.TrimSpace(c.Back)
		c.Context = strings.TrimSpace(c.Context)
	}
	return b.cards, nil
}

func fieldLine(line string) (field, string, bool) {
	for p, f := range prefixes {
		if v, ok := cutPrefix(line, p); ok {
			return f, v, true
		}
	}
	return none, "", false
}

// cutPrefix strips prefix and at most one following space.
func cutPrefix(line, prefix string) (string, bool) {
	v, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(v, " "), true
}
