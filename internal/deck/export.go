package deck

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/conorfennell/geolingo/internal/domain"
	"github.com/conorfennell/geolingo/internal/storage"
)

type backup struct {
	Cards []domain.Flashcard `yaml:"cards"`
}

// Export writes every card, scheduling state included, as YAML.
func Export(ctx context.Context, store storage.Store, w io.Writer) error {
	cards, err := store.ListCards(ctx)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(backup{Cards: cards}); err != nil {
		return fmt.Errorf("encode cards: %w", err)
	}
	return enc.Close()
}
