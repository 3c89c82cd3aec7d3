package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conorfennell/geolingo/internal/domain"
	"github.com/conorfennell/geolingo/internal/storage"
)

// Store is the PostgreSQL implementation of storage.Store.
type Store struct {
	pool *pgxpool.Pool
	tx   *Transactor
}

var _ storage.Store = (*Store)(nil)

// New applies the schema and returns a Store backed by pool.
// Close closes the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, tx: NewTransactor(pool)}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const cardColumns = `id, type, front, back, context, created_at, review_count, ease_factor,
	interval_days, next_review_date, last_review_date, quality, source_id`

func scanCard(row pgx.Row) (domain.Flashcard, error) {
	var (
		c                     domain.Flashcard
		cardType              string
		createdAt, nextReview int64
		lastReview            *int64
		quality               *int32
	)
	err := row.Scan(&c.ID, &cardType, &c.Front, &c.Back, &c.Context, &createdAt, &c.ReviewCount,
		&c.EaseFactor, &c.Interval, &nextReview, &lastReview, &quality, &c.SourceID)
	if err != nil {
		return domain.Flashcard{}, err
	}

	c.Type = domain.CardType(cardType)
	c.CreatedAt = storage.FromMillis(createdAt)
	c.NextReviewDate = storage.FromMillis(nextReview)
	if lastReview != nil {
		t := storage.FromMillis(*lastReview)
		c.LastReviewDate = &t
	}
	if quality != nil {
		q := int(*quality)
		c.Quality = &q
	}
	return c, nil
}

func millisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := storage.Millis(*t)
	return &ms
}

func (s *Store) InsertCard(ctx context.Context, c domain.Flashcard) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO flashcards (`+cardColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`,
		c.ID, string(c.Type), c.Front, c.Back, c.Context,
		storage.Millis(c.CreatedAt), c.ReviewCount, c.EaseFactor, c.Interval,
		storage.Millis(c.NextReviewDate), millisPtr(c.LastReviewDate), c.Quality, c.SourceID,
	)
	if err != nil {
		return fmt.Errorf("insert card %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert card %s: %w", c.ID, storage.ErrDuplicate)
	}
	return nil
}

func (s *Store) GetCard(ctx context.Context, id string) (domain.Flashcard, error) {
	c, err := scanCard(s.pool.QueryRow(ctx, `SELECT `+cardColumns+` FROM flashcards WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Flashcard{}, fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
		}
		return domain.Flashcard{}, fmt.Errorf("get card %s: %w", id, err)
	}
	return c, nil
}

func queryCards(ctx context.Context, db DBTX, query string, args ...any) ([]domain.Flashcard, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.Flashcard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (s *Store) ListCards(ctx context.Context) ([]domain.Flashcard, error) {
	cards, err := queryCards(ctx, s.pool, `SELECT `+cardColumns+` FROM flashcards ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

func (s *Store) ListCardsBySource(ctx context.Context, sourceID int64) ([]domain.Flashcard, error) {
	cards, err := queryCards(ctx, s.pool,
		`SELECT `+cardColumns+` FROM flashcards WHERE source_id = $1 ORDER BY created_at, id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list cards for source %d: %w", sourceID, err)
	}
	return cards, nil
}

func (s *Store) SaveReview(ctx context.Context, c domain.Flashcard, log domain.ReviewLog) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE flashcards
			SET review_count = $1, ease_factor = $2, interval_days = $3, next_review_date = $4,
			    last_review_date = $5, quality = $6
			WHERE id = $7
		`,
			c.ReviewCount, c.EaseFactor, c.Interval, storage.Millis(c.NextReviewDate),
			millisPtr(c.LastReviewDate), c.Quality, c.ID,
		)
		if err != nil {
			return fmt.Errorf("update card %s: %w", c.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("card %s: %w", c.ID, storage.ErrNotFound)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO review_logs (id, card_id, quality, reviewed_at, prev_interval, prev_ease, interval_days, ease_factor)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			log.ID, log.CardID, log.Quality, storage.Millis(log.ReviewedAt),
			log.PrevInterval, log.PrevEase, log.Interval, log.EaseFactor,
		)
		if err != nil {
			return fmt.Errorf("insert review log for %s: %w", c.ID, err)
		}
		return nil
	})
}

func (s *Store) DeleteCard(ctx context.Context, id string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM review_logs WHERE card_id = $1`, id); err != nil {
			return fmt.Errorf("delete review logs for %s: %w", id, err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM flashcards WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete card %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) ListReviewLogs(ctx context.Context, cardID string) ([]domain.ReviewLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, card_id, quality, reviewed_at, prev_interval, prev_ease, interval_days, ease_factor
		FROM review_logs WHERE card_id = $1 ORDER BY reviewed_at, seq
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list review logs for %s: %w", cardID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var (
			l          domain.ReviewLog
			reviewedAt int64
		)
		if err := rows.Scan(&l.ID, &l.CardID, &l.Quality, &reviewedAt,
			&l.PrevInterval, &l.PrevEase, &l.Interval, &l.EaseFactor); err != nil {
			return nil, fmt.Errorf("scan review log for %s: %w", cardID, err)
		}
		l.ReviewedAt = storage.FromMillis(reviewedAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) InsertSource(ctx context.Context, path, sourceType string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sources (path, type) VALUES ($1, $2)
		ON CONFLICT (path) DO NOTHING
		RETURNING id
	`, path, sourceType).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("source %s: %w", path, storage.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert source %s: %w", path, err)
	}
	return id, nil
}

func scanSource(row pgx.Row) (domain.Source, error) {
	var (
		src         domain.Source
		lastScanned *int64
	)
	if err := row.Scan(&src.ID, &src.Path, &src.Type, &lastScanned); err != nil {
		return domain.Source{}, err
	}
	if lastScanned != nil {
		t := storage.FromMillis(*lastScanned)
		src.LastScanned = &t
	}
	return src, nil
}

func (s *Store) GetSourceByPath(ctx context.Context, path string) (domain.Source, error) {
	src, err := scanSource(s.pool.QueryRow(ctx, `SELECT id, path, type, last_scanned FROM sources WHERE path = $1`, path))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Source{}, fmt.Errorf("source %s: %w", path, storage.ErrNotFound)
		}
		return domain.Source{}, fmt.Errorf("get source %s: %w", path, err)
	}
	return src, nil
}

func (s *Store) ListSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, path, type, last_scanned FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *Store) TouchSource(ctx context.Context, id int64, scannedAt time.Time) error {
	if _, err := s.pool.Exec(ctx, `UPDATE sources SET last_scanned = $1 WHERE id = $2`, storage.Millis(scannedAt), id); err != nil {
		return fmt.Errorf("update last scanned for source %d: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteSource(ctx context.Context, id int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		stmts := []string{
			`DELETE FROM review_logs WHERE card_id IN (SELECT id FROM flashcards WHERE source_id = $1)`,
			`DELETE FROM flashcards WHERE source_id = $1`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete source %d: %w", id, err)
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete source %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("source %d: %w", id, storage.ErrNotFound)
		}
		return nil
	})
}
