package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/geolingo/internal/domain"
)

// DB is the SQLite implementation of Store.
type DB struct {
	conn *sql.DB
}

var _ Store = (*DB)(nil)

// Open opens the SQLite database at path and applies the schema.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const cardColumns = `id, type, front, back, context, created_at, review_count, ease_factor,
	interval_days, next_review_date, last_review_date, quality, source_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(s scanner) (domain.Flashcard, error) {
	var (
		c                             domain.Flashcard
		cardType                      string
		createdAt, nextReview         int64
		lastReview, quality, sourceID sql.NullInt64
	)
	err := s.Scan(&c.ID, &cardType, &c.Front, &c.Back, &c.Context, &createdAt, &c.ReviewCount,
		&c.EaseFactor, &c.Interval, &nextReview, &lastReview, &quality, &sourceID)
	if err != nil {
		return domain.Flashcard{}, err
	}

	c.Type = domain.CardType(cardType)
	c.CreatedAt = FromMillis(createdAt)
	c.NextReviewDate = FromMillis(nextReview)
	if lastReview.Valid {
		t := FromMillis(lastReview.Int64)
		c.LastReviewDate = &t
	}
	if quality.Valid {
		q := int(quality.Int64)
		c.Quality = &q
	}
	if sourceID.Valid {
		id := sourceID.Int64
		c.SourceID = &id
	}
	return c, nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: Millis(*t), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// InsertCard stores a new card. It returns ErrDuplicate if the ID is taken.
func (db *DB) InsertCard(ctx context.Context, c domain.Flashcard) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO flashcards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID, string(c.Type), c.Front, c.Back, c.Context,
		Millis(c.CreatedAt), c.ReviewCount, c.EaseFactor, c.Interval,
		Millis(c.NextReviewDate), nullMillis(c.LastReviewDate), nullInt(c.Quality), nullInt64(c.SourceID),
	)
	if err != nil {
		return fmt.Errorf("insert card %s: %w", c.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("insert card %s: %w", c.ID, ErrDuplicate)
	}
	return nil
}

// GetCard returns the card with the given ID or ErrNotFound.
func (db *DB) GetCard(ctx context.Context, id string) (domain.Flashcard, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM flashcards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Flashcard{}, fmt.Errorf("card %s: %w", id, ErrNotFound)
		}
		return domain.Flashcard{}, fmt.Errorf("get card %s: %w", id, err)
	}
	return c, nil
}

func (db *DB) queryCards(ctx context.Context, query string, args ...any) ([]domain.Flashcard, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
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

// ListCards returns all cards in creation order.
func (db *DB) ListCards(ctx context.Context) ([]domain.Flashcard, error) {
	cards, err := db.queryCards(ctx, `SELECT `+cardColumns+` FROM flashcards ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// ListCardsBySource returns the cards imported from one source.
func (db *DB) ListCardsBySource(ctx context.Context, sourceID int64) ([]domain.Flashcard, error) {
	cards, err := db.queryCards(ctx,
		`SELECT `+cardColumns+` FROM flashcards WHERE source_id = ? ORDER BY created_at, id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list cards for source %d: %w", sourceID, err)
	}
	return cards, nil
}

// SaveReview writes the reviewed scheduling state and appends the log entry.
func (db *DB) SaveReview(ctx context.Context, c domain.Flashcard, log domain.ReviewLog) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE flashcards
		SET review_count = ?, ease_factor = ?, interval_days = ?, next_review_date = ?,
		    last_review_date = ?, quality = ?
		WHERE id = ?
	`,
		c.ReviewCount, c.EaseFactor, c.Interval, Millis(c.NextReviewDate),
		nullMillis(c.LastReviewDate), nullInt(c.Quality), c.ID,
	)
	if err != nil {
		return fmt.Errorf("update card %s: %w", c.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("card %s: %w", c.ID, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (id, card_id, quality, reviewed_at, prev_interval, prev_ease, interval_days, ease_factor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		log.ID, log.CardID, log.Quality, Millis(log.ReviewedAt),
		log.PrevInterval, log.PrevEase, log.Interval, log.EaseFactor,
	)
	if err != nil {
		return fmt.Errorf("insert review log for %s: %w", c.ID, err)
	}

	return tx.Commit()
}

// DeleteCard removes a card and its review history.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM review_logs WHERE card_id = ?`, id); err != nil {
		return fmt.Errorf("delete review logs for %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM flashcards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// ListReviewLogs returns a card's reviews, oldest first.
func (db *DB) ListReviewLogs(ctx context.Context, cardID string) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, card_id, quality, reviewed_at, prev_interval, prev_ease, interval_days, ease_factor
		FROM review_logs WHERE card_id = ? ORDER BY reviewed_at, rowid
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
		l.ReviewedAt = FromMillis(reviewedAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// InsertSource adds a deck source and returns its ID.
func (db *DB) InsertSource(ctx context.Context, path, sourceType string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, type) VALUES (?, ?)
		ON CONFLICT(path) DO NOTHING
	`, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("insert source %s: %w", path, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, fmt.Errorf("source %s: %w", path, ErrDuplicate)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id for source %s: %w", path, err)
	}
	return id, nil
}

func scanSource(s scanner) (domain.Source, error) {
	var (
		src         domain.Source
		lastScanned sql.NullInt64
	)
	if err := s.Scan(&src.ID, &src.Path, &src.Type, &lastScanned); err != nil {
		return domain.Source{}, err
	}
	if lastScanned.Valid {
		t := FromMillis(lastScanned.Int64)
		src.LastScanned = &t
	}
	return src, nil
}

// GetSourceByPath returns the source registered for path or ErrNotFound.
func (db *DB) GetSourceByPath(ctx context.Context, path string) (domain.Source, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT id, path, type, last_scanned FROM sources WHERE path = ?`, path)
	src, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Source{}, fmt.Errorf("source %s: %w", path, ErrNotFound)
		}
		return domain.Source{}, fmt.Errorf("get source %s: %w", path, err)
	}
	return src, nil
}

// ListSources returns all sources ordered by ID.
func (db *DB) ListSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, path, type, last_scanned FROM sources ORDER BY id`)
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

// TouchSource records when a source was last scanned.
func (db *DB) TouchSource(ctx context.Context, id int64, scannedAt time.Time) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE sources SET last_scanned = ? WHERE id = ?`, Millis(scannedAt), id)
	if err != nil {
		return fmt.Errorf("update last scanned for source %d: %w", id, err)
	}
	return nil
}

// DeleteSource removes a source, its cards and their review logs.
func (db *DB) DeleteSource(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete source tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`DELETE FROM review_logs WHERE card_id IN (SELECT id FROM flashcards WHERE source_id = ?)`,
		`DELETE FROM flashcards WHERE source_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete source %d: %w", id, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete source %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}
