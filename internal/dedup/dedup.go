// Package dedup implements DedupStore: a durable set of
// (channel, feed, url) triples with batch query and idempotent batch
// insert (spec.md §4.1). Grounded on
// bryan-buckman-infovore/internal/database (WAL mode, busy_timeout,
// UNIQUE constraint + INSERT OR IGNORE for idempotent writes) using the
// same pure-Go sqlite driver already in the teacher's dependency graph
// by way of modernc.org/sqlite.
package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed DedupStore.
type Store struct {
	db *sql.DB
}

// Open opens or creates a DedupStore at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open dedup store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate dedup store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS posted (
		channel TEXT NOT NULL,
		feed TEXT NOT NULL,
		url TEXT NOT NULL,
		posted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(channel, feed, url)
	);
	CREATE INDEX IF NOT EXISTS idx_posted_channel_feed ON posted(channel, feed);
	CREATE INDEX IF NOT EXISTS idx_posted_channel_url ON posted(channel, url);
	`
	_, err := s.db.Exec(schema)
	return err
}

// IsNewFeed reports whether no row exists yet for (channel, feed).
func (s *Store) IsNewFeed(ctx context.Context, channel, feed string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM posted WHERE channel = ? AND feed = ? LIMIT 1",
		channel, feed,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("is_new_feed query: %w", err)
	}
	return count == 0, nil
}

// SelectUnpostedForFeed returns the subset of urls for which
// (channel, feed, url) is absent.
func (s *Store) SelectUnpostedForFeed(ctx context.Context, channel, feed string, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	posted, err := s.postedSet(ctx,
		fmt.Sprintf("SELECT url FROM posted WHERE channel = ? AND feed = ? AND url IN (%s)", placeholders(len(urls))),
		append([]interface{}{channel, feed}, toAny(urls)...),
	)
	if err != nil {
		return nil, fmt.Errorf("select_unposted_for_feed: %w", err)
	}
	return filterOut(urls, posted), nil
}

// SelectUnpostedForChannel returns the subset of urls for which no row
// exists with the given channel and any feed (cross-feed dedup scope).
func (s *Store) SelectUnpostedForChannel(ctx context.Context, channel string, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	posted, err := s.postedSet(ctx,
		fmt.Sprintf("SELECT url FROM posted WHERE channel = ? AND url IN (%s)", placeholders(len(urls))),
		append([]interface{}{channel}, toAny(urls)...),
	)
	if err != nil {
		return nil, fmt.Errorf("select_unposted_for_channel: %w", err)
	}
	return filterOut(urls, posted), nil
}

// InsertPosted records all (channel, feed, url) triples atomically. Safe
// to call with already-recorded urls: duplicates are silently ignored.
func (s *Store) InsertPosted(ctx context.Context, channel, feed string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert_posted tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO posted (channel, feed, url) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert_posted: %w", err)
	}
	defer stmt.Close()

	for _, u := range urls {
		if _, err := stmt.ExecContext(ctx, channel, feed, u); err != nil {
			return fmt.Errorf("insert_posted exec: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) postedSet(ctx context.Context, query string, args []interface{}) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posted := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		posted[url] = struct{}{}
	}
	return posted, rows.Err()
}

func filterOut(urls []string, exclude map[string]struct{}) []string {
	out := urls[:0:0]
	for _, u := range urls {
		if _, ok := exclude[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAny(urls []string) []interface{} {
	out := make([]interface{}, len(urls))
	for i, u := range urls {
		out[i] = u
	}
	return out
}
