package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// DefaultHistoryLimit is how many records the history read path returns.
const DefaultHistoryLimit = 10

type Store struct {
	DB *sql.DB
}

// SearchRecord is one row of the append-only voice search history.
type SearchRecord struct {
	ID             string    `json:"id"`
	Query          string    `json:"query"`
	ResultsCount   int       `json:"results_count"`
	ProcessingTime float64   `json:"processing_time"`
	Timestamp      time.Time `json:"timestamp"`
	Language       string    `json:"language"`
}

func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// InsertSearch appends rec. A missing ID or timestamp is filled in and the
// stored record is returned.
func (s *Store) InsertSearch(ctx context.Context, rec SearchRecord) (SearchRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.ResultsCount < 0 {
		return SearchRecord{}, fmt.Errorf("results_count must not be negative")
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO voice_searches (id, query, results_count, processing_time, searched_at, language)
VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.Query, rec.ResultsCount, rec.ProcessingTime, rec.Timestamp, rec.Language)
	if err != nil {
		return SearchRecord{}, fmt.Errorf("insert voice search: %w", err)
	}
	return rec, nil
}

// RecentSearches returns up to limit records, newest first.
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]SearchRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, query, results_count, processing_time, searched_at, language
FROM voice_searches
ORDER BY searched_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list voice searches: %w", err)
	}
	defer rows.Close()
	out := make([]SearchRecord, 0, limit)
	for rows.Next() {
		var r SearchRecord
		if err := rows.Scan(&r.ID, &r.Query, &r.ResultsCount, &r.ProcessingTime, &r.Timestamp, &r.Language); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
