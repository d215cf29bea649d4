package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// logTimeFormat has fixed-width fractions so created_at sorts as text.
const logTimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// LogRecommendation stores one served request. ID and CreatedAt are filled
// in when empty.
func (s *Store) LogRecommendation(ctx context.Context, r RecommendationLog) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	ids := r.ProductIDs
	if ids == nil {
		ids = []int64{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encoding product ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recommendations (id, created_at, query, primary_id, product_ids, path, model, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UTC().Format(logTimeFormat), r.Query, r.PrimaryID,
		string(encoded), r.Path, r.Model, r.DurationMs,
	)
	if err != nil {
		return "", fmt.Errorf("logging recommendation: %w", err)
	}
	return r.ID, nil
}

// RecentRecommendations returns up to limit log entries, newest first.
func (s *Store) RecentRecommendations(ctx context.Context, limit int) ([]RecommendationLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, query, primary_id, product_ids, path, model, duration_ms
		FROM recommendations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recommendations: %w", err)
	}
	defer rows.Close()

	var out []RecommendationLog
	for rows.Next() {
		var (
			r         RecommendationLog
			createdAt string
			primary   sql.NullInt64
			ids       string
		)
		if err := rows.Scan(&r.ID, &createdAt, &r.Query, &primary, &ids, &r.Path, &r.Model, &r.DurationMs); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", r.ID, err)
		}
		r.CreatedAt = t
		if primary.Valid {
			v := primary.Int64
			r.PrimaryID = &v
		}
		if err := json.Unmarshal([]byte(ids), &r.ProductIDs); err != nil {
			return nil, fmt.Errorf("decoding product ids for %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
