package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sourceColumns = `id, name, site_url, feed_url, image_url, description,
	last_polled, due_poll, etag, last_modified, last_result, interval_seconds,
	last_success, last_change, live, status_code, last_302_url, last_302_start,
	max_index, num_subs, is_cloudflare, failure_count, category_id,
	created_at, updated_at`

// SourceRepo handles database operations for sources and categories.
type SourceRepo struct {
	db *DB
}

var _ SourceRepository = (*SourceRepo)(nil)

func NewSourceRepo(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

func scanSource(row scannable) (*Source, error) {
	var s Source
	var live, isCloudflare int
	var lastPolled, duePoll, lastSuccess, lastChange, last302Start sql.NullString
	var categoryID sql.NullInt64
	var createdAt, updatedAt string

	err := row.Scan(&s.ID, &s.Name, &s.SiteURL, &s.FeedURL, &s.ImageURL, &s.Description,
		&lastPolled, &duePoll, &s.ETag, &s.LastModified, &s.LastResult, &s.Interval,
		&lastSuccess, &lastChange, &live, &s.StatusCode, &s.Last302URL, &last302Start,
		&s.MaxIndex, &s.NumSubs, &isCloudflare, &s.FailureCount, &categoryID,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.LastPolled = timeValue(lastPolled)
	s.DuePoll = timeValue(duePoll)
	s.LastSuccess = timeValue(lastSuccess)
	s.LastChange = timeValue(lastChange)
	s.Last302Start = timeValue(last302Start)
	s.Live = live == 1
	s.IsCloudflare = isCloudflare == 1
	if categoryID.Valid {
		s.CategoryID = &categoryID.Int64
	}
	s.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	s.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &s, nil
}

func (r *SourceRepo) CreateSource(ctx context.Context, s *Source) error {
	now := fmtTime(time.Now())
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sources (name, site_url, feed_url, image_url, description,
			last_polled, due_poll, etag, last_modified, last_result, interval_seconds,
			last_success, last_change, live, status_code, last_302_url, last_302_start,
			max_index, num_subs, is_cloudflare, failure_count, category_id,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.SiteURL, s.FeedURL, s.ImageURL, s.Description,
		fmtNullTime(s.LastPolled), fmtNullTime(s.DuePoll), s.ETag, s.LastModified, s.LastResult, s.Interval,
		fmtNullTime(s.LastSuccess), fmtNullTime(s.LastChange), boolToInt(s.Live), s.StatusCode, s.Last302URL, fmtNullTime(s.Last302Start),
		s.MaxIndex, s.NumSubs, boolToInt(s.IsCloudflare), s.FailureCount, nullInt64(s.CategoryID),
		now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create source: %w", ErrConflict)
		}
		return fmt.Errorf("failed to create source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get source id: %w", err)
	}
	s.ID = id
	return nil
}

func (r *SourceRepo) GetSource(ctx context.Context, id int64) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	s, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return s, nil
}

func (r *SourceRepo) GetSourceByFeedURL(ctx context.Context, feedURL string) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE feed_url = ?`, feedURL)
	s, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source by feed URL: %w", err)
	}
	return s, nil
}

func (r *SourceRepo) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

// GetDueSources returns live sources whose next poll time has passed,
// never-polled sources first. The limit bounds one scheduler sweep.
func (r *SourceRepo) GetDueSources(ctx context.Context, now time.Time, limit int) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sourceColumns+` FROM sources
		WHERE live = 1 AND (due_poll IS NULL OR due_poll <= ?)
		ORDER BY COALESCE(due_poll, ''), id
		LIMIT ?`,
		fmtTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

// UpdateSubscription writes the fields controlled by the subscription file.
// failure_count is included so resurrecting a suspended source resets its backoff.
func (r *SourceRepo) UpdateSubscription(ctx context.Context, s *Source) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sources
		SET name = ?, site_url = ?, interval_seconds = ?, live = ?, num_subs = ?,
			category_id = ?, failure_count = ?, updated_at = ?
		WHERE id = ?`,
		s.Name, s.SiteURL, s.Interval, boolToInt(s.Live), s.NumSubs,
		nullInt64(s.CategoryID), s.FailureCount, fmtTime(time.Now()), s.ID)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return requireRow(res, "source")
}

// UpdatePollState persists everything a poll mutates in one statement.
func (r *SourceRepo) UpdatePollState(ctx context.Context, s *Source) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sources
		SET name = ?, site_url = ?, image_url = ?, description = ?,
			last_polled = ?, due_poll = ?, etag = ?, last_modified = ?,
			last_result = ?, status_code = ?, last_success = ?, last_change = ?,
			live = ?, failure_count = ?, is_cloudflare = ?,
			last_302_url = ?, last_302_start = ?, updated_at = ?
		WHERE id = ?`,
		s.Name, s.SiteURL, s.ImageURL, s.Description,
		fmtNullTime(s.LastPolled), fmtNullTime(s.DuePoll), s.ETag, s.LastModified,
		s.LastResult, s.StatusCode, fmtNullTime(s.LastSuccess), fmtNullTime(s.LastChange),
		boolToInt(s.Live), s.FailureCount, boolToInt(s.IsCloudflare),
		s.Last302URL, fmtNullTime(s.Last302Start), fmtTime(time.Now()), s.ID)
	if err != nil {
		return fmt.Errorf("failed to update poll state: %w", err)
	}
	return requireRow(res, "source")
}

func (r *SourceRepo) DeleteSource(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return requireRow(res, "source")
}

// EnsureCategory returns the id of the named category, creating it if needed.
func (r *SourceRepo) EnsureCategory(ctx context.Context, name string) (int64, error) {
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure category: %w", err)
	}
	var id int64
	err = r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to get category id: %w", err)
	}
	return id, nil
}

func (r *SourceRepo) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return count, nil
}

func requireRow(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return nil
}
