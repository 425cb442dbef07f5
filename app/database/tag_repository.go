package database

import (
	"context"
	"database/sql"
	"fmt"
)

// TagRepo handles database operations for tags and their attachments.
type TagRepo struct {
	db *DB
}

var _ TagRepository = (*TagRepo)(nil)

func NewTagRepo(db *DB) *TagRepo {
	return &TagRepo{db: db}
}

// EnsureTag returns the id of the named tag, creating it if needed.
func (r *TagRepo) EnsureTag(ctx context.Context, name string) (int64, error) {
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure tag: %w", err)
	}
	var id int64
	err = r.db.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to get tag id: %w", err)
	}
	return id, nil
}

func (r *TagRepo) TagSource(ctx context.Context, sourceID, tagID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO source_tags (source_id, tag_id) VALUES (?, ?)`,
		sourceID, tagID)
	if err != nil {
		return fmt.Errorf("failed to tag source: %w", err)
	}
	return nil
}

func (r *TagRepo) TagPost(ctx context.Context, postID, tagID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO post_tags (post_id, tag_id) VALUES (?, ?)`,
		postID, tagID)
	if err != nil {
		return fmt.Errorf("failed to tag post: %w", err)
	}
	return nil
}

func (r *TagRepo) SourceTags(ctx context.Context, sourceID int64) ([]Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name FROM tags t
		JOIN source_tags st ON st.tag_id = t.id
		WHERE st.source_id = ? ORDER BY t.name`,
		sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list source tags: %w", err)
	}
	defer rows.Close()
	return collectTags(rows)
}

func (r *TagRepo) PostTags(ctx context.Context, postID int64) ([]Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name FROM tags t
		JOIN post_tags pt ON pt.tag_id = t.id
		WHERE pt.post_id = ? ORDER BY t.name`,
		postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list post tags: %w", err)
	}
	defer rows.Close()
	return collectTags(rows)
}

func collectTags(rows *sql.Rows) ([]Tag, error) {
	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
