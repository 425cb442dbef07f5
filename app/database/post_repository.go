package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const postColumns = `id, source_id, title, body, link, author, guid, idx,
	image_url, read, starred, found_at, created_at`

// PostRepo handles database operations for posts and their enclosures.
type PostRepo struct {
	db *DB
}

var _ PostRepository = (*PostRepo)(nil)

func NewPostRepo(db *DB) *PostRepo {
	return &PostRepo{db: db}
}

func scanPost(row scannable) (*Post, error) {
	var p Post
	var guid sql.NullString
	var read, starred int
	var foundAt, createdAt string

	err := row.Scan(&p.ID, &p.SourceID, &p.Title, &p.Body, &p.Link, &p.Author, &guid, &p.Index,
		&p.ImageURL, &read, &starred, &foundAt, &createdAt)
	if err != nil {
		return nil, err
	}

	p.GUID = guid.String
	p.Read = read == 1
	p.Starred = starred == 1
	p.FoundAt, _ = time.Parse(timeLayout, foundAt)
	p.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &p, nil
}

// CreatePost claims the source's next index and inserts the post and its
// enclosures in a single transaction, so indices stay gapless under
// concurrent writers. The post's Index and ID fields are filled on return.
func (r *PostRepo) CreatePost(ctx context.Context, p *Post, enclosures []Enclosure) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var nextIndex int64
	err = tx.QueryRowContext(ctx, `
		UPDATE sources SET max_index = max_index + 1, updated_at = ?
		WHERE id = ?
		RETURNING max_index`,
		fmtTime(time.Now()), p.SourceID).Scan(&nextIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("source %d: %w", p.SourceID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to claim post index: %w", err)
	}
	p.Index = nextIndex

	res, err := tx.ExecContext(ctx, `
		INSERT INTO posts (source_id, title, body, link, author, guid, idx,
			image_url, read, starred, found_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SourceID, p.Title, p.Body, p.Link, p.Author, nullString(p.GUID), p.Index,
		p.ImageURL, boolToInt(p.Read), boolToInt(p.Starred),
		fmtTime(p.FoundAt), fmtTime(p.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "posts.idx") {
				return fmt.Errorf("failed to insert post at index %d: %w", p.Index, ErrIndexCollision)
			}
			return fmt.Errorf("failed to insert post: %w", ErrConflict)
		}
		return fmt.Errorf("failed to insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get post id: %w", err)
	}
	p.ID = id

	for i := range enclosures {
		enc := &enclosures[i]
		res, err := tx.ExecContext(ctx, `
			INSERT INTO enclosures (post_id, href, type, length, medium, description)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, enc.Href, enc.Type, enc.Length, enc.Medium, enc.Description)
		if err != nil {
			return fmt.Errorf("failed to insert enclosure: %w", err)
		}
		encID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get enclosure id: %w", err)
		}
		enc.ID = encID
		enc.PostID = p.ID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit post: %w", err)
	}
	return nil
}

func (r *PostRepo) GetPostByGUID(ctx context.Context, sourceID int64, guid string) (*Post, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+postColumns+` FROM posts WHERE source_id = ? AND guid = ?`,
		sourceID, guid)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post by guid: %w", err)
	}
	return p, nil
}

// ListPosts returns a source's posts in arrival order. A non-positive limit
// means no limit.
func (r *PostRepo) ListPosts(ctx context.Context, sourceID int64, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts WHERE source_id = ? ORDER BY idx LIMIT ?`,
		sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func (r *PostRepo) ListEnclosures(ctx context.Context, postID int64) ([]Enclosure, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, post_id, href, type, length, medium, description
		FROM enclosures WHERE post_id = ? ORDER BY id`,
		postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enclosures: %w", err)
	}
	defer rows.Close()

	var enclosures []Enclosure
	for rows.Next() {
		var e Enclosure
		if err := rows.Scan(&e.ID, &e.PostID, &e.Href, &e.Type, &e.Length, &e.Medium, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan enclosure: %w", err)
		}
		enclosures = append(enclosures, e)
	}
	return enclosures, rows.Err()
}

func (r *PostRepo) MarkPostRead(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark post read: %w", err)
	}
	return requireRow(res, "post")
}

func (r *PostRepo) UnmarkPostRead(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET read = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to unmark post read: %w", err)
	}
	return requireRow(res, "post")
}

func (r *PostRepo) TogglePostStarred(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET starred = 1 - starred WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to toggle post starred: %w", err)
	}
	return requireRow(res, "post")
}

func (r *PostRepo) GetPostCount(ctx context.Context, sourceID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE source_id = ?`, sourceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

func (r *PostRepo) UnreadCountBySource(ctx context.Context, sourceID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM posts WHERE source_id = ? AND read = 0`,
		sourceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread posts: %w", err)
	}
	return count, nil
}

func (r *PostRepo) UnreadCountByCategory(ctx context.Context, categoryID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM posts p
		JOIN sources s ON p.source_id = s.id
		WHERE s.category_id = ? AND p.read = 0`,
		categoryID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread posts by category: %w", err)
	}
	return count, nil
}
