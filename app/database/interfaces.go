package database

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIndexCollision reports a violation of the per-source post index
	// uniqueness. The index is assigned inside the insert transaction, so
	// a collision is an integrity bug, never something to retry.
	ErrIndexCollision = errors.New("post index collision")

	// ErrConflict is returned when a uniqueness constraint other than the
	// post index rejects a write.
	ErrConflict = errors.New("already exists")
)

type SourceRepository interface {
	CreateSource(ctx context.Context, source *Source) error
	GetSource(ctx context.Context, id int64) (*Source, error)
	GetSourceByFeedURL(ctx context.Context, feedURL string) (*Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	GetDueSources(ctx context.Context, now time.Time, limit int) ([]Source, error)
	UpdateSubscription(ctx context.Context, source *Source) error
	UpdatePollState(ctx context.Context, source *Source) error
	DeleteSource(ctx context.Context, id int64) error
	EnsureCategory(ctx context.Context, name string) (int64, error)
	GetSourceCount(ctx context.Context) (int, error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *Post, enclosures []Enclosure) error
	GetPostByGUID(ctx context.Context, sourceID int64, guid string) (*Post, error)
	ListPosts(ctx context.Context, sourceID int64, limit int) ([]Post, error)
	ListEnclosures(ctx context.Context, postID int64) ([]Enclosure, error)
	MarkPostRead(ctx context.Context, id int64) error
	UnmarkPostRead(ctx context.Context, id int64) error
	TogglePostStarred(ctx context.Context, id int64) error
	GetPostCount(ctx context.Context, sourceID int64) (int, error)
	UnreadCountBySource(ctx context.Context, sourceID int64) (int, error)
	UnreadCountByCategory(ctx context.Context, categoryID int64) (int, error)
}

type TagRepository interface {
	EnsureTag(ctx context.Context, name string) (int64, error)
	TagSource(ctx context.Context, sourceID, tagID int64) error
	TagPost(ctx context.Context, postID, tagID int64) error
	SourceTags(ctx context.Context, sourceID int64) ([]Tag, error)
	PostTags(ctx context.Context, postID int64) ([]Tag, error)
}

type ProxyRepository interface {
	UpsertProxy(ctx context.Context, address string) error
	ListProxies(ctx context.Context) ([]WebProxy, error)
	DeleteProxy(ctx context.Context, address string) error
}
