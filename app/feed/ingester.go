package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"feedgarden/app/database"
)

// seenCacheSize bounds the in-memory dedup cache: one entry per
// (source, guid) pair recently confirmed present in the database.
const seenCacheSize = 4096

// Ingester writes parsed entries as posts, deduplicating against already
// ingested ones by (source, guid).
type Ingester struct {
	posts database.PostRepository
	seen  *lru.Cache[string, struct{}]
}

func NewIngester(posts database.PostRepository) *Ingester {
	seen, _ := lru.New[string, struct{}](seenCacheSize)
	return &Ingester{posts: posts, seen: seen}
}

// Ingest stores the entries not seen before and reports how many posts it
// created. Known posts are never rewritten, so read and starred state
// survives feeds re-serving old entries. Entries must arrive oldest first;
// indices are assigned in iteration order.
func (i *Ingester) Ingest(ctx context.Context, src *database.Source, entries []Entry) (int, error) {
	created := 0
	for _, entry := range entries {
		key := seenKey(src.ID, entry.GUID)
		if i.seen.Contains(key) {
			continue
		}

		_, err := i.posts.GetPostByGUID(ctx, src.ID, entry.GUID)
		if err == nil {
			i.seen.Add(key, struct{}{})
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			return created, fmt.Errorf("failed to look up post: %w", err)
		}

		now := time.Now().UTC()
		post := &database.Post{
			SourceID:  src.ID,
			Title:     entry.Title,
			Body:      entry.Body,
			Link:      entry.Link,
			Author:    entry.Author,
			GUID:      entry.GUID,
			ImageURL:  entry.ImageURL,
			FoundAt:   now,
			CreatedAt: now,
		}
		if entry.PublishedAt != nil {
			post.CreatedAt = *entry.PublishedAt
		}

		enclosures := make([]database.Enclosure, 0, len(entry.Enclosures))
		for _, enc := range entry.Enclosures {
			enclosures = append(enclosures, database.Enclosure{
				Href:        enc.Href,
				Type:        enc.Type,
				Length:      enc.Length,
				Medium:      enc.Medium,
				Description: enc.Description,
			})
		}

		if err := i.posts.CreatePost(ctx, post, enclosures); err != nil {
			if errors.Is(err, database.ErrConflict) {
				// Another writer beat us to this entry.
				i.seen.Add(key, struct{}{})
				continue
			}
			return created, fmt.Errorf("failed to create post: %w", err)
		}
		i.seen.Add(key, struct{}{})
		created++
	}

	return created, nil
}

func seenKey(sourceID int64, guid string) string {
	return fmt.Sprintf("%d|%s", sourceID, guid)
}
