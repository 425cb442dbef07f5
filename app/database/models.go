package database

import (
	"time"
)

// Source is a pollable feed endpoint together with the state the polling
// engine maintains between fetches: conditional request validators, the next
// due time, backoff bookkeeping and the high-water mark for post indices.
type Source struct {
	ID          int64
	Name        string
	SiteURL     string
	FeedURL     string
	ImageURL    string
	Description string

	LastPolled   *time.Time
	DuePoll      *time.Time // nil means never polled; such sources poll first
	ETag         string
	LastModified string // opaque header value, passed back verbatim
	LastResult   string
	Interval     int // seconds between polls on the happy path
	LastSuccess  *time.Time
	LastChange   *time.Time
	Live         bool
	StatusCode   int
	Last302URL   string
	Last302Start *time.Time
	MaxIndex     int64 // highest post index handed out; only ever increases
	NumSubs      int
	IsCloudflare bool
	FailureCount int
	CategoryID   *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BestLink returns the site homepage when known, the feed URL otherwise.
func (s *Source) BestLink() string {
	if s.SiteURL == "" {
		return s.FeedURL
	}
	return s.SiteURL
}

// DisplayName returns the configured name, falling back to BestLink.
func (s *Source) DisplayName() string {
	if s.Name == "" {
		return s.BestLink()
	}
	return s.Name
}

type Health int

const (
	HealthOK        Health = iota // recent content changes
	HealthStale                   // live but nothing new for a while
	HealthFailing                 // never succeeded, or success state lost
	HealthSuspended               // polling disabled
)

func (h Health) String() string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthStale:
		return "stale"
	case HealthFailing:
		return "failing"
	case HealthSuspended:
		return "suspended"
	}
	return "unknown"
}

// staleAfter is how long a source may go without a content change before its
// health degrades from ok to stale.
const staleAfter = 7 * 24 * time.Hour

// Health derives a staleness signal from a source's polling state. It is a
// pure function of the plain fields so callers can evaluate it on demand.
func (s *Source) Health(now time.Time) Health {
	if !s.Live {
		return HealthSuspended
	}
	if s.LastSuccess == nil || s.LastChange == nil {
		return HealthFailing
	}
	if now.Sub(*s.LastChange) >= staleAfter {
		return HealthStale
	}
	return HealthOK
}

// Post is one ingested feed entry belonging to a Source. Index is the
// per-source monotonic sequence number assigned exactly once at creation;
// posts are displayed ordered by it.
type Post struct {
	ID        int64
	SourceID  int64
	Title     string
	Body      string
	Link      string
	FoundAt   time.Time // ingestion time, immutable once set
	CreatedAt time.Time // the entry's own timestamp from the feed
	GUID      string
	Author    string
	Index     int64
	ImageURL  string
	Read      bool
	Starred   bool
}

// Enclosure is a media attachment owned exclusively by its Post.
type Enclosure struct {
	ID          int64
	PostID      int64
	Length      int64
	Href        string
	Type        string
	Medium      string
	Description string
}

// Tag is a name-unique label attachable to both sources and posts.
type Tag struct {
	ID   int64
	Name string
}

// Category groups sources for aggregate unread counts.
type Category struct {
	ID   int64
	Name string
}

// WebProxy is a candidate outbound proxy for Cloudflare-blocked fetches.
type WebProxy struct {
	ID      int64
	Address string
}
