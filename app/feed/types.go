package feed

import "time"

// Metadata is the feed-level header, used to fill source fields that the
// subscription file left empty.
type Metadata struct {
	Title       string
	Link        string
	Description string
	ImageURL    string
}

// Entry is one normalized feed item ready for ingestion, whatever dialect
// it arrived in.
type Entry struct {
	GUID        string // dedup identity, never empty after normalization
	Link        string
	Title       string
	Body        string
	Author      string
	ImageURL    string
	PublishedAt *time.Time
	Enclosures  []Enclosure
}

// Enclosure is a media attachment as parsed from the feed.
type Enclosure struct {
	Href        string
	Type        string
	Length      int64
	Medium      string
	Description string
}

// ParseResult carries everything a poll learns from one feed document.
// Skipped counts entries dropped for lacking identity or content; they do
// not fail the poll.
type ParseResult struct {
	Metadata Metadata
	Entries  []Entry
	Skipped  int
}
