package feed

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
	sanitizer    *bluemonday.Policy
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		sanitizer:    bluemonday.UGCPolicy(),
	}
}

// Run parses raw feed bytes into normalized entries ordered oldest first.
// A document gofeed cannot make sense of fails the whole poll; a single
// bad entry is skipped and counted instead.
func (p *Parser) Run(data []byte, contentTypeHint string) (*ParseResult, error) {
	decoded := decodeCharset(data, contentTypeHint)

	parsed, err := p.gofeedParser.Parse(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	result := &ParseResult{
		Metadata: Metadata{
			Title:       parsed.Title,
			Link:        parsed.Link,
			Description: parsed.Description,
		},
	}
	if parsed.Image != nil {
		result.Metadata.ImageURL = parsed.Image.URL
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entry, ok := p.normalizeItem(item)
		if !ok {
			result.Skipped++
			continue
		}
		entries = append(entries, entry)
	}
	result.Entries = orderOldestFirst(entries)

	return result, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) (Entry, bool) {
	if item == nil {
		return Entry{}, false
	}

	rawBody := item.Content
	if rawBody == "" {
		rawBody = item.Description
	}

	entry := Entry{
		Link:   item.Link,
		Title:  strings.TrimSpace(item.Title),
		Body:   p.sanitizer.Sanitize(rawBody),
		Author: p.extractAuthor(item),
	}

	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		entry.PublishedAt = &published
	}
	if item.Image != nil {
		entry.ImageURL = item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		normalized := Enclosure{
			Href:   enc.URL,
			Type:   enc.Type,
			Medium: mediumFromType(enc.Type),
		}
		if enc.Length != "" {
			if length, err := strconv.ParseInt(enc.Length, 10, 64); err == nil {
				normalized.Length = length
			}
		}
		entry.Enclosures = append(entry.Enclosures, normalized)
	}

	entry.GUID = entryGUID(item, rawBody)
	if entry.GUID == "" {
		return Entry{}, false
	}
	return entry, true
}

// entryGUID derives the dedup identity for an item: the feed's own guid,
// else the link, else a content hash. The hash covers the raw title and
// body so the identity survives sanitizer policy changes. An item with
// none of these has no stable identity and is dropped.
func entryGUID(item *gofeed.Item, rawBody string) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	if item.Title == "" && rawBody == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(item.Title + "|" + rawBody))
	return "sha256:" + hex.EncodeToString(hash[:])
}

func (p *Parser) extractAuthor(item *gofeed.Item) string {
	var authors []string

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author == nil {
				continue
			}
			if formatted := formatAuthor(author.Name, author.Email); formatted != "" {
				authors = append(authors, formatted)
			}
		}
	} else if item.Author != nil {
		if formatted := formatAuthor(item.Author.Name, item.Author.Email); formatted != "" {
			authors = append(authors, formatted)
		}
	}

	return strings.Join(authors, ", ")
}

func formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}

func mediumFromType(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	}
	return ""
}

// orderOldestFirst arranges entries in ingestion order so assigned indices
// approximate chronology. Publish times order the entries when every entry
// has one; otherwise the feed order is reversed, feeds conventionally
// listing newest first.
func orderOldestFirst(entries []Entry) []Entry {
	allDated := true
	for _, e := range entries {
		if e.PublishedAt == nil {
			allDated = false
			break
		}
	}

	if allDated {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].PublishedAt.Before(*entries[j].PublishedAt)
		})
		return entries
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}
