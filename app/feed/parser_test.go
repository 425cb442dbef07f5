package feed

import (
	"strings"
	"testing"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <image>
      <url>https://example.com/icon.png</url>
      <title>Test Feed</title>
      <link>https://example.com</link>
    </image>
    <item>
      <title>Newer Item</title>
      <link>https://example.com/item2</link>
      <description>Second</description>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Older Item</title>
      <link>https://example.com/item1</link>
      <description>First</description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	result, err := parser.Run([]byte(rssData), "application/rss+xml")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Metadata.Title != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got: %s", result.Metadata.Title)
	}
	if result.Metadata.Link != "https://example.com" {
		t.Errorf("Expected link 'https://example.com', got: %s", result.Metadata.Link)
	}
	if result.Metadata.ImageURL != "https://example.com/icon.png" {
		t.Errorf("Expected image URL, got: %s", result.Metadata.ImageURL)
	}

	if len(result.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got: %d", len(result.Entries))
	}
	if result.Skipped != 0 {
		t.Errorf("Expected no skipped entries, got: %d", result.Skipped)
	}

	// Oldest first, whatever order the document used.
	if result.Entries[0].GUID != "item-1" {
		t.Errorf("Expected oldest entry first, got: %s", result.Entries[0].GUID)
	}
	if result.Entries[1].GUID != "item-2" {
		t.Errorf("Expected newest entry last, got: %s", result.Entries[1].GUID)
	}

	first := result.Entries[0]
	if first.Title != "Older Item" {
		t.Errorf("Expected title 'Older Item', got: %s", first.Title)
	}
	if first.Link != "https://example.com/item1" {
		t.Errorf("Expected link, got: %s", first.Link)
	}
	if first.Body != "First" {
		t.Errorf("Expected body 'First', got: %s", first.Body)
	}
	if first.PublishedAt == nil {
		t.Error("Expected publish time to be set")
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <id>urn:uuid:1234567890</id>
  <entry>
    <title>Test Entry</title>
    <link href="https://example.com/entry1"/>
    <id>urn:uuid:entry-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
    <author>
      <name>Test Author</name>
    </author>
    <content type="html">Test content</content>
  </entry>
</feed>`

	parser := NewParser()
	result, err := parser.Run([]byte(atomData), "application/atom+xml")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Metadata.Title != "Test Atom Feed" {
		t.Errorf("Expected title 'Test Atom Feed', got: %s", result.Metadata.Title)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(result.Entries))
	}

	entry := result.Entries[0]
	if entry.GUID != "urn:uuid:entry-1" {
		t.Errorf("Expected GUID 'urn:uuid:entry-1', got: %s", entry.GUID)
	}
	if entry.Author != "Test Author" {
		t.Errorf("Expected author 'Test Author', got: %s", entry.Author)
	}
	if entry.Body != "Test content" {
		t.Errorf("Expected body 'Test content', got: %s", entry.Body)
	}
}

func TestParseJSONFeed(t *testing.T) {
	jsonData := `{
  "version": "https://jsonfeed.org/version/1.1",
  "title": "JSON Feed",
  "home_page_url": "https://example.com",
  "items": [
    {
      "id": "json-1",
      "url": "https://example.com/posts/1",
      "content_html": "<p>Hello</p>",
      "date_published": "2023-07-03T10:00:00Z"
    }
  ]
}`

	parser := NewParser()
	result, err := parser.Run([]byte(jsonData), "application/feed+json")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Metadata.Title != "JSON Feed" {
		t.Errorf("Expected title 'JSON Feed', got: %s", result.Metadata.Title)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(result.Entries))
	}
	if result.Entries[0].GUID != "json-1" {
		t.Errorf("Expected GUID 'json-1', got: %s", result.Entries[0].GUID)
	}
	if result.Entries[0].Body != "<p>Hello</p>" {
		t.Errorf("Expected body to survive sanitization, got: %s", result.Entries[0].Body)
	}
}

func TestParseInvalidDocument(t *testing.T) {
	parser := NewParser()
	_, err := parser.Run([]byte("this is not a feed"), "text/html")
	if err == nil {
		t.Fatal("Expected an error for a non-feed document")
	}
}

func TestParseReversesUndatedFeeds(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Undated</title>
    <item><guid>newest</guid><title>n</title></item>
    <item><guid>middle</guid><title>m</title></item>
    <item><guid>oldest</guid><title>o</title></item>
  </channel>
</rss>`

	parser := NewParser()
	result, err := parser.Run([]byte(rssData), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got := []string{result.Entries[0].GUID, result.Entries[1].GUID, result.Entries[2].GUID}
	want := []string{"oldest", "middle", "newest"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestGUIDFallback(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Fallback</title>
    <item><guid>explicit-guid</guid><link>https://example.com/1</link><title>a</title></item>
    <item><link>https://example.com/2</link><title>b</title></item>
    <item><title>Only a title</title><description>and text</description></item>
  </channel>
</rss>`

	parser := NewParser()
	result, err := parser.Run([]byte(rssData), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Entries) != 3 {
		t.Fatalf("Expected 3 entries, got: %d", len(result.Entries))
	}

	// Entries come back reversed (undated feed), so index from the end.
	if got := result.Entries[2].GUID; got != "explicit-guid" {
		t.Errorf("Expected explicit guid, got: %s", got)
	}
	if got := result.Entries[1].GUID; got != "https://example.com/2" {
		t.Errorf("Expected link fallback, got: %s", got)
	}
	hashed := result.Entries[0].GUID
	if !strings.HasPrefix(hashed, "sha256:") || len(hashed) != len("sha256:")+64 {
		t.Errorf("Expected content hash fallback, got: %s", hashed)
	}

	// The hash identity must be stable across parses.
	again, err := parser.Run([]byte(rssData), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if again.Entries[0].GUID != hashed {
		t.Errorf("Expected deterministic hash, got %s then %s", hashed, again.Entries[0].GUID)
	}
}

func TestSkipsEntriesWithoutIdentity(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Partial</title>
    <item><guid>good</guid><title>fine</title></item>
    <item></item>
  </channel>
</rss>`

	parser := NewParser()
	result, err := parser.Run([]byte(rssData), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Errorf("Expected 1 usable entry, got: %d", len(result.Entries))
	}
	if result.Skipped != 1 {
		t.Errorf("Expected 1 skipped entry, got: %d", result.Skipped)
	}
}

func TestSanitizesBody(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Dirty</title>
    <item>
      <guid>x</guid>
      <description><![CDATA[<p>keep</p><script>alert(1)</script><a href="javascript:evil()">link</a>]]></description>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	result, err := parser.Run([]byte(rssData), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	body := result.Entries[0].Body
	if !strings.Contains(body, "<p>keep</p>") {
		t.Errorf("Expected paragraph to survive, got: %s", body)
	}
	if strings.Contains(body, "script") {
		t.Errorf("Expected script to be stripped, got: %s", body)
	}
	if strings.Contains(body, "javascript:") {
		t.Errorf("Expected javascript href to be stripped, got: %s", body)
	}
}

func TestParseEnclosures(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Podcast</title>
    <item>
      <guid>ep-1</guid>
      <title>Episode 1</title>
      <enclosure url="https://example.com/ep1.mp3" length="12345678" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	result, err := parser.Run([]byte(rssData), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Entries[0].Enclosures) != 1 {
		t.Fatalf("Expected 1 enclosure, got: %d", len(result.Entries[0].Enclosures))
	}

	enc := result.Entries[0].Enclosures[0]
	if enc.Href != "https://example.com/ep1.mp3" {
		t.Errorf("Expected href, got: %s", enc.Href)
	}
	if enc.Length != 12345678 {
		t.Errorf("Expected length 12345678, got: %d", enc.Length)
	}
	if enc.Type != "audio/mpeg" {
		t.Errorf("Expected type 'audio/mpeg', got: %s", enc.Type)
	}
	if enc.Medium != "audio" {
		t.Errorf("Expected medium 'audio', got: %s", enc.Medium)
	}
}

func TestCharsetDecoding(t *testing.T) {
	// Latin-1 bytes, no XML encoding declaration; only the HTTP header
	// knows the charset.
	rssData := []byte("<rss version=\"2.0\"><channel><title>Caf\xe9</title>" +
		"<item><guid>x</guid><title>a</title></item></channel></rss>")

	parser := NewParser()
	result, err := parser.Run(rssData, `application/rss+xml; charset=iso-8859-1`)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Metadata.Title != "Café" {
		t.Errorf("Expected decoded title 'Café', got: %s", result.Metadata.Title)
	}
}

func TestDecodeCharset(t *testing.T) {
	latin1 := []byte("Caf\xe9")

	tests := []struct {
		name string
		data []byte
		hint string
		want string
	}{
		{"no hint", latin1, "", "Caf\xe9"},
		{"utf-8 hint", []byte("Café"), "text/xml; charset=utf-8", "Café"},
		{"latin-1 hint", latin1, "text/xml; charset=iso-8859-1", "Café"},
		{"unknown charset", latin1, "text/xml; charset=klingon", "Caf\xe9"},
		{
			"xml declaration wins",
			[]byte(`<?xml version="1.0" encoding="iso-8859-1"?><rss/>`),
			"text/xml; charset=utf-16",
			`<?xml version="1.0" encoding="iso-8859-1"?><rss/>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeCharset(tt.data, tt.hint)
			if string(got) != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatAuthor(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"Jane Doe", "jane@example.com", "jane@example.com (Jane Doe)"},
		{"Jane Doe", "", "Jane Doe"},
		{"", "jane@example.com", "jane@example.com"},
		{"", "", ""},
		{"  spaced  ", "", "spaced"},
	}

	for _, tt := range tests {
		if got := formatAuthor(tt.name, tt.email); got != tt.want {
			t.Errorf("formatAuthor(%q, %q): expected %q, got %q", tt.name, tt.email, tt.want, got)
		}
	}
}
