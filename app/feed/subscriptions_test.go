package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSubscriptions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write subscriptions: %v", err)
	}
	return path
}

func TestLoadSubscriptions(t *testing.T) {
	path := writeSubscriptions(t, `
proxies:
  - http://proxy-1:3128
  - http://proxy-2:3128
sources:
  - feed_url: https://example.com/feed.xml
    name: Example
    site_url: https://example.com
    interval: 900
    category: tech
    tags: [golang, news]
    subscribers: 3
  - feed_url: https://minimal.example/rss
  - feed_url: https://paused.example/rss
    live: false
`)

	subs, err := LoadSubscriptions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(subs.Proxies) != 2 {
		t.Errorf("expected 2 proxies, got %d", len(subs.Proxies))
	}
	if len(subs.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(subs.Sources))
	}

	full := subs.Sources[0]
	if full.Name != "Example" || full.Interval != 900 || full.Category != "tech" || full.Subscribers != 3 {
		t.Errorf("unexpected first source: %+v", full)
	}
	if len(full.Tags) != 2 {
		t.Errorf("expected 2 tags, got %v", full.Tags)
	}
	if !full.IsLive() {
		t.Error("expected sources to default to live")
	}

	minimal := subs.Sources[1]
	if minimal.Interval != DefaultInterval {
		t.Errorf("expected default interval %d, got %d", DefaultInterval, minimal.Interval)
	}
	if minimal.Subscribers != 1 {
		t.Errorf("expected default subscriber count 1, got %d", minimal.Subscribers)
	}

	if subs.Sources[2].IsLive() {
		t.Error("expected live: false to be honored")
	}
}

func TestLoadSubscriptionsValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing feed_url",
			content: `
sources:
  - name: No URL
`,
			wantErr: "feed_url is required",
		},
		{
			name: "duplicate feed_url",
			content: `
sources:
  - feed_url: https://example.com/feed
  - feed_url: https://example.com/feed
`,
			wantErr: "duplicate feed_url",
		},
		{
			name:    "malformed yaml",
			content: "sources: [",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSubscriptions(t, tt.content)
			_, err := LoadSubscriptions(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadSubscriptionsMissingFile(t *testing.T) {
	_, err := LoadSubscriptions(filepath.Join(t.TempDir(), "nope.yml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
