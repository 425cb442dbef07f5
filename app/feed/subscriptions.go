package feed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultInterval is the poll interval in seconds for sources that do not
// configure one.
const DefaultInterval = 400

// Subscription is one source declaration from the subscriptions file.
type Subscription struct {
	FeedURL     string   `yaml:"feed_url"`
	Name        string   `yaml:"name"`
	SiteURL     string   `yaml:"site_url"`
	Interval    int      `yaml:"interval"`
	Live        *bool    `yaml:"live"`
	Category    string   `yaml:"category"`
	Tags        []string `yaml:"tags"`
	Subscribers int      `yaml:"subscribers"`
}

// IsLive reports whether polling is enabled; sources are live unless the
// file says otherwise.
func (s *Subscription) IsLive() bool {
	return s.Live == nil || *s.Live
}

// Subscriptions is the parsed subscriptions file: the sources to poll and
// the web proxies available for blocked fetches.
type Subscriptions struct {
	Proxies []string       `yaml:"proxies"`
	Sources []Subscription `yaml:"sources"`
}

// LoadSubscriptions reads and validates the subscriptions file. Defaults
// are applied in place: interval 400s, one subscriber.
func LoadSubscriptions(path string) (*Subscriptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriptions file: %w", err)
	}

	var subs Subscriptions
	if err := yaml.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("failed to parse subscriptions file: %w", err)
	}

	seen := make(map[string]bool, len(subs.Sources))
	for i := range subs.Sources {
		sub := &subs.Sources[i]
		if sub.FeedURL == "" {
			return nil, fmt.Errorf("source %d: feed_url is required", i)
		}
		if seen[sub.FeedURL] {
			return nil, fmt.Errorf("duplicate feed_url: %s", sub.FeedURL)
		}
		seen[sub.FeedURL] = true

		if sub.Interval <= 0 {
			sub.Interval = DefaultInterval
		}
		if sub.Subscribers <= 0 {
			sub.Subscribers = 1
		}
	}

	return &subs, nil
}
