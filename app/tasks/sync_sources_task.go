package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"feedgarden/app/database"
	"feedgarden/app/feed"
	"feedgarden/app/proxy"
)

type SyncSourcesTask struct {
	Task
	path    string
	sources database.SourceRepository
	tags    database.TagRepository
	proxies database.ProxyRepository
	pool    *proxy.Pool
}

func NewSyncSourcesTask(path string, sources database.SourceRepository,
	tags database.TagRepository, proxies database.ProxyRepository, pool *proxy.Pool) *SyncSourcesTask {
	return &SyncSourcesTask{
		Task:    NewTask(TaskTypeSyncSources, 0, path),
		path:    path,
		sources: sources,
		tags:    tags,
		proxies: proxies,
		pool:    pool,
	}
}

func (t *SyncSourcesTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	subs, err := feed.LoadSubscriptions(t.path)
	if err != nil {
		slog.Error("Task failed", "type", "SyncSources", "path", t.path, "error", err)
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}

	if err := t.syncProxies(ctx, subs.Proxies); err != nil {
		slog.Error("Task failed", "type", "SyncSources", "path", t.path, "error", err)
		return err
	}

	synced := 0
	for i := range subs.Sources {
		if err := t.syncSource(ctx, &subs.Sources[i]); err != nil {
			slog.Error("Failed to sync source", "feed_url", subs.Sources[i].FeedURL, "error", err)
			continue
		}
		synced++
	}

	slog.Info("Task completed",
		"type", "SyncSources",
		"path", t.path,
		"duration", t.GetDuration(),
		"sources", synced,
		"proxies", t.pool.Len())

	return nil
}

// syncProxies stores the declared proxy addresses and seeds the pool with
// everything known, previous runs included.
func (t *SyncSourcesTask) syncProxies(ctx context.Context, addresses []string) error {
	for _, address := range addresses {
		if err := t.proxies.UpsertProxy(ctx, address); err != nil {
			return fmt.Errorf("failed to store proxy %s: %w", address, err)
		}
	}

	stored, err := t.proxies.ListProxies(ctx)
	if err != nil {
		return fmt.Errorf("failed to list proxies: %w", err)
	}

	known := make([]string, 0, len(stored))
	for _, p := range stored {
		known = append(known, p.Address)
	}
	t.pool.SetProxies(known)

	return nil
}

// syncSource upserts one subscription by feed URL. New sources keep a NULL
// duePoll so they are polled ahead of everything already scheduled.
func (t *SyncSourcesTask) syncSource(ctx context.Context, sub *feed.Subscription) error {
	var categoryID *int64
	if sub.Category != "" {
		id, err := t.sources.EnsureCategory(ctx, sub.Category)
		if err != nil {
			return fmt.Errorf("failed to ensure category %s: %w", sub.Category, err)
		}
		categoryID = &id
	}

	src, err := t.sources.GetSourceByFeedURL(ctx, sub.FeedURL)
	switch {
	case errors.Is(err, database.ErrNotFound):
		src = &database.Source{
			Name:       sub.Name,
			SiteURL:    sub.SiteURL,
			FeedURL:    sub.FeedURL,
			Interval:   sub.Interval,
			Live:       sub.IsLive(),
			NumSubs:    sub.Subscribers,
			CategoryID: categoryID,
		}
		if err := t.sources.CreateSource(ctx, src); err != nil {
			return fmt.Errorf("failed to create source: %w", err)
		}
		slog.Debug("Source created", "feed_url", sub.FeedURL)

	case err != nil:
		return fmt.Errorf("failed to look up source: %w", err)

	default:
		// The file wins for fields it declares; name and site URL may
		// have been filled from feed metadata, so empty declarations
		// leave them alone.
		if sub.Name != "" {
			src.Name = sub.Name
		}
		if sub.SiteURL != "" {
			src.SiteURL = sub.SiteURL
		}
		src.Interval = sub.Interval
		src.NumSubs = sub.Subscribers
		src.CategoryID = categoryID

		live := sub.IsLive()
		if live && !src.Live {
			src.FailureCount = 0
			slog.Info("Source resurrected", "feed_url", sub.FeedURL)
		}
		src.Live = live

		if err := t.sources.UpdateSubscription(ctx, src); err != nil {
			return fmt.Errorf("failed to update source: %w", err)
		}
	}

	for _, name := range sub.Tags {
		tagID, err := t.tags.EnsureTag(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to ensure tag %s: %w", name, err)
		}
		if err := t.tags.TagSource(ctx, src.ID, tagID); err != nil {
			return fmt.Errorf("failed to tag source: %w", err)
		}
	}

	return nil
}
