package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feedgarden/app/database"
	"feedgarden/app/feed"
	"feedgarden/app/fetch"
)

// maxResultLen bounds the stored outcome message.
const maxResultLen = 255

type PollSourceTask struct {
	Task
	sources     database.SourceRepository
	fetcher     *fetch.Fetcher
	parser      *feed.Parser
	ingester    *feed.Ingester
	maxFailures int
	maxBackoff  time.Duration
}

func NewPollSourceTask(sourceID int64, sourceName string, sources database.SourceRepository,
	fetcher *fetch.Fetcher, parser *feed.Parser, ingester *feed.Ingester,
	maxFailures int, maxBackoff time.Duration) *PollSourceTask {
	return &PollSourceTask{
		Task:        NewTask(TaskTypePollSource, sourceID, sourceName),
		sources:     sources,
		fetcher:     fetcher,
		parser:      parser,
		ingester:    ingester,
		maxFailures: maxFailures,
		maxBackoff:  maxBackoff,
	}
}

func (t *PollSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	src, err := t.sources.GetSource(ctx, t.SourceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			slog.Debug("Source no longer exists, skipping", "source", t.SourceName)
			return nil
		}
		return fmt.Errorf("failed to load source: %w", err)
	}

	if !src.Live {
		slog.Debug("Source suspended, skipping", "source", src.DisplayName())
		return nil
	}

	created := t.poll(ctx, src)

	err = t.sources.UpdatePollState(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to record poll state: %w", err)
	}

	slog.Info("Task completed",
		"type", "PollSource",
		"source", src.DisplayName(),
		"duration", t.GetDuration(),
		"result", src.LastResult,
		"new", created)

	return nil
}

// poll runs one fetch-parse-ingest cycle and rewrites the source's poll
// state in place. Fetch and parse failures are outcomes, not task errors:
// they are recorded on the source so the backoff schedule reacts to them.
// Returns the number of posts created.
func (t *PollSourceTask) poll(ctx context.Context, src *database.Source) int {
	now := time.Now().UTC()
	src.LastPolled = &now

	res, err := t.fetcher.Fetch(ctx, src)
	if err != nil {
		statusCode := 0
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			statusCode = fetchErr.StatusCode
		}
		t.recordFailure(src, now, statusCode, err.Error())
		return 0
	}

	src.StatusCode = res.StatusCode
	if res.ViaProxy != "" {
		src.IsCloudflare = true
	}
	t.recordRedirect(src, res.RedirectURL, now)

	if res.NotModified {
		t.recordSuccess(src, now, "Not modified")
		return 0
	}

	// Validators only update from a full response. A 304 carries none and
	// must not clear the stored ones.
	src.ETag = res.ETag
	src.LastModified = res.LastModified

	parsed, err := t.parser.Run(res.Body, res.ContentType)
	if err != nil {
		t.recordFailure(src, now, res.StatusCode, err.Error())
		return 0
	}

	t.fillMetadata(src, parsed.Metadata)

	created, err := t.ingester.Ingest(ctx, src, parsed.Entries)
	if err != nil {
		slog.Error("Post ingestion failed", "source", src.DisplayName(), "created", created, "error", err)
		if created > 0 {
			src.LastChange = &now
		}
		t.recordFailure(src, now, res.StatusCode, err.Error())
		return created
	}

	if created > 0 {
		src.LastChange = &now
	}
	t.recordSuccess(src, now, resultMessage(created, parsed.Skipped))
	return created
}

func (t *PollSourceTask) recordSuccess(src *database.Source, now time.Time, msg string) {
	src.FailureCount = 0
	src.LastSuccess = &now
	src.LastResult = truncateResult(msg)

	due := now.Add(time.Duration(src.Interval) * time.Second)
	src.DuePoll = &due
}

func (t *PollSourceTask) recordFailure(src *database.Source, now time.Time, statusCode int, msg string) {
	src.FailureCount++
	src.StatusCode = statusCode
	src.LastResult = truncateResult(msg)

	// Poll interval doubles per consecutive failure up to the cap; the
	// configured interval itself is never touched.
	delay := time.Duration(src.Interval) * time.Second
	for i := 0; i < src.FailureCount && delay < t.maxBackoff; i++ {
		delay *= 2
	}
	if delay > t.maxBackoff {
		delay = t.maxBackoff
	}
	due := now.Add(delay)
	src.DuePoll = &due

	if src.FailureCount >= t.maxFailures {
		src.Live = false
		slog.Warn("Source suspended after repeated failures", "source", src.DisplayName(), "failures", src.FailureCount)
	}
}

// recordRedirect maintains the redirect bookkeeping. The start timestamp
// survives while the target stays the same, so the age of a long-standing
// redirect is visible; a direct response clears both fields.
func (t *PollSourceTask) recordRedirect(src *database.Source, target string, now time.Time) {
	if target == "" {
		src.Last302URL = ""
		src.Last302Start = nil
		return
	}
	if src.Last302URL != target {
		src.Last302URL = target
		src.Last302Start = &now
	}
}

// fillMetadata copies feed-level metadata onto the source. Fields the
// subscriptions file can declare only fill in when empty; description and
// image always come from the feed.
func (t *PollSourceTask) fillMetadata(src *database.Source, md feed.Metadata) {
	if src.Name == "" {
		src.Name = md.Title
	}
	if src.SiteURL == "" {
		src.SiteURL = md.Link
	}
	if md.Description != "" {
		src.Description = md.Description
	}
	if md.ImageURL != "" {
		src.ImageURL = md.ImageURL
	}
}

func resultMessage(created, skipped int) string {
	msg := "No new posts"
	if created > 0 {
		msg = fmt.Sprintf("Fetched %d new posts", created)
	}
	if skipped > 0 {
		msg = fmt.Sprintf("%s (%d entries skipped)", msg, skipped)
	}
	return msg
}

func truncateResult(msg string) string {
	if len(msg) <= maxResultLen {
		return msg
	}
	return msg[:maxResultLen]
}
