package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	// Test default version
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestSetAndGet(t *testing.T) {
	c := &Cfg{
		DBPath:            "./data/test.db",
		Subscriptions:     "./sources.yml",
		WorkerCount:       5,
		SchedulerInterval: 30,
		PollBatch:         50,
		FetchTimeout:      30,
		MaxFailures:       10,
		MaxBackoff:        86400,
		ProxyAttempts:     3,
		UserAgent:         "feedgarden/1.0",
		Debug:             true,
		Version:           "test",
	}
	Set(c)

	got := Get()
	if got != c {
		t.Fatal("Expected Get to return the configuration passed to Set")
	}
	if got.WorkerCount != 5 {
		t.Errorf("Expected worker count 5, got %d", got.WorkerCount)
	}
	if got.MaxBackoff != 86400 {
		t.Errorf("Expected max backoff 86400, got %d", got.MaxBackoff)
	}
	if !got.Debug {
		t.Error("Expected debug to be enabled")
	}
}
