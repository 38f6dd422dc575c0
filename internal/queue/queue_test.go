package queue

import "testing"

func TestNewRedisBusDefaultsVisibility(t *testing.T) {
	b := NewRedisBus(nil, "oj", 0)
	if b.visibility != DefaultVisibilityTimeout {
		t.Fatalf("expected default visibility timeout, got %v", b.visibility)
	}

	b2 := NewRedisBus(nil, "oj", -5)
	if b2.visibility != DefaultVisibilityTimeout {
		t.Fatalf("expected a non-positive visibility to fall back to the default, got %v", b2.visibility)
	}
}

func TestNewRedisBusKeepsExplicitVisibility(t *testing.T) {
	b := NewRedisBus(nil, "oj", 10)
	if b.visibility != 10 {
		t.Fatalf("expected the explicit visibility to be kept, got %v", b.visibility)
	}
}

func TestQueueKeysAreNamespaced(t *testing.T) {
	b := NewRedisBus(nil, "oj", 0)
	if got := b.pendingKey(JobQueueName); got != "oj:jobs:pending" {
		t.Fatalf("unexpected pending key: %q", got)
	}
	if got := b.processingKey(JobQueueName); got != "oj:jobs:processing" {
		t.Fatalf("unexpected processing key: %q", got)
	}
}

func TestNewRedisClientRejectsEmptyURL(t *testing.T) {
	if _, err := NewRedisClient(""); err == nil {
		t.Fatalf("expected an error for an empty redis url")
	}
}
