package stream

import (
	"testing"
	"time"
)

func TestBackoffSequence(t *testing.T) {
	b := DefaultBackoff()
	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for i, expected := range want {
		if got := b.Next(i + 1); got != expected {
			t.Fatalf("attempt %d: got %s, want %s", i+1, got, expected)
		}
	}
}

func TestBackoffZeroAttemptTreatedAsFirst(t *testing.T) {
	b := DefaultBackoff()
	if got := b.Next(0); got != 5*time.Second {
		t.Fatalf("got %s, want 5s", got)
	}
}

func TestBackoffCustomCap(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 3 * time.Second}
	if got := b.Next(2); got != 2*time.Second {
		t.Fatalf("got %s, want 2s", got)
	}
	if got := b.Next(10); got != 3*time.Second {
		t.Fatalf("got %s, want cap 3s", got)
	}
}
