package cache

import (
	"testing"
	"time"
)

func TestNewEntry(t *testing.T) {
	body := []byte(`{"data": []}`)
	entry := NewEntry(body, 200, 15*time.Minute)

	if string(entry.Body) != string(body) {
		t.Errorf("body = %q, want %q", entry.Body, body)
	}
	if entry.StatusCode != 200 {
		t.Errorf("status = %d, want 200", entry.StatusCode)
	}
	if entry.IsExpired() {
		t.Error("fresh entry reports expired")
	}
}

func TestEntry_IsExpired(t *testing.T) {
	expired := NewEntry(nil, 200, -time.Minute)
	if !expired.IsExpired() {
		t.Error("entry with past expiry reports fresh")
	}

	fresh := NewEntry(nil, 200, time.Hour)
	if fresh.IsExpired() {
		t.Error("entry with future expiry reports expired")
	}
}

func TestEntry_TTL(t *testing.T) {
	entry := NewEntry(nil, 200, time.Hour)

	ttl := entry.TTL()
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL() = %v, want within (0, 1h]", ttl)
	}

	expired := NewEntry(nil, 200, -time.Minute)
	if got := expired.TTL(); got != 0 {
		t.Errorf("TTL() = %v for expired entry, want 0", got)
	}
}
