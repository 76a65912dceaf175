// Package dedup implements Request Dedup: a short-TTL hash cache that lets
// Agent Entry recognize a retried or double-submitted request (same user,
// same input, arriving again within the window) and return the original
// run's handle instead of starting a second one.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultWindow is the dedup window spec mandates: a retry within this many
// seconds of the original request is folded into it (scenario S7).
const DefaultWindow = 5 * time.Second

// Dedup tracks recently seen (userID, input) pairs and the request id they
// were first assigned, so a duplicate submission resolves to the same run.
type Dedup interface {
	// SeenOrRecord reports whether (userID, input) was already recorded within
	// the dedup window. If it was, it returns the original requestID and true.
	// If not, it records requestID against the key and returns ("", false).
	SeenOrRecord(ctx context.Context, userID, input, requestID string) (string, bool)
}

type entry struct {
	requestID string
	expiresAt time.Time
}

// MemDedup is an in-process Dedup backed by a map guarded by a mutex, with
// lazy expiry checked on access (no background sweep goroutine).
type MemDedup struct {
	mu      sync.Mutex
	entries map[string]entry
	window  time.Duration
	now     func() time.Time
}

// NewMemDedup constructs a MemDedup. window <= 0 defaults to DefaultWindow.
func NewMemDedup(window time.Duration) *MemDedup {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemDedup{entries: make(map[string]entry), window: window, now: time.Now}
}

func (d *MemDedup) SeenOrRecord(_ context.Context, userID, input, requestID string) (string, bool) {
	key := hashKey(userID, input)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok && now.Before(e.expiresAt) {
		return e.requestID, true
	}
	d.entries[key] = entry{requestID: requestID, expiresAt: now.Add(d.window)}
	if len(d.entries)%256 == 0 {
		d.sweepLocked(now)
	}
	return "", false
}

func (d *MemDedup) sweepLocked(now time.Time) {
	for k, e := range d.entries {
		if !now.Before(e.expiresAt) {
			delete(d.entries, k)
		}
	}
}

func hashKey(userID, input string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + input))
	return hex.EncodeToString(sum[:])
}
