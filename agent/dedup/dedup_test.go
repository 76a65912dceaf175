package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeenOrRecord_FirstSubmissionIsNotSeen(t *testing.T) {
	t.Parallel()

	d := NewMemDedup(5 * time.Second)
	id, seen := d.SeenOrRecord(context.Background(), "user-1", "plan a trip", "req-1")
	assert.False(t, seen)
	assert.Empty(t, id)
}

func TestSeenOrRecord_DuplicateWithinWindowReturnsOriginalID(t *testing.T) {
	t.Parallel()

	d := NewMemDedup(5 * time.Second)
	_, seen := d.SeenOrRecord(context.Background(), "user-1", "plan a trip", "req-1")
	require.False(t, seen)

	id, seen := d.SeenOrRecord(context.Background(), "user-1", "plan a trip", "req-2")
	assert.True(t, seen)
	assert.Equal(t, "req-1", id)
}

func TestSeenOrRecord_DifferentUserOrInputIsNotADuplicate(t *testing.T) {
	t.Parallel()

	d := NewMemDedup(5 * time.Second)
	_, seen := d.SeenOrRecord(context.Background(), "user-1", "plan a trip", "req-1")
	require.False(t, seen)

	_, seen = d.SeenOrRecord(context.Background(), "user-2", "plan a trip", "req-2")
	assert.False(t, seen, "different user should not be deduped")

	_, seen = d.SeenOrRecord(context.Background(), "user-1", "plan a different trip", "req-3")
	assert.False(t, seen, "different input should not be deduped")
}

func TestSeenOrRecord_ExpiresAfterWindow(t *testing.T) {
	t.Parallel()

	d := NewMemDedup(5 * time.Second)
	current := time.Now()
	d.now = func() time.Time { return current }

	_, seen := d.SeenOrRecord(context.Background(), "user-1", "plan a trip", "req-1")
	require.False(t, seen)

	current = current.Add(6 * time.Second)
	id, seen := d.SeenOrRecord(context.Background(), "user-1", "plan a trip", "req-2")
	assert.False(t, seen)
	assert.Empty(t, id)
}

func TestNewMemDedup_NonPositiveWindowDefaults(t *testing.T) {
	t.Parallel()

	d := NewMemDedup(0)
	assert.Equal(t, DefaultWindow, d.window)
}
