package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPinnedMemoryStore(start time.Time, step time.Duration) *MemoryStore {
	ms := NewMemoryStore()
	next := start
	ms.Now = func() time.Time {
		now := next
		next = next.Add(step)
		return now
	}
	return ms
}

// ============================================
// Append Tests
// ============================================

func TestMemoryStore_Append(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	snap, err := ms.Append(ctx, "Ticket", "t-1", json.RawMessage(`{"subject":"x"}`), "open", "tester")

	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "Ticket", snap.SubjectType)
	assert.Equal(t, "t-1", snap.SubjectID)
	assert.Equal(t, "open", snap.State)
	assert.Equal(t, "tester", snap.CreatedBy)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestMemoryStore_Append_CopiesPayload(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	payload := json.RawMessage(`{"subject":"x"}`)
	_, err := ms.Append(ctx, "Ticket", "t-1", payload, "", "")
	require.NoError(t, err)

	// Mutating the caller's slice must not reach the stored snapshot.
	payload[2] = 'X'

	stored, err := ms.Latest(ctx, "Ticket", "t-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"subject":"x"}`, string(stored.Payload))
}

// ============================================
// Latest Tests
// ============================================

func TestMemoryStore_Latest_Empty(t *testing.T) {
	ms := NewMemoryStore()

	snap, err := ms.Latest(context.Background(), "Ticket", "t-1")

	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestMemoryStore_Latest_NewestWins(t *testing.T) {
	ms := newPinnedMemoryStore(time.Unix(1000, 0).UTC(), time.Second)
	ctx := context.Background()

	_, err := ms.Append(ctx, "Ticket", "t-1", json.RawMessage(`{"n":1}`), "open", "")
	require.NoError(t, err)
	second, err := ms.Append(ctx, "Ticket", "t-1", json.RawMessage(`{"n":2}`), "closed", "")
	require.NoError(t, err)

	latest, err := ms.Latest(ctx, "Ticket", "t-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestMemoryStore_Latest_TieBreaksByID(t *testing.T) {
	// Both snapshots land on the same clock tick; the larger ID wins so
	// "latest" stays deterministic.
	ms := newPinnedMemoryStore(time.Unix(1000, 0).UTC(), 0)
	ctx := context.Background()

	a, err := ms.Append(ctx, "Ticket", "t-1", json.RawMessage(`{}`), "", "")
	require.NoError(t, err)
	b, err := ms.Append(ctx, "Ticket", "t-1", json.RawMessage(`{}`), "", "")
	require.NoError(t, err)

	want := a.ID
	if b.ID > a.ID {
		want = b.ID
	}

	latest, err := ms.Latest(ctx, "Ticket", "t-1")
	require.NoError(t, err)
	assert.Equal(t, want, latest.ID)
}

func TestMemoryStore_Latest_SubjectsAreIsolated(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	_, err := ms.Append(ctx, "Ticket", "t-1", json.RawMessage(`{}`), "", "")
	require.NoError(t, err)

	snap, err := ms.Latest(ctx, "Ticket", "t-2")
	require.NoError(t, err)
	assert.Nil(t, snap)

	snap, err = ms.Latest(ctx, "Order", "t-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

// ============================================
// LatestAtState Tests
// ============================================

func TestMemoryStore_LatestAtState(t *testing.T) {
	ms := newPinnedMemoryStore(time.Unix(1000, 0).UTC(), time.Second)
	ctx := context.Background()

	first, err := ms.Append(ctx, "Ticket", "t-1", json.RawMessage(`{"n":1}`), "open", "")
	require.NoError(t, err)
	second, err := ms.Append(ctx, "Ticket", "t-1", json.RawMessage(`{"n":2}`), "open", "")
	require.NoError(t, err)
	_, err = ms.Append(ctx, "Ticket", "t-1", json.RawMessage(`{"n":3}`), "closed", "")
	require.NoError(t, err)

	atOpen, err := ms.LatestAtState(ctx, "Ticket", "t-1", "open")
	require.NoError(t, err)
	assert.Equal(t, second.ID, atOpen.ID, "most recent open-state snapshot, not the first")
	assert.NotEqual(t, first.ID, atOpen.ID)

	missing, err := ms.LatestAtState(ctx, "Ticket", "t-1", "archived")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// ============================================
// List Tests
// ============================================

func TestMemoryStore_List_NewestFirst(t *testing.T) {
	ms := newPinnedMemoryStore(time.Unix(1000, 0).UTC(), time.Second)
	ctx := context.Background()

	for _, state := range []string{"draft", "approved", "rented"} {
		_, err := ms.Append(ctx, "Ticket", "t-1", json.RawMessage(`{}`), state, "")
		require.NoError(t, err)
	}

	snapshots, err := ms.List(ctx, "Ticket", "t-1")
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.Equal(t, "rented", snapshots[0].State)
	assert.Equal(t, "approved", snapshots[1].State)
	assert.Equal(t, "draft", snapshots[2].State)
}

func TestMemoryStore_List_Empty(t *testing.T) {
	ms := NewMemoryStore()

	snapshots, err := ms.List(context.Background(), "Ticket", "t-1")
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}
