package memento

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/memento/internal/infrastructure/store/mocks"
)

func newBoundTicket(t *testing.T) (*testTicket, *Serializer, *mocks.MockSnapshotStore) {
	t.Helper()
	serializer, reg, snapshots := newTestSerializer(t)
	ticket := newTestTicket()
	ticket.Bind(ticket, reg, snapshots)
	return ticket, serializer, snapshots
}

// ============================================
// Lock Tests
// ============================================

func TestRemembers_Lock_NoSnapshot(t *testing.T) {
	ticket, _, _ := newBoundTicket(t)

	assert.False(t, ticket.Lock(context.Background()))
	assert.False(t, ticket.Remembering())
	assert.Nil(t, ticket.Snapshot())
}

func TestRemembers_Lock_Unbound(t *testing.T) {
	ticket := newTestTicket()

	assert.False(t, ticket.Lock(context.Background()))
}

func TestRemembers_Lock_AdoptsLatest(t *testing.T) {
	ticket, serializer, _ := newBoundTicket(t)
	ctx := context.Background()

	_, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)

	ticket.Subject = "Second subject"
	second, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)

	ticket.Subject = "Live subject"

	require.True(t, ticket.Lock(ctx))
	assert.True(t, ticket.Remembering())
	assert.True(t, ticket.Remembers.Locked())
	assert.Equal(t, second.ID, ticket.Snapshot().ID)
	assert.Equal(t, "Second subject", ticket.StringAttr("subject"))
}

func TestRemembers_Lock_AlreadyLockedIsNoOp(t *testing.T) {
	ticket, serializer, snapshots := newBoundTicket(t)
	ctx := context.Background()

	first, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)
	require.True(t, ticket.Lock(ctx))

	// A newer snapshot appears while locked.
	snapshots.AddSnapshot("Ticket", "ticket-1", json.RawMessage(`{"subject":"newer"}`), "open")

	assert.True(t, ticket.Lock(ctx))
	assert.Equal(t, first.ID, ticket.Snapshot().ID, "lock keeps the snapshot it adopted")
}

func TestRemembers_Lock_StoreError(t *testing.T) {
	ticket, serializer, snapshots := newBoundTicket(t)
	ctx := context.Background()

	_, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)

	snapshots.LatestErr = assert.AnError
	assert.False(t, ticket.Lock(ctx))
	assert.False(t, ticket.Remembering())
}

// ============================================
// ViewState Tests
// ============================================

func TestRemembers_ViewState(t *testing.T) {
	ticket, serializer, _ := newBoundTicket(t)
	ctx := context.Background()

	_, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)

	ticket.Status = "closed"
	ticket.Subject = "Resolved"
	ticket.Messages = ticket.Messages[:2]
	_, err = serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)

	require.True(t, ticket.ViewState(ctx, "open"))
	assert.Equal(t, "open", ticket.ActiveState())
	assert.Equal(t, "Printer on fire", ticket.StringAttr("subject"))
	assert.Equal(t, int64(3), ticket.IntAttr("message_count"))

	require.True(t, ticket.ViewState(ctx, "closed"))
	assert.Equal(t, "closed", ticket.ActiveState())
	assert.Equal(t, "Resolved", ticket.StringAttr("subject"))
	assert.Equal(t, int64(2), ticket.IntAttr("message_count"))
}

func TestRemembers_ViewState_MissingStaysPut(t *testing.T) {
	ticket, serializer, _ := newBoundTicket(t)
	ctx := context.Background()

	_, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)

	require.True(t, ticket.ViewState(ctx, "open"))
	snapBefore := ticket.Snapshot().ID
	subjectBefore := ticket.StringAttr("subject")

	assert.False(t, ticket.ViewState(ctx, "archived"))
	assert.Equal(t, "open", ticket.ActiveState())
	assert.Equal(t, snapBefore, ticket.Snapshot().ID)
	assert.Equal(t, subjectBefore, ticket.StringAttr("subject"))
}

func TestRemembers_ViewState_MissingWhileLiveStaysLive(t *testing.T) {
	ticket, _, _ := newBoundTicket(t)

	assert.False(t, ticket.ViewState(context.Background(), "open"))
	assert.False(t, ticket.Remembering())
	assert.Equal(t, "", ticket.ActiveState())
}

// ============================================
// Unlock Tests
// ============================================

func TestRemembers_Unlock(t *testing.T) {
	ticket, serializer, _ := newBoundTicket(t)
	ctx := context.Background()

	_, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)

	ticket.Subject = "Live subject"
	require.True(t, ticket.Lock(ctx))
	assert.Equal(t, "Printer on fire", ticket.StringAttr("subject"))

	ticket.Unlock()

	assert.False(t, ticket.Remembering())
	assert.Nil(t, ticket.Snapshot())
	assert.Equal(t, "", ticket.ActiveState())
	assert.Equal(t, "Live subject", ticket.StringAttr("subject"))
}

func TestRemembers_Unlock_WhileLiveIsNoOp(t *testing.T) {
	ticket, _, _ := newBoundTicket(t)

	ticket.Unlock()
	assert.False(t, ticket.Remembering())
}

// ============================================
// Accessor Tests
// ============================================

// assertTicketReads holds in both live and overlaid modes; reads must be
// indistinguishable to callers.
func assertTicketReads(t *testing.T, ticket *testTicket) {
	t.Helper()
	assert.Equal(t, "Printer on fire", ticket.StringAttr("subject"))
	assert.Equal(t, "open", ticket.StringAttr("status"))
	assert.Equal(t, int64(2), ticket.IntAttr("priority"))
	assert.Equal(t, float64(2), ticket.FloatAttr("priority"))
	assert.False(t, ticket.BoolAttr("escalated"))
	assert.Equal(t, false, ticket.Attr("escalated?"))
	assert.Equal(t, int64(3), ticket.IntAttr("message_count"))

	openedAt, ok := ticket.TimeAttr("opened_at")
	require.True(t, ok)
	assert.True(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC).Equal(openedAt))

	dueOn, ok := ticket.TimeAttr("due_on")
	require.True(t, ok)
	assert.True(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC).Equal(dueOn))

	assignee, ok := ticket.Attr("assignee").(*ObjectView)
	require.True(t, ok)
	assert.Equal(t, "Sam", assignee.GetString("name"))
}

func TestRemembers_Accessors_LiveAndLockedAgree(t *testing.T) {
	ticket, serializer, _ := newBoundTicket(t)
	ctx := context.Background()

	assertTicketReads(t, ticket)

	_, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)
	require.True(t, ticket.Lock(ctx))

	assertTicketReads(t, ticket)
}

func TestRemembers_Attr_UnknownMember(t *testing.T) {
	ticket, serializer, _ := newBoundTicket(t)
	ctx := context.Background()

	assert.Nil(t, ticket.Attr("never_declared"))

	_, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)
	require.True(t, ticket.Lock(ctx))

	assert.Nil(t, ticket.Attr("never_declared"))
}

// ============================================
// Collection Tests
// ============================================

func assertMessageScopes(t *testing.T, ticket *testTicket) {
	t.Helper()
	messages, err := ticket.Collection("messages")
	require.NoError(t, err)
	assert.Equal(t, 3, messages.Size())

	assert.Equal(t, []string{"msg-1", "msg-3"}, messages.FilterByScope("public").IDs())
	assert.Equal(t, []string{"msg-3"},
		messages.FilterByScope("public").FilterByScope("flagged").IDs())
	assert.Equal(t, float64(38), messages.Sum("chars"))
}

func TestRemembers_Collection_LiveAndLockedAgree(t *testing.T) {
	ticket, serializer, _ := newBoundTicket(t)
	ctx := context.Background()

	assertMessageScopes(t, ticket)

	_, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)
	require.True(t, ticket.Lock(ctx))

	assertMessageScopes(t, ticket)
}

func TestRemembers_Collection_Errors(t *testing.T) {
	ticket, _, _ := newBoundTicket(t)

	_, err := ticket.Collection("assignee")
	assert.ErrorIs(t, err, ErrNotPlural)

	_, err = ticket.Collection("nope")
	assert.ErrorIs(t, err, ErrUnknownAssociation)

	unbound := newTestTicket()
	_, err = unbound.Collection("messages")
	assert.ErrorIs(t, err, ErrNotBound)
}

// ============================================
// Cache Tests
// ============================================

func TestRemembers_CacheClearedOnTransition(t *testing.T) {
	ticket, serializer, _ := newBoundTicket(t)
	ctx := context.Background()

	_, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)

	ticket.Status = "closed"
	ticket.Subject = "Resolved"
	_, err = serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)

	require.True(t, ticket.ViewState(ctx, "open"))
	assert.Equal(t, "Printer on fire", ticket.StringAttr("subject"))

	require.True(t, ticket.ViewState(ctx, "closed"))
	assert.Equal(t, "Resolved", ticket.StringAttr("subject"))
}

func TestRemembers_CacheSurvivesFailedTransition(t *testing.T) {
	ticket, serializer, snapshots := newBoundTicket(t)
	ctx := context.Background()

	_, err := serializer.CaptureAndCommit(ctx, ticket, "tester")
	require.NoError(t, err)
	require.True(t, ticket.Lock(ctx))
	assert.Equal(t, "Printer on fire", ticket.StringAttr("subject"))

	snapshots.LatestErr = assert.AnError
	assert.False(t, ticket.ViewState(ctx, "closed"))

	// The failed transition leaves the overlay and its resolved members
	// untouched.
	assert.True(t, ticket.Remembers.Locked())
	assert.Equal(t, "Printer on fire", ticket.StringAttr("subject"))
}
