package rental

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHydrator_LoadSubject(t *testing.T) {
	svc, snapshots := newTestService(t)
	ctx := context.Background()
	a := newDraftAgreement(t, svc)

	_, err := svc.AddItem(ctx, a.ID, "Camera body", 5000, day(2024, 3, 8))
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, a.ID, "Tripod", 1500, day(2024, 3, 8))
	require.NoError(t, err)
	snap, err := svc.Capture(ctx, a.ID, "clerk")
	require.NoError(t, err)

	hydrator := NewHydrator(svc.registry, snapshots)
	subject, err := hydrator.LoadSubject(ctx, a.ID)
	require.NoError(t, err)

	restored, ok := subject.(*Agreement)
	require.True(t, ok)
	assert.Equal(t, a.ID, restored.ID)
	assert.Equal(t, a.Number, restored.Number)
	assert.Equal(t, StatusDraft, restored.Status)
	assert.Equal(t, a.DailyRateCents, restored.DailyRateCents)
	require.NotNil(t, restored.Customer)
	assert.Equal(t, a.Customer.Name, restored.Customer.Name)
	require.Len(t, restored.Items, 2)
	assert.Equal(t, "Camera body", restored.Items[0].Description)
	assert.Equal(t, int64(6500), restored.BalanceDueCents())

	// Re-capturing the restored agreement reproduces the snapshot it
	// came from.
	doc, err := svc.serializer.Capture(restored)
	require.NoError(t, err)
	redone, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, string(snap.Payload), string(redone))
}

func TestHydrator_LoadSubject_NoSnapshot(t *testing.T) {
	svc, snapshots := newTestService(t)

	hydrator := NewHydrator(svc.registry, snapshots)
	subject, err := hydrator.LoadSubject(context.Background(), "nope")

	require.NoError(t, err)
	assert.Nil(t, subject)
}

func TestHydrator_LoadSubject_IsBound(t *testing.T) {
	svc, snapshots := newTestService(t)
	ctx := context.Background()
	a := newDraftAgreement(t, svc)
	_, err := svc.Capture(ctx, a.ID, "clerk")
	require.NoError(t, err)

	hydrator := NewHydrator(svc.registry, snapshots)
	subject, err := hydrator.LoadSubject(ctx, a.ID)
	require.NoError(t, err)

	restored := subject.(*Agreement)
	assert.True(t, restored.Lock(ctx), "a hydrated agreement can adopt its own snapshot")
	assert.True(t, restored.Remembering())
}

func TestHydrator_CaptureSubject(t *testing.T) {
	svc, snapshots := newTestService(t)
	ctx := context.Background()
	a := newDraftAgreement(t, svc)
	_, err := svc.AddItem(ctx, a.ID, "Camera body", 5000, day(2024, 3, 8))
	require.NoError(t, err)
	first, err := svc.Capture(ctx, a.ID, "clerk")
	require.NoError(t, err)

	hydrator := NewHydrator(svc.registry, snapshots)
	snap, err := hydrator.CaptureSubject(ctx, a.ID, "worker")

	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "draft", snap.State)
	assert.Equal(t, "worker", snap.CreatedBy)
	require.Len(t, snapshots.AppendCalls, 2)

	// The re-capture reproduces the document it was rehydrated from.
	assert.JSONEq(t, string(first.Payload), string(snap.Payload))
}

func TestHydrator_CaptureSubject_NoSnapshot(t *testing.T) {
	svc, snapshots := newTestService(t)

	hydrator := NewHydrator(svc.registry, snapshots)
	snap, err := hydrator.CaptureSubject(context.Background(), "nope", "worker")

	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Empty(t, snapshots.AppendCalls)
}
