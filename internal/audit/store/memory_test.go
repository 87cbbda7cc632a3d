package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proconnect/internal/audit"
	"proconnect/pkg/domain"
)

func storedEvent(connectionID int64, action audit.Action) audit.Event {
	return audit.Event{
		ID:           uuid.New(),
		Timestamp:    time.Now(),
		Action:       action,
		ConnectionID: connectionID,
		Actor:        domain.ParticipantRef{Kind: domain.KindConsultant, ID: 1},
		Counterpart:  domain.ParticipantRef{Kind: domain.KindClient, ID: 5},
		Status:       "pending",
	}
}

func TestInMemory_AppendIsIdempotent(t *testing.T) {
	store := NewInMemory()
	event := storedEvent(1, audit.ActionRequested)

	require.NoError(t, store.Append(context.Background(), event))
	require.NoError(t, store.Append(context.Background(), event))

	events, err := store.ListByConnection(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, events, 1, "replayed event ids must not duplicate rows")
}

func TestInMemory_ListByConnectionFilters(t *testing.T) {
	store := NewInMemory()
	require.NoError(t, store.Append(context.Background(), storedEvent(1, audit.ActionRequested)))
	require.NoError(t, store.Append(context.Background(), storedEvent(2, audit.ActionRequested)))
	require.NoError(t, store.Append(context.Background(), storedEvent(1, audit.ActionAccepted)))

	events, err := store.ListByConnection(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionRequested, events[0].Action, "trail reads oldest first")
	assert.Equal(t, audit.ActionAccepted, events[1].Action)
}

func TestInMemory_ListRecent(t *testing.T) {
	store := NewInMemory()
	actions := []audit.Action{audit.ActionRequested, audit.ActionAccepted, audit.ActionRemoved}
	for _, action := range actions {
		require.NoError(t, store.Append(context.Background(), storedEvent(1, action)))
	}

	events, err := store.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionRemoved, events[0].Action, "newest first")
	assert.Equal(t, audit.ActionAccepted, events[1].Action)

	all, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "limit larger than the trail returns everything")
}
