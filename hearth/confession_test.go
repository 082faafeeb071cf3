package hearth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueApproveConfession(t *testing.T) {
	state := NewGuildState("guild1")

	id := state.EnqueueConfession(
		PendingConfession{
			AuthorUserID: "author",
			MessageText:  "hello",
		},
	)
	require.NotEmpty(t, id)
	require.Contains(t, state.Confession.ApprovalQueue, id)
	assert.NotZero(t, state.Confession.ApprovalQueue[id].CreatedAt)

	number, entry, err := state.ApproveConfession(id)
	require.NoError(t, err)
	assert.Equal(t, 1, number)
	assert.Equal(t, "hello", entry.MessageText)
	assert.NotContains(t, state.Confession.ApprovalQueue, id)
}

func TestApproveConfessionAlreadyResolved(t *testing.T) {
	state := NewGuildState("guild1")
	id := state.EnqueueConfession(PendingConfession{AuthorUserID: "author"})

	_, _, err := state.ApproveConfession(id)
	require.NoError(t, err)

	_, _, err = state.ApproveConfession(id)
	require.ErrorIs(t, err, ErrAlreadyResolved)

	var staleErr StaleReferenceError
	require.ErrorAs(t, err, &staleErr)
	assert.Equal(t, "confession", staleErr.Kind)
	assert.Equal(t, id, staleErr.ID)

	assert.Equal(
		t, 1, state.Counters.NumConfessions,
		"counter increments only on successful approval",
	)
}

func TestDenyConfession(t *testing.T) {
	state := NewGuildState("guild1")
	id := state.EnqueueConfession(PendingConfession{AuthorUserID: "author"})

	entry, err := state.DenyConfession(id)
	require.NoError(t, err)
	assert.Equal(t, "author", entry.AuthorUserID)
	assert.Zero(t, state.Counters.NumConfessions)

	_, err = state.DenyConfession(id)
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestBanConfessor(t *testing.T) {
	state := NewGuildState("guild1")

	assert.False(t, state.ConfessorBanned("author"))

	id := state.EnqueueConfession(PendingConfession{AuthorUserID: "author"})
	entry, err := state.BanConfessor(id)
	require.NoError(t, err)
	assert.Equal(t, "author", entry.AuthorUserID)
	assert.True(t, state.ConfessorBanned("author"))
	assert.NotContains(t, state.Confession.ApprovalQueue, id)

	// banning the same author again does not duplicate the ban list entry
	id = state.EnqueueConfession(PendingConfession{AuthorUserID: "author"})
	_, err = state.BanConfessor(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"author"}, state.Confession.BannedUserIDs)

	_, err = state.BanConfessor("no-such-id")
	require.ErrorIs(t, err, ErrAlreadyResolved)
}
