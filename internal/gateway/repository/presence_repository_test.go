package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// presenceContract runs against every PresenceRepository implementation
func presenceContract(t *testing.T, repo PresenceRepository, groupID string) {
	ctx := context.Background()

	online, err := repo.Join(ctx, groupID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, online)

	online, err = repo.Join(ctx, groupID, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, online)

	// second socket of bob
	_, err = repo.Join(ctx, groupID, "bob")
	require.NoError(t, err)

	online, err = repo.Leave(ctx, groupID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, online)

	online, err = repo.Leave(ctx, groupID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, online)

	// leaving more often than joining never goes negative
	online, err = repo.Leave(ctx, groupID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, online)

	online, err = repo.Online(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, online)

	online, err = repo.Online(ctx, groupID+"-empty")
	require.NoError(t, err)
	assert.Empty(t, online)
}

func TestMemoryPresenceRepository(t *testing.T) {
	presenceContract(t, NewMemoryPresenceRepository(), "g1")
}
