package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
)

func TestNewRegistry(t *testing.T) {
	t.Run("Starts the counter at one", func(t *testing.T) {
		// When: creating a registry without economics
		registry, err := NewRegistry(nil)

		// Then: the counter starts at 1 and nobody is registered
		require.NoError(t, err)
		assert.Equal(t, uint64(1), registry.NextNumber())
		assert.Empty(t, registry.Players)
		assert.False(t, registry.IsEconomic())
	})

	t.Run("Rejects a fee above 100 percent", func(t *testing.T) {
		// When: creating a registry with a 101% fee
		_, err := NewRegistry(&Economics{FeePercent: 101, FixedBet: 1, Owner: "owner"})

		// Then: ErrInvalidEconomics is returned
		require.ErrorIs(t, err, apperror.ErrInvalidEconomics)
	})

	t.Run("Rejects economics without an owner", func(t *testing.T) {
		_, err := NewRegistry(&Economics{FeePercent: 5, FixedBet: 1})

		require.ErrorIs(t, err, apperror.ErrInvalidEconomics)
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Run("Lookup returns the registered match", func(t *testing.T) {
		// Given: an empty registry
		registry, err := NewRegistry(nil)
		require.NoError(t, err)

		// When: registering a player to match 7
		require.NoError(t, registry.Register("alice", 7))

		// Then: lookup resolves to match 7
		number, ok := registry.Lookup("alice")
		assert.True(t, ok)
		assert.Equal(t, uint64(7), number)
	})

	t.Run("Never creates a duplicate", func(t *testing.T) {
		// Given: a registered player
		registry, err := NewRegistry(nil)
		require.NoError(t, err)
		require.NoError(t, registry.Register("alice", 1))

		// When: registering the same player again
		err = registry.Register("alice", 2)

		// Then: ErrDuplicateRegistration is returned and the original entry stays
		require.ErrorIs(t, err, apperror.ErrDuplicateRegistration)
		number, _ := registry.Lookup("alice")
		assert.Equal(t, uint64(1), number)
		assert.Len(t, registry.Players, 1)
	})

	t.Run("Rejects the empty identity", func(t *testing.T) {
		registry, err := NewRegistry(nil)
		require.NoError(t, err)

		require.ErrorIs(t, registry.Register("", 1), apperror.ErrInvalidIdentity)
	})
}

func TestRegistry_UnregisterAll(t *testing.T) {
	t.Run("Removes every player of the match", func(t *testing.T) {
		// Given: two players in match 1 and one in match 2
		registry, err := NewRegistry(nil)
		require.NoError(t, err)
		require.NoError(t, registry.Register("alice", 1))
		require.NoError(t, registry.Register("bob", 1))
		require.NoError(t, registry.Register("carol", 2))

		// When: unregistering match 1
		removed, err := registry.UnregisterAll(1)

		// Then: both players are gone and match 2 is untouched
		require.NoError(t, err)
		assert.Equal(t, []Identity{"alice", "bob"}, removed)

		_, ok := registry.Lookup("alice")
		assert.False(t, ok)
		_, ok = registry.Lookup("bob")
		assert.False(t, ok)

		number, ok := registry.Lookup("carol")
		assert.True(t, ok)
		assert.Equal(t, uint64(2), number)
	})

	t.Run("Reports an internal error when nothing matches", func(t *testing.T) {
		// Given: a registry without entries for match 3
		registry, err := NewRegistry(nil)
		require.NoError(t, err)
		require.NoError(t, registry.Register("alice", 1))

		// When: unregistering match 3
		removed, err := registry.UnregisterAll(3)

		// Then: ErrRegistryInconsistent is returned, classified as internal, and nothing is removed
		require.ErrorIs(t, err, apperror.ErrRegistryInconsistent)
		assert.True(t, apperror.IsInternal(err))
		assert.Nil(t, removed)
		assert.Len(t, registry.Players, 1)
	})
}

func TestRegistry_Clone(t *testing.T) {
	t.Run("Clone is independent", func(t *testing.T) {
		// Given: a registry with economics and a player
		registry, err := NewRegistry(&Economics{FeePercent: 5, FixedBet: 100, Owner: "owner"})
		require.NoError(t, err)
		require.NoError(t, registry.Register("alice", 1))

		// When: mutating a clone
		clone := registry.Clone()
		require.NoError(t, clone.Register("bob", 1))
		clone.Advance()
		clone.Economics.FeePercent = 50

		// Then: the original is untouched
		assert.Len(t, registry.Players, 1)
		assert.Equal(t, uint64(1), registry.NextNumber())
		assert.Equal(t, uint64(5), registry.Economics.FeePercent)
	})
}
