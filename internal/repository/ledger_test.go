package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
	"github.com/rocketscienceinc/tictactoe-ledger/testing/suite"
)

var errAbort = errors.New("abort")

// testLedgerRepository runs the behaviour every LedgerRepository must have.
func testLedgerRepository(t *testing.T, ctx context.Context, repo LedgerRepository) {
	t.Helper()

	t.Run("Missing records", func(t *testing.T) {
		err := repo.Atomic(ctx, func(ctx context.Context, tx LedgerTx) error {
			_, err := tx.Registry(ctx)
			require.ErrorIs(t, err, apperror.ErrRegistryNotInitialized)

			_, err = tx.Match(ctx, 42)
			require.ErrorIs(t, err, apperror.ErrMatchNotFound)

			book, err := tx.Book(ctx, "nobody")
			require.NoError(t, err)
			assert.True(t, book.IsLoaded("nobody"))
			assert.Zero(t, book.Balance("nobody"))
			assert.Zero(t, book.FeePool)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("Committed writes are visible to the next operation", func(t *testing.T) {
		// Given: a registry, a match and balances written in one operation
		registry, err := entity.NewRegistry(&entity.Economics{FeePercent: 5, FixedBet: 100, Owner: "owner"})
		require.NoError(t, err)
		require.NoError(t, registry.Register("alice", 1))

		match := entity.NewMatch(1)
		match.Players[entity.SlotCreator] = "alice"
		match.State = entity.GameState{Kind: entity.StateWaiting}
		match.Pot = 100
		require.NoError(t, match.Board.Place(entity.Tile{Row: 2, Column: 1}, entity.MarkFirst))

		book := entity.NewBook(7)
		book.Load("alice", 900)

		err = repo.Atomic(ctx, func(ctx context.Context, tx LedgerTx) error {
			require.NoError(t, tx.PutRegistry(registry))
			require.NoError(t, tx.PutMatch(match))
			tx.PutBook(book)

			return tx.AppendCompletion(&entity.CompletionRecord{Number: 1, PlayerOne: "alice", Outcome: entity.StateCanceled})
		})
		require.NoError(t, err)

		// When: reading them back
		err = repo.Atomic(ctx, func(ctx context.Context, tx LedgerTx) error {
			storedRegistry, err := tx.Registry(ctx)
			require.NoError(t, err)
			storedMatch, err := tx.Match(ctx, 1)
			require.NoError(t, err)
			storedBook, err := tx.Book(ctx, "alice", "bob")
			require.NoError(t, err)

			// Then: every record round trips
			assert.Equal(t, registry, storedRegistry)
			assert.Equal(t, match, storedMatch)
			assert.Equal(t, uint64(900), storedBook.Balance("alice"))
			assert.Zero(t, storedBook.Balance("bob"))
			assert.Equal(t, uint64(7), storedBook.FeePool)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("Failed operation persists nothing", func(t *testing.T) {
		// When: an operation writes and then fails
		err := repo.Atomic(ctx, func(ctx context.Context, tx LedgerTx) error {
			require.NoError(t, tx.PutMatch(entity.NewMatch(99)))
			tx.PutBook(&entity.Book{Balances: map[entity.Identity]uint64{"carol": 5}})

			return errAbort
		})

		// Then: the error is returned and no record exists
		require.ErrorIs(t, err, errAbort)

		err = repo.Atomic(ctx, func(ctx context.Context, tx LedgerTx) error {
			_, err := tx.Match(ctx, 99)
			require.ErrorIs(t, err, apperror.ErrMatchNotFound)

			book, err := tx.Book(ctx, "carol")
			require.NoError(t, err)
			assert.Zero(t, book.Balance("carol"))

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("DeleteMatch removes the record", func(t *testing.T) {
		err := repo.Atomic(ctx, func(_ context.Context, tx LedgerTx) error {
			return tx.PutMatch(entity.NewMatch(5))
		})
		require.NoError(t, err)

		err = repo.Atomic(ctx, func(_ context.Context, tx LedgerTx) error {
			tx.DeleteMatch(5)
			return nil
		})
		require.NoError(t, err)

		err = repo.Atomic(ctx, func(ctx context.Context, tx LedgerTx) error {
			_, err := tx.Match(ctx, 5)
			return err
		})
		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})
}

func TestMemoryLedgerRepository(t *testing.T) {
	repo := NewMemoryLedgerRepository()

	testLedgerRepository(t, context.Background(), repo)

	t.Run("Completions are appended in order", func(t *testing.T) {
		memory := NewMemoryLedgerRepository()

		for _, number := range []uint64{3, 4} {
			err := memory.Atomic(context.Background(), func(_ context.Context, tx LedgerTx) error {
				return tx.AppendCompletion(&entity.CompletionRecord{Number: number})
			})
			require.NoError(t, err)
		}

		list := memory.(*memoryLedger).lists[completionsKey]
		require.Len(t, list, 2)
		assert.Contains(t, list[0], `"number":3`)
		assert.Contains(t, list[1], `"number":4`)
	})
}

func TestRedisLedgerRepository(t *testing.T) {
	ctx, st := suite.New(t)

	repo := NewLedgerRepository(st.Storage, 3)

	testLedgerRepository(t, ctx, repo)

	t.Run("Completion log is a redis list", func(t *testing.T) {
		length, err := st.Storage.LLen(ctx, completionsKey).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), length)
	})

	t.Run("Concurrent write to a read key retries the operation", func(t *testing.T) {
		// Given: a fee pool of 10
		require.NoError(t, st.Storage.Set(ctx, feePoolKey, "10", 0).Err())

		calls := 0

		// When: another client changes the pool between read and commit on the first attempt
		err := repo.Atomic(ctx, func(ctx context.Context, tx LedgerTx) error {
			calls++

			book, err := tx.Book(ctx)
			if err != nil {
				return err
			}

			if calls == 1 {
				require.NoError(t, st.Storage.Set(ctx, feePoolKey, "20", 0).Err())
			}

			if err := book.CreditFees(1); err != nil {
				return err
			}

			tx.PutBook(book)

			return nil
		})

		// Then: the operation ran twice and applied on top of the concurrent write
		require.NoError(t, err)
		assert.Equal(t, 2, calls)

		pool, err := st.Storage.Get(ctx, feePoolKey).Result()
		require.NoError(t, err)
		assert.Equal(t, "21", pool)
	})

	t.Run("Exhausted retries report a conflict", func(t *testing.T) {
		err := NewLedgerRepository(st.Storage, 2).Atomic(ctx, func(ctx context.Context, tx LedgerTx) error {
			if _, err := tx.Book(ctx); err != nil {
				return err
			}

			// every attempt is invalidated before it commits
			require.NoError(t, st.Storage.Incr(ctx, feePoolKey).Err())

			tx.PutBook(entity.NewBook(0))

			return nil
		})

		require.ErrorIs(t, err, apperror.ErrTxConflict)
		assert.True(t, apperror.IsInternal(err))
	})
}
