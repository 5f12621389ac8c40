package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
)

const defaultMaxRetries = 5

type redisLedger struct {
	client     *redis.Client
	maxRetries int
}

// NewLedgerRepository returns a ledger backed by Redis optimistic transactions.
// Every key an operation reads is watched; a concurrent write to any of them aborts
// the commit and the operation is run again, up to maxRetries times.
func NewLedgerRepository(client *redis.Client, maxRetries int) LedgerRepository {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &redisLedger{
		client:     client,
		maxRetries: maxRetries,
	}
}

func (that *redisLedger) Atomic(ctx context.Context, fn TxFunc) error {
	for attempt := 0; attempt < that.maxRetries; attempt++ {
		err := that.client.Watch(ctx, func(tx *redis.Tx) error {
			ledger := newLedgerTx(watchedRead(tx))

			if err := fn(ctx, ledger); err != nil {
				return err
			}

			return commitRedis(ctx, tx, ledger.ops)
		})

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return fmt.Errorf("%w: %d attempts", apperror.ErrTxConflict, that.maxRetries)
}

func watchedRead(tx *redis.Tx) readFunc {
	return func(ctx context.Context, key string) (string, bool, error) {
		if err := tx.Watch(ctx, key).Err(); err != nil {
			return "", false, fmt.Errorf("failed to watch %s: %w", key, err)
		}

		value, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		if err != nil {
			return "", false, err
		}

		return value, true, nil
	}
}

func commitRedis(ctx context.Context, tx *redis.Tx, ops []op) error {
	if len(ops) == 0 {
		return nil
	}

	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, o := range ops {
			switch o.kind {
			case opSet:
				pipe.Set(ctx, o.key, o.value, 0)
			case opDel:
				pipe.Del(ctx, o.key)
			case opPush:
				pipe.RPush(ctx, o.key, o.value)
			}
		}

		return nil
	})

	return err
}
