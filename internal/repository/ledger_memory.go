package repository

import (
	"context"
	"sync"
)

type memoryLedger struct {
	mu     sync.Mutex
	values map[string]string
	lists  map[string][]string
}

// NewMemoryLedgerRepository returns a process-local ledger. Operations are serialized by a mutex.
func NewMemoryLedgerRepository() LedgerRepository {
	return &memoryLedger{
		values: make(map[string]string),
		lists:  make(map[string][]string),
	}
}

func (that *memoryLedger) Atomic(ctx context.Context, fn TxFunc) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	ledger := newLedgerTx(func(_ context.Context, key string) (string, bool, error) {
		value, ok := that.values[key]
		return value, ok, nil
	})

	if err := fn(ctx, ledger); err != nil {
		return err
	}

	for _, o := range ledger.ops {
		switch o.kind {
		case opSet:
			that.values[o.key] = o.value
		case opDel:
			delete(that.values, o.key)
		case opPush:
			that.lists[o.key] = append(that.lists[o.key], o.value)
		}
	}

	return nil
}
