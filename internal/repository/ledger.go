package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

const (
	registryKey      = "ledger:registry"
	feePoolKey       = "ledger:fees"
	completionsKey   = "ledger:completions"
	matchKeyPrefix   = "ledger:match:"
	accountKeyPrefix = "ledger:account:"
)

func matchKey(number uint64) string {
	return matchKeyPrefix + strconv.FormatUint(number, 10)
}

func accountKey(id entity.Identity) string {
	return accountKeyPrefix + string(id)
}

// LedgerTx reads the records of one operation and buffers its writes.
// Buffered writes are applied all together when the operation succeeds, or not at all.
type LedgerTx interface {
	Registry(ctx context.Context) (*entity.Registry, error)
	Match(ctx context.Context, number uint64) (*entity.Match, error)
	Book(ctx context.Context, ids ...entity.Identity) (*entity.Book, error)

	PutRegistry(registry *entity.Registry) error
	PutMatch(match *entity.Match) error
	DeleteMatch(number uint64)
	PutBook(book *entity.Book)
	AppendCompletion(record *entity.CompletionRecord) error
}

type TxFunc func(ctx context.Context, tx LedgerTx) error

// LedgerRepository runs fn as one atomic unit. If fn returns an error nothing it wrote is persisted.
type LedgerRepository interface {
	Atomic(ctx context.Context, fn TxFunc) error
}

type opKind uint8

const (
	opSet opKind = iota
	opDel
	opPush
)

type op struct {
	kind  opKind
	key   string
	value string
}

// readFunc returns the value at key and whether it exists.
type readFunc func(ctx context.Context, key string) (string, bool, error)

type ledgerTx struct {
	read readFunc
	ops  []op
}

func newLedgerTx(read readFunc) *ledgerTx {
	return &ledgerTx{read: read}
}

func (that *ledgerTx) Registry(ctx context.Context) (*entity.Registry, error) {
	value, ok, err := that.read(ctx, registryKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get registry: %w", err)
	}

	if !ok {
		return nil, apperror.ErrRegistryNotInitialized
	}

	var registry entity.Registry
	if err = json.Unmarshal([]byte(value), &registry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry: %w", err)
	}

	if registry.Players == nil {
		registry.Players = make(map[entity.Identity]uint64)
	}

	return &registry, nil
}

func (that *ledgerTx) Match(ctx context.Context, number uint64) (*entity.Match, error) {
	value, ok, err := that.read(ctx, matchKey(number))
	if err != nil {
		return nil, fmt.Errorf("failed to get match %d: %w", number, err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %d", apperror.ErrMatchNotFound, number)
	}

	var match entity.Match
	if err = json.Unmarshal([]byte(value), &match); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	return &match, nil
}

// Book loads the balances of ids and the fee pool. Missing accounts hold zero.
func (that *ledgerTx) Book(ctx context.Context, ids ...entity.Identity) (*entity.Book, error) {
	feePool, err := that.readAmount(ctx, feePoolKey)
	if err != nil {
		return nil, err
	}

	book := entity.NewBook(feePool)
	for _, id := range ids {
		if id.IsZero() || book.IsLoaded(id) {
			continue
		}

		balance, err := that.readAmount(ctx, accountKey(id))
		if err != nil {
			return nil, err
		}

		book.Load(id, balance)
	}

	return book, nil
}

func (that *ledgerTx) readAmount(ctx context.Context, key string) (uint64, error) {
	value, ok, err := that.read(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", key, err)
	}

	if !ok {
		return 0, nil
	}

	amount, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}

	return amount, nil
}

func (that *ledgerTx) PutRegistry(registry *entity.Registry) error {
	return that.setJSON(registryKey, registry)
}

func (that *ledgerTx) PutMatch(match *entity.Match) error {
	return that.setJSON(matchKey(match.Number), match)
}

func (that *ledgerTx) DeleteMatch(number uint64) {
	that.ops = append(that.ops, op{kind: opDel, key: matchKey(number)})
}

func (that *ledgerTx) PutBook(book *entity.Book) {
	that.ops = append(that.ops, op{kind: opSet, key: feePoolKey, value: strconv.FormatUint(book.FeePool, 10)})

	for id, balance := range book.Balances {
		that.ops = append(that.ops, op{kind: opSet, key: accountKey(id), value: strconv.FormatUint(balance, 10)})
	}
}

func (that *ledgerTx) AppendCompletion(record *entity.CompletionRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal completion record: %w", err)
	}

	that.ops = append(that.ops, op{kind: opPush, key: completionsKey, value: string(recordJSON)})

	return nil
}

func (that *ledgerTx) setJSON(key string, value any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not marshal %s: %w", key, err)
	}

	that.ops = append(that.ops, op{kind: opSet, key: key, value: string(valueJSON)})

	return nil
}
