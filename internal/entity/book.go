package entity

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
)

// Book holds the host balances one operation may touch, plus the accumulated fee pool.
// Only accounts loaded into the book can be debited or credited.
type Book struct {
	Balances map[Identity]uint64 `json:"balances"`
	FeePool  uint64              `json:"fee_pool"`
}

func NewBook(feePool uint64) *Book {
	return &Book{
		Balances: make(map[Identity]uint64),
		FeePool:  feePool,
	}
}

// Load adds an account with its current balance. Loading an account twice keeps the first balance.
func (that *Book) Load(id Identity, balance uint64) {
	if _, ok := that.Balances[id]; ok {
		return
	}

	that.Balances[id] = balance
}

func (that *Book) IsLoaded(id Identity) bool {
	_, ok := that.Balances[id]
	return ok
}

func (that *Book) Balance(id Identity) uint64 {
	return that.Balances[id]
}

func (that *Book) Debit(id Identity, amount uint64) error {
	balance, ok := that.Balances[id]
	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrAccountNotLoaded, id)
	}

	if balance < amount {
		return fmt.Errorf("%w: %s have=%d need=%d", apperror.ErrInsufficientFunds, id, balance, amount)
	}

	that.Balances[id] = balance - amount

	return nil
}

func (that *Book) Credit(id Identity, amount uint64) error {
	balance, ok := that.Balances[id]
	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrAccountNotLoaded, id)
	}

	sum, err := AddChecked(balance, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", id, err)
	}

	that.Balances[id] = sum

	return nil
}

func (that *Book) CreditFees(amount uint64) error {
	sum, err := AddChecked(that.FeePool, amount)
	if err != nil {
		return fmt.Errorf("credit fee pool: %w", err)
	}

	that.FeePool = sum

	return nil
}

func (that *Book) DebitFees(amount uint64) error {
	if that.FeePool < amount {
		return fmt.Errorf("%w: fee pool have=%d need=%d", apperror.ErrInsufficientFunds, that.FeePool, amount)
	}

	that.FeePool -= amount

	return nil
}

func (that *Book) Clone() *Book {
	clone := NewBook(that.FeePool)
	for id, balance := range that.Balances {
		clone.Balances[id] = balance
	}

	return clone
}

// AddChecked adds two amounts, failing instead of wrapping around.
func AddChecked(a, b uint64) (uint64, error) {
	sum := sdkmath.NewIntFromUint64(a).Add(sdkmath.NewIntFromUint64(b))
	if !sum.IsUint64() {
		return 0, fmt.Errorf("%w: have=%d add=%d", apperror.ErrBalanceOverflow, a, b)
	}

	return sum.Uint64(), nil
}

