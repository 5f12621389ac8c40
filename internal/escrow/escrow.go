package escrow

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

const percentBase = 100

// Settlement is how a terminal pot is divided. Fee and Remainder go to the fee pool.
type Settlement struct {
	Fee       uint64
	Remainder uint64
	Payouts   map[entity.Identity]uint64
}

// Total is the sum of every share of the settlement.
func (that Settlement) Total() (uint64, error) {
	total := sdkmath.NewIntFromUint64(that.Fee).Add(sdkmath.NewIntFromUint64(that.Remainder))
	for _, amount := range that.Payouts {
		total = total.Add(sdkmath.NewIntFromUint64(amount))
	}

	if !total.IsUint64() {
		return 0, fmt.Errorf("settlement total: %w", apperror.ErrBalanceOverflow)
	}

	return total.Uint64(), nil
}

// Fee returns pot * feePercent / 100, truncated.
func Fee(pot, feePercent uint64) (uint64, error) {
	if feePercent > percentBase {
		return 0, fmt.Errorf("%w: fee percent %d", apperror.ErrInvalidEconomics, feePercent)
	}

	// fee <= pot, so the quotient always fits back into uint64
	return sdkmath.NewUint(pot).MulUint64(feePercent).QuoUint64(percentBase).Uint64(), nil
}

// Split computes the settlement of a terminal match.
// A match canceled while waiting refunds the creator in full and pays no fee,
// unlike every other terminal state, where the fee is taken before any payout.
// On a tie the odd unit left by halving the payout goes to the fee pool.
func Split(match *entity.Match, feePercent uint64) (Settlement, error) {
	settlement := Settlement{Payouts: make(map[entity.Identity]uint64, len(match.Players))}

	switch match.State.Kind {
	case entity.StateCanceled:
		settlement.addPayout(match.Creator(), match.Pot)

		return settlement, nil
	case entity.StateTie, entity.StateWon:
	default:
		return Settlement{}, fmt.Errorf("split match %d in state %s: %w", match.Number, match.State.Kind, apperror.ErrGameNotFinished)
	}

	fee, err := Fee(match.Pot, feePercent)
	if err != nil {
		return Settlement{}, err
	}

	settlement.Fee = fee
	payout := match.Pot - fee

	if match.State.Kind == entity.StateWon {
		if match.SlotOf(match.State.Winner) == entity.NoSlot {
			return Settlement{}, fmt.Errorf("winner %s of match %d: %w", match.State.Winner, match.Number, apperror.ErrSignerIsNotPlayer)
		}

		settlement.addPayout(match.State.Winner, payout)

		return settlement, nil
	}

	half := payout / 2
	settlement.addPayout(match.Creator(), half)
	settlement.addPayout(match.Joiner(), half)
	settlement.Remainder = payout - 2*half

	return settlement, nil
}

func (that Settlement) addPayout(player entity.Identity, amount uint64) {
	if amount == 0 {
		return
	}

	that.Payouts[player] += amount
}

// Collect moves the stake of player into the pot.
func Collect(book *entity.Book, match *entity.Match, player entity.Identity, bet uint64) error {
	if bet == 0 {
		return nil
	}

	pot, err := entity.AddChecked(match.Pot, bet)
	if err != nil {
		return fmt.Errorf("collect bet into match %d: %w", match.Number, err)
	}

	if err := book.Debit(player, bet); err != nil {
		return fmt.Errorf("collect bet from %s: %w", player, err)
	}

	match.Pot = pot

	return nil
}

// Settle pays out a terminal match exactly once and returns its completion record.
func Settle(book *entity.Book, match *entity.Match, feePercent uint64) (*entity.CompletionRecord, error) {
	if match.Paid {
		return nil, fmt.Errorf("settle match %d: %w", match.Number, apperror.ErrAlreadyPaid)
	}

	settlement, err := Split(match, feePercent)
	if err != nil {
		return nil, err
	}

	total, err := settlement.Total()
	if err != nil {
		return nil, err
	}

	if total != match.Pot {
		return nil, fmt.Errorf("%w: match %d pot=%d settled=%d", apperror.ErrPotNotConserved, match.Number, match.Pot, total)
	}

	if err := book.CreditFees(settlement.Fee + settlement.Remainder); err != nil {
		return nil, err
	}

	// slot order keeps the credits deterministic
	for _, player := range match.Participants() {
		if amount, ok := settlement.Payouts[player]; ok {
			if err := book.Credit(player, amount); err != nil {
				return nil, err
			}
		}
	}

	record := &entity.CompletionRecord{
		Number:    match.Number,
		PlayerOne: match.Creator(),
		PlayerTwo: match.Joiner(),
		Winner:    match.State.Winner,
		Outcome:   match.State.Kind,
		Pot:       match.Pot,
		Fee:       settlement.Fee,
		Remainder: settlement.Remainder,
		Payouts:   settlement.Payouts,
	}

	match.Pot = 0
	match.Paid = true

	return record, nil
}

// WithdrawFees moves amount from the fee pool to the owner.
func WithdrawFees(book *entity.Book, economics *entity.Economics, signer entity.Identity, amount uint64) error {
	if err := confirmOwner(economics, signer); err != nil {
		return err
	}

	if amount == 0 {
		return apperror.ErrInvalidAmount
	}

	if err := book.DebitFees(amount); err != nil {
		return fmt.Errorf("withdraw fees: %w", err)
	}

	if err := book.Credit(economics.Owner, amount); err != nil {
		return fmt.Errorf("withdraw fees: %w", err)
	}

	return nil
}

// Fund credits a host account. Only the owner can mint.
func Fund(book *entity.Book, economics *entity.Economics, signer, target entity.Identity, amount uint64) error {
	if err := confirmOwner(economics, signer); err != nil {
		return err
	}

	if err := target.Validate(); err != nil {
		return err
	}

	if amount == 0 {
		return apperror.ErrInvalidAmount
	}

	if err := book.Credit(target, amount); err != nil {
		return fmt.Errorf("fund %s: %w", target, err)
	}

	return nil
}

func confirmOwner(economics *entity.Economics, signer entity.Identity) error {
	if economics == nil {
		return fmt.Errorf("%w: ledger has no owner", apperror.ErrSignerIsNotOwner)
	}

	if signer.IsZero() || signer != economics.Owner {
		return apperror.ErrSignerIsNotOwner
	}

	return nil
}
