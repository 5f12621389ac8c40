package entity

import "github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"

// Identity is an opaque participant reference. It is only ever compared for equality.
type Identity string

const (
	SlotCreator = 0
	SlotJoiner  = 1
	// NoSlot is returned for an identity that holds neither slot.
	NoSlot = 2
)

func (that Identity) IsZero() bool {
	return that == ""
}

func (that Identity) Validate() error {
	if that.IsZero() {
		return apperror.ErrInvalidIdentity
	}

	return nil
}
