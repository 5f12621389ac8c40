package apperror

import "errors"

// Kind groups errors by how a caller can react to them.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindStateConflict
	KindAuthorization
	KindRegistry
	KindFunds
	KindNotFound
	KindInternal
)

func (that Kind) String() string {
	switch that {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindAuthorization:
		return "authorization"
	case KindRegistry:
		return "registry"
	case KindFunds:
		return "funds"
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a ledger error with a stable code that is surfaced to callers verbatim.
type Error struct {
	kind    Kind
	code    string
	message string
}

func newError(kind Kind, code, message string) *Error {
	return &Error{kind: kind, code: code, message: message}
}

func (that *Error) Error() string {
	return that.message
}

func (that *Error) Kind() Kind {
	return that.kind
}

func (that *Error) Code() string {
	return that.code
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.kind
	}

	return KindUnknown
}

// CodeOf returns the code of the first *Error in the chain, or an empty string.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.code
	}

	return ""
}

// IsInternal reports whether err signals a broken invariant rather than a caller mistake.
func IsInternal(err error) bool {
	return KindOf(err) == KindInternal
}

// validation
var (
	ErrTileOutOfBounds   = newError(KindValidation, "TileOutOfBounds", "attempt to play outside the board limits")
	ErrTileAlreadySet    = newError(KindValidation, "TileAlreadySet", "attempt to play on an occupied tile")
	ErrNotPlayersTurn    = newError(KindValidation, "NotPlayersTurn", "not the current player's turn")
	ErrInvalidIdentity   = newError(KindValidation, "InvalidIdentity", "identity is empty")
	ErrInvalidAmount     = newError(KindValidation, "InvalidAmount", "amount must be positive")
	ErrInvalidEconomics  = newError(KindValidation, "InvalidEconomics", "invalid economic parameters")
	ErrInvalidMatchState = newError(KindValidation, "InvalidMatchState", "unknown match state")
)

// state conflict
var (
	ErrGameAlreadyOver              = newError(KindStateConflict, "GameAlreadyOver", "attempt to play in a game that has already ended")
	ErrGameNotInProgress            = newError(KindStateConflict, "GameNotInProgress", "game not in progress")
	ErrGameNotFinished              = newError(KindStateConflict, "GameNotFinished", "game has not reached a terminal state")
	ErrNoUninitializedOrWaitingGame = newError(KindStateConflict, "NoUninitializedOrWaitingGame", "no uninitialized or waiting game")
	ErrAlreadyPaid                  = newError(KindStateConflict, "AlreadyPaid", "match pot has already been paid out")
	ErrRegistryNotInitialized       = newError(KindStateConflict, "RegistryNotInitialized", "registry is not initialized")
	ErrRegistryAlreadyInitialized   = newError(KindStateConflict, "RegistryAlreadyInitialized", "registry is already initialized")
)

// authorization
var (
	ErrUnauthorized                   = newError(KindAuthorization, "Unauthorized", "caller identity is missing or invalid")
	ErrSignerIsNotPlayer              = newError(KindAuthorization, "SignerIsNotPlayer", "the signer is not a player")
	ErrSignerDidNotOpenTheGameAccount = newError(KindAuthorization, "SignerDidNotOpenTheGameAccount", "player did not open the game account")
	ErrSignerIsNotOwner               = newError(KindAuthorization, "SignerIsNotOwner", "the signer is not the ledger owner")
)

// registry consistency
var (
	ErrPlayerHasNotAnActiveGame = newError(KindRegistry, "PlayerHasNotAnActiveGame", "player has not an active game")
	ErrGameAlreadyInProgress    = newError(KindRegistry, "GameAlreadyInProgress", "game already in progress")
	ErrDuplicateRegistration    = newError(KindRegistry, "DuplicateRegistration", "player is already registered")
)

// funds
var (
	ErrInsufficientFunds = newError(KindFunds, "InsufficientFunds", "insufficient funds")
)

// not found
var (
	ErrMatchNotFound = newError(KindNotFound, "MatchNotFound", "match not found")
)

// internal
var (
	ErrRegistryInconsistent = newError(KindInternal, "RegistryInconsistent", "game not found in the registry mapping")
	ErrBalanceOverflow      = newError(KindInternal, "BalanceOverflow", "balance overflows uint64")
	ErrAccountNotLoaded     = newError(KindInternal, "AccountNotLoaded", "account was not loaded for this operation")
	ErrTxConflict           = newError(KindInternal, "TxConflict", "transaction retries exhausted")
	ErrPotNotConserved      = newError(KindInternal, "PotNotConserved", "settlement does not add up to the pot")
)
