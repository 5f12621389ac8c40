package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/escrow"
)

// CreateOrJoin pairs player into the match currently open at the registry counter.
// session.Match is that match, or nil if it does not exist yet.
func CreateOrJoin(session *Session, player entity.Identity) (*Result, error) {
	staged, err := stage(session)
	if err != nil {
		return nil, err
	}

	if staged.Match == nil {
		staged.Match = entity.NewMatch(staged.Registry.NextNumber())
	}

	if staged.Match.Number != staged.Registry.NextNumber() {
		return nil, fmt.Errorf("%w: match %d is not open, next is %d",
			apperror.ErrNoUninitializedOrWaitingGame, staged.Match.Number, staged.Registry.NextNumber())
	}

	switch staged.Match.State.Kind {
	case entity.StateUninitialized:
		err = create(staged, player)
	case entity.StateWaiting:
		err = join(staged, player)
	default:
		err = fmt.Errorf("%w: match %d is %s", apperror.ErrNoUninitializedOrWaitingGame, staged.Match.Number, staged.Match.State.Kind)
	}

	if err != nil {
		return nil, err
	}

	return &Result{Session: staged}, nil
}

// Create opens session.Match with player in the creator slot.
func Create(session *Session, player entity.Identity) (*Result, error) {
	staged, err := stage(session)
	if err != nil {
		return nil, err
	}

	if staged.Match == nil {
		return nil, apperror.ErrMatchNotFound
	}

	if err := create(staged, player); err != nil {
		return nil, err
	}

	return &Result{Session: staged}, nil
}

// Join seats player as the opponent of a waiting match.
func Join(session *Session, player entity.Identity) (*Result, error) {
	staged, err := stage(session)
	if err != nil {
		return nil, err
	}

	if staged.Match == nil {
		return nil, apperror.ErrMatchNotFound
	}

	if err := join(staged, player); err != nil {
		return nil, err
	}

	return &Result{Session: staged}, nil
}

func create(staged *Session, player entity.Identity) error {
	match := staged.Match

	if !match.IsUninitialized() {
		return fmt.Errorf("create match %d: %w", match.Number, apperror.ErrNoUninitializedOrWaitingGame)
	}

	if err := confirmNotRegistered(staged.Registry, player); err != nil {
		return err
	}

	if err := escrow.Collect(staged.Book, match, player, staged.bet()); err != nil {
		return err
	}

	match.Players = [2]entity.Identity{player}
	match.Board = entity.Board{}
	match.Turn = 0
	match.Paid = false
	match.State = entity.GameState{Kind: entity.StateWaiting}

	return staged.Registry.Register(player, match.Number)
}

func join(staged *Session, player entity.Identity) error {
	match := staged.Match

	if !match.IsWaiting() {
		return fmt.Errorf("join match %d: %w", match.Number, apperror.ErrNoUninitializedOrWaitingGame)
	}

	if err := confirmNotRegistered(staged.Registry, player); err != nil {
		return err
	}

	if err := escrow.Collect(staged.Book, match, player, staged.bet()); err != nil {
		return err
	}

	match.Players[entity.SlotJoiner] = player
	match.State = entity.GameState{Kind: entity.StateInProgress}
	staged.Registry.Advance()

	return staged.Registry.Register(player, match.Number)
}

func confirmNotRegistered(registry *entity.Registry, player entity.Identity) error {
	if err := player.Validate(); err != nil {
		return err
	}

	if number, ok := registry.Lookup(player); ok {
		return fmt.Errorf("%w: %s is in match %d", apperror.ErrGameAlreadyInProgress, player, number)
	}

	return nil
}

// Move places the mark of player on tile and settles the match if the move ends it.
func Move(session *Session, player entity.Identity, tile entity.Tile) (*Result, error) {
	staged, err := stage(session)
	if err != nil {
		return nil, err
	}

	match := staged.Match
	if match == nil {
		return nil, apperror.ErrPlayerHasNotAnActiveGame
	}

	if number, ok := staged.Registry.Lookup(player); !ok || number != match.Number {
		return nil, fmt.Errorf("%w: %s in match %d", apperror.ErrPlayerHasNotAnActiveGame, player, match.Number)
	}

	if err := match.ConfirmInProgress(); err != nil {
		return nil, err
	}

	// the turn counter and the board are stored separately and must agree
	if match.Board.CountMarks() != int(match.Turn) {
		return nil, fmt.Errorf("%w: match %d has %d marks at turn %d",
			apperror.ErrInvalidMatchState, match.Number, match.Board.CountMarks(), match.Turn)
	}

	acting := match.ActingSlot()
	if match.SlotOf(player) != acting {
		return nil, apperror.ErrNotPlayersTurn
	}

	if err := match.Board.Place(tile, entity.MarkForSlot(acting)); err != nil {
		return nil, fmt.Errorf("invalid move: %w", err)
	}

	match.Turn++

	switch outcome, mark := match.Board.Evaluate(); outcome {
	case entity.OutcomeWin:
		match.State = entity.Won(match.Players[mark.Slot()])
	case entity.OutcomeTie:
		match.State = entity.GameState{Kind: entity.StateTie}
	default:
		return &Result{Session: staged}, nil
	}

	return finish(staged)
}

// Cancel ends an active match on behalf of signer.
// A waiting match can only be canceled by its creator and is refunded in full.
// An in-progress match is forfeited: the other player wins.
func Cancel(session *Session, signer entity.Identity) (*Result, error) {
	staged, err := stage(session)
	if err != nil {
		return nil, err
	}

	match := staged.Match
	if match == nil {
		return nil, apperror.ErrMatchNotFound
	}

	switch match.State.Kind {
	case entity.StateWaiting:
		if signer.IsZero() || signer != match.Creator() {
			return nil, apperror.ErrSignerIsNotPlayer
		}

		match.State = entity.GameState{Kind: entity.StateCanceled}

		// the open slot moves on so the canceled number is never paired again
		if match.Number == staged.Registry.NextNumber() {
			staged.Registry.Advance()
		}
	case entity.StateInProgress:
		opponent, ok := match.Opponent(signer)
		if !ok {
			return nil, apperror.ErrSignerIsNotPlayer
		}

		match.State = entity.Won(opponent)
	default:
		if err := match.ConfirmInProgress(); err != nil {
			return nil, fmt.Errorf("cancel match %d: %w", match.Number, err)
		}
	}

	return finish(staged)
}

// Close archives a finished match. Only the creator can close it.
func Close(session *Session, signer entity.Identity) (*Result, error) {
	staged, err := stage(session)
	if err != nil {
		return nil, err
	}

	match := staged.Match
	if match == nil {
		return nil, apperror.ErrMatchNotFound
	}

	if !match.IsOver() {
		return nil, fmt.Errorf("close match %d in state %s: %w", match.Number, match.State.Kind, apperror.ErrGameNotFinished)
	}

	if signer.IsZero() || signer != match.Creator() {
		return nil, apperror.ErrSignerDidNotOpenTheGameAccount
	}

	archived := match.Clone()
	match.Reset()

	return &Result{Session: staged, Archived: archived}, nil
}

// WithdrawFees pays amount from the fee pool to the owner.
func WithdrawFees(session *Session, signer entity.Identity, amount uint64) (*Result, error) {
	staged, err := stage(session)
	if err != nil {
		return nil, err
	}

	if err := escrow.WithdrawFees(staged.Book, staged.Registry.Economics, signer, amount); err != nil {
		return nil, err
	}

	return &Result{Session: staged}, nil
}

// Fund credits target with amount on behalf of the owner.
func Fund(session *Session, signer, target entity.Identity, amount uint64) (*Result, error) {
	staged, err := stage(session)
	if err != nil {
		return nil, err
	}

	if err := escrow.Fund(staged.Book, staged.Registry.Economics, signer, target, amount); err != nil {
		return nil, err
	}

	return &Result{Session: staged}, nil
}

// finish unregisters both players of a match that just ended and pays it out.
func finish(staged *Session) (*Result, error) {
	if _, err := staged.Registry.UnregisterAll(staged.Match.Number); err != nil {
		return nil, err
	}

	record, err := escrow.Settle(staged.Book, staged.Match, staged.feePercent())
	if err != nil {
		return nil, err
	}

	return &Result{Session: staged, Completion: record}, nil
}

func stage(session *Session) (*Session, error) {
	if session == nil || session.Registry == nil {
		return nil, apperror.ErrRegistryNotInitialized
	}

	return session.Clone(), nil
}
