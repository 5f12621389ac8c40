package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
)

type StateKind string

const (
	StateUninitialized StateKind = "uninitialized"
	StateWaiting       StateKind = "waiting"
	StateInProgress    StateKind = "in_progress"
	StateTie           StateKind = "tie"
	StateWon           StateKind = "won"
	StateCanceled      StateKind = "canceled"
)

// GameState is the lifecycle state of a match. Winner is only set for StateWon.
type GameState struct {
	Kind   StateKind `json:"kind"`
	Winner Identity  `json:"winner,omitempty"`
}

func Won(winner Identity) GameState {
	return GameState{Kind: StateWon, Winner: winner}
}

// Match is one game between two players, keyed by Number.
type Match struct {
	Number  uint64      `json:"number"`
	Players [2]Identity `json:"players"`
	Turn    uint8       `json:"turn"`
	Board   Board       `json:"board"`
	State   GameState   `json:"state"`
	Pot     uint64      `json:"pot"`
	Paid    bool        `json:"paid"`
}

func NewMatch(number uint64) *Match {
	return &Match{
		Number: number,
		State:  GameState{Kind: StateUninitialized},
	}
}

// Clone returns an independent copy. Every field is a value type.
func (that *Match) Clone() *Match {
	clone := *that
	return &clone
}

// Reset wipes the match back to an uninitialized record, as done on archival.
func (that *Match) Reset() {
	*that = Match{State: GameState{Kind: StateUninitialized}}
}

func (that *Match) Creator() Identity {
	return that.Players[SlotCreator]
}

func (that *Match) Joiner() Identity {
	return that.Players[SlotJoiner]
}

// SlotOf locates player among the two slots, or returns NoSlot.
func (that *Match) SlotOf(player Identity) int {
	if player.IsZero() {
		return NoSlot
	}

	for slot, p := range that.Players {
		if p == player {
			return slot
		}
	}

	return NoSlot
}

// ActingSlot is the slot whose turn it is.
func (that *Match) ActingSlot() int {
	return int(that.Turn % 2)
}

// Opponent returns the other player of a two-player match.
func (that *Match) Opponent(player Identity) (Identity, bool) {
	switch that.SlotOf(player) {
	case SlotCreator:
		return that.Joiner(), !that.Joiner().IsZero()
	case SlotJoiner:
		return that.Creator(), !that.Creator().IsZero()
	default:
		return "", false
	}
}

// Participants returns the set slots in slot order.
func (that *Match) Participants() []Identity {
	participants := make([]Identity, 0, len(that.Players))
	for _, p := range that.Players {
		if !p.IsZero() {
			participants = append(participants, p)
		}
	}

	return participants
}

func (that *Match) IsUninitialized() bool {
	return that.State.Kind == StateUninitialized
}

func (that *Match) IsWaiting() bool {
	return that.State.Kind == StateWaiting
}

func (that *Match) IsInProgress() bool {
	return that.State.Kind == StateInProgress
}

// IsOver reports a terminal state: Tie, Won or Canceled.
func (that *Match) IsOver() bool {
	switch that.State.Kind {
	case StateTie, StateWon, StateCanceled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the players of this match must hold a registry entry.
func (that *Match) IsActive() bool {
	return that.IsWaiting() || that.IsInProgress()
}

// ConfirmInProgress returns nil only for a match that accepts moves.
func (that *Match) ConfirmInProgress() error {
	switch that.State.Kind {
	case StateInProgress:
		return nil
	case StateTie, StateWon, StateCanceled:
		return apperror.ErrGameAlreadyOver
	case StateUninitialized, StateWaiting:
		return apperror.ErrGameNotInProgress
	default:
		return fmt.Errorf("%w: %s", apperror.ErrInvalidMatchState, that.State.Kind)
	}
}
