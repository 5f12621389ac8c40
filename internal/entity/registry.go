package entity

import (
	"fmt"
	"slices"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
)

const maxFeePercent = 100

// Economics are the optional stake parameters of the ledger.
type Economics struct {
	FeePercent uint64   `json:"fee_percent"`
	FixedBet   uint64   `json:"fixed_bet"`
	Owner      Identity `json:"owner"`
}

func (that *Economics) Validate() error {
	if that.FeePercent > maxFeePercent {
		return fmt.Errorf("%w: fee percent %d above %d", apperror.ErrInvalidEconomics, that.FeePercent, maxFeePercent)
	}

	if that.Owner.IsZero() {
		return fmt.Errorf("%w: owner is empty", apperror.ErrInvalidEconomics)
	}

	return nil
}

// Registry maps every active player to the number of the match they are in.
// There is exactly one registry per ledger. It is created by NewRegistry at bootstrap
// and passed explicitly to every match operation.
type Registry struct {
	MatchCount uint64              `json:"match_count"`
	Players    map[Identity]uint64 `json:"players"`
	Economics  *Economics          `json:"economics,omitempty"`
}

func NewRegistry(economics *Economics) (*Registry, error) {
	if economics != nil {
		if err := economics.Validate(); err != nil {
			return nil, err
		}
	}

	return &Registry{
		MatchCount: 1,
		Players:    make(map[Identity]uint64),
		Economics:  economics,
	}, nil
}

func (that *Registry) Clone() *Registry {
	clone := &Registry{
		MatchCount: that.MatchCount,
		Players:    make(map[Identity]uint64, len(that.Players)),
	}

	for player, number := range that.Players {
		clone.Players[player] = number
	}

	if that.Economics != nil {
		economics := *that.Economics
		clone.Economics = &economics
	}

	return clone
}

func (that *Registry) IsEconomic() bool {
	return that.Economics != nil
}

// NextNumber is the number of the match that is currently open for pairing.
func (that *Registry) NextNumber() uint64 {
	return that.MatchCount
}

// Advance moves the pairing slot to a fresh number. Numbers are never reused.
func (that *Registry) Advance() {
	that.MatchCount++
}

func (that *Registry) Register(player Identity, number uint64) error {
	if err := player.Validate(); err != nil {
		return err
	}

	if existing, ok := that.Players[player]; ok {
		return fmt.Errorf("%w: %s in match %d", apperror.ErrDuplicateRegistration, player, existing)
	}

	if that.Players == nil {
		that.Players = make(map[Identity]uint64)
	}

	that.Players[player] = number

	return nil
}

func (that *Registry) Lookup(player Identity) (uint64, bool) {
	number, ok := that.Players[player]
	return number, ok
}

// PlayersOf returns the players registered to number, sorted.
func (that *Registry) PlayersOf(number uint64) []Identity {
	players := make([]Identity, 0, 2)
	for player, n := range that.Players {
		if n == number {
			players = append(players, player)
		}
	}

	slices.Sort(players)

	return players
}

// UnregisterAll removes every entry pointing at number. Finding none means the
// registry and the match disagree, which is reported as an internal error.
func (that *Registry) UnregisterAll(number uint64) ([]Identity, error) {
	removed := that.PlayersOf(number)
	if len(removed) == 0 {
		return nil, fmt.Errorf("%w: match %d", apperror.ErrRegistryInconsistent, number)
	}

	for _, player := range removed {
		delete(that.Players, player)
	}

	return removed, nil
}
