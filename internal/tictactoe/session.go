package tictactoe

import "github.com/rocketscienceinc/tictactoe-ledger/internal/entity"

// Session is the set of records one operation reads and writes: the shared registry,
// at most one match and the balances of the identities involved.
// Operations never mutate the session they receive; they return a staged copy.
type Session struct {
	Registry *entity.Registry
	Match    *entity.Match
	Book     *entity.Book
}

func (that *Session) Clone() *Session {
	clone := &Session{}

	if that.Registry != nil {
		clone.Registry = that.Registry.Clone()
	}

	if that.Match != nil {
		clone.Match = that.Match.Clone()
	}

	if that.Book != nil {
		clone.Book = that.Book.Clone()
	} else {
		clone.Book = entity.NewBook(0)
	}

	return clone
}

// Result carries the staged session of a successful operation.
// Completion is set when the operation settled the match, Archived when it closed it.
type Result struct {
	Session    *Session
	Completion *entity.CompletionRecord
	Archived   *entity.Match
}

func (that *Session) feePercent() uint64 {
	if that.Registry.IsEconomic() {
		return that.Registry.Economics.FeePercent
	}

	return 0
}

func (that *Session) bet() uint64 {
	if that.Registry.IsEconomic() {
		return that.Registry.Economics.FixedBet
	}

	return 0
}
