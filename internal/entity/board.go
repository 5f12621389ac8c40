package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
)

const BoardSize = 3

// Mark is the content of a board cell. A set mark equals the slot index of the player who placed it plus one.
type Mark uint8

const (
	MarkNone Mark = iota
	MarkFirst
	MarkSecond
)

// MarkForSlot returns the mark placed by the player in the given slot.
func MarkForSlot(slot int) Mark {
	switch slot {
	case SlotCreator:
		return MarkFirst
	case SlotJoiner:
		return MarkSecond
	default:
		return MarkNone
	}
}

// Slot is the inverse of MarkForSlot. It returns NoSlot for MarkNone.
func (that Mark) Slot() int {
	switch that {
	case MarkFirst:
		return SlotCreator
	case MarkSecond:
		return SlotJoiner
	default:
		return NoSlot
	}
}

func (that Mark) String() string {
	switch that {
	case MarkFirst:
		return "X"
	case MarkSecond:
		return "O"
	default:
		return ""
	}
}

// Tile addresses a board cell.
type Tile struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

func (that Tile) InBounds() bool {
	return that.Row >= 0 && that.Row < BoardSize && that.Column >= 0 && that.Column < BoardSize
}

// WinLines lists the rows, then the columns, then the two diagonals.
var WinLines = [8][3]Tile{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Outcome is the result of evaluating a board.
type Outcome uint8

const (
	OutcomeOngoing Outcome = iota
	OutcomeWin
	OutcomeTie
)

// Board is a 3x3 grid. Row-major: Board[row][column].
type Board [BoardSize][BoardSize]Mark

func (that *Board) At(tile Tile) Mark {
	return that[tile.Row][tile.Column]
}

// Place sets an empty in-bounds cell. The board is left untouched on error.
func (that *Board) Place(tile Tile, mark Mark) error {
	if !tile.InBounds() {
		return fmt.Errorf("%w: row %d column %d", apperror.ErrTileOutOfBounds, tile.Row, tile.Column)
	}

	if that.At(tile) != MarkNone {
		return fmt.Errorf("%w: row %d column %d", apperror.ErrTileAlreadySet, tile.Row, tile.Column)
	}

	that[tile.Row][tile.Column] = mark

	return nil
}

// WinningMark returns the mark of the first completed line, or MarkNone.
func (that *Board) WinningMark() Mark {
	for _, line := range WinLines {
		a, b, c := that.At(line[0]), that.At(line[1]), that.At(line[2])
		if a != MarkNone && a == b && b == c {
			return a
		}
	}

	return MarkNone
}

func (that *Board) IsFull() bool {
	for _, row := range that {
		for _, cell := range row {
			if cell == MarkNone {
				return false
			}
		}
	}

	return true
}

// Evaluate checks the lines first, so a move that fills the board and completes a line is a win.
func (that *Board) Evaluate() (Outcome, Mark) {
	if mark := that.WinningMark(); mark != MarkNone {
		return OutcomeWin, mark
	}

	// the game continues until every cell is set
	if !that.IsFull() {
		return OutcomeOngoing, MarkNone
	}

	return OutcomeTie, MarkNone
}

// CountMarks returns how many cells are set.
func (that *Board) CountMarks() int {
	count := 0
	for _, row := range that {
		for _, cell := range row {
			if cell != MarkNone {
				count++
			}
		}
	}

	return count
}
