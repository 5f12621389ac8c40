package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

// ArchiveRepository keeps settled and closed matches after they leave the live ledger.
type ArchiveRepository interface {
	SaveCompletion(ctx context.Context, record *entity.CompletionRecord) error
	SaveMatch(ctx context.Context, match *entity.Match) error
	GetMatch(ctx context.Context, number uint64) (*entity.Match, error)
	ListCompletions(ctx context.Context, limit int) ([]*entity.CompletionRecord, error)
}

const defaultCompletionsLimit = 50

type dbArchive struct {
	conn *sql.DB
}

func NewArchiveRepository(conn *sql.DB) ArchiveRepository {
	return &dbArchive{
		conn: conn,
	}
}

// SaveCompletion is idempotent per match number.
func (that *dbArchive) SaveCompletion(ctx context.Context, record *entity.CompletionRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal completion record: %w", err)
	}

	query := `INSERT OR REPLACE INTO completions (number, player_one, player_two, winner, outcome, record)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = that.conn.ExecContext(ctx, query,
		record.Number,
		string(record.PlayerOne),
		string(record.PlayerTwo),
		string(record.Winner),
		string(record.Outcome),
		string(recordJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save completion %d: %w", record.Number, err)
	}

	return nil
}

func (that *dbArchive) SaveMatch(ctx context.Context, match *entity.Match) error {
	matchJSON, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("could not marshal match: %w", err)
	}

	query := `INSERT OR REPLACE INTO archived_matches (number, creator, state, record) VALUES (?, ?, ?, ?)`

	_, err = that.conn.ExecContext(ctx, query,
		match.Number,
		string(match.Creator()),
		string(match.State.Kind),
		string(matchJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to archive match %d: %w", match.Number, err)
	}

	return nil
}

func (that *dbArchive) GetMatch(ctx context.Context, number uint64) (*entity.Match, error) {
	var record string

	err := that.conn.QueryRowContext(ctx, `SELECT record FROM archived_matches WHERE number = ?`, number).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", apperror.ErrMatchNotFound, number)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get archived match %d: %w", number, err)
	}

	var match entity.Match
	if err = json.Unmarshal([]byte(record), &match); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	return &match, nil
}

// ListCompletions returns the latest records first.
func (that *dbArchive) ListCompletions(ctx context.Context, limit int) ([]*entity.CompletionRecord, error) {
	if limit <= 0 {
		limit = defaultCompletionsLimit
	}

	rows, err := that.conn.QueryContext(ctx, `SELECT record FROM completions ORDER BY number DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	records := make([]*entity.CompletionRecord, 0, limit)
	for rows.Next() {
		var raw string
		if err = rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}

		var record entity.CompletionRecord
		if err = json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal completion: %w", err)
		}

		records = append(records, &record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}

	return records, nil
}
