package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/repository"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/tictactoe"
)

type ledgerRepo interface {
	Atomic(ctx context.Context, fn repository.TxFunc) error
}

type archiveRepo interface {
	SaveCompletion(ctx context.Context, record *entity.CompletionRecord) error
	SaveMatch(ctx context.Context, match *entity.Match) error
	GetMatch(ctx context.Context, number uint64) (*entity.Match, error)
	ListCompletions(ctx context.Context, limit int) ([]*entity.CompletionRecord, error)
}

// GameManager runs every ledger operation as one atomic unit: it loads the records the
// operation touches, applies the state machine to a staged copy and persists the copy only on success.
type GameManager struct {
	logger zerolog.Logger

	ledger  ledgerRepo
	archive archiveRepo
}

func NewGameManager(logger zerolog.Logger, ledger ledgerRepo, archive archiveRepo) *GameManager {
	return &GameManager{
		logger: logger.With().Str("component", "game_manager").Logger(),

		ledger:  ledger,
		archive: archive,
	}
}

// InitializeRegistry creates the ledger registry. It fails if one already exists.
func (that *GameManager) InitializeRegistry(ctx context.Context, economics *entity.Economics) (*entity.Registry, error) {
	log := that.logger.With().Str("method", "InitializeRegistry").Logger()

	var registry *entity.Registry

	err := that.ledger.Atomic(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		_, err := tx.Registry(ctx)
		if err == nil {
			return apperror.ErrRegistryAlreadyInitialized
		}

		if !errors.Is(err, apperror.ErrRegistryNotInitialized) {
			return err
		}

		registry, err = entity.NewRegistry(economics)
		if err != nil {
			return err
		}

		return tx.PutRegistry(registry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}

	log.Info().Bool("economic", registry.IsEconomic()).Msg("registry initialized")

	return registry, nil
}

// EnsureRegistry returns the existing registry, creating it first if there is none.
func (that *GameManager) EnsureRegistry(ctx context.Context, economics *entity.Economics) (*entity.Registry, error) {
	registry, err := that.InitializeRegistry(ctx, economics)
	if errors.Is(err, apperror.ErrRegistryAlreadyInitialized) {
		return that.Registry(ctx)
	}

	return registry, err
}

// CreateOrJoin opens a new match for player, or seats player in the match waiting for an opponent.
func (that *GameManager) CreateOrJoin(ctx context.Context, player entity.Identity) (*entity.Match, error) {
	log := that.logger.With().Str("method", "CreateOrJoin").Str("player", string(player)).Logger()

	result, err := that.execute(ctx, openMatch(), []entity.Identity{player}, func(session *tictactoe.Session) (*tictactoe.Result, error) {
		return tictactoe.CreateOrJoin(session, player)
	})
	if err != nil {
		return nil, fmt.Errorf("failed create or join: %w", err)
	}

	match := result.Session.Match
	log.Info().Uint64("match", match.Number).Str("state", string(match.State.Kind)).Msg("player paired")

	return match, nil
}

func (that *GameManager) Move(ctx context.Context, number uint64, player entity.Identity, tile entity.Tile) (*entity.Match, error) {
	log := that.logger.With().Str("method", "Move").Uint64("match", number).Str("player", string(player)).Logger()

	result, err := that.execute(ctx, numberedMatch(number), nil, func(session *tictactoe.Session) (*tictactoe.Result, error) {
		return tictactoe.Move(session, player, tile)
	})
	// a player can only move in the match the registry holds for them
	if errors.Is(err, apperror.ErrMatchNotFound) {
		err = fmt.Errorf("%w: %s in match %d", apperror.ErrPlayerHasNotAnActiveGame, player, number)
	}

	if err != nil {
		return nil, fmt.Errorf("failed make move: %w", err)
	}

	log.Debug().Int("row", tile.Row).Int("column", tile.Column).Msg("move applied")

	return result.Session.Match, nil
}

func (that *GameManager) Cancel(ctx context.Context, number uint64, signer entity.Identity) (*entity.Match, error) {
	result, err := that.execute(ctx, numberedMatch(number), nil, func(session *tictactoe.Session) (*tictactoe.Result, error) {
		return tictactoe.Cancel(session, signer)
	})
	if err != nil {
		return nil, fmt.Errorf("failed cancel match: %w", err)
	}

	return result.Session.Match, nil
}

// Close removes a finished match from the live ledger and returns it as archived.
func (that *GameManager) Close(ctx context.Context, number uint64, signer entity.Identity) (*entity.Match, error) {
	result, err := that.execute(ctx, numberedMatch(number), nil, func(session *tictactoe.Session) (*tictactoe.Result, error) {
		return tictactoe.Close(session, signer)
	})
	if err != nil {
		return nil, fmt.Errorf("failed close match: %w", err)
	}

	return result.Archived, nil
}

// WithdrawFees moves amount from the fee pool to the owner and returns the remaining pool.
func (that *GameManager) WithdrawFees(ctx context.Context, signer entity.Identity, amount uint64) (uint64, error) {
	log := that.logger.With().Str("method", "WithdrawFees").Logger()

	result, err := that.execute(ctx, noMatch(), []entity.Identity{signer}, func(session *tictactoe.Session) (*tictactoe.Result, error) {
		return tictactoe.WithdrawFees(session, signer, amount)
	})
	if err != nil {
		return 0, fmt.Errorf("failed withdraw fees: %w", err)
	}

	log.Info().Uint64("amount", amount).Uint64("fee_pool", result.Session.Book.FeePool).Msg("fees withdrawn")

	return result.Session.Book.FeePool, nil
}

// Fund credits target and returns its new balance.
func (that *GameManager) Fund(ctx context.Context, signer, target entity.Identity, amount uint64) (uint64, error) {
	result, err := that.execute(ctx, noMatch(), []entity.Identity{target}, func(session *tictactoe.Session) (*tictactoe.Result, error) {
		return tictactoe.Fund(session, signer, target, amount)
	})
	if err != nil {
		return 0, fmt.Errorf("failed fund account: %w", err)
	}

	return result.Session.Book.Balance(target), nil
}

// Match returns a live match, or the archived one once it has been closed.
func (that *GameManager) Match(ctx context.Context, number uint64) (*entity.Match, error) {
	var match *entity.Match

	err := that.ledger.Atomic(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		var err error
		match, err = tx.Match(ctx, number)

		return err
	})
	if errors.Is(err, apperror.ErrMatchNotFound) {
		return that.archive.GetMatch(ctx, number)
	}

	if err != nil {
		return nil, fmt.Errorf("failed get match: %w", err)
	}

	return match, nil
}

func (that *GameManager) Balance(ctx context.Context, id entity.Identity) (uint64, error) {
	if err := id.Validate(); err != nil {
		return 0, err
	}

	var balance uint64

	err := that.ledger.Atomic(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		book, err := tx.Book(ctx, id)
		if err != nil {
			return err
		}

		balance = book.Balance(id)

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed get balance: %w", err)
	}

	return balance, nil
}

func (that *GameManager) Registry(ctx context.Context) (*entity.Registry, error) {
	var registry *entity.Registry

	err := that.ledger.Atomic(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		var err error
		registry, err = tx.Registry(ctx)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed get registry: %w", err)
	}

	return registry, nil
}

func (that *GameManager) FeePool(ctx context.Context) (uint64, error) {
	var feePool uint64

	err := that.ledger.Atomic(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		book, err := tx.Book(ctx)
		if err != nil {
			return err
		}

		feePool = book.FeePool

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed get fee pool: %w", err)
	}

	return feePool, nil
}

func (that *GameManager) Completions(ctx context.Context, limit int) ([]*entity.CompletionRecord, error) {
	records, err := that.archive.ListCompletions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed list completions: %w", err)
	}

	return records, nil
}

type operation func(session *tictactoe.Session) (*tictactoe.Result, error)

type targetKind uint8

const (
	targetNone targetKind = iota
	targetOpen
	targetNumber
)

// matchTarget selects the match an operation loads.
type matchTarget struct {
	kind   targetKind
	number uint64
}

func noMatch() matchTarget {
	return matchTarget{kind: targetNone}
}

// openMatch is the match at the registry counter. It may not exist yet.
func openMatch() matchTarget {
	return matchTarget{kind: targetOpen}
}

func numberedMatch(number uint64) matchTarget {
	return matchTarget{kind: targetNumber, number: number}
}

// execute loads a session, runs op on it and persists the staged result in the same transaction.
func (that *GameManager) execute(ctx context.Context, target matchTarget, ids []entity.Identity, op operation) (*tictactoe.Result, error) {
	var result *tictactoe.Result

	err := that.ledger.Atomic(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		session, err := that.loadSession(ctx, tx, target, ids)
		if err != nil {
			return err
		}

		result, err = op(session)
		if err != nil {
			return err
		}

		return that.persist(ctx, tx, result)
	})
	if err != nil {
		return nil, err
	}

	if result.Completion != nil {
		that.archiveCompletion(ctx, result.Completion)
	}

	return result, nil
}

func (that *GameManager) loadSession(ctx context.Context, tx repository.LedgerTx, target matchTarget, ids []entity.Identity) (*tictactoe.Session, error) {
	registry, err := tx.Registry(ctx)
	if err != nil {
		return nil, err
	}

	session := &tictactoe.Session{Registry: registry}

	switch target.kind {
	case targetNumber:
		session.Match, err = tx.Match(ctx, target.number)
		if err != nil {
			return nil, err
		}
	case targetOpen:
		session.Match, err = tx.Match(ctx, registry.NextNumber())
		if errors.Is(err, apperror.ErrMatchNotFound) {
			session.Match, err = nil, nil
		}

		if err != nil {
			return nil, err
		}
	case targetNone:
	}

	if session.Match != nil {
		ids = append(ids, session.Match.Participants()...)
	}

	if registry.IsEconomic() {
		ids = append(ids, registry.Economics.Owner)
	}

	session.Book, err = tx.Book(ctx, ids...)
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (that *GameManager) persist(ctx context.Context, tx repository.LedgerTx, result *tictactoe.Result) error {
	staged := result.Session

	if err := tx.PutRegistry(staged.Registry); err != nil {
		return err
	}

	switch {
	case result.Archived != nil:
		// the archive is written first so a closed match is never lost; SaveMatch is idempotent on retry
		if err := that.archive.SaveMatch(ctx, result.Archived); err != nil {
			return fmt.Errorf("failed archive match: %w", err)
		}

		tx.DeleteMatch(result.Archived.Number)
	case staged.Match != nil:
		if err := tx.PutMatch(staged.Match); err != nil {
			return err
		}
	}

	tx.PutBook(staged.Book)

	if result.Completion != nil {
		if err := tx.AppendCompletion(result.Completion); err != nil {
			return err
		}
	}

	return nil
}

func (that *GameManager) archiveCompletion(ctx context.Context, record *entity.CompletionRecord) {
	log := that.logger.With().Str("method", "archiveCompletion").Uint64("match", record.Number).Logger()

	if err := that.archive.SaveCompletion(ctx, record); err != nil {
		log.Error().Err(err).Msg("failed to archive completion")
		return
	}

	log.Info().
		Str("outcome", string(record.Outcome)).
		Str("winner", string(record.Winner)).
		Uint64("pot", record.Pot).
		Uint64("fee", record.Fee).
		Msg("match settled")
}
