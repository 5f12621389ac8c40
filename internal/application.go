package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/config"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/repository"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/service"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-ledger/transport/rest"
	"github.com/rocketscienceinc/tictactoe-ledger/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// ledger bundles the game manager with the storages it owns.
type ledger struct {
	manager *usecase.GameManager
	redis   *storage.RedisStorage
	sqlite  *storage.SQLiteStorage
}

func openLedger(ctx context.Context, logger zerolog.Logger, conf *config.Config) (*ledger, error) {
	redisAddr := conf.Redis.GetRedisAddr()
	if redisAddr == "" {
		return nil, ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddr, conf.Redis.Password, conf.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	sqliteStorage, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
	if err != nil {
		_ = redisStorage.Close()
		return nil, fmt.Errorf("could not open sqlite storage: %w", err)
	}

	if err = sqliteStorage.Init(ctx); err != nil {
		_ = redisStorage.Close()
		_ = sqliteStorage.Close()
		return nil, fmt.Errorf("could not init sqlite storage: %w", err)
	}

	ledgerRepo := repository.NewLedgerRepository(redisStorage.Connection, conf.Ledger.MaxRetries)
	archiveRepo := repository.NewArchiveRepository(sqliteStorage.Connection)

	return &ledger{
		manager: usecase.NewGameManager(logger, ledgerRepo, archiveRepo),
		redis:   redisStorage,
		sqlite:  sqliteStorage,
	}, nil
}

func (that *ledger) close(logger zerolog.Logger) {
	if err := that.redis.Close(); err != nil {
		logger.Error().Err(err).Msg("could not close redis storage")
	}

	if err := that.sqlite.Close(); err != nil {
		logger.Error().Err(err).Msg("could not close sqlite storage")
	}
}

// RunApp - runs the application until ctx is canceled.
func RunApp(ctx context.Context, logger zerolog.Logger, conf *config.Config) error {
	log := logger.With().Str("component", "app").Logger()

	auth, err := service.NewAuthService(conf.JWTSecretKey, conf.TokenTTL)
	if err != nil {
		return fmt.Errorf("could not create auth service: %w", err)
	}

	l, err := openLedger(ctx, logger, conf)
	if err != nil {
		return err
	}
	defer l.close(log)

	economics := conf.Economics.ToEntity()

	registry, err := l.manager.EnsureRegistry(ctx, economics)
	if err != nil {
		return fmt.Errorf("could not ensure registry: %w", err)
	}

	log.Info().
		Uint64("match_count", registry.MatchCount).
		Bool("economic", registry.IsEconomic()).
		Msg("ledger ready")

	server := rest.New(logger, l.manager, auth, entity.Identity(conf.Economics.Owner))
	server.Handle("/ws", websocket.New(logger, l.manager, auth))

	log.Info().Str("port", conf.HTTPPort).Msg("starting HTTP server")

	if err = server.Start(ctx, conf.HTTPPort); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	log.Info().Msg("application context canceled, shutting down")

	return nil
}

// InitRegistry creates the registry from the economics section of conf.
func InitRegistry(ctx context.Context, logger zerolog.Logger, conf *config.Config) (*entity.Registry, error) {
	l, err := openLedger(ctx, logger, conf)
	if err != nil {
		return nil, err
	}
	defer l.close(logger)

	return l.manager.InitializeRegistry(ctx, conf.Economics.ToEntity())
}

// IssueToken signs a bearer token for id.
func IssueToken(conf *config.Config, id entity.Identity) (string, error) {
	auth, err := service.NewAuthService(conf.JWTSecretKey, conf.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("could not create auth service: %w", err)
	}

	return auth.GenerateToken(id)
}
